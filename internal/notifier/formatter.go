package notifier

import (
	"fmt"
	"strings"
	"time"

	"MarketFeed/internal/model"
)

// FormatFallbackAlert formats the message sent when a pass produced no live quotes.
func FormatFallbackAlert(total, restored int, lastUpdated time.Time) string {
	var b strings.Builder
	b.WriteString("🚨 <b>MarketFeed: all sources failed</b>\n\n")
	b.WriteString(fmt.Sprintf("Symbols attempted: %d\n", total))
	if restored == 0 {
		b.WriteString("No persisted snapshot available, previous table kept\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Restored from snapshot: %d rows\n", restored))
	if !lastUpdated.IsZero() {
		b.WriteString(fmt.Sprintf("Snapshot taken: %s\n", lastUpdated.UTC().Format("2006-01-02 15:04 MST")))
	}
	return b.String()
}

// FormatPassReport formats a one-line pass summary.
func FormatPassReport(total, succeeded, failed int, d time.Duration, fallback bool) string {
	mode := "live"
	if fallback {
		mode = "fallback"
	}
	return fmt.Sprintf("🔄 <b>Refresh pass</b> (%s)\n%d/%d symbols updated, %d dropped, took %s",
		mode, succeeded, total, failed, d.Round(time.Millisecond))
}

// FormatStatus summarizes the current snapshot table by asset type.
func FormatStatus(items []model.SnapshotItem, updatedAt time.Time) string {
	var b strings.Builder
	b.WriteString("📊 <b>MarketFeed status</b>\n\n")
	if updatedAt.IsZero() {
		b.WriteString("No pass completed yet\n")
		return b.String()
	}
	b.WriteString(fmt.Sprintf("Updated: %s\n", updatedAt.UTC().Format("2006-01-02 15:04:05 MST")))
	b.WriteString(fmt.Sprintf("Rows: %d\n", len(items)))

	counts := make(map[model.AssetType]int)
	for _, it := range items {
		counts[it.AssetType]++
	}
	for _, t := range model.AssetTypes {
		if counts[t] > 0 {
			b.WriteString(fmt.Sprintf("  %s: %d\n", t, counts[t]))
		}
	}
	return b.String()
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Available commands:\n• /status\n• /refresh"
}
