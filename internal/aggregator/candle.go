package aggregator

import (
	"log"
	"math"
	"sort"
	"time"

	"MarketFeed/internal/model"
)

// BucketStart aligns t down to the interval boundary: floor(t/interval)*interval in epoch ms.
func BucketStart(t time.Time, interval time.Duration) time.Time {
	ms := interval.Milliseconds()
	if ms <= 0 {
		return t
	}
	ts := t.UnixMilli()
	start := ts - ts%ms
	if ts%ms < 0 {
		start -= ms
	}
	return time.UnixMilli(start).UTC()
}

// Apply folds one quote into the candle series and returns the new series.
// The input slice is never modified.
//
// A quote in the currently open bucket updates that candle in place. Any other
// bucket opens a new candle and the series is truncated to the last retention
// candles. Late observations (older than the open bucket) are appended as new
// candles as well and are not merged backward.
func Apply(candles []model.Candle, q *model.Quote, interval time.Duration, retention int) []model.Candle {
	out := append([]model.Candle(nil), candles...)
	if !q.Valid() {
		return out
	}

	p := q.Price
	start := BucketStart(q.AsOf, interval)

	if n := len(out); n > 0 {
		last := &out[n-1]
		if last.PeriodStart.Equal(start) {
			last.Close = p
			last.Price = p
			last.High = math.Max(last.High, p)
			last.Low = math.Min(last.Low, p)
			if q.Volume != nil {
				last.Volume = *q.Volume
			}
			return out
		}
		if start.Before(last.PeriodStart) {
			log.Printf("[WARN] %s: late quote for bucket %s behind open bucket %s, appending",
				q.Symbol, start.Format(time.RFC3339), last.PeriodStart.Format(time.RFC3339))
		}
	}

	var vol float64
	if q.Volume != nil {
		vol = *q.Volume
	}
	out = append(out, model.NewCandle(start, p, vol))
	if retention > 0 && len(out) > retention {
		out = append([]model.Candle(nil), out[len(out)-retention:]...)
	}
	return out
}

// Normalize aligns upstream bars to interval boundaries and folds bars that
// share a bucket into one candle: first open, max high, min low, last close,
// summed volume. The result is sorted by PeriodStart with no duplicate buckets.
// The input slice is never modified.
func Normalize(candles []model.Candle, interval time.Duration) []model.Candle {
	sorted := append([]model.Candle(nil), candles...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PeriodStart.Before(sorted[j].PeriodStart) })

	out := make([]model.Candle, 0, len(sorted))
	for _, c := range sorted {
		c.PeriodStart = BucketStart(c.PeriodStart, interval)
		c.Price = c.Close
		if n := len(out); n > 0 && out[n-1].PeriodStart.Equal(c.PeriodStart) {
			last := &out[n-1]
			last.High = math.Max(last.High, c.High)
			last.Low = math.Min(last.Low, c.Low)
			last.Close = c.Close
			last.Price = c.Close
			last.Volume += c.Volume
			continue
		}
		out = append(out, c)
	}
	return out
}
