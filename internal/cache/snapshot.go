package cache

import (
	"sort"
	"sync"
	"time"

	"MarketFeed/internal/model"
)

// SnapshotTable holds the current-state row per symbol. Rows are only ever
// replaced whole.
type SnapshotTable struct {
	mu        sync.RWMutex
	items     map[string]model.SnapshotItem
	order     []string
	updatedAt time.Time
}

// NewSnapshotTable creates an empty table.
func NewSnapshotTable() *SnapshotTable {
	return &SnapshotTable{items: make(map[string]model.SnapshotItem)}
}

// Replace swaps the whole table for items.
func (t *SnapshotTable) Replace(items []model.SnapshotItem, at time.Time) {
	next := make(map[string]model.SnapshotItem, len(items))
	order := make([]string, 0, len(items))
	for _, it := range items {
		if _, dup := next[it.Symbol]; !dup {
			order = append(order, it.Symbol)
		}
		next[it.Symbol] = it
	}
	t.mu.Lock()
	t.items = next
	t.order = order
	t.updatedAt = at
	t.mu.Unlock()
}

// Merge replaces the rows for items and keeps every other existing row.
func (t *SnapshotTable) Merge(items []model.SnapshotItem, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, it := range items {
		if _, ok := t.items[it.Symbol]; !ok {
			t.order = append(t.order, it.Symbol)
		}
		t.items[it.Symbol] = it
	}
	t.updatedAt = at
}

// Items returns every row in insertion order.
func (t *SnapshotTable) Items() []model.SnapshotItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]model.SnapshotItem, 0, len(t.order))
	for _, sym := range t.order {
		out = append(out, t.items[sym])
	}
	return out
}

// Get returns the row for a symbol.
func (t *SnapshotTable) Get(symbol string) (model.SnapshotItem, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	it, ok := t.items[symbol]
	return it, ok
}

// ByType returns rows of one asset type sorted by symbol.
func (t *SnapshotTable) ByType(at model.AssetType) []model.SnapshotItem {
	var out []model.SnapshotItem
	for _, it := range t.Items() {
		if it.AssetType == at {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Len returns the number of rows.
func (t *SnapshotTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// UpdatedAt returns the time of the last Replace or Merge.
func (t *SnapshotTable) UpdatedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.updatedAt
}
