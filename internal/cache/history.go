package cache

import (
	"context"
	"sync"
	"time"

	"MarketFeed/internal/aggregator"
	"MarketFeed/internal/model"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Fetcher loads a fresh candle series for a symbol. An empty result means every source failed.
type Fetcher interface {
	History(ctx context.Context, symbol string, interval model.Interval) []model.Candle
}

// Policy configures staleness per interval.
type Policy struct {
	ShortInterval  model.Interval
	ShortRetention int
	Thresholds     map[model.Interval]time.Duration
}

// DefaultPolicy returns the stock thresholds: 5m for the short interval,
// 15m for hourly bars and 1h for daily bars.
func DefaultPolicy() Policy {
	return Policy{
		ShortInterval:  model.Interval5m,
		ShortRetention: 90,
		Thresholds: map[model.Interval]time.Duration{
			model.Interval5m: 5 * time.Minute,
			model.Interval1h: 15 * time.Minute,
			model.Interval1d: time.Hour,
		},
	}
}

// ThresholdFor returns the staleness threshold for an interval, defaulting to the interval width.
func (p Policy) ThresholdFor(iv model.Interval) time.Duration {
	if d, ok := p.Thresholds[iv]; ok && d > 0 {
		return d
	}
	return iv.Duration()
}

type seriesKey struct {
	symbol   string
	interval model.Interval
}

// HistoryCache is a read-through cache of candle series keyed by (symbol, interval).
// Reads of stale or absent entries block on a synchronous re-fetch.
// Every write replaces the whole series.
type HistoryCache struct {
	mu      sync.RWMutex
	series  map[seriesKey]*model.HistorySeries
	fetcher Fetcher
	clock   Clock
	policy  Policy
}

// NewHistoryCache creates an empty cache. A nil clock uses the system clock.
func NewHistoryCache(fetcher Fetcher, clock Clock, policy Policy) *HistoryCache {
	if clock == nil {
		clock = SystemClock{}
	}
	return &HistoryCache{
		series:  make(map[seriesKey]*model.HistorySeries),
		fetcher: fetcher,
		clock:   clock,
		policy:  policy,
	}
}

// Policy returns the cache policy.
func (c *HistoryCache) Policy() Policy { return c.policy }

// Read returns cached candles when fresh. Otherwise it re-fetches through the
// fetcher, writes the result through and returns it. A failed re-fetch returns
// an empty slice and leaves the cached entry untouched.
func (c *HistoryCache) Read(ctx context.Context, symbol string, interval model.Interval) []model.Candle {
	if s, ok := c.Series(symbol, interval); ok && !c.IsStale(s) {
		return s.Candles
	}

	candles := c.fetcher.History(ctx, symbol, interval)
	if len(candles) == 0 {
		return []model.Candle{}
	}
	// Upstream bars may carry trade-time stamps, e.g. a live intraday bar.
	candles = aggregator.Normalize(candles, interval.Duration())
	if interval == c.policy.ShortInterval && c.policy.ShortRetention > 0 && len(candles) > c.policy.ShortRetention {
		candles = candles[len(candles)-c.policy.ShortRetention:]
	}
	c.Put(symbol, interval, candles)
	return append([]model.Candle(nil), candles...)
}

// IsStale reports whether now - lastUpdated exceeds the interval threshold.
func (c *HistoryCache) IsStale(s model.HistorySeries) bool {
	return c.clock.Now().Sub(s.LastUpdated) > c.policy.ThresholdFor(s.Interval)
}

// Series returns a copy of the cached series.
func (c *HistoryCache) Series(symbol string, interval model.Interval) (model.HistorySeries, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.series[seriesKey{symbol, interval}]
	if !ok {
		return model.HistorySeries{}, false
	}
	cp := *s
	cp.Candles = append([]model.Candle(nil), s.Candles...)
	return cp, true
}

// Put replaces the series with candles stamped at the current time.
func (c *HistoryCache) Put(symbol string, interval model.Interval, candles []model.Candle) {
	c.Seed(symbol, interval, candles, c.clock.Now())
}

// Seed replaces the series with candles stamped at the given time.
func (c *HistoryCache) Seed(symbol string, interval model.Interval, candles []model.Candle, at time.Time) {
	s := &model.HistorySeries{
		Symbol:      symbol,
		Interval:    interval,
		Candles:     append([]model.Candle(nil), candles...),
		LastUpdated: at,
	}
	c.mu.Lock()
	c.series[seriesKey{symbol, interval}] = s
	c.mu.Unlock()
}

// ApplyQuote folds a quote into the short-interval series and returns the new candles.
// Absent quotes are ignored.
func (c *HistoryCache) ApplyQuote(q *model.Quote) []model.Candle {
	if !q.Valid() {
		return nil
	}
	iv := c.policy.ShortInterval

	key := seriesKey{q.Symbol, iv}
	c.mu.Lock()
	defer c.mu.Unlock()

	var current []model.Candle
	if s, ok := c.series[key]; ok {
		current = s.Candles
	}
	next := aggregator.Apply(current, q, iv.Duration(), c.policy.ShortRetention)
	c.series[key] = &model.HistorySeries{
		Symbol:      q.Symbol,
		Interval:    iv,
		Candles:     next,
		LastUpdated: c.clock.Now(),
	}
	return append([]model.Candle(nil), next...)
}

// Snapshot returns copies of every cached series for the given interval, keyed by symbol.
func (c *HistoryCache) Snapshot(interval model.Interval) map[string][]model.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]model.Candle)
	for k, s := range c.series {
		if k.interval == interval {
			out[k.symbol] = append([]model.Candle(nil), s.Candles...)
		}
	}
	return out
}

// Len returns the number of cached series.
func (c *HistoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series)
}
