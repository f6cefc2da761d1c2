package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketFeed/internal/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeFetcher struct {
	mu      sync.Mutex
	calls   int
	candles []model.Candle
}

func (f *fakeFetcher) History(_ context.Context, _ string, _ model.Interval) []model.Candle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]model.Candle(nil), f.candles...)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func bars(n int, start time.Time, width time.Duration) []model.Candle {
	out := make([]model.Candle, n)
	for i := range out {
		p := float64(100 + i)
		out[i] = model.NewCandle(start.Add(time.Duration(i)*width), p, 1)
	}
	return out
}

var t0 = time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)

func newTestCache(f *fakeFetcher) (*HistoryCache, *fakeClock) {
	clock := &fakeClock{now: t0}
	return NewHistoryCache(f, clock, DefaultPolicy()), clock
}

func TestRead_AbsentFetchesAndCaches(t *testing.T) {
	f := &fakeFetcher{candles: bars(3, t0.Add(-time.Hour), 5*time.Minute)}
	c, _ := newTestCache(f)

	got := c.Read(context.Background(), "AAPL", model.Interval5m)
	require.Len(t, got, 3)
	assert.Equal(t, 1, f.Calls())

	s, ok := c.Series("AAPL", model.Interval5m)
	require.True(t, ok)
	assert.Equal(t, t0, s.LastUpdated)

	got = c.Read(context.Background(), "AAPL", model.Interval5m)
	require.Len(t, got, 3)
	assert.Equal(t, 1, f.Calls(), "fresh read must not fetch")
}

func TestRead_StalenessBoundary(t *testing.T) {
	policy := DefaultPolicy()
	for _, iv := range []model.Interval{model.Interval5m, model.Interval1h, model.Interval1d} {
		threshold := policy.ThresholdFor(iv)
		f := &fakeFetcher{candles: bars(2, t0.Add(-48*time.Hour), iv.Duration())}
		c, clock := newTestCache(f)
		c.Put("MSFT", iv, f.candles)

		clock.Advance(threshold - time.Millisecond)
		c.Read(context.Background(), "MSFT", iv)
		assert.Equal(t, 0, f.Calls(), "%s: no I/O just below threshold", iv)

		clock.Advance(2 * time.Millisecond)
		c.Read(context.Background(), "MSFT", iv)
		assert.Equal(t, 1, f.Calls(), "%s: one re-fetch just above threshold", iv)

		s, _ := c.Series("MSFT", iv)
		assert.Equal(t, clock.Now(), s.LastUpdated)
	}
}

func TestRead_ExactlyAtThresholdIsFresh(t *testing.T) {
	f := &fakeFetcher{candles: bars(2, t0, 5*time.Minute)}
	c, clock := newTestCache(f)
	c.Put("X", model.Interval5m, f.candles)
	clock.Advance(5 * time.Minute)
	c.Read(context.Background(), "X", model.Interval5m)
	assert.Equal(t, 0, f.Calls())
}

func TestRead_FailedRefetchReturnsEmptyAndKeepsEntry(t *testing.T) {
	f := &fakeFetcher{}
	c, clock := newTestCache(f)
	old := bars(4, t0, time.Hour)
	c.Put("SPY", model.Interval1h, old)
	clock.Advance(time.Hour)

	got := c.Read(context.Background(), "SPY", model.Interval1h)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1, f.Calls())

	s, ok := c.Series("SPY", model.Interval1h)
	require.True(t, ok)
	assert.Equal(t, old, s.Candles)
	assert.Equal(t, t0, s.LastUpdated)
}

func TestRead_ShortIntervalTrimmedToRetention(t *testing.T) {
	f := &fakeFetcher{candles: bars(200, t0.Add(-24*time.Hour), 5*time.Minute)}
	c, _ := newTestCache(f)
	got := c.Read(context.Background(), "ETH-USD", model.Interval5m)
	require.Len(t, got, 90)
	assert.Equal(t, f.candles[110].PeriodStart, got[0].PeriodStart)
}

func TestApplyQuote_BuildsShortSeries(t *testing.T) {
	c, clock := newTestCache(&fakeFetcher{})
	vol := 3.0
	q := &model.Quote{Symbol: "BTC-USD", Price: 50, AsOf: t0.Add(time.Minute), Volume: &vol}
	got := c.ApplyQuote(q)
	require.Len(t, got, 1)
	assert.Equal(t, t0, got[0].PeriodStart)

	clock.Advance(time.Minute)
	q2 := &model.Quote{Symbol: "BTC-USD", Price: 55, AsOf: t0.Add(2 * time.Minute)}
	got = c.ApplyQuote(q2)
	require.Len(t, got, 1)
	assert.Equal(t, 55.0, got[0].High)
	assert.Equal(t, 3.0, got[0].Volume)

	s, _ := c.Series("BTC-USD", model.Interval5m)
	assert.Equal(t, clock.Now(), s.LastUpdated)
}

func TestApplyQuote_IgnoresAbsent(t *testing.T) {
	c, _ := newTestCache(&fakeFetcher{})
	assert.Nil(t, c.ApplyQuote(&model.Quote{Symbol: "A", Price: 0, AsOf: t0}))
	assert.Nil(t, c.ApplyQuote(nil))
	assert.Equal(t, 0, c.Len())
}

func TestSeriesReturnsCopy(t *testing.T) {
	c, _ := newTestCache(&fakeFetcher{})
	c.Put("A", model.Interval1d, bars(2, t0, 24*time.Hour))
	s, _ := c.Series("A", model.Interval1d)
	s.Candles[0].Close = -1
	s2, _ := c.Series("A", model.Interval1d)
	assert.NotEqual(t, -1.0, s2.Candles[0].Close)
}

func TestSnapshotByInterval(t *testing.T) {
	c, _ := newTestCache(&fakeFetcher{})
	c.Put("A", model.Interval1d, bars(2, t0, 24*time.Hour))
	c.Put("B", model.Interval1d, bars(3, t0, 24*time.Hour))
	c.Put("A", model.Interval5m, bars(1, t0, 5*time.Minute))
	snap := c.Snapshot(model.Interval1d)
	assert.Len(t, snap, 2)
	assert.Len(t, snap["B"], 3)
}

func TestConcurrentWritesDifferentKeys(t *testing.T) {
	f := &fakeFetcher{candles: bars(5, t0, time.Hour)}
	c, _ := newTestCache(f)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sym := string(rune('A' + i%26))
			c.Read(context.Background(), sym+"X", model.Interval1h)
			c.ApplyQuote(&model.Quote{Symbol: sym, Price: float64(i + 1), AsOf: t0})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 52, c.Len())
}

func TestRead_UnalignedLiveBarThenQuote(t *testing.T) {
	f := &fakeFetcher{candles: append(bars(3, t0, 5*time.Minute),
		model.NewCandle(t0.Add(15*time.Minute+12*time.Second), 104, 1))}
	c, clock := newTestCache(f)
	clock.Advance(16 * time.Minute)

	got := c.Read(context.Background(), "AAPL", model.Interval5m)
	require.Len(t, got, 4)
	assert.Equal(t, t0.Add(15*time.Minute), got[3].PeriodStart)

	vol := 3.0
	out := c.ApplyQuote(&model.Quote{Symbol: "AAPL", Price: 105, AsOf: t0.Add(15*time.Minute + 40*time.Second), Volume: &vol})
	require.Len(t, out, 4)
	for i, cd := range out {
		assert.Zero(t, cd.PeriodStart.UnixMilli()%(5*time.Minute).Milliseconds(), "unaligned at %d", i)
		if i > 0 {
			assert.True(t, out[i-1].PeriodStart.Before(cd.PeriodStart), "out of order at %d", i)
		}
	}
	assert.Equal(t, 105.0, out[3].Close)
}
