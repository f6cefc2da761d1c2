package aggregator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketFeed/internal/model"
)

const fiveMin = 5 * time.Minute

func quoteAt(t time.Time, p float64) *model.Quote {
	return &model.Quote{Symbol: "BTC-USD", Price: p, AsOf: t}
}

func withVolume(q *model.Quote, v float64) *model.Quote {
	q.Volume = &v
	return q
}

func TestBucketStart_Alignment(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	intervals := []time.Duration{time.Minute, fiveMin, time.Hour, 24 * time.Hour}
	for i := 0; i < 500; i++ {
		ts := time.UnixMilli(r.Int63n(4_000_000_000_000))
		for _, iv := range intervals {
			b := BucketStart(ts, iv)
			assert.False(t, b.After(ts), "bucket after t")
			assert.True(t, ts.Before(b.Add(iv)), "t beyond bucket end")
			assert.Zero(t, b.UnixMilli()%iv.Milliseconds())
		}
	}
}

func TestApply_EmptySeriesOpensCandle(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 7, 30, 0, time.UTC)
	out := Apply(nil, withVolume(quoteAt(ts, 100), 12), fiveMin, 90)
	require.Len(t, out, 1)
	c := out[0]
	assert.Equal(t, time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC), c.PeriodStart)
	assert.Equal(t, model.NewCandle(c.PeriodStart, 100, 12), c)
}

func TestApply_SameBucketUpdatesInPlace(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	prices := []float64{100, 104, 97, 101, 99}
	var series []model.Candle
	for i, p := range prices {
		series = Apply(series, quoteAt(base.Add(time.Duration(i)*time.Second), p), fiveMin, 90)
	}
	require.Len(t, series, 1)
	c := series[0]
	assert.Equal(t, 100.0, c.Open)
	assert.Equal(t, 104.0, c.High)
	assert.Equal(t, 97.0, c.Low)
	assert.Equal(t, 99.0, c.Close)
	assert.Equal(t, c.Close, c.Price)
}

func TestApply_HighLowIndependentOfFeedOrder(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	prices := []float64{5, 9, 1, 7, 3}
	r := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		perm := r.Perm(len(prices))
		var series []model.Candle
		var last float64
		for _, idx := range perm {
			series = Apply(series, quoteAt(base.Add(time.Second), prices[idx]), fiveMin, 90)
			last = prices[idx]
		}
		require.Len(t, series, 1)
		assert.Equal(t, 9.0, series[0].High)
		assert.Equal(t, 1.0, series[0].Low)
		assert.Equal(t, last, series[0].Close)
		assert.LessOrEqual(t, series[0].Low, series[0].Open)
		assert.GreaterOrEqual(t, series[0].High, series[0].Open)
	}
}

func TestApply_VolumeKeptWhenUnknown(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	series := Apply(nil, withVolume(quoteAt(base, 10), 500), fiveMin, 90)
	series = Apply(series, quoteAt(base.Add(time.Minute), 11), fiveMin, 90)
	assert.Equal(t, 500.0, series[0].Volume)
	series = Apply(series, withVolume(quoteAt(base.Add(2*time.Minute), 12), 650), fiveMin, 90)
	assert.Equal(t, 650.0, series[0].Volume)
}

func TestApply_NewBucketAppends(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	series := Apply(nil, quoteAt(base, 10), fiveMin, 90)
	series = Apply(series, quoteAt(base.Add(fiveMin+time.Second), 11), fiveMin, 90)
	require.Len(t, series, 2)
	assert.Equal(t, base.Add(fiveMin), series[1].PeriodStart)
	assert.Equal(t, 11.0, series[1].Open)
}

func TestApply_RetentionBound(t *testing.T) {
	const retention = 90
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var series []model.Candle
	total := retention + 25
	for i := 0; i < total; i++ {
		series = Apply(series, quoteAt(base.Add(time.Duration(i)*fiveMin), float64(i+1)), fiveMin, retention)
	}
	require.Len(t, series, retention)
	assert.Equal(t, base.Add(time.Duration(total-retention)*fiveMin), series[0].PeriodStart)
	assert.Equal(t, base.Add(time.Duration(total-1)*fiveMin), series[retention-1].PeriodStart)
	for i := 1; i < len(series); i++ {
		assert.True(t, series[i].PeriodStart.After(series[i-1].PeriodStart))
	}
}

func TestApply_AbsentQuoteIgnored(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	series := Apply(nil, quoteAt(base, 10), fiveMin, 90)
	assert.Equal(t, series, Apply(series, quoteAt(base, 0), fiveMin, 90))
	assert.Equal(t, series, Apply(series, nil, fiveMin, 90))
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	series := Apply(nil, quoteAt(base, 10), fiveMin, 90)
	_ = Apply(series, quoteAt(base.Add(time.Second), 50), fiveMin, 90)
	assert.Equal(t, 10.0, series[0].High)
}

func TestApply_LateQuoteAppendsWithoutMerge(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 5, 0, 0, time.UTC)
	series := Apply(nil, quoteAt(base, 10), fiveMin, 90)
	series = Apply(series, quoteAt(base.Add(fiveMin), 11), fiveMin, 90)
	series = Apply(series, quoteAt(base.Add(time.Minute), 8), fiveMin, 90)
	require.Len(t, series, 3)
	assert.Equal(t, 10.0, series[0].Low, "earlier bucket must not be merged into")
	assert.Equal(t, base, series[2].PeriodStart)
}

func TestNormalize_AlignsAndFoldsSharedBuckets(t *testing.T) {
	base := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	in := []model.Candle{
		{PeriodStart: base.Add(15*time.Minute + 12*time.Second), Open: 104, High: 106, Low: 103, Close: 105, Volume: 2},
		{PeriodStart: base, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{PeriodStart: base.Add(15 * time.Minute), Open: 102, High: 103, Low: 101, Close: 103, Volume: 5},
		{PeriodStart: base.Add(5 * time.Minute), Open: 100, High: 102, Low: 100, Close: 101, Volume: 1},
	}
	got := Normalize(in, fiveMin)

	require.Len(t, got, 3)
	for i, c := range got {
		assert.Zero(t, c.PeriodStart.UnixMilli()%fiveMin.Milliseconds(), "unaligned at %d", i)
		if i > 0 {
			assert.True(t, got[i-1].PeriodStart.Before(c.PeriodStart), "not ascending at %d", i)
		}
	}
	live := got[2]
	assert.Equal(t, base.Add(15*time.Minute), live.PeriodStart)
	assert.Equal(t, 102.0, live.Open)
	assert.Equal(t, 106.0, live.High)
	assert.Equal(t, 101.0, live.Low)
	assert.Equal(t, 105.0, live.Close)
	assert.Equal(t, 105.0, live.Price)
	assert.Equal(t, 7.0, live.Volume)

	// input untouched
	assert.Equal(t, base.Add(15*time.Minute+12*time.Second), in[0].PeriodStart)
}

func TestNormalize_DailyBarsAtExchangeOpen(t *testing.T) {
	open := time.Date(2024, 5, 6, 13, 30, 0, 0, time.UTC)
	got := Normalize([]model.Candle{
		model.NewCandle(open, 10, 0),
		model.NewCandle(open.Add(24*time.Hour), 11, 0),
	}, 24*time.Hour)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), got[0].PeriodStart)
	assert.Equal(t, time.Date(2024, 5, 7, 0, 0, 0, 0, time.UTC), got[1].PeriodStart)
}

func TestNormalize_LiveBarThenQuoteUpdatesInPlace(t *testing.T) {
	base := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	series := Normalize([]model.Candle{
		model.NewCandle(base, 100, 0),
		model.NewCandle(base.Add(15*time.Minute+12*time.Second), 101, 0),
	}, fiveMin)
	out := Apply(series, quoteAt(base.Add(15*time.Minute+40*time.Second), 102), fiveMin, 90)
	require.Len(t, out, 2)
	assert.Equal(t, 102.0, out[1].Close)
	assert.Equal(t, 102.0, out[1].High)
}
