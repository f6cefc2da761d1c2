package collector

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"MarketFeed/internal/aggregator"
	"MarketFeed/internal/model"
)

// HistoryCall records one GetHistory invocation on a MockAdapter.
type HistoryCall struct {
	Symbol   string
	Interval model.Interval
	Lookback time.Duration
}

// MockAdapter returns controllable fixed data for development and testing.
// With Synthetic set, symbols missing from Quotes/History get generated data.
type MockAdapter struct {
	ID        string
	Quotes    map[string]*model.Quote
	History   map[string][]model.Candle
	Synthetic bool
	// MinLookback makes GetHistory return empty for shorter windows.
	MinLookback time.Duration

	mu           sync.Mutex
	quoteCalls   map[string]int
	historyCalls []HistoryCall
}

// NewMockAdapter creates an empty mock adapter.
func NewMockAdapter(id string) *MockAdapter {
	return &MockAdapter{
		ID:         id,
		Quotes:     make(map[string]*model.Quote),
		History:    make(map[string][]model.Candle),
		quoteCalls: make(map[string]int),
	}
}

func (m *MockAdapter) Name() string { return m.ID }

func (m *MockAdapter) GetQuote(_ context.Context, symbol string) *model.Quote {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quoteCalls[symbol]++
	if q, ok := m.Quotes[symbol]; ok {
		if q == nil {
			return nil
		}
		cp := *q
		return &cp
	}
	if !m.Synthetic {
		return nil
	}
	p := syntheticPrice(symbol)
	return &model.Quote{Symbol: symbol, Price: p, AsOf: time.Now().UTC(), DisplayName: symbol, Source: m.ID}
}

func (m *MockAdapter) GetHistory(_ context.Context, symbol string, interval model.Interval, lookback time.Duration) []model.Candle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyCalls = append(m.historyCalls, HistoryCall{Symbol: symbol, Interval: interval, Lookback: lookback})
	if lookback < m.MinLookback {
		return nil
	}
	if h, ok := m.History[symbol]; ok {
		return append([]model.Candle(nil), h...)
	}
	if !m.Synthetic {
		return nil
	}
	return generateMockBars(syntheticPrice(symbol), interval, lookback)
}

// QuoteCalls returns how many times GetQuote was called for symbol.
func (m *MockAdapter) QuoteCalls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quoteCalls[symbol]
}

// HistoryCalls returns a copy of the recorded GetHistory calls.
func (m *MockAdapter) HistoryCalls() []HistoryCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryCall(nil), m.historyCalls...)
}

func syntheticPrice(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return 10 + float64(h.Sum32()%100000)/10
}

func generateMockBars(basePrice float64, interval model.Interval, lookback time.Duration) []model.Candle {
	width := interval.Duration()
	count := int(lookback / width)
	if count > 500 {
		count = 500
	}
	end := aggregator.BucketStart(time.Now(), width)
	bars := make([]model.Candle, count)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.Candle{
			PeriodStart: end.Add(-time.Duration(count-1-i) * width),
			Open:        p * 0.999,
			High:        p * 1.005,
			Low:         p * 0.995,
			Close:       p,
			Volume:      1000000,
			Price:       p,
		}
	}
	return bars
}
