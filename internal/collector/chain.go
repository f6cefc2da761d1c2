package collector

import (
	"context"
	"log"
	"time"

	"MarketFeed/internal/model"
	"MarketFeed/internal/universe"
)

// TryInOrder calls fn on each adapter in order and returns the first result
// fn accepts, together with the adapter that produced it.
func TryInOrder[T any](adapters []Adapter, fn func(Adapter) (T, bool)) (T, Adapter, bool) {
	var zero T
	for _, a := range adapters {
		if a == nil {
			continue
		}
		if v, ok := fn(a); ok {
			return v, a, true
		}
	}
	return zero, nil, false
}

// Chain holds the fixed source priority: crypto symbols try Crypto then
// General; every other asset type uses General only.
type Chain struct {
	Crypto  Adapter
	General Adapter
}

// NewChain creates a Chain.
func NewChain(crypto, general Adapter) *Chain {
	return &Chain{Crypto: crypto, General: general}
}

// For returns the ordered adapter list for a symbol.
func (c *Chain) For(symbol string) []Adapter {
	if universe.IsCrypto(symbol) && c.Crypto != nil {
		return []Adapter{c.Crypto, c.General}
	}
	return []Adapter{c.General}
}

// Quote returns the first valid quote along the chain, or nil.
func (c *Chain) Quote(ctx context.Context, symbol string) *model.Quote {
	q, _, ok := TryInOrder(c.For(symbol), func(a Adapter) (*model.Quote, bool) {
		q := a.GetQuote(ctx, symbol)
		return q, q.Valid()
	})
	if !ok {
		return nil
	}
	return q
}

// History returns the first non-empty history along the chain. Each adapter
// gets one retry with a doubled lookback when its first answer is empty.
func (c *Chain) History(ctx context.Context, symbol string, interval model.Interval) []model.Candle {
	lookback := interval.Lookback()
	candles, a, ok := TryInOrder(c.For(symbol), func(a Adapter) ([]model.Candle, bool) {
		h := HistoryWithRetry(ctx, a, symbol, interval, lookback)
		return h, len(h) > 0
	})
	if !ok {
		log.Printf("[WARN] %s %s: empty history from all sources", symbol, interval)
		return nil
	}
	log.Printf("[INFO] %s %s: %d candles from %s", symbol, interval, len(candles), a.Name())
	return candles
}

// HistoryWithRetry asks the adapter for lookback and, if that is empty, once more for 2*lookback.
func HistoryWithRetry(ctx context.Context, a Adapter, symbol string, interval model.Interval, lookback time.Duration) []model.Candle {
	if h := a.GetHistory(ctx, symbol, interval, lookback); len(h) > 0 {
		return h
	}
	return a.GetHistory(ctx, symbol, interval, 2*lookback)
}
