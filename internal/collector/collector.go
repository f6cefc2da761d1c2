package collector

import (
	"context"
	"time"

	"MarketFeed/internal/cache"
	"MarketFeed/internal/calculator"
	"MarketFeed/internal/model"
)

// Collector serves cached candle series and computes indicators over them on demand.
type Collector struct {
	Cache *cache.HistoryCache
}

// NewCollector creates a new Collector.
func NewCollector(c *cache.HistoryCache) *Collector {
	return &Collector{Cache: c}
}

// Read returns the candle series for (symbol, interval). The result may be empty, never nil.
func (c *Collector) Read(ctx context.Context, symbol string, interval model.Interval) []model.Candle {
	candles := c.Cache.Read(ctx, symbol, interval)
	if candles == nil {
		return []model.Candle{}
	}
	return candles
}

// Indicators reads the series and computes RSI(14), MACD(12,26,9) and
// Bollinger(20,2) over its closes. Every output is index-aligned with Dates.
func (c *Collector) Indicators(ctx context.Context, symbol string, interval model.Interval) *model.IndicatorSet {
	return ComputeIndicators(symbol, interval, c.Read(ctx, symbol, interval))
}

// ComputeIndicators builds an IndicatorSet from candles.
func ComputeIndicators(symbol string, interval model.Interval, candles []model.Candle) *model.IndicatorSet {
	closes := model.Closes(candles)
	dates := make([]time.Time, len(candles))
	for i, cd := range candles {
		dates[i] = cd.PeriodStart
	}
	return &model.IndicatorSet{
		Symbol:    symbol,
		Interval:  interval,
		Dates:     dates,
		Closes:    closes,
		RSI:       calculator.RSI(closes, calculator.DefaultRSIPeriod),
		MACD:      calculator.MACD(closes, calculator.DefaultMACDFast, calculator.DefaultMACDSlow, calculator.DefaultMACDSignal),
		Bollinger: calculator.Bollinger(closes, calculator.DefaultBollingerPeriod, calculator.DefaultBollingerK),
	}
}
