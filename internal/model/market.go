package model

import (
	"fmt"
	"math"
	"time"
)

// AssetType classifies an instrument. Every symbol maps to exactly one type.
type AssetType string

const (
	AssetCrypto    AssetType = "crypto"
	AssetEquity    AssetType = "equity"
	AssetIndex     AssetType = "index"
	AssetFuture    AssetType = "future"
	AssetForex     AssetType = "forex"
	AssetCommodity AssetType = "commodity"
)

// AssetTypes lists every asset type in registry order.
var AssetTypes = []AssetType{AssetCrypto, AssetEquity, AssetIndex, AssetFuture, AssetForex, AssetCommodity}

// Interval is a candle granularity.
type Interval string

const (
	Interval5m Interval = "5m"
	Interval1h Interval = "1h"
	Interval1d Interval = "1d"
)

// Duration returns the bucket width of the interval.
func (i Interval) Duration() time.Duration {
	switch i {
	case Interval5m:
		return 5 * time.Minute
	case Interval1h:
		return time.Hour
	case Interval1d:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Lookback returns the default history window requested for the interval.
func (i Interval) Lookback() time.Duration {
	switch i {
	case Interval5m:
		return 24 * time.Hour
	case Interval1h:
		return 7 * 24 * time.Hour
	case Interval1d:
		return 365 * 24 * time.Hour
	default:
		return 0
	}
}

// ParseInterval validates an interval string.
func ParseInterval(s string) (Interval, error) {
	iv := Interval(s)
	if iv.Duration() == 0 {
		return "", fmt.Errorf("unknown interval %q", s)
	}
	return iv, nil
}

// Quote is a single price observation from a source.
// Volume and ChangePercent are nil when the source did not report them.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	AsOf          time.Time `json:"asOf"`
	Volume        *float64  `json:"volume,omitempty"`
	DisplayName   string    `json:"displayName,omitempty"`
	ChangePercent *float64  `json:"changePercent,omitempty"`
	Source        string    `json:"source,omitempty"`
}

// Valid reports whether the quote carries a usable price.
// A zero, negative or NaN price makes the quote absent.
func (q *Quote) Valid() bool {
	return q != nil && q.Price > 0 && !math.IsNaN(q.Price) && !math.IsInf(q.Price, 0)
}

// Candle represents a single OHLCV bar. Price always equals Close.
type Candle struct {
	PeriodStart time.Time `json:"date"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	Price       float64   `json:"price"`
}

// NewCandle opens a candle where all four prices equal p.
func NewCandle(start time.Time, p, volume float64) Candle {
	return Candle{PeriodStart: start, Open: p, High: p, Low: p, Close: p, Volume: volume, Price: p}
}

// HistorySeries is the cached candle series for one (symbol, interval) pair.
type HistorySeries struct {
	Symbol      string    `json:"symbol"`
	Interval    Interval  `json:"interval"`
	Candles     []Candle  `json:"candles"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// SnapshotItem is the materialized current-state row for one symbol.
type SnapshotItem struct {
	Symbol        string    `json:"symbol"`
	DisplayName   string    `json:"displayName"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"changePercent"`
	AssetType     AssetType `json:"assetType"`
	Sparkline     []Candle  `json:"sparkline"`
}

// Closes extracts the close prices of the given candles.
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
