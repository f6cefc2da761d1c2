package calculator

import (
	"math"

	"MarketFeed/internal/model"
)

// Default MACD periods.
const (
	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9
)

// MACD computes macd = EMA(fast) - EMA(slow), the signal EMA of macd and
// their difference. All three series are index-aligned with prices.
func MACD(prices []float64, fast, slow, signal int) model.MACDResult {
	emaFast := EMA(prices, fast)
	emaSlow := EMA(prices, slow)

	line := nanSeries(len(prices))
	for i := range prices {
		if !math.IsNaN(emaFast[i]) && !math.IsNaN(emaSlow[i]) {
			line[i] = emaFast[i] - emaSlow[i]
		}
	}

	sig := EMA(line, signal)
	// EMA carries values forward over NaN; the signal is only meaningful where macd is.
	for i := range sig {
		if math.IsNaN(line[i]) {
			sig[i] = math.NaN()
		}
	}

	hist := nanSeries(len(prices))
	for i := range prices {
		if !math.IsNaN(line[i]) && !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return model.MACDResult{MACD: line, Signal: sig, Histogram: hist}
}
