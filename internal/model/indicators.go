package model

import (
	"encoding/json"
	"math"
	"time"
)

// Series is an index-aligned indicator output. NaN marks an undefined entry.
type Series []float64

// MarshalJSON encodes NaN entries as null.
func (s Series) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(s))
	for i := range s {
		if !math.IsNaN(s[i]) {
			v := s[i]
			out[i] = &v
		}
	}
	return json.Marshal(out)
}

// MACDResult holds the MACD line, signal line and histogram.
type MACDResult struct {
	MACD      Series `json:"macd"`
	Signal    Series `json:"signal"`
	Histogram Series `json:"histogram"`
}

// BollingerResult holds the three Bollinger bands.
type BollingerResult struct {
	Upper  Series `json:"upper"`
	Middle Series `json:"middle"`
	Lower  Series `json:"lower"`
}

// IndicatorSet bundles every indicator computed over one cached series.
// All slices have the same length as Dates.
type IndicatorSet struct {
	Symbol    string          `json:"symbol"`
	Interval  Interval        `json:"interval"`
	Dates     []time.Time     `json:"dates"`
	Closes    []float64       `json:"closes"`
	RSI       Series          `json:"rsi"`
	MACD      MACDResult      `json:"macd"`
	Bollinger BollingerResult `json:"bollinger"`
}
