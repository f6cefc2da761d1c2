package calculator

import (
	"math"

	"MarketFeed/internal/model"
)

// Default Bollinger parameters.
const (
	DefaultBollingerPeriod = 20
	DefaultBollingerK      = 2.0
)

// Bollinger computes middle = SMA(period) and upper/lower = middle +/- k*stddev,
// using the population standard deviation of the same window.
func Bollinger(prices []float64, period int, k float64) model.BollingerResult {
	middle := SMA(prices, period)
	upper := nanSeries(len(prices))
	lower := nanSeries(len(prices))

	for i := range prices {
		if math.IsNaN(middle[i]) {
			continue
		}
		variance := 0.0
		for j := i - period + 1; j <= i; j++ {
			d := prices[j] - middle[i]
			variance += d * d
		}
		sd := math.Sqrt(variance / float64(period))
		upper[i] = middle[i] + k*sd
		lower[i] = middle[i] - k*sd
	}
	return model.BollingerResult{Upper: upper, Middle: middle, Lower: lower}
}
