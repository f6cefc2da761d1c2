package calculator

import "math"

// nanSeries returns a slice of n NaN values.
func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA computes the simple moving average at every index.
// The first period-1 entries are NaN.
func SMA(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}
	sum := 0.0
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average at every index.
// The seed is the simple average of the first complete window of
// defined values; entries before the seed are NaN. A NaN input after
// the seed carries the previous value forward.
func EMA(prices []float64, period int) []float64 {
	out := nanSeries(len(prices))
	if period <= 0 || len(prices) < period {
		return out
	}

	start := -1
	var seed float64
	for i := period - 1; i < len(prices); i++ {
		sum, ok := 0.0, true
		for j := i - period + 1; j <= i; j++ {
			if math.IsNaN(prices[j]) {
				ok = false
				break
			}
			sum += prices[j]
		}
		if ok {
			start = i
			seed = sum / float64(period)
			break
		}
	}
	if start == -1 {
		return out
	}
	out[start] = seed

	k := 2.0 / float64(period+1)
	for i := start + 1; i < len(prices); i++ {
		if math.IsNaN(prices[i]) {
			out[i] = out[i-1]
			continue
		}
		out[i] = (prices[i]-out[i-1])*k + out[i-1]
	}
	return out
}
