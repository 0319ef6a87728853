// Package indicators derives technical indicators from a chronological price series.
// Every function is pure and never fails: insufficient or degenerate input yields
// an absent result instead of an error.
package indicators

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// DefaultRSIPeriod is the number of transitions averaged by RSI
	DefaultRSIPeriod = 14
	// DefaultForecastHorizon is how many future points Forecast extrapolates
	DefaultForecastHorizon = 6
	// MinForecastPoints is the smallest series Forecast will fit
	MinForecastPoints = 5
)

// RSI computes the relative strength index over the last period transitions of prices
// using simple (not Wilder-smoothed) averages of gains and losses.
// Returns false when len(prices) < period+1.
func RSI(prices []float64, period int) (float64, bool) {
	if period < 1 || len(prices) < period+1 {
		return 0, false
	}

	window := prices[len(prices)-period-1:]
	var gainSum, lossSum float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		gainSum += math.Max(delta, 0)
		lossSum += math.Max(-delta, 0)
	}

	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) || math.IsInf(avgGain, 0) || math.IsInf(avgLoss, 0) {
		return 0, false
	}

	return round2(rsiFromAvg(avgGain, avgLoss)), true
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// Forecast fits ordinary least squares of price against index 0..n-1 and
// extrapolates horizon points at n..n+horizon-1, each rounded to cents.
// Returns an empty slice when the series is shorter than MinForecastPoints
// or the fit is numerically degenerate.
func Forecast(prices []float64, horizon int) []float64 {
	n := len(prices)
	if n < MinForecastPoints || horizon < 1 {
		return []float64{}
	}

	slope, intercept, ok := linearFit(prices)
	if !ok {
		return []float64{}
	}

	out := make([]float64, horizon)
	for i := range out {
		v := intercept + slope*float64(n+i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return []float64{}
		}
		out[i] = round2(v)
	}
	return out
}

// linearFit returns the least-squares line through (i, prices[i])
func linearFit(prices []float64) (slope, intercept float64, ok bool) {
	n := float64(len(prices))
	var sumX, sumY float64
	for i, p := range prices {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, 0, false
		}
		sumX += float64(i)
		sumY += p
	}
	meanX := sumX / n
	meanY := sumY / n

	var sxx, sxy float64
	for i, p := range prices {
		dx := float64(i) - meanX
		sxx += dx * dx
		sxy += dx * (p - meanY)
	}
	if sxx == 0 {
		return 0, 0, false
	}

	slope = sxy / sxx
	intercept = meanY - slope*meanX
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return 0, 0, false
	}
	return slope, intercept, true
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
