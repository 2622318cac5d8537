// Package indicator provides pure technical-indicator functions over a
// time-ordered series for a single instrument. Every function returns a
// slice of the input length; positions without enough trailing history
// hold NaN instead of raising an error. Callers treat NaN as "not yet
// eligible".
package indicator

import "math"

// nan marks a cell with insufficient trailing history.
var nan = math.NaN()

// SMA returns the simple moving average with the given window. The first
// window-1 positions are NaN, so a series of length n >= window yields
// exactly n-window+1 defined values.
func SMA(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = nan
	}
	if window <= 0 || len(values) < window {
		return out
	}

	var sum float64
	valid := 0
	for i, v := range values {
		if math.IsNaN(v) {
			// Restart the window after a gap.
			sum, valid = 0, 0
			continue
		}
		sum += v
		valid++
		if valid > window {
			sum -= values[i-window]
			valid = window
		}
		if valid == window {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// RollingStd returns the rolling sample standard deviation (n-1 in the
// denominator) with the given window.
func RollingStd(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = nan
	}
	if window <= 1 {
		return out
	}
	for i := window - 1; i < len(values); i++ {
		win := values[i-window+1 : i+1]
		if hasNaN(win) {
			continue
		}
		out[i] = stddev(win)
	}
	return out
}

// EMA returns the exponential moving average with smoothing factor
// alpha = 2/(span+1), seeded by the first value with no bias adjustment.
func EMA(values []float64, span int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = nan
	}
	if span <= 0 || len(values) == 0 {
		return out
	}

	alpha := 2.0 / (float64(span) + 1.0)
	prev := nan
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(prev) {
			prev = v
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		out[i] = prev
	}
	return out
}

// MACD returns the MACD line (EMA12 - EMA26), the signal line (EMA9 of
// MACD) and the histogram (MACD - signal).
func MACD(closes []float64) (macd, signal, hist []float64) {
	ema12 := EMA(closes, 12)
	ema26 := EMA(closes, 26)

	macd = make([]float64, len(closes))
	for i := range macd {
		macd[i] = ema12[i] - ema26[i]
	}

	signal = EMA(macd, 9)

	hist = make([]float64, len(closes))
	for i := range hist {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

// RSI returns the relative strength index over the trailing window,
// computed from rolling means of positive and negative daily deltas.
// When the average loss is zero the result is clamped to 100 (extremely
// overbought) instead of propagating a division fault. Defined values
// are always in [0, 100].
func RSI(closes []float64, window int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = nan
	}
	if window <= 0 || len(closes) < window+1 {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	gains[0], losses[0] = nan, nan
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		if math.IsNaN(delta) {
			gains[i], losses[i] = nan, nan
			continue
		}
		if delta > 0 {
			gains[i] = delta
		} else {
			losses[i] = -delta
		}
	}

	avgGain := SMA(gains, window)
	avgLoss := SMA(losses, window)

	for i := range out {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		if avgLoss[i] == 0 {
			out[i] = 100
			continue
		}
		rs := avgGain[i] / avgLoss[i]
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// Bollinger returns the upper, middle and lower Bollinger bands:
// middle = SMA(window), upper/lower = middle +/- k*stddev(window).
func Bollinger(closes []float64, window int, k float64) (upper, middle, lower []float64) {
	middle = SMA(closes, window)
	std := RollingStd(closes, window)

	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i] = middle[i] + k*std[i]
		lower[i] = middle[i] - k*std[i]
	}
	return upper, middle, lower
}

// OBV returns the on-balance volume: a running volume total that adds on
// up days and subtracts on down days.
func OBV(closes, volumes []float64) []float64 {
	out := make([]float64, len(closes))
	if len(closes) == 0 {
		return out
	}
	var obv float64
	for i := 1; i < len(closes); i++ {
		switch {
		case closes[i] > closes[i-1]:
			obv += volumes[i]
		case closes[i] < closes[i-1]:
			obv -= volumes[i]
		}
		out[i] = obv
	}
	return out
}

// ATR returns the average true range over the trailing window. The first
// position has no previous close, so true range starts at index 1.
func ATR(highs, lows, closes []float64, window int) []float64 {
	tr := make([]float64, len(closes))
	if len(closes) == 0 {
		return tr
	}
	tr[0] = nan
	for i := 1; i < len(closes); i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i] = math.Max(hl, math.Max(hc, lc))
	}
	return SMA(tr, window)
}

// PctChange returns the percent change over the given number of periods:
// (v[i] - v[i-periods]) / v[i-periods]. NaN until enough history exists
// or when the base value is zero.
func PctChange(values []float64, periods int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = nan
	}
	for i := periods; i < len(values); i++ {
		base := values[i-periods]
		if math.IsNaN(base) || math.IsNaN(values[i]) || base == 0 {
			continue
		}
		out[i] = (values[i] - base) / base
	}
	return out
}

func hasNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func stddev(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n-1))
}
