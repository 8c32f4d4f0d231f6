package forecast

import "math"

// mean returns the arithmetic mean of values, 0 for an empty slice.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev returns the sample standard deviation (n-1 denominator).
// Fewer than two values have no spread and return 0.
func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// coefficientOfVariation returns stdev/mean as a percentage.
// A non-positive mean has no meaningful CV and maps to 100, the
// maximum-variability end of every downstream bucket.
func coefficientOfVariation(m, stdev float64) float64 {
	if m <= 0 {
		return 100
	}
	return stdev / m * 100
}

// lastN returns the trailing n values, or all of them when fewer exist.
func lastN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

// firstN returns the leading n values, or all of them when fewer exist.
func firstN(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[:n]
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
