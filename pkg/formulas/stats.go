package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the population variance (ddof=0) of a slice of
// float64 values. gonum's stat.Variance divides by n-1 (the sample
// estimator), which doesn't match the population dispersion the
// allocation metrics need, so it's computed directly here.
func Variance(data []float64) float64 {
	n := len(data)
	if n == 0 {
		return 0
	}
	mean := Mean(data)
	var sumSq float64
	for _, v := range data {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(n)
}

// StdDev calculates the population standard deviation (ddof=0) of a
// slice of float64 values, matching numpy.std's default behavior.
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return math.Sqrt(Variance(data))
}
