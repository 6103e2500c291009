package allocation

import (
	"gonum.org/v1/gonum/floats"

	"github.com/jlancaster7/allocator-go/pkg/formulas"
)

// preTradeMetrics snapshots an account's current metrics as the baseline
// for dispersion comparisons.
func preTradeMetrics(a Account) Metrics {
	return Metrics{
		ActiveSpreadDuration: a.ActiveSpreadDuration,
		Duration:             a.PortfolioDuration,
		OAS:                  a.OAS,
	}
}

// postTradeMetrics computes an account's projected metrics after
// allocating quantity x of the order (C7's post-trade metric model).
//
// If the account's NAV is 0, the metric is unchanged (no exposure to
// scale against).
func postTradeMetrics(a Account, sec Security, side Side, price float64, x float64, target TargetMetric) float64 {
	if a.NAV == 0 {
		return currentMetric(a, target)
	}

	delta := x
	if side == Sell {
		delta = -x
	}

	oldMV := a.CurrentPosition * price
	newMV := (a.CurrentPosition + delta) * price

	switch target {
	case TargetDuration:
		oldWeight := (a.NAV - oldMV) / a.NAV
		newWeight := newMV / a.NAV
		return oldWeight*a.PortfolioDuration + newWeight*sec.Duration
	case TargetOAS:
		// Degrades to the security's OAS; documented simplification.
		return sec.OAS
	default: // TargetActiveSpreadDuration
		return a.ActiveSpreadDuration - (oldMV/a.NAV)*sec.SpreadDuration + (newMV/a.NAV)*sec.SpreadDuration
	}
}

// currentMetric returns an account's current value for the given target
// metric, used as both the pre-trade baseline and the NAV=0 fallback.
func currentMetric(a Account, target TargetMetric) float64 {
	switch target {
	case TargetDuration:
		return a.PortfolioDuration
	case TargetOAS:
		return a.OAS
	default:
		return a.ActiveSpreadDuration
	}
}

// computeDispersion builds the DispersionMetrics summary (C7): population
// standard deviation of the target metric before (all accounts) and after
// (allocated accounts only) allocation, improvement, deviation bounds, and
// tolerance compliance.
func computeDispersion(
	target TargetMetric,
	tolerance float64,
	preValues []float64,
	postAllocatedValues []float64,
	optimizationSuccess bool,
	iterations int,
	finalObjective float64,
) DispersionMetrics {
	preStd := formulas.StdDev(preValues)
	postStd := formulas.StdDev(postAllocatedValues)

	var improvement float64
	if preStd > 0 {
		improvement = (preStd - postStd) / preStd
	}

	targetValue := formulas.Mean(postAllocatedValues)

	var maxDev, minDev float64
	withinTolerance := false
	if len(postAllocatedValues) > 0 {
		deviations := make([]float64, len(postAllocatedValues))
		for i, v := range postAllocatedValues {
			deviations[i] = absf(v - targetValue)
		}
		maxDev = floats.Max(deviations)
		minDev = floats.Min(deviations)
		if targetValue > 0 {
			withinTolerance = true
			for _, v := range postAllocatedValues {
				if absf(v-targetValue)/targetValue > tolerance {
					withinTolerance = false
					break
				}
			}
		}
	}

	return DispersionMetrics{
		TargetMetric:        target,
		PreTradeStdDev:      preStd,
		PostTradeStdDev:     postStd,
		Improvement:         improvement,
		MaxDeviation:        maxDev,
		MinDeviation:        minDev,
		TargetValue:         targetValue,
		WithinTolerance:     withinTolerance,
		OptimizationSuccess: optimizationSuccess,
		Iterations:          iterations,
		FinalObjective:      finalObjective,
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
