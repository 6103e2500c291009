package allocation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const equalityPenaltyWeight = 1e6

// allocateMinDispersion implements the minimum-dispersion policy (C6): a
// penalty-method constrained optimization that minimizes the population
// standard deviation of the chosen post-trade metric across all accounts,
// subject to the total-quantity equality constraint and per-account
// cash/position bounds, with a deterministic pro-rata-by-NAV fallback on
// non-convergence.
func allocateMinDispersion(order Order, sec Security, accounts []Account, params MinDispersionParams, c Constraints) AllocationResult {
	n := len(accounts)
	price := order.EffectivePrice(sec)
	target := params.TargetMetric
	if target == "" {
		target = TargetActiveSpreadDuration
	}
	tolerance := params.Tolerance
	if tolerance == 0 {
		tolerance = 0.05
	}
	maxIter := params.MaxIterations
	if maxIter == 0 {
		maxIter = 1000
	}

	bounds := make([][2]float64, n)
	for i, a := range accounts {
		upper := order.Quantity
		if order.Side == Buy {
			if price > 0 {
				upper = math.Min(upper, a.AvailableCash/price)
			}
		} else {
			upper = math.Min(upper, a.CurrentPosition)
		}
		if upper < 0 {
			upper = 0
		}
		bounds[i] = [2]float64{0, upper}
	}

	initial := proRataByNAVVector(accounts, order.Quantity, bounds)

	solution, success, iterations, finalObjective := solveMinDispersion(accounts, sec, order.Side, price, target, order.Quantity, bounds, maxIter)
	if !success {
		solution = initial
	}

	rounded := roundToLots(solution, sec.MinDenomination, order.Quantity, func(i int, candidate float64) bool {
		return stillFeasible(i, candidate, accounts[i], sec, order.Side, price, c)
	})

	final := make([]float64, n)
	var warnings []Warning
	for i, q := range rounded {
		if q <= 0 {
			continue
		}
		if order.Side == Buy && q*price > accounts[i].AvailableCash {
			warnings = append(warnings, Warning{Type: WarningCompliance, AccountID: accounts[i].AccountID, Message: "rounded allocation exceeded available cash, dropped"})
			continue
		}
		if order.Side == Sell && q > accounts[i].CurrentPosition {
			warnings = append(warnings, Warning{Type: WarningCompliance, AccountID: accounts[i].AccountID, Message: "rounded allocation exceeded current position, dropped"})
			continue
		}
		final[i] = q
	}

	result := buildResult(order, sec, accounts, final, warnings, price)

	preValues := make([]float64, n)
	for i, a := range accounts {
		preValues[i] = currentMetric(a, target)
	}
	var postAllocated []float64
	for i, q := range final {
		if q > 0 {
			postAllocated = append(postAllocated, postTradeMetrics(accounts[i], sec, order.Side, price, q, target))
		}
	}

	dispersion := computeDispersion(target, tolerance, preValues, postAllocated, success, iterations, finalObjective)
	result.Summary.Dispersion = &dispersion

	return result
}

// proRataByNAVVector produces the deterministic initial point (and
// fallback solution): pro-rata by NAV, or uniform Q/n if total NAV is 0,
// clipped to bounds.
func proRataByNAVVector(accounts []Account, quantity float64, bounds [][2]float64) []float64 {
	n := len(accounts)
	x := make([]float64, n)

	navs := make([]float64, n)
	for i, a := range accounts {
		navs[i] = a.NAV
	}
	totalNAV := floats.Sum(navs)

	if totalNAV == 0 {
		uniform := quantity / float64(n)
		for i := range x {
			x[i] = uniform
		}
	} else {
		for i, a := range accounts {
			x[i] = quantity * (a.NAV / totalNAV)
		}
	}

	for i := range x {
		x[i] = math.Max(bounds[i][0], math.Min(bounds[i][1], x[i]))
	}
	return x
}

// solveMinDispersion runs the BFGS-then-NelderMead penalty-method cascade.
// It returns the solution vector, whether the solver converged, the
// iteration count, and the final objective value.
func solveMinDispersion(
	accounts []Account,
	sec Security,
	side Side,
	price float64,
	target TargetMetric,
	totalQuantity float64,
	bounds [][2]float64,
	maxIterations int,
) ([]float64, bool, int, float64) {
	n := len(accounts)

	derivative := make([]float64, n)
	for i, a := range accounts {
		derivative[i] = postTradeMetricDerivative(a, sec, side, price, target)
	}

	projectToBounds := func(x []float64) []float64 {
		proj := make([]float64, len(x))
		for i := range x {
			proj[i] = math.Max(bounds[i][0], math.Min(bounds[i][1], x[i]))
		}
		return proj
	}

	metricsOf := func(xProj []float64) []float64 {
		m := make([]float64, n)
		for i, a := range accounts {
			m[i] = postTradeMetrics(a, sec, side, price, xProj[i], target)
		}
		return m
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToBounds(x)
			m := metricsOf(xProj)

			sum := floats.Sum(xProj)

			variance := populationVariance(m)
			obj := variance + equalityPenaltyWeight*(sum-totalQuantity)*(sum-totalQuantity)
			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := projectToBounds(x)
			m := metricsOf(xProj)

			mean := floats.Sum(m) / float64(n)
			sum := floats.Sum(xProj)
			equalityTerm := 2 * equalityPenaltyWeight * (sum - totalQuantity)

			for i := range grad {
				grad[i] = (2.0/float64(n))*(m[i]-mean)*derivative[i] + equalityTerm
			}
		},
	}

	initial := proRataByNAVVector(accounts, totalQuantity, bounds)

	settings := &optimize.Settings{
		MajorIterations:   maxIterations,
		GradientThreshold: 1e-6,
	}

	result, err := optimize.Minimize(problem, initial, settings, &optimize.BFGS{})
	if err != nil || !isConverged(result) {
		result, err = optimize.Minimize(problem, initial, settings, &optimize.NelderMead{})
	}
	if err != nil || result == nil || !isConverged(result) {
		return nil, false, 0, 0
	}

	solution := projectToBounds(result.X)
	iterations := 0
	if result.Stats.MajorIterations > 0 {
		iterations = result.Stats.MajorIterations
	}

	return solution, true, iterations, result.F
}

func isConverged(result *optimize.Result) bool {
	if result == nil {
		return false
	}
	switch result.Status {
	case optimize.Success, optimize.GradientThreshold, optimize.FunctionConvergence:
		return true
	default:
		return false
	}
}

// postTradeMetricDerivative returns d(m_post)/d(quantity) for the given
// account, security, side, and target metric. The post-trade metric model
// is affine in the allocated quantity for ACTIVE_SPREAD_DURATION and
// DURATION (zero for OAS, which degrades to a constant, and for any
// account with zero NAV).
func postTradeMetricDerivative(a Account, sec Security, side Side, price float64, target TargetMetric) float64 {
	if a.NAV == 0 {
		return 0
	}
	sign := 1.0
	if side == Sell {
		sign = -1.0
	}
	switch target {
	case TargetDuration:
		return sign * price * sec.Duration / a.NAV
	case TargetOAS:
		return 0
	default: // ACTIVE_SPREAD_DURATION
		return sign * price * sec.SpreadDuration / a.NAV
	}
}

func populationVariance(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	mean := floats.Sum(values) / float64(n)

	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(n)
}
