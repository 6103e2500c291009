package allocation

import "sort"

// allocateProRata implements the pro-rata policy (C4): weights accounts by
// a size metric, projects each target through the feasibility projector
// (C3), then redistributes any shortfall one lot at a time in
// descending-NAV order (see distributeByAccountOrder).
func allocateProRata(order Order, sec Security, accounts []Account, params ProRataParams, c Constraints) AllocationResult {
	price := order.EffectivePrice(sec)

	sizes := make([]float64, len(accounts))
	var total float64
	for i, a := range accounts {
		sizes[i] = sizeMetric(a, params.BaseMetric)
		total += sizes[i]
	}

	result := newEmptyResult(order)

	if total == 0 {
		result.Summary.Unallocated = order.Quantity
		result.Summary.SkippedAccountCount = len(accounts)
		return result
	}

	targets := make([]float64, len(accounts))
	for i, s := range sizes {
		targets[i] = order.Quantity * (s / total)
	}

	initial := make([]float64, len(accounts))
	var warnings []Warning
	for i, a := range accounts {
		q, w := projectFeasible(targets[i], a, sec, order.Side, price, c)
		initial[i] = q
		warnings = append(warnings, w...)
	}

	var sum float64
	for _, q := range initial {
		sum += q
	}

	final := initial
	if sum < order.Quantity && sec.MinDenomination > 0 {
		navOrder := make([]int, len(accounts))
		for i := range navOrder {
			navOrder[i] = i
		}
		sort.SliceStable(navOrder, func(a, b int) bool {
			ia, ib := navOrder[a], navOrder[b]
			if accounts[ia].NAV != accounts[ib].NAV {
				return accounts[ia].NAV > accounts[ib].NAV
			}
			return accounts[ia].AccountID < accounts[ib].AccountID
		})

		// C2's own ranking is by fractional part; C4 instead visits
		// accounts in descending-NAV order (tie-break by account ID) when
		// distributing the pro-rata remainder, so the redistribution loop
		// is driven directly with that ranking rather than via roundToLots.
		final = distributeByAccountOrder(initial, sec.MinDenomination, order.Quantity, navOrder, func(i int, candidate float64) bool {
			return stillFeasible(i, candidate, accounts[i], sec, order.Side, price, c)
		})
	}

	for i, a := range accounts {
		if final[i] == 0 && order.Side == Buy && a.AvailableCash < c.MinAllocation*price {
			warnings = append(warnings, Warning{
				Type:      WarningInsufficientCash,
				AccountID: a.AccountID,
				Message:   "cash below minimum allocation threshold",
			})
		}
	}

	return buildResult(order, sec, accounts, final, warnings, price)
}

// sizeMetric resolves an account's weighting size for pro-rata allocation.
// MARKET_VALUE currently degrades to NAV (documented simplification);
// CUSTOM falls back to NAV when the account has no custom metric set.
func sizeMetric(a Account, metric BaseMetric) float64 {
	switch metric {
	case MetricCustom:
		if a.CustomMetric != 0 {
			return a.CustomMetric
		}
		return a.NAV
	default: // NAV, MARKET_VALUE
		return a.NAV
	}
}

// stillFeasible reports whether an account could still accept the
// candidate quantity, respecting cash (BUY), position (SELL), and
// concentration limits.
func stillFeasible(_ int, candidate float64, a Account, sec Security, side Side, price float64, c Constraints) bool {
	if side == Buy && c.RespectCash {
		if candidate*price > a.AvailableCash {
			return false
		}
	}
	if side == Sell && candidate > a.CurrentPosition {
		return false
	}
	if c.MaxConcentration > 0 && candidate*price > c.MaxConcentration*a.NAV {
		return false
	}
	return true
}

// distributeByAccountOrder redistributes the shortfall between Σinitial
// and target, visiting accounts in the given priority order and adding one
// lot at a time to the highest-priority account that still accepts it,
// exactly as C2 specifies but with an externally supplied ranking (C4's
// descending-NAV tie-break instead of C2's own fractional-part ranking).
func distributeByAccountOrder(initial []float64, lot float64, target float64, order []int, feasible feasiblePredicate) []float64 {
	result := make([]float64, len(initial))
	copy(result, initial)

	var sum float64
	for _, v := range result {
		sum += v
	}
	remainder := target - sum

	for remainder >= lot {
		assigned := false
		for _, i := range order {
			candidate := result[i] + lot
			if feasible(i, candidate) {
				result[i] = candidate
				remainder -= lot
				assigned = true
				break
			}
		}
		if !assigned {
			break
		}
	}

	return result
}

func newEmptyResult(order Order) AllocationResult {
	return AllocationResult{
		Order:       order,
		Allocations: nil,
		Summary:     Summary{},
	}
}

// buildResult assembles the final AllocationResult from per-account
// allocated quantities, computing notional, cash, and metric fields for
// every account that received a non-zero allocation.
func buildResult(order Order, sec Security, accounts []Account, allocated []float64, warnings []Warning, price float64) AllocationResult {
	result := newEmptyResult(order)
	result.Warnings = warnings

	var totalAllocated float64
	allocatedCount := 0
	skippedCount := 0

	for i, a := range accounts {
		q := allocated[i]
		if q <= 0 {
			skippedCount++
			continue
		}
		allocatedCount++
		totalAllocated += q

		notional := q * price
		cashUsed := 0.0
		postCash := a.AvailableCash
		if order.Side == Buy {
			cashUsed = notional
			postCash = a.AvailableCash - notional
		}

		result.Allocations = append(result.Allocations, AccountAllocation{
			AccountID:         a.AccountID,
			AccountName:       a.AccountName,
			AllocatedQuantity: q,
			AllocatedNotional: notional,
			PreTradeCash:      a.AvailableCash,
			PostTradeCash:     postCash,
			PreTradeMetrics:   preTradeMetrics(a),
			PostTradeMetrics: Metrics{
				ActiveSpreadDuration: postTradeMetrics(a, sec, order.Side, price, q, TargetActiveSpreadDuration),
				Duration:             postTradeMetrics(a, sec, order.Side, price, q, TargetDuration),
				OAS:                  postTradeMetrics(a, sec, order.Side, price, q, TargetOAS),
			},
			CashUsed: cashUsed,
		})
	}

	rate := 0.0
	if order.Quantity > 0 {
		rate = totalAllocated / order.Quantity
	}

	result.Summary = Summary{
		TotalAllocated:        totalAllocated,
		Unallocated:           order.Quantity - totalAllocated,
		AllocationRate:        rate,
		AllocatedAccountCount: allocatedCount,
		SkippedAccountCount:   skippedCount,
	}

	return result
}
