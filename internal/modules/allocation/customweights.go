package allocation

import (
	"fmt"
	"sort"
)

const weightSumTolerance = 1e-3

// allocateCustomWeights implements the custom-weights policy (C5):
// validates the weight vector, projects each weighted target through the
// feasibility projector (C3), then redistributes any shortfall only to
// accounts that already received a non-zero allocation (see
// redistributeToSuccessfulAccounts for the order in which they absorb it).
func allocateCustomWeights(order Order, sec Security, accounts []Account, params CustomWeightsParams, c Constraints) AllocationResult {
	if errs := validateWeights(params.Weights); len(errs) > 0 {
		result := newEmptyResult(order)
		result.Errors = errs
		result.Summary.Unallocated = order.Quantity
		return result
	}

	price := order.EffectivePrice(sec)

	byID := make(map[string]Account, len(accounts))
	for _, a := range accounts {
		byID[a.AccountID] = a
	}

	var warnings []Warning
	allocated := make([]float64, len(accounts))
	indexByID := make(map[string]int, len(accounts))
	for i, a := range accounts {
		indexByID[a.AccountID] = i
	}

	for accountID, w := range params.Weights {
		a, ok := byID[accountID]
		if !ok {
			warnings = append(warnings, Warning{
				Type:    WarningCompliance,
				Message: fmt.Sprintf("weight references unknown account %s, dropped", accountID),
			})
			continue
		}
		if w <= 0 {
			continue
		}
		target := order.Quantity * w
		q, ws := projectFeasible(target, a, sec, order.Side, price, c)
		allocated[indexByID[accountID]] = q
		warnings = append(warnings, ws...)
	}

	var sum float64
	for _, q := range allocated {
		sum += q
	}

	if sum < order.Quantity && sec.MinDenomination > 0 {
		allocated = redistributeToSuccessfulAccounts(order, sec, accounts, allocated, price, c)
	}

	return buildResult(order, sec, accounts, allocated, warnings, price)
}

// validateWeights runs C5's fatal validation checks (all fatal, producing
// an error result): empty weights, sum deviating from 1 by more than
// weightSumTolerance, any negative weight, any weight exceeding 1.
func validateWeights(weights map[string]float64) []Error {
	if len(weights) == 0 {
		return []Error{{Code: ErrNoWeights, Message: "no weights provided"}}
	}

	var errs []Error
	var sum float64
	for _, w := range weights {
		sum += w
		if w < 0 {
			errs = append(errs, Error{Code: ErrNegativeWeight, Message: "weight must be non-negative"})
		}
		if w > 1 {
			errs = append(errs, Error{Code: ErrWeightExceedsOne, Message: "weight must not exceed 1"})
		}
	}
	if absf(sum-1.0) > weightSumTolerance {
		errs = append(errs, Error{Code: ErrInvalidWeightSum, Message: fmt.Sprintf("weights sum to %f, expected 1.0 within %.0e", sum, weightSumTolerance)})
	}
	return errs
}

// redistributeToSuccessfulAccounts distributes the shortfall between
// Σallocated and the order quantity only to accounts that already
// received a non-zero allocation, visiting them in descending
// current-allocation order (ties by account ID). Each lot goes to the
// first account in that order that can still accept it, so the largest
// allocation absorbs the shortfall until it hits a feasibility limit; the
// shortfall is not split proportionally across the accounts.
func redistributeToSuccessfulAccounts(order Order, sec Security, accounts []Account, allocated []float64, price float64, c Constraints) []float64 {
	candidates := make([]int, 0, len(accounts))
	for i, q := range allocated {
		if q > 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return allocated
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		ia, ib := candidates[a], candidates[b]
		if allocated[ia] != allocated[ib] {
			return allocated[ia] > allocated[ib]
		}
		return accounts[ia].AccountID < accounts[ib].AccountID
	})

	return distributeByAccountOrder(allocated, sec.MinDenomination, order.Quantity, candidates, func(i int, candidate float64) bool {
		return stillFeasible(i, candidate, accounts[i], sec, order.Side, price, c)
	})
}
