package allocation

import (
	"time"

	"github.com/google/uuid"
)

// Allocate is the engine's single entrypoint: it validates the order
// against the account set, then dispatches to the policy named by
// policy.Kind. A validation failure short-circuits with an empty-allocation
// result carrying the relevant error code (§4.6's entry validation order).
func Allocate(order Order, sec Security, accounts []Account, policy Policy, c Constraints) AllocationResult {
	if errs := validateEntry(order, sec, accounts, c); len(errs) > 0 {
		result := newEmptyResult(order)
		result.Errors = errs
		result.Summary.Unallocated = order.Quantity
		result.ID = uuid.NewString()
		result.Timestamp = time.Now()
		return result
	}

	var result AllocationResult
	switch policy.Kind {
	case PolicyCustomWeights:
		result = allocateCustomWeights(order, sec, accounts, policy.CustomWeights, c)
	case PolicyMinDispersion:
		params := policy.MinDispersion
		if params.TargetMetric == "" && params.Tolerance == 0 && params.MaxIterations == 0 {
			params = DefaultMinDispersionParams()
		}
		result = allocateMinDispersion(order, sec, accounts, params, c)
	default: // PolicyProRata
		result = allocateProRata(order, sec, accounts, policy.ProRata, c)
	}

	result.ID = uuid.NewString()
	result.Timestamp = time.Now()
	return result
}

// validateEntry runs the entry validation order: accounts present, positive
// quantity, positive effective price, and a minimum allocation no smaller
// than the security's minimum denomination.
func validateEntry(order Order, sec Security, accounts []Account, c Constraints) []Error {
	if len(accounts) == 0 {
		return []Error{{Code: ErrNoAccounts, Message: "no accounts provided"}}
	}
	if order.Quantity <= 0 {
		return []Error{{Code: ErrInvalidQuantity, Message: "order quantity must be positive"}}
	}
	if order.EffectivePrice(sec) <= 0 {
		return []Error{{Code: ErrInvalidPrice, Message: "effective price must be positive"}}
	}
	if c.MinAllocation < sec.MinDenomination {
		return []Error{{Code: ErrInvalidMinAllocation, Message: "min_allocation must be >= security min_denomination"}}
	}
	return nil
}
