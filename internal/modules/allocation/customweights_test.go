package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weightAccounts() []Account {
	return []Account{
		{AccountID: "A", AccountName: "Alpha", NAV: 100_000_000, AvailableCash: 50_000_000},
		{AccountID: "B", AccountName: "Bravo", NAV: 100_000_000, AvailableCash: 50_000_000},
		{AccountID: "C", AccountName: "Charlie", NAV: 100_000_000, AvailableCash: 50_000_000},
		{AccountID: "D", AccountName: "Delta", NAV: 100_000_000, AvailableCash: 50_000_000},
		{AccountID: "E", AccountName: "Echo", NAV: 100_000_000, AvailableCash: 50_000_000},
	}
}

// S3: weights {A:0.6, B:0.2, C:0.1, D:0.05, E:0.05}, BUY 5,000,000 at 0.985.
func TestAllocateCustomWeights_S3(t *testing.T) {
	order := Order{Side: Buy, Quantity: 5_000_000}
	sec := proRataSecurity()
	weights := map[string]float64{"A": 0.6, "B": 0.2, "C": 0.1, "D": 0.05, "E": 0.05}

	result := allocateCustomWeights(order, sec, weightAccounts(), CustomWeightsParams{Weights: weights}, proRataConstraints())

	require.Empty(t, result.Errors)
	byID := map[string]float64{}
	for _, a := range result.Allocations {
		byID[a.AccountID] = a.AllocatedQuantity
	}
	assert.Equal(t, 3_000_000.0, byID["A"])
	assert.Equal(t, 1_000_000.0, byID["B"])
	assert.Equal(t, 500_000.0, byID["C"])
	assert.Equal(t, 250_000.0, byID["D"])
	assert.Equal(t, 250_000.0, byID["E"])
}

// S4: weights summing to 0.9: single fatal error INVALID_WEIGHT_SUM.
func TestAllocateCustomWeights_S4InvalidSum(t *testing.T) {
	order := Order{Side: Buy, Quantity: 5_000_000}
	weights := map[string]float64{"A": 0.5, "B": 0.4}

	result := allocateCustomWeights(order, proRataSecurity(), weightAccounts(), CustomWeightsParams{Weights: weights}, proRataConstraints())

	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrInvalidWeightSum, result.Errors[0].Code)
	assert.Empty(t, result.Allocations)
	assert.Equal(t, order.Quantity, result.Summary.Unallocated)
}

func TestAllocateCustomWeights_EmptyWeights(t *testing.T) {
	order := Order{Side: Buy, Quantity: 1000}
	result := allocateCustomWeights(order, proRataSecurity(), weightAccounts(), CustomWeightsParams{}, proRataConstraints())
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrNoWeights, result.Errors[0].Code)
}

func TestAllocateCustomWeights_NegativeWeight(t *testing.T) {
	order := Order{Side: Buy, Quantity: 1000}
	weights := map[string]float64{"A": 1.1, "B": -0.1}
	result := allocateCustomWeights(order, proRataSecurity(), weightAccounts(), CustomWeightsParams{Weights: weights}, proRataConstraints())
	var codes []ErrorCode
	for _, e := range result.Errors {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, ErrNegativeWeight)
	assert.Contains(t, codes, ErrWeightExceedsOne)
}

func TestAllocateCustomWeights_UnknownAccountDroppedWithWarning(t *testing.T) {
	order := Order{Side: Buy, Quantity: 1_000_000}
	weights := map[string]float64{"A": 0.5, "ZZZ": 0.5}
	result := allocateCustomWeights(order, proRataSecurity(), weightAccounts(), CustomWeightsParams{Weights: weights}, proRataConstraints())

	require.Empty(t, result.Errors)
	foundWarning := false
	for _, w := range result.Warnings {
		if w.Type == WarningCompliance {
			foundWarning = true
		}
	}
	assert.True(t, foundWarning)
}
