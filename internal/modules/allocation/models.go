// Package allocation implements the block-order allocation engine: given a
// single order and a set of portfolio accounts, it decides how much of the
// order each account receives under a chosen allocation policy.
package allocation

import "time"

// Side is the direction of a block order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// BaseMetric selects the per-account size used to weight a pro-rata
// allocation.
type BaseMetric string

const (
	MetricNAV         BaseMetric = "NAV"
	MetricMarketValue BaseMetric = "MARKET_VALUE"
	MetricCustom      BaseMetric = "CUSTOM"
)

// TargetMetric selects the risk metric a minimum-dispersion allocation
// minimizes the cross-account spread of.
type TargetMetric string

const (
	TargetActiveSpreadDuration TargetMetric = "ACTIVE_SPREAD_DURATION"
	TargetDuration             TargetMetric = "DURATION"
	TargetOAS                  TargetMetric = "OAS"
)

// PolicyKind identifies which allocation policy an order should run under.
type PolicyKind string

const (
	PolicyProRata       PolicyKind = "PRO_RATA"
	PolicyCustomWeights PolicyKind = "CUSTOM_WEIGHTS"
	PolicyMinDispersion PolicyKind = "MIN_DISPERSION"
)

// Policy is a tagged union over the three allocation policies. Exactly the
// parameter block matching Kind should be populated; the others are zero
// values and ignored.
type Policy struct {
	Kind PolicyKind

	ProRata       ProRataParams
	CustomWeights CustomWeightsParams
	MinDispersion MinDispersionParams
}

// ProRataParams parameterizes the pro-rata policy (C4).
type ProRataParams struct {
	BaseMetric BaseMetric
}

// CustomWeightsParams parameterizes the custom-weights policy (C5).
type CustomWeightsParams struct {
	// Weights maps account ID to a weight in [0,1]; values must sum to 1
	// within 1e-3.
	Weights map[string]float64
}

// MinDispersionParams parameterizes the minimum-dispersion policy (C6).
type MinDispersionParams struct {
	TargetMetric  TargetMetric
	Tolerance     float64
	MaxIterations int
}

// DefaultMinDispersionParams returns the spec-default parameters: target
// ACTIVE_SPREAD_DURATION, 5% tolerance, 1000 iteration cap.
func DefaultMinDispersionParams() MinDispersionParams {
	return MinDispersionParams{
		TargetMetric:  TargetActiveSpreadDuration,
		Tolerance:     0.05,
		MaxIterations: 1000,
	}
}

// Account is one portfolio account eligible to receive a share of an order.
type Account struct {
	AccountID   string
	AccountName string

	// NAV is the account's net asset value, > 0.
	NAV float64
	// AvailableCash is cash on hand, >= 0.
	AvailableCash float64
	// CurrentPosition is the account's current holding of the traded
	// security, >= 0.
	CurrentPosition float64

	// Current risk metrics, used as the pre-trade baseline and as inputs
	// to the post-trade metric model (C7).
	ActiveSpreadDuration float64
	PortfolioDuration    float64
	SpreadDuration       float64
	OAS                  float64

	// CustomMetric backs BaseMetric=CUSTOM pro-rata weighting; if unset
	// (zero value) the engine falls back to NAV.
	CustomMetric float64
}

// Security describes the instrument being traded.
type Security struct {
	CUSIP string

	// Price is the unit price, > 0, used unless the order carries an
	// override.
	Price float64

	Duration       float64
	SpreadDuration float64
	OAS            float64

	// MinDenomination is the minimum lot size; all allocated quantities
	// must be integer multiples of it.
	MinDenomination float64
}

// Order is the block order to allocate across accounts.
type Order struct {
	SecurityID     string
	Side           Side
	Quantity       float64
	SettlementDate time.Time

	// Price, when positive, overrides the security's price.
	Price float64
}

// EffectivePrice returns the order's price override if set, else the
// security's price.
func (o Order) EffectivePrice(sec Security) float64 {
	if o.Price > 0 {
		return o.Price
	}
	return sec.Price
}

// Constraints bounds how aggressively an order may be allocated.
type Constraints struct {
	RespectCash bool

	// MinAllocation is the minimum non-zero quantity an account may
	// receive; must be >= security.MinDenomination.
	MinAllocation float64

	RoundToDenomination bool

	// ComplianceCheck is reserved for future compliance-rule wiring; it
	// has no effect on the current allocation math.
	ComplianceCheck bool

	// MaxConcentration, when > 0, caps an account's allocated notional
	// as a fraction of its NAV.
	MaxConcentration float64
}

// AccountAllocation is one account's slice of the allocated order.
type AccountAllocation struct {
	AccountID   string
	AccountName string

	AllocatedQuantity float64
	AllocatedNotional float64

	PreTradeCash  float64
	PostTradeCash float64

	PreTradeMetrics  Metrics
	PostTradeMetrics Metrics

	CashUsed float64
}

// Metrics is a snapshot of an account's risk profile with respect to the
// traded security, used for both the pre-trade baseline and the post-trade
// projection (C7).
type Metrics struct {
	ActiveSpreadDuration float64
	Duration             float64
	OAS                  float64
}

// DispersionMetrics summarizes cross-account dispersion of the target
// metric before and after allocation, produced by the minimum-dispersion
// policy (C6).
type DispersionMetrics struct {
	TargetMetric TargetMetric

	PreTradeStdDev  float64
	PostTradeStdDev float64

	// Improvement is (pre - post) / pre, or 0 if pre is 0.
	Improvement float64

	MaxDeviation float64
	MinDeviation float64

	// TargetValue is the mean post-trade metric across allocated
	// accounts.
	TargetValue float64

	WithinTolerance bool

	OptimizationSuccess bool
	Iterations          int
	FinalObjective      float64
}

// Summary aggregates the result of an allocation call.
type Summary struct {
	TotalAllocated float64
	Unallocated    float64
	AllocationRate float64

	AllocatedAccountCount int
	SkippedAccountCount   int

	Dispersion *DispersionMetrics
}

// AllocationResult is the single output of an allocate call.
type AllocationResult struct {
	ID        string
	Timestamp time.Time
	Order     Order

	Allocations []AccountAllocation
	Summary     Summary

	Warnings []Warning
	Errors   []Error
}
