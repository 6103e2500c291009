package allocation

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-go/internal/scheduler"
)

// PendingOrder is a block order awaiting periodic re-evaluation against a
// refreshed account snapshot.
type PendingOrder struct {
	ID          string
	Order       Order
	Security    Security
	Policy      Policy
	Constraints Constraints
}

// AccountSnapshotProvider supplies an up-to-date account set for a
// security, refreshed independently of the allocation engine.
type AccountSnapshotProvider interface {
	Accounts(securityID string) ([]Account, error)
}

// PendingOrderStore lists orders still awaiting a final allocation.
type PendingOrderStore interface {
	PendingOrders() ([]PendingOrder, error)
}

// ReevaluationJob re-runs Allocate for every pending order against a fresh
// account snapshot and records the result if it materially differs from
// the last recorded run for that security.
type ReevaluationJob struct {
	orders   PendingOrderStore
	accounts AccountSnapshotProvider
	history  *HistoryRepository
	log      zerolog.Logger
}

// NewReevaluationJob builds a ReevaluationJob for registration with
// scheduler.Scheduler.
func NewReevaluationJob(orders PendingOrderStore, accounts AccountSnapshotProvider, history *HistoryRepository, log zerolog.Logger) *ReevaluationJob {
	return &ReevaluationJob{
		orders:   orders,
		accounts: accounts,
		history:  history,
		log:      log.With().Str("job", "allocation_reevaluation").Logger(),
	}
}

// Name implements scheduler.Job.
func (j *ReevaluationJob) Name() string { return "allocation_reevaluation" }

// Run implements scheduler.Job: it re-allocates every pending order and
// records any material change. A per-order failure is logged and skipped
// rather than aborting the whole batch.
func (j *ReevaluationJob) Run() error {
	pending, err := j.orders.PendingOrders()
	if err != nil {
		return fmt.Errorf("failed to list pending orders: %w", err)
	}

	for _, p := range pending {
		accounts, err := j.accounts.Accounts(p.Order.SecurityID)
		if err != nil {
			j.log.Error().Err(err).Str("order_id", p.ID).Msg("failed to fetch account snapshot")
			continue
		}

		result := Allocate(p.Order, p.Security, accounts, p.Policy, p.Constraints)

		changed, err := j.materiallyChanged(result)
		if err != nil {
			j.log.Error().Err(err).Str("order_id", p.ID).Msg("failed to compare against last recorded allocation")
			continue
		}
		if !changed {
			continue
		}

		if err := j.history.Record(result, p.Policy.Kind); err != nil {
			j.log.Error().Err(err).Str("order_id", p.ID).Msg("failed to record re-evaluated allocation")
			continue
		}

		j.log.Info().
			Str("order_id", p.ID).
			Float64("total_allocated", result.Summary.TotalAllocated).
			Msg("recorded re-evaluated allocation")
	}

	return nil
}

// materiallyChanged reports whether result's total allocated quantity
// differs from the most recently recorded result for the same security by
// more than a rounding epsilon.
func (j *ReevaluationJob) materiallyChanged(result AllocationResult) (bool, error) {
	previous, err := j.history.ListBySecurity(result.Order.SecurityID, 1)
	if err != nil {
		return false, err
	}
	if len(previous) == 0 {
		return true, nil
	}

	const epsilon = 1e-6
	return absf(previous[0].Summary.TotalAllocated-result.Summary.TotalAllocated) > epsilon, nil
}

var _ scheduler.Job = (*ReevaluationJob)(nil)
