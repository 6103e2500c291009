package allocation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jlancaster7/allocator-go/internal/database"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS allocation_results (
	id              TEXT PRIMARY KEY,
	created_at      TEXT NOT NULL,
	security_id     TEXT NOT NULL,
	side            TEXT NOT NULL,
	quantity        REAL NOT NULL,
	policy          TEXT NOT NULL,
	total_allocated REAL NOT NULL,
	payload         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_allocation_results_security ON allocation_results(security_id);
CREATE INDEX IF NOT EXISTS idx_allocation_results_created_at ON allocation_results(created_at);
`

// HistoryRepository is the append-only audit store for allocation results:
// every result passed to Record is stored and never mutated afterward.
type HistoryRepository struct {
	db  *database.DB
	log zerolog.Logger
}

// NewHistoryRepository opens (and migrates) the allocation-history store at
// path, using the ledger profile for maximum write durability.
func NewHistoryRepository(path string, log zerolog.Logger) (*HistoryRepository, error) {
	db, err := database.New(database.Config{Path: path, Profile: database.ProfileLedger, Name: "allocation_history"})
	if err != nil {
		return nil, fmt.Errorf("failed to open allocation history database: %w", err)
	}
	if err := db.Migrate(historySchema); err != nil {
		return nil, fmt.Errorf("failed to migrate allocation history schema: %w", err)
	}

	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "allocation_history").Logger(),
	}, nil
}

// Close closes the underlying database connection.
func (r *HistoryRepository) Close() error {
	return r.db.Conn().Close()
}

// HealthCheck reports whether the history store is reachable and
// internally consistent (connection ping plus a SQLite integrity check).
func (r *HistoryRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// Record appends an allocation result to the audit trail. Results are
// never updated or deleted once written.
func (r *HistoryRepository) Record(result AllocationResult, policy PolicyKind) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal allocation result %s: %w", result.ID, err)
	}

	query := `
		INSERT INTO allocation_results (id, created_at, security_id, side, quantity, policy, total_allocated, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.Exec(query,
		result.ID,
		result.Timestamp.Format(timeLayout),
		result.Order.SecurityID,
		string(result.Order.Side),
		result.Order.Quantity,
		string(policy),
		result.Summary.TotalAllocated,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation result %s: %w", result.ID, err)
	}

	r.log.Debug().Str("id", result.ID).Str("security_id", result.Order.SecurityID).Msg("recorded allocation result")
	return nil
}

// Get retrieves a single allocation result by ID.
func (r *HistoryRepository) Get(id string) (*AllocationResult, error) {
	row := r.db.QueryRow(`SELECT payload FROM allocation_results WHERE id = ?`, id)

	var payload string
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query allocation result %s: %w", id, err)
	}

	var result AllocationResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allocation result %s: %w", id, err)
	}
	return &result, nil
}

// ListBySecurity returns allocation results for a security, most recent
// first.
func (r *HistoryRepository) ListBySecurity(securityID string, limit int) ([]AllocationResult, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`
		SELECT payload FROM allocation_results
		WHERE security_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, securityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation results for %s: %w", securityID, err)
	}
	defer rows.Close()

	var results []AllocationResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan allocation result: %w", err)
		}
		var result AllocationResult
		if err := json.Unmarshal([]byte(payload), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allocation result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocation results: %w", err)
	}

	return results, nil
}

const timeLayout = "2006-01-02T15:04:05.999999999Z07:00"
