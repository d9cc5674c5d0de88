package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/prsbot/signalbot/internal/model"
)

// SourceHealthRepository persists fetch.HealthTracker's per-source state so
// it survives a restart and can be reported by a /health endpoint.
type SourceHealthRepository struct {
	db *sqlx.DB
}

type sourceHealthRow struct {
	SourceID            string       `db:"source_id"`
	ConsecutiveFailures int          `db:"consecutive_failures"`
	TotalFetches        int64        `db:"total_fetches"`
	TotalFailures       int64        `db:"total_failures"`
	LastOKAt            sql.NullTime `db:"last_ok_at"`
	LastErrorAt         sql.NullTime `db:"last_error_at"`
	LastStatusCode      int          `db:"last_status_code"`
	LastErrorMessage    string       `db:"last_error_message"`
	Disabled            bool         `db:"disabled"`
	DisabledAt          sql.NullTime `db:"disabled_at"`
	DisabledReason      string       `db:"disabled_reason"`
}

func (r sourceHealthRow) toModel() model.SourceHealth {
	h := model.SourceHealth{
		SourceID:            r.SourceID,
		ConsecutiveFailures: r.ConsecutiveFailures,
		TotalFetches:        r.TotalFetches,
		TotalFailures:       r.TotalFailures,
		LastStatusCode:      r.LastStatusCode,
		LastErrorMessage:    r.LastErrorMessage,
		Disabled:            r.Disabled,
		DisabledReason:      r.DisabledReason,
	}
	if r.LastOKAt.Valid {
		h.LastOKAt = &r.LastOKAt.Time
	}
	if r.LastErrorAt.Valid {
		h.LastErrorAt = &r.LastErrorAt.Time
	}
	if r.DisabledAt.Valid {
		h.DisabledAt = &r.DisabledAt.Time
	}
	return h
}

// Upsert writes the latest snapshot for one source.
func (r *SourceHealthRepository) Upsert(ctx context.Context, h model.SourceHealth) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO source_health (source_id, consecutive_failures, total_fetches, total_failures, last_ok_at, last_error_at, last_status_code, last_error_message, disabled, disabled_at, disabled_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			consecutive_failures = excluded.consecutive_failures,
			total_fetches = excluded.total_fetches,
			total_failures = excluded.total_failures,
			last_ok_at = excluded.last_ok_at,
			last_error_at = excluded.last_error_at,
			last_status_code = excluded.last_status_code,
			last_error_message = excluded.last_error_message,
			disabled = excluded.disabled,
			disabled_at = excluded.disabled_at,
			disabled_reason = excluded.disabled_reason`,
		h.SourceID, h.ConsecutiveFailures, h.TotalFetches, h.TotalFailures,
		nullableTime(h.LastOKAt), nullableTime(h.LastErrorAt), h.LastStatusCode, h.LastErrorMessage,
		h.Disabled, nullableTime(h.DisabledAt), h.DisabledReason)
	if err != nil {
		return fmt.Errorf("upsert source health: %w", err)
	}
	return nil
}

// GetAll returns every tracked source's last known health snapshot.
func (r *SourceHealthRepository) GetAll(ctx context.Context) ([]model.SourceHealth, error) {
	var rows []sourceHealthRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM source_health`); err != nil {
		return nil, fmt.Errorf("get all source health: %w", err)
	}
	out := make([]model.SourceHealth, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}
