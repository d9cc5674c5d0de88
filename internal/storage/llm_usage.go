package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prsbot/signalbot/internal/model"
)

// LLMUsageRepository is the append-only ledger of LLM call attempts, used
// both for cost auditing and to restore llm.Budget's daily spend after a
// restart.
type LLMUsageRepository struct {
	db *sqlx.DB
}

// Record appends one usage entry.
func (r *LLMUsageRepository) Record(ctx context.Context, e model.LLMUsageEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO llm_usage (timestamp, provider, model, prompt_tokens, completion_tokens, cost_usd, latency_ms, http_status, error_category, context_tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp, e.Provider, e.Model, e.PromptTokens, e.CompletionTokens, e.CostUSD, e.LatencyMS,
		e.HTTPStatus, e.ErrorCategory, e.ContextTag)
	if err != nil {
		return fmt.Errorf("record llm usage: %w", err)
	}
	return nil
}

// SpentToday sums cost_usd for entries whose timestamp falls in the
// calendar day containing now, in loc — used to seed llm.Budget on startup
// so a restart mid-day doesn't reset the spend counter to zero.
func (r *LLMUsageRepository) SpentToday(ctx context.Context, now time.Time, loc *time.Location) (float64, error) {
	start, end := dayBounds(now, loc)
	var total float64
	err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(cost_usd), 0) FROM llm_usage WHERE timestamp >= ? AND timestamp < ?`, start, end)
	if err != nil {
		return 0, fmt.Errorf("sum llm usage today: %w", err)
	}
	return total, nil
}

// DeleteOlderThan removes ledger rows older than cutoff, for retention.
func (r *LLMUsageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM llm_usage WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old llm usage: %w", err)
	}
	return res.RowsAffected()
}
