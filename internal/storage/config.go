package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ConfigRepository persists the dotted-path override rows applied on top of
// the typed config tree.
type ConfigRepository struct {
	db *sqlx.DB
}

// GetAll returns every stored override as a flat key/value map.
func (r *ConfigRepository) GetAll(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM config_overrides`)
	if err != nil {
		return nil, fmt.Errorf("get all config overrides: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan config override row: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Set upserts a single override, recording which admin applied it.
func (r *ConfigRepository) Set(ctx context.Context, key, value, updaterID string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config_overrides (key, value, updater_id, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updater_id = excluded.updater_id, updated_at = excluded.updated_at`,
		key, value, updaterID, now)
	if err != nil {
		return fmt.Errorf("set config override: %w", err)
	}
	return nil
}

// Delete removes an override, reporting whether one existed.
func (r *ConfigRepository) Delete(ctx context.Context, key string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM config_overrides WHERE key = ?`, key)
	if err != nil {
		return false, fmt.Errorf("delete config override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read delete result: %w", err)
	}
	return n > 0, nil
}
