package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// LockRepository implements a cross-instance mutual-exclusion lock backed
// by a single-row-per-name table, mirroring repo.py's LockRepository.
type LockRepository struct {
	db *sqlx.DB
}

// Acquire takes the named lock for duration, unless it's already held by
// someone else and not yet expired. The read-check-write happens inside one
// transaction so two processes racing to acquire the same lock can't both
// succeed.
func (r *LockRepository) Acquire(ctx context.Context, name, holderID string, now time.Time, duration time.Duration) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var expiresAt time.Time
	err = tx.GetContext(ctx, &expiresAt, `SELECT expires_at FROM processing_locks WHERE name = ?`, name)
	switch {
	case err == sql.ErrNoRows:
		// no existing lock row, fall through to insert
	case err != nil:
		return false, fmt.Errorf("read lock: %w", err)
	default:
		if expiresAt.After(now) {
			return false, nil
		}
	}

	newExpiry := now.Add(duration)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO processing_locks (name, acquired_at, expires_at, holder_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET acquired_at = excluded.acquired_at, expires_at = excluded.expires_at, holder_id = excluded.holder_id`,
		name, now, newExpiry, holderID)
	if err != nil {
		return false, fmt.Errorf("write lock: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

// Release drops the named lock only if currently held by holderID, so a
// stale holder past its own expiry can't clobber someone else's lock.
func (r *LockRepository) Release(ctx context.Context, name, holderID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM processing_locks WHERE name = ? AND holder_id = ?`, name, holderID)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
