package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prsbot/signalbot/internal/model"
)

// SubscriberRepository persists chat delivery targets.
type SubscriberRepository struct {
	db *sqlx.DB
}

type subscriberRow struct {
	ChatID    int64     `db:"chat_id"`
	CreatedAt time.Time `db:"created_at"`
	Active    bool      `db:"active"`
	LastSeen  time.Time `db:"last_seen"`
}

func (r subscriberRow) toModel() model.Subscriber {
	return model.Subscriber{
		ChatID:    r.ChatID,
		CreatedAt: r.CreatedAt,
		Active:    r.Active,
		LastSeen:  r.LastSeen,
	}
}

// GetOrCreate returns the subscriber for chatID, creating it active if
// absent. SQLAlchemy's original catches the IntegrityError from a racing
// concurrent insert and re-selects; sqlite3's INSERT OR IGNORE achieves the
// same idempotence without needing to inspect a driver-specific error type.
func (r *SubscriberRepository) GetOrCreate(ctx context.Context, chatID int64, now time.Time) (model.Subscriber, bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO subscribers (chat_id, created_at, active, last_seen) VALUES (?, ?, 1, ?)`,
		chatID, now, now)
	if err != nil {
		return model.Subscriber{}, false, fmt.Errorf("insert subscriber: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return model.Subscriber{}, false, fmt.Errorf("read insert result: %w", err)
	}
	created := affected > 0

	var row subscriberRow
	if err := r.db.GetContext(ctx, &row, `SELECT * FROM subscribers WHERE chat_id = ?`, chatID); err != nil {
		return model.Subscriber{}, false, fmt.Errorf("get subscriber after insert: %w", err)
	}
	if !created {
		if _, err := r.db.ExecContext(ctx, `UPDATE subscribers SET last_seen = ? WHERE chat_id = ?`, now, chatID); err != nil {
			return model.Subscriber{}, false, fmt.Errorf("touch subscriber: %w", err)
		}
		row.LastSeen = now
	}
	return row.toModel(), created, nil
}

// SetActive flips a subscriber's delivery eligibility.
func (r *SubscriberRepository) SetActive(ctx context.Context, chatID int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE subscribers SET active = ? WHERE chat_id = ?`, active, chatID)
	if err != nil {
		return fmt.Errorf("set subscriber active: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read update result: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetActive returns every subscriber currently eligible for delivery.
func (r *SubscriberRepository) GetActive(ctx context.Context) ([]model.Subscriber, error) {
	var rows []subscriberRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT * FROM subscribers WHERE active = 1`); err != nil {
		return nil, fmt.Errorf("get active subscribers: %w", err)
	}
	out := make([]model.Subscriber, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// CountActive returns how many subscribers are currently eligible for
// delivery.
func (r *SubscriberRepository) CountActive(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM subscribers WHERE active = 1`); err != nil {
		return 0, fmt.Errorf("count active subscribers: %w", err)
	}
	return count, nil
}

// ActiveChatIDs satisfies broadcast.SubscriberLister: the chat IDs of every
// subscriber currently eligible for delivery.
func (r *SubscriberRepository) ActiveChatIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, `SELECT chat_id FROM subscribers WHERE active = 1`); err != nil {
		return nil, fmt.Errorf("list active chat ids: %w", err)
	}
	return ids, nil
}

// Deactivate satisfies broadcast.Deactivator: it marks chatID ineligible
// after the chat provider reports it as permanently unreachable.
func (r *SubscriberRepository) Deactivate(ctx context.Context, chatID int64) error {
	return r.SetActive(ctx, chatID, false)
}
