package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prsbot/signalbot/internal/model"
)

// SignalRepository persists emitted Signal rows.
type SignalRepository struct {
	db *sqlx.DB
}

type signalRow struct {
	ID             int64          `db:"id"`
	NewsItemID     int64          `db:"news_item_id"`
	SentAt         time.Time      `db:"sent_at"`
	EventType      string         `db:"event_type"`
	Urgency        int            `db:"urgency"`
	ObjectType     string         `db:"object_type"`
	Region         sql.NullString `db:"region"`
	Rationale      string         `db:"rationale"`
	MessageBody    string         `db:"message_body"`
	RecipientCount int            `db:"recipient_count"`
	Feedback       sql.NullString `db:"feedback"`
}

func (r signalRow) toModel() model.Signal {
	s := model.Signal{
		ID:             r.ID,
		NewsItemID:     r.NewsItemID,
		SentAt:         r.SentAt,
		EventType:      model.EventType(r.EventType),
		Urgency:        r.Urgency,
		ObjectType:     model.ObjectType(r.ObjectType),
		Rationale:      r.Rationale,
		MessageBody:    r.MessageBody,
		RecipientCount: r.RecipientCount,
	}
	if r.Region.Valid {
		s.Region = &r.Region.String
	}
	if r.Feedback.Valid {
		s.Feedback = &r.Feedback.String
	}
	return s
}

// dayBounds returns the [start, end) window of the calendar day containing
// now, in loc.
func dayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	t := now.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return start, start.Add(24 * time.Hour)
}

// CountToday returns how many signals were sent within today's window in
// loc.
func (r *SignalRepository) CountToday(ctx context.Context, now time.Time, loc *time.Location) (int, error) {
	start, end := dayBounds(now, loc)
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM signals WHERE sent_at >= ? AND sent_at < ?`, start, end)
	if err != nil {
		return 0, fmt.Errorf("count signals today: %w", err)
	}
	return count, nil
}

// TryCreateIfUnderLimit atomically checks today's signal count against
// maxPerDay and, if under the limit, inserts s within the same transaction —
// mirroring repo.py's try_create_if_under_limit so that concurrent callers
// cannot both observe "under limit" and both insert, exceeding the cap.
func (r *SignalRepository) TryCreateIfUnderLimit(ctx context.Context, s model.Signal, maxPerDay int, loc *time.Location) (model.Signal, bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Signal{}, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	start, end := dayBounds(s.SentAt, loc)
	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM signals WHERE sent_at >= ? AND sent_at < ?`, start, end); err != nil {
		return model.Signal{}, false, fmt.Errorf("count signals today: %w", err)
	}
	if maxPerDay > 0 && count >= maxPerDay {
		return model.Signal{}, false, nil
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO signals (news_item_id, sent_at, event_type, urgency, object_type, region, rationale, message_body, recipient_count, feedback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.NewsItemID, s.SentAt, string(s.EventType), s.Urgency, string(s.ObjectType),
		nullableString(s.Region), s.Rationale, s.MessageBody, s.RecipientCount, nullableString(s.Feedback))
	if err != nil {
		return model.Signal{}, false, fmt.Errorf("insert signal: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Signal{}, false, fmt.Errorf("read inserted signal id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Signal{}, false, fmt.Errorf("commit tx: %w", err)
	}

	s.ID = id
	return s, true, nil
}

// FindSimilarRecent returns the most recent signal matching event_type,
// region, and object_type sent within the last `within` window, so the
// orchestrator can suppress a near-duplicate alert as suppressed_similar
// instead of sending a second signal for the same ongoing incident.
func (r *SignalRepository) FindSimilarRecent(ctx context.Context, eventType model.EventType, region *string, objectType model.ObjectType, now time.Time, within time.Duration) (model.Signal, bool, error) {
	cutoff := now.Add(-within)
	var row signalRow
	var err error
	if region == nil {
		err = r.db.GetContext(ctx, &row, `
			SELECT * FROM signals
			WHERE event_type = ? AND region IS NULL AND object_type = ? AND sent_at >= ?
			ORDER BY sent_at DESC LIMIT 1`,
			string(eventType), string(objectType), cutoff)
	} else {
		err = r.db.GetContext(ctx, &row, `
			SELECT * FROM signals
			WHERE event_type = ? AND region = ? AND object_type = ? AND sent_at >= ?
			ORDER BY sent_at DESC LIMIT 1`,
			string(eventType), *region, string(objectType), cutoff)
	}
	if err == sql.ErrNoRows {
		return model.Signal{}, false, nil
	}
	if err != nil {
		return model.Signal{}, false, fmt.Errorf("find similar recent signal: %w", err)
	}
	return row.toModel(), true, nil
}

// GetRecent returns signals sent within the last `days` days, most recent
// first.
func (r *SignalRepository) GetRecent(ctx context.Context, now time.Time, days int) ([]model.Signal, error) {
	cutoff := now.AddDate(0, 0, -days)
	var rows []signalRow
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM signals WHERE sent_at >= ? ORDER BY sent_at DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get recent signals: %w", err)
	}
	out := make([]model.Signal, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

// SetRecipientCount records how many subscribers a sent signal actually
// reached, once the broadcaster has finished delivering it.
func (r *SignalRepository) SetRecipientCount(ctx context.Context, signalID int64, count int) error {
	_, err := r.db.ExecContext(ctx, `UPDATE signals SET recipient_count = ? WHERE id = ?`, count, signalID)
	if err != nil {
		return fmt.Errorf("set signal recipient count: %w", err)
	}
	return nil
}

// SetFeedback records an admin +/- vote against a sent signal.
func (r *SignalRepository) SetFeedback(ctx context.Context, signalID int64, feedback string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE signals SET feedback = ? WHERE id = ?`, feedback, signalID)
	if err != nil {
		return fmt.Errorf("set signal feedback: %w", err)
	}
	return nil
}

// DeleteOlderThan removes signal rows sent before cutoff, for retention.
func (r *SignalRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM signals WHERE sent_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old signals: %w", err)
	}
	return res.RowsAffected()
}
