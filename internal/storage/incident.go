package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prsbot/signalbot/internal/model"
)

// IncidentRepository clusters related signals into Incident rows so that
// repeated coverage of the same outage doesn't read as N separate events.
type IncidentRepository struct {
	db *sqlx.DB
}

type incidentRow struct {
	ID          int64          `db:"id"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
	Title       string         `db:"title"`
	Region      sql.NullString `db:"region"`
	ObjectType  string         `db:"object_type"`
	EventType   string         `db:"event_type"`
	Status      string         `db:"status"`
	SignalCount int            `db:"signal_count"`
}

func (r incidentRow) toModel() model.Incident {
	i := model.Incident{
		ID:          r.ID,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Title:       r.Title,
		ObjectType:  model.ObjectType(r.ObjectType),
		EventType:   model.EventType(r.EventType),
		Status:      model.IncidentStatus(r.Status),
		SignalCount: r.SignalCount,
	}
	if r.Region.Valid {
		i.Region = &r.Region.String
	}
	return i
}

// FindOpenCluster looks for an open incident matching region+objectType+
// eventType whose last update falls within `within` of now, to decide
// whether a new signal should join an existing cluster instead of opening a
// new one.
func (r *IncidentRepository) FindOpenCluster(ctx context.Context, region *string, objectType model.ObjectType, eventType model.EventType, now time.Time, within time.Duration) (model.Incident, bool, error) {
	cutoff := now.Add(-within)
	var row incidentRow
	var err error
	if region == nil {
		err = r.db.GetContext(ctx, &row, `
			SELECT * FROM incidents
			WHERE status = ? AND region IS NULL AND object_type = ? AND event_type = ? AND updated_at >= ?
			ORDER BY updated_at DESC LIMIT 1`,
			string(model.IncidentOpen), string(objectType), string(eventType), cutoff)
	} else {
		err = r.db.GetContext(ctx, &row, `
			SELECT * FROM incidents
			WHERE status = ? AND region = ? AND object_type = ? AND event_type = ? AND updated_at >= ?
			ORDER BY updated_at DESC LIMIT 1`,
			string(model.IncidentOpen), *region, string(objectType), string(eventType), cutoff)
	}
	if err == sql.ErrNoRows {
		return model.Incident{}, false, nil
	}
	if err != nil {
		return model.Incident{}, false, fmt.Errorf("find open incident cluster: %w", err)
	}
	return row.toModel(), true, nil
}

// Create inserts a new open incident seeded by its first signal.
func (r *IncidentRepository) Create(ctx context.Context, inc *model.Incident) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO incidents (created_at, updated_at, title, region, object_type, event_type, status, signal_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inc.CreatedAt, inc.UpdatedAt, inc.Title, nullableString(inc.Region), string(inc.ObjectType),
		string(inc.EventType), string(inc.Status), inc.SignalCount)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted incident id: %w", err)
	}
	inc.ID = id
	return nil
}

// IncrementAndTouch bumps signal_count by one and refreshes updated_at on an
// existing incident, so later lookups see it as the freshest cluster.
func (r *IncidentRepository) IncrementAndTouch(ctx context.Context, id int64, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE incidents SET signal_count = signal_count + 1, updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("touch incident: %w", err)
	}
	return nil
}

// Close marks an incident closed, e.g. once it falls out of the clustering
// window without new coverage.
func (r *IncidentRepository) Close(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE incidents SET status = ? WHERE id = ?`, string(model.IncidentClosed), id)
	if err != nil {
		return fmt.Errorf("close incident: %w", err)
	}
	return nil
}

// CloseStale closes every open incident whose last update is older than
// cutoff, so abandoned clusters don't keep absorbing unrelated signals.
func (r *IncidentRepository) CloseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE incidents SET status = ? WHERE status = ? AND updated_at < ?`,
		string(model.IncidentClosed), string(model.IncidentOpen), cutoff)
	if err != nil {
		return 0, fmt.Errorf("close stale incidents: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOlderThan removes incident rows created before cutoff, for
// retention.
func (r *IncidentRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM incidents WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old incidents: %w", err)
	}
	return res.RowsAffected()
}
