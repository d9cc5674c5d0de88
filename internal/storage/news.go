package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/prsbot/signalbot/internal/model"
)

// NewsRepository persists NewsItem rows.
type NewsRepository struct {
	db *sqlx.DB
}

type newsRow struct {
	ID             int64          `db:"id"`
	Title          string         `db:"title"`
	Text           string         `db:"text"`
	Source         string         `db:"source"`
	URL            string         `db:"url"`
	URLNormalized  string         `db:"url_normalized"`
	PublishedAt    sql.NullTime   `db:"published_at"`
	CollectedAt    time.Time      `db:"collected_at"`
	Region         sql.NullString `db:"region"`
	Filter1Score   int            `db:"filter1_score"`
	Simhash        sql.NullString `db:"simhash"`
	CanonicalRefID sql.NullInt64  `db:"canonical_ref_id"`
	Status         string         `db:"status"`
	LLMJSON        sql.NullString `db:"llm_json"`
	LLMRawResponse sql.NullString `db:"llm_raw_response"`
}

func (r newsRow) toModel() model.NewsItem {
	n := model.NewsItem{
		ID:            r.ID,
		Title:         r.Title,
		Text:          r.Text,
		Source:        r.Source,
		URL:           r.URL,
		URLNormalized: r.URLNormalized,
		CollectedAt:   r.CollectedAt,
		Filter1Score:  r.Filter1Score,
		Status:        model.Status(r.Status),
	}
	if r.PublishedAt.Valid {
		n.PublishedAt = &r.PublishedAt.Time
	}
	if r.Region.Valid {
		n.Region = &r.Region.String
	}
	if r.Simhash.Valid {
		n.Simhash = r.Simhash.String
	}
	if r.CanonicalRefID.Valid {
		n.CanonicalRefID = &r.CanonicalRefID.Int64
	}
	if r.LLMJSON.Valid {
		n.LLMJSON = &r.LLMJSON.String
	}
	if r.LLMRawResponse.Valid {
		n.LLMRawResponse = &r.LLMRawResponse.String
	}
	return n
}

// URLExists reports whether urlNormalized is already stored.
func (r *NewsRepository) URLExists(ctx context.Context, urlNormalized string) (bool, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT id FROM news WHERE url_normalized = ? LIMIT 1`, urlNormalized)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check url exists: %w", err)
	}
	return true, nil
}

// RecentSimhashes returns (id, simhash) pairs for every non-null-simhash
// item collected within the last `window`, for the deduplicator's in-memory
// cache seed.
func (r *NewsRepository) RecentSimhashes(ctx context.Context, now time.Time, window time.Duration) ([]struct {
	NewsID  int64
	Simhash string
}, error) {
	cutoff := now.Add(-window)
	rows, err := r.db.QueryContext(ctx, `SELECT id, simhash FROM news WHERE simhash IS NOT NULL AND collected_at >= ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query recent simhashes: %w", err)
	}
	defer rows.Close()

	var out []struct {
		NewsID  int64
		Simhash string
	}
	for rows.Next() {
		var id int64
		var hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("scan simhash row: %w", err)
		}
		out = append(out, struct {
			NewsID  int64
			Simhash string
		}{NewsID: id, Simhash: hash})
	}
	return out, rows.Err()
}

// Create inserts a new NewsItem and sets its ID.
func (r *NewsRepository) Create(ctx context.Context, n *model.NewsItem) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO news (title, text, source, url, url_normalized, published_at, collected_at, region, filter1_score, simhash, canonical_ref_id, status, llm_json, llm_raw_response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.Title, n.Text, n.Source, n.URL, n.URLNormalized, nullableTime(n.PublishedAt), n.CollectedAt,
		nullableString(n.Region), n.Filter1Score, nullString(n.Simhash), nullableInt64(n.CanonicalRefID),
		string(n.Status), nullableString(n.LLMJSON), nullableString(n.LLMRawResponse))
	if err != nil {
		return fmt.Errorf("insert news: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted news id: %w", err)
	}
	n.ID = id
	return nil
}

// UpdateStatus transitions a news item's status and optionally records the
// LLM output and filter1 score alongside it.
func (r *NewsRepository) UpdateStatus(ctx context.Context, newsID int64, status model.Status, llmJSON, llmRaw *string, filter1Score *int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE news SET status = ?,
			llm_json = COALESCE(?, llm_json),
			llm_raw_response = COALESCE(?, llm_raw_response),
			filter1_score = COALESCE(?, filter1_score)
		WHERE id = ?`,
		string(status), nullableString(llmJSON), nullableString(llmRaw), nullableIntPtr(filter1Score), newsID)
	if err != nil {
		return fmt.Errorf("update news status: %w", err)
	}
	return nil
}

// GetByID fetches one news item by ID.
func (r *NewsRepository) GetByID(ctx context.Context, id int64) (model.NewsItem, error) {
	var row newsRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM news WHERE id = ?`, id)
	if err != nil {
		return model.NewsItem{}, fmt.Errorf("get news by id: %w", err)
	}
	return row.toModel(), nil
}

// GetUnprocessed returns the most recently collected raw items, capped at
// limit.
func (r *NewsRepository) GetUnprocessed(ctx context.Context, limit int) ([]model.NewsItem, error) {
	var rows []newsRow
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM news WHERE status = ? ORDER BY collected_at DESC LIMIT ?`, string(model.StatusRaw), limit)
	if err != nil {
		return nil, fmt.Errorf("get unprocessed news: %w", err)
	}
	items := make([]model.NewsItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toModel())
	}
	return items, nil
}

// DeleteOlderThan removes news rows collected before cutoff, for retention.
func (r *NewsRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM news WHERE collected_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old news: %w", err)
	}
	return res.RowsAffected()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt64(i *int64) any {
	if i == nil {
		return nil
	}
	return *i
}

func nullableIntPtr(i *int) any {
	if i == nil {
		return nil
	}
	return *i
}
