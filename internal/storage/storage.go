// Package storage persists the pipeline's entities to SQLite via
// database/sql, github.com/mattn/go-sqlite3, and github.com/jmoiron/sqlx's
// struct-scanning convenience layer over it — the same stack
// jordigilh-kubernaut's retrieval pack carries for local/embedded
// persistence, adopted here because this domain needs an embedded store
// rather than a network database server.
//
// Grounded on repo.py's NewsRepository/SignalRepository/SubscriberRepository/
// ConfigRepository/LockRepository, translated from SQLAlchemy's async
// session pattern to sqlx's synchronous *sqlx.DB/*sqlx.Tx handles.
package storage

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the underlying sqlx handle and exposes one repository per
// entity.
type DB struct {
	conn *sqlx.DB

	News        *NewsRepository
	Signals     *SignalRepository
	Incidents   *IncidentRepository
	Subscribers *SubscriberRepository
	Configs     *ConfigRepository
	Locks       *LockRepository
	Health      *SourceHealthRepository
	LLMUsage    *LLMUsageRepository
}

// Open connects to the SQLite database at path, creating it and its schema
// if absent.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &DB{
		conn:        conn,
		News:        &NewsRepository{db: conn},
		Signals:     &SignalRepository{db: conn},
		Incidents:   &IncidentRepository{db: conn},
		Subscribers: &SubscriberRepository{db: conn},
		Configs:     &ConfigRepository{db: conn},
		Locks:       &LockRepository{db: conn},
		Health:      &SourceHealthRepository{db: conn},
		LLMUsage:    &LLMUsageRepository{db: conn},
	}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error { return d.conn.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS news (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	text TEXT NOT NULL,
	source TEXT NOT NULL,
	url TEXT NOT NULL,
	url_normalized TEXT NOT NULL UNIQUE,
	published_at DATETIME,
	collected_at DATETIME NOT NULL,
	region TEXT,
	filter1_score INTEGER NOT NULL DEFAULT 0,
	simhash TEXT,
	canonical_ref_id INTEGER,
	status TEXT NOT NULL,
	llm_json TEXT,
	llm_raw_response TEXT
);
CREATE INDEX IF NOT EXISTS idx_news_collected_at ON news(collected_at);
CREATE INDEX IF NOT EXISTS idx_news_status ON news(status);

CREATE TABLE IF NOT EXISTS signals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	news_item_id INTEGER NOT NULL REFERENCES news(id),
	sent_at DATETIME NOT NULL,
	event_type TEXT NOT NULL,
	urgency INTEGER NOT NULL,
	object_type TEXT NOT NULL,
	region TEXT,
	rationale TEXT NOT NULL,
	message_body TEXT NOT NULL,
	recipient_count INTEGER NOT NULL DEFAULT 0,
	feedback TEXT
);
CREATE INDEX IF NOT EXISTS idx_signals_sent_at ON signals(sent_at);

CREATE TABLE IF NOT EXISTS incidents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	title TEXT NOT NULL,
	region TEXT,
	object_type TEXT NOT NULL,
	event_type TEXT NOT NULL,
	status TEXT NOT NULL,
	signal_count INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_incidents_status_updated ON incidents(status, updated_at);

CREATE TABLE IF NOT EXISTS subscribers (
	chat_id INTEGER PRIMARY KEY,
	created_at DATETIME NOT NULL,
	active BOOLEAN NOT NULL DEFAULT 1,
	last_seen DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS config_overrides (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updater_id TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS processing_locks (
	name TEXT PRIMARY KEY,
	acquired_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	holder_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS source_health (
	source_id TEXT PRIMARY KEY,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	total_fetches INTEGER NOT NULL DEFAULT 0,
	total_failures INTEGER NOT NULL DEFAULT 0,
	last_ok_at DATETIME,
	last_error_at DATETIME,
	last_status_code INTEGER NOT NULL DEFAULT 0,
	last_error_message TEXT NOT NULL DEFAULT '',
	disabled BOOLEAN NOT NULL DEFAULT 0,
	disabled_at DATETIME,
	disabled_reason TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS llm_usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	http_status INTEGER NOT NULL DEFAULT 0,
	error_category TEXT NOT NULL DEFAULT '',
	context_tag TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_llm_usage_timestamp ON llm_usage(timestamp);
`

// ErrNoRows is re-exported so callers don't need to import database/sql
// just to check for it.
var ErrNoRows = sql.ErrNoRows
