package model

import "time"

// Subscriber is a delivery target. No personal identifiers are stored here —
// ChatID is an opaque handle assigned by the chat provider.
type Subscriber struct {
	ChatID    int64
	CreatedAt time.Time
	Active    bool
	LastSeen  time.Time
}

// ConfigOverride is a single dotted-path override applied on top of the
// typed config tree.
type ConfigOverride struct {
	Key       string
	Value     string
	UpdaterID string
	UpdatedAt time.Time
}

// ProcessingLock is a cross-instance exclusion lock row.
type ProcessingLock struct {
	Name      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
	HolderID   string
}

// SourceHealth tracks per-source fetch outcomes.
type SourceHealth struct {
	SourceID           string
	ConsecutiveFailures int
	TotalFetches        int64
	TotalFailures       int64
	LastOKAt            *time.Time
	LastErrorAt         *time.Time
	LastStatusCode      int
	LastErrorMessage    string
	Disabled            bool
	DisabledAt          *time.Time
	DisabledReason      string
}

// LLMUsageEntry is one append-only ledger row recording an LLM call attempt.
type LLMUsageEntry struct {
	ID               int64
	Timestamp        time.Time
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	LatencyMS        int64
	HTTPStatus       int
	ErrorCategory    string
	ContextTag       string
}
