// Package freshness rejects news items older than a configured age.
//
// Grounded on freshness.py: naive-UTC comparison, STALE_NEWS / MISSING_PUBLISHED_AT
// decision codes.
package freshness

import "time"

// Result is the outcome of a freshness check.
type Result struct {
	Passed       bool
	DecisionCode string
	AgeDays      float64
}

const (
	CodePassed             = "PASSED"
	CodeStale              = "STALE_NEWS"
	CodeMissingPublishedAt = "MISSING_PUBLISHED_AT"
)

// Config mirrors the freshness gate's knobs.
type Config struct {
	MaxAgeDays           int
	AllowMissing         bool
	FallbackToCollected  bool
}

// Check decides whether an item is fresh enough to proceed, per §4.2.
// Timezone info on publishedAt is stripped before comparison; the internal
// clock is naive UTC throughout.
func Check(publishedAt *time.Time, collectedAt time.Time, cfg Config) Result {
	now := time.Now().UTC()

	var checkDate time.Time
	switch {
	case publishedAt != nil:
		checkDate = stripTZ(*publishedAt)
	case cfg.AllowMissing && cfg.FallbackToCollected:
		checkDate = stripTZ(collectedAt)
	default:
		return Result{Passed: false, DecisionCode: CodeMissingPublishedAt}
	}

	age := now.Sub(checkDate)
	ageDays := age.Hours() / 24

	if age > time.Duration(cfg.MaxAgeDays)*24*time.Hour {
		return Result{Passed: false, DecisionCode: CodeStale, AgeDays: ageDays}
	}
	return Result{Passed: true, DecisionCode: CodePassed, AgeDays: ageDays}
}

func stripTZ(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
