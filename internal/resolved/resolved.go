// Package resolved rejects news about events already fixed or resolved,
// unless ongoing-indicator words show the situation is still developing.
//
// Grounded on resolved.py's check_resolved.
package resolved

import "strings"

// Result is the outcome of a resolved-event check.
type Result struct {
	Passed          bool
	DecisionCode    string
	MatchedPhrases  []string
	OngoingDetected bool
}

const (
	CodeDisabled = "FILTER_DISABLED"
	CodeResolved = "RESOLVED_EVENT"
	CodePassed   = "PASSED"
)

const checkWindowChars = 1500

// Config carries the phrase lists the gate scans for.
type Config struct {
	Enabled             bool
	HardResolvedPhrases []string
	SoftResolvedWords   []string
	AllowIfStillOngoing []string
}

// Check runs the three-step decision: ongoing indicators first, then hard
// phrases, then soft words only absent a hard match; an ongoing indicator
// anywhere overrides any phrase match.
func Check(title, text string, cfg Config) Result {
	if !cfg.Enabled {
		return Result{Passed: true, DecisionCode: CodeDisabled}
	}

	combined := strings.ToLower(title + " " + text)
	if r := []rune(combined); len(r) > checkWindowChars {
		combined = string(r[:checkWindowChars])
	}

	ongoing := containsAny(combined, cfg.AllowIfStillOngoing)

	var matched []string
	for _, phrase := range cfg.HardResolvedPhrases {
		if strings.Contains(combined, strings.ToLower(phrase)) {
			matched = append(matched, phrase)
		}
	}
	if len(matched) == 0 {
		for _, word := range cfg.SoftResolvedWords {
			if strings.Contains(combined, strings.ToLower(word)) {
				matched = append(matched, word)
			}
		}
	}

	if len(matched) > 0 && !ongoing {
		return Result{Passed: false, DecisionCode: CodeResolved, MatchedPhrases: matched}
	}
	return Result{Passed: true, DecisionCode: CodePassed, MatchedPhrases: matched, OngoingDetected: ongoing}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
