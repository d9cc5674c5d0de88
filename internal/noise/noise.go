// Package noise rejects death/crime/domestic items that aren't genuine
// infrastructure incidents, while letting a matching infrastructure phrase
// override the rejection.
//
// Grounded on noise.py's check_noise.
package noise

import "strings"

// Result is the outcome of a noise check.
type Result struct {
	Passed           bool
	DecisionCode     string
	MatchedTerms     []string
	ExceptionMatched bool
}

const (
	CodeDisabled        = "FILTER_DISABLED"
	CodePassed          = "PASSED"
	CodePassedException = "PASSED_WITH_EXCEPTION"
	CodeHardTopic       = "NOISE_HARD_TOPIC"
)

const matchWindowChars = 800

// Config carries the keyword lists the gate scans for.
type Config struct {
	Enabled               bool
	HardNegativeTopics    []string
	DomesticNoise         []string
	ExceptionInfraPhrases []string
}

// Check scans title plus the first matchWindowChars characters of text for
// noise terms; a match there is forgiven if an infrastructure exception
// phrase appears anywhere in the full title+text.
func Check(title, text string, cfg Config) Result {
	if !cfg.Enabled {
		return Result{Passed: true, DecisionCode: CodeDisabled}
	}

	combined := strings.ToLower(title + " " + text)
	checkText := strings.ToLower(title) + " " + strings.ToLower(truncate(text, matchWindowChars))

	var matched []string
	for _, topic := range cfg.HardNegativeTopics {
		if strings.Contains(checkText, strings.ToLower(topic)) {
			matched = append(matched, topic)
		}
	}
	for _, noise := range cfg.DomesticNoise {
		if strings.Contains(checkText, strings.ToLower(noise)) {
			matched = append(matched, noise)
		}
	}
	if len(matched) == 0 {
		return Result{Passed: true, DecisionCode: CodePassed}
	}

	for _, phrase := range cfg.ExceptionInfraPhrases {
		if strings.Contains(combined, strings.ToLower(phrase)) {
			return Result{Passed: true, DecisionCode: CodePassedException, MatchedTerms: matched, ExceptionMatched: true}
		}
	}

	return Result{Passed: false, DecisionCode: CodeHardTopic, MatchedTerms: matched}
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n])
	}
	return s
}
