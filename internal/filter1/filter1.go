// Package filter1 implements the weighted keyword scoring gate: each
// positive category contributes its weight once if any of its keywords match, negative
// keywords subtract, and a combo rule can require an event category and an
// object category to both be present before sending to the LLM.
//
// Grounded on filter1.py's KeywordFilter.
package filter1

import "strings"

// Keywords holds the positive category->terms map and the negative list.
type Keywords struct {
	Positive map[string][]string
	Negative []string
}

// Weights maps a positive category name to its score contribution, plus the
// (usually negative) weight applied per negative-keyword match.
type Weights struct {
	Category map[string]int
	Negative int
}

// Result is the outcome of scoring a combined title+text string.
type Result struct {
	Score             int
	PositiveMatches   []string
	NegativeMatches   []string
	CategoriesMatched []string
	Passed            bool
}

// Config bundles the scorer's tunables.
type Config struct {
	Keywords                   Keywords
	Weights                    Weights
	Threshold                  int
	RequireCombo               bool
	EventCategories            []string
	ObjectCategories           []string
	StrongEventOverrideEnabled bool
	StrongEventOverridePhrases []string
}

const (
	CodePassed          = "PASSED"
	CodeBelowThreshold  = "FILTER1_BELOW_THRESHOLD"
	CodeComboRuleFailed = "COMBO_RULE_FAILED"
	CodeStrongOverride  = "STRONG_OVERRIDE"
)

// Score computes the weighted category score for a piece of text: each
// negative keyword subtracts the negative weight, and each positive
// category contributes its weight once no matter how many of its keywords
// match.
func Score(text string, cfg Config) Result {
	if text == "" {
		return Result{}
	}

	lower := strings.ToLower(text)
	var res Result

	for _, kw := range cfg.Keywords.Negative {
		if strings.Contains(lower, strings.ToLower(kw)) {
			res.Score += cfg.Weights.Negative
			res.NegativeMatches = append(res.NegativeMatches, kw)
		}
	}

	for category, keywords := range cfg.Keywords.Positive {
		matched := false
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				if !matched {
					res.Score += cfg.Weights.Category[category]
					matched = true
					res.CategoriesMatched = append(res.CategoriesMatched, category)
				}
				res.PositiveMatches = append(res.PositiveMatches, kw)
			}
		}
	}

	res.Passed = res.Score >= cfg.Threshold
	return res
}

// ShouldSendToLLM applies the combo gate and strong-event override on top of
// Score, returning the final send decision, the scoring result, and the
// decision code explaining it.
func ShouldSendToLLM(title, text string, cfg Config) (bool, Result, string) {
	combined := title + " " + text
	result := Score(combined, cfg)

	code := CodeBelowThreshold
	if result.Passed {
		code = CodePassed
	}
	if !result.Passed {
		return false, result, code
	}

	if cfg.RequireCombo && len(cfg.EventCategories) > 0 && len(cfg.ObjectCategories) > 0 {
		hasEvent := anyIn(result.CategoriesMatched, cfg.EventCategories)
		hasObject := anyIn(result.CategoriesMatched, cfg.ObjectCategories)

		if !(hasEvent && hasObject) {
			if cfg.StrongEventOverrideEnabled && len(cfg.StrongEventOverridePhrases) > 0 {
				combinedLower := strings.ToLower(combined)
				for _, phrase := range cfg.StrongEventOverridePhrases {
					if strings.Contains(combinedLower, strings.ToLower(phrase)) {
						return true, result, CodeStrongOverride
					}
				}
			}
			result.Passed = false
			return false, result, CodeComboRuleFailed
		}
	}

	return true, result, code
}

func anyIn(haystack, needles []string) bool {
	set := make(map[string]struct{}, len(haystack))
	for _, h := range haystack {
		set[h] = struct{}{}
	}
	for _, n := range needles {
		if _, ok := set[n]; ok {
			return true
		}
	}
	return false
}
