// Package region detects the Russian federal subject an item concerns,
// checking a source hint, then title, then full text, then falling back to
// a regex over "<Name> область|край|республика" patterns.
//
// Grounded on region.py's RegionDetector.
package region

import (
	"regexp"
	"strings"
)

var regionPattern = regexp.MustCompile(`(?i)([А-Яа-яЁё]+(?:ая|ий|ый)?)\s+(область|край|республика)`)

// Detector resolves a region name from city/region keyword mentions, with
// an optional set of custom city->region overrides loaded on top of the
// built-in mapping.
type Detector struct {
	custom  map[string]string
	builtin map[string]string
}

// New builds a Detector. customMappings keys are lowercased on load so
// lookups are case-insensitive.
func New(customMappings map[string]string) *Detector {
	custom := make(map[string]string, len(customMappings))
	for k, v := range customMappings {
		custom[strings.ToLower(k)] = v
	}
	return &Detector{custom: custom, builtin: defaultMappings}
}

// Detect returns the resolved region, or "" if nothing matched.
//
// Priority: source hint, then city/region mentions in the title, then
// custom mappings in title+text, then built-in mappings in title+text,
// then the regex fallback.
func (d *Detector) Detect(text, title, sourceRegionHint string) string {
	if sourceRegionHint != "" {
		return sourceRegionHint
	}

	titleLower := strings.ToLower(title)
	combined := titleLower + " " + strings.ToLower(text)

	if r := firstMatch(titleLower, d.builtin); r != "" {
		return r
	}
	if r := firstMatch(combined, d.custom); r != "" {
		return r
	}
	if r := firstMatch(combined, d.builtin); r != "" {
		return r
	}

	if m := regionPattern.FindStringSubmatch(combined); m != nil {
		return capitalize(m[1]) + " " + strings.ToLower(m[2])
	}
	return ""
}

func firstMatch(haystack string, mappings map[string]string) string {
	for city, reg := range mappings {
		if strings.Contains(haystack, city) {
			return reg
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = []rune(strings.ToUpper(string(r[0])))[0]
	return string(r)
}
