package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]+>`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
	sentenceSplit = regexp.MustCompile(`[.!?]\s+`)
)

var namedEntities = map[string]string{
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
	"&apos;": "'",
	"&nbsp;": " ",
	"&mdash;": "—",
	"&ndash;": "–",
	"&laquo;": "«",
	"&raquo;": "»",
}

// CleanHTML strips script/style/noscript blocks and remaining tags, decodes
// the common named entities, and collapses whitespace runs.
func CleanHTML(raw string) string {
	if raw == "" {
		return ""
	}
	out := scriptStyleRe.ReplaceAllString(raw, " ")
	out = tagRe.ReplaceAllString(out, " ")
	for entity, repl := range namedEntities {
		out = strings.ReplaceAll(out, entity, repl)
	}
	return Whitespace(out)
}

// Whitespace collapses runs of whitespace into single spaces and trims ends.
func Whitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// Sentences splits text on '. ', '! ', '? ' boundaries and returns the first
// maxSentences whose trimmed length exceeds 10 characters, joined by single
// spaces and capped at maxChars.
func Sentences(text string, maxSentences, maxChars int) string {
	if text == "" {
		return ""
	}
	parts := sentenceSplit.Split(text, -1)
	kept := make([]string, 0, maxSentences)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) <= 10 {
			continue
		}
		kept = append(kept, p)
		if len(kept) >= maxSentences {
			break
		}
	}
	joined := strings.Join(kept, " ")
	if r := []rune(joined); maxChars > 0 && len(r) > maxChars {
		joined = string(r[:maxChars])
	}
	return joined
}
