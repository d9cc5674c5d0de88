package normalize

import (
	"time"

	"github.com/prsbot/signalbot/internal/model"
)

// Item converts a raw fetched item into the normalized shape a NewsItem row
// is created from. Text falls back to the cleaned title when the scraped
// body is too short to be useful.
func Item(raw model.RawItem, collectedAt time.Time, trackingParams map[string]struct{}) model.NewsItem {
	title := Whitespace(raw.Title)
	if len(title) > 1000 {
		title = title[:1000]
	}
	text := CleanHTML(raw.RawHTML)
	if len(text) < 50 {
		text = title
	}

	n := model.NewsItem{
		Title:         title,
		Text:          text,
		Source:        raw.SourceName,
		URL:           raw.URL,
		URLNormalized: URL(raw.URL, trackingParams),
		PublishedAt:   raw.PublishedAt,
		CollectedAt:   collectedAt,
		Status:        model.StatusRaw,
	}
	if raw.RegionHint != "" {
		hint := raw.RegionHint
		n.Region = &hint
	}
	return n
}

// PrepareForLLM bounds the text sent to the classifier without calling the
// LLM to summarize: it extracts the first maxSentences sentences capped at
// maxChars.
func PrepareForLLM(text string, maxSentences, maxChars int) string {
	return Sentences(text, maxSentences, maxChars)
}
