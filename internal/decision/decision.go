// Package decision applies the final accept/reject ordering over a filter1
// outcome and an LLM classification, and formats the resulting alert text.
//
// Grounded on the teacher's internal/decision.Decide: a fixed ordered chain
// of gates, each appending a named block reason, with the first failing gate
// deciding the outcome.
package decision

import (
	"fmt"
	"strings"

	"github.com/prsbot/signalbot/internal/llm"
	"github.com/prsbot/signalbot/internal/model"
)

// Code names the terminal decision a NewsItem receives when it doesn't
// result in an approved signal.
type Code string

const (
	CodeApproved          Code = "approved"
	CodeFilter1Rejected   Code = "filtered"
	CodeLLMFailed         Code = "llm_failed"
	CodeLowRelevance      Code = "low_relevance"
	CodeLowUrgency        Code = "low_urgency"
	CodeActionIgnore      Code = "llm_action_ignore"
	CodeSuppressedLimit   Code = "suppressed_limit"
	CodeSuppressedSimilar Code = "suppressed_similar"
)

// Thresholds holds the tunable gate cutoffs.
type Thresholds struct {
	MinRelevance float64
	MinUrgency   int
	MaxPerDay    int
}

// Input is everything the decision needs about one item's funnel outcome.
type Input struct {
	Filter1Passed   bool
	Filter1Code     string
	LLMResponse     *llm.Response
	SignalsToday    int
	SimilarExisting bool
}

// Result is the outcome of applying the gate chain.
type Result struct {
	Code     Code
	Approved bool
}

// Decide applies the ordered gate chain from §4.10: filter1 → llm-present →
// relevance → urgency → action-ignore → daily-limit → similarity → approve.
// The first failing gate wins; later gates are not evaluated.
func Decide(in Input, th Thresholds) Result {
	if !in.Filter1Passed {
		return Result{Code: Code(in.Filter1Code)}
	}
	if in.LLMResponse == nil {
		return Result{Code: CodeLLMFailed}
	}
	resp := *in.LLMResponse
	if resp.Relevance < th.MinRelevance {
		return Result{Code: CodeLowRelevance}
	}
	if resp.Urgency < th.MinUrgency {
		return Result{Code: CodeLowUrgency}
	}
	if resp.Action == llm.ActionIgnore {
		return Result{Code: CodeActionIgnore}
	}
	if th.MaxPerDay > 0 && in.SignalsToday >= th.MaxPerDay {
		return Result{Code: CodeSuppressedLimit}
	}
	if in.SimilarExisting {
		return Result{Code: CodeSuppressedSimilar}
	}
	return Result{Code: CodeApproved, Approved: true}
}

const (
	maxEssenceChars = 200
	maxWhyChars     = 300
)

var eventTypeLabels = map[llm.EventType]string{
	llm.EventAccident: "АВАРИЯ",
	llm.EventOutage:   "ОТКЛЮЧЕНИЕ",
	llm.EventRepair:   "РЕМОНТ",
	llm.EventOther:    "ПРОИСШЕСТВИЕ",
}

// Sphere derives the two-valued label used in the formatted signal, per
// §4.10's object→sphere map.
func Sphere(object llm.ObjectType) string {
	if object == llm.ObjectIndustrial {
		return "промышленность"
	}
	return "коммунальные услуги"
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// Format assembles the exact six-line plain-text alert body from §4.10:
// severity banner, region, sphere, essence, why, source URL.
func Format(title, region, sourceURL string, resp llm.Response) string {
	label, ok := eventTypeLabels[resp.EventType]
	if !ok {
		label = eventTypeLabels[llm.EventOther]
	}
	regionLine := region
	if regionLine == "" {
		regionLine = "регион не определён"
	}

	lines := []string{
		fmt.Sprintf("%s — срочность %d/5", label, resp.Urgency),
		fmt.Sprintf("Регион: %s", regionLine),
		fmt.Sprintf("Сфера: %s", Sphere(resp.Object)),
		truncate(title, maxEssenceChars),
		truncate(resp.Why, maxWhyChars),
		sourceURL,
	}
	return strings.Join(lines, "\n")
}

// ToModelSignal translates an approved decision and its LLM response into
// the persisted Signal shape, leaving SentAt/RecipientCount for the caller.
func ToModelSignal(newsItemID int64, region *string, resp llm.Response, messageBody string) model.Signal {
	return model.Signal{
		NewsItemID:  newsItemID,
		EventType:   model.EventType(resp.EventType),
		Urgency:     resp.Urgency,
		ObjectType:  model.ObjectType(resp.Object),
		Region:      region,
		Rationale:   resp.Why,
		MessageBody: messageBody,
	}
}
