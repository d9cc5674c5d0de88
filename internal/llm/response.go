// Package llm is the classifier client: it prompts a language model to
// judge whether a candidate news item describes a genuine, ongoing
// infrastructure incident, guarded by a daily cost budget, a circuit
// breaker, and a per-cycle request throttle.
//
// Grounded on llm.py's OpenRouterClient, with the breaker simplified from
// the teacher's internal/risk/circuitbreaker.go graduated eight-state
// machine to the two-state (closed/open, with a half-open probe) model this
// domain needs.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EventType is the LLM's classification of what kind of event the item
// describes.
type EventType string

const (
	EventAccident EventType = "accident"
	EventOutage   EventType = "outage"
	EventRepair   EventType = "repair"
	EventOther    EventType = "other"
)

// ObjectType is the LLM's classification of what kind of object is
// affected.
type ObjectType string

const (
	ObjectWater      ObjectType = "water"
	ObjectHeat       ObjectType = "heat"
	ObjectIndustrial ObjectType = "industrial"
	ObjectUnknown    ObjectType = "unknown"
)

// Action is the LLM's recommended next step.
type Action string

const (
	ActionCall   Action = "call"
	ActionWatch  Action = "watch"
	ActionIgnore Action = "ignore"
)

// Response is the strict output schema the model must return.
type Response struct {
	EventType EventType  `json:"event_type"`
	Relevance float64    `json:"relevance"`
	Urgency   int        `json:"urgency"`
	Object    ObjectType `json:"object"`
	Why       string     `json:"why"`
	Action    Action     `json:"action"`
}

// Validate checks the schema's value constraints; a model that returns
// well-formed JSON with an out-of-range value is still rejected.
func (r Response) Validate() error {
	switch r.EventType {
	case EventAccident, EventOutage, EventRepair, EventOther:
	default:
		return fmt.Errorf("invalid event_type %q", r.EventType)
	}
	switch r.Object {
	case ObjectWater, ObjectHeat, ObjectIndustrial, ObjectUnknown:
	default:
		return fmt.Errorf("invalid object %q", r.Object)
	}
	switch r.Action {
	case ActionCall, ActionWatch, ActionIgnore:
	default:
		return fmt.Errorf("invalid action %q", r.Action)
	}
	if r.Relevance < 0 || r.Relevance > 1 {
		return fmt.Errorf("relevance %v out of [0,1]", r.Relevance)
	}
	if r.Urgency < 1 || r.Urgency > 5 {
		return fmt.Errorf("urgency %v out of [1,5]", r.Urgency)
	}
	return nil
}

// ShouldSendSignal applies the relevance/urgency/action gate on a validated
// response.
func ShouldSendSignal(r Response, relevanceThreshold float64, urgencyThreshold int) bool {
	return r.Relevance >= relevanceThreshold &&
		r.Urgency >= urgencyThreshold &&
		(r.Action == ActionCall || r.Action == ActionWatch)
}

// ParseResponse strips markdown code fences the model sometimes wraps its
// JSON in, then unmarshals and validates it.
func ParseResponse(content string) (Response, error) {
	content = stripFences(content)
	var r Response
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return Response{}, fmt.Errorf("invalid json: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Response{}, err
	}
	return r, nil
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.Contains(content, "```json") {
		parts := strings.SplitN(content, "```json", 2)
		if len(parts) == 2 {
			if end := strings.Index(parts[1], "```"); end >= 0 {
				return strings.TrimSpace(parts[1][:end])
			}
		}
	} else if strings.Contains(content, "```") {
		parts := strings.SplitN(content, "```", 3)
		if len(parts) >= 2 {
			return strings.TrimSpace(parts[1])
		}
	}
	return content
}
