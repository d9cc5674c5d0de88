package config

import (
	"fmt"
	"strconv"
)

// Override is a named, typed knob a ConfigOverride row can target. Parse
// converts the override's raw string value into the value Apply expects;
// Apply mutates the given config in place.
type Override struct {
	Path  string
	Parse func(raw string) (any, error)
	Apply func(c *Root, v any)
}

func parseInt(raw string) (any, error) {
	return strconv.Atoi(raw)
}

func parseFloat(raw string) (any, error) {
	return strconv.ParseFloat(raw, 64)
}

func parseBool(raw string) (any, error) {
	return strconv.ParseBool(raw)
}

// Registry lists every config path a stored override is allowed to touch.
// config_loader.py's _set_nested walked dotted attribute paths with
// reflection and coerced the override value to whatever type the existing
// field held; here each entry is a concrete (parse, apply) pair, so an
// unrecognized path is rejected outright rather than silently doing
// nothing.
var Registry = map[string]Override{
	"thresholds.filter1_to_llm": {
		Path: "thresholds.filter1_to_llm", Parse: parseInt,
		Apply: func(c *Root, v any) { c.Thresholds.Filter1ToLLM = v.(int) },
	},
	"thresholds.llm_relevance": {
		Path: "thresholds.llm_relevance", Parse: parseFloat,
		Apply: func(c *Root, v any) { c.Thresholds.LLMRelevance = v.(float64) },
	},
	"thresholds.llm_urgency": {
		Path: "thresholds.llm_urgency", Parse: parseInt,
		Apply: func(c *Root, v any) { c.Thresholds.LLMUrgency = v.(int) },
	},
	"limits.max_signals_per_day": {
		Path: "limits.max_signals_per_day", Parse: parseInt,
		Apply: func(c *Root, v any) { c.Limits.MaxSignalsPerDay = v.(int) },
	},
	"limits.max_processing_batch": {
		Path: "limits.max_processing_batch", Parse: parseInt,
		Apply: func(c *Root, v any) { c.Limits.MaxProcessingBatch = v.(int) },
	},
	"dedup.simhash_threshold": {
		Path: "dedup.simhash_threshold", Parse: parseInt,
		Apply: func(c *Root, v any) { c.Dedup.SimhashThreshold = v.(int) },
	},
	"freshness.max_age_days": {
		Path: "freshness.max_age_days", Parse: parseInt,
		Apply: func(c *Root, v any) { c.Freshness.MaxAgeDays = v.(int) },
	},
	"resolved_filter.enabled": {
		Path: "resolved_filter.enabled", Parse: parseBool,
		Apply: func(c *Root, v any) { c.ResolvedFilter.Enabled = v.(bool) },
	},
	"noise_filter.enabled": {
		Path: "noise_filter.enabled", Parse: parseBool,
		Apply: func(c *Root, v any) { c.NoiseFilter.Enabled = v.(bool) },
	},
	"filter1_gate.require_combo_to_llm": {
		Path: "filter1_gate.require_combo_to_llm", Parse: parseBool,
		Apply: func(c *Root, v any) { c.Filter1Gate.RequireCombo = v.(bool) },
	},
	"filter1_gate.strong_event_override_enabled": {
		Path: "filter1_gate.strong_event_override_enabled", Parse: parseBool,
		Apply: func(c *Root, v any) { c.Filter1Gate.StrongEventOverrideEnabled = v.(bool) },
	},
	"llm_throttle.max_requests_per_cycle": {
		Path: "llm_throttle.max_requests_per_cycle", Parse: parseInt,
		Apply: func(c *Root, v any) { c.LLMThrottle.MaxRequestsPerCycle = v.(int) },
	},
	"llm_budget.daily_cost_limit_usd": {
		Path: "llm_budget.daily_cost_limit_usd", Parse: parseFloat,
		Apply: func(c *Root, v any) { c.LLMBudget.DailyCostLimitUSD = v.(float64) },
	},
	"broadcast.messages_per_second": {
		Path: "broadcast.messages_per_second", Parse: parseFloat,
		Apply: func(c *Root, v any) { c.Broadcast.MessagesPerSecond = v.(float64) },
	},
	"schedule.check_interval_minutes": {
		Path: "schedule.check_interval_minutes", Parse: parseInt,
		Apply: func(c *Root, v any) { c.Schedule.CheckIntervalMinutes = v.(int) },
	},
}

// ApplyOverrides applies each (path, raw value) pair found in the registry
// on top of base, returning a new Root. Unknown paths are reported but do
// not abort application of the rest.
func ApplyOverrides(base Root, overrides map[string]string) (Root, []error) {
	out := base
	var errs []error
	for path, raw := range overrides {
		entry, ok := Registry[path]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown override path %q", path))
			continue
		}
		v, err := entry.Parse(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("override %q: %w", path, err))
			continue
		}
		entry.Apply(&out, v)
	}
	return out, errs
}
