// Package config loads the application's YAML configuration tree and
// applies persisted overrides on top of it.
//
// Grounded on the teacher's internal/config/config.go for the typed-struct
// tree and post-unmarshal defaulting shape. The override mechanism departs
// from config_loader.py's reflection-based dotted-path setter: instead of
// looking up struct fields by string path and coercing by the field's
// current type, overrides are applied through a fixed registry of named
// (parser, applier) pairs, each responsible for one known config knob. This
// keeps override application compile-time checked and avoids reflection
// entirely.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source describes one feed the fetcher pulls from.
type Source struct {
	ID         string `yaml:"id"`
	Type       string `yaml:"type"` // rss | web | google_news_rss
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	Query      string `yaml:"query"`
	RegionHint string `yaml:"region_hint"`
	HL         string `yaml:"hl"`
	GL         string `yaml:"gl"`
	CEID       string `yaml:"ceid"`
}

// Keywords is the filter1 keyword table.
type Keywords struct {
	Positive map[string][]string `yaml:"positive"`
	Negative []string            `yaml:"negative"`
}

// Weights is the filter1 per-category score table.
type Weights struct {
	Accident       int `yaml:"accident"`
	Repair         int `yaml:"repair"`
	Infrastructure int `yaml:"infrastructure"`
	Industrial     int `yaml:"industrial"`
	Negative       int `yaml:"negative"`
}

// Thresholds gates filter1 and LLM decisions.
type Thresholds struct {
	Filter1ToLLM int     `yaml:"filter1_to_llm"`
	LLMRelevance float64 `yaml:"llm_relevance"`
	LLMUrgency   int     `yaml:"llm_urgency"`
}

// Limits bounds signal volume and per-cycle work.
type Limits struct {
	MaxSignalsPerDay   int `yaml:"max_signals_per_day"`
	MaxProcessingBatch int `yaml:"max_processing_batch"`
}

// Dedup configures the deduplicator.
type Dedup struct {
	SimhashThreshold int      `yaml:"simhash_threshold"`
	URLParamsRemove  []string `yaml:"url_params_to_remove"`
}

// HTTP configures outbound fetch/LLM client timeouts and retries.
type HTTP struct {
	TimeoutSeconds int `yaml:"timeout"`
	Retries        int `yaml:"retries"`
}

// SourceHealth configures per-source auto-disable/auto-heal tracking.
type SourceHealth struct {
	DisableAfterFailures int `yaml:"disable_after_failures"`
	HealCooldownMinutes  int `yaml:"heal_cooldown_minutes"`
}

// Schedule configures the orchestrator's cycle cadence.
type Schedule struct {
	CheckIntervalMinutes int `yaml:"check_interval_minutes"`
}

// Freshness configures the freshness gate.
type Freshness struct {
	MaxAgeDays          int  `yaml:"max_age_days"`
	AllowMissing        bool `yaml:"allow_missing_published_at"`
	FallbackToCollected bool `yaml:"fallback_to_collected_at"`
}

// PriorityScore weights the candidate-ranking formula.
type PriorityScore struct {
	UrgencyWeight   float64 `yaml:"urgency_weight"`
	RelevanceWeight float64 `yaml:"relevance_weight"`
	Filter1Weight   float64 `yaml:"filter1_weight"`
}

// ResolvedFilter configures the resolved-event gate.
type ResolvedFilter struct {
	Enabled             bool     `yaml:"enabled"`
	HardResolvedPhrases []string `yaml:"hard_resolved_phrases"`
	SoftResolvedWords   []string `yaml:"soft_resolved_words"`
	AllowIfStillOngoing []string `yaml:"allow_if_still_ongoing_words"`
}

// NoiseFilter configures the noise gate.
type NoiseFilter struct {
	Enabled               bool     `yaml:"enabled"`
	HardNegativeTopics    []string `yaml:"hard_negative_topics"`
	HouseholdNoise        []string `yaml:"household_noise"`
	ExceptionInfraPhrases []string `yaml:"exception_infra_phrases"`
}

// Filter1Gate configures the combo gate and strong-event override.
type Filter1Gate struct {
	RequireCombo               bool     `yaml:"require_combo_to_llm"`
	EventCategories            []string `yaml:"event_categories_required"`
	ObjectCategories           []string `yaml:"object_categories_required"`
	StrongEventOverrideEnabled bool     `yaml:"strong_event_override_enabled"`
	StrongEventOverridePhrases []string `yaml:"strong_event_override_phrases"`
}

// LLMThrottle configures the LLM client's per-cycle and per-minute caps.
type LLMThrottle struct {
	MaxRequestsPerCycle      int   `yaml:"max_requests_per_cycle"`
	MaxRequestsPerMinute     int   `yaml:"max_requests_per_minute"`
	Concurrency              int   `yaml:"concurrency"`
	BackoffOn429Seconds      []int `yaml:"backoff_on_429_seconds"`
	MaxConsecutive429        int   `yaml:"max_consecutive_429"`
	MaxCandidatesAfterFilter int   `yaml:"max_candidates_after_filter1"`
}

// LLMBudget configures the daily cost ledger and circuit breaker.
type LLMBudget struct {
	DailyCostLimitUSD       float64 `yaml:"daily_cost_limit_usd"`
	CostPerRequestUSD       float64 `yaml:"cost_per_request_usd"`
	Timezone                string  `yaml:"timezone"`
	BreakerErrorThreshold   int     `yaml:"breaker_error_threshold"`
	BreakerWindowSeconds    int     `yaml:"breaker_window_seconds"`
	BreakerCooldownSeconds  int     `yaml:"breaker_cooldown_seconds"`
	Models                  []string `yaml:"models"`
}

// Broadcast configures outbound message pacing.
type Broadcast struct {
	Enabled             bool    `yaml:"enabled"`
	BotToken            string  `yaml:"bot_token"`
	MessagesPerSecond   float64 `yaml:"messages_per_second"`
	MaxRetriesFloodWait int     `yaml:"max_retries_flood_wait"`
}

// UIMessages is the set of user-facing templates.
type UIMessages struct {
	WelcomeNew      string `yaml:"welcome_new"`
	WelcomeExisting string `yaml:"welcome_existing"`
	AdminSuffix     string `yaml:"admin_suffix"`
	Stop            string `yaml:"stop"`
	Status          string `yaml:"status"`
	Help            string `yaml:"help"`
	Privacy         string `yaml:"privacy"`
}

// Retention configures cleanup of old rows.
type Retention struct {
	NewsDays     int `yaml:"news_days"`
	LedgerDays   int `yaml:"ledger_days"`
	IncidentDays int `yaml:"incident_days"`
}

// Root is the top-level configuration tree.
type Root struct {
	Sources        []Source       `yaml:"sources"`
	Keywords       Keywords       `yaml:"keywords"`
	Weights        Weights        `yaml:"weights"`
	Thresholds     Thresholds     `yaml:"thresholds"`
	Limits         Limits         `yaml:"limits"`
	Dedup          Dedup          `yaml:"dedup"`
	HTTP           HTTP           `yaml:"http"`
	SourceHealth   SourceHealth   `yaml:"source_health"`
	Schedule       Schedule       `yaml:"schedule"`
	Freshness      Freshness      `yaml:"freshness"`
	ResolvedFilter ResolvedFilter `yaml:"resolved_filter"`
	NoiseFilter    NoiseFilter    `yaml:"noise_filter"`
	Filter1Gate    Filter1Gate    `yaml:"filter1_gate"`
	LLMThrottle    LLMThrottle    `yaml:"llm_throttle"`
	LLMBudget      LLMBudget      `yaml:"llm_budget"`
	PriorityScore  PriorityScore  `yaml:"priority_score"`
	Broadcast      Broadcast      `yaml:"broadcast"`
	UIMessages     UIMessages     `yaml:"ui_messages"`
	Retention      Retention      `yaml:"retention"`
	Timezone       string         `yaml:"timezone"`
}

// Load reads and unmarshals path, applying defaults for zero-valued fields.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	return c, nil
}

func applyDefaults(c *Root) {
	if c.Timezone == "" {
		c.Timezone = "Europe/Moscow"
	}
	if c.Thresholds.Filter1ToLLM == 0 {
		c.Thresholds.Filter1ToLLM = 4
	}
	if c.Thresholds.LLMRelevance == 0 {
		c.Thresholds.LLMRelevance = 0.6
	}
	if c.Thresholds.LLMUrgency == 0 {
		c.Thresholds.LLMUrgency = 3
	}
	if c.Limits.MaxSignalsPerDay == 0 {
		c.Limits.MaxSignalsPerDay = 5
	}
	if c.Limits.MaxProcessingBatch == 0 {
		c.Limits.MaxProcessingBatch = 100
	}
	if c.Dedup.SimhashThreshold == 0 {
		c.Dedup.SimhashThreshold = 3
	}
	if len(c.Dedup.URLParamsRemove) == 0 {
		c.Dedup.URLParamsRemove = []string{
			"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
			"yclid", "gclid", "fbclid", "ref", "from", "source", "rss", "tg",
		}
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 15
	}
	if c.HTTP.Retries == 0 {
		c.HTTP.Retries = 3
	}
	if c.SourceHealth.DisableAfterFailures == 0 {
		c.SourceHealth.DisableAfterFailures = 10
	}
	if c.SourceHealth.HealCooldownMinutes == 0 {
		c.SourceHealth.HealCooldownMinutes = 60
	}
	if c.Schedule.CheckIntervalMinutes == 0 {
		c.Schedule.CheckIntervalMinutes = 30
	}
	if c.Freshness.MaxAgeDays == 0 {
		c.Freshness.MaxAgeDays = 21
	}
	if c.PriorityScore.UrgencyWeight == 0 && c.PriorityScore.RelevanceWeight == 0 && c.PriorityScore.Filter1Weight == 0 {
		c.PriorityScore.UrgencyWeight = 0.4
		c.PriorityScore.RelevanceWeight = 0.4
		c.PriorityScore.Filter1Weight = 0.2
	}
	if len(c.Filter1Gate.EventCategories) == 0 {
		c.Filter1Gate.EventCategories = []string{"accident", "repair"}
	}
	if len(c.Filter1Gate.ObjectCategories) == 0 {
		c.Filter1Gate.ObjectCategories = []string{"infrastructure", "industrial"}
	}
	if c.LLMThrottle.MaxRequestsPerCycle == 0 {
		c.LLMThrottle.MaxRequestsPerCycle = 30
	}
	if c.LLMThrottle.MaxRequestsPerMinute == 0 {
		c.LLMThrottle.MaxRequestsPerMinute = 30
	}
	if c.LLMThrottle.MaxConsecutive429 == 0 {
		c.LLMThrottle.MaxConsecutive429 = 3
	}
	if len(c.LLMThrottle.BackoffOn429Seconds) == 0 {
		c.LLMThrottle.BackoffOn429Seconds = []int{2, 5, 10, 20, 40}
	}
	if c.LLMThrottle.MaxCandidatesAfterFilter == 0 {
		c.LLMThrottle.MaxCandidatesAfterFilter = 200
	}
	if c.LLMBudget.Timezone == "" {
		c.LLMBudget.Timezone = c.Timezone
	}
	if c.LLMBudget.BreakerErrorThreshold == 0 {
		c.LLMBudget.BreakerErrorThreshold = 5
	}
	if c.LLMBudget.BreakerWindowSeconds == 0 {
		c.LLMBudget.BreakerWindowSeconds = 300
	}
	if c.LLMBudget.BreakerCooldownSeconds == 0 {
		c.LLMBudget.BreakerCooldownSeconds = 600
	}
	if c.Broadcast.MessagesPerSecond == 0 {
		c.Broadcast.MessagesPerSecond = 15
	}
	if c.Retention.NewsDays == 0 {
		c.Retention.NewsDays = 30
	}
	if c.Retention.LedgerDays == 0 {
		c.Retention.LedgerDays = 30
	}
	if c.Retention.IncidentDays == 0 {
		c.Retention.IncidentDays = 60
	}
}
