// Package orchestrator runs the news cycle, the source auto-heal sweep, and
// the retention sweep on their own schedules, coordinating them through a
// cross-instance processing lock so two replicas never race the same batch.
//
// Grounded on the teacher's scheduler shape in cmd/trading-system (a
// ticker-driven loop per job, each wrapped in its own recover/log), adapted
// from scheduler.py's APScheduler job set: run_news_cycle, auto_heal_sources,
// cleanup_old_data.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/prsbot/signalbot/internal/broadcast"
	"github.com/prsbot/signalbot/internal/config"
	"github.com/prsbot/signalbot/internal/decision"
	"github.com/prsbot/signalbot/internal/dedup"
	"github.com/prsbot/signalbot/internal/fetch"
	"github.com/prsbot/signalbot/internal/filter1"
	"github.com/prsbot/signalbot/internal/freshness"
	"github.com/prsbot/signalbot/internal/llm"
	"github.com/prsbot/signalbot/internal/model"
	"github.com/prsbot/signalbot/internal/noise"
	"github.com/prsbot/signalbot/internal/normalize"
	"github.com/prsbot/signalbot/internal/observ"
	"github.com/prsbot/signalbot/internal/region"
	"github.com/prsbot/signalbot/internal/resolved"
	"github.com/prsbot/signalbot/internal/storage"
)

const (
	lockName          = "processing"
	lockDuration      = 10 * time.Minute
	autoHealCooldown  = 60 * time.Minute
	similarityWindow  = 24 * time.Hour
	incidentWindow    = 24 * time.Hour
	retentionHour     = 3
	llmTextMaxChars   = 2000
	llmTextMaxSentences = 8
)

// Orchestrator owns the pipeline's moving parts and drives them on a timer.
type Orchestrator struct {
	cfgStore    *config.Store
	db          *storage.DB
	pool        *fetch.Pool
	dedup       *dedup.Deduplicator
	regionDet   *region.Detector
	llmClient   *llm.Client
	broadcaster *broadcast.Broadcaster
	holderID    string
	location    *time.Location
}

// New builds an Orchestrator from its already-constructed collaborators.
// llmClient may be nil when no LLM provider is configured, in which case
// every filter1-passing candidate is recorded as llm_skipped instead of
// classified.
func New(cfgStore *config.Store, db *storage.DB, pool *fetch.Pool, dd *dedup.Deduplicator, regionDet *region.Detector, llmClient *llm.Client, bc *broadcast.Broadcaster, location *time.Location) *Orchestrator {
	if location == nil {
		location = time.UTC
	}
	return &Orchestrator{
		cfgStore:    cfgStore,
		db:          db,
		pool:        pool,
		dedup:       dd,
		regionDet:   regionDet,
		llmClient:   llmClient,
		broadcaster: bc,
		holderID:    uuid.NewString(),
		location:    location,
	}
}

// Run blocks, driving the news cycle, auto-heal sweep, and retention sweep
// on their own tickers until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) {
	cfg := o.cfgStore.Get()
	cycleInterval := time.Duration(cfg.Schedule.CheckIntervalMinutes) * time.Minute
	if cycleInterval <= 0 {
		cycleInterval = 30 * time.Minute
	}

	newsTicker := time.NewTicker(cycleInterval)
	defer newsTicker.Stop()
	healTicker := time.NewTicker(30 * time.Minute)
	defer healTicker.Stop()
	retentionTicker := time.NewTicker(1 * time.Hour)
	defer retentionTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-newsTicker.C:
			o.runGuarded(ctx, "news_cycle", o.RunNewsCycle)
		case <-healTicker.C:
			o.runGuarded(ctx, "auto_heal", o.runAutoHeal)
		case <-retentionTicker.C:
			if time.Now().In(o.location).Hour() == retentionHour {
				o.runGuarded(ctx, "retention", o.runRetention)
			}
		}
	}
}

func (o *Orchestrator) runGuarded(ctx context.Context, job string, fn func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			observ.Log("job_panic", map[string]any{"job": job, "recovered": fmt.Sprint(r)})
		}
	}()
	if err := fn(ctx); err != nil {
		observ.Log("job_failed", map[string]any{"job": job, "error": err.Error()})
		observ.IncCounter("job_failures_total", map[string]string{"job": job})
	}
}

// cycleSummary tallies how many items landed on each decision code, for the
// end-of-cycle log line.
type cycleSummary struct {
	fetched   int
	processed int
	byCode    map[string]int
}

// RunNewsCycle fetches every configured source, runs each new item through
// the full funnel, and broadcasts any approved signal. It acquires the
// cross-instance processing lock first and releases it before returning.
func (o *Orchestrator) RunNewsCycle(ctx context.Context) error {
	now := time.Now()
	acquired, err := o.db.Locks.Acquire(ctx, lockName, o.holderID, now, lockDuration)
	if err != nil {
		return fmt.Errorf("acquire processing lock: %w", err)
	}
	if !acquired {
		observ.Log("news_cycle_skipped", map[string]any{"reason": "lock_held"})
		return nil
	}
	defer func() {
		if err := o.db.Locks.Release(ctx, lockName, o.holderID); err != nil {
			observ.Log("lock_release_failed", map[string]any{"error": err.Error()})
		}
	}()

	start := time.Now()
	cfg := o.cfgStore.Get()
	if o.llmClient != nil {
		o.llmClient.ResetCycle()
	}

	sources := make([]fetch.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		sources = append(sources, fetch.Source{
			ID: s.ID, Type: s.Type, Name: s.Name, URL: s.URL, Query: s.Query,
			RegionHint: s.RegionHint, HL: s.HL, GL: s.GL, CEID: s.CEID,
		})
	}

	results := o.pool.FetchAll(ctx, sources)

	summary := cycleSummary{byCode: map[string]int{}}
	for _, res := range results {
		observ.IncCounter("fetch_attempts_total", map[string]string{"source": res.Source.ID})
		if res.Skipped {
			continue
		}
		if res.Err != nil {
			observ.Log("fetch_failed", map[string]any{"source": res.Source.ID, "error": res.Err.Error()})
			continue
		}
		observ.IncCounter("fetch_successes_total", map[string]string{"source": res.Source.ID})
		summary.fetched += len(res.Items)

		for _, raw := range res.Items {
			if summary.processed >= cfg.Limits.MaxProcessingBatch {
				observ.Log("batch_cap_reached", map[string]any{"cap": cfg.Limits.MaxProcessingBatch})
				break
			}
			code := o.processItem(ctx, raw, cfg, now)
			summary.processed++
			summary.byCode[code]++
		}
	}

	observ.RecordDuration("cycle_latency_ms", time.Since(start), nil)
	observ.Log("news_cycle_complete", map[string]any{
		"fetched":   summary.fetched,
		"processed": summary.processed,
		"by_code":   summary.byCode,
	})
	o.reportHealthGauges(ctx, now)
	return nil
}

// reportHealthGauges refreshes the gauges /health reads: disabled source
// count, LLM budget and circuit state, and today's signal count.
func (o *Orchestrator) reportHealthGauges(ctx context.Context, now time.Time) {
	if h := o.pool.Health(); h != nil {
		observ.SetGauge("sources_disabled", float64(h.DisabledCount()), nil)
	}
	if o.llmClient != nil {
		spent, limit := o.llmClient.BudgetStatus(now)
		observ.SetGauge("llm_budget_used_usd", spent, nil)
		observ.SetGauge("llm_budget_limit_usd", limit, nil)
		circuitOpen := 0.0
		if o.llmClient.BreakerState() == llm.BreakerOpen {
			circuitOpen = 1.0
		}
		observ.SetGauge("llm_circuit_open", circuitOpen, nil)
	}
	if sent, err := o.db.Signals.CountToday(ctx, now, o.location); err == nil {
		observ.SetGauge("signals_sent_today", float64(sent), nil)
	}
}

// processItem runs one raw item through the full funnel and returns the
// decision code it terminated on.
func (o *Orchestrator) processItem(ctx context.Context, raw model.RawItem, cfg config.Root, now time.Time) string {
	item := normalize.Item(raw, now, nil)

	exists, err := o.db.News.URLExists(ctx, item.URLNormalized)
	if err != nil {
		observ.Log("url_exists_check_failed", map[string]any{"error": err.Error()})
		return "error"
	}
	if exists {
		return string(model.StatusDuplicate)
	}

	fresh := freshness.Check(item.PublishedAt, item.CollectedAt, freshness.Config{
		MaxAgeDays:          cfg.Freshness.MaxAgeDays,
		AllowMissing:        cfg.Freshness.AllowMissing,
		FallbackToCollected: cfg.Freshness.FallbackToCollected,
	})
	if !fresh.Passed {
		item.Status = model.StatusFilteredOld
		o.persistTerminal(ctx, &item)
		return fresh.DecisionCode
	}

	dupOf, isDup, hash := o.dedup.Check(item.Title, item.Text, item.URLNormalized, now)
	item.Simhash = strconv.FormatUint(hash, 16)
	if isDup {
		item.Status = model.StatusDuplicate
		item.CanonicalRefID = &dupOf
		o.persistTerminal(ctx, &item)
		return string(model.StatusDuplicate)
	}

	item.Region = regionPtr(o.regionDet.Detect(item.Text, item.Title, derefString(item.Region)))

	if err := o.db.News.Create(ctx, &item); err != nil {
		observ.Log("news_create_failed", map[string]any{"error": err.Error()})
		return "error"
	}
	o.dedup.Add(item.ID, item.URLNormalized, hash, now)

	res := resolved.Check(item.Title, item.Text, resolved.Config{
		Enabled:             cfg.ResolvedFilter.Enabled,
		HardResolvedPhrases: cfg.ResolvedFilter.HardResolvedPhrases,
		SoftResolvedWords:   cfg.ResolvedFilter.SoftResolvedWords,
		AllowIfStillOngoing: cfg.ResolvedFilter.AllowIfStillOngoing,
	})
	if !res.Passed {
		item.Status = model.StatusFilteredResolved
		o.persistTerminal(ctx, &item)
		return res.DecisionCode
	}

	noiseRes := noise.Check(item.Title, item.Text, noise.Config{
		Enabled:               cfg.NoiseFilter.Enabled,
		HardNegativeTopics:    cfg.NoiseFilter.HardNegativeTopics,
		DomesticNoise:         cfg.NoiseFilter.HouseholdNoise,
		ExceptionInfraPhrases: cfg.NoiseFilter.ExceptionInfraPhrases,
	})
	if !noiseRes.Passed {
		item.Status = model.StatusFilteredNoise
		o.persistTerminal(ctx, &item)
		return noiseRes.DecisionCode
	}

	send, filter1Res, filter1Code := filter1.ShouldSendToLLM(item.Title, item.Text, filter1.Config{
		Keywords:                   filter1.Keywords{Positive: cfg.Keywords.Positive, Negative: cfg.Keywords.Negative},
		Weights:                    filter1.Weights{Category: categoryWeights(cfg.Weights), Negative: cfg.Weights.Negative},
		Threshold:                  cfg.Thresholds.Filter1ToLLM,
		RequireCombo:               cfg.Filter1Gate.RequireCombo,
		EventCategories:            cfg.Filter1Gate.EventCategories,
		ObjectCategories:           cfg.Filter1Gate.ObjectCategories,
		StrongEventOverrideEnabled: cfg.Filter1Gate.StrongEventOverrideEnabled,
		StrongEventOverridePhrases: cfg.Filter1Gate.StrongEventOverridePhrases,
	})
	item.Filter1Score = filter1Res.Score
	if !send {
		item.Status = model.StatusFiltered
		o.persistTerminal(ctx, &item)
		return filter1Code
	}

	var llmResp *llm.Response
	var rawResp string
	llmErrCode := llm.ErrDisabledForCycle
	if o.llmClient != nil {
		text := normalize.PrepareForLLM(item.Text, llmTextMaxSentences, llmTextMaxChars)
		resp, raw, errCode := o.llmClient.Analyze(ctx, item.Title, text, derefString(item.Region), item.Source)
		rawResp = raw
		llmErrCode = errCode
		if errCode == llm.ErrNone {
			llmResp = &resp
		} else {
			observ.IncCounter("llm_errors_total", map[string]string{"code": string(errCode)})
		}
	}

	today, err := o.db.Signals.CountToday(ctx, now, o.location)
	if err != nil {
		observ.Log("count_today_failed", map[string]any{"error": err.Error()})
	}

	var similarExisting bool
	if llmResp != nil {
		_, found, err := o.db.Signals.FindSimilarRecent(ctx, model.EventType(llmResp.EventType), item.Region, model.ObjectType(llmResp.Object), now, similarityWindow)
		if err != nil {
			observ.Log("find_similar_failed", map[string]any{"error": err.Error()})
		}
		similarExisting = found
	}

	result := decision.Decide(decision.Input{
		Filter1Passed:   true,
		LLMResponse:     llmResp,
		SignalsToday:    today,
		SimilarExisting: similarExisting,
	}, decision.Thresholds{
		MinRelevance: cfg.Thresholds.LLMRelevance,
		MinUrgency:   cfg.Thresholds.LLMUrgency,
		MaxPerDay:    cfg.Limits.MaxSignalsPerDay,
	})

	var llmJSONPtr, rawRespPtr *string
	if llmResp != nil {
		if b, err := json.Marshal(llmResp); err == nil {
			llmJSONPtr = stringPtr(string(b))
		}
		rawRespPtr = stringPtr(rawResp)
	}
	status := statusForCode(result.Code, llmErrCode)
	item.Status = status
	if err := o.db.News.UpdateStatus(ctx, item.ID, status, llmJSONPtr, rawRespPtr, &item.Filter1Score); err != nil {
		observ.Log("news_update_status_failed", map[string]any{"error": err.Error()})
	}

	observ.IncCounter("decision_code_total", map[string]string{"code": string(result.Code)})

	if !result.Approved || llmResp == nil {
		return string(result.Code)
	}

	o.handleApproved(ctx, item, *llmResp, now)
	return string(result.Code)
}

func (o *Orchestrator) persistTerminal(ctx context.Context, item *model.NewsItem) {
	if item.ID == 0 {
		if err := o.db.News.Create(ctx, item); err != nil {
			observ.Log("news_create_failed", map[string]any{"error": err.Error()})
		}
		return
	}
	if err := o.db.News.UpdateStatus(ctx, item.ID, item.Status, nil, nil, &item.Filter1Score); err != nil {
		observ.Log("news_update_status_failed", map[string]any{"error": err.Error()})
	}
}

func (o *Orchestrator) handleApproved(ctx context.Context, item model.NewsItem, resp llm.Response, now time.Time) {
	message := decision.Format(item.Title, derefString(item.Region), item.URL, resp)
	signal := decision.ToModelSignal(item.ID, item.Region, resp, message)
	signal.SentAt = now

	created, ok, err := o.db.Signals.TryCreateIfUnderLimit(ctx, signal, o.cfgStore.Get().Limits.MaxSignalsPerDay, o.location)
	if err != nil {
		observ.Log("signal_create_failed", map[string]any{"error": err.Error()})
		return
	}
	if !ok {
		observ.IncCounter("decision_code_total", map[string]string{"code": string(decision.CodeSuppressedLimit)})
		return
	}

	o.clusterIncident(ctx, item, resp, now)

	if o.broadcaster == nil {
		return
	}
	result, err := o.broadcaster.Broadcast(ctx, message)
	if err != nil {
		observ.Log("broadcast_failed", map[string]any{"error": err.Error()})
		return
	}
	observ.IncCounterBy("broadcast_sent_total", nil, float64(result.Sent))
	observ.IncCounterBy("broadcast_failed_total", nil, float64(result.Failed))
	if err := o.db.Signals.SetRecipientCount(ctx, created.ID, result.Sent); err != nil {
		observ.Log("set_recipient_count_failed", map[string]any{"error": err.Error()})
	}
}

func (o *Orchestrator) clusterIncident(ctx context.Context, item model.NewsItem, resp llm.Response, now time.Time) {
	existing, found, err := o.db.Incidents.FindOpenCluster(ctx, item.Region, model.ObjectType(resp.Object), model.EventType(resp.EventType), now, incidentWindow)
	if err != nil {
		observ.Log("find_open_cluster_failed", map[string]any{"error": err.Error()})
		return
	}
	if found {
		if err := o.db.Incidents.IncrementAndTouch(ctx, existing.ID, now); err != nil {
			observ.Log("incident_touch_failed", map[string]any{"error": err.Error()})
		}
		return
	}
	inc := model.Incident{
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       item.Title,
		Region:      item.Region,
		ObjectType:  model.ObjectType(resp.Object),
		EventType:   model.EventType(resp.EventType),
		Status:      model.IncidentOpen,
		SignalCount: 1,
	}
	if err := o.db.Incidents.Create(ctx, &inc); err != nil {
		observ.Log("incident_create_failed", map[string]any{"error": err.Error()})
	}
}

// runAutoHeal clears the disabled flag, reason and failure streak on every
// persisted SourceHealth row whose cooldown has elapsed. It works on the
// stored rows only; the in-memory HealthTracker is not touched here and
// re-enables a source lazily on Allowed().
func (o *Orchestrator) runAutoHeal(ctx context.Context) error {
	rows, err := o.db.Health.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load source health: %w", err)
	}
	now := time.Now()
	healed := 0
	for _, h := range rows {
		if !h.Disabled || h.DisabledAt == nil {
			continue
		}
		if now.Sub(*h.DisabledAt) < autoHealCooldown {
			continue
		}
		h.Disabled = false
		h.DisabledAt = nil
		h.DisabledReason = ""
		h.ConsecutiveFailures = 0
		if err := o.db.Health.Upsert(ctx, h); err != nil {
			observ.Log("source_heal_failed", map[string]any{"source": h.SourceID, "error": err.Error()})
			continue
		}
		healed++
	}
	if healed > 0 {
		observ.Log("sources_healed", map[string]any{"count": healed})
	}
	return nil
}

// runRetention deletes news, ledger, and incident rows past their
// configured retention windows.
func (o *Orchestrator) runRetention(ctx context.Context) error {
	cfg := o.cfgStore.Get()
	now := time.Now()

	newsDeleted, err := o.db.News.DeleteOlderThan(ctx, now.AddDate(0, 0, -cfg.Retention.NewsDays))
	if err != nil {
		return fmt.Errorf("retention news: %w", err)
	}
	ledgerDeleted, err := o.db.LLMUsage.DeleteOlderThan(ctx, now.AddDate(0, 0, -cfg.Retention.LedgerDays))
	if err != nil {
		return fmt.Errorf("retention ledger: %w", err)
	}
	incidentDeleted, err := o.db.Incidents.DeleteOlderThan(ctx, now.AddDate(0, 0, -cfg.Retention.IncidentDays))
	if err != nil {
		return fmt.Errorf("retention incidents: %w", err)
	}

	observ.Log("retention_complete", map[string]any{
		"news_deleted":     newsDeleted,
		"ledger_deleted":   ledgerDeleted,
		"incident_deleted": incidentDeleted,
	})
	return nil
}

func statusForCode(code decision.Code, errCode llm.ErrorCode) model.Status {
	switch code {
	case decision.CodeApproved:
		return model.StatusSent
	case decision.CodeLLMFailed:
		if errCode.IsHardStop() {
			return model.StatusLLMSkipped
		}
		return model.StatusLLMFailed
	case decision.CodeSuppressedLimit:
		return model.StatusSuppressedLimit
	case decision.CodeSuppressedSimilar:
		return model.StatusSuppressedSimilar
	default:
		return model.StatusLLMPassed
	}
}

func categoryWeights(w config.Weights) map[string]int {
	return map[string]int{
		"accident":       w.Accident,
		"repair":         w.Repair,
		"infrastructure": w.Infrastructure,
		"industrial":     w.Industrial,
	}
}

func regionPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func stringPtr(s string) *string {
	return &s
}
