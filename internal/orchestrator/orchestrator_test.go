package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prsbot/signalbot/internal/broadcast"
	"github.com/prsbot/signalbot/internal/config"
	"github.com/prsbot/signalbot/internal/dedup"
	"github.com/prsbot/signalbot/internal/fetch"
	"github.com/prsbot/signalbot/internal/llm"
	"github.com/prsbot/signalbot/internal/model"
	"github.com/prsbot/signalbot/internal/region"
	"github.com/prsbot/signalbot/internal/storage"
)

// fakeSender records every delivery attempt instead of calling a real chat
// provider, so Broadcast's pacing and counting can be asserted without a
// network dependency.
type fakeSender struct {
	mu   sync.Mutex
	sent []int64
}

func (f *fakeSender) Send(ctx context.Context, chatID int64, message string, withFeedbackButtons bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, chatID)
	return nil
}

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func baseConfig() config.Root {
	return config.Root{
		Keywords: config.Keywords{
			Positive: map[string][]string{"accident": {"авария"}},
		},
		Weights: config.Weights{Accident: 5},
		Thresholds: config.Thresholds{
			Filter1ToLLM: 1,
			LLMRelevance: 0.5,
			LLMUrgency:   1,
		},
		Limits: config.Limits{
			MaxSignalsPerDay:   10,
			MaxProcessingBatch: 100,
		},
		Dedup:     config.Dedup{SimhashThreshold: 3},
		Freshness: config.Freshness{MaxAgeDays: 21, AllowMissing: true, FallbackToCollected: true},
		Retention: config.Retention{NewsDays: 90, LedgerDays: 90, IncidentDays: 90},
		Schedule:  config.Schedule{CheckIntervalMinutes: 30},
		Timezone:  "UTC",
	}
}

func newTestOrchestrator(t *testing.T, db *storage.DB, llmClient *llm.Client, bc *broadcast.Broadcaster) (*Orchestrator, *config.Store) {
	t.Helper()
	cfgStore := config.NewStore(baseConfig())
	pool := fetch.NewPool(fetch.NewRSSFetcher(5*time.Second), fetch.NewWebFetcher(5*time.Second), fetch.NewHealthTracker(5, time.Hour), 4, 0)
	dd := dedup.New(3, dedup.DefaultCacheWindow)
	regionDet := region.New(nil)
	return New(cfgStore, db, pool, dd, regionDet, llmClient, bc, time.UTC), cfgStore
}

func rawItem(title, url string) model.RawItem {
	return model.RawItem{
		SourceID: "src-1", SourceName: "Test Source", URL: url, Title: title,
	}
}

func TestProcessItemFreshnessRejection(t *testing.T) {
	db := openTestDB(t)
	orch, cfgStore := newTestOrchestrator(t, db, nil, nil)
	cfg := cfgStore.Get()
	cfg.Freshness = config.Freshness{MaxAgeDays: 1, AllowMissing: false}
	cfgStore.Swap(cfg)

	old := time.Now().Add(-30 * 24 * time.Hour)
	raw := rawItem("Старая авария на теплотрассе", "https://example.com/old")
	raw.PublishedAt = &old

	code := orch.processItem(context.Background(), raw, cfgStore.Get(), time.Now())
	require.Equal(t, "STALE_NEWS", code)

	exists, err := db.News.URLExists(context.Background(), "https://example.com/old")
	require.NoError(t, err)
	require.True(t, exists, "stale item should still be persisted with its terminal status")
}

func TestProcessItemURLDedup(t *testing.T) {
	db := openTestDB(t)
	orch, cfgStore := newTestOrchestrator(t, db, nil, nil)
	cfg := cfgStore.Get()

	raw := rawItem("Авария на водопроводе", "https://example.com/dup")
	now := time.Now()

	first := orch.processItem(context.Background(), raw, cfg, now)
	require.NotEqual(t, string(model.StatusDuplicate), first)

	second := orch.processItem(context.Background(), raw, cfg, now)
	require.Equal(t, string(model.StatusDuplicate), second)

	_, err := db.News.GetByID(context.Background(), 2)
	require.Error(t, err, "a URL-dedup hit must not create a second row")
}

func TestProcessItemSimhashDedup(t *testing.T) {
	db := openTestDB(t)
	orch, cfgStore := newTestOrchestrator(t, db, nil, nil)
	cfg := cfgStore.Get()
	now := time.Now()

	title := "Взрыв на складе боеприпасов в Белгородской области"
	text := "По предварительным данным произошло возгорание на объекте"
	first := rawItem(title, "https://a.example/1")
	first.RawHTML = text
	firstCode := orch.processItem(context.Background(), first, cfg, now)
	require.NotEqual(t, string(model.StatusDuplicate), firstCode)

	second := rawItem(title+" сегодня", "https://b.example/2")
	second.RawHTML = text + " вечером"
	secondCode := orch.processItem(context.Background(), second, cfg, now)
	require.Equal(t, string(model.StatusDuplicate), secondCode)

	item, err := db.News.GetByID(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, item.CanonicalRefID)
	require.Equal(t, int64(1), *item.CanonicalRefID)
}

func TestProcessItemResolvedGateRejection(t *testing.T) {
	db := openTestDB(t)
	orch, cfgStore := newTestOrchestrator(t, db, nil, nil)
	cfg := cfgStore.Get()
	cfg.ResolvedFilter = config.ResolvedFilter{Enabled: true, HardResolvedPhrases: []string{"ликвидирован"}}
	cfgStore.Swap(cfg)

	raw := rawItem("Авария ликвидирован в полном объеме", "https://example.com/resolved")
	code := orch.processItem(context.Background(), raw, cfgStore.Get(), time.Now())
	require.Equal(t, "RESOLVED_EVENT", code)
}

func TestProcessItemNoiseGateRejection(t *testing.T) {
	db := openTestDB(t)
	orch, cfgStore := newTestOrchestrator(t, db, nil, nil)
	cfg := cfgStore.Get()
	cfg.NoiseFilter = config.NoiseFilter{Enabled: true, HardNegativeTopics: []string{"гороскоп"}}
	cfgStore.Swap(cfg)

	raw := rawItem("Авария по гороскопу на сегодня", "https://example.com/noise")
	code := orch.processItem(context.Background(), raw, cfgStore.Get(), time.Now())
	require.Equal(t, "NOISE_HARD_TOPIC", code)
}

func TestProcessItemFilter1Rejection(t *testing.T) {
	db := openTestDB(t)
	orch, cfgStore := newTestOrchestrator(t, db, nil, nil)
	cfg := cfgStore.Get()
	cfg.Thresholds.Filter1ToLLM = 100

	raw := rawItem("Ничем не примечательная новость", "https://example.com/boring")
	code := orch.processItem(context.Background(), raw, cfg, time.Now())
	require.Equal(t, "FILTER1_BELOW_THRESHOLD", code)

	item, err := db.News.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, model.StatusFiltered, item.Status)
}

func TestProcessItemNoLLMClientMarksSkipped(t *testing.T) {
	db := openTestDB(t)
	orch, cfgStore := newTestOrchestrator(t, db, nil, nil)
	cfg := cfgStore.Get()

	raw := rawItem("Авария на теплотрассе", "https://example.com/noclient")
	code := orch.processItem(context.Background(), raw, cfg, time.Now())
	require.Equal(t, "llm_failed", code) // decision.Code for a nil LLM response

	item, err := db.News.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, model.StatusLLMSkipped, item.Status)
}

func TestProcessItemLLMTransientFailureMarksFailed(t *testing.T) {
	db := openTestDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	llmClient := llm.NewClient(llm.Config{BaseURL: srv.URL, APIKey: "k", Timeout: 2 * time.Second})
	orch, cfgStore := newTestOrchestrator(t, db, llmClient, nil)
	cfg := cfgStore.Get()

	raw := rawItem("Авария на теплотрассе", "https://example.com/transient")
	code := orch.processItem(context.Background(), raw, cfg, time.Now())
	require.Equal(t, "llm_failed", code)

	item, err := db.News.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, model.StatusLLMFailed, item.Status)
}

func TestProcessItemLLMHardStopMarksSkipped(t *testing.T) {
	db := openTestDB(t)
	llmClient := llm.NewClient(llm.Config{
		BaseURL: "http://unused.invalid", APIKey: "k",
		DailyLimitUSD: 0.01, CostPerRequestUSD: 1, // first call already exceeds budget
	})
	orch, cfgStore := newTestOrchestrator(t, db, llmClient, nil)
	cfg := cfgStore.Get()

	raw := rawItem("Авария на теплотрассе", "https://example.com/hardstop")
	code := orch.processItem(context.Background(), raw, cfg, time.Now())
	require.Equal(t, "llm_failed", code)

	item, err := db.News.GetByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, model.StatusLLMSkipped, item.Status)
}

func TestProcessItemApprovedCreatesSignalAndBroadcasts(t *testing.T) {
	db := openTestDB(t)
	llmResp := llm.Response{
		EventType: llm.EventAccident, Relevance: 0.9, Urgency: 4,
		Object: llm.ObjectWater, Why: "прорыв трубы", Action: llm.ActionCall,
	}
	body, err := json.Marshal(struct {
		EventType string  `json:"event_type"`
		Relevance float64 `json:"relevance"`
		Urgency   int     `json:"urgency"`
		Object    string  `json:"object"`
		Why       string  `json:"why"`
		Action    string  `json:"action"`
	}{string(llmResp.EventType), llmResp.Relevance, llmResp.Urgency, string(llmResp.Object), llmResp.Why, string(llmResp.Action)})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, string(body))
	}))
	defer srv.Close()

	llmClient := llm.NewClient(llm.Config{BaseURL: srv.URL, APIKey: "k", Timeout: 2 * time.Second})
	sender := &fakeSender{}
	bc := broadcast.New(sender, db.Subscribers, db.Subscribers, broadcast.Config{MessagesPerSecond: 1000})

	ctx := context.Background()
	_, _, err = db.Subscribers.GetOrCreate(ctx, 111, time.Now())
	require.NoError(t, err)

	orch, cfgStore := newTestOrchestrator(t, db, llmClient, bc)
	cfg := cfgStore.Get()

	raw := rawItem("Авария на водопроводе вызвала подтопление улицы", "https://example.com/approved")
	code := orch.processItem(ctx, raw, cfg, time.Now())
	require.Equal(t, "approved", code)

	item, err := db.News.GetByID(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, model.StatusSent, item.Status)

	signals, err := db.Signals.GetRecent(ctx, time.Now(), 1)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	require.Equal(t, 1, signals[0].RecipientCount)

	incident, found, err := db.Incidents.FindOpenCluster(ctx, nil, model.ObjectWater, model.EventAccident, time.Now(), 24*time.Hour)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, incident.SignalCount)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Equal(t, []int64{111}, sender.sent)
}

func TestProcessItemSuppressedBySimilarExisting(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	priorNews := model.NewsItem{
		Title: "prior", Text: "prior", Source: "s", URL: "prior-url", URLNormalized: "prior-url",
		CollectedAt: now, Status: model.StatusSent,
	}
	require.NoError(t, db.News.Create(ctx, &priorNews))

	existing := model.Signal{
		NewsItemID: priorNews.ID, SentAt: now, EventType: model.EventAccident,
		Urgency: 3, ObjectType: model.ObjectWater, Rationale: "prior", MessageBody: "prior",
	}
	_, ok, err := db.Signals.TryCreateIfUnderLimit(ctx, existing, 100, time.UTC)
	require.NoError(t, err)
	require.True(t, ok)

	llmResp := llm.Response{
		EventType: llm.EventAccident, Relevance: 0.9, Urgency: 4,
		Object: llm.ObjectWater, Why: "похожая авария", Action: llm.ActionCall,
	}
	body, err := json.Marshal(struct {
		EventType string  `json:"event_type"`
		Relevance float64 `json:"relevance"`
		Urgency   int     `json:"urgency"`
		Object    string  `json:"object"`
		Why       string  `json:"why"`
		Action    string  `json:"action"`
	}{string(llmResp.EventType), llmResp.Relevance, llmResp.Urgency, string(llmResp.Object), llmResp.Why, string(llmResp.Action)})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%q}}]}`, string(body))
	}))
	defer srv.Close()

	llmClient := llm.NewClient(llm.Config{BaseURL: srv.URL, APIKey: "k", Timeout: 2 * time.Second})
	orch, cfgStore := newTestOrchestrator(t, db, llmClient, nil)

	raw := rawItem("Вторая авария на водопроводе в том же районе", "https://example.com/similar")
	code := orch.processItem(ctx, raw, cfgStore.Get(), now)
	require.Equal(t, "suppressed_similar", code)

	signals, err := db.Signals.GetRecent(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, signals, 1, "no second signal should have been created")
}

func TestRunNewsCycleSkipsWhenLockHeld(t *testing.T) {
	db := openTestDB(t)
	orch, _ := newTestOrchestrator(t, db, nil, nil)
	ctx := context.Background()
	now := time.Now()

	acquired, err := db.Locks.Acquire(ctx, lockName, "someone-else", now, lockDuration)
	require.NoError(t, err)
	require.True(t, acquired)

	require.NoError(t, orch.RunNewsCycle(ctx))

	rows, err := db.News.GetUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows, "no fetch/process work should happen while the lock is held")
}

func TestRunAutoHealReenablesAfterCooldown(t *testing.T) {
	db := openTestDB(t)
	orch, _ := newTestOrchestrator(t, db, nil, nil)
	ctx := context.Background()

	longAgo := time.Now().Add(-2 * time.Hour)
	require.NoError(t, db.Health.Upsert(ctx, model.SourceHealth{
		SourceID: "src-1", Disabled: true, DisabledAt: &longAgo, DisabledReason: "too many failures",
		ConsecutiveFailures: 5,
	}))

	require.NoError(t, orch.runAutoHeal(ctx))

	rows, err := db.Health.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.False(t, rows[0].Disabled)
	require.Equal(t, 0, rows[0].ConsecutiveFailures)
}

func TestRunRetentionDeletesOldRows(t *testing.T) {
	db := openTestDB(t)
	orch, cfgStore := newTestOrchestrator(t, db, nil, nil)
	cfg := cfgStore.Get()
	cfg.Retention = config.Retention{NewsDays: 1, LedgerDays: 1, IncidentDays: 1}
	cfgStore.Swap(cfg)

	old := time.Now().Add(-10 * 24 * time.Hour)
	require.NoError(t, db.News.Create(context.Background(), &model.NewsItem{
		Title: "old", Text: "x", Source: "s", URL: "old-url", URLNormalized: "old-url",
		CollectedAt: old, Status: model.StatusFiltered,
	}))

	require.NoError(t, orch.runRetention(context.Background()))

	exists, err := db.News.URLExists(context.Background(), "old-url")
	require.NoError(t, err)
	require.False(t, exists)
}
