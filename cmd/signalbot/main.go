// Command signalbot runs the ingestion→filter→classify→signal pipeline:
// it loads configuration, opens the SQLite store, wires the fetchers,
// filters, LLM client, and broadcaster together, then drives the
// orchestrator's scheduled cycles until told to stop.
//
// Grounded on the teacher's cmd/trading-system/main.go: flag-driven config
// path, structured startup logging, an HTTP server for /health and
// /metrics running alongside the main loop, and signal-driven graceful
// shutdown.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prsbot/signalbot/internal/broadcast"
	"github.com/prsbot/signalbot/internal/config"
	"github.com/prsbot/signalbot/internal/dedup"
	"github.com/prsbot/signalbot/internal/fetch"
	"github.com/prsbot/signalbot/internal/llm"
	"github.com/prsbot/signalbot/internal/observ"
	"github.com/prsbot/signalbot/internal/orchestrator"
	"github.com/prsbot/signalbot/internal/region"
	"github.com/prsbot/signalbot/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	dbPath := flag.String("db", "signalbot.db", "path to the SQLite database file")
	addr := flag.String("addr", ":8080", "address for the /health and /metrics HTTP server")
	version := flag.String("version", "dev", "version string reported by /health")
	flag.Parse()

	observ.SetVersion(*version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		observ.Log("startup_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	cfgStore := config.NewStore(cfg)

	db, err := storage.Open(*dbPath)
	if err != nil {
		observ.Log("startup_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer db.Close()

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		observ.Log("timezone_load_failed", map[string]any{"timezone": cfg.Timezone, "error": err.Error()})
		loc = time.UTC
	}

	httpTimeout := time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
	healthTracker := fetch.NewHealthTracker(
		cfg.SourceHealth.DisableAfterFailures,
		time.Duration(cfg.SourceHealth.HealCooldownMinutes)*time.Minute,
	)
	pool := fetch.NewPool(fetch.NewRSSFetcher(httpTimeout), fetch.NewWebFetcher(httpTimeout), healthTracker, 20, 0)

	dd := dedup.New(cfg.Dedup.SimhashThreshold, dedup.DefaultCacheWindow)
	if err := seedDedup(context.Background(), db, dd); err != nil {
		observ.Log("dedup_seed_failed", map[string]any{"error": err.Error()})
	}

	regionDet := region.New(nil)

	var llmClient *llm.Client
	if apiKey := os.Getenv("SIGNALBOT_LLM_API_KEY"); apiKey != "" {
		llmClient = llm.NewClient(llm.Config{
			APIKey:                apiKey,
			BaseURL:               os.Getenv("SIGNALBOT_LLM_BASE_URL"),
			Models:                cfg.LLMBudget.Models,
			Timeout:               httpTimeout,
			DailyLimitUSD:         cfg.LLMBudget.DailyCostLimitUSD,
			CostPerRequestUSD:     cfg.LLMBudget.CostPerRequestUSD,
			BudgetTimezone:        loc,
			BreakerErrorThreshold: cfg.LLMBudget.BreakerErrorThreshold,
			BreakerWindow:         time.Duration(cfg.LLMBudget.BreakerWindowSeconds) * time.Second,
			BreakerCooldown:       time.Duration(cfg.LLMBudget.BreakerCooldownSeconds) * time.Second,
			MaxRequestsPerCycle:   cfg.LLMThrottle.MaxRequestsPerCycle,
			MaxConsecutive429:     cfg.LLMThrottle.MaxConsecutive429,
			BackoffSeconds:        cfg.LLMThrottle.BackoffOn429Seconds,
		})
	} else {
		observ.Log("llm_disabled", map[string]any{"reason": "no api key configured"})
	}

	var bc *broadcast.Broadcaster
	if cfg.Broadcast.Enabled && cfg.Broadcast.BotToken != "" {
		sender := broadcast.NewTelegramSender(cfg.Broadcast.BotToken, httpTimeout)
		bc = broadcast.New(sender, db.Subscribers, db.Subscribers, broadcast.Config{
			MessagesPerSecond:   cfg.Broadcast.MessagesPerSecond,
			MaxRetriesFloodWait: cfg.Broadcast.MaxRetriesFloodWait,
			AdminChatID:         parseInt64(os.Getenv("SIGNALBOT_ADMIN_CHAT_ID")),
		})
	} else {
		observ.Log("broadcast_disabled", map[string]any{})
	}

	orch := orchestrator.New(cfgStore, db, pool, dd, regionDet, llmClient, bc, loc)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/health", observ.HealthHandler())
	mux.Handle("/metrics", observ.Handler())
	mux.Handle("/metrics/debug", observ.DebugHandler())
	mux.Handle("/livez", observ.Health())
	server := &http.Server{Addr: *addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			observ.Log("http_server_failed", map[string]any{"error": err.Error()})
		}
	}()

	observ.Log("signalbot_started", map[string]any{"config": *configPath, "db": *dbPath, "addr": *addr})

	orch.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	observ.Log("signalbot_stopped", map[string]any{})
}

// seedDedup loads the last 72 hours of simhashes into the in-memory
// deduplicator so a restart doesn't re-admit near-duplicates already seen
// before the process died.
func seedDedup(ctx context.Context, db *storage.DB, dd *dedup.Deduplicator) error {
	rows, err := db.News.RecentSimhashes(ctx, time.Now(), dedup.DefaultCacheWindow)
	if err != nil {
		return err
	}
	seeded := make([]struct {
		NewsID        int64
		URLNormalized string
		Simhash       uint64
		SeenAt        time.Time
	}, 0, len(rows))
	for _, r := range rows {
		hash, err := strconv.ParseUint(r.Simhash, 16, 64)
		if err != nil {
			continue
		}
		seeded = append(seeded, struct {
			NewsID        int64
			URLNormalized string
			Simhash       uint64
			SeenAt        time.Time
		}{NewsID: r.NewsID, Simhash: hash, SeenAt: time.Now()})
	}
	dd.SeedExisting(seeded)
	return nil
}

func parseInt64(s string) int64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
