package fetch

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/prsbot/signalbot/internal/model"
)

// Fetcher retrieves raw items from one source.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) ([]model.RawItem, error)
}

// Pool fans a list of sources out across bounded concurrency, consulting a
// HealthTracker to skip disabled sources and recording each attempt's
// outcome back into it.
type Pool struct {
	rss         *RSSFetcher
	web         *WebFetcher
	health      *HealthTracker
	limiter     *rate.Limiter
	maxInFlight int
}

// NewPool builds a Pool. maxInFlight bounds concurrent fetches; ratePerSec
// bounds the aggregate request rate across all sources.
func NewPool(rss *RSSFetcher, web *WebFetcher, health *HealthTracker, maxInFlight int, ratePerSec float64) *Pool {
	if maxInFlight <= 0 {
		maxInFlight = 20
	}
	if ratePerSec <= 0 {
		ratePerSec = float64(maxInFlight)
	}
	return &Pool{
		rss:         rss,
		web:         web,
		health:      health,
		limiter:     rate.NewLimiter(rate.Limit(ratePerSec), maxInFlight),
		maxInFlight: maxInFlight,
	}
}

// Health exposes the pool's HealthTracker, for health reporting.
func (p *Pool) Health() *HealthTracker { return p.health }

// FetchAllResult is one source's outcome from a FetchAll call.
type FetchAllResult struct {
	Source  Source
	Items   []model.RawItem
	Err     error
	Skipped bool
}

// FetchAll fetches every source concurrently, bounded by maxInFlight, and
// returns one result per source (errors included rather than dropped, so
// callers can log per-source failures).
func (p *Pool) FetchAll(ctx context.Context, sources []Source) []FetchAllResult {
	results := make([]FetchAllResult, len(sources))
	sem := make(chan struct{}, p.maxInFlight)
	g, ctx := errgroup.WithContext(ctx)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			now := time.Now()
			if p.health != nil && !p.health.Allowed(src.ID, now) {
				results[i] = FetchAllResult{Source: src, Skipped: true}
				return nil
			}

			if err := p.limiter.Wait(ctx); err != nil {
				results[i] = FetchAllResult{Source: src, Err: err}
				return nil
			}

			fetcher := p.fetcherFor(src)
			items, err := fetcher.Fetch(ctx, src)
			if err != nil {
				if p.health != nil {
					p.health.RecordFailure(src.ID, now)
				}
				results[i] = FetchAllResult{Source: src, Err: err}
				return nil
			}
			if p.health != nil {
				p.health.RecordSuccess(src.ID)
			}
			results[i] = FetchAllResult{Source: src, Items: items}
			return nil
		})
	}

	_ = g.Wait() // per-source errors are captured in results, never aborts the group
	return results
}

func (p *Pool) fetcherFor(src Source) Fetcher {
	if src.Type == "web" {
		return p.web
	}
	return p.rss
}
