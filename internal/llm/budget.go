package llm

import (
	"sync"
	"time"
)

// Budget tracks spend against a daily cost limit in a configured timezone,
// so a burst of classification calls cannot run the day's LLM bill past
// what operators approved.
type Budget struct {
	mu             sync.Mutex
	dailyLimitUSD  float64
	costPerRequest float64
	loc            *time.Location
	day            string
	spentTodayUSD  float64
}

// NewBudget builds a Budget. loc controls which calendar day spend is
// bucketed into.
func NewBudget(dailyLimitUSD, costPerRequest float64, loc *time.Location) *Budget {
	return &Budget{dailyLimitUSD: dailyLimitUSD, costPerRequest: costPerRequest, loc: loc}
}

// Allow reports whether one more request fits under today's remaining
// budget, rolling over to a fresh day's allowance if the day has changed.
func (b *Budget) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked(now)
	if b.dailyLimitUSD <= 0 {
		return true
	}
	return b.spentTodayUSD+b.costPerRequest <= b.dailyLimitUSD
}

// RecordSpend books one request's cost against today's ledger.
func (b *Budget) RecordSpend(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked(now)
	b.spentTodayUSD += b.costPerRequest
}

// SpentToday returns the amount already booked for the current day.
func (b *Budget) SpentToday(now time.Time) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rolloverLocked(now)
	return b.spentTodayUSD
}

// DailyLimitUSD returns the configured daily spend ceiling, for health
// reporting.
func (b *Budget) DailyLimitUSD() float64 {
	return b.dailyLimitUSD
}

func (b *Budget) rolloverLocked(now time.Time) {
	local := now.In(b.loc)
	day := local.Format("2006-01-02")
	if day != b.day {
		b.day = day
		b.spentTodayUSD = 0
	}
}
