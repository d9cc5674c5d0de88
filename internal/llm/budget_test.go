package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBudgetAllowsUnderLimit(t *testing.T) {
	b := NewBudget(1.0, 0.1, time.UTC)
	now := time.Now()
	require.True(t, b.Allow(now))
}

func TestBudgetMonotonicSpend(t *testing.T) {
	b := NewBudget(0.25, 0.1, time.UTC)
	now := time.Now()

	b.RecordSpend(now)
	s1 := b.SpentToday(now)
	b.RecordSpend(now)
	s2 := b.SpentToday(now)
	require.Greater(t, s2, s1)
}

func TestBudgetBlocksOverLimit(t *testing.T) {
	b := NewBudget(0.2, 0.1, time.UTC)
	now := time.Now()
	b.RecordSpend(now)
	b.RecordSpend(now)
	require.False(t, b.Allow(now))
}

func TestBudgetRollsOverNewDay(t *testing.T) {
	b := NewBudget(0.1, 0.1, time.UTC)
	now := time.Now().UTC()
	b.RecordSpend(now)
	require.False(t, b.Allow(now))

	nextDay := now.Add(24 * time.Hour)
	require.True(t, b.Allow(nextDay))
}

func TestBudgetUnlimitedWhenZero(t *testing.T) {
	b := NewBudget(0, 0.1, time.UTC)
	now := time.Now()
	for i := 0; i < 100; i++ {
		b.RecordSpend(now)
	}
	require.True(t, b.Allow(now))
}
