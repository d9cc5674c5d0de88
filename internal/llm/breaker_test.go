package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute, time.Minute)
	now := time.Now()

	require.True(t, b.Allow(now))
	b.RecordFailure(now)
	b.RecordFailure(now)
	require.Equal(t, BreakerClosed, b.State())
	b.RecordFailure(now)
	require.Equal(t, BreakerOpen, b.State())
	require.False(t, b.Allow(now))
}

func TestBreakerProbeAfterCooldown(t *testing.T) {
	b := NewBreaker(1, time.Minute, time.Minute)
	now := time.Now()
	b.RecordFailure(now)
	require.Equal(t, BreakerOpen, b.State())

	require.False(t, b.Allow(now.Add(30*time.Second)))
	require.True(t, b.Allow(now.Add(2*time.Minute)), "probe should be allowed after cooldown")
	require.False(t, b.Allow(now.Add(2*time.Minute)), "second concurrent probe must wait")
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b := NewBreaker(1, time.Minute, time.Minute)
	now := time.Now()
	b.RecordFailure(now)
	require.True(t, b.Allow(now.Add(2*time.Minute)))
	b.RecordSuccess(now.Add(2 * time.Minute))
	require.Equal(t, BreakerClosed, b.State())
	require.True(t, b.Allow(now.Add(2*time.Minute)))
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b := NewBreaker(1, time.Minute, time.Minute)
	now := time.Now()
	b.RecordFailure(now)
	require.True(t, b.Allow(now.Add(2*time.Minute)))
	b.RecordFailure(now.Add(2 * time.Minute))
	require.Equal(t, BreakerOpen, b.State())
	require.False(t, b.Allow(now.Add(2*time.Minute+time.Second)))
}

func TestBreakerOldFailuresEvicted(t *testing.T) {
	b := NewBreaker(2, time.Minute, time.Minute)
	now := time.Now()
	b.RecordFailure(now)
	b.RecordFailure(now.Add(2 * time.Minute))
	require.Equal(t, BreakerClosed, b.State(), "failures outside window must not accumulate")
}
