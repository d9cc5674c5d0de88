package freshness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckStale(t *testing.T) {
	published := time.Now().UTC().Add(-5 * 24 * time.Hour)
	res := Check(&published, time.Now().UTC(), Config{MaxAgeDays: 2})
	require.False(t, res.Passed)
	require.Equal(t, CodeStale, res.DecisionCode)
}

func TestCheckFreshWithinWindow(t *testing.T) {
	published := time.Now().UTC().Add(-1 * time.Hour)
	res := Check(&published, time.Now().UTC(), Config{MaxAgeDays: 2})
	require.True(t, res.Passed)
	require.Equal(t, CodePassed, res.DecisionCode)
}

func TestCheckMissingPublishedAtRejected(t *testing.T) {
	res := Check(nil, time.Now().UTC(), Config{MaxAgeDays: 2, AllowMissing: false})
	require.False(t, res.Passed)
	require.Equal(t, CodeMissingPublishedAt, res.DecisionCode)
}

func TestCheckMissingPublishedAtFallback(t *testing.T) {
	res := Check(nil, time.Now().UTC(), Config{MaxAgeDays: 2, AllowMissing: true, FallbackToCollected: true})
	require.True(t, res.Passed)
}
