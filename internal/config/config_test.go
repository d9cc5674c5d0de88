package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "timezone: Europe/Moscow\n")
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 4, c.Thresholds.Filter1ToLLM)
	require.Equal(t, 5, c.Limits.MaxSignalsPerDay)
	require.Equal(t, 3, c.Dedup.SimhashThreshold)
	require.NotEmpty(t, c.Dedup.URLParamsRemove)
}

func TestLoadPreservesExplicitValues(t *testing.T) {
	path := writeTempConfig(t, "limits:\n  max_signals_per_day: 9\n")
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, c.Limits.MaxSignalsPerDay)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/path.yaml")
	require.Error(t, err)
}

func TestApplyOverridesKnownPath(t *testing.T) {
	base := Root{}
	applyDefaults(&base)

	updated, errs := ApplyOverrides(base, map[string]string{
		"thresholds.filter1_to_llm": "7",
	})
	require.Empty(t, errs)
	require.Equal(t, 7, updated.Thresholds.Filter1ToLLM)
	require.Equal(t, 4, base.Thresholds.Filter1ToLLM, "base must not mutate")
}

func TestApplyOverridesUnknownPathReported(t *testing.T) {
	base := Root{}
	applyDefaults(&base)

	_, errs := ApplyOverrides(base, map[string]string{"nonsense.path": "1"})
	require.Len(t, errs, 1)
}

func TestStoreSwapIsVisible(t *testing.T) {
	s := NewStore(Root{Timezone: "UTC"})
	require.Equal(t, "UTC", s.Get().Timezone)

	s.Swap(Root{Timezone: "Europe/Moscow"})
	require.Equal(t, "Europe/Moscow", s.Get().Timezone)
}
