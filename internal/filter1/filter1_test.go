package filter1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testCfg() Config {
	return Config{
		Keywords:                   DefaultKeywords,
		Weights:                    DefaultWeights,
		Threshold:                  4,
		RequireCombo:               true,
		EventCategories:            DefaultEventCategories,
		ObjectCategories:           DefaultObjectCategories,
		StrongEventOverrideEnabled: true,
		StrongEventOverridePhrases: []string{"чрезвычайная ситуация на теплотрассе"},
	}
}

func TestScoreBelowThreshold(t *testing.T) {
	res := Score("Сегодня в городе тепло и солнечно", testCfg())
	require.False(t, res.Passed)
}

func TestShouldSendComboSatisfied(t *testing.T) {
	send, res, code := ShouldSendToLLM("Авария на котельной", "произошла авария на городской котельной", testCfg())
	require.True(t, send)
	require.Equal(t, CodePassed, code)
	require.Contains(t, res.CategoriesMatched, "accident")
	require.Contains(t, res.CategoriesMatched, "infrastructure")
}

func TestShouldSendComboFailedWithoutOverride(t *testing.T) {
	cfg := testCfg()
	cfg.StrongEventOverrideEnabled = false
	send, _, code := ShouldSendToLLM("Капитальный ремонт произвели в цеху", "работы завершены в срок", cfg)
	require.False(t, send)
	require.Equal(t, CodeComboRuleFailed, code)
}

func TestShouldSendStrongOverrideBypassesCombo(t *testing.T) {
	send, _, code := ShouldSendToLLM("Ремонт продолжается", "объявлена чрезвычайная ситуация на теплотрассе рядом", testCfg())
	require.True(t, send)
	require.Equal(t, CodeStrongOverride, code)
}

func TestScoreNegativeKeywordSuppresses(t *testing.T) {
	res := Score("В результате ДТП произошла авария на теплосети", testCfg())
	require.Less(t, res.Score, DefaultWeights.Category["accident"]+DefaultWeights.Category["infrastructure"])
}
