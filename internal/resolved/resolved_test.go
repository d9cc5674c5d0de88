package resolved

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Enabled:             true,
		HardResolvedPhrases: []string{"авария устранена", "движение восстановлено"},
		SoftResolvedWords:   []string{"устранили", "починили"},
		AllowIfStillOngoing: []string{"устраняют", "без воды", "продолжается"},
	}
}

func TestCheckHardPhraseBlocks(t *testing.T) {
	res := Check("В городе авария устранена", "коммунальщики закончили работы", testConfig())
	require.False(t, res.Passed)
	require.Equal(t, CodeResolved, res.DecisionCode)
}

func TestCheckOngoingOverridesHardPhrase(t *testing.T) {
	res := Check("Авария устранена частично", "в отдельных домах до сих пор без воды", testConfig())
	require.True(t, res.Passed)
	require.True(t, res.OngoingDetected)
}

func TestCheckSoftWordOnlyWhenNoHardMatch(t *testing.T) {
	res := Check("Коммунальщики устранили неполадку", "", testConfig())
	require.False(t, res.Passed)
	require.Equal(t, []string{"устранили"}, res.MatchedPhrases)
}

func TestCheckNoMatchPasses(t *testing.T) {
	res := Check("Прогноз погоды на завтра", "ожидается дождь", testConfig())
	require.True(t, res.Passed)
	require.Equal(t, CodePassed, res.DecisionCode)
}

func TestCheckDisabledAlwaysPasses(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	res := Check("авария устранена", "", cfg)
	require.True(t, res.Passed)
	require.Equal(t, CodeDisabled, res.DecisionCode)
}
