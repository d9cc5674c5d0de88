package noise

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Enabled:               true,
		HardNegativeTopics:    []string{"убийство", "погиб"},
		DomesticNoise:         []string{"сосед", "квартир"},
		ExceptionInfraPhrases: []string{"авария на котельной", "прорыв трубы"},
	}
}

func TestCheckHardTopicBlocks(t *testing.T) {
	res := Check("В результате ДТП один человек погиб", "подробности устанавливаются", testConfig())
	require.False(t, res.Passed)
	require.Equal(t, CodeHardTopic, res.DecisionCode)
}

func TestCheckExceptionOverridesNoise(t *testing.T) {
	res := Check("Жилец квартиры погиб при пожаре", "причиной стала авария на котельной в подвале дома", testConfig())
	require.True(t, res.Passed)
	require.Equal(t, CodePassedException, res.DecisionCode)
}

func TestCheckNoMatchPasses(t *testing.T) {
	res := Check("Открылся новый парк", "горожане довольны благоустройством", testConfig())
	require.True(t, res.Passed)
	require.Equal(t, CodePassed, res.DecisionCode)
}

func TestCheckDisabledAlwaysPasses(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	res := Check("сосед погиб", "", cfg)
	require.True(t, res.Passed)
	require.Equal(t, CodeDisabled, res.DecisionCode)
}
