package decision

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prsbot/signalbot/internal/llm"
)

func defaultThresholds() Thresholds {
	return Thresholds{MinRelevance: 0.6, MinUrgency: 3, MaxPerDay: 5}
}

func TestDecideFilter1RejectedShortCircuits(t *testing.T) {
	in := Input{Filter1Passed: false, Filter1Code: "COMBO_RULE_FAILED"}
	res := Decide(in, defaultThresholds())
	require.Equal(t, Code("COMBO_RULE_FAILED"), res.Code)
	require.False(t, res.Approved)
}

func TestDecideLLMNilIsLLMFailed(t *testing.T) {
	in := Input{Filter1Passed: true, LLMResponse: nil}
	res := Decide(in, defaultThresholds())
	require.Equal(t, CodeLLMFailed, res.Code)
}

func TestDecideLowRelevance(t *testing.T) {
	resp := llm.Response{EventType: llm.EventAccident, Relevance: 0.4, Urgency: 4, Object: llm.ObjectHeat, Action: llm.ActionCall}
	in := Input{Filter1Passed: true, LLMResponse: &resp}
	res := Decide(in, defaultThresholds())
	require.Equal(t, CodeLowRelevance, res.Code)
}

func TestDecideLowUrgency(t *testing.T) {
	resp := llm.Response{EventType: llm.EventAccident, Relevance: 0.9, Urgency: 1, Object: llm.ObjectHeat, Action: llm.ActionCall}
	in := Input{Filter1Passed: true, LLMResponse: &resp}
	res := Decide(in, defaultThresholds())
	require.Equal(t, CodeLowUrgency, res.Code)
}

func TestDecideActionIgnore(t *testing.T) {
	resp := llm.Response{EventType: llm.EventAccident, Relevance: 0.9, Urgency: 4, Object: llm.ObjectHeat, Action: llm.ActionIgnore}
	in := Input{Filter1Passed: true, LLMResponse: &resp}
	res := Decide(in, defaultThresholds())
	require.Equal(t, CodeActionIgnore, res.Code)
}

func TestDecideSuppressedLimit(t *testing.T) {
	resp := llm.Response{EventType: llm.EventAccident, Relevance: 0.9, Urgency: 4, Object: llm.ObjectHeat, Action: llm.ActionCall}
	in := Input{Filter1Passed: true, LLMResponse: &resp, SignalsToday: 5}
	res := Decide(in, defaultThresholds())
	require.Equal(t, CodeSuppressedLimit, res.Code)
}

func TestDecideSuppressedSimilar(t *testing.T) {
	resp := llm.Response{EventType: llm.EventAccident, Relevance: 0.9, Urgency: 4, Object: llm.ObjectHeat, Action: llm.ActionCall}
	in := Input{Filter1Passed: true, LLMResponse: &resp, SignalsToday: 1, SimilarExisting: true}
	res := Decide(in, defaultThresholds())
	require.Equal(t, CodeSuppressedSimilar, res.Code)
}

func TestDecideApproved(t *testing.T) {
	resp := llm.Response{EventType: llm.EventAccident, Relevance: 0.9, Urgency: 4, Object: llm.ObjectHeat, Action: llm.ActionWatch}
	in := Input{Filter1Passed: true, LLMResponse: &resp, SignalsToday: 1}
	res := Decide(in, defaultThresholds())
	require.Equal(t, CodeApproved, res.Code)
	require.True(t, res.Approved)
}

func TestFormatProducesExactlySixLines(t *testing.T) {
	resp := llm.Response{
		EventType: llm.EventAccident, Relevance: 0.9, Urgency: 4,
		Object: llm.ObjectHeat, Why: "Прорыв трубы оставил дома без отопления",
	}
	msg := Format("Авария на теплотрассе в Воронеже", "Воронежская область", "https://example.com/a", resp)
	lines := strings.Split(msg, "\n")
	require.Len(t, lines, 6)
	require.Contains(t, lines[0], "4/5")
	require.Contains(t, lines[1], "Воронежская область")
	require.Contains(t, lines[2], "коммунальные услуги")
}

func TestFormatTruncatesEssenceAndWhy(t *testing.T) {
	longTitle := strings.Repeat("а", 250)
	longWhy := strings.Repeat("б", 400)
	resp := llm.Response{EventType: llm.EventOther, Urgency: 2, Object: llm.ObjectUnknown, Why: longWhy}
	msg := Format(longTitle, "", "u", resp)
	lines := strings.Split(msg, "\n")
	require.LessOrEqual(t, len([]rune(lines[3])), 200)
	require.LessOrEqual(t, len([]rune(lines[4])), 300)
}

func TestSphereMapping(t *testing.T) {
	require.Equal(t, "промышленность", Sphere(llm.ObjectIndustrial))
	require.Equal(t, "коммунальные услуги", Sphere(llm.ObjectWater))
	require.Equal(t, "коммунальные услуги", Sphere(llm.ObjectUnknown))
}
