package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGolden_FirstLike(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/first_like.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "scenario failed: %v", result.Errors)
}

func TestTraceSnapshot_CanonicalMapOmitsEmptyFields(t *testing.T) {
	snapshot := TraceSnapshot{
		ScenarioName: "s",
		Hash:         "h",
		Events:       1,
		Trace: []TraceEvent{
			{Seq: 1, Type: OpAdvanceTick, Tick: 1},
		},
	}

	m := snapshot.toCanonicalMap()
	trace, ok := m["trace"].([]any)
	require.True(t, ok)
	require.Len(t, trace, 1)

	first, ok := trace[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"seq":  int64(1),
		"type": OpAdvanceTick,
		"tick": int64(1),
	}, first)
}
