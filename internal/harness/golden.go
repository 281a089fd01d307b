package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/attentionlab/feedsim/internal/event"
)

// TraceSnapshot is the golden-file representation of a scenario run.
// It is rendered with the same canonical encoder the log payloads use,
// so comparison is byte-level.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Hash         string       `json:"hash"`
	Events       int64        `json:"events"`
	Trace        []TraceEvent `json:"trace"`
}

func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, e := range s.Trace {
		trace[i] = e.toCanonicalMap()
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"hash":          s.Hash,
		"events":        s.Events,
		"trace":         trace,
	}
}

// RunWithGolden executes a scenario and compares its trace snapshot
// against testdata/golden/{name}.golden. Regenerate goldens with:
//
//	go test ./internal/harness -update
//
// The run must pass before the golden comparison; a failing scenario
// never overwrites a golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already-obtained result against the golden
// file named after the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Hash:         result.Hash,
		Events:       result.Events,
		Trace:        result.Trace,
	}

	data, err := event.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
