package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/soqlkit/internal/ir"
)

// TraceSnapshot captures the step outcomes and remote trace of a scenario.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string        `json:"scenario_name"`
	Session      string        `json:"session,omitempty"`
	Steps        []StepOutcome `json:"steps"`
	Trace        []TraceEvent  `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical JSON serialization.
// This is required because ir.MarshalCanonical only handles IR types and primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	steps := make([]any, len(s.Steps))
	for i, o := range s.Steps {
		m := map[string]any{
			"step": o.Step,
			"kind": o.Kind,
		}
		if o.Name != "" {
			m["name"] = o.Name
		}
		if o.SOQL != "" {
			m["soql"] = o.SOQL
		}
		if o.Value != nil {
			m["value"] = o.Value
		}
		if o.Groups != nil {
			groups := make([]any, len(o.Groups))
			for j, g := range o.Groups {
				gm := map[string]any{"key": g.Key, "value": g.Value}
				if g.EntityID != "" {
					gm["entity_id"] = g.EntityID
				}
				groups[j] = gm
			}
			m["groups"] = groups
		}
		if o.Rows != 0 {
			m["rows"] = o.Rows
		}
		if o.ID != "" {
			m["id"] = o.ID
		}
		if o.Error != "" {
			m["error"] = o.Error
		}
		steps[i] = m
	}

	trace := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		m := map[string]any{
			"seq":  event.Seq,
			"kind": event.Kind,
			"rows": event.Rows,
		}
		if event.SObject != "" {
			m["sobject"] = event.SObject
		}
		if event.SOQL != "" {
			m["soql"] = event.SOQL
		}
		if len(event.Payload) > 0 {
			m["payload"] = event.Payload
		}
		if event.CreatedID != "" {
			m["created_id"] = event.CreatedID
		}
		if event.Error != "" {
			m["error"] = event.Error
		}
		trace[i] = m
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"steps":         steps,
		"trace":         trace,
	}
	if s.Session != "" {
		result["session"] = s.Session
	}
	return result
}

// NewTraceSnapshot captures a scenario result for golden comparison.
func NewTraceSnapshot(scenarioName string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: scenarioName,
		Session:      result.Session,
		Steps:        result.Steps,
		Trace:        result.Trace,
	}
}

// Marshal renders the snapshot as canonical JSON.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	data, err := snapshot.Marshal()
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
