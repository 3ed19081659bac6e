package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEntities = `package entities

entity: Account: fields: {
	Name:              string
	NumberOfEmployees: int
}
`

// createTestEntities writes a small entity file for testing.
func createTestEntities(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "entities.cue")
	require.NoError(t, os.WriteFile(path, []byte(testEntities), 0o644))
	return path
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	createTestEntities(t, dir)

	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
entities:
  - entities.cue
responses:
  - soql: "SELECT COUNT(Id) FROM Account"
    type: AggregateResult
    records:
      - { expr0: 4 }
steps:
  - kind: aggregate
    relation:
      from: Account
      where: { Name: Acme }
      order: [Name DESC]
      limit: 5
    aggregate: { op: count }
    expect:
      value: 4
assertions:
  - type: trace_count
    kind: query
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, []string{filepath.Join(dir, "entities.cue")}, scenario.Entities)
	require.Len(t, scenario.Responses, 1)
	assert.Equal(t, 4, scenario.Responses[0].Records[0]["expr0"])

	require.Len(t, scenario.Steps, 1)
	step := scenario.Steps[0]
	assert.Equal(t, StepAggregate, step.Kind)
	assert.Equal(t, "Account", step.Relation.From)
	assert.Equal(t, "Acme", step.Relation.Where["Name"])
	assert.Equal(t, []string{"Name DESC"}, step.Relation.Order)
	require.NotNil(t, step.Relation.Limit)
	assert.Equal(t, 5, *step.Relation.Limit)
	assert.Equal(t, "count", step.Aggregate.Op)
	assert.Equal(t, 4, step.Expect.Value)
	assert.Len(t, scenario.Assertions, 1)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	dir := t.TempDir()
	createTestEntities(t, dir)
	path := writeScenario(t, dir, `
name: typo
description: "unknown top-level key"
entities: [entities.cue]
step:
  - kind: compile
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	base := t.TempDir()
	createTestEntities(t, base)
	scenarioDir := t.TempDir()
	path := writeScenario(t, scenarioDir, `
name: based
description: "entities resolved against the base path"
entities: [entities.cue]
steps:
  - kind: compile
    relation: { from: Account }
`)

	scenario, err := LoadScenarioWithBasePath(path, base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "entities.cue"), scenario.Entities[0])

	_, err = LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity file not found")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:         "s",
			Description:  "d",
			EntitySource: testEntities,
			Steps:        []Step{{Kind: StepCompile, Relation: &RelationSpec{From: "Account"}}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{"valid", func(s *Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"missing entities", func(s *Scenario) { s.EntitySource = "  " }, "entities or entity_source is required"},
		{"missing steps", func(s *Scenario) { s.Steps = nil }, "steps list is required"},
		{"missing kind", func(s *Scenario) { s.Steps[0].Kind = "" }, "steps[0]: kind is required"},
		{"unknown kind", func(s *Scenario) { s.Steps[0].Kind = "delete" }, `unknown step kind "delete"`},
		{"missing relation", func(s *Scenario) { s.Steps[0].Relation = nil }, "relation.from is required for compile"},
		{
			"aggregate without request",
			func(s *Scenario) { s.Steps[0].Kind = StepAggregate },
			"aggregate is required",
		},
		{
			"unknown aggregate op",
			func(s *Scenario) {
				s.Steps[0].Kind = StepAggregate
				s.Steps[0].Aggregate = &AggregateSpec{Op: "median"}
			},
			`unknown aggregate operation "median"`,
		},
		{
			"create without sobject",
			func(s *Scenario) { s.Steps[0] = Step{Kind: StepCreate} },
			"sobject is required for create",
		},
		{
			"null and value",
			func(s *Scenario) { s.Steps[0].Expect = &ExpectClause{Null: true, Value: 1} },
			"null and value are mutually exclusive",
		},
		{
			"response without soql",
			func(s *Scenario) { s.Responses = []Response{{Type: "Account"}} },
			"responses[0]: soql is required",
		},
		{
			"response with error and records",
			func(s *Scenario) {
				s.Responses = []Response{{SOQL: "SELECT Id FROM Account", Error: "boom", Records: []map[string]any{{"Id": "1"}}}}
			},
			"mutually exclusive",
		},
		{
			"unknown assertion",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: "final_state"}} },
			`unknown assertion type "final_state"`,
		},
		{
			"trace_contains without target",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceContains, Kind: "query"}} },
			"soql or sobject is required",
		},
		{
			"trace_order without calls",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceOrder}} },
			"calls list is required",
		},
		{
			"trace_count negative",
			func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceCount, Kind: "query", Count: -1}} },
			"count must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
