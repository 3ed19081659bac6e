package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/soqlkit/internal/aggregate"
)

// Scenario defines a conformance test scenario.
// A scenario declares entities, scripts the remote system's responses,
// then runs query, aggregate and write steps against it, checking the
// SOQL sent and the decoded results.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Entities lists CUE files or directories declaring the entities.
	// Paths are relative to the scenario file location.
	Entities []string `yaml:"entities,omitempty"`

	// EntitySource is inline CUE, used instead of or alongside Entities.
	EntitySource string `yaml:"entity_source,omitempty"`

	// Sandboxed runs the writes behind a sandbox gate that refuses them.
	Sandboxed bool `yaml:"sandboxed,omitempty"`

	// Responses scripts the remote system. Queries with no response
	// return no rows.
	Responses []Response `yaml:"responses,omitempty"`

	// Steps run in order. A failing step does not stop later steps.
	Steps []Step `yaml:"steps"`

	// Assertions validate the recorded trace after all steps ran.
	// Supported types: trace_contains, trace_order, trace_count, no_writes
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Response is a scripted answer to one SOQL text.
type Response struct {
	SOQL string `yaml:"soql"`

	// Type is the record type in the metadata envelope, e.g. "Account"
	// or "AggregateResult".
	Type string `yaml:"type,omitempty"`

	Records []map[string]any `yaml:"records,omitempty"`

	// Error makes the query fail with this message.
	Error string `yaml:"error,omitempty"`
}

// Step kinds.
const (
	StepCompile   = "compile"
	StepQuery     = "query"
	StepFirst     = "first"
	StepAggregate = "aggregate"
	StepCreate    = "create"
	StepUpdate    = "update"
)

// Step is one operation of the scenario.
type Step struct {
	Name string `yaml:"name,omitempty"`
	Kind string `yaml:"kind"`

	// Relation is the query built by compile, query, first and aggregate steps.
	Relation *RelationSpec `yaml:"relation,omitempty"`

	// Aggregate is the request of an aggregate step.
	Aggregate *AggregateSpec `yaml:"aggregate,omitempty"`

	// SObject, ID and Fields describe create and update steps.
	SObject string         `yaml:"sobject,omitempty"`
	ID      string         `yaml:"id,omitempty"`
	Fields  map[string]any `yaml:"fields,omitempty"`

	// Expect is checked against the step outcome. If nil, the step only
	// has to succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// RelationSpec builds a relation over a declared entity.
type RelationSpec struct {
	From   string         `yaml:"from"`
	Select []string       `yaml:"select,omitempty"`
	Where  map[string]any `yaml:"where,omitempty"`
	Not    map[string]any `yaml:"not,omitempty"`

	// WhereRaw fragments use ? placeholders bound from Args.
	WhereRaw []Fragment `yaml:"where_raw,omitempty"`

	Group  []string   `yaml:"group,omitempty"`
	Having []Fragment `yaml:"having,omitempty"`

	// Order entries are a column name, optionally followed by ASC or DESC.
	Order []string `yaml:"order,omitempty"`

	Limit  *int `yaml:"limit,omitempty"`
	Offset *int `yaml:"offset,omitempty"`
}

// Fragment is a raw condition with bound arguments.
type Fragment struct {
	SQL  string `yaml:"sql"`
	Args []any  `yaml:"args,omitempty"`
}

// AggregateSpec is an aggregate request.
type AggregateSpec struct {
	Op       string `yaml:"op"`
	Column   string `yaml:"column,omitempty"`
	Distinct bool   `yaml:"distinct,omitempty"`
}

// ExpectClause specifies the expected step outcome. Only the fields that
// are set are validated.
type ExpectClause struct {
	// SOQL is the exact text the step compiles to.
	SOQL string `yaml:"soql,omitempty"`

	// Value is the aggregate scalar or the affected row count.
	Value any `yaml:"value,omitempty"`

	// Null expects the value to be null. YAML cannot tell value: ~ from
	// an absent value, so null has its own flag.
	Null bool `yaml:"null,omitempty"`

	Groups []ExpectGroup `yaml:"groups,omitempty"`

	Rows *int   `yaml:"rows,omitempty"`
	ID   string `yaml:"id,omitempty"`

	// Error is a substring the step's error must contain. When set the
	// step is expected to fail.
	Error string `yaml:"error,omitempty"`
}

// ExpectGroup is one expected group of a grouped aggregate, in order.
type ExpectGroup struct {
	Key   []any `yaml:"key"`
	Value any   `yaml:"value"`

	// Entity is the identity of the hydrated related record.
	Entity string `yaml:"entity,omitempty"`
}

// Assertion validates the recorded trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": a call of Kind with SOQL or SObject was made
	// - "trace_order": calls were made in the order of Calls
	// - "trace_count": exactly Count calls of Kind were made
	// - "no_writes": no create or update reached the remote system
	Type string `yaml:"type"`

	Kind    string `yaml:"kind,omitempty"`
	SOQL    string `yaml:"soql,omitempty"`
	SObject string `yaml:"sobject,omitempty"`

	// Count is the expected number of calls (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Calls is the expected call order (used by trace_order), each named
	// as TraceEvent.Describe renders it.
	Calls []string `yaml:"calls,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertNoWrites      = "no_writes"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// Entity paths are resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving entity paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve entity paths relative to base path BEFORE validation
	for i, p := range scenario.Entities {
		if !filepath.IsAbs(p) && basePath != "" {
			scenario.Entities[i] = filepath.Join(basePath, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Entities) == 0 && strings.TrimSpace(s.EntitySource) == "" {
		return fmt.Errorf("entities or entity_source is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, p := range s.Entities {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("entity file not found: %s", p)
		}
	}

	for i, r := range s.Responses {
		if r.SOQL == "" {
			return fmt.Errorf("responses[%d]: soql is required", i)
		}
		if r.Error != "" && len(r.Records) > 0 {
			return fmt.Errorf("responses[%d]: error and records are mutually exclusive", i)
		}
	}

	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single step based on its kind.
func validateStep(index int, st *Step) error {
	switch st.Kind {
	case StepCompile, StepQuery, StepFirst:
		if st.Relation == nil || st.Relation.From == "" {
			return fmt.Errorf("steps[%d]: relation.from is required for %s", index, st.Kind)
		}
	case StepAggregate:
		if st.Relation == nil || st.Relation.From == "" {
			return fmt.Errorf("steps[%d]: relation.from is required for aggregate", index)
		}
		if st.Aggregate == nil {
			return fmt.Errorf("steps[%d]: aggregate is required for aggregate", index)
		}
		if _, err := aggregate.ParseOp(st.Aggregate.Op); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case StepCreate:
		if st.SObject == "" {
			return fmt.Errorf("steps[%d]: sobject is required for create", index)
		}
	case StepUpdate:
		if st.SObject == "" {
			return fmt.Errorf("steps[%d]: sobject is required for update", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: kind is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown step kind %q", index, st.Kind)
	}

	if st.Expect != nil && st.Expect.Null && st.Expect.Value != nil {
		return fmt.Errorf("steps[%d].expect: null and value are mutually exclusive", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_contains", index)
		}
		if a.SOQL == "" && a.SObject == "" {
			return fmt.Errorf("assertions[%d]: soql or sobject is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Calls) == 0 {
			return fmt.Errorf("assertions[%d]: calls list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertNoWrites:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
