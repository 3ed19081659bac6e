package harness

import "github.com/roach88/soqlkit/internal/ir"

// TraceEvent is one remote call as the journal recorded it.
type TraceEvent struct {
	Seq       int64       `json:"seq"`
	Kind      string      `json:"kind"` // "query", "create" or "update"
	SObject   string      `json:"sobject,omitempty"`
	SOQL      string      `json:"soql,omitempty"`
	Payload   ir.IRObject `json:"payload,omitempty"`
	Rows      int         `json:"rows"`
	CreatedID string      `json:"created_id,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// Describe renders the event the way trace_order assertions name calls:
// the SOQL text for queries, "create Account" style for writes.
func (e TraceEvent) Describe() string {
	if e.Kind == "query" {
		return e.SOQL
	}
	return e.Kind + " " + e.SObject
}

// GroupOutcome is one group of a grouped aggregate step.
type GroupOutcome struct {
	Key      ir.IRArray `json:"key"`
	Value    ir.IRValue `json:"value"`
	EntityID string     `json:"entity_id,omitempty"`
}

// StepOutcome is what one scenario step produced.
type StepOutcome struct {
	Step int    `json:"step"`
	Name string `json:"name,omitempty"`
	Kind string `json:"kind"`

	// SOQL is the compiled text, empty when the step sent no query.
	SOQL string `json:"soql,omitempty"`

	// Value is the aggregate scalar, or the affected row count of an update.
	Value  ir.IRValue     `json:"value,omitempty"`
	Groups []GroupOutcome `json:"groups,omitempty"`

	// Rows is the number of records a query step returned.
	Rows int `json:"rows,omitempty"`

	// ID is the identity a create returned or a first step found.
	ID string `json:"id,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Session is the journal session the remote calls were recorded under.
	Session string `json:"session"`

	Steps []StepOutcome `json:"steps"`

	// Trace contains every remote call in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepOutcome{},
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step outcome.
func (r *Result) AddStep(outcome StepOutcome) {
	r.Steps = append(r.Steps, outcome)
}
