package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/soqlkit/internal/aggregate"
	"github.com/roach88/soqlkit/internal/compiler"
	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/relation"
	"github.com/roach88/soqlkit/internal/soql"
	"github.com/roach88/soqlkit/internal/store"
	"github.com/roach88/soqlkit/internal/testutil"
	"github.com/roach88/soqlkit/internal/write"
)

// inlineEntityFile names inline entity source in CUE error messages.
const inlineEntityFile = "entity_source.cue"

// Harness is the test execution engine.
// It runs scenario steps against a scripted fake remote system, journaling
// every call with deterministic IDs, seq values and timestamps.
type Harness struct {
	catalog  ir.Catalog
	compiler *soql.Compiler
	runner   *relation.Runner
	agg      *aggregate.Normalizer
	writes   *write.Redirector
	logger   *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory journal for isolation.
//
// Execution flow:
// 1. Load and validate the entity declarations
// 2. Script the fake remote system from the scenario's responses
// 3. Execute steps, checking each expect clause
// 4. Read the trace back from the journal and evaluate assertions
//
// Failed expectations mark the result as failed; the returned error is
// reserved for scenarios that cannot run at all.
func Run(scenario *Scenario) (*Result, error) {
	catalog, err := LoadCatalog(scenario)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	fake := testutil.NewFakeClient()
	if err := scriptResponses(fake, scenario.Responses); err != nil {
		return nil, err
	}

	ctx := context.Background()
	rec, err := store.NewRecorder(ctx, fake, st, scenario.Name,
		store.WithIDGenerator(testutil.NewSequentialIDGenerator(scenario.Name)),
		store.WithSeqSource(testutil.NewDeterministicClock()),
		store.WithNow(testutil.FixedNow(testutil.FixedTime)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start journal session: %w", err)
	}

	c := soql.NewCompiler(nil)
	runner := relation.NewRunner(rec, c, catalog)
	h := &Harness{
		catalog:  catalog,
		compiler: c,
		runner:   runner,
		agg:      aggregate.New(rec, c, runner),
		writes:   write.New(rec, write.StaticGate(scenario.Sandboxed)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	result := NewResult()
	result.Session = rec.Session()

	for i, step := range scenario.Steps {
		outcome, stepErr := h.executeStep(ctx, i, step)
		if stepErr != nil {
			outcome.Error = stepErr.Error()
		}
		checkExpect(i, step, outcome, stepErr, result)
		result.AddStep(outcome)

		h.logger.Info("step completed",
			"step", i,
			"kind", step.Kind,
			"soql", outcome.SOQL,
			"error", outcome.Error,
		)
	}

	calls, err := st.ReadCalls(ctx, rec.Session())
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, call := range calls {
		result.Trace = append(result.Trace, traceEvent(call))
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// LoadCatalog compiles the scenario's entity declarations and rejects
// catalogs with validation errors.
func LoadCatalog(scenario *Scenario) (ir.Catalog, error) {
	catalog := ir.Catalog{}
	for _, path := range scenario.Entities {
		c, err := compiler.LoadEntities(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load entities %s: %w", path, err)
		}
		for name, e := range c {
			catalog[name] = e
		}
	}
	if strings.TrimSpace(scenario.EntitySource) != "" {
		c, err := compiler.CompileSource(inlineEntityFile, scenario.EntitySource)
		if err != nil {
			return nil, fmt.Errorf("failed to compile entity_source: %w", err)
		}
		for name, e := range c {
			catalog[name] = e
		}
	}

	if verrs := compiler.Validate(catalog); len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i, v := range verrs {
			msgs[i] = v.Error()
		}
		return nil, fmt.Errorf("invalid entities: %s", strings.Join(msgs, "; "))
	}
	return catalog, nil
}

// scriptResponses registers the scenario's responses with the fake client.
func scriptResponses(fake *testutil.FakeClient, responses []Response) error {
	for i, resp := range responses {
		if resp.Error != "" {
			fake.FailQuery(resp.SOQL, errors.New(resp.Error))
			continue
		}
		records := make([]ir.Record, len(resp.Records))
		for j, fields := range resp.Records {
			rec, err := buildRecord(resp.Type, fields)
			if err != nil {
				return fmt.Errorf("responses[%d].records[%d]: %w", i, j, err)
			}
			records[j] = rec
		}
		fake.OnQuery(resp.SOQL, records...)
	}
	return nil
}

// buildRecord converts a YAML row into a record. Field order is sorted so
// that runs are reproducible.
func buildRecord(typ string, fields map[string]any) (ir.Record, error) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	rec := ir.NewRecord(typ)
	for _, name := range names {
		v, err := ir.FromGo(fields[name])
		if err != nil {
			return ir.Record{}, fmt.Errorf("field %q: %w", name, err)
		}
		rec.Set(name, v)
	}
	return rec, nil
}

// executeStep runs one step. The outcome is filled as far as the step got.
func (h *Harness) executeStep(ctx context.Context, index int, step Step) (StepOutcome, error) {
	outcome := StepOutcome{Step: index, Name: step.Name, Kind: step.Kind}

	switch step.Kind {
	case StepCompile, StepQuery, StepFirst:
		rel, err := BuildRelation(h.catalog, step.Relation)
		if err != nil {
			return outcome, err
		}
		if step.Kind != StepFirst {
			outcome.SOQL, err = rel.ToSOQL(h.compiler)
			if err != nil {
				return outcome, err
			}
		}
		switch step.Kind {
		case StepQuery:
			records, err := h.runner.All(ctx, rel)
			if err != nil {
				return outcome, err
			}
			outcome.Rows = len(records)
		case StepFirst:
			rec, err := h.runner.First(ctx, rel)
			if err != nil {
				return outcome, err
			}
			if rec != nil {
				outcome.Rows = 1
				outcome.ID = rec.ID()
			}
		}
		return outcome, nil

	case StepAggregate:
		rel, err := BuildRelation(h.catalog, step.Relation)
		if err != nil {
			return outcome, err
		}
		op, err := aggregate.ParseOp(step.Aggregate.Op)
		if err != nil {
			return outcome, err
		}
		req := aggregate.Request{Op: op, Column: step.Aggregate.Column, Distinct: step.Aggregate.Distinct}

		outcome.SOQL, err = h.agg.Compile(rel, req)
		if err != nil {
			return outcome, err
		}
		res, err := h.agg.Calculate(ctx, rel, req)
		if err != nil {
			return outcome, err
		}
		if !res.Grouped() {
			outcome.Value = res.Scalar
			return outcome, nil
		}
		outcome.Groups = make([]GroupOutcome, len(res.Groups))
		for i, g := range res.Groups {
			group := GroupOutcome{Key: ir.IRArray(g.Key), Value: g.Value}
			if g.Entity != nil {
				group.EntityID = g.Entity.ID()
			}
			outcome.Groups[i] = group
		}
		return outcome, nil

	case StepCreate:
		fields, err := convertFields(step.Fields)
		if err != nil {
			return outcome, err
		}
		outcome.ID, err = h.writes.Create(ctx, step.SObject, fields)
		return outcome, err

	case StepUpdate:
		fields, err := convertFields(step.Fields)
		if err != nil {
			return outcome, err
		}
		n, err := h.writes.Update(ctx, step.SObject, step.ID, fields)
		outcome.Value = ir.IRInt(n)
		return outcome, err

	default:
		return outcome, fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

// BuildRelation turns a RelationSpec into a relation over an entity of catalog.
func BuildRelation(catalog ir.Catalog, spec *RelationSpec) (relation.Relation, error) {
	entity, ok := catalog.Lookup(spec.From)
	if !ok {
		return relation.Relation{}, fmt.Errorf("unknown entity %q", spec.From)
	}

	rel := relation.New(entity)
	if len(spec.Select) > 0 {
		rel = rel.Select(spec.Select...)
	}
	if len(spec.Where) > 0 {
		rel = rel.Where(spec.Where)
	}
	if len(spec.Not) > 0 {
		rel = rel.Not(spec.Not)
	}
	for _, f := range spec.WhereRaw {
		rel = rel.WhereRaw(f.SQL, f.Args...)
	}
	if len(spec.Group) > 0 {
		rel = rel.Group(spec.Group...)
	}
	for _, f := range spec.Having {
		rel = rel.Having(f.SQL, f.Args...)
	}
	for _, o := range spec.Order {
		column, dir, _ := strings.Cut(strings.TrimSpace(o), " ")
		switch strings.ToUpper(strings.TrimSpace(dir)) {
		case "", "ASC":
			rel = rel.Order(column)
		case "DESC":
			rel = rel.OrderDesc(column)
		default:
			return relation.Relation{}, fmt.Errorf("invalid order %q", o)
		}
	}
	if spec.Limit != nil {
		rel = rel.Limit(*spec.Limit)
	}
	if spec.Offset != nil {
		rel = rel.Offset(*spec.Offset)
	}
	return rel, rel.Err()
}

// checkExpect validates a step outcome against its expect clause.
func checkExpect(index int, step Step, outcome StepOutcome, stepErr error, result *Result) {
	exp := step.Expect
	prefix := fmt.Sprintf("step %d (%s)", index, step.Kind)

	if exp != nil && exp.Error != "" {
		switch {
		case stepErr == nil:
			result.AddError(fmt.Sprintf("%s: expected error containing %q, got success", prefix, exp.Error))
		case !strings.Contains(stepErr.Error(), exp.Error):
			result.AddError(fmt.Sprintf("%s: expected error containing %q, got %q", prefix, exp.Error, stepErr.Error()))
		}
		return
	}
	if stepErr != nil {
		result.AddError(fmt.Sprintf("%s: %v", prefix, stepErr))
		return
	}
	if exp == nil {
		return
	}

	if exp.SOQL != "" && exp.SOQL != outcome.SOQL {
		result.AddError(fmt.Sprintf("%s: expected SOQL %q, got %q", prefix, exp.SOQL, outcome.SOQL))
	}
	if exp.Null && !ir.IsNull(outcome.Value) {
		result.AddError(fmt.Sprintf("%s: expected null value, got %s", prefix, canonicalText(outcome.Value)))
	}
	if exp.Value != nil {
		if msg := compareValue(exp.Value, outcome.Value); msg != "" {
			result.AddError(fmt.Sprintf("%s: value %s", prefix, msg))
		}
	}
	if exp.Groups != nil {
		checkGroups(prefix, exp.Groups, outcome.Groups, result)
	}
	if exp.Rows != nil && *exp.Rows != outcome.Rows {
		result.AddError(fmt.Sprintf("%s: expected %d rows, got %d", prefix, *exp.Rows, outcome.Rows))
	}
	if exp.ID != "" && exp.ID != outcome.ID {
		result.AddError(fmt.Sprintf("%s: expected id %q, got %q", prefix, exp.ID, outcome.ID))
	}
}

// checkGroups compares grouped outcomes in order.
func checkGroups(prefix string, expected []ExpectGroup, actual []GroupOutcome, result *Result) {
	if len(expected) != len(actual) {
		result.AddError(fmt.Sprintf("%s: expected %d groups, got %d", prefix, len(expected), len(actual)))
		return
	}
	for i, exp := range expected {
		got := actual[i]
		if msg := compareValue(exp.Key, got.Key); msg != "" {
			result.AddError(fmt.Sprintf("%s: group %d key %s", prefix, i, msg))
		}
		if msg := compareValue(exp.Value, got.Value); msg != "" {
			result.AddError(fmt.Sprintf("%s: group %d value %s", prefix, i, msg))
		}
		if exp.Entity != "" && exp.Entity != got.EntityID {
			result.AddError(fmt.Sprintf("%s: group %d expected entity %q, got %q", prefix, i, exp.Entity, got.EntityID))
		}
	}
}

// compareValue compares an expected YAML value with an actual value by
// their canonical JSON forms, so 2.5 matches a decimal and "2024-01-02"
// matches a date. It returns "" on a match.
func compareValue(expected any, actual ir.IRValue) string {
	want, err := ir.FromGo(expected)
	if err != nil {
		return fmt.Sprintf("has unsupported expected value: %v", err)
	}
	wantText := canonicalText(want)
	gotText := canonicalText(actual)
	if wantText != gotText {
		return fmt.Sprintf("expected %s, got %s", wantText, gotText)
	}
	return ""
}

// canonicalText renders v as canonical JSON for messages and comparison.
func canonicalText(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

// convertFields converts YAML-parsed write fields into an IRObject.
func convertFields(fields map[string]any) (ir.IRObject, error) {
	if fields == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromGo(fields)
	if err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	return v.(ir.IRObject), nil
}

// traceEvent converts a journal call into a trace event.
func traceEvent(call store.Call) TraceEvent {
	return TraceEvent{
		Seq:       call.Seq,
		Kind:      string(call.Kind),
		SObject:   call.SObject,
		SOQL:      call.SOQL,
		Payload:   call.Payload,
		Rows:      len(call.Records),
		CreatedID: call.CreatedID,
		Error:     call.Err,
	}
}
