package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/queryir"
	"github.com/roach88/soqlkit/internal/relation"
	"github.com/roach88/soqlkit/internal/remote"
	"github.com/roach88/soqlkit/internal/soql"
)

// simpleResultField is the name the remote system gives the single column of
// an ungrouped, unaliased aggregate query.
const simpleResultField = "expr0"

// countAllAlias is the result alias of a grouped COUNT over whole rows.
const countAllAlias = "count_all"

// maxAliasLength bounds derived aliases.
const maxAliasLength = 30

// Finder loads records of an entity by identity with one query.
// relation.Runner implements it.
type Finder interface {
	FindByIDs(ctx context.Context, entity string, ids []string) ([]ir.Record, error)
}

// Normalizer rewrites aggregate requests into dialect-legal queries, runs
// them and decodes the results. It holds no mutable state.
type Normalizer struct {
	client   remote.Querier
	compiler *soql.Compiler
	finder   Finder
}

// New creates a Normalizer. A nil finder disables belongs-to hydration
// lookups; grouped results then carry no related records.
func New(client remote.Querier, compiler *soql.Compiler, finder Finder) *Normalizer {
	if compiler == nil {
		compiler = soql.NewCompiler(nil)
	}
	return &Normalizer{client: client, compiler: compiler, finder: finder}
}

// Plan is a rewritten aggregate query.
type Plan struct {
	// Statement is nil when the request short-circuits.
	Statement *queryir.SelectStatement

	// ShortCircuit is set for LIMIT 0 requests, which are answered locally.
	ShortCircuit bool

	// Grouped is set for GROUP BY requests.
	Grouped bool

	// ValueAlias is the result column holding the aggregate value.
	ValueAlias string

	// KeyAliases are the result columns holding the group keys, in order.
	KeyAliases []string

	// KeyFields are the queried group columns, parallel to KeyAliases.
	KeyFields []string

	// Association is set when a belongs-to association was replaced by its
	// foreign key.
	Association *ir.Association
}

// Plan rewrites req over rel without running anything.
func (n *Normalizer) Plan(rel relation.Relation, req Request) (Plan, error) {
	if len(rel.GroupNames()) > 0 {
		return n.planGrouped(rel, req)
	}
	return n.planSimple(rel, req)
}

// Compile returns the SOQL text for req over rel, or "" when the request
// short-circuits.
func (n *Normalizer) Compile(rel relation.Relation, req Request) (string, error) {
	plan, err := n.Plan(rel, req)
	if err != nil {
		return "", err
	}
	if plan.ShortCircuit {
		return "", nil
	}
	return n.compiler.Compile(plan.Statement)
}

// Calculate runs req over rel.
func (n *Normalizer) Calculate(ctx context.Context, rel relation.Relation, req Request) (Result, error) {
	plan, err := n.Plan(rel, req)
	if err != nil {
		return Result{}, err
	}

	if plan.ShortCircuit {
		slog.Debug("aggregate short-circuited on LIMIT 0", "entity", rel.Entity().Name, "op", req.Op)
		return Result{Scalar: zeroValue(req.Op)}, nil
	}

	text, err := n.compiler.Compile(plan.Statement)
	if err != nil {
		return Result{}, fmt.Errorf("compile %s aggregate: %w", req.Op, err)
	}
	slog.Debug("running aggregate", "entity", rel.Entity().Name, "op", req.Op, "grouped", plan.Grouped, "soql", text)

	rows, err := n.client.Query(ctx, text)
	if err != nil {
		return Result{}, err
	}

	if plan.Grouped {
		return n.decodeGrouped(ctx, rel, req, plan, rows)
	}
	return decodeSimple(rel, req, plan, rows)
}

// Count runs COUNT over column; use AllColumns to count rows.
func (n *Normalizer) Count(ctx context.Context, rel relation.Relation, column string) (Result, error) {
	return n.Calculate(ctx, rel, Request{Op: OpCount, Column: column})
}

// Sum runs SUM over column.
func (n *Normalizer) Sum(ctx context.Context, rel relation.Relation, column string) (Result, error) {
	return n.Calculate(ctx, rel, Request{Op: OpSum, Column: column})
}

// Average runs AVG over column.
func (n *Normalizer) Average(ctx context.Context, rel relation.Relation, column string) (Result, error) {
	return n.Calculate(ctx, rel, Request{Op: OpAvg, Column: column})
}

// Minimum runs MIN over column.
func (n *Normalizer) Minimum(ctx context.Context, rel relation.Relation, column string) (Result, error) {
	return n.Calculate(ctx, rel, Request{Op: OpMin, Column: column})
}

// Maximum runs MAX over column.
func (n *Normalizer) Maximum(ctx context.Context, rel relation.Relation, column string) (Result, error) {
	return n.Calculate(ctx, rel, Request{Op: OpMax, Column: column})
}

// planSimple handles requests without grouping.
func (n *Normalizer) planSimple(rel relation.Relation, req Request) (Plan, error) {
	if limit := rel.LimitValue(); limit != nil && *limit == 0 {
		return Plan{ShortCircuit: true}, nil
	}

	if req.Op == OpCount && ((req.all() && req.Distinct) || rel.HasLimitOrOffset()) {
		// The dialect cannot count over a limited subquery, but its LIMIT
		// applies directly to the COUNT form.
		stmt, err := rel.Statement()
		if err != nil {
			return Plan{}, err
		}
		column := req.Column
		if req.all() {
			column = ir.IdentityField
		}
		stmt.Projections = []queryir.Node{&queryir.AggregateCall{
			Name: "COUNT",
			Args: []queryir.Node{queryir.NewRaw(column)},
		}}
		return Plan{Statement: stmt, ValueAlias: simpleResultField}, nil
	}

	// The remote system rejects ORDER BY on an ungrouped aggregate query.
	stmt, err := rel.Unscope(relation.PartOrder).Statement()
	if err != nil {
		return Plan{}, err
	}
	stmt.Projections = []queryir.Node{&queryir.AggregateCall{
		Name:     req.function(),
		Args:     []queryir.Node{resolveColumn(rel, req)},
		Distinct: req.Distinct,
	}}
	return Plan{Statement: stmt, ValueAlias: simpleResultField}, nil
}

// planGrouped handles requests with GROUP BY.
func (n *Normalizer) planGrouped(rel relation.Relation, req Request) (Plan, error) {
	plan := Plan{Grouped: true}

	groupNames := rel.GroupNames()
	fields := groupNames
	if len(groupNames) == 1 {
		if assoc, ok := rel.Entity().Association(groupNames[0]); ok {
			a := assoc
			plan.Association = &a
			fields = []string{assoc.ForeignKey}
		}
	}

	groupNodes := make([]queryir.Node, len(fields))
	keyProjections := make([]queryir.Node, len(fields))
	for i, f := range fields {
		alias := ColumnAlias(f)
		plan.KeyFields = append(plan.KeyFields, f)
		plan.KeyAliases = append(plan.KeyAliases, alias)
		groupNodes[i] = rel.Column(f)
		keyProjections[i] = &queryir.Alias{Expr: rel.Column(f), Name: alias}
	}

	if req.Op == OpCount && req.all() {
		plan.ValueAlias = countAllAlias
	} else {
		column := req.Column
		if req.all() {
			column = AllColumns
		}
		plan.ValueAlias = ColumnAlias(string(req.Op) + " " + column)
	}

	projections := []queryir.Node{&queryir.AggregateCall{
		Name:     req.function(),
		Args:     []queryir.Node{resolveColumn(rel, req)},
		Distinct: req.Distinct,
		Alias:    plan.ValueAlias,
	}}
	// HAVING may only reference aggregates that are also projected.
	if len(rel.HavingValues()) > 0 {
		projections = append(projections, rel.SelectValues()...)
	}
	projections = append(projections, keyProjections...)

	stmt, err := rel.Unscope(relation.PartGroup, relation.PartSelect).Statement()
	if err != nil {
		return Plan{}, err
	}
	stmt.Groups = groupNodes
	stmt.Projections = projections
	plan.Statement = stmt
	return plan, nil
}

// resolveColumn maps the request column to a node: the identity column for
// whole-row aggregates, an attribute for declared fields, raw text otherwise.
func resolveColumn(rel relation.Relation, req Request) queryir.Node {
	if req.all() {
		return rel.Table().Attr(ir.IdentityField)
	}
	return rel.Column(req.Column)
}

var (
	nonWord = regexp.MustCompile(`\W+`)
	spaces  = regexp.MustCompile(` +`)
)

// ColumnAlias derives a result alias from a field name or an
// "<operation> <column>" phrase: lowercased, * spelled "all", runs of
// non-word characters collapsed to one underscore, at most 30 characters.
//
//	ColumnAlias("count Id")     == "count_id"
//	ColumnAlias("LeadSource")   == "leadsource"
//	ColumnAlias("Account.Name") == "account_name"
func ColumnAlias(field string) string {
	s := strings.ToLower(field)
	s = strings.ReplaceAll(s, "*", "all")
	s = nonWord.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = spaces.ReplaceAllString(s, "_")
	if len(s) > maxAliasLength {
		s = s[:maxAliasLength]
	}
	return s
}

// zeroValue is the result of an aggregate over no rows.
func zeroValue(op Op) ir.IRValue {
	switch op {
	case OpCount, OpSum:
		return ir.IRInt(0)
	default:
		return ir.IRNull{}
	}
}
