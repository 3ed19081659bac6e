package relation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/queryir"
	"github.com/roach88/soqlkit/internal/remote"
	"github.com/roach88/soqlkit/internal/soql"
)

// Runner compiles relations and runs them through a Querier.
// One compile and one round trip per call.
type Runner struct {
	client   remote.Querier
	compiler *soql.Compiler
	catalog  ir.Catalog
}

// NewRunner creates a Runner. The catalog resolves entity names for
// FindByIDs; it may be nil.
func NewRunner(client remote.Querier, compiler *soql.Compiler, catalog ir.Catalog) *Runner {
	if compiler == nil {
		compiler = soql.NewCompiler(nil)
	}
	return &Runner{client: client, compiler: compiler, catalog: catalog}
}

// Compiler returns the runner's compiler.
func (r *Runner) Compiler() *soql.Compiler { return r.compiler }

// All returns every record matching rel.
func (r *Runner) All(ctx context.Context, rel Relation) ([]ir.Record, error) {
	text, err := rel.ToSOQL(r.compiler)
	if err != nil {
		return nil, fmt.Errorf("compile %s query: %w", rel.Entity().Name, err)
	}
	slog.Debug("running query", "entity", rel.Entity().Name, "soql", text)
	return r.client.Query(ctx, text)
}

// First returns the first record ordered by Id, or nil when none match.
// An explicit order on rel is kept.
func (r *Runner) First(ctx context.Context, rel Relation) (*ir.Record, error) {
	return r.one(ctx, rel.FirstScope())
}

// Last returns the last record ordered by Id, or nil when none match.
// An explicit order on rel is reversed.
func (r *Runner) Last(ctx context.Context, rel Relation) (*ir.Record, error) {
	return r.one(ctx, rel.LastScope())
}

// FindBy returns the first record matching conds, or nil.
func (r *Runner) FindBy(ctx context.Context, rel Relation, conds map[string]any) (*ir.Record, error) {
	return r.one(ctx, rel.Where(conds).Limit(1))
}

// FindByIDs loads records of the named entity whose Id is in ids, with one
// query. Every declared field is selected.
func (r *Runner) FindByIDs(ctx context.Context, entity string, ids []string) ([]ir.Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	decl, _ := r.catalog.Lookup(entity)
	return r.All(ctx, New(decl).Where(map[string]any{ir.IdentityField: ids}))
}

func (r *Runner) one(ctx context.Context, rel Relation) (*ir.Record, error) {
	records, err := r.All(ctx, rel)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// FirstScope narrows rel to its first row: ordered by Id unless already
// ordered, limited to one.
func (r Relation) FirstScope() Relation {
	if len(r.orders) == 0 {
		r = r.Order(ir.IdentityField)
	}
	return r.Limit(1)
}

// LastScope narrows rel to its last row by reversing its order, or ordering
// by Id descending when it has none.
func (r Relation) LastScope() Relation {
	if len(r.orders) == 0 {
		r = r.OrderDesc(ir.IdentityField)
	} else {
		r = r.reverseOrder()
	}
	return r.Limit(1)
}

func (r Relation) reverseOrder() Relation {
	out := r.clone()
	for i, o := range out.orders {
		switch node := o.(type) {
		case *queryir.Ascending:
			out.orders[i] = &queryir.Descending{Expr: node.Expr}
		case *queryir.Descending:
			out.orders[i] = &queryir.Ascending{Expr: node.Expr}
		}
	}
	return out
}
