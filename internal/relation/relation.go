package relation

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/queryir"
	"github.com/roach88/soqlkit/internal/soql"
)

// Part names a clause that Unscope can clear.
type Part string

const (
	PartSelect Part = "select"
	PartWhere  Part = "where"
	PartGroup  Part = "group"
	PartHaving Part = "having"
	PartOrder  Part = "order"
	PartLimit  Part = "limit"
	PartOffset Part = "offset"
)

// Relation is a query under construction against one entity.
type Relation struct {
	entity *ir.Entity
	table  *queryir.Table

	selects    []queryir.Node
	wheres     []queryir.Node
	groups     []queryir.Node
	groupNames []string
	havings    []queryir.Node
	orders     []queryir.Node
	limit      *int
	offset     *int

	err error
}

// New starts a relation over the entity's table.
func New(entity *ir.Entity) Relation {
	return Relation{
		entity: entity,
		table:  queryir.NewTable(entity.Name),
	}
}

// Entity returns the entity declaration the relation queries.
func (r Relation) Entity() *ir.Entity { return r.entity }

// Table returns the relation's source table.
func (r Relation) Table() *queryir.Table { return r.table }

// Err returns the first builder error, if any.
func (r Relation) Err() error { return r.err }

// Column resolves a name to a node: a declared field becomes an attribute on
// the table; anything else (relationship paths, expressions) is passed
// through as raw text.
func (r Relation) Column(name string) queryir.Node {
	if r.entity != nil && r.entity.HasField(name) {
		return r.table.Attr(name)
	}
	return queryir.NewRaw(name)
}

// Select adds columns to the projection. Duplicates are skipped.
func (r Relation) Select(columns ...string) Relation {
	out := r.clone()
	for _, c := range columns {
		if slices.Contains(out.selectNames(), c) {
			continue
		}
		out.selects = append(out.selects, out.Column(c))
	}
	return out
}

// SelectNodes adds arbitrary nodes to the projection.
func (r Relation) SelectNodes(nodes ...queryir.Node) Relation {
	out := r.clone()
	out.selects = append(out.selects, nodes...)
	return out
}

// SelectSubquery adds a nested query to the projection, as in
// SELECT Name, (SELECT LastName FROM Contacts) FROM Account.
func (r Relation) SelectSubquery(sub Relation) Relation {
	stmt, err := sub.Statement()
	if err != nil {
		return r.withErr(fmt.Errorf("subquery: %w", err))
	}
	return r.SelectNodes(&queryir.Subquery{Query: stmt})
}

// Where adds equality conditions. Keys are applied in sorted order so the
// rendered text is stable. Slice values become IN lists.
func (r Relation) Where(conds map[string]any) Relation {
	return r.addConditions(conds, false)
}

// WhereEq adds a single equality condition.
func (r Relation) WhereEq(column string, value any) Relation {
	return r.addConditions(map[string]any{column: value}, false)
}

// Not adds negated equality conditions (column != value).
func (r Relation) Not(conds map[string]any) Relation {
	return r.addConditions(conds, true)
}

// WhereRaw adds a raw condition. Each ? is replaced by the quoted argument
// and the fragment is wrapped in parentheses.
func (r Relation) WhereRaw(fragment string, args ...any) Relation {
	node, err := rawCondition(fragment, args)
	if err != nil {
		return r.withErr(fmt.Errorf("where %q: %w", fragment, err))
	}
	out := r.clone()
	out.wheres = append(out.wheres, node)
	return out
}

// WhereNode adds a prebuilt condition.
func (r Relation) WhereNode(node queryir.Node) Relation {
	out := r.clone()
	out.wheres = append(out.wheres, node)
	return out
}

// Or combines the conditions of r and other as (r OR other). Other clauses
// of other are ignored.
func (r Relation) Or(other Relation) Relation {
	if other.err != nil {
		return r.withErr(other.err)
	}
	if len(r.wheres) == 0 || len(other.wheres) == 0 {
		return r.withErr(errors.New("or: both relations need conditions"))
	}
	out := r.clone()
	out.wheres = []queryir.Node{&queryir.Or{Children: []queryir.Node{
		conjunction(r.wheres),
		conjunction(other.wheres),
	}}}
	return out
}

// Group adds grouping columns.
func (r Relation) Group(columns ...string) Relation {
	out := r.clone()
	for _, c := range columns {
		out.groupNames = append(out.groupNames, c)
		out.groups = append(out.groups, out.Column(c))
	}
	return out
}

// Having adds a raw HAVING condition with ? interpolation, wrapped in
// parentheses.
func (r Relation) Having(fragment string, args ...any) Relation {
	node, err := rawCondition(fragment, args)
	if err != nil {
		return r.withErr(fmt.Errorf("having %q: %w", fragment, err))
	}
	out := r.clone()
	out.havings = append(out.havings, node)
	return out
}

// Order sorts ascending by column.
func (r Relation) Order(column string) Relation {
	out := r.clone()
	out.orders = append(out.orders, &queryir.Ascending{Expr: out.Column(column)})
	return out
}

// OrderDesc sorts descending by column.
func (r Relation) OrderDesc(column string) Relation {
	out := r.clone()
	out.orders = append(out.orders, &queryir.Descending{Expr: out.Column(column)})
	return out
}

// OrderRaw adds an ORDER BY fragment verbatim, e.g. "Name DESC NULLS LAST".
func (r Relation) OrderRaw(fragment string) Relation {
	out := r.clone()
	out.orders = append(out.orders, queryir.NewRaw(fragment))
	return out
}

// Limit sets the row limit. Limit(0) is kept as an explicit zero.
func (r Relation) Limit(n int) Relation {
	out := r.clone()
	out.limit = queryir.IntPtr(n)
	return out
}

// Offset sets the row offset.
func (r Relation) Offset(n int) Relation {
	out := r.clone()
	out.offset = queryir.IntPtr(n)
	return out
}

// Unscope clears the named clauses.
func (r Relation) Unscope(parts ...Part) Relation {
	out := r.clone()
	for _, p := range parts {
		switch p {
		case PartSelect:
			out.selects = nil
		case PartWhere:
			out.wheres = nil
		case PartGroup:
			out.groups, out.groupNames = nil, nil
		case PartHaving:
			out.havings = nil
		case PartOrder:
			out.orders = nil
		case PartLimit:
			out.limit = nil
		case PartOffset:
			out.offset = nil
		}
	}
	return out
}

// SelectValues returns the explicit projection, without the default.
func (r Relation) SelectValues() []queryir.Node { return queryir.CloneNodes(r.selects) }

// GroupNames returns the grouping columns as given to Group.
func (r Relation) GroupNames() []string { return slices.Clone(r.groupNames) }

// HavingValues returns the HAVING conditions.
func (r Relation) HavingValues() []queryir.Node { return queryir.CloneNodes(r.havings) }

// LimitValue returns the limit, or nil when none is set.
func (r Relation) LimitValue() *int { return r.limit }

// OffsetValue returns the offset, or nil when none is set.
func (r Relation) OffsetValue() *int { return r.offset }

// HasLimitOrOffset reports whether a limit or offset is set.
func (r Relation) HasLimitOrOffset() bool { return r.limit != nil || r.offset != nil }

// Statement builds the query tree. With no explicit projection every
// declared field is selected, Id first. The tree is a fresh copy, so
// callers may qualify or rewrite it without touching r.
func (r Relation) Statement() (*queryir.SelectStatement, error) {
	if r.err != nil {
		return nil, r.err
	}

	stmt := &queryir.SelectStatement{
		Projections: r.selects,
		Source:      r.table,
		Wheres:      r.wheres,
		Groups:      r.groups,
		Havings:     r.havings,
		Orders:      r.orders,
		Limit:       r.limit,
		Offset:      r.offset,
	}
	stmt = stmt.Clone()
	if len(stmt.Projections) == 0 {
		for _, name := range r.entity.FieldNames() {
			stmt.Projections = append(stmt.Projections, r.table.Attr(name))
		}
	}
	return stmt, nil
}

// ToSOQL compiles the relation.
func (r Relation) ToSOQL(c *soql.Compiler) (string, error) {
	stmt, err := r.Statement()
	if err != nil {
		return "", err
	}
	return c.Compile(stmt)
}

func (r Relation) addConditions(conds map[string]any, negate bool) Relation {
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := r.clone()
	for _, k := range keys {
		node, err := out.condition(k, conds[k], negate)
		if err != nil {
			return r.withErr(fmt.Errorf("where %s: %w", k, err))
		}
		out.wheres = append(out.wheres, node)
	}
	return out
}

func (r Relation) condition(column string, value any, negate bool) (queryir.Node, error) {
	v, err := ir.FromGo(value)
	if err != nil {
		return nil, err
	}
	left := r.Column(column)

	if arr, ok := v.(ir.IRArray); ok {
		if len(arr) == 0 {
			return nil, ErrEmptyList
		}
		values := make([]queryir.Node, len(arr))
		for i, elem := range arr {
			values[i] = queryir.NewLiteral(elem)
		}
		var node queryir.Node = &queryir.In{Left: left, Values: values}
		if negate {
			node = &queryir.Not{Expr: node}
		}
		return node, nil
	}

	if negate {
		return &queryir.NotEqual{Left: left, Right: queryir.NewLiteral(v)}, nil
	}
	return &queryir.Equality{Left: left, Right: queryir.NewLiteral(v)}, nil
}

func (r Relation) selectNames() []string {
	names := make([]string, 0, len(r.selects))
	for _, n := range r.selects {
		switch node := n.(type) {
		case *queryir.Attribute:
			names = append(names, node.Name)
		case *queryir.Raw:
			names = append(names, node.SQL)
		}
	}
	return names
}

// clone copies every clause slice so appends on the copy never write into
// an array shared with r.
func (r Relation) clone() Relation {
	out := r
	out.selects = slices.Clone(r.selects)
	out.wheres = slices.Clone(r.wheres)
	out.groups = slices.Clone(r.groups)
	out.groupNames = slices.Clone(r.groupNames)
	out.havings = slices.Clone(r.havings)
	out.orders = slices.Clone(r.orders)
	return out
}

func (r Relation) withErr(err error) Relation {
	out := r.clone()
	if out.err == nil {
		out.err = err
	}
	return out
}

func conjunction(nodes []queryir.Node) queryir.Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	return &queryir.And{Children: slices.Clone(nodes)}
}
