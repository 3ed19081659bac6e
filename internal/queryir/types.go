package queryir

import "github.com/roach88/soqlkit/internal/ir"

// Node is any element of a query tree.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and enables
// exhaustive type switches in the dialect compiler.
//
// Every node kind is used by pointer. Attribute carries the qualification
// flag, so sharing one *Attribute between projections and predicates keeps
// them rendering the same way.
type Node interface {
	queryNode() // Marker method - seals interface to this package
}

// Table is a query source. It has no schema or catalog concept.
type Table struct {
	Name string
}

func (*Table) queryNode() {}

// NewTable returns a table reference.
func NewTable(name string) *Table {
	return &Table{Name: name}
}

// Attr returns an unqualified column reference on this table.
//
// The dialect reads dotted names as relationship traversals (Account.Name),
// so columns render bare until Qualify is called explicitly.
func (t *Table) Attr(name string) *Attribute {
	return &Attribute{Relation: t, Name: name}
}

// Attribute is a column reference.
type Attribute struct {
	Relation  *Table
	Name      string
	Qualified bool
}

func (*Attribute) queryNode() {}

// Qualify makes the attribute render as table.column and returns it.
func (a *Attribute) Qualify() *Attribute {
	a.Qualified = true
	return a
}

// Unqualify makes the attribute render as a bare column and returns it.
func (a *Attribute) Unqualify() *Attribute {
	a.Qualified = false
	return a
}

// Literal is a value embedded in the query text. The dialect has no bind
// parameters, so every value is quoted inline.
type Literal struct {
	Value ir.IRValue
}

func (*Literal) queryNode() {}

// NewLiteral wraps a value as a literal node.
func NewLiteral(v ir.IRValue) *Literal {
	return &Literal{Value: v}
}

// Raw is query text emitted verbatim.
type Raw struct {
	SQL string
}

func (*Raw) queryNode() {}

// NewRaw wraps text as a raw node.
func NewRaw(sql string) *Raw {
	return &Raw{SQL: sql}
}

// Equality renders as left = right, including NULL comparisons.
type Equality struct {
	Left, Right Node
}

func (*Equality) queryNode() {}

// NotEqual renders as left != right, including NULL comparisons.
type NotEqual struct {
	Left, Right Node
}

func (*NotEqual) queryNode() {}

// CompareOp is a binary comparison operator other than equality.
type CompareOp string

const (
	OpLess         CompareOp = "<"
	OpLessEqual    CompareOp = "<="
	OpGreater      CompareOp = ">"
	OpGreaterEqual CompareOp = ">="
	OpLike         CompareOp = "LIKE"
)

// Comparison renders as left op right.
type Comparison struct {
	Op          CompareOp
	Left, Right Node
}

func (*Comparison) queryNode() {}

// In renders as left IN (v1, v2, ...).
type In struct {
	Left   Node
	Values []Node
}

func (*In) queryNode() {}

// And joins its children with AND. An empty And is not renderable.
type And struct {
	Children []Node
}

func (*And) queryNode() {}

// Or joins its children with OR inside one pair of parentheses.
type Or struct {
	Children []Node
}

func (*Or) queryNode() {}

// Not renders as NOT (expr).
type Not struct {
	Expr Node
}

func (*Not) queryNode() {}

// Grouping wraps its expression in parentheses.
type Grouping struct {
	Expr Node
}

func (*Grouping) queryNode() {}

// Alias renders as "expr name". The dialect has no AS keyword.
type Alias struct {
	Expr Node
	Name string
}

func (*Alias) queryNode() {}

// AggregateCall is an aggregate function application such as COUNT(Id).
// Distinct is carried for callers that need it but is never rendered.
type AggregateCall struct {
	Name     string
	Args     []Node
	Distinct bool
	Alias    string
}

func (*AggregateCall) queryNode() {}

// Ascending orders by expr ASC.
type Ascending struct {
	Expr Node
}

func (*Ascending) queryNode() {}

// Descending orders by expr DESC.
type Descending struct {
	Expr Node
}

func (*Descending) queryNode() {}

// SelectStatement is a complete query.
//
// Semantics:
//
//	SELECT <projections> FROM <source> WHERE <wheres AND-ed>
//	GROUP BY <groups> HAVING <havings AND-ed> ORDER BY <orders>
//	LIMIT <limit> OFFSET <offset>
//
// Limit and Offset are nil when absent. A zero Limit is a real value and
// is distinct from no limit.
type SelectStatement struct {
	Projections []Node
	Source      Node
	Wheres      []Node
	Groups      []Node
	Havings     []Node
	Orders      []Node
	Limit       *int
	Offset      *int
}

func (*SelectStatement) queryNode() {}

// Clone returns a deep copy of s. Attributes shared within s stay shared
// within the copy, so qualifying one in the copy never reaches s.
func (s *SelectStatement) Clone() *SelectStatement {
	return newCloner().statement(s)
}

// Subquery is a nested statement used as a source or projection element.
// It renders as (<statement>) with no correlation syntax.
type Subquery struct {
	Query *SelectStatement
}

func (*Subquery) queryNode() {}

// CloneNodes deep-copies nodes the way Clone does.
func CloneNodes(nodes []Node) []Node {
	return newCloner().nodes(nodes)
}

// cloner copies trees, memoizing attributes so that aliasing inside the
// original is preserved in the copy. Tables are shared.
type cloner struct {
	attrs map[*Attribute]*Attribute
}

func newCloner() *cloner {
	return &cloner{attrs: make(map[*Attribute]*Attribute)}
}

func (c *cloner) statement(s *SelectStatement) *SelectStatement {
	if s == nil {
		return nil
	}
	out := &SelectStatement{
		Projections: c.nodes(s.Projections),
		Source:      c.node(s.Source),
		Wheres:      c.nodes(s.Wheres),
		Groups:      c.nodes(s.Groups),
		Havings:     c.nodes(s.Havings),
		Orders:      c.nodes(s.Orders),
	}
	if s.Limit != nil {
		out.Limit = IntPtr(*s.Limit)
	}
	if s.Offset != nil {
		out.Offset = IntPtr(*s.Offset)
	}
	return out
}

func (c *cloner) nodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = c.node(n)
	}
	return out
}

func (c *cloner) node(n Node) Node {
	switch n := n.(type) {
	case nil:
		return nil
	case *Table:
		return n
	case *Attribute:
		if n == nil {
			return n
		}
		if cp, ok := c.attrs[n]; ok {
			return cp
		}
		cp := *n
		c.attrs[n] = &cp
		return &cp
	case *Literal:
		cp := *n
		return &cp
	case *Raw:
		cp := *n
		return &cp
	case *Equality:
		return &Equality{Left: c.node(n.Left), Right: c.node(n.Right)}
	case *NotEqual:
		return &NotEqual{Left: c.node(n.Left), Right: c.node(n.Right)}
	case *Comparison:
		return &Comparison{Op: n.Op, Left: c.node(n.Left), Right: c.node(n.Right)}
	case *In:
		return &In{Left: c.node(n.Left), Values: c.nodes(n.Values)}
	case *And:
		return &And{Children: c.nodes(n.Children)}
	case *Or:
		return &Or{Children: c.nodes(n.Children)}
	case *Not:
		return &Not{Expr: c.node(n.Expr)}
	case *Grouping:
		return &Grouping{Expr: c.node(n.Expr)}
	case *Alias:
		return &Alias{Expr: c.node(n.Expr), Name: n.Name}
	case *AggregateCall:
		return &AggregateCall{Name: n.Name, Args: c.nodes(n.Args), Distinct: n.Distinct, Alias: n.Alias}
	case *Ascending:
		return &Ascending{Expr: c.node(n.Expr)}
	case *Descending:
		return &Descending{Expr: c.node(n.Expr)}
	case *SelectStatement:
		return c.statement(n)
	case *Subquery:
		return &Subquery{Query: c.statement(n.Query)}
	default:
		return n
	}
}

// IntPtr returns a pointer to n, for Limit and Offset.
func IntPtr(n int) *int {
	return &n
}
