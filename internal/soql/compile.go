package soql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/soqlkit/internal/queryir"
)

// Compiler renders query trees as SOQL text.
//
// A Compiler holds no mutable state and is safe for concurrent use.
// Compiling the same tree twice yields identical text.
type Compiler struct {
	quoter Quoter
}

// NewCompiler creates a Compiler. A nil quoter means LiteralQuoter.
func NewCompiler(q Quoter) *Compiler {
	if q == nil {
		q = LiteralQuoter{}
	}
	return &Compiler{quoter: q}
}

// Compile converts a query tree to SOQL text.
//
// Every node kind in queryir has a rendering rule. Anything else (including
// nil) fails with a *CompileError instead of rendering a guess.
func (c *Compiler) Compile(n queryir.Node) (string, error) {
	return c.compile(n, "")
}

func (c *Compiler) compile(n queryir.Node, path string) (string, error) {
	switch node := n.(type) {
	case *queryir.SelectStatement:
		return c.compileSelect(node, path)
	case *queryir.Subquery:
		if node.Query == nil {
			return "", &CompileError{Kind: "<nil>", Path: join(path, "query")}
		}
		inner, err := c.compileSelect(node.Query, join(path, "query"))
		if err != nil {
			return "", err
		}
		return "(" + inner + ")", nil
	case *queryir.Table:
		return node.Name, nil
	case *queryir.Attribute:
		return c.compileAttribute(node, path)
	case *queryir.Literal:
		s, err := c.quoter.Quote(node.Value)
		if err != nil {
			return "", fmt.Errorf("quote %s: %w", describe(path), err)
		}
		return s, nil
	case *queryir.Raw:
		return node.SQL, nil
	case *queryir.Equality:
		return c.compileBinary(node.Left, "=", node.Right, path)
	case *queryir.NotEqual:
		return c.compileBinary(node.Left, "!=", node.Right, path)
	case *queryir.Comparison:
		return c.compileBinary(node.Left, string(node.Op), node.Right, path)
	case *queryir.In:
		return c.compileIn(node, path)
	case *queryir.And:
		if len(node.Children) == 0 {
			return "", &CompileError{Kind: "empty *queryir.And", Path: path}
		}
		return c.compileList(node.Children, " AND ", join(path, "and"))
	case *queryir.Or:
		if len(node.Children) == 0 {
			return "", &CompileError{Kind: "empty *queryir.Or", Path: path}
		}
		s, err := c.compileList(node.Children, " OR ", join(path, "or"))
		if err != nil {
			return "", err
		}
		return "(" + s + ")", nil
	case *queryir.Not:
		s, err := c.compile(node.Expr, join(path, "not"))
		if err != nil {
			return "", err
		}
		return "NOT (" + s + ")", nil
	case *queryir.Grouping:
		s, err := c.compile(node.Expr, join(path, "group"))
		if err != nil {
			return "", err
		}
		return "(" + s + ")", nil
	case *queryir.Alias:
		s, err := c.compile(node.Expr, join(path, "alias"))
		if err != nil {
			return "", err
		}
		return s + " " + node.Name, nil
	case *queryir.AggregateCall:
		return c.compileAggregate(node, path)
	case *queryir.Ascending:
		s, err := c.compile(node.Expr, join(path, "asc"))
		if err != nil {
			return "", err
		}
		return s + " ASC", nil
	case *queryir.Descending:
		s, err := c.compile(node.Expr, join(path, "desc"))
		if err != nil {
			return "", err
		}
		return s + " DESC", nil
	default:
		return "", &CompileError{Kind: fmt.Sprintf("%T", n), Path: path}
	}
}

// compileSelect assembles:
//
//	SELECT p1, p2 FROM src WHERE w1 AND w2 GROUP BY g1, g2
//	HAVING h1 AND h2 ORDER BY o1, o2 LIMIT n OFFSET n
//
// with exactly one space between clauses and no top-N clause.
func (c *Compiler) compileSelect(s *queryir.SelectStatement, path string) (string, error) {
	if s == nil {
		return "", &CompileError{Kind: "<nil>", Path: path}
	}

	var b strings.Builder
	b.WriteString("SELECT")

	if len(s.Projections) > 0 {
		projections, err := c.compileList(s.Projections, ", ", join(path, "select"))
		if err != nil {
			return "", err
		}
		b.WriteString(" ")
		b.WriteString(projections)
	}

	if s.Source != nil {
		source, err := c.compile(s.Source, join(path, "from"))
		if err != nil {
			return "", err
		}
		b.WriteString(" FROM ")
		b.WriteString(source)
	}

	clauses := []struct {
		keyword string
		nodes   []queryir.Node
		sep     string
		name    string
	}{
		{" WHERE ", s.Wheres, " AND ", "where"},
		{" GROUP BY ", s.Groups, ", ", "group"},
		{" HAVING ", s.Havings, " AND ", "having"},
		{" ORDER BY ", s.Orders, ", ", "order"},
	}
	for _, clause := range clauses {
		if len(clause.nodes) == 0 {
			continue
		}
		text, err := c.compileList(clause.nodes, clause.sep, join(path, clause.name))
		if err != nil {
			return "", err
		}
		b.WriteString(clause.keyword)
		b.WriteString(text)
	}

	if s.Limit != nil {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(*s.Limit))
	}
	if s.Offset != nil {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(*s.Offset))
	}

	return b.String(), nil
}

// compileAttribute renders table.column only when the attribute was
// explicitly qualified. A qualified attribute without a table is an error.
func (c *Compiler) compileAttribute(a *queryir.Attribute, path string) (string, error) {
	if !a.Qualified {
		return a.Name, nil
	}
	if a.Relation == nil {
		return "", &CompileError{Kind: "qualified *queryir.Attribute without relation", Path: path}
	}
	return a.Relation.Name + "." + a.Name, nil
}

func (c *Compiler) compileBinary(left queryir.Node, op string, right queryir.Node, path string) (string, error) {
	l, err := c.compile(left, join(path, "left"))
	if err != nil {
		return "", err
	}
	r, err := c.compile(right, join(path, "right"))
	if err != nil {
		return "", err
	}
	return l + " " + op + " " + r, nil
}

func (c *Compiler) compileIn(in *queryir.In, path string) (string, error) {
	if len(in.Values) == 0 {
		return "", &CompileError{Kind: "empty *queryir.In", Path: path}
	}
	left, err := c.compile(in.Left, join(path, "left"))
	if err != nil {
		return "", err
	}
	values, err := c.compileList(in.Values, ", ", join(path, "in"))
	if err != nil {
		return "", err
	}
	return left + " IN (" + values + ")", nil
}

// compileAggregate renders NAME(arg, ...) [alias]. The dialect has no
// DISTINCT inside aggregate calls, so Distinct is not rendered.
func (c *Compiler) compileAggregate(agg *queryir.AggregateCall, path string) (string, error) {
	args, err := c.compileList(agg.Args, ", ", join(path, strings.ToLower(agg.Name)))
	if err != nil {
		return "", err
	}
	s := agg.Name + "(" + args + ")"
	if agg.Alias != "" {
		s += " " + agg.Alias
	}
	return s, nil
}

func (c *Compiler) compileList(nodes []queryir.Node, sep, path string) (string, error) {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		s, err := c.compile(n, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, sep), nil
}

func join(path, elem string) string {
	if path == "" {
		return elem
	}
	return path + "." + elem
}

func describe(path string) string {
	if path == "" {
		return "literal"
	}
	return path
}
