package queryir

import (
	"fmt"
	"strings"
)

// ValidationResult contains the dialect analysis of a query tree.
//
// A tree with warnings still compiles; the warnings name constructs the
// remote system is known to reject or silently reinterpret.
type ValidationResult struct {
	// IsClean is true when no warnings were produced.
	IsClean bool

	// Warnings lists the problems found, in traversal order.
	Warnings []string
}

// Validate checks a query tree against the dialect's structural limits:
//  1. No wildcard projection and no empty projection
//  2. A statement has a source
//  3. DISTINCT inside an aggregate call is not rendered
//  4. ORDER BY on an aggregate query without GROUP BY is rejected remotely
//
// Validate is a pure function with no side effects.
func Validate(node Node) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateNode(node)

	return ValidationResult{
		IsClean:  len(v.warnings) == 0,
		Warnings: v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateNode(n Node) {
	switch node := n.(type) {
	case nil:
		v.addWarning("nil node - every tree position needs a node")
	case *SelectStatement:
		v.validateSelect(node)
	case *Subquery:
		if node.Query == nil {
			v.addWarning("Subquery without a statement")
			return
		}
		v.validateSelect(node.Query)
	case *AggregateCall:
		if node.Distinct {
			v.addWarning("DISTINCT in %s() is ignored by the dialect", node.Name)
		}
		v.validateNodes(node.Args)
	case *Alias:
		v.validateNode(node.Expr)
	case *Equality:
		v.validateNode(node.Left)
		v.validateNode(node.Right)
	case *NotEqual:
		v.validateNode(node.Left)
		v.validateNode(node.Right)
	case *Comparison:
		v.validateNode(node.Left)
		v.validateNode(node.Right)
	case *In:
		v.validateNode(node.Left)
		if len(node.Values) == 0 {
			v.addWarning("IN with an empty value list")
		}
		v.validateNodes(node.Values)
	case *And:
		v.validateNodes(node.Children)
	case *Or:
		v.validateNodes(node.Children)
	case *Not:
		v.validateNode(node.Expr)
	case *Grouping:
		v.validateNode(node.Expr)
	case *Ascending:
		v.validateNode(node.Expr)
	case *Descending:
		v.validateNode(node.Expr)
	case *Table, *Attribute, *Literal, *Raw:
		// Leaves
	default:
		v.addWarning("Unknown node type: %T - cannot be rendered", n)
	}
}

func (v *validator) validateNodes(nodes []Node) {
	for _, n := range nodes {
		v.validateNode(n)
	}
}

func (v *validator) validateSelect(s *SelectStatement) {
	if len(s.Projections) == 0 {
		v.addWarning("Empty projection - the dialect has no SELECT *")
	}
	for _, p := range s.Projections {
		if raw, ok := p.(*Raw); ok && strings.TrimSpace(raw.SQL) == "*" {
			v.addWarning("Wildcard projection - the dialect has no SELECT *")
		}
	}
	if s.Source == nil {
		v.addWarning("Statement without a source")
	}

	if len(s.Orders) > 0 && len(s.Groups) == 0 && projectsAggregate(s.Projections) {
		v.addWarning("ORDER BY on an aggregate query without GROUP BY")
	}

	v.validateNodes(s.Projections)
	if s.Source != nil {
		v.validateNode(s.Source)
	}
	v.validateNodes(s.Wheres)
	v.validateNodes(s.Groups)
	v.validateNodes(s.Havings)
	v.validateNodes(s.Orders)
}

func projectsAggregate(projections []Node) bool {
	for _, p := range projections {
		switch node := p.(type) {
		case *AggregateCall:
			return true
		case *Alias:
			if _, ok := node.Expr.(*AggregateCall); ok {
				return true
			}
		}
	}
	return false
}
