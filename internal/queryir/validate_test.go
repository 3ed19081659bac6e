package queryir

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/soqlkit/internal/ir"
)

func TestValidate(t *testing.T) {
	account := NewTable("Account")

	tests := []struct {
		name     string
		node     Node
		clean    bool
		contains string
	}{
		{
			name: "plain select",
			node: &SelectStatement{
				Projections: []Node{account.Attr("Id"), account.Attr("Name")},
				Source:      account,
				Wheres:      []Node{&Equality{Left: account.Attr("Id"), Right: NewLiteral(ir.IRString("3"))}},
			},
			clean: true,
		},
		{
			name:     "empty projection",
			node:     &SelectStatement{Source: account},
			contains: "Empty projection",
		},
		{
			name:     "wildcard",
			node:     &SelectStatement{Projections: []Node{NewRaw("*")}, Source: account},
			contains: "Wildcard projection",
		},
		{
			name:     "no source",
			node:     &SelectStatement{Projections: []Node{account.Attr("Id")}},
			contains: "without a source",
		},
		{
			name: "distinct aggregate",
			node: &SelectStatement{
				Projections: []Node{&AggregateCall{Name: "COUNT", Args: []Node{account.Attr("Id")}, Distinct: true}},
				Source:      account,
			},
			contains: "DISTINCT in COUNT()",
		},
		{
			name: "ordered ungrouped aggregate",
			node: &SelectStatement{
				Projections: []Node{&AggregateCall{Name: "SUM", Args: []Node{account.Attr("AnnualRevenue")}}},
				Source:      account,
				Orders:      []Node{&Ascending{Expr: account.Attr("Name")}},
			},
			contains: "ORDER BY on an aggregate query",
		},
		{
			name: "grouped aggregate may order",
			node: &SelectStatement{
				Projections: []Node{&Alias{Expr: &AggregateCall{Name: "COUNT", Args: []Node{account.Attr("Id")}}, Name: "count_all"}},
				Source:      account,
				Groups:      []Node{account.Attr("Name")},
				Orders:      []Node{&Ascending{Expr: account.Attr("Name")}},
			},
			clean: true,
		},
		{
			name: "empty IN inside subquery",
			node: &Subquery{Query: &SelectStatement{
				Projections: []Node{account.Attr("Id")},
				Source:      account,
				Wheres:      []Node{&In{Left: account.Attr("Id")}},
			}},
			contains: "empty value list",
		},
		{
			name:     "nil node",
			node:     nil,
			contains: "nil node",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(tt.node)
			assert.Equal(t, tt.clean, result.IsClean, "warnings: %v", result.Warnings)
			if tt.clean {
				assert.Empty(t, result.Warnings)
				return
			}
			assert.NotEmpty(t, result.Warnings)
			assert.True(t, slices.ContainsFunc(result.Warnings, func(w string) bool {
				return strings.Contains(w, tt.contains)
			}), "expected a warning containing %q, got %v", tt.contains, result.Warnings)
		})
	}
}

