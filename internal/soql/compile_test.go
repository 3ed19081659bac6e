package soql

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/queryir"
)

func lit(v any) *queryir.Literal {
	return queryir.NewLiteral(ir.MustFromGo(v))
}

func TestCompile_EqualityOperators(t *testing.T) {
	compiler := NewCompiler(nil)
	active := queryir.NewTable("table").Attr("active")

	values := []struct {
		name string
		lit  *queryir.Literal
		want string
	}{
		{"string", lit("stringval"), "'stringval'"},
		{"null", lit(nil), "NULL"},
		{"number", lit(123), "123"},
		{"boolean", lit(false), "false"},
	}

	for _, v := range values {
		t.Run("equality "+v.name, func(t *testing.T) {
			sql, err := compiler.Compile(&queryir.Equality{Left: active, Right: v.lit})
			require.NoError(t, err)
			assert.Equal(t, "active = "+v.want, sql)
		})
		t.Run("inequality "+v.name, func(t *testing.T) {
			sql, err := compiler.Compile(&queryir.NotEqual{Left: active, Right: v.lit})
			require.NoError(t, err)
			assert.Equal(t, "active != "+v.want, sql)
		})
	}
}

func TestCompile_AttributeQualification(t *testing.T) {
	compiler := NewCompiler(nil)
	attr := queryir.NewTable("Account").Attr("Name")

	sql, err := compiler.Compile(attr)
	require.NoError(t, err)
	assert.Equal(t, "Name", sql)
	assert.NotContains(t, sql, ".")

	attr.Qualify()
	sql, err = compiler.Compile(attr)
	require.NoError(t, err)
	assert.Equal(t, "Account.Name", sql)
	assert.Equal(t, 1, strings.Count(sql, "."))
}

func TestCompile_UnqualifiedInMultiTableQuery(t *testing.T) {
	compiler := NewCompiler(nil)
	account := queryir.NewTable("Account")
	contacts := queryir.NewTable("Contacts")

	stmt := &queryir.SelectStatement{
		Projections: []queryir.Node{
			account.Attr("Name"),
			&queryir.Subquery{Query: &queryir.SelectStatement{
				Projections: []queryir.Node{contacts.Attr("LastName")},
				Source:      contacts,
			}},
		},
		Source: account,
	}

	sql, err := compiler.Compile(stmt)
	require.NoError(t, err)
	assert.Equal(t, "SELECT Name, (SELECT LastName FROM Contacts) FROM Account", sql)
}

func TestCompile_NestedSelectInProjection(t *testing.T) {
	compiler := NewCompiler(nil)
	table := queryir.NewTable("table")
	nested := queryir.NewTable("nested_table")

	stmt := &queryir.SelectStatement{
		Projections: []queryir.Node{&queryir.Subquery{Query: &queryir.SelectStatement{
			Projections: []queryir.Node{nested.Attr("Id")},
			Source:      nested,
		}}},
		Source: table,
	}

	sql, err := compiler.Compile(stmt)
	require.NoError(t, err)
	assert.Equal(t, "SELECT (SELECT Id FROM nested_table) FROM table", sql)
}

func TestCompile_AliasWithoutKeyword(t *testing.T) {
	compiler := NewCompiler(nil)

	sql, err := compiler.Compile(&queryir.Alias{Expr: queryir.NewTable("table").Attr("Id"), Name: "c"})
	require.NoError(t, err)
	assert.Equal(t, "Id c", sql)
	assert.NotContains(t, sql, " AS ")
}

func TestCompile_AggregateCall(t *testing.T) {
	compiler := NewCompiler(nil)
	id := queryir.NewTable("Account").Attr("Id")

	tests := []struct {
		name string
		node *queryir.AggregateCall
		want string
	}{
		{"plain", &queryir.AggregateCall{Name: "COUNT", Args: []queryir.Node{id}}, "COUNT(Id)"},
		{"alias", &queryir.AggregateCall{Name: "COUNT", Args: []queryir.Node{id}, Alias: "count_all"}, "COUNT(Id) count_all"},
		{"distinct ignored", &queryir.AggregateCall{Name: "COUNT", Args: []queryir.Node{id}, Distinct: true}, "COUNT(Id)"},
		{"two args", &queryir.AggregateCall{Name: "FORMAT", Args: []queryir.Node{id, queryir.NewRaw("x")}}, "FORMAT(Id, x)"},
		{"no args", &queryir.AggregateCall{Name: "COUNT"}, "COUNT()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := compiler.Compile(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestCompile_SelectClauses(t *testing.T) {
	compiler := NewCompiler(nil)
	account := queryir.NewTable("Account")
	merch := queryir.NewTable("Merchandise__c")
	login := queryir.NewTable("LoginHistory")
	start := time.Date(2010, 9, 20, 22, 16, 30, 0, time.UTC)

	tests := []struct {
		name string
		stmt *queryir.SelectStatement
		want string
	}{
		{
			name: "projection only",
			stmt: &queryir.SelectStatement{
				Projections: []queryir.Node{account.Attr("Id"), account.Attr("Name"), account.Attr("BillingCity")},
				Source:      account,
			},
			want: "SELECT Id, Name, BillingCity FROM Account",
		},
		{
			name: "filtered count",
			stmt: &queryir.SelectStatement{
				Projections: []queryir.Node{&queryir.AggregateCall{Name: "COUNT", Args: []queryir.Node{account.Attr("Id")}}},
				Source:      account,
				Wheres:      []queryir.Node{&queryir.Equality{Left: account.Attr("Id"), Right: lit("3")}},
			},
			want: "SELECT COUNT(Id) FROM Account WHERE Id = '3'",
		},
		{
			name: "grouped count with having",
			stmt: &queryir.SelectStatement{
				Projections: []queryir.Node{
					&queryir.Alias{Expr: &queryir.AggregateCall{Name: "COUNT", Args: []queryir.Node{account.Attr("Id")}}, Name: "count_all"},
					&queryir.Alias{Expr: account.Attr("Name"), Name: "name"},
				},
				Source:  account,
				Groups:  []queryir.Node{account.Attr("Name")},
				Havings: []queryir.Node{&queryir.Grouping{Expr: queryir.NewRaw("COUNT(Id) > 1")}},
			},
			want: "SELECT COUNT(Id) count_all, Name name FROM Account GROUP BY Name HAVING (COUNT(Id) > 1)",
		},
		{
			name: "raw order",
			stmt: &queryir.SelectStatement{
				Projections: []queryir.Node{account.Attr("Name")},
				Source:      account,
				Orders:      []queryir.Node{queryir.NewRaw("Name DESC NULLS LAST")},
			},
			want: "SELECT Name FROM Account ORDER BY Name DESC NULLS LAST",
		},
		{
			name: "order limit offset",
			stmt: &queryir.SelectStatement{
				Projections: []queryir.Node{merch.Attr("Name"), merch.Attr("Id")},
				Source:      merch,
				Orders:      []queryir.Node{&queryir.Ascending{Expr: merch.Attr("Name")}},
				Limit:       queryir.IntPtr(20),
				Offset:      queryir.IntPtr(100),
			},
			want: "SELECT Name, Id FROM Merchandise__c ORDER BY Name ASC LIMIT 20 OFFSET 100",
		},
		{
			name: "zero limit is rendered",
			stmt: &queryir.SelectStatement{
				Projections: []queryir.Node{account.Attr("Id")},
				Source:      account,
				Limit:       queryir.IntPtr(0),
			},
			want: "SELECT Id FROM Account LIMIT 0",
		},
		{
			name: "multiple wheres and datetimes",
			stmt: &queryir.SelectStatement{
				Projections: []queryir.Node{login.Attr("UserId")},
				Source:      login,
				Wheres: []queryir.Node{
					&queryir.Comparison{Op: queryir.OpGreater, Left: login.Attr("LoginTime"), Right: lit(start)},
					&queryir.Comparison{Op: queryir.OpLess, Left: login.Attr("LoginTime"), Right: lit(start.AddDate(0, 0, 1))},
				},
				Groups: []queryir.Node{login.Attr("UserId")},
			},
			want: "SELECT UserId FROM LoginHistory WHERE LoginTime > 2010-09-20T22:16:30+00:00 AND LoginTime < 2010-09-21T22:16:30+00:00 GROUP BY UserId",
		},
		{
			name: "in, or, not",
			stmt: &queryir.SelectStatement{
				Projections: []queryir.Node{account.Attr("Id")},
				Source:      account,
				Wheres: []queryir.Node{
					&queryir.In{Left: account.Attr("Id"), Values: []queryir.Node{lit("1"), lit("2")}},
					&queryir.Or{Children: []queryir.Node{
						&queryir.Equality{Left: account.Attr("Industry"), Right: lit("media")},
						&queryir.Comparison{Op: queryir.OpLike, Left: account.Attr("Name"), Right: lit("A%")},
					}},
					&queryir.Not{Expr: &queryir.Equality{Left: account.Attr("Type"), Right: lit(nil)}},
				},
			},
			want: "SELECT Id FROM Account WHERE Id IN ('1', '2') AND (Industry = 'media' OR Name LIKE 'A%') AND NOT (Type = NULL)",
		},
		{
			name: "empty projection has no double space",
			stmt: &queryir.SelectStatement{Source: account},
			want: "SELECT FROM Account",
		},
		{
			name: "no source",
			stmt: &queryir.SelectStatement{Projections: []queryir.Node{queryir.NewRaw("1")}},
			want: "SELECT 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := compiler.Compile(tt.stmt)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sql)
			assert.NotContains(t, sql, "  ")
		})
	}
}

func TestCompile_Deterministic(t *testing.T) {
	compiler := NewCompiler(nil)
	account := queryir.NewTable("Account")
	stmt := &queryir.SelectStatement{
		Projections: []queryir.Node{account.Attr("Id"), account.Attr("Name")},
		Source:      account,
		Wheres: []queryir.Node{
			&queryir.In{Left: account.Attr("Id"), Values: []queryir.Node{lit("a"), lit("b"), lit("c")}},
		},
		Orders: []queryir.Node{&queryir.Descending{Expr: account.Attr("Name")}},
		Limit:  queryir.IntPtr(5),
	}

	first, err := compiler.Compile(stmt)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := compiler.Compile(stmt)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// foreignNode satisfies queryir.Node only through embedding, which is how
// a node kind without a rendering rule could reach the compiler.
type foreignNode struct {
	queryir.Node
}

func TestCompile_UnknownNodeKind(t *testing.T) {
	compiler := NewCompiler(nil)
	account := queryir.NewTable("Account")

	tests := []struct {
		name     string
		node     queryir.Node
		wantPath string
	}{
		{"nil", nil, ""},
		{"foreign", foreignNode{}, ""},
		{"nested foreign", &queryir.SelectStatement{
			Projections: []queryir.Node{account.Attr("Id")},
			Source:      account,
			Wheres:      []queryir.Node{&queryir.Equality{Left: account.Attr("Id"), Right: foreignNode{}}},
		}, "where[0].right"},
		{"nil subquery", &queryir.Subquery{}, "query"},
		{"empty and", &queryir.And{}, ""},
		{"empty in", &queryir.In{Left: account.Attr("Id")}, ""},
		{"qualified without relation", &queryir.SelectStatement{
			Projections: []queryir.Node{(&queryir.Attribute{Name: "Name"}).Qualify()},
			Source:      account,
		}, "select[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, err := compiler.Compile(tt.node)
			require.Error(t, err)
			assert.Empty(t, sql)
			assert.True(t, errors.Is(err, ErrNoRenderer))
			assert.True(t, IsCompileError(err))

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.wantPath, ce.Path)
		})
	}
}

func TestCompile_UnsupportedLiteral(t *testing.T) {
	compiler := NewCompiler(nil)
	node := &queryir.Equality{
		Left:  queryir.NewTable("Account").Attr("Data"),
		Right: queryir.NewLiteral(ir.IRObject{"k": ir.IRInt(1)}),
	}

	_, err := compiler.Compile(node)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedLiteral)
	assert.False(t, IsCompileError(err))
}

type upperQuoter struct{}

func (upperQuoter) Quote(v ir.IRValue) (string, error) {
	return strings.ToUpper(QuoteString(string(v.(ir.IRString)))), nil
}

func TestCompile_CustomQuoter(t *testing.T) {
	compiler := NewCompiler(upperQuoter{})

	sql, err := compiler.Compile(&queryir.Equality{Left: queryir.NewTable("T").Attr("x"), Right: lit("abc")})
	require.NoError(t, err)
	assert.Equal(t, "x = 'ABC'", sql)
}
