package relation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/queryir"
	"github.com/roach88/soqlkit/internal/soql"
)

func entity(name string, fields ...string) *ir.Entity {
	decl := make([]ir.Field, len(fields))
	for i, f := range fields {
		decl[i] = ir.Field{Name: f, Type: ir.TypeString}
	}
	return ir.NewEntity(name, decl)
}

func compile(t *testing.T, r Relation) string {
	t.Helper()
	sql, err := r.ToSOQL(soql.NewCompiler(nil))
	require.NoError(t, err)
	return sql
}

func TestExampleQueries(t *testing.T) {
	account := New(entity("Account", "Name", "BillingCity"))
	contact := New(entity("Contact"))
	merch := New(entity("Merchandise__c"))
	start := time.Date(2010, 9, 20, 22, 16, 30, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	tests := []struct {
		name string
		rel  Relation
		want string
	}{
		{
			name: "explicit projection",
			rel:  account.Select("Id", "Name", "BillingCity"),
			want: "SELECT Id, Name, BillingCity FROM Account",
		},
		{
			name: "default projection",
			rel:  account,
			want: "SELECT Id, Name, BillingCity FROM Account",
		},
		{
			name: "raw and hash conditions",
			rel:  contact.WhereRaw("Name LIKE ?", "A%").Where(map[string]any{"MailingCity": "California"}),
			want: "SELECT Id FROM Contact WHERE (Name LIKE 'A%') AND MailingCity = 'California'",
		},
		{
			name: "raw order",
			rel:  account.Select("Name").OrderRaw("Name DESC NULLS LAST"),
			want: "SELECT Name FROM Account ORDER BY Name DESC NULLS LAST",
		},
		{
			name: "limit",
			rel:  account.Select("Name").WhereEq("Industry", "media").Limit(125),
			want: "SELECT Name FROM Account WHERE Industry = 'media' LIMIT 125",
		},
		{
			name: "order with limit",
			rel:  account.Select("Name").WhereEq("Industry", "media").OrderRaw("BillingPostalCode ASC NULLS LAST").Limit(125),
			want: "SELECT Name FROM Account WHERE Industry = 'media' ORDER BY BillingPostalCode ASC NULLS LAST LIMIT 125",
		},
		{
			name: "offset with order",
			rel:  merch.Select("Name", "Id").Order("Name").Offset(100),
			want: "SELECT Name, Id FROM Merchandise__c ORDER BY Name ASC OFFSET 100",
		},
		{
			name: "offset with order and limit",
			rel:  merch.Select("Name", "Id").Order("Name").Limit(20).Offset(100),
			want: "SELECT Name, Id FROM Merchandise__c ORDER BY Name ASC LIMIT 20 OFFSET 100",
		},
		{
			name: "child to parent paths",
			rel:  contact.Select("Id", "Name", "Account.Name").WhereEq("Account.Industry", "media"),
			want: "SELECT Id, Name, Account.Name FROM Contact WHERE Account.Industry = 'media'",
		},
		{
			name: "parent to child subquery",
			rel: account.Select("Name").
				SelectSubquery(New(entity("Contacts")).Select("LastName").WhereEq("CreatedBy.Alias", "x")).
				WhereEq("Industry", "media"),
			want: "SELECT Name, (SELECT LastName FROM Contacts WHERE CreatedBy.Alias = 'x') FROM Account WHERE Industry = 'media'",
		},
		{
			name: "datetime interpolation",
			rel:  New(entity("LoginHistory")).Select("UserId").WhereRaw("LoginTime > ? AND LoginTime < ?", start, end),
			want: "SELECT UserId FROM LoginHistory WHERE (LoginTime > 2010-09-20T22:16:30+00:00 AND LoginTime < 2010-09-21T22:16:30+00:00)",
		},
		{
			name: "slice becomes IN",
			rel:  account.Select("Id").Where(map[string]any{"Id": []string{"1", "2"}}),
			want: "SELECT Id FROM Account WHERE Id IN ('1', '2')",
		},
		{
			name: "not",
			rel:  account.Select("Id").Not(map[string]any{"Name": nil, "Type": []any{"a"}}),
			want: "SELECT Id FROM Account WHERE Name != NULL AND NOT (Type IN ('a'))",
		},
		{
			name: "or",
			rel:  account.Select("Id").WhereEq("Name", "a").Or(account.WhereEq("Name", "b").WhereEq("Type", "c")),
			want: "SELECT Id FROM Account WHERE (Name = 'a' OR Name = 'b' AND Type = 'c')",
		},
		{
			name: "sorted hash keys",
			rel:  account.Select("Id").Where(map[string]any{"b": 2, "a": true}),
			want: "SELECT Id FROM Account WHERE a = true AND b = 2",
		},
		{
			name: "group and having",
			rel:  account.Select("Name").Group("Name").Having("COUNT(Id) > ?", 1),
			want: "SELECT Name FROM Account GROUP BY Name HAVING (COUNT(Id) > 1)",
		},
		{
			name: "duplicate select",
			rel:  account.Select("Name", "Name").Select("Name"),
			want: "SELECT Name FROM Account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compile(t, tt.rel))
		})
	}
}

func TestRelationIsImmutable(t *testing.T) {
	base := New(entity("Account", "Name")).WhereEq("Name", "a").Order("Name")

	// Derive twice from the same base; the appends must not collide.
	left := base.WhereEq("Type", "x")
	right := base.WhereEq("Type", "y").Unscope(PartOrder).Limit(0)

	assert.Equal(t, "SELECT Id, Name FROM Account WHERE Name = 'a' ORDER BY Name ASC", compile(t, base))
	assert.Equal(t, "SELECT Id, Name FROM Account WHERE Name = 'a' AND Type = 'x' ORDER BY Name ASC", compile(t, left))
	assert.Equal(t, "SELECT Id, Name FROM Account WHERE Name = 'a' AND Type = 'y' LIMIT 0", compile(t, right))
	assert.Nil(t, base.LimitValue())
}

func TestStatementIsACopy(t *testing.T) {
	rel := New(entity("Account")).Select("Id").Limit(5)

	stmt, err := rel.Statement()
	require.NoError(t, err)
	stmt.Projections = append(stmt.Projections, queryir.NewRaw("Name"))
	*stmt.Limit = 1

	assert.Equal(t, "SELECT Id FROM Account LIMIT 5", compile(t, rel))
}

func TestQualifyingDerivedStatementLeavesBaseBare(t *testing.T) {
	base := New(entity("Account", "Name")).Select("Name").WhereEq("Name", "x")

	stmt, err := base.Limit(5).Statement()
	require.NoError(t, err)
	stmt.Projections[0].(*queryir.Attribute).Qualify()
	stmt.Wheres[0].(*queryir.Equality).Left.(*queryir.Attribute).Qualify()

	derived, err := soql.NewCompiler(nil).Compile(stmt)
	require.NoError(t, err)
	assert.Equal(t, "SELECT Account.Name FROM Account WHERE Account.Name = 'x' LIMIT 5", derived)
	assert.Equal(t, "SELECT Name FROM Account WHERE Name = 'x'", compile(t, base))
	assert.Equal(t, "SELECT Name FROM Account WHERE Name = 'x' LIMIT 5", compile(t, base.Limit(5)))
}

func TestSelectValuesAreCopies(t *testing.T) {
	base := New(entity("Account", "Name")).Select("Name")

	base.SelectValues()[0].(*queryir.Attribute).Qualify()

	assert.Equal(t, "SELECT Name FROM Account", compile(t, base))
}

func TestColumnResolution(t *testing.T) {
	rel := New(entity("Account", "Name"))

	attr, ok := rel.Column("Name").(*queryir.Attribute)
	require.True(t, ok)
	assert.False(t, attr.Qualified)

	raw, ok := rel.Column("Owner.Name").(*queryir.Raw)
	require.True(t, ok)
	assert.Equal(t, "Owner.Name", raw.SQL)
}

func TestAccessors(t *testing.T) {
	rel := New(entity("Account", "Name")).Select("Name").Group("Name").Having("COUNT(Id) > 1").Offset(3)

	assert.Len(t, rel.SelectValues(), 1)
	assert.Equal(t, []string{"Name"}, rel.GroupNames())
	assert.Len(t, rel.HavingValues(), 1)
	assert.Nil(t, rel.LimitValue())
	assert.Equal(t, 3, *rel.OffsetValue())
	assert.True(t, rel.HasLimitOrOffset())

	cleared := rel.Unscope(PartSelect, PartGroup, PartHaving, PartOffset, PartWhere, PartLimit)
	assert.Empty(t, cleared.SelectValues())
	assert.Empty(t, cleared.GroupNames())
	assert.False(t, cleared.HasLimitOrOffset())
}

func TestBuilderErrorsSurfaceAtStatement(t *testing.T) {
	tests := []struct {
		name string
		rel  Relation
	}{
		{"placeholder mismatch", New(entity("Account")).WhereRaw("Name = ? AND Type = ?", "a")},
		{"unsupported value", New(entity("Account")).WhereEq("Name", struct{}{})},
		{"or without conditions", New(entity("Account")).Or(New(entity("Account")))},
		{"bad subquery", New(entity("Account")).SelectSubquery(New(entity("Contact")).Having("?"))},
		{"empty in list", New(entity("Account")).Where(map[string]any{"Id": []string{}})},
		{"empty not in list", New(entity("Account")).Not(map[string]any{"Id": []any{}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Error(t, tt.rel.Err())
			_, err := tt.rel.Statement()
			assert.Error(t, err)

			// Chaining after an error keeps the first error.
			assert.Equal(t, tt.rel.Err(), tt.rel.Limit(1).Err())
		})
	}
}

func TestEmptyListIsRejected(t *testing.T) {
	rel := New(entity("Account")).Where(map[string]any{"Id": []string{}})

	assert.ErrorIs(t, rel.Err(), ErrEmptyList)
	_, err := rel.ToSOQL(soql.NewCompiler(nil))
	assert.ErrorIs(t, err, ErrEmptyList)
}

func TestInterpolate(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		args     []any
		want     string
	}{
		{"string", "Name LIKE ?", []any{"C%"}, "Name LIKE 'C%'"},
		{"quote escaping", "Name = ?", []any{"O'Brien"}, "Name = 'O''Brien'"},
		{"apostrophe", "Name = ?", []any{"It's"}, "Name = 'It''s'"},
		{"list", "Id IN (?)", []any{[]string{"a", "b"}}, "Id IN ('a', 'b')"},
		{"empty list", "Id IN (?)", []any{[]string{}}, "Id IN (NULL)"},
		{"null and bool", "A = ? AND B = ?", []any{nil, true}, "A = NULL AND B = true"},
		{"date", "CloseDate = ?", []any{ir.NewIRDate(time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC))}, "CloseDate = 2024-02-03"},
		{"no placeholders", "IsDeleted = false", nil, "IsDeleted = false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Interpolate(tt.fragment, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Interpolate("A = ?")
	assert.ErrorIs(t, err, ErrPlaceholderCount)
}
