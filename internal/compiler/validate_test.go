package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/soqlkit/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidate(t *testing.T) {
	account := ir.NewEntity("Account", []ir.Field{{Name: "Name", Type: ir.TypeString}})

	tests := []struct {
		name   string
		entity *ir.Entity
		want   []string
	}{
		{
			name: "valid association",
			entity: ir.NewEntity("Contact",
				[]ir.Field{{Name: "AccountId", Type: ir.TypeString}},
				ir.Association{Name: "Account", Entity: "Account", ForeignKey: "AccountId"}),
			want: []string{},
		},
		{
			name:   "invalid entity name",
			entity: ir.NewEntity("Bad Name", nil),
			want:   []string{ErrInvalidEntityName},
		},
		{
			name: "duplicate and invalid fields",
			entity: &ir.Entity{Name: "Lead", Fields: []ir.Field{
				{Name: "Id", Type: ir.TypeString},
				{Name: "Email", Type: ir.TypeString},
				{Name: "Email", Type: ir.TypeString},
				{Name: "2nd", Type: "float"},
			}},
			want: []string{ErrDuplicateField, ErrInvalidFieldName, ErrInvalidFieldType},
		},
		{
			name: "unknown association target",
			entity: ir.NewEntity("Task",
				[]ir.Field{{Name: "WhatId", Type: ir.TypeString}},
				ir.Association{Name: "What", Entity: "Opportunity", ForeignKey: "WhatId"}),
			want: []string{ErrUnknownAssociation},
		},
		{
			name: "foreign key problems",
			entity: ir.NewEntity("Case",
				[]ir.Field{{Name: "Account", Type: ir.TypeString}, {Name: "OwnerId", Type: ir.TypeInt}},
				ir.Association{Name: "Account", Entity: "Account", ForeignKey: "AccountId"},
				ir.Association{Name: "Owner", Entity: "Account", ForeignKey: "OwnerId"}),
			want: []string{ErrAssociationConflict, ErrMissingForeignKey, ErrForeignKeyType},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(ir.NewCatalog(account, tt.entity))
			assert.Equal(t, tt.want, codes(errs))
		})
	}
}

func TestValidationErrorString(t *testing.T) {
	err := ValidationError{Field: "Lead.fields[1]", Message: "duplicate field \"Email\"", Code: ErrDuplicateField}
	assert.Equal(t, `[E102] Lead.fields[1]: duplicate field "Email"`, err.Error())

	err.Line = 4
	assert.Equal(t, `[E102] line 4: Lead.fields[1]: duplicate field "Email"`, err.Error())
}
