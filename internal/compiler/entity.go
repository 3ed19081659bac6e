package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/soqlkit/internal/ir"
)

// CompileEntity parses a CUE value into an Entity.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the entity struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`entity: Account: { fields: { Name: string } }`)
//	e, err := CompileEntity(v.LookupPath(cue.ParsePath("entity.Account")))
//
// Field order follows declaration order. Id is always the first field.
func CompileEntity(v cue.Value) (*ir.Entity, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	name := ""
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		name = labels[len(labels)-1].String()
	}

	// An explicit remote name wins over the label.
	if nameVal := v.LookupPath(cue.ParsePath("name")); nameVal.Exists() {
		s, err := nameVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		name = s
	}
	if name == "" {
		return nil, &CompileError{Field: "name", Message: "entity name is required", Pos: v.Pos()}
	}

	fields, err := parseFields(v)
	if err != nil {
		return nil, err
	}

	assocs, err := parseBelongsTo(v)
	if err != nil {
		return nil, err
	}

	return ir.NewEntity(name, fields, assocs...), nil
}

// CompileEntities compiles every entity under the top-level "entity" struct.
func CompileEntities(v cue.Value) (ir.Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	catalog := ir.Catalog{}
	entityVal := v.LookupPath(cue.ParsePath("entity"))
	if !entityVal.Exists() {
		return catalog, nil
	}

	iter, err := entityVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		e, err := CompileEntity(iter.Value())
		if err != nil {
			return nil, err
		}
		if _, dup := catalog[e.Name]; dup {
			return nil, &CompileError{
				Field:   "entity." + iter.Label(),
				Message: fmt.Sprintf("duplicate entity name %q", e.Name),
				Pos:     iter.Value().Pos(),
			}
		}
		catalog[e.Name] = e
	}
	return catalog, nil
}

// parseFields extracts declared fields in declaration order.
func parseFields(v cue.Value) ([]ir.Field, error) {
	var fields []ir.Field

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return fields, nil
	}

	iter, err := fieldsVal.Fields(cue.Optional(true))
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		typ, err := extractTypeName(iter.Value())
		if err != nil {
			return nil, err
		}
		fields = append(fields, ir.Field{Name: iter.Label(), Type: typ})
	}
	return fields, nil
}

// parseBelongsTo extracts belongs-to associations. The foreign key
// defaults to the association name followed by Id.
func parseBelongsTo(v cue.Value) ([]ir.Association, error) {
	var assocs []ir.Association

	btVal := v.LookupPath(cue.ParsePath("belongs_to"))
	if !btVal.Exists() {
		return assocs, nil
	}

	iter, err := btVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		av := iter.Value()

		assoc := ir.Association{Name: name, Entity: name, ForeignKey: name + ir.IdentityField}

		if ev := av.LookupPath(cue.ParsePath("entity")); ev.Exists() {
			s, err := ev.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			assoc.Entity = s
		}
		if fk := av.LookupPath(cue.ParsePath("foreign_key")); fk.Exists() {
			s, err := fk.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			assoc.ForeignKey = s
		}

		assocs = append(assocs, assoc)
	}
	return assocs, nil
}

// extractTypeName converts a CUE field value to a type tag. A CUE type
// (string, int, number, bool) maps by kind; a concrete string names the
// tag directly, which is how date and datetime are declared.
func extractTypeName(v cue.Value) (string, error) {
	if v.IsConcrete() && v.Kind() == cue.StringKind {
		tag, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		if !ir.ValidFieldTypes[tag] {
			return "", &CompileError{
				Field:   "type",
				Message: fmt.Sprintf("unknown type tag %q", tag),
				Pos:     v.Pos(),
			}
		}
		return tag, nil
	}

	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.TypeString, nil
	case cue.IntKind:
		return ir.TypeInt, nil
	case cue.FloatKind, cue.NumberKind:
		return ir.TypeDecimal, nil
	case cue.BoolKind:
		return ir.TypeBool, nil
	default:
		return "", &CompileError{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
