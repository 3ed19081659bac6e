package compiler

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/roach88/soqlkit/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrInvalidEntityName   = "E101" // entity name is not an identifier
	ErrDuplicateField      = "E102" // field declared twice
	ErrInvalidFieldName    = "E103" // field name is not an identifier
	ErrInvalidFieldType    = "E104" // unknown type tag
	ErrUnknownAssociation  = "E105" // belongs_to target not in catalog
	ErrMissingForeignKey   = "E106" // foreign key is not a declared field
	ErrForeignKeyType      = "E107" // foreign key is not a string field
	ErrAssociationConflict = "E108" // association name shadows a field
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// identifierPattern matches remote object and field names, including
// custom suffixes such as Region__c.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Validate checks every entity of the catalog and the associations between
// them. Returns all errors found (does not fail-fast), ordered by entity name.
func Validate(catalog ir.Catalog) []ValidationError {
	var errs []ValidationError

	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		errs = append(errs, validateEntity(catalog, catalog[name])...)
	}
	return errs
}

// validateEntity validates one entity against the catalog it belongs to.
func validateEntity(catalog ir.Catalog, e *ir.Entity) []ValidationError {
	var errs []ValidationError

	if !identifierPattern.MatchString(e.Name) {
		errs = append(errs, ValidationError{
			Field:   "entity",
			Message: fmt.Sprintf("invalid entity name %q", e.Name),
			Code:    ErrInvalidEntityName,
		})
	}

	seen := make(map[string]bool)
	for i, f := range e.Fields {
		path := fmt.Sprintf("%s.fields[%d]", e.Name, i)
		if seen[f.Name] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("duplicate field %q", f.Name),
				Code:    ErrDuplicateField,
			})
		}
		seen[f.Name] = true

		if !identifierPattern.MatchString(f.Name) {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("invalid field name %q", f.Name),
				Code:    ErrInvalidFieldName,
			})
		}
		if !ir.ValidFieldTypes[f.Type] {
			errs = append(errs, ValidationError{
				Field:   path + ".type",
				Message: fmt.Sprintf("invalid type %q for field %q", f.Type, f.Name),
				Code:    ErrInvalidFieldType,
			})
		}
	}

	for _, a := range e.BelongsTo {
		path := fmt.Sprintf("%s.belongs_to.%s", e.Name, a.Name)

		if e.HasField(a.Name) {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("association %q has the same name as a field", a.Name),
				Code:    ErrAssociationConflict,
			})
		}
		if _, ok := catalog[a.Entity]; !ok {
			errs = append(errs, ValidationError{
				Field:   path + ".entity",
				Message: fmt.Sprintf("unknown entity %q", a.Entity),
				Code:    ErrUnknownAssociation,
			})
		}

		fk, ok := e.Field(a.ForeignKey)
		switch {
		case !ok:
			errs = append(errs, ValidationError{
				Field:   path + ".foreign_key",
				Message: fmt.Sprintf("foreign key %q is not a declared field", a.ForeignKey),
				Code:    ErrMissingForeignKey,
			})
		case fk.Type != ir.TypeString:
			errs = append(errs, ValidationError{
				Field:   path + ".foreign_key",
				Message: fmt.Sprintf("foreign key %q must be a string field, got %s", a.ForeignKey, fk.Type),
				Code:    ErrForeignKeyType,
			})
		}
	}

	return errs
}
