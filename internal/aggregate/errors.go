package aggregate

import (
	"errors"
	"fmt"

	"github.com/roach88/soqlkit/internal/ir"
)

// TypeCastError reports a group key or aggregate value that could not be
// converted to its target type. It is never replaced by a default.
type TypeCastError struct {
	// Column is the result alias being decoded.
	Column string

	// Target is the type tag the value was cast to.
	Target string

	// Value is the raw value from the row.
	Value ir.IRValue

	Err error
}

// Error implements the error interface.
func (e *TypeCastError) Error() string {
	return fmt.Sprintf("aggregate: cannot cast %s value %v (%T) to %s: %v", e.Column, e.Value, e.Value, e.Target, e.Err)
}

// Unwrap returns the underlying conversion error.
func (e *TypeCastError) Unwrap() error {
	return e.Err
}

// IsTypeCastError returns true if err is or wraps a TypeCastError.
func IsTypeCastError(err error) bool {
	var te *TypeCastError
	return errors.As(err, &te)
}
