package soql

import (
	"errors"
	"fmt"
)

// ErrNoRenderer is wrapped by every CompileError.
var ErrNoRenderer = errors.New("no renderer for node kind")

// ErrUnsupportedLiteral is returned when a value has no literal form.
var ErrUnsupportedLiteral = errors.New("unsupported literal kind")

// CompileError reports a node the compiler cannot render.
//
// The compiler never substitutes a default for an unknown node: text the
// remote system cannot parse fails far from the cause.
type CompileError struct {
	// Kind is the Go type of the offending node, e.g. "<nil>" or "*foo.Bar".
	Kind string

	// Path locates the node, e.g. "where[1].left".
	Path string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("soql: %s: %s (at %s)", ErrNoRenderer, e.Kind, e.Path)
	}
	return fmt.Sprintf("soql: %s: %s", ErrNoRenderer, e.Kind)
}

// Unwrap lets errors.Is match ErrNoRenderer.
func (e *CompileError) Unwrap() error {
	return ErrNoRenderer
}

// IsCompileError returns true if err is or wraps a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}
