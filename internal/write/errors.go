package write

import (
	"errors"
	"fmt"
)

// ErrSandboxWriteRejected is returned for any write attempted while the
// sandbox gate is closed. The remote API is never contacted in that case.
var ErrSandboxWriteRejected = errors.New("write rejected: sandbox mode is read-only")

// ErrMissingIdentity is returned when an update has no record identity.
var ErrMissingIdentity = errors.New("update requires a record identity")

// SandboxError reports which write was refused.
type SandboxError struct {
	Op      string
	SObject string
}

// Error implements the error interface.
func (e *SandboxError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.SObject, ErrSandboxWriteRejected)
}

// Unwrap makes errors.Is(err, ErrSandboxWriteRejected) hold.
func (e *SandboxError) Unwrap() error {
	return ErrSandboxWriteRejected
}

// IsSandboxError reports whether err is a sandbox refusal.
// Uses errors.Is to handle wrapped errors.
func IsSandboxError(err error) bool {
	return errors.Is(err, ErrSandboxWriteRejected)
}
