// Package remote talks to the remote object store: running SOQL text and
// creating or updating records through its REST API.
//
// The core packages depend only on the Querier and Writer interfaces.
// RESTClient is the production implementation; Handle shares one lazily
// built client across a process.
package remote

import (
	"context"

	"github.com/roach88/soqlkit/internal/ir"
)

// Querier runs compiled SOQL text and returns the matching records in the
// order the remote system sent them.
type Querier interface {
	Query(ctx context.Context, soql string) ([]ir.Record, error)
}

// Writer is the record API used instead of INSERT and UPDATE statements.
//
// Create returns the identity the remote system assigned. Update expects
// fields to carry the identity under ir.IdentityField. Neither is retried.
type Writer interface {
	Create(ctx context.Context, sobject string, fields ir.IRObject) (string, error)
	Update(ctx context.Context, sobject string, fields ir.IRObject) error
}

// Client is a full remote connection.
type Client interface {
	Querier
	Writer
}
