package remote

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/soqlkit/internal/ir"
)

// BuildFunc constructs the shared client on first use.
type BuildFunc func(ctx context.Context) (Client, error)

// Handle is a lazily constructed, shared Client.
//
// The first Get builds the client under a mutex, so concurrent first use
// yields one instance. A failed build is not cached; the next Get retries
// the build. Handle itself implements Client.
type Handle struct {
	mu     sync.Mutex
	build  BuildFunc
	client Client
}

// NewHandle returns a handle that calls build on first use.
func NewHandle(build BuildFunc) *Handle {
	return &Handle{build: build}
}

// NewStaticHandle returns a handle around an existing client.
func NewStaticHandle(c Client) *Handle {
	return &Handle{client: c}
}

// Get returns the shared client, building it if needed.
func (h *Handle) Get(ctx context.Context) (Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return h.client, nil
	}
	if h.build == nil {
		return nil, errors.New("remote: handle has no client and no builder")
	}
	c, err := h.build(ctx)
	if err != nil {
		return nil, err
	}
	h.client = c
	return c, nil
}

// Query implements Querier.
func (h *Handle) Query(ctx context.Context, soql string) ([]ir.Record, error) {
	c, err := h.Get(ctx)
	if err != nil {
		return nil, err
	}
	return c.Query(ctx, soql)
}

// Create implements Writer.
func (h *Handle) Create(ctx context.Context, sobject string, fields ir.IRObject) (string, error) {
	c, err := h.Get(ctx)
	if err != nil {
		return "", err
	}
	return c.Create(ctx, sobject, fields)
}

// Update implements Writer.
func (h *Handle) Update(ctx context.Context, sobject string, fields ir.IRObject) error {
	c, err := h.Get(ctx)
	if err != nil {
		return err
	}
	return c.Update(ctx, sobject, fields)
}

// LoginBuilder returns a BuildFunc that authenticates with creds.
func LoginBuilder(creds Credentials) BuildFunc {
	return func(ctx context.Context) (Client, error) {
		return Login(ctx, creds)
	}
}
