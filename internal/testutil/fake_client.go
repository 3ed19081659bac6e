package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/soqlkit/internal/ir"
)

// WriteCall is one recorded Create or Update.
type WriteCall struct {
	SObject string
	Fields  ir.IRObject
}

// FakeClient is a scripted remote.Client for tests.
//
// Queries are answered by exact SOQL text registered with OnQuery; any other
// text returns no records. Every call is recorded so tests can assert on
// what was sent, or that nothing was.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClient struct {
	mu        sync.Mutex
	responses map[string][]ir.Record
	errors    map[string]error
	queries   []string
	creates   []WriteCall
	updates   []WriteCall
	nextID    int

	// WriteErr, when set, is returned by Create and Update.
	WriteErr error
}

// NewFakeClient creates an empty fake.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		responses: make(map[string][]ir.Record),
		errors:    make(map[string]error),
	}
}

// OnQuery registers the records returned for soql.
func (f *FakeClient) OnQuery(soql string, records ...ir.Record) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[soql] = records
	return f
}

// FailQuery makes soql fail with err.
func (f *FakeClient) FailQuery(soql string, err error) *FakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[soql] = err
	return f
}

// Query implements remote.Querier.
func (f *FakeClient) Query(ctx context.Context, soql string) ([]ir.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, soql)
	if err, ok := f.errors[soql]; ok {
		return nil, err
	}
	return f.responses[soql], nil
}

// Create implements remote.Writer. Identities are fake-id-1, fake-id-2, ...
func (f *FakeClient) Create(ctx context.Context, sobject string, fields ir.IRObject) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, WriteCall{SObject: sobject, Fields: fields})
	if f.WriteErr != nil {
		return "", f.WriteErr
	}
	f.nextID++
	return fmt.Sprintf("fake-id-%d", f.nextID), nil
}

// Update implements remote.Writer.
func (f *FakeClient) Update(ctx context.Context, sobject string, fields ir.IRObject) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, WriteCall{SObject: sobject, Fields: fields})
	return f.WriteErr
}

// Queries returns the SOQL texts received, in order.
func (f *FakeClient) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// Creates returns the recorded Create calls.
func (f *FakeClient) Creates() []WriteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]WriteCall(nil), f.creates...)
}

// Updates returns the recorded Update calls.
func (f *FakeClient) Updates() []WriteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]WriteCall(nil), f.updates...)
}

// CallCount returns the number of calls of any kind.
func (f *FakeClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries) + len(f.creates) + len(f.updates)
}

// AggregateRow builds a row shaped like an aggregate query result.
func AggregateRow(pairs ...ir.IRPair) ir.Record {
	return ir.NewRecord(ir.AggregateResultType, pairs...)
}
