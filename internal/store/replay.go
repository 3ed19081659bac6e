package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/soqlkit/internal/ir"
)

// ErrNotRecorded is returned by a Replayer for a call the session does not contain.
var ErrNotRecorded = errors.New("call not recorded")

// ReplayedError carries the error text of a call that failed when recorded.
type ReplayedError struct {
	Seq     int64
	Message string
}

func (e *ReplayedError) Error() string {
	return fmt.Sprintf("replayed failure (seq %d): %s", e.Seq, e.Message)
}

// Replayer answers remote calls from a recorded session.
//
// Each recorded call is used at most once, earliest seq first, so a session
// that ran the same query twice replays both answers in order. A call with
// no unused recorded match returns ErrNotRecorded. Replayer implements
// remote.Client and is safe for concurrent use.
type Replayer struct {
	mu      sync.Mutex
	session string
	calls   []Call
	used    []bool
}

// NewReplayer loads a session for replay.
func NewReplayer(ctx context.Context, s *Store, sessionID string) (*Replayer, error) {
	if _, err := s.ReadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	calls, err := s.ReadCalls(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Replayer{session: sessionID, calls: calls, used: make([]bool, len(calls))}, nil
}

// Remaining returns the number of recorded calls not yet replayed.
func (p *Replayer) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, u := range p.used {
		if !u {
			n++
		}
	}
	return n
}

// Query implements remote.Querier.
func (p *Replayer) Query(ctx context.Context, soql string) ([]ir.Record, error) {
	call, err := p.take(func(c Call) bool {
		return c.Kind == KindQuery && c.SOQL == soql
	}, "query "+soql)
	if err != nil {
		return nil, err
	}
	return call.Records, nil
}

// Create implements remote.Writer.
func (p *Replayer) Create(ctx context.Context, sobject string, fields ir.IRObject) (string, error) {
	match, err := p.writeMatcher(KindCreate, sobject, fields)
	if err != nil {
		return "", err
	}
	call, err := p.take(match, "create "+sobject)
	if err != nil {
		return "", err
	}
	return call.CreatedID, nil
}

// Update implements remote.Writer.
func (p *Replayer) Update(ctx context.Context, sobject string, fields ir.IRObject) error {
	match, err := p.writeMatcher(KindUpdate, sobject, fields)
	if err != nil {
		return err
	}
	_, err = p.take(match, "update "+sobject)
	return err
}

// writeMatcher matches writes by kind, sobject and canonical payload.
func (p *Replayer) writeMatcher(kind CallKind, sobject string, fields ir.IRObject) (func(Call) bool, error) {
	want, err := marshalPayload(fields)
	if err != nil {
		return nil, err
	}
	return func(c Call) bool {
		if c.Kind != kind || c.SObject != sobject {
			return false
		}
		got, err := marshalPayload(c.Payload)
		return err == nil && got == want
	}, nil
}

func (p *Replayer) take(match func(Call) bool, what string) (Call, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, c := range p.calls {
		if p.used[i] || !match(c) {
			continue
		}
		p.used[i] = true
		if c.Failed() {
			return c, &ReplayedError{Seq: c.Seq, Message: c.Err}
		}
		return c, nil
	}
	return Call{}, fmt.Errorf("%w in session %s: %s", ErrNotRecorded, p.session, what)
}
