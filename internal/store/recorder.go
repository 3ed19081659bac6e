package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/remote"
)

// Recorder wraps a remote.Client and journals every call it forwards.
//
// The remote outcome always wins: a call that reached the remote system
// returns its real result even when journaling it fails. Journal failures
// are logged at warn level.
type Recorder struct {
	inner   remote.Client
	store   *Store
	session string
	clock   SeqSource
	ids     IDGenerator
	now     func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithIDGenerator replaces the UUIDv7 call ID generator.
func WithIDGenerator(g IDGenerator) RecorderOption {
	return func(r *Recorder) { r.ids = g }
}

// WithSeqSource replaces the session clock.
func WithSeqSource(c SeqSource) RecorderOption {
	return func(r *Recorder) { r.clock = c }
}

// WithNow replaces the wall clock used for recorded_at.
func WithNow(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder starts a new session labelled label and returns a recorder
// appending to it.
func NewRecorder(ctx context.Context, inner remote.Client, s *Store, label string, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		inner: inner,
		store: s,
		ids:   UUIDv7Generator{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.session = r.ids.Generate()
	if err := s.WriteSession(ctx, Session{ID: r.session, Label: label, StartedAt: r.now()}); err != nil {
		return nil, err
	}
	if r.clock == nil {
		r.clock = NewClockAt(0)
	}
	slog.Debug("journal session started", "session", r.session, "label", label)
	return r, nil
}

// ResumeRecorder appends to an existing session after its last call.
func ResumeRecorder(ctx context.Context, inner remote.Client, s *Store, sessionID string, opts ...RecorderOption) (*Recorder, error) {
	if _, err := s.ReadSession(ctx, sessionID); err != nil {
		return nil, err
	}
	last, err := s.MaxSeq(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	r := &Recorder{
		inner:   inner,
		store:   s,
		session: sessionID,
		clock:   NewClockAt(last),
		ids:     UUIDv7Generator{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Session returns the session ID calls are recorded under.
func (r *Recorder) Session() string { return r.session }

// Query implements remote.Querier.
func (r *Recorder) Query(ctx context.Context, soql string) ([]ir.Record, error) {
	records, err := r.inner.Query(ctx, soql)
	r.record(ctx, Call{Kind: KindQuery, SOQL: soql, Records: records}, err)
	return records, err
}

// Create implements remote.Writer.
func (r *Recorder) Create(ctx context.Context, sobject string, fields ir.IRObject) (string, error) {
	id, err := r.inner.Create(ctx, sobject, fields)
	r.record(ctx, Call{Kind: KindCreate, SObject: sobject, Payload: fields, CreatedID: id}, err)
	return id, err
}

// Update implements remote.Writer.
func (r *Recorder) Update(ctx context.Context, sobject string, fields ir.IRObject) error {
	err := r.inner.Update(ctx, sobject, fields)
	r.record(ctx, Call{Kind: KindUpdate, SObject: sobject, Payload: fields}, err)
	return err
}

func (r *Recorder) record(ctx context.Context, call Call, callErr error) {
	call.ID = r.ids.Generate()
	call.SessionID = r.session
	call.Seq = r.clock.Next()
	call.RecordedAt = r.now()
	if callErr != nil {
		call.Err = callErr.Error()
		call.Records = nil
	}

	// Journal even when the caller's context is already cancelled.
	if err := r.store.WriteCall(context.WithoutCancel(ctx), call); err != nil {
		slog.Warn("journal write failed", "session", r.session, "seq", call.Seq, "kind", call.Kind, "error", err)
	}
}
