package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/soqlkit/internal/ir"
)

// CallKind is the remote operation a journal entry records.
type CallKind string

const (
	KindQuery  CallKind = "query"
	KindCreate CallKind = "create"
	KindUpdate CallKind = "update"
)

// timeLayout is how recorded_at and started_at are stored.
const timeLayout = time.RFC3339Nano

// ErrSessionNotFound is returned when a session ID is not in the journal.
var ErrSessionNotFound = errors.New("session not found")

// Session groups the calls of one run.
type Session struct {
	ID        string
	Label     string
	StartedAt time.Time
	CallCount int
}

// Call is one journaled remote call.
type Call struct {
	ID        string
	SessionID string
	Seq       int64
	Kind      CallKind
	SObject   string
	SOQL      string

	// Payload holds the write fields; empty for queries.
	Payload ir.IRObject

	// Records holds the query response.
	Records []ir.Record

	// CreatedID holds the identity returned by a create.
	CreatedID string

	// Err is the error text of a failed call.
	Err string

	RecordedAt time.Time
}

// Failed reports whether the recorded call returned an error.
func (c Call) Failed() bool { return c.Err != "" }

// WriteSession inserts a session. Duplicate IDs are silently ignored.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, label, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.Label, sess.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteCall appends a call to its session.
// Uses ON CONFLICT(id) DO NOTHING for idempotency; a second call with the
// same session and seq is an error.
func (s *Store) WriteCall(ctx context.Context, call Call) error {
	payload, err := marshalPayload(call.Payload)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	response, err := marshalResponse(call)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls
		(id, session_id, seq, kind, sobject, soql, payload, response, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		call.ID,
		call.SessionID,
		call.Seq,
		string(call.Kind),
		call.SObject,
		call.SOQL,
		payload,
		response,
		call.Err,
		call.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("write call: %w", err)
	}
	return nil
}

// ReadSession returns a session with its call count.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.id, s.label, s.started_at, COUNT(c.id)
		FROM sessions s
		LEFT JOIN calls c ON c.session_id = s.id
		WHERE s.id = ?
		GROUP BY s.id
	`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, err
}

// ListSessions returns every session, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.label, s.started_at, COUNT(c.id)
		FROM sessions s
		LEFT JOIN calls c ON c.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC, s.id COLLATE BINARY DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently started session.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, fmt.Errorf("%w: journal is empty", ErrSessionNotFound)
	}
	return sessions[0], nil
}

// ReadCalls returns the calls of a session in seq order.
// Returns an empty slice (not nil) if the session has no calls.
func (s *Store) ReadCalls(ctx context.Context, sessionID string) ([]Call, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, kind, sobject, soql, payload, response, error, recorded_at
		FROM calls
		WHERE session_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	calls := []Call{}
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return calls, nil
}

// MaxSeq returns the highest seq recorded for a session, or 0.
func (s *Store) MaxSeq(ctx context.Context, sessionID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM calls WHERE session_id = ?`, sessionID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (Session, error) {
	var (
		sess    Session
		started string
	)
	if err := row.Scan(&sess.ID, &sess.Label, &started, &sess.CallCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return Session{}, fmt.Errorf("scan session %s: started_at: %w", sess.ID, err)
	}
	sess.StartedAt = t
	return sess, nil
}

func scanCall(row scanner) (Call, error) {
	var (
		call              Call
		kind              string
		payload, response string
		recordedAt        string
	)
	err := row.Scan(&call.ID, &call.SessionID, &call.Seq, &kind, &call.SObject, &call.SOQL,
		&payload, &response, &call.Err, &recordedAt)
	if err != nil {
		return Call{}, fmt.Errorf("scan call: %w", err)
	}
	call.Kind = CallKind(kind)

	if call.Payload, err = unmarshalPayload(payload); err != nil {
		return Call{}, fmt.Errorf("call %s: %w", call.ID, err)
	}
	if err := unmarshalResponse(&call, response); err != nil {
		return Call{}, fmt.Errorf("call %s: %w", call.ID, err)
	}
	if call.RecordedAt, err = time.Parse(timeLayout, recordedAt); err != nil {
		return Call{}, fmt.Errorf("call %s: recorded_at: %w", call.ID, err)
	}
	return call, nil
}
