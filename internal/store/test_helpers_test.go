package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/soqlkit/internal/remote"
	"github.com/roach88/soqlkit/internal/testutil"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecorder records into a fresh session with deterministic IDs,
// seq values and timestamps.
func createTestRecorder(t *testing.T, s *Store, inner remote.Client, label string) *Recorder {
	t.Helper()
	r, err := NewRecorder(context.Background(), inner, s, label,
		WithIDGenerator(testutil.NewSequentialIDGenerator(label)),
		WithSeqSource(testutil.NewDeterministicClock()),
		WithNow(testutil.FixedNow(testutil.FixedTime)),
	)
	if err != nil {
		t.Fatalf("NewRecorder() failed: %v", err)
	}
	return r
}
