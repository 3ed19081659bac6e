package cli

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/store"
	"github.com/roach88/soqlkit/internal/testutil"
)

// seedJournal records a query, a create and a failed update in session
// seed-0001 and returns the journal path.
func seedJournal(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "soqlkit.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	fake := testutil.NewFakeClient()
	fake.OnQuery(parisQuery, account("a1", "Acme"), account("a2", "Apex"))

	rec, err := store.NewRecorder(ctx, fake, st, "seed",
		store.WithIDGenerator(testutil.NewSequentialIDGenerator("seed")),
		store.WithSeqSource(testutil.NewDeterministicClock()),
		store.WithNow(testutil.FixedNow(testutil.FixedTime)),
	)
	require.NoError(t, err)

	_, err = rec.Query(ctx, parisQuery)
	require.NoError(t, err)
	_, err = rec.Create(ctx, "Account", ir.IRObject{"Name": ir.IRString("Acme")})
	require.NoError(t, err)

	fake.WriteErr = errors.New("ENTITY_IS_LOCKED")
	err = rec.Update(ctx, "Account", ir.IRObject{"Id": ir.IRString("a1"), "Name": ir.IRString("Acme Corp")})
	require.Error(t, err)

	return path
}

func TestTraceSessionText(t *testing.T) {
	journal := seedJournal(t)
	opts, _ := fakeOptions(t, "text")

	out, _, err := executeCommand(t, opts, "trace", "seed-0001", "--journal", journal)
	require.NoError(t, err)

	assert.Equal(t, `Session: seed-0001 (seed)
Started: 2024-01-02T03:04:05Z

[1] query  SELECT Id, Name FROM Account WHERE BillingCity = 'Paris' -> 2 row(s)
[2] create Account {"Name":"Acme"} -> fake-id-1
[3] update Account {"Id":"a1","Name":"Acme Corp"} ERROR: ENTITY_IS_LOCKED

Stats: 1 query, 1 create, 1 update, 1 failed, 2 row(s)
`, out)
}

func TestTraceLatestSession(t *testing.T) {
	journal := seedJournal(t)
	opts, _ := fakeOptions(t, "json")

	out, _, err := executeCommand(t, opts, "trace", "latest", "--journal", journal)
	require.NoError(t, err)

	var resp struct {
		Status  string      `json:"status"`
		Data    TraceResult `json:"data"`
		Session string      `json:"session"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "seed-0001", resp.Session)
	assert.Equal(t, "seed", resp.Data.Session.Label)
	require.Len(t, resp.Data.Calls, 3)
	assert.Equal(t, parisQuery, resp.Data.Calls[0].SOQL)
	assert.Equal(t, 2, resp.Data.Calls[0].Rows)
	assert.Equal(t, "fake-id-1", resp.Data.Calls[1].CreatedID)
	assert.Equal(t, "ENTITY_IS_LOCKED", resp.Data.Calls[2].Error)
	assert.Equal(t, TraceStats{Queries: 1, Creates: 1, Updates: 1, Failed: 1, Rows: 2}, resp.Data.Stats)
}

func TestTraceKindFilter(t *testing.T) {
	journal := seedJournal(t)
	opts, _ := fakeOptions(t, "json")

	out, _, err := executeCommand(t, opts, "trace", "seed-0001", "--journal", journal, "--kind", "create")
	require.NoError(t, err)

	var resp struct {
		Data TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Calls, 1)
	assert.Equal(t, "create", resp.Data.Calls[0].Kind)
	assert.Equal(t, int64(2), resp.Data.Calls[0].Seq)
	assert.Equal(t, 3, resp.Data.Stats.Queries+resp.Data.Stats.Creates+resp.Data.Stats.Updates, "stats cover the whole session")
}

func TestTraceListSessions(t *testing.T) {
	journal := seedJournal(t)
	opts, _ := fakeOptions(t, "text")

	out, _, err := executeCommand(t, opts, "trace", "--journal", journal)
	require.NoError(t, err)
	assert.Contains(t, out, "seed-0001")
	assert.Contains(t, out, "3 call(s)")
}

func TestTraceEmptyJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soqlkit.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	opts, _ := fakeOptions(t, "text")
	out, _, err := executeCommand(t, opts, "trace", "--journal", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found in journal.")
}

func TestTraceJournalFromConfig(t *testing.T) {
	journal := seedJournal(t)
	opts, _ := fakeOptions(t, "text")
	opts.ConfigPath = writeConfig(t, "journal: "+journal+"\n")

	out, _, err := executeCommand(t, opts, "trace", "latest")
	require.NoError(t, err)
	assert.Contains(t, out, "Session: seed-0001 (seed)")
}

func TestTraceErrors(t *testing.T) {
	journal := seedJournal(t)

	tests := []struct {
		name     string
		args     []string
		wantExit int
		wantCode string
	}{
		{"no journal configured", []string{"trace"}, ExitCommandError, ErrCodeJournal},
		{"missing journal", []string{"trace", "--journal", "/nonexistent/path/soqlkit.db"}, ExitCommandError, ErrCodeNotFound},
		{"unknown session", []string{"trace", "nope", "--journal", journal}, ExitCommandError, ErrCodeNotFound},
		{"invalid kind", []string{"trace", "seed-0001", "--journal", journal, "--kind", "delete"}, ExitCommandError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _ := fakeOptions(t, "text")

			_, _, err := executeCommand(t, opts, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantExit, GetExitCode(err))
			if tt.wantCode != "" {
				assert.Contains(t, err.Error(), tt.wantCode)
			}
		})
	}
}

func TestTraceStats(t *testing.T) {
	calls := []store.Call{
		{Seq: 1, Kind: store.KindQuery, Records: []ir.Record{account("a1", "Acme")}},
		{Seq: 2, Kind: store.KindQuery, Err: "MALFORMED_QUERY"},
		{Seq: 3, Kind: store.KindCreate, CreatedID: "a2"},
	}

	stats := traceStats(calls)
	assert.Equal(t, TraceStats{Queries: 2, Creates: 1, Failed: 1, Rows: 1}, stats)

	timeline := buildTimeline(calls, "query")
	require.Len(t, timeline, 2)
	assert.Equal(t, "MALFORMED_QUERY", timeline[1].Error)
}
