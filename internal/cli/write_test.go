package cli

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/soqlkit/internal/ir"
)

type writeResponse struct {
	Status  string      `json:"status"`
	Data    WriteResult `json:"data"`
	Error   *CLIError   `json:"error"`
	Session string      `json:"session"`
}

func TestCreateCommand(t *testing.T) {
	opts, fake := fakeOptions(t, "text")

	out, _, err := executeCommand(t, opts, "create", "Account", "--set", "Name=Acme", "--set", "NumberOfEmployees=12")
	require.NoError(t, err)
	assert.Equal(t, "✓ created Account fake-id-1\n", out)

	creates := fake.Creates()
	require.Len(t, creates, 1)
	assert.Equal(t, "Account", creates[0].SObject)
	assert.Equal(t, ir.IRObject{
		"Name":              ir.IRString("Acme"),
		"NumberOfEmployees": ir.IRInt(12),
	}, creates[0].Fields)
}

func TestCreateDropsIdentity(t *testing.T) {
	opts, fake := fakeOptions(t, "json")

	out, _, err := executeCommand(t, opts, "create", "Account", "--set", "Id=ignored", "--set", "Name=Acme")
	require.NoError(t, err)

	var resp writeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, WriteResult{SObject: "Account", ID: "fake-id-1", RowsAffected: 1}, resp.Data)

	creates := fake.Creates()
	require.Len(t, creates, 1)
	assert.NotContains(t, creates[0].Fields, "Id")
}

func TestUpdateCommand(t *testing.T) {
	opts, fake := fakeOptions(t, "text")

	out, _, err := executeCommand(t, opts, "update", "Account", "a1", "--set", "BillingCity=Paris")
	require.NoError(t, err)
	assert.Equal(t, "✓ updated Account a1 (1 row(s))\n", out)

	updates := fake.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, ir.IRString("a1"), updates[0].Fields["Id"])
	assert.Equal(t, ir.IRString("Paris"), updates[0].Fields["BillingCity"])
}

func TestUpdateWithoutChangesSendsNothing(t *testing.T) {
	opts, fake := fakeOptions(t, "text")

	out, _, err := executeCommand(t, opts, "update", "Account", "a1")
	require.NoError(t, err)
	assert.Equal(t, "✓ updated Account a1 (0 row(s))\n", out)
	assert.Zero(t, fake.CallCount())
}

func TestWritesRefusedInSandbox(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"create", []string{"create", "Account", "--set", "Name=Acme"}},
		{"update", []string{"update", "Account", "a1", "--set", "Name=Acme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, fake := fakeOptions(t, "json")
			opts.ConfigPath = writeConfig(t, "sandboxed: true\n")

			out, _, err := executeCommand(t, opts, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, ErrCodeSandbox, resp.Error.Code)
			assert.Zero(t, fake.CallCount(), "a refused write must not reach the remote system")
		})
	}
}

func TestWritesRefusedBySandboxEnvironment(t *testing.T) {
	opts, fake := fakeOptions(t, "text")
	t.Setenv("APP_SANDBOX", "true")

	_, _, err := executeCommand(t, opts, "create", "Account", "--set", "Name=Acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeSandbox)
	assert.Zero(t, fake.CallCount())
}

func TestExplicitSettingOverridesSandboxEnvironment(t *testing.T) {
	opts, fake := fakeOptions(t, "text")
	t.Setenv("APP_SANDBOX", "true")
	opts.ConfigPath = writeConfig(t, "sandboxed: false\n")

	_, _, err := executeCommand(t, opts, "create", "Account", "--set", "Name=Acme")
	require.NoError(t, err)
	assert.Len(t, fake.Creates(), 1)
}

func TestWriteRemoteFailure(t *testing.T) {
	opts, fake := fakeOptions(t, "json")
	fake.WriteErr = errors.New("REQUIRED_FIELD_MISSING: Name")

	out, _, err := executeCommand(t, opts, "create", "Account", "--set", "BillingCity=Paris")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRemote, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "REQUIRED_FIELD_MISSING")
}

func TestWriteInvalidSet(t *testing.T) {
	opts, fake := fakeOptions(t, "text")

	_, _, err := executeCommand(t, opts, "create", "Account", "--set", "Name")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Zero(t, fake.CallCount())
}

func TestWriteJournaled(t *testing.T) {
	journal := filepath.Join(t.TempDir(), "soqlkit.db")
	opts, _ := fakeOptions(t, "json")

	out, _, err := executeCommand(t, opts, "create", "Account", "--set", "Name=Acme", "--journal", journal)
	require.NoError(t, err)

	var resp writeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.Session)

	// The same create replays offline with the recorded identity.
	replayOpts, offline := fakeOptions(t, "json")
	out, _, err = executeCommand(t, replayOpts, "create", "Account", "--set", "Name=Acme", "--journal", journal, "--replay", resp.Session)
	require.NoError(t, err)

	var replayed writeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &replayed))
	assert.Equal(t, "fake-id-1", replayed.Data.ID)
	assert.Zero(t, offline.CallCount())
}
