package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/soqlkit/internal/ir"
	"github.com/roach88/soqlkit/internal/testutil"
)

const (
	entitiesDir  = "../../testdata/entities"
	scenariosDir = "../../testdata/scenarios"
	goldenDir    = "../harness/testdata/golden"
)

// executeCommand runs the root command with args and returns stdout and stderr.
func executeCommand(t *testing.T, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), errBuf.String(), err
}

// writeConfig writes a soqlkit.yaml into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soqlkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeEntities writes a CUE entities file into a temp dir and returns its path.
func writeEntities(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entities.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// fakeOptions returns root options wired to a fresh fake client, with the
// sandbox flag cleared from the environment.
func fakeOptions(t *testing.T, format string) (*RootOptions, *testutil.FakeClient) {
	t.Helper()
	t.Setenv("APP_SANDBOX", "")
	t.Setenv("SOQLKIT_SANDBOXED", "")
	t.Setenv("SOQLKIT_JOURNAL", "")
	t.Setenv("SOQLKIT_ENTITIES", "")

	fake := testutil.NewFakeClient()
	return &RootOptions{Format: format, Client: fake}, fake
}

func account(id, name string) ir.Record {
	return ir.NewRecord("Account",
		ir.O("Id", ir.NewIRString(id)),
		ir.O("Name", ir.NewIRString(name)),
	)
}
