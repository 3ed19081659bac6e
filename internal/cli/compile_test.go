package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "default projection",
			args: []string{"--from", "Account"},
			want: "SELECT Id, Name, BillingCity, NumberOfEmployees, AnnualRevenue, LastActivityDate FROM Account",
		},
		{
			name: "explicit projection",
			args: []string{"--from", "Account", "--select", "Id,Name,BillingCity"},
			want: "SELECT Id, Name, BillingCity FROM Account",
		},
		{
			name: "typed conditions",
			args: []string{"--from", "Account", "--select", "Id", "--where", "BillingCity=Paris", "--where", "NumberOfEmployees=[10,20]"},
			want: "SELECT Id FROM Account WHERE BillingCity = 'Paris' AND NumberOfEmployees IN (10, 20)",
		},
		{
			name: "null condition",
			args: []string{"--from", "Account", "--select", "Id", "--where", "BillingCity=~"},
			want: "SELECT Id FROM Account WHERE BillingCity = NULL",
		},
		{
			name: "ordered paging",
			args: []string{"--from", "Account", "--select", "Name", "--order", "Name DESC", "--limit", "20", "--offset", "100"},
			want: "SELECT Name FROM Account ORDER BY Name DESC LIMIT 20 OFFSET 100",
		},
		{
			name: "grouped count",
			args: []string{"--from", "Account", "--group", "Name", "--having", "COUNT(Id) > 1", "--aggregate", "count"},
			want: "SELECT COUNT(Id) count_all, Name name FROM Account GROUP BY Name HAVING (COUNT(Id) > 1)",
		},
		{
			name: "sum over column",
			args: []string{"--from", "Account", "--aggregate", "sum", "--column", "AnnualRevenue"},
			want: "SELECT SUM(AnnualRevenue) FROM Account",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, fake := fakeOptions(t, "text")
			args := append([]string{"compile", entitiesDir}, tt.args...)

			out, _, err := executeCommand(t, opts, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
			assert.Zero(t, fake.CallCount(), "compile must not contact the remote system")
		})
	}
}

func TestCompileLimitZeroShortCircuits(t *testing.T) {
	opts, _ := fakeOptions(t, "json")

	out, _, err := executeCommand(t, opts, "compile", entitiesDir, "--from", "Account", "--limit", "0", "--aggregate", "count")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.ShortCircuit)
	assert.Empty(t, resp.Data.SOQL)
}

func TestCompileJSONOutput(t *testing.T) {
	opts, _ := fakeOptions(t, "json")

	out, _, err := executeCommand(t, opts, "compile", entitiesDir, "--from", "Account", "--select", "Name", "--where", "NumberOfEmployees=10")
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   CompilationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Account", resp.Data.Entity)
	assert.Equal(t, "SELECT Name FROM Account WHERE NumberOfEmployees = 10", resp.Data.SOQL)
}

func TestCompileWritesOutputFile(t *testing.T) {
	opts, _ := fakeOptions(t, "text")
	outPath := filepath.Join(t.TempDir(), "query.soql")

	_, _, err := executeCommand(t, opts, "compile", entitiesDir, "--from", "Account", "--select", "Name", "-o", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "SELECT Name FROM Account\n", string(data))
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"unknown entity", []string{"compile", entitiesDir, "--from", "Opportunity"}, ErrCodeInvalidQuery},
		{"malformed condition", []string{"compile", entitiesDir, "--from", "Account", "--where", "Name"}, ErrCodeInvalidQuery},
		{"invalid order", []string{"compile", entitiesDir, "--from", "Account", "--order", "Name SIDEWAYS"}, ErrCodeInvalidQuery},
		{"unknown aggregate", []string{"compile", entitiesDir, "--from", "Account", "--aggregate", "median"}, ErrCodeInvalidQuery},
		{"missing entities path", []string{"compile", "/nonexistent/entities", "--from", "Account"}, ErrCodeNotFound},
		{"no entities configured", []string{"compile", "--from", "Account"}, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, _ := fakeOptions(t, "json")

			out, _, err := executeCommand(t, opts, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			var resp CLIResponse
			require.NoError(t, json.Unmarshal([]byte(out), &resp))
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestCompileEntitiesFromConfig(t *testing.T) {
	opts, _ := fakeOptions(t, "text")
	abs, err := filepath.Abs(entitiesDir)
	require.NoError(t, err)
	opts.ConfigPath = writeConfig(t, "entities: "+abs+"\n")

	out, _, err := executeCommand(t, opts, "compile", "--from", "Contact", "--select", "LastName")
	require.NoError(t, err)
	assert.Equal(t, "SELECT LastName FROM Contact\n", out)
}
