package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/soqlkit/internal/ir"
)

func TestFakeClientScriptedQuery(t *testing.T) {
	f := NewFakeClient().OnQuery("SELECT Id FROM Account", ir.NewRecord("Account", ir.O("Id", ir.IRString("1"))))

	records, err := f.Query(context.Background(), "SELECT Id FROM Account")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].ID())

	records, err = f.Query(context.Background(), "SELECT Name FROM Account")
	require.NoError(t, err)
	assert.Empty(t, records)

	assert.Equal(t, []string{"SELECT Id FROM Account", "SELECT Name FROM Account"}, f.Queries())
}

func TestFakeClientFailQuery(t *testing.T) {
	f := NewFakeClient().FailQuery("SELECT Id FROM X", assert.AnError)

	_, err := f.Query(context.Background(), "SELECT Id FROM X")
	assert.ErrorIs(t, err, assert.AnError)
}

func TestFakeClientWrites(t *testing.T) {
	f := NewFakeClient()

	id, err := f.Create(context.Background(), "Account", ir.IRObject{"Name": ir.IRString("z")})
	require.NoError(t, err)
	assert.Equal(t, "fake-id-1", id)

	require.NoError(t, f.Update(context.Background(), "Account", ir.IRObject{"Id": ir.IRString(id)}))

	assert.Len(t, f.Creates(), 1)
	assert.Len(t, f.Updates(), 1)
	assert.Equal(t, 2, f.CallCount())

	f.WriteErr = assert.AnError
	_, err = f.Create(context.Background(), "Account", nil)
	assert.ErrorIs(t, err, assert.AnError)
}
