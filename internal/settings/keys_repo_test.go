package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	vals []string
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		*d.(*string) = r.vals[i]
	}
	return nil
}

type fakeQuerier struct {
	row      fakeRow
	execArgs []any
	execErr  error
}

func (f *fakeQuerier) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return f.row
}

func (f *fakeQuerier) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.execArgs = args
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func TestKeysRepo_GetKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo := NewKeysRepo(&fakeQuerier{row: fakeRow{vals: []string{"g-key", ""}}})
		k, err := repo.GetKeys(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, APIKeys{GeminiKey: "g-key"}, k)
	})

	t.Run("no row is empty", func(t *testing.T) {
		repo := NewKeysRepo(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}})
		k, err := repo.GetKeys(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, APIKeys{}, k)
	})

	t.Run("query error", func(t *testing.T) {
		repo := NewKeysRepo(&fakeQuerier{row: fakeRow{err: errors.New("conn reset")}})
		_, err := repo.GetKeys(ctx, "u1")
		assert.Error(t, err)
	})
}

func TestKeysRepo_UpsertKeys(t *testing.T) {
	ctx := context.Background()
	q := &fakeQuerier{}
	repo := NewKeysRepo(q)

	require.NoError(t, repo.UpsertKeys(ctx, "u1", APIKeys{GroqKey: "gsk_1"}))
	assert.Equal(t, []any{"u1", "", "gsk_1"}, q.execArgs)

	assert.Error(t, repo.UpsertKeys(ctx, "", APIKeys{}))
}

func TestMemoryKeyStore_KeepsUnsetKeys(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryKeyStore()

	require.NoError(t, m.UpsertKeys(ctx, "u1", APIKeys{GeminiKey: "g"}))
	require.NoError(t, m.UpsertKeys(ctx, "u1", APIKeys{GroqKey: "q"}))

	k, err := m.GetKeys(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, APIKeys{GeminiKey: "g", GroqKey: "q"}, k)
	assert.Equal(t, "q", k.For("groq"))
	assert.Equal(t, "", k.For("other"))
}

func TestAPIKeys_Masked(t *testing.T) {
	k := APIKeys{GeminiKey: "AIzaSyABCDEF1234", GroqKey: "abc"}
	assert.Equal(t, APIKeys{GeminiKey: "************1234", GroqKey: "***"}, k.Masked())
}
