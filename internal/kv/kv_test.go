package kv_test

import (
	"context"
	"testing"

	"github.com/nomdev/corbo/internal/kv"
	"github.com/nomdev/corbo/internal/localdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLite(t *testing.T, suite string) *kv.SQLite {
	t.Helper()
	db, err := localdb.OpenInDir(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := kv.NewSQLite(context.Background(), db, suite)
	require.NoError(t, err)
	return store
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) kv.Store{
		"memory": func(t *testing.T) kv.Store { return kv.NewMemory() },
		"sqlite": func(t *testing.T) kv.Store { return newSQLite(t, "group.test") },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			_, ok, err := store.GetString(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.SetString(ctx, "token", "abc"))
			got, ok, err := store.GetString(ctx, "token")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "abc", got)

			require.NoError(t, store.SetString(ctx, "token", "def"))
			got, _, _ = store.GetString(ctx, "token")
			assert.Equal(t, "def", got)

			require.NoError(t, store.SetBytes(ctx, "blob", []byte{0, 1, 2}))
			b, ok, err := store.GetBytes(ctx, "blob")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte{0, 1, 2}, b)

			require.NoError(t, store.Remove(ctx, "token"))
			_, ok, err = store.GetString(ctx, "token")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, store.Remove(ctx, "token"), "removing twice is fine")
		})
	}
}

func TestSQLiteSuitesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db, err := localdb.OpenInDir(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	a, err := kv.NewSQLite(ctx, db, "group.a")
	require.NoError(t, err)
	b, err := kv.NewSQLite(ctx, db, "group.b")
	require.NoError(t, err)

	require.NoError(t, a.SetString(ctx, "k", "from a"))

	_, ok, err := b.GetString(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
