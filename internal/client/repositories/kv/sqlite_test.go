package kv

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE kv (
  key        TEXT PRIMARY KEY,
  value      BLOB NOT NULL,
  updated_at TEXT NOT NULL DEFAULT ''
);`)
	require.NoError(t, err)
	return db
}

// both implementations must honour the same contract
func repos(t *testing.T) map[string]Repository {
	return map[string]Repository{
		"sqlite": NewSQLiteRepository(setupDB(t)),
		"memory": NewMemoryRepository(),
	}
}

func TestSetAndGet(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Set(ctx, "k1", []byte{0x01, 0x02}))

			v, err := r.Get(ctx, "k1")
			require.NoError(t, err)
			require.Equal(t, []byte{0x01, 0x02}, v)
		})
	}
}

func TestGet_MissingReturnsNilNil(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			v, err := r.Get(context.Background(), "absent")
			require.NoError(t, err)
			require.Nil(t, v)
		})
	}
}

func TestSet_Overwrites(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Set(ctx, "k", []byte("old")))
			require.NoError(t, r.Set(ctx, "k", []byte("new")))

			v, err := r.Get(ctx, "k")
			require.NoError(t, err)
			require.Equal(t, []byte("new"), v)
		})
	}
}

func TestList_FiltersByPrefix(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Set(ctx, "sync-meta:o1:quotes", []byte("a")))
			require.NoError(t, r.Set(ctx, "sync-meta:o1:assemblies", []byte("b")))
			require.NoError(t, r.Set(ctx, "primary-quotes", []byte("c")))

			m, err := r.List(ctx, "sync-meta:")
			require.NoError(t, err)
			assert.Len(t, m, 2)
			assert.Equal(t, []byte("a"), m["sync-meta:o1:quotes"])

			all, err := r.List(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, 3)
		})
	}
}

func TestDelete_IsIdempotent(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Set(ctx, "x", []byte{0x01}))
			require.NoError(t, r.Delete(ctx, "x"))

			v, err := r.Get(ctx, "x")
			require.NoError(t, err)
			require.Nil(t, v)

			require.NoError(t, r.Delete(ctx, "x"))
		})
	}
}

func TestClear_RemovesAllKeys(t *testing.T) {
	for name, r := range repos(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, r.Set(ctx, "a", []byte{1}))
			require.NoError(t, r.Set(ctx, "b", []byte{2}))
			require.NoError(t, r.Clear(ctx))

			m, err := r.List(ctx, "")
			require.NoError(t, err)
			assert.Empty(t, m)
		})
	}
}

func TestSQLite_ErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := r.Get(ctx, "k")
	require.ErrorContains(t, err, "failed to get kv[k]")

	require.ErrorContains(t, r.Set(ctx, "k", []byte("v")), "failed to set kv[k]")
	require.ErrorContains(t, r.Delete(ctx, "k"), "failed to delete kv[k]")
	require.ErrorContains(t, r.Clear(ctx), "failed to clear kv")

	_, err = r.List(ctx, "")
	require.ErrorContains(t, err, "failed to list kv")
}

func TestMemory_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, r.Set(ctx, "k", buf))
	buf[0] = 'z'

	v, err := r.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), v)
}
