package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/internal/ir"
)

// eachStore runs the contract suite against both implementations.
func eachStore(t *testing.T, run func(t *testing.T, s Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		s := NewMemory()
		defer s.Close()
		run(t, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
		require.NoError(t, err)
		defer s.Close()
		run(t, s)
	})
}

func TestStoreGetPutRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		body := ir.Object{
			"name":  ir.String("alice"),
			"age":   ir.Int(30),
			"admin": ir.Bool(false),
			"tags":  ir.Array{ir.String("a")},
		}

		require.NoError(t, s.Put(ctx, "users", "u1", body))

		got, found, err := s.Get(ctx, "users", "u1")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, ir.Equal(body, got))
	})
}

func TestStoreGetAbsent(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		_, found, err := s.Get(context.Background(), "users", "nope")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestStorePutReplaces(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "users", "u1", ir.Object{"name": ir.String("alice")}))
		require.NoError(t, s.Put(ctx, "users", "u1", ir.Object{"name": ir.String("alicia")}))

		got, found, err := s.Get(ctx, "users", "u1")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, ir.String("alicia"), got["name"])
	})
}

func TestStoreFindByField(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "notes", "n1", ir.Object{"owner": ir.String("alice"), "title": ir.String("first")}))
		require.NoError(t, s.Put(ctx, "notes", "n2", ir.Object{"owner": ir.String("bob"), "title": ir.String("second")}))
		require.NoError(t, s.Put(ctx, "notes", "n3", ir.Object{"owner": ir.String("alice"), "title": ir.String("third")}))

		rows, err := s.Find(ctx, "notes", ir.Object{"owner": ir.String("alice")})
		require.NoError(t, err)
		require.Len(t, rows, 2)
		// Key order: n1 before n3.
		assert.Equal(t, ir.String("first"), rows[0]["title"])
		assert.Equal(t, ir.String("third"), rows[1]["title"])
	})
}

func TestStoreFindMultipleFilters(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "notes", "n1", ir.Object{"owner": ir.String("alice"), "pinned": ir.Bool(true)}))
		require.NoError(t, s.Put(ctx, "notes", "n2", ir.Object{"owner": ir.String("alice"), "pinned": ir.Bool(false)}))

		rows, err := s.Find(ctx, "notes", ir.Object{
			"owner":  ir.String("alice"),
			"pinned": ir.Bool(true),
		})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestStoreFindEmptyFilterReturnsAll(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "notes", "n1", ir.Object{"x": ir.Int(1)}))
		require.NoError(t, s.Put(ctx, "notes", "n2", ir.Object{"x": ir.Int(2)}))

		rows, err := s.Find(ctx, "notes", nil)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}

func TestStoreFindIntFilter(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "counters", "c1", ir.Object{"value": ir.Int(7)}))
		require.NoError(t, s.Put(ctx, "counters", "c2", ir.Object{"value": ir.Int(8)}))

		rows, err := s.Find(ctx, "counters", ir.Object{"value": ir.Int(7)})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestStoreFindNoMatches(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		rows, err := s.Find(context.Background(), "notes", ir.Object{"owner": ir.String("nobody")})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}

func TestStoreFindRejectsNonScalarFilter(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		_, err := s.Find(context.Background(), "notes", ir.Object{"meta": ir.Object{}})
		require.Error(t, err)
	})
}

func TestSQLiteFindRejectsNonIdentifierField(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "notes", "n1", ir.Object{"owner": ir.String("alice")}))

	// The field name feeds the json_extract path, so it must stay a
	// plain identifier.
	for _, field := range []string{"owner') OR 1=1 --", "a.b", "a'", ""} {
		_, err := s.Find(ctx, "notes", ir.Object{field: ir.String("alice")})
		require.Error(t, err, "field %q", field)
		assert.Contains(t, err.Error(), "invalid field name")
	}

	rows, err := s.Find(ctx, "notes", ir.Object{"owner": ir.String("alice")})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestStoreDelete(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "users", "u1", ir.Object{"name": ir.String("alice")}))
		require.NoError(t, s.Delete(ctx, "users", "u1"))

		_, found, err := s.Get(ctx, "users", "u1")
		require.NoError(t, err)
		assert.False(t, found)

		// Deleting again is a no-op.
		assert.NoError(t, s.Delete(ctx, "users", "u1"))
	})
}

func TestStoreRelationsAreIsolated(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Put(ctx, "users", "k", ir.Object{"kind": ir.String("user")}))
		require.NoError(t, s.Put(ctx, "notes", "k", ir.Object{"kind": ir.String("note")}))

		got, found, err := s.Get(ctx, "users", "k")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, ir.String("user"), got["kind"])

		require.NoError(t, s.Delete(ctx, "users", "k"))
		_, found, err = s.Get(ctx, "notes", "k")
		require.NoError(t, err)
		assert.True(t, found)
	})
}

func TestMemoryCopiesOnReadAndWrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	body := ir.Object{"nested": ir.Object{"x": ir.Int(1)}}
	require.NoError(t, s.Put(ctx, "r", "k", body))

	// Mutating the caller's object must not reach the store.
	body["nested"].(ir.Object)["x"] = ir.Int(99)

	got, _, err := s.Get(ctx, "r", "k")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), got["nested"].(ir.Object)["x"])

	// Mutating a read result must not reach the store either.
	got["nested"].(ir.Object)["x"] = ir.Int(42)
	again, _, err := s.Get(ctx, "r", "k")
	require.NoError(t, err)
	assert.Equal(t, ir.Int(1), again["nested"].(ir.Object)["x"])
}

func TestSQLiteReopenPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "records.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "users", "u1", ir.Object{"name": ir.String("alice")}))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, found, err := reopened.Get(ctx, "users", "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, ir.String("alice"), got["name"])
}
