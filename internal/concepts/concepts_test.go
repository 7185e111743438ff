package concepts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/internal/ir"
	"github.com/weftworks/weft/internal/storage"
)

func TestAPIEchoes(t *testing.T) {
	_, tr := API()

	input := ir.Object{
		"method": ir.String("POST"),
		"path":   ir.String("/users"),
		"body":   ir.Object{"name": ir.String("alice")},
	}
	variant, output, err := tr.Invoke(context.Background(), "request", input)
	require.NoError(t, err)
	assert.Equal(t, "ok", variant)
	assert.True(t, ir.Equal(input, output))
}

func TestUserRegisterGetDelete(t *testing.T) {
	ctx := context.Background()
	_, tr := User(storage.NewMemory())

	variant, output, err := tr.Invoke(ctx, "register", ir.Object{
		"user": ir.String("u1"),
		"name": ir.String("alice"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", variant)
	assert.Equal(t, ir.String("u1"), output["user"])

	variant, output, err = tr.Invoke(ctx, "get", ir.Object{"user": ir.String("u1")})
	require.NoError(t, err)
	assert.Equal(t, "ok", variant)
	assert.Equal(t, ir.String("alice"), output["name"])

	variant, _, err = tr.Invoke(ctx, "delete", ir.Object{"user": ir.String("u1")})
	require.NoError(t, err)
	assert.Equal(t, "ok", variant)

	variant, _, err = tr.Invoke(ctx, "get", ir.Object{"user": ir.String("u1")})
	require.NoError(t, err)
	assert.Equal(t, "notfound", variant)
}

func TestUserRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	_, tr := User(storage.NewMemory())

	input := ir.Object{"user": ir.String("u1"), "name": ir.String("alice")}
	variant, _, err := tr.Invoke(ctx, "register", input)
	require.NoError(t, err)
	require.Equal(t, "ok", variant)

	variant, output, err := tr.Invoke(ctx, "register", input)
	require.NoError(t, err)
	assert.Equal(t, "exists", variant)
	assert.Contains(t, output, "message")
}

func TestUserRegisterInvalid(t *testing.T) {
	_, tr := User(storage.NewMemory())

	variant, _, err := tr.Invoke(context.Background(), "register", ir.Object{
		"user": ir.String(""),
		"name": ir.String("alice"),
	})
	require.NoError(t, err)
	assert.Equal(t, "invalid", variant)
}

func TestUserByNameRelation(t *testing.T) {
	ctx := context.Background()
	_, tr := User(storage.NewMemory())

	for _, u := range []struct{ id, name string }{
		{"u1", "alice"}, {"u2", "bob"}, {"u3", "alice"},
	} {
		variant, _, err := tr.Invoke(ctx, "register", ir.Object{
			"user": ir.String(u.id),
			"name": ir.String(u.name),
		})
		require.NoError(t, err)
		require.Equal(t, "ok", variant)
	}

	rows, err := tr.Query(ctx, "byName", ir.Object{"name": ir.String("alice")})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	all, err := tr.Query(ctx, "all", ir.Object{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPasswordSetAndCheck(t *testing.T) {
	ctx := context.Background()
	_, tr := Password(storage.NewMemory())

	variant, _, err := tr.Invoke(ctx, "set", ir.Object{
		"user":     ir.String("u1"),
		"password": ir.String("correct horse battery"),
	})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)

	variant, output, err := tr.Invoke(ctx, "check", ir.Object{
		"user":     ir.String("u1"),
		"password": ir.String("correct horse battery"),
	})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)
	assert.Equal(t, ir.Bool(true), output["valid"])

	variant, output, err = tr.Invoke(ctx, "check", ir.Object{
		"user":     ir.String("u1"),
		"password": ir.String("wrong"),
	})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)
	assert.Equal(t, ir.Bool(false), output["valid"])
}

func TestPasswordSetTooShort(t *testing.T) {
	_, tr := Password(storage.NewMemory())

	variant, output, err := tr.Invoke(context.Background(), "set", ir.Object{
		"user":     ir.String("u1"),
		"password": ir.String("short"),
	})
	require.NoError(t, err)
	assert.Equal(t, "invalid", variant)
	assert.Contains(t, output, "message")
}

func TestPasswordCheckUnknownUser(t *testing.T) {
	_, tr := Password(storage.NewMemory())

	variant, _, err := tr.Invoke(context.Background(), "check", ir.Object{
		"user":     ir.String("ghost"),
		"password": ir.String("whatever1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "notfound", variant)
}

func TestPasswordValidate(t *testing.T) {
	_, tr := Password(storage.NewMemory())

	variant, output, err := tr.Invoke(context.Background(), "validate", ir.Object{
		"password": ir.String("long enough"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", variant)
	assert.Equal(t, ir.Bool(true), output["valid"])

	_, output, err = tr.Invoke(context.Background(), "validate", ir.Object{
		"password": ir.String("nope"),
	})
	require.NoError(t, err)
	assert.Equal(t, ir.Bool(false), output["valid"])
}

func TestPasswordNeverStoresPlaintext(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	_, tr := Password(store)

	_, _, err := tr.Invoke(ctx, "set", ir.Object{
		"user":     ir.String("u1"),
		"password": ir.String("hunter2hunter2"),
	})
	require.NoError(t, err)

	record, found, err := store.Get(ctx, "password", "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotContains(t, record, "password")
	for _, v := range record {
		if s, ok := v.(ir.String); ok {
			assert.NotEqual(t, ir.String("hunter2hunter2"), s)
		}
	}
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	_, tr := Session(storage.NewMemory())

	variant, output, err := tr.Invoke(ctx, "create", ir.Object{"user": ir.String("u1")})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)
	session := output["session"].(ir.String)
	require.NotEmpty(t, session)

	variant, output, err = tr.Invoke(ctx, "validate", ir.Object{"session": session})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)
	assert.Equal(t, ir.String("u1"), output["user"])

	variant, _, err = tr.Invoke(ctx, "destroy", ir.Object{"session": session})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)

	variant, _, err = tr.Invoke(ctx, "validate", ir.Object{"session": session})
	require.NoError(t, err)
	assert.Equal(t, "notfound", variant)
}

func TestSessionDestroyAll(t *testing.T) {
	ctx := context.Background()
	_, tr := Session(storage.NewMemory())

	for i := 0; i < 3; i++ {
		variant, _, err := tr.Invoke(ctx, "create", ir.Object{"user": ir.String("u1")})
		require.NoError(t, err)
		require.Equal(t, "ok", variant)
	}
	variant, _, err := tr.Invoke(ctx, "create", ir.Object{"user": ir.String("u2")})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)

	variant, output, err := tr.Invoke(ctx, "destroyAll", ir.Object{"user": ir.String("u1")})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)
	assert.Equal(t, ir.Int(3), output["count"])

	rows, err := tr.Query(ctx, "byUser", ir.Object{"user": ir.String("u1")})
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = tr.Query(ctx, "byUser", ir.Object{"user": ir.String("u2")})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestNoteCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	_, tr := Note(storage.NewMemory())

	variant, _, err := tr.Invoke(ctx, "create", ir.Object{
		"note":  ir.String("n1"),
		"owner": ir.String("u1"),
		"title": ir.String("first"),
	})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)

	variant, output, err := tr.Invoke(ctx, "get", ir.Object{"note": ir.String("n1")})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)
	assert.Equal(t, ir.String("first"), output["title"])

	variant, _, err = tr.Invoke(ctx, "delete", ir.Object{"note": ir.String("n1")})
	require.NoError(t, err)
	require.Equal(t, "ok", variant)

	variant, _, err = tr.Invoke(ctx, "delete", ir.Object{"note": ir.String("n1")})
	require.NoError(t, err)
	assert.Equal(t, "notfound", variant)
}

func TestNoteByOwnerRelation(t *testing.T) {
	ctx := context.Background()
	_, tr := Note(storage.NewMemory())

	for _, n := range []struct{ id, owner string }{
		{"n1", "u1"}, {"n2", "u2"}, {"n3", "u1"},
	} {
		variant, _, err := tr.Invoke(ctx, "create", ir.Object{
			"note":  ir.String(n.id),
			"owner": ir.String(n.owner),
			"title": ir.String("t"),
		})
		require.NoError(t, err)
		require.Equal(t, "ok", variant)
	}

	rows, err := tr.Query(ctx, "byOwner", ir.Object{"owner": ir.String("u1")})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, ir.String("n1"), rows[0]["note"])
	assert.Equal(t, ir.String("n3"), rows[1]["note"])
}
