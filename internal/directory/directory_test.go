package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/internal/ir"
)

func counterSpec() ir.ConceptSpec {
	return ir.ConceptSpec{
		URI: "Counter",
		Actions: []ir.ActionSig{
			{
				Name:   "increment",
				Inputs: []ir.NamedField{{Name: "by", Type: "int"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "value", Type: "int"}}},
				},
			},
		},
		Relations: []string{"current"},
	}
}

// counterTransport attaches a handler for every declared action so the
// transport passes registration coverage.
func counterTransport(spec ir.ConceptSpec) *Local {
	return NewLocal(spec).Action("increment", func(_ context.Context, input ir.Object) (string, ir.Object, error) {
		by, _ := input["by"].(ir.Int)
		return ir.VariantOK, ir.Object{"value": by}, nil
	})
}

func TestDirectoryRegisterResolve(t *testing.T) {
	d := New(nil)
	spec := counterSpec()

	require.NoError(t, d.Register(spec, counterTransport(spec)))

	tr, err := d.Resolve("Counter")
	require.NoError(t, err)
	assert.NotNil(t, tr)

	got, ok := d.Spec("Counter")
	require.True(t, ok)
	assert.Equal(t, "Counter", got.URI)
}

func TestDirectoryDuplicateRegistration(t *testing.T) {
	d := New(nil)
	spec := counterSpec()

	require.NoError(t, d.Register(spec, counterTransport(spec)))
	err := d.Register(spec, counterTransport(spec))

	var dup *ErrAlreadyRegistered
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Counter", dup.Concept)
}

func TestDirectoryResolveUnknown(t *testing.T) {
	d := New(nil)

	_, err := d.Resolve("Ghost")

	var notReg *ErrNotRegistered
	require.ErrorAs(t, err, &notReg)
	assert.Equal(t, "Ghost", notReg.Concept)
}

func TestDirectoryUnregister(t *testing.T) {
	d := New(nil)
	spec := counterSpec()
	require.NoError(t, d.Register(spec, counterTransport(spec)))

	d.Unregister("Counter")

	_, err := d.Resolve("Counter")
	var notReg *ErrNotRegistered
	assert.ErrorAs(t, err, &notReg)

	// Re-registration after unregister is allowed.
	assert.NoError(t, d.Register(spec, counterTransport(spec)))
}

func TestDirectoryUnregisterUnknownIsNoop(t *testing.T) {
	d := New(nil)
	d.Unregister("Ghost")
}

func TestDirectoryHasAction(t *testing.T) {
	d := New(nil)
	spec := counterSpec()
	require.NoError(t, d.Register(spec, counterTransport(spec)))

	assert.True(t, d.HasAction("Counter", "increment"))
	assert.False(t, d.HasAction("Counter", "decrement"))
	assert.False(t, d.HasAction("Ghost", "increment"))
}

func TestDirectoryHasRelation(t *testing.T) {
	d := New(nil)
	spec := counterSpec()
	require.NoError(t, d.Register(spec, counterTransport(spec)))

	assert.True(t, d.HasRelation("Counter", "current"))
	assert.False(t, d.HasRelation("Counter", "history"))
}

func TestDirectoryRejectsEmptyURI(t *testing.T) {
	d := New(nil)
	err := d.Register(ir.ConceptSpec{}, NewLocal(ir.ConceptSpec{}))
	require.Error(t, err)
}

func TestLocalInvoke(t *testing.T) {
	spec := counterSpec()
	value := int64(0)
	tr := NewLocal(spec).Action("increment", func(_ context.Context, input ir.Object) (string, ir.Object, error) {
		by := int64(1)
		if v, ok := input["by"].(ir.Int); ok {
			by = int64(v)
		}
		value += by
		return ir.VariantOK, ir.Object{"value": ir.Int(value)}, nil
	})

	variant, output, err := tr.Invoke(context.Background(), "increment", ir.Object{"by": ir.Int(3)})
	require.NoError(t, err)
	assert.Equal(t, ir.VariantOK, variant)
	assert.Equal(t, ir.Int(3), output["value"])
}

func TestLocalInvokeUnknownAction(t *testing.T) {
	tr := NewLocal(counterSpec())

	variant, output, err := tr.Invoke(context.Background(), "explode", ir.Object{})
	require.NoError(t, err)
	assert.Equal(t, ir.VariantUnknownAction, variant)
	assert.Equal(t, ir.String("explode"), output["action"])
}

func TestLocalInvokeRecoversPanic(t *testing.T) {
	tr := NewLocal(counterSpec()).Action("increment", func(_ context.Context, _ ir.Object) (string, ir.Object, error) {
		panic("boom")
	})

	_, _, err := tr.Invoke(context.Background(), "increment", ir.Object{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestLocalInvokeNilOutputBecomesEmpty(t *testing.T) {
	tr := NewLocal(counterSpec()).Action("increment", func(_ context.Context, _ ir.Object) (string, ir.Object, error) {
		return ir.VariantOK, nil, nil
	})

	_, output, err := tr.Invoke(context.Background(), "increment", ir.Object{})
	require.NoError(t, err)
	assert.NotNil(t, output)
	assert.Empty(t, output)
}

func TestLocalQuery(t *testing.T) {
	tr := NewLocal(counterSpec()).Relation("current", func(_ context.Context, _ ir.Object) ([]ir.Object, error) {
		return []ir.Object{{"value": ir.Int(7)}}, nil
	})

	rows, err := tr.Query(context.Background(), "current", ir.Object{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ir.Int(7), rows[0]["value"])
}

func TestLocalQueryUnsupportedRelationYieldsNoRows(t *testing.T) {
	tr := NewLocal(counterSpec())

	rows, err := tr.Query(context.Background(), "history", ir.Object{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.NotNil(t, rows, "no rows, not a missing result")
}

func TestLocalQueryRecoversPanic(t *testing.T) {
	tr := NewLocal(counterSpec()).Relation("current", func(_ context.Context, _ ir.Object) ([]ir.Object, error) {
		panic(errors.New("storage gone"))
	})

	_, err := tr.Query(context.Background(), "current", ir.Object{})
	require.Error(t, err)
}

func TestLocalHealth(t *testing.T) {
	h := NewLocal(counterSpec()).Health(context.Background())
	assert.True(t, h.Available)
	assert.Zero(t, h.LatencyMs)
}

func TestDirectoryRejectsActionWithoutHandler(t *testing.T) {
	d := New(nil)
	spec := counterSpec()

	err := d.Register(spec, NewLocal(spec))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `action "increment" has no handler`)

	_, resolveErr := d.Resolve("Counter")
	assert.Error(t, resolveErr, "a rejected concept must not be installed")
}

func TestDirectoryRejectsUndeclaredHandler(t *testing.T) {
	d := New(nil)
	spec := counterSpec()
	tr := counterTransport(spec).Action("decrement", func(_ context.Context, _ ir.Object) (string, ir.Object, error) {
		return ir.VariantOK, ir.Object{}, nil
	})

	err := d.Register(spec, tr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `handler "decrement" is not a declared action`)
}

func TestDirectoryCheckHealth(t *testing.T) {
	d := New(nil)
	spec := counterSpec()
	require.NoError(t, d.Register(spec, counterTransport(spec)))

	report := d.CheckHealth(context.Background())
	require.Len(t, report, 1)
	assert.True(t, report["Counter"].Available)
}
