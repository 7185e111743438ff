package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/internal/catalog"
	"github.com/weftworks/weft/internal/directory"
	"github.com/weftworks/weft/internal/ir"
)

// whereEngine builds an engine whose directory serves a Note concept
// with a byOwner relation over fixed rows.
func whereEngine(t *testing.T, rows []ir.Object, queryErr error) *Engine {
	t.Helper()

	dir := directory.New(nil)
	spec := ir.ConceptSpec{
		URI: "Note",
		Actions: []ir.ActionSig{
			{Name: "delete", Variants: []ir.VariantSig{{Tag: "ok"}}},
		},
		Relations: []string{"byOwner"},
	}
	transport := directory.NewLocal(spec).
		Action("delete", func(_ context.Context, _ ir.Object) (string, ir.Object, error) {
			return ir.VariantOK, ir.Object{}, nil
		}).
		Relation("byOwner", func(_ context.Context, _ ir.Object) ([]ir.Object, error) {
			if queryErr != nil {
				return nil, queryErr
			}
			return rows, nil
		})
	require.NoError(t, dir.Register(spec, transport))

	return New(dir, catalog.New(dir, nil), nil)
}

func querySync() ir.CompiledSync {
	return ir.CompiledSync{
		Name: "Cascade",
		Where: []ir.WhereClause{{
			Kind:     ir.WhereQuery,
			Concept:  "Note",
			Relation: "byOwner",
			Args:     map[string]ir.Term{"owner": {Var: "u"}},
			Bind:     map[string]string{"note": "n"},
		}},
	}
}

func TestEvalWhereQueryFanOut(t *testing.T) {
	e := whereEngine(t, []ir.Object{
		{"note": ir.String("n1")},
		{"note": ir.String("n2")},
	}, nil)

	envs, fault := e.evalWhere(context.Background(), querySync(), "f", ir.Object{"u": ir.String("u1")})
	require.Nil(t, fault)
	require.Len(t, envs, 2)
	assert.Equal(t, ir.String("n1"), envs[0]["n"])
	assert.Equal(t, ir.String("n2"), envs[1]["n"])
	// The source binding survives in each fanned-out environment.
	assert.Equal(t, ir.String("u1"), envs[0]["u"])
}

func TestEvalWhereQueryNoRows(t *testing.T) {
	e := whereEngine(t, nil, nil)

	envs, fault := e.evalWhere(context.Background(), querySync(), "f", ir.Object{"u": ir.String("u1")})
	require.Nil(t, fault)
	assert.Empty(t, envs, "zero rows is zero environments, not a fault")
}

func TestEvalWhereQueryTransportError(t *testing.T) {
	e := whereEngine(t, nil, errors.New("storage gone"))

	_, fault := e.evalWhere(context.Background(), querySync(), "f", ir.Object{"u": ir.String("u1")})
	require.NotNil(t, fault)
	assert.Equal(t, FaultWhereFailed, fault.Code)
	assert.Equal(t, "Cascade", fault.Sync)
}

func TestEvalWhereQueryUnresolvableConcept(t *testing.T) {
	e := whereEngine(t, nil, nil)
	s := querySync()
	s.Where[0].Concept = "Ghost"

	_, fault := e.evalWhere(context.Background(), s, "f", ir.Object{"u": ir.String("u1")})
	require.NotNil(t, fault)
	assert.Equal(t, FaultUnresolvableConcept, fault.Code)
}

func TestEvalWhereQueryMissingColumn(t *testing.T) {
	e := whereEngine(t, []ir.Object{{"other": ir.String("x")}}, nil)

	_, fault := e.evalWhere(context.Background(), querySync(), "f", ir.Object{"u": ir.String("u1")})
	require.NotNil(t, fault)
	assert.Equal(t, FaultWhereFailed, fault.Code)
	assert.Contains(t, fault.Message, `missing column "note"`)
}

func TestEvalWhereFilter(t *testing.T) {
	e := whereEngine(t, nil, nil)
	s := ir.CompiledSync{
		Name: "OnlyAlice",
		Where: []ir.WhereClause{{
			Kind:  ir.WhereFilter,
			Op:    ir.FilterEq,
			Left:  ir.Term{Var: "name"},
			Right: ir.Term{Literal: ir.String("alice")},
		}},
	}

	envs, fault := e.evalWhere(context.Background(), s, "f", ir.Object{"name": ir.String("alice")})
	require.Nil(t, fault)
	assert.Len(t, envs, 1)

	envs, fault = e.evalWhere(context.Background(), s, "f", ir.Object{"name": ir.String("bob")})
	require.Nil(t, fault)
	assert.Empty(t, envs)

	s.Where[0].Op = ir.FilterNe
	envs, fault = e.evalWhere(context.Background(), s, "f", ir.Object{"name": ir.String("bob")})
	require.Nil(t, fault)
	assert.Len(t, envs, 1)
}

func TestEvalWhereBindConcat(t *testing.T) {
	e := whereEngine(t, nil, nil)
	s := ir.CompiledSync{
		Name: "Label",
		Where: []ir.WhereClause{{
			Kind: ir.WhereBind,
			Var:  "label",
			Parts: []ir.Term{
				{Literal: ir.String("user:")},
				{Var: "u"},
			},
		}},
	}

	envs, fault := e.evalWhere(context.Background(), s, "f", ir.Object{"u": ir.String("u1")})
	require.Nil(t, fault)
	require.Len(t, envs, 1)
	assert.Equal(t, ir.String("user:u1"), envs[0]["label"])
}

func TestEvalWhereBindSinglePartPassesThrough(t *testing.T) {
	e := whereEngine(t, nil, nil)
	s := ir.CompiledSync{
		Name: "Alias",
		Where: []ir.WhereClause{{
			Kind:  ir.WhereBind,
			Var:   "copy",
			Parts: []ir.Term{{Var: "n"}},
		}},
	}

	envs, fault := e.evalWhere(context.Background(), s, "f", ir.Object{"n": ir.Int(42)})
	require.Nil(t, fault)
	require.Len(t, envs, 1)
	assert.Equal(t, ir.Int(42), envs[0]["copy"])
}

func TestEvalWhereBindNonStringConcatFaults(t *testing.T) {
	e := whereEngine(t, nil, nil)
	s := ir.CompiledSync{
		Name: "Bad",
		Where: []ir.WhereClause{{
			Kind: ir.WhereBind,
			Var:  "label",
			Parts: []ir.Term{
				{Literal: ir.String("n=")},
				{Var: "n"},
			},
		}},
	}

	_, fault := e.evalWhere(context.Background(), s, "f", ir.Object{"n": ir.Int(42)})
	require.NotNil(t, fault)
	assert.Equal(t, FaultWhereFailed, fault.Code)
}

func TestEvalWhereClausesChain(t *testing.T) {
	// query fans out, filter narrows, bind derives.
	e := whereEngine(t, []ir.Object{
		{"note": ir.String("n1")},
		{"note": ir.String("n2")},
	}, nil)

	s := querySync()
	s.Where = append(s.Where,
		ir.WhereClause{
			Kind:  ir.WhereFilter,
			Op:    ir.FilterEq,
			Left:  ir.Term{Var: "n"},
			Right: ir.Term{Literal: ir.String("n2")},
		},
		ir.WhereClause{
			Kind:  ir.WhereBind,
			Var:   "key",
			Parts: []ir.Term{{Literal: ir.String("note/")}, {Var: "n"}},
		},
	)

	envs, fault := e.evalWhere(context.Background(), s, "f", ir.Object{"u": ir.String("u1")})
	require.Nil(t, fault)
	require.Len(t, envs, 1)
	assert.Equal(t, ir.String("note/n2"), envs[0]["key"])
}
