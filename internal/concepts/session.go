package concepts

import (
	"context"

	"github.com/google/uuid"

	"github.com/weftworks/weft/internal/directory"
	"github.com/weftworks/weft/internal/ir"
	"github.com/weftworks/weft/internal/storage"
)

const sessionRelation = "session"

// Session issues opaque session tokens per user. destroyAll exists so
// account deletion can sweep every live session in one action.
func Session(store storage.Store) (ir.ConceptSpec, *directory.Local) {
	spec := ir.ConceptSpec{
		URI:     "Session",
		Purpose: "track authenticated sessions",
		Actions: []ir.ActionSig{
			{
				Name:   "create",
				Inputs: []ir.NamedField{{Name: "user", Type: "string"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{
						{Name: "session", Type: "string"},
						{Name: "user", Type: "string"},
					}},
					{Tag: "invalid", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
			{
				Name:   "validate",
				Inputs: []ir.NamedField{{Name: "session", Type: "string"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "user", Type: "string"}}},
					{Tag: "notfound", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
			{
				Name:   "destroy",
				Inputs: []ir.NamedField{{Name: "session", Type: "string"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "session", Type: "string"}}},
					{Tag: "notfound", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
			{
				Name:   "destroyAll",
				Inputs: []ir.NamedField{{Name: "user", Type: "string"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "count", Type: "int"}}},
				},
			},
		},
		Relations: []string{"byUser"},
	}

	transport := directory.NewLocal(spec).
		Action("create", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			user, _ := input["user"].(ir.String)
			if user == "" {
				return "invalid", ir.Object{"message": ir.String("user is required")}, nil
			}

			session := ir.String(uuid.NewString())
			err := store.Put(ctx, sessionRelation, string(session), ir.Object{
				"session": session,
				"user":    user,
			})
			if err != nil {
				return "", nil, err
			}
			return "ok", ir.Object{"session": session, "user": user}, nil
		}).
		Action("validate", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			session, _ := input["session"].(ir.String)
			record, found, err := store.Get(ctx, sessionRelation, string(session))
			if err != nil {
				return "", nil, err
			}
			if !found {
				return "notfound", ir.Object{"message": ir.String("session not found")}, nil
			}
			return "ok", ir.Object{"user": record["user"]}, nil
		}).
		Action("destroy", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			session, _ := input["session"].(ir.String)
			_, found, err := store.Get(ctx, sessionRelation, string(session))
			if err != nil {
				return "", nil, err
			}
			if !found {
				return "notfound", ir.Object{"message": ir.String("session not found")}, nil
			}
			if err := store.Delete(ctx, sessionRelation, string(session)); err != nil {
				return "", nil, err
			}
			return "ok", ir.Object{"session": session}, nil
		}).
		Action("destroyAll", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			user, _ := input["user"].(ir.String)
			rows, err := store.Find(ctx, sessionRelation, ir.Object{"user": user})
			if err != nil {
				return "", nil, err
			}
			for _, row := range rows {
				session, _ := row["session"].(ir.String)
				if err := store.Delete(ctx, sessionRelation, string(session)); err != nil {
					return "", nil, err
				}
			}
			return "ok", ir.Object{"count": ir.Int(int64(len(rows)))}, nil
		}).
		Relation("byUser", func(ctx context.Context, args ir.Object) ([]ir.Object, error) {
			return store.Find(ctx, sessionRelation, ir.Object{"user": args["user"]})
		})
	return spec, transport
}
