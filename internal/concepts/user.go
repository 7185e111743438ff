package concepts

import (
	"context"

	"github.com/weftworks/weft/internal/directory"
	"github.com/weftworks/weft/internal/ir"
	"github.com/weftworks/weft/internal/storage"
)

const userRelation = "user"

// User keeps user records. register rejects duplicates; delete reports
// whether anything was there. The byName relation serves sync queries.
func User(store storage.Store) (ir.ConceptSpec, *directory.Local) {
	spec := ir.ConceptSpec{
		URI:     "User",
		Purpose: "own user identity records",
		Actions: []ir.ActionSig{
			{
				Name: "register",
				Inputs: []ir.NamedField{
					{Name: "user", Type: "string"},
					{Name: "name", Type: "string"},
				},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "user", Type: "string"}}},
					{Tag: "invalid", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
					{Tag: "exists", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
			{
				Name:   "get",
				Inputs: []ir.NamedField{{Name: "user", Type: "string"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{
						{Name: "user", Type: "string"},
						{Name: "name", Type: "string"},
					}},
					{Tag: "notfound", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
			{
				Name:   "delete",
				Inputs: []ir.NamedField{{Name: "user", Type: "string"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "user", Type: "string"}}},
					{Tag: "notfound", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
		},
		Relations: []string{"byName", "all"},
	}

	transport := directory.NewLocal(spec).
		Action("register", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			user, _ := input["user"].(ir.String)
			name, _ := input["name"].(ir.String)
			if user == "" || name == "" {
				return "invalid", ir.Object{"message": ir.String("user and name are required")}, nil
			}

			_, found, err := store.Get(ctx, userRelation, string(user))
			if err != nil {
				return "", nil, err
			}
			if found {
				return "exists", ir.Object{"message": ir.String("user already registered")}, nil
			}

			err = store.Put(ctx, userRelation, string(user), ir.Object{
				"user": user,
				"name": name,
			})
			if err != nil {
				return "", nil, err
			}
			return "ok", ir.Object{"user": user}, nil
		}).
		Action("get", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			user, _ := input["user"].(ir.String)
			record, found, err := store.Get(ctx, userRelation, string(user))
			if err != nil {
				return "", nil, err
			}
			if !found {
				return "notfound", ir.Object{"message": ir.String("user not found")}, nil
			}
			return "ok", record, nil
		}).
		Action("delete", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			user, _ := input["user"].(ir.String)
			_, found, err := store.Get(ctx, userRelation, string(user))
			if err != nil {
				return "", nil, err
			}
			if !found {
				return "notfound", ir.Object{"message": ir.String("user not found")}, nil
			}
			if err := store.Delete(ctx, userRelation, string(user)); err != nil {
				return "", nil, err
			}
			return "ok", ir.Object{"user": user}, nil
		}).
		Relation("byName", func(ctx context.Context, args ir.Object) ([]ir.Object, error) {
			return store.Find(ctx, userRelation, ir.Object{"name": args["name"]})
		}).
		Relation("all", func(ctx context.Context, _ ir.Object) ([]ir.Object, error) {
			return store.Find(ctx, userRelation, nil)
		})
	return spec, transport
}
