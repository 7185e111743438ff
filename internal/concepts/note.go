package concepts

import (
	"context"

	"github.com/weftworks/weft/internal/directory"
	"github.com/weftworks/weft/internal/ir"
	"github.com/weftworks/weft/internal/storage"
)

const noteRelation = "note"

// Note keeps owned note records. The byOwner relation is what cascade
// rules query when an owner goes away.
func Note(store storage.Store) (ir.ConceptSpec, *directory.Local) {
	spec := ir.ConceptSpec{
		URI:     "Note",
		Purpose: "own per-user notes",
		Actions: []ir.ActionSig{
			{
				Name: "create",
				Inputs: []ir.NamedField{
					{Name: "note", Type: "string"},
					{Name: "owner", Type: "string"},
					{Name: "title", Type: "string"},
				},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "note", Type: "string"}}},
					{Tag: "invalid", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
			{
				Name:   "get",
				Inputs: []ir.NamedField{{Name: "note", Type: "string"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{
						{Name: "note", Type: "string"},
						{Name: "owner", Type: "string"},
						{Name: "title", Type: "string"},
					}},
					{Tag: "notfound", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
			{
				Name:   "delete",
				Inputs: []ir.NamedField{{Name: "note", Type: "string"}},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{{Name: "note", Type: "string"}}},
					{Tag: "notfound", Fields: []ir.NamedField{{Name: "message", Type: "string"}}},
				},
			},
		},
		Relations: []string{"byOwner"},
	}

	transport := directory.NewLocal(spec).
		Action("create", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			note, _ := input["note"].(ir.String)
			owner, _ := input["owner"].(ir.String)
			if note == "" || owner == "" {
				return "invalid", ir.Object{"message": ir.String("note and owner are required")}, nil
			}
			title, _ := input["title"].(ir.String)

			err := store.Put(ctx, noteRelation, string(note), ir.Object{
				"note":  note,
				"owner": owner,
				"title": title,
			})
			if err != nil {
				return "", nil, err
			}
			return "ok", ir.Object{"note": note}, nil
		}).
		Action("get", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			note, _ := input["note"].(ir.String)
			record, found, err := store.Get(ctx, noteRelation, string(note))
			if err != nil {
				return "", nil, err
			}
			if !found {
				return "notfound", ir.Object{"message": ir.String("note not found")}, nil
			}
			return "ok", record, nil
		}).
		Action("delete", func(ctx context.Context, input ir.Object) (string, ir.Object, error) {
			note, _ := input["note"].(ir.String)
			_, found, err := store.Get(ctx, noteRelation, string(note))
			if err != nil {
				return "", nil, err
			}
			if !found {
				return "notfound", ir.Object{"message": ir.String("note not found")}, nil
			}
			if err := store.Delete(ctx, noteRelation, string(note)); err != nil {
				return "", nil, err
			}
			return "ok", ir.Object{"note": note}, nil
		}).
		Relation("byOwner", func(ctx context.Context, args ir.Object) ([]ir.Object, error) {
			return store.Find(ctx, noteRelation, ir.Object{"owner": args["owner"]})
		})
	return spec, transport
}
