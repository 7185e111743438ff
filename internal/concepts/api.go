package concepts

import (
	"context"

	"github.com/weftworks/weft/internal/directory"
	"github.com/weftworks/weft/internal/ir"
)

// API is the boundary concept. request marks the entry of an external
// request into a flow; respond marks the exit. Both are pure echoes:
// the interesting part is that syncs can observe them.
func API() (ir.ConceptSpec, *directory.Local) {
	spec := ir.ConceptSpec{
		URI:     "API",
		Purpose: "carry requests into flows and responses out of them",
		Actions: []ir.ActionSig{
			{
				Name: "request",
				Inputs: []ir.NamedField{
					{Name: "method", Type: "string"},
					{Name: "path", Type: "string"},
					{Name: "body", Type: "object"},
				},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{
						{Name: "method", Type: "string"},
						{Name: "path", Type: "string"},
						{Name: "body", Type: "object"},
					}},
				},
			},
			{
				Name: "respond",
				Inputs: []ir.NamedField{
					{Name: "body", Type: "object"},
				},
				Variants: []ir.VariantSig{
					{Tag: "ok", Fields: []ir.NamedField{
						{Name: "body", Type: "object"},
					}},
				},
			},
		},
	}

	echo := func(_ context.Context, input ir.Object) (string, ir.Object, error) {
		return "ok", input, nil
	}
	transport := directory.NewLocal(spec).
		Action("request", echo).
		Action("respond", echo)
	return spec, transport
}
