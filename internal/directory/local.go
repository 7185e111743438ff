package directory

import (
	"context"
	"fmt"

	"github.com/weftworks/weft/internal/ir"
)

// ActionFunc handles one action. It returns the variant tag and output
// fields; a non-nil error is a transport-level failure, not a business
// outcome (business failures are variants like "notFound").
type ActionFunc func(ctx context.Context, input ir.Object) (string, ir.Object, error)

// QueryFunc evaluates one query relation.
type QueryFunc func(ctx context.Context, args ir.Object) ([]ir.Object, error)

// Local is an in-process transport backed by handler tables. Concepts
// register an ActionFunc per declared action and a QueryFunc per
// declared relation.
type Local struct {
	spec    ir.ConceptSpec
	actions map[string]ActionFunc
	queries map[string]QueryFunc
}

// NewLocal creates a local transport for the given spec. Handlers are
// attached with Action and Relation before the concept is registered.
func NewLocal(spec ir.ConceptSpec) *Local {
	return &Local{
		spec:    spec,
		actions: make(map[string]ActionFunc),
		queries: make(map[string]QueryFunc),
	}
}

// Action attaches a handler for the named action. Returns the transport
// for chaining.
func (l *Local) Action(name string, fn ActionFunc) *Local {
	l.actions[name] = fn
	return l
}

// Relation attaches a query handler for the named relation.
func (l *Local) Relation(name string, fn QueryFunc) *Local {
	l.queries[name] = fn
	return l
}

// Spec returns the concept spec this transport serves.
func (l *Local) Spec() ir.ConceptSpec {
	return l.spec
}

// Invoke runs the handler for one action. An action with no handler
// produces the unknownAction variant rather than a transport error, so
// syncs can observe and react to it like any other outcome. Handler
// panics are contained and surface as transport errors.
func (l *Local) Invoke(ctx context.Context, action string, input ir.Object) (variant string, output ir.Object, err error) {
	fn, ok := l.actions[action]
	if !ok {
		return ir.VariantUnknownAction, ir.Object{
			"concept": ir.String(l.spec.URI),
			"action":  ir.String(action),
		}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			variant = ""
			output = nil
			err = fmt.Errorf("concept %s.%s panicked: %v", l.spec.URI, action, r)
		}
	}()

	variant, output, err = fn(ctx, input)
	if err != nil {
		return "", nil, err
	}
	if output == nil {
		output = ir.Object{}
	}
	return variant, output, nil
}

// Query evaluates a relation handler. A relation with no handler
// contributes no rows; errors are reserved for transport failures, so
// an unsupported relation never faults the querying flow.
func (l *Local) Query(ctx context.Context, relation string, args ir.Object) (rows []ir.Object, err error) {
	fn, ok := l.queries[relation]
	if !ok {
		return []ir.Object{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			rows = nil
			err = fmt.Errorf("concept %s relation %q panicked: %v", l.spec.URI, relation, r)
		}
	}()

	return fn(ctx, args)
}

// ActionNames returns the actions with an attached handler, in no
// particular order.
func (l *Local) ActionNames() []string {
	names := make([]string, 0, len(l.actions))
	for name := range l.actions {
		names = append(names, name)
	}
	return names
}

// Health reports an in-process concept as always available with zero
// probe latency.
func (l *Local) Health(ctx context.Context) Health {
	return Health{Available: true}
}
