package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/weftworks/weft/internal/ir"
)

// Transport delivers invocations and queries to one concept, local or
// remote. Implementations must be safe for concurrent use.
type Transport interface {
	// Invoke runs one action and returns its tagged outcome. A non-nil
	// error means the transport itself failed (process gone, wire
	// error); the caller converts that into a synthetic completion.
	Invoke(ctx context.Context, action string, input ir.Object) (variant string, output ir.Object, err error)

	// Query evaluates a declared query relation and returns zero or
	// more rows. A concept that does not support the relation returns
	// empty rows and a nil error; errors are for genuine transport
	// failures.
	Query(ctx context.Context, relation string, args ir.Object) ([]ir.Object, error)

	// Health reports whether the concept is reachable and how long the
	// probe took.
	Health(ctx context.Context) Health
}

// Health is one concept's reachability report.
type Health struct {
	Available bool  `json:"available"`
	LatencyMs int64 `json:"latencyMs"`
}

// ErrNotRegistered is wrapped by Resolve when no concept is registered
// under the requested name.
type ErrNotRegistered struct {
	Concept string
}

func (e *ErrNotRegistered) Error() string {
	return fmt.Sprintf("concept %q is not registered", e.Concept)
}

// ErrAlreadyRegistered is returned by Register on a duplicate name.
type ErrAlreadyRegistered struct {
	Concept string
}

func (e *ErrAlreadyRegistered) Error() string {
	return fmt.Sprintf("concept %q is already registered", e.Concept)
}

// handlerTable is implemented by transports that know which actions
// they carry handlers for. Register uses it to reject a spec/handler
// mismatch eagerly instead of at call time.
type handlerTable interface {
	ActionNames() []string
}

type registration struct {
	spec      ir.ConceptSpec
	transport Transport
}

// Directory is the live registry of concepts. Registration and
// resolution are concurrency-safe; flows resolve at dispatch time, so
// unregistering a concept mid-flow turns its remaining invocations
// into flow faults rather than stopping the kernel.
type Directory struct {
	mu     sync.RWMutex
	byName map[string]registration
	logger *slog.Logger
}

// New creates an empty directory. A nil logger defaults to slog.Default.
func New(logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		byName: make(map[string]registration),
		logger: logger,
	}
}

// Register adds a concept under its spec URI. Duplicate names are
// rejected; use Unregister first to replace a concept. When the
// transport exposes its handler table, every declared action must have
// a handler and every handler must be a declared action.
func (d *Directory) Register(spec ir.ConceptSpec, t Transport) error {
	if spec.URI == "" {
		return fmt.Errorf("concept spec has empty URI")
	}
	if t == nil {
		return fmt.Errorf("nil transport for concept %q", spec.URI)
	}
	if tbl, ok := t.(handlerTable); ok {
		if err := checkHandlerCoverage(spec, tbl.ActionNames()); err != nil {
			return err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byName[spec.URI]; exists {
		return &ErrAlreadyRegistered{Concept: spec.URI}
	}
	d.byName[spec.URI] = registration{spec: spec, transport: t}

	d.logger.Info("concept registered",
		"concept", spec.URI,
		"actions", len(spec.Actions),
		"relations", len(spec.Relations))
	return nil
}

// Unregister removes a concept. Removing an unknown name is a no-op:
// the caller's goal (name not resolvable) already holds.
func (d *Directory) Unregister(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byName[name]; exists {
		delete(d.byName, name)
		d.logger.Info("concept unregistered", "concept", name)
	}
}

// Resolve returns the transport for a concept name.
func (d *Directory) Resolve(name string) (Transport, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reg, ok := d.byName[name]
	if !ok {
		return nil, &ErrNotRegistered{Concept: name}
	}
	return reg.transport, nil
}

// Spec returns the registered spec for a concept name.
func (d *Directory) Spec(name string) (ir.ConceptSpec, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reg, ok := d.byName[name]
	return reg.spec, ok
}

// HasAction reports whether a registered concept declares the action.
func (d *Directory) HasAction(concept, action string) bool {
	spec, ok := d.Spec(concept)
	if !ok {
		return false
	}
	_, ok = spec.Action(action)
	return ok
}

// HasRelation reports whether a registered concept declares the query
// relation.
func (d *Directory) HasRelation(concept, relation string) bool {
	spec, ok := d.Spec(concept)
	if !ok {
		return false
	}
	return spec.HasRelation(relation)
}

// CheckHealth probes every registered concept. The map is keyed by
// concept name; transports report their own latency.
func (d *Directory) CheckHealth(ctx context.Context) map[string]Health {
	d.mu.RLock()
	transports := make(map[string]Transport, len(d.byName))
	for name, reg := range d.byName {
		transports[name] = reg.transport
	}
	d.mu.RUnlock()

	out := make(map[string]Health, len(transports))
	for name, tr := range transports {
		out[name] = tr.Health(ctx)
	}
	return out
}

// checkHandlerCoverage verifies a transport's handler table against the
// declared actions, both directions.
func checkHandlerCoverage(spec ir.ConceptSpec, attached []string) error {
	have := make(map[string]bool, len(attached))
	for _, name := range attached {
		have[name] = true
	}
	for _, sig := range spec.Actions {
		if !have[sig.Name] {
			return fmt.Errorf("concept %q: declared action %q has no handler", spec.URI, sig.Name)
		}
	}
	sort.Strings(attached)
	for _, name := range attached {
		if _, ok := spec.Action(name); !ok {
			return fmt.Errorf("concept %q: handler %q is not a declared action", spec.URI, name)
		}
	}
	return nil
}

// Names returns the registered concept names, unordered.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}
	return names
}
