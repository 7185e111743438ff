package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/weftworks/weft/internal/ir"
)

// ErrDuplicateSync is wrapped by Register on a duplicate rule name.
var ErrDuplicateSync = errors.New("sync already registered")

// RegistrationError carries all validation findings for one rejected
// rule.
type RegistrationError struct {
	Sync     string
	Findings []ValidationError
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("sync %q failed validation with %d finding(s): %v", e.Sync, len(e.Findings), e.Findings[0])
}

// Catalog is the registry of validated sync rules. Rules are kept in
// declaration order; evaluation order never changes after registration.
type Catalog struct {
	mu        sync.RWMutex
	byName    map[string]ir.CompiledSync
	order     []string
	triggered map[string][]string // "Concept.action" -> sync names, declaration order
	schemas   SchemaSource
	logger    *slog.Logger
}

// New creates an empty catalog validating against the given schema
// source. A nil logger defaults to slog.Default.
func New(schemas SchemaSource, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		byName:    make(map[string]ir.CompiledSync),
		triggered: make(map[string][]string),
		schemas:   schemas,
		logger:    logger,
	}
}

// Register validates and adds one rule. Rejected rules leave the
// catalog unchanged. Urgency is normalized (empty defaults to eager)
// before storage, so readers never see the empty value.
func (c *Catalog) Register(s ir.CompiledSync) error {
	if findings := Validate(s, c.schemas); len(findings) > 0 {
		return &RegistrationError{Sync: s.Name, Findings: findings}
	}
	s.Urgency = s.Urgency.Normalize()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byName[s.Name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateSync, s.Name)
	}

	c.byName[s.Name] = s
	c.order = append(c.order, s.Name)
	for _, when := range s.When {
		key := when.TriggerKey()
		if !slices.Contains(c.triggered[key], s.Name) {
			c.triggered[key] = append(c.triggered[key], s.Name)
		}
	}

	c.logger.Info("sync registered",
		"sync", s.Name,
		"urgency", string(s.Urgency),
		"when", len(s.When),
		"then", len(s.Then))
	return nil
}

// TriggeredBy returns the rules with a when pattern on the given
// concept and action, in declaration order.
func (c *Catalog) TriggeredBy(concept, action string) []ir.CompiledSync {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := c.triggered[concept+"."+action]
	out := make([]ir.CompiledSync, 0, len(names))
	for _, name := range names {
		out = append(out, c.byName[name])
	}
	return out
}

// Get returns one rule by name.
func (c *Catalog) Get(name string) (ir.CompiledSync, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.byName[name]
	return s, ok
}

// All returns every rule in declaration order.
func (c *Catalog) All() []ir.CompiledSync {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ir.CompiledSync, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.byName[name])
	}
	return out
}

// Len returns the number of registered rules.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.order)
}
