package kernel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/weftworks/weft/internal/catalog"
	"github.com/weftworks/weft/internal/directory"
	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/ir"
)

// Default request entry action. HandleRequest seeds every flow with it.
const (
	DefaultRequestConcept = "API"
	DefaultRequestAction  = "request"
)

// Response is the outcome of one request-driven flow.
type Response struct {
	Flow  string    `json:"flow"`
	Body  ir.Object `json:"body,omitempty"`
	Error string    `json:"error,omitempty"`
	Code  string    `json:"code,omitempty"`
}

// Failed reports whether the flow faulted instead of responding.
func (r *Response) Failed() bool {
	return r.Code != ""
}

// Kernel wires the directory, catalog and engine together.
type Kernel struct {
	dir    *directory.Directory
	cat    *catalog.Catalog
	eng    *engine.Engine
	logger *slog.Logger

	requestConcept string
	requestAction  string

	mu    sync.Mutex
	flows map[string]*engine.Flow
}

// Option configures a Kernel.
type Option func(*config)

type config struct {
	logger         *slog.Logger
	requestConcept string
	requestAction  string
	engineOpts     []engine.Option
}

// WithLogger sets the structured logger shared by all components.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithRequestAction changes the action HandleRequest seeds flows with.
func WithRequestAction(concept, action string) Option {
	return func(c *config) { c.requestConcept = concept; c.requestAction = action }
}

// WithRespondAction changes which completion carries the response.
func WithRespondAction(concept, action string) Option {
	return func(c *config) {
		c.engineOpts = append(c.engineOpts, engine.WithRespondAction(concept, action))
	}
}

// WithBudget sets the per-flow sync firing budget.
func WithBudget(n int) Option {
	return func(c *config) { c.engineOpts = append(c.engineOpts, engine.WithBudget(n)) }
}

// WithInvokeTimeout sets the per-invocation deadline.
func WithInvokeTimeout(d time.Duration) Option {
	return func(c *config) { c.engineOpts = append(c.engineOpts, engine.WithInvokeTimeout(d)) }
}

// WithTokenGenerator replaces the flow token source.
func WithTokenGenerator(g engine.TokenGenerator) Option {
	return func(c *config) { c.engineOpts = append(c.engineOpts, engine.WithTokenGenerator(g)) }
}

// New creates an empty kernel. Concepts and syncs are registered
// afterwards; registration order only matters for sync evaluation
// order.
func New(opts ...Option) *Kernel {
	cfg := &config{
		logger:         slog.Default(),
		requestConcept: DefaultRequestConcept,
		requestAction:  DefaultRequestAction,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dir := directory.New(cfg.logger)
	cat := catalog.New(dir, cfg.logger)
	eng := engine.New(dir, cat, cfg.logger, cfg.engineOpts...)

	return &Kernel{
		dir:            dir,
		cat:            cat,
		eng:            eng,
		logger:         cfg.logger,
		requestConcept: cfg.requestConcept,
		requestAction:  cfg.requestAction,
		flows:          make(map[string]*engine.Flow),
	}
}

// RegisterConcept adds a concept to the directory.
func (k *Kernel) RegisterConcept(spec ir.ConceptSpec, t directory.Transport) error {
	return k.dir.Register(spec, t)
}

// UnregisterConcept removes a concept. In-progress flows that still
// need it fault at their next dispatch.
func (k *Kernel) UnregisterConcept(name string) {
	k.dir.Unregister(name)
}

// RegisterSync validates and adds a sync rule.
func (k *Kernel) RegisterSync(s ir.CompiledSync) error {
	return k.cat.Register(s)
}

// Directory exposes the concept directory for read access.
func (k *Kernel) Directory() *directory.Directory {
	return k.dir
}

// Health probes every registered concept through its transport and
// reports availability per concept name.
func (k *Kernel) Health(ctx context.Context) map[string]directory.Health {
	return k.dir.CheckHealth(ctx)
}

// Syncs returns the registered rules in declaration order.
func (k *Kernel) Syncs() []ir.CompiledSync {
	return k.cat.All()
}

// FlowLog returns the kernel's flow log.
func (k *Kernel) FlowLog() *engine.FlowLog {
	return k.eng.Log()
}

// HandleRequest runs one request-driven flow: it seeds the request
// action with the given input, waits until the response is ready (all
// eager work done) and assembles the Response. Eventual work keeps
// draining in the background; use AwaitSettled to join it.
//
// Flow faults come back as a Response with Code set, not as an error;
// the error return is for kernel-level problems only.
func (k *Kernel) HandleRequest(ctx context.Context, input ir.Object) (*Response, error) {
	flow, err := k.eng.StartFlow(ctx, k.requestConcept, k.requestAction, input, true)
	if err != nil {
		return nil, fmt.Errorf("handle request: %w", err)
	}
	k.track(flow)

	if err := flow.AwaitReady(ctx); err != nil {
		return nil, fmt.Errorf("handle request: %w", err)
	}

	response, fault := flow.Outcome()
	if fault != nil {
		return &Response{
			Flow:  flow.Token,
			Error: fault.Message,
			Code:  string(fault.Code),
		}, nil
	}
	if response == nil {
		// Ready without response or fault cannot happen for a
		// request-driven flow; guard anyway.
		return &Response{
			Flow:  flow.Token,
			Error: "flow produced no response",
			Code:  string(engine.FaultNoResponse),
		}, nil
	}
	return &Response{Flow: flow.Token, Body: response.Output}, nil
}

// InvokeConcept runs one action inside a fresh flow and returns its
// completion. Syncs still observe the completion and their effects run
// to settlement before this returns, but no respond completion is
// required.
func (k *Kernel) InvokeConcept(ctx context.Context, concept, action string, input ir.Object) (ir.Completion, error) {
	flow, err := k.eng.StartFlow(ctx, concept, action, input, false)
	if err != nil {
		return ir.Completion{}, fmt.Errorf("invoke %s.%s: %w", concept, action, err)
	}
	k.track(flow)

	if err := flow.AwaitSettled(ctx); err != nil {
		return ir.Completion{}, fmt.Errorf("invoke %s.%s: %w", concept, action, err)
	}

	if _, fault := flow.Outcome(); fault != nil {
		return ir.Completion{}, fault
	}
	comps := flow.Completions()
	if len(comps) == 0 {
		return ir.Completion{}, fmt.Errorf("invoke %s.%s: flow %s recorded no completion", concept, action, flow.Token)
	}
	return comps[0], nil
}

// AwaitSettled blocks until the named flow has fully settled,
// including eventual work that outlived its response.
func (k *Kernel) AwaitSettled(ctx context.Context, token string) error {
	k.mu.Lock()
	flow, ok := k.flows[token]
	k.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown flow %q", token)
	}
	return flow.AwaitSettled(ctx)
}

func (k *Kernel) track(f *engine.Flow) {
	k.mu.Lock()
	k.flows[f.Token] = f
	k.mu.Unlock()
}
