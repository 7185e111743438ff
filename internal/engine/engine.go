package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftworks/weft/internal/catalog"
	"github.com/weftworks/weft/internal/directory"
	"github.com/weftworks/weft/internal/ir"
)

// DefaultBudget is the default maximum number of sync firings per
// flow. A rule set that needs more is almost always cycling.
const DefaultBudget = 1000

// DefaultInvokeTimeout bounds one concept invocation. A concept that
// blows the deadline produces a timeout completion; the flow continues.
const DefaultInvokeTimeout = 5 * time.Second

// Default respond action. A completion of this concept/action carries
// the response body for a request-driven flow.
const (
	DefaultRespondConcept = "API"
	DefaultRespondAction  = "respond"
)

// Engine evaluates sync rules over flows. It owns the logical clock,
// the flow log and the live flow table; concepts and rules live in the
// directory and catalog it was built with.
type Engine struct {
	dir    *directory.Directory
	cat    *catalog.Catalog
	log    *FlowLog
	clock  *Clock
	tokens TokenGenerator
	logger *slog.Logger

	budget         int
	invokeTimeout  time.Duration
	respondConcept string
	respondAction  string
}

// Option configures an Engine.
type Option func(*Engine)

// WithBudget sets the maximum sync firings per flow.
func WithBudget(n int) Option {
	return func(e *Engine) { e.budget = n }
}

// WithInvokeTimeout sets the per-invocation deadline.
func WithInvokeTimeout(d time.Duration) Option {
	return func(e *Engine) { e.invokeTimeout = d }
}

// WithTokenGenerator replaces the flow token source. Tests install a
// FixedGenerator for reproducible tokens.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithRespondAction changes which completion carries a flow's response.
func WithRespondAction(concept, action string) Option {
	return func(e *Engine) {
		e.respondConcept = concept
		e.respondAction = action
	}
}

// New creates an engine over the given directory and catalog. A nil
// logger defaults to slog.Default.
func New(dir *directory.Directory, cat *catalog.Catalog, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		dir:            dir,
		cat:            cat,
		log:            NewFlowLog(),
		clock:          NewClock(),
		tokens:         UUIDv7Generator{},
		logger:         logger,
		budget:         DefaultBudget,
		invokeTimeout:  DefaultInvokeTimeout,
		respondConcept: DefaultRespondConcept,
		respondAction:  DefaultRespondAction,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Log returns the engine's flow log.
func (e *Engine) Log() *FlowLog {
	return e.log
}

// dispatch runs one invocation and produces its completion. Transport
// failures and deadline overruns become synthetic completions (variant
// "error" / "timeout") so rules can observe them; only an unresolvable
// concept is a flow fault.
func (e *Engine) dispatch(ctx context.Context, f *Flow, inv ir.Invocation) (ir.Completion, *FaultError) {
	transport, err := e.dir.Resolve(inv.Concept)
	if err != nil {
		return ir.Completion{}, &FaultError{
			Code:    FaultUnresolvableConcept,
			Message: err.Error(),
			Flow:    f.Token,
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.invokeTimeout)
	variant, output, invErr := transport.Invoke(callCtx, inv.Action, inv.Input)
	cancel()

	if invErr != nil {
		if errors.Is(invErr, context.DeadlineExceeded) {
			variant = ir.VariantTimeout
			output = ir.Object{
				"message": ir.String(fmt.Sprintf("%s.%s exceeded %s", inv.Concept, inv.Action, e.invokeTimeout)),
			}
		} else {
			variant = ir.VariantError
			output = ir.Object{"message": ir.String(invErr.Error())}
		}
		e.logger.Warn("invocation failed",
			"flow", f.Token,
			"concept", inv.Concept,
			"action", inv.Action,
			"variant", variant,
			"error", invErr)
	}

	return ir.Completion{
		ID:      inv.ID,
		Concept: inv.Concept,
		Action:  inv.Action,
		Input:   inv.Input,
		Variant: variant,
		Output:  output,
		Flow:    f.Token,
		Seq:     e.clock.Next(),
		At:      time.Now().UTC(),
	}, nil
}

// evaluate matches one new completion against the catalog and
// schedules the invocations of every firing. Called with the
// completion already appended to the flow's history.
func (e *Engine) evaluate(ctx context.Context, f *Flow, comp ir.Completion) *FaultError {
	for _, s := range e.cat.TriggeredBy(comp.Concept, comp.Action) {
		for _, cand := range joinCandidates(s, f.history, comp.ID) {
			key := ir.FiringKey(s.Name, cand.used)
			if f.fired[key] {
				continue
			}
			f.fired[key] = true

			f.firings++
			if f.firings > e.budget {
				return &FaultError{
					Code:    FaultBudgetExceeded,
					Message: fmt.Sprintf("flow exceeded %d sync firings", e.budget),
					Flow:    f.Token,
					Sync:    s.Name,
				}
			}

			e.log.Append(Event{
				Kind:    EventFiring,
				Flow:    f.Token,
				Seq:     e.clock.Next(),
				Sync:    s.Name,
				Binding: cand.env,
			})
			e.logger.Debug("sync fired",
				"flow", f.Token,
				"sync", s.Name,
				"completions", len(cand.used))

			envs, fault := e.evalWhere(ctx, s, f.Token, cand.env)
			if fault != nil {
				return fault
			}

			for _, env := range envs {
				if fault := e.scheduleThen(f, s, env); fault != nil {
					return fault
				}
			}
		}
	}
	return nil
}

// scheduleThen resolves a rule's then actions under one environment
// and enqueues the invocations. Eager rules go ahead of pending
// eventual work; eventual rules go to the back.
func (e *Engine) scheduleThen(f *Flow, s ir.CompiledSync, env ir.Object) *FaultError {
	for i, then := range s.Then {
		input := make(ir.Object, len(then.Fields))
		for field, term := range then.Fields {
			val, err := resolveTerm(term, env)
			if err != nil {
				return &FaultError{
					Code:    FaultWhereFailed,
					Message: fmt.Sprintf("then[%d].%s: %v", i, field, err),
					Flow:    f.Token,
					Sync:    s.Name,
				}
			}
			input[field] = val
		}

		seq := e.clock.Next()
		id, err := ir.InvocationID(f.Token, then.Concept, then.Action, input, seq)
		if err != nil {
			return &FaultError{
				Code:    FaultWhereFailed,
				Message: fmt.Sprintf("then[%d]: %v", i, err),
				Flow:    f.Token,
				Sync:    s.Name,
			}
		}

		inv := ir.Invocation{
			ID:      id,
			Concept: then.Concept,
			Action:  then.Action,
			Input:   input,
			Flow:    f.Token,
			Seq:     seq,
			At:      time.Now().UTC(),
		}
		f.push(inv, s.Urgency == ir.UrgencyEager)
		e.log.Append(Event{
			Kind:       EventInvocation,
			Flow:       f.Token,
			Seq:        seq,
			Invocation: &inv,
			Sync:       s.Name,
		})
	}
	return nil
}
