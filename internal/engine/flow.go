package engine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/weftworks/weft/internal/ir"
)

// FlowState is the lifecycle of one flow.
type FlowState string

const (
	// FlowSeeded: created, seed invocation queued, not yet running.
	FlowSeeded FlowState = "seeded"
	// FlowDraining: the run loop is dispatching and evaluating.
	FlowDraining FlowState = "draining"
	// FlowSettled: queue empty or fault; nothing more will happen.
	FlowSettled FlowState = "settled"
)

// queueItem is one pending invocation with its scheduling class.
type queueItem struct {
	inv   ir.Invocation
	eager bool
}

// Flow is one causal chain of invocations and completions under a
// single token. All mutation happens on the flow's run goroutine;
// the mutex exists for cross-goroutine reads (Response, State) and the
// two await channels.
type Flow struct {
	Token string

	mu      sync.Mutex
	state   FlowState
	queue   []queueItem
	history []ir.Completion
	fired   map[string]bool
	firings int

	expectResponse bool
	response       *ir.Completion
	fault          *FaultError

	ready     chan struct{} // outcome known (response, fault, or drained)
	done      chan struct{} // settled
	readyOnce sync.Once
	doneOnce  sync.Once
}

func newFlow(token string, expectResponse bool) *Flow {
	return &Flow{
		Token:          token,
		state:          FlowSeeded,
		fired:          make(map[string]bool),
		expectResponse: expectResponse,
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// push appends an invocation. Eager invocations are inserted after the
// last pending eager item but ahead of all eventual work; eventual
// invocations go to the back. FIFO order holds within each class.
func (f *Flow) push(inv ir.Invocation, eager bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item := queueItem{inv: inv, eager: eager}
	if !eager {
		f.queue = append(f.queue, item)
		return
	}
	at := len(f.queue)
	for i, q := range f.queue {
		if !q.eager {
			at = i
			break
		}
	}
	f.queue = slices.Insert(f.queue, at, item)
}

func (f *Flow) pop() (queueItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return queueItem{}, false
	}
	item := f.queue[0]
	f.queue = f.queue[1:]
	return item, true
}

func (f *Flow) hasEager() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, q := range f.queue {
		if q.eager {
			return true
		}
	}
	return false
}

// State returns the flow's lifecycle state.
func (f *Flow) State() FlowState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Outcome returns the response completion and fault, either of which
// may be nil. Meaningful once Ready has been signalled.
func (f *Flow) Outcome() (*ir.Completion, *FaultError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.response, f.fault
}

// Completions returns a copy of the flow's completion history so far.
func (f *Flow) Completions() []ir.Completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.history)
}

// AwaitReady blocks until the flow's outcome is known: a response is
// available with no eager work pending, a fault settled the flow, or
// the flow drained without responding.
func (f *Flow) AwaitReady(ctx context.Context) error {
	select {
	case <-f.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AwaitSettled blocks until the flow has fully settled, including
// eventual work that continued after the response.
func (f *Flow) AwaitSettled(ctx context.Context) error {
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *Flow) signalReady() {
	f.readyOnce.Do(func() { close(f.ready) })
}

func (f *Flow) setState(s FlowState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// NewFlowToken mints a fresh flow token.
func (e *Engine) NewFlowToken() string {
	return e.tokens.Generate()
}

// StartFlow seeds a flow with one invocation and starts draining it on
// its own goroutine. When expectResponse is set, a drained flow with
// no respond completion faults with NO_RESPONSE.
func (e *Engine) StartFlow(ctx context.Context, concept, action string, input ir.Object, expectResponse bool) (*Flow, error) {
	if input == nil {
		input = ir.Object{}
	}
	token := e.tokens.Generate()
	f := newFlow(token, expectResponse)

	seq := e.clock.Next()
	id, err := ir.InvocationID(token, concept, action, input, seq)
	if err != nil {
		return nil, fmt.Errorf("seed flow: %w", err)
	}
	inv := ir.Invocation{
		ID:      id,
		Concept: concept,
		Action:  action,
		Input:   input,
		Flow:    token,
		Seq:     seq,
		At:      time.Now().UTC(),
	}
	f.push(inv, true)
	e.log.Append(Event{
		Kind:       EventInvocation,
		Flow:       token,
		Seq:        seq,
		Invocation: &inv,
	})
	e.logger.Info("flow started",
		"flow", token,
		"concept", concept,
		"action", action)

	go e.run(ctx, f)
	return f, nil
}

// run drains one flow to settlement. Once the outcome is known the
// loop detaches from the caller's context so eventual work survives
// the request returning.
func (e *Engine) run(ctx context.Context, f *Flow) {
	f.setState(FlowDraining)
	defer func() {
		f.setState(FlowSettled)
		e.log.Append(Event{
			Kind: EventSettled,
			Flow: f.Token,
			Seq:  e.clock.Next(),
		})
		f.signalReady()
		f.doneOnce.Do(func() { close(f.done) })
	}()

	detached := false
	for {
		item, ok := f.pop()
		if !ok {
			break
		}

		comp, fault := e.dispatch(ctx, f, item.inv)
		if fault != nil {
			e.recordFault(f, fault)
			return
		}

		f.mu.Lock()
		f.history = append(f.history, comp)
		f.mu.Unlock()
		e.log.Append(Event{
			Kind:       EventCompletion,
			Flow:       f.Token,
			Seq:        comp.Seq,
			Completion: &comp,
		})

		if comp.Concept == e.respondConcept && comp.Action == e.respondAction {
			f.mu.Lock()
			first := f.response == nil
			if first {
				f.response = &comp
			}
			f.mu.Unlock()
			if first {
				e.log.Append(Event{
					Kind:       EventResponse,
					Flow:       f.Token,
					Seq:        e.clock.Next(),
					Completion: &comp,
				})
			}
		}

		if fault := e.evaluate(ctx, f, comp); fault != nil {
			e.recordFault(f, fault)
			return
		}

		if !detached {
			f.mu.Lock()
			responded := f.response != nil
			f.mu.Unlock()
			if responded && !f.hasEager() {
				f.signalReady()
				ctx = context.WithoutCancel(ctx)
				detached = true
			}
		}
	}

	f.mu.Lock()
	drained := f.response == nil && f.fault == nil && f.expectResponse
	f.mu.Unlock()
	if drained {
		e.recordFault(f, &FaultError{
			Code:    FaultNoResponse,
			Message: "flow drained without a respond completion",
			Flow:    f.Token,
		})
	}
}

func (e *Engine) recordFault(f *Flow, fault *FaultError) {
	f.mu.Lock()
	f.fault = fault
	f.mu.Unlock()
	e.log.Append(Event{
		Kind:         EventFault,
		Flow:         f.Token,
		Seq:          e.clock.Next(),
		Sync:         fault.Sync,
		FaultCode:    string(fault.Code),
		FaultMessage: fault.Message,
	})
	e.logger.Error("flow faulted",
		"flow", f.Token,
		"code", string(fault.Code),
		"message", fault.Message)
}
