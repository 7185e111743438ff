package engine

import (
	"slices"
	"sync"

	"github.com/weftworks/weft/internal/ir"
)

// EventKind distinguishes flow log entries.
type EventKind string

const (
	EventInvocation EventKind = "invocation"
	EventCompletion EventKind = "completion"
	EventFiring     EventKind = "firing"
	EventFault      EventKind = "fault"
	EventResponse   EventKind = "response"
	EventSettled    EventKind = "settled"
)

// Event is one flow log entry. Exactly the fields for its kind are
// populated.
type Event struct {
	Kind EventKind `json:"kind"`
	Flow string    `json:"flow"`
	Seq  int64     `json:"seq"`

	Invocation *ir.Invocation `json:"invocation,omitempty"`
	Completion *ir.Completion `json:"completion,omitempty"`

	// Firing fields.
	Sync    string    `json:"sync,omitempty"`
	Binding ir.Object `json:"binding,omitempty"`

	// Fault fields.
	FaultCode    string `json:"faultCode,omitempty"`
	FaultMessage string `json:"faultMessage,omitempty"`
}

// FlowLog is the append-only record of everything every flow did.
// Entries within one flow are in logical clock order because a flow is
// drained by a single goroutine.
type FlowLog struct {
	mu     sync.RWMutex
	byFlow map[string][]Event
	order  []string // flows in first-seen order
}

// NewFlowLog creates an empty flow log.
func NewFlowLog() *FlowLog {
	return &FlowLog{byFlow: make(map[string][]Event)}
}

// Append records one event.
func (l *FlowLog) Append(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.byFlow[ev.Flow]; !seen {
		l.order = append(l.order, ev.Flow)
	}
	l.byFlow[ev.Flow] = append(l.byFlow[ev.Flow], ev)
}

// Events returns a copy of one flow's entries in append order.
func (l *FlowLog) Events(flow string) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.byFlow[flow])
}

// Flows returns flow tokens in first-seen order.
func (l *FlowLog) Flows() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.order)
}

// Find returns the entries of one flow satisfying the predicate.
func (l *FlowLog) Find(flow string, pred func(Event) bool) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Event
	for _, ev := range l.byFlow[flow] {
		if pred(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Completions returns every completion recorded for a flow, in order.
func (l *FlowLog) Completions(flow string) []ir.Completion {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []ir.Completion
	for _, ev := range l.byFlow[flow] {
		if ev.Kind == EventCompletion && ev.Completion != nil {
			out = append(out, *ev.Completion)
		}
	}
	return out
}
