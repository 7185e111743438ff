package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/weftworks/weft/internal/concepts"
	"github.com/weftworks/weft/internal/engine"
	"github.com/weftworks/weft/internal/ir"
	"github.com/weftworks/weft/internal/kernel"
	"github.com/weftworks/weft/internal/rulefile"
	"github.com/weftworks/weft/internal/storage"
)

// TraceEvent is one flow log entry flattened for assertions and golden
// comparison. Content-addressed IDs and wall-clock timestamps are
// dropped so traces stay stable across runs.
type TraceEvent struct {
	Kind    string
	Flow    string
	Seq     int64
	Action  string // "Concept.action"
	Variant string
	Input   ir.Object
	Output  ir.Object

	Sync    string
	Binding ir.Object

	FaultCode    string
	FaultMessage string
}

// Result is the outcome of one scenario run.
type Result struct {
	Pass   bool
	Errors []string
	Trace  []TraceEvent
}

func (r *Result) fail(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes one scenario against a fresh kernel and in-memory
// store. The returned error covers infrastructure failures only;
// expectation and assertion mismatches land in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	store := storage.NewMemory()

	flows := len(scenario.Setup) + len(scenario.Steps)
	if scenario.Request != nil {
		flows++
	}
	tokens := make([]string, flows)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("flow-%03d", i+1)
	}

	k := kernel.New(
		kernel.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		kernel.WithTokenGenerator(engine.NewFixedGenerator(tokens...)),
	)
	if err := concepts.RegisterDefaults(k, store); err != nil {
		return nil, err
	}

	for _, path := range scenario.Rules {
		syncs, err := rulefile.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load rules %s: %w", path, err)
		}
		for _, s := range syncs {
			if err := k.RegisterSync(s); err != nil {
				return nil, fmt.Errorf("register sync %s: %w", s.Name, err)
			}
		}
	}

	result := &Result{Pass: true}

	for i, step := range scenario.Setup {
		comp, err := runStep(ctx, k, step)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Invoke, err)
		}
		if ir.IsErrorVariant(comp.Variant) {
			return nil, fmt.Errorf("setup[%d] %s completed with variant %q: %s",
				i, step.Invoke, comp.Variant, renderMessage(comp.Output))
		}
	}

	for i, step := range scenario.Steps {
		comp, err := runStep(ctx, k, step)
		if err != nil {
			result.fail("steps[%d] %s: %v", i, step.Invoke, err)
			continue
		}
		if step.Expect != nil {
			checkExpect(result, fmt.Sprintf("steps[%d] %s", i, step.Invoke),
				step.Expect, comp.Variant, comp.Output)
		}
	}

	if scenario.Request != nil {
		body, err := toObject(scenario.Request.Body)
		if err != nil {
			return nil, fmt.Errorf("request body: %w", err)
		}
		resp, err := k.HandleRequest(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("request: %w", err)
		}
		if resp.Failed() {
			result.fail("request faulted: %s: %s", resp.Code, resp.Error)
		} else if scenario.Request.Expect != nil {
			checkExpect(result, "request", scenario.Request.Expect, "", resp.Body)
		}
		if err := k.AwaitSettled(ctx, resp.Flow); err != nil {
			return nil, fmt.Errorf("request: %w", err)
		}
	}

	result.Trace = collectTrace(k.FlowLog())
	evaluateAssertions(ctx, result, scenario.Assertions, store)
	return result, nil
}

// runStep invokes one step inside its own flow and waits for
// settlement. A flow fault comes back as an error.
func runStep(ctx context.Context, k *kernel.Kernel, step Step) (ir.Completion, error) {
	concept, action, err := splitAction(step.Invoke)
	if err != nil {
		return ir.Completion{}, err
	}
	input, err := toObject(step.Args)
	if err != nil {
		return ir.Completion{}, fmt.Errorf("args: %w", err)
	}
	return k.InvokeConcept(ctx, concept, action, input)
}

// checkExpect validates a variant tag and an output subset. An empty
// wanted variant matches anything, which is how request expectations
// skip the tag.
func checkExpect(result *Result, at string, expect *Expect, variant string, output ir.Object) {
	if expect.Variant != "" && expect.Variant != variant {
		result.fail("%s: variant %q, want %q", at, variant, expect.Variant)
	}
	if expect.Output == nil {
		return
	}
	want, err := toObject(expect.Output)
	if err != nil {
		result.fail("%s: expect.output: %v", at, err)
		return
	}
	for _, field := range want.SortedKeys() {
		got, ok := output[field]
		if !ok {
			result.fail("%s: output missing field %q", at, field)
			continue
		}
		if !ir.Equal(got, want[field]) {
			result.fail("%s: output.%s = %v, want %v", at, field, got, want[field])
		}
	}
}

// collectTrace flattens the flow log, flows in first-seen order.
func collectTrace(log *engine.FlowLog) []TraceEvent {
	var trace []TraceEvent
	for _, flow := range log.Flows() {
		for _, ev := range log.Events(flow) {
			te := TraceEvent{
				Kind:         string(ev.Kind),
				Flow:         ev.Flow,
				Seq:          ev.Seq,
				Sync:         ev.Sync,
				Binding:      ev.Binding,
				FaultCode:    ev.FaultCode,
				FaultMessage: ev.FaultMessage,
			}
			if ev.Invocation != nil {
				te.Action = ev.Invocation.Concept + "." + ev.Invocation.Action
				te.Input = ev.Invocation.Input
			}
			if ev.Completion != nil {
				te.Action = ev.Completion.Concept + "." + ev.Completion.Action
				te.Variant = ev.Completion.Variant
				te.Output = ev.Completion.Output
			}
			trace = append(trace, te)
		}
	}
	return trace
}

func splitAction(ref string) (concept, action string, err error) {
	concept, action, ok := strings.Cut(ref, ".")
	if !ok || concept == "" || action == "" {
		return "", "", fmt.Errorf("invalid action reference %q, want \"Concept.action\"", ref)
	}
	return concept, action, nil
}

func toObject(m map[string]any) (ir.Object, error) {
	if m == nil {
		return ir.Object{}, nil
	}
	v, err := ir.FromGo(m)
	if err != nil {
		return nil, err
	}
	return v.(ir.Object), nil
}

func renderMessage(output ir.Object) string {
	if msg, ok := output["message"].(ir.String); ok {
		return string(msg)
	}
	return "(no message)"
}
