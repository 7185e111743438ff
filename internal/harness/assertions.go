package harness

import (
	"context"
	"fmt"

	"github.com/weftworks/weft/internal/ir"
	"github.com/weftworks/weft/internal/storage"
)

// evaluateAssertions checks every assertion against the collected
// trace and the final store state, appending failures to the result.
func evaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, store storage.Store) {
	for i, a := range assertions {
		at := fmt.Sprintf("assertions[%d] %s", i, a.Type)
		switch a.Type {
		case AssertTraceContains:
			assertTraceContains(result, at, a)
		case AssertTraceOrder:
			assertTraceOrder(result, at, a)
		case AssertTraceCount:
			assertTraceCount(result, at, a)
		case AssertFinalState:
			assertFinalState(ctx, result, at, a, store)
		}
	}
}

// matchesCompletion reports whether a trace event is a completion of
// the given action, optionally restricted by variant and an input
// subset.
func matchesCompletion(te TraceEvent, a Assertion, args ir.Object) bool {
	if te.Kind != "completion" || te.Action != a.Action {
		return false
	}
	if a.Variant != "" && te.Variant != a.Variant {
		return false
	}
	for _, field := range args.SortedKeys() {
		got, ok := te.Input[field]
		if !ok || !ir.Equal(got, args[field]) {
			return false
		}
	}
	return true
}

func assertTraceContains(result *Result, at string, a Assertion) {
	args, err := toObject(a.Args)
	if err != nil {
		result.fail("%s: args: %v", at, err)
		return
	}
	for _, te := range result.Trace {
		if matchesCompletion(te, a, args) {
			return
		}
	}
	result.fail("%s: no completion of %s matches", at, a.Action)
}

func assertTraceOrder(result *Result, at string, a Assertion) {
	next := 0
	for _, te := range result.Trace {
		if next >= len(a.Actions) {
			break
		}
		if te.Kind == "completion" && te.Action == a.Actions[next] {
			next++
		}
	}
	if next < len(a.Actions) {
		result.fail("%s: completion of %s never observed after its predecessors",
			at, a.Actions[next])
	}
}

func assertTraceCount(result *Result, at string, a Assertion) {
	args, err := toObject(a.Args)
	if err != nil {
		result.fail("%s: args: %v", at, err)
		return
	}
	count := 0
	for _, te := range result.Trace {
		if matchesCompletion(te, a, args) {
			count++
		}
	}
	if count != *a.Count {
		result.fail("%s: %d completions of %s, want %d", at, count, a.Action, *a.Count)
	}
}

func assertFinalState(ctx context.Context, result *Result, at string, a Assertion, store storage.Store) {
	where, err := toObject(a.Where)
	if err != nil {
		result.fail("%s: where: %v", at, err)
		return
	}
	rows, err := store.Find(ctx, a.Relation, where)
	if err != nil {
		result.fail("%s: find %s: %v", at, a.Relation, err)
		return
	}

	if a.Count != nil && len(rows) != *a.Count {
		result.fail("%s: %d rows in %s, want %d", at, len(rows), a.Relation, *a.Count)
	}
	if a.Expect == nil {
		return
	}

	want, err := toObject(a.Expect)
	if err != nil {
		result.fail("%s: expect: %v", at, err)
		return
	}
	for _, row := range rows {
		if rowContains(row, want) {
			return
		}
	}
	result.fail("%s: no row in %s contains the expected fields", at, a.Relation)
}

func rowContains(row, want ir.Object) bool {
	for _, field := range want.SortedKeys() {
		got, ok := row[field]
		if !ok || !ir.Equal(got, want[field]) {
			return false
		}
	}
	return true
}
