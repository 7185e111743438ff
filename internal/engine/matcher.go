package engine

import (
	"maps"
	"slices"

	"github.com/weftworks/weft/internal/ir"
)

// candidate is one way a rule's when patterns can be satisfied by the
// flow's completions: the unified variable environment plus the IDs of
// the completions used, in pattern order.
type candidate struct {
	env  ir.Object
	used []string
}

// matchPattern matches one when pattern against one completion under an
// existing environment. Returns the extended environment; the input
// environment is never mutated.
//
// A variable binder binds on first sight and must agree with the
// existing binding on reuse; that agreement is what joins patterns over
// shared variables. A field named by a pattern but absent from the
// completion fails the match.
func matchPattern(p ir.WhenPattern, comp ir.Completion, env ir.Object) (ir.Object, bool) {
	if p.Concept != comp.Concept || p.Action != comp.Action {
		return nil, false
	}
	if p.Variant != "" && p.Variant != comp.Variant {
		return nil, false
	}

	out := env
	extended := false
	extend := func(v string, val ir.Value) bool {
		if existing, bound := out[v]; bound {
			return ir.Equal(existing, val)
		}
		if !extended {
			out = maps.Clone(out)
			if out == nil {
				out = ir.Object{}
			}
			extended = true
		}
		out[v] = val
		return true
	}

	match := func(patterns []ir.FieldPattern, fields ir.Object) bool {
		for _, fp := range patterns {
			val, ok := fields[fp.Field]
			if !ok {
				return false
			}
			if fp.Literal != nil {
				if !ir.Equal(fp.Literal, val) {
					return false
				}
				continue
			}
			if !extend(fp.Var, val) {
				return false
			}
		}
		return true
	}

	if !match(p.Input, comp.Input) {
		return nil, false
	}
	if !match(p.Output, comp.Output) {
		return nil, false
	}
	return out, true
}

// joinCandidates enumerates every assignment of the rule's when
// patterns to completions in the flow's history that unifies to a
// consistent environment and uses the triggering completion at least
// once. Requiring the trigger keeps evaluation incremental: bindings
// made entirely of older completions were already found when their own
// last completion arrived.
//
// Enumeration is depth-first in (pattern, history) order, so candidate
// order is deterministic for a given history.
func joinCandidates(s ir.CompiledSync, history []ir.Completion, triggerID string) []candidate {
	var out []candidate
	var walk func(idx int, env ir.Object, used []string)
	walk = func(idx int, env ir.Object, used []string) {
		if idx == len(s.When) {
			if !slices.Contains(used, triggerID) {
				return
			}
			out = append(out, candidate{env: env, used: slices.Clone(used)})
			return
		}
		for _, comp := range history {
			next, ok := matchPattern(s.When[idx], comp, env)
			if !ok {
				continue
			}
			walk(idx+1, next, append(used, comp.ID))
		}
	}
	walk(0, ir.Object{}, make([]string, 0, len(s.When)))
	return out
}
