// Package engine runs flows: it dispatches invocations through the
// concept directory, matches completions against the sync catalog,
// evaluates where clauses, and schedules the resulting invocations
// until the flow settles.
//
// Each flow is drained by exactly one goroutine, so evaluation within a
// flow is strictly ordered: completions are appended in dispatch order,
// rules are evaluated in declaration order, and every firing is
// recorded in the flow log. Concurrency exists only between flows.
package engine
