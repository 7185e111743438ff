// Package harness runs YAML conformance scenarios against a live
// kernel. A scenario registers the built-in concepts over a fresh
// in-memory store, loads CUE rule files, drives invocations and an
// optional request through the kernel, and checks assertions over the
// resulting flow traces and final store state.
//
// Flow tokens are fixed per scenario run, so traces are reproducible
// and can be pinned with golden files (see AssertGolden).
package harness
