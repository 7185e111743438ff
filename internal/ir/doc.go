// Package ir defines the data model shared by every part of the weft
// kernel: constrained JSON-compatible values, action invocations and
// completions, compiled sync rules, and the content-addressed identity
// scheme used for idempotent sync firing.
//
// Values are deliberately constrained: strings, integers, booleans,
// arrays, objects and null. Floats are rejected everywhere because
// binding hashes and event IDs are computed over canonical JSON, and
// float formatting is not stable across platforms.
package ir
