// Package directory maintains the registry of live concepts and the
// transport used to reach them.
//
// The kernel never calls concept code directly. Every invocation and
// every where-clause query goes through a Transport resolved from the
// Directory at dispatch time, so a concept can be registered, replaced
// or unregistered while flows are in progress. Resolution failures
// surface as flow faults, not panics.
package directory
