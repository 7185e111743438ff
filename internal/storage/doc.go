// Package storage is the state contract concepts build on: named
// relations of keyed JSON records with get/put/find/delete. Concepts
// own their relations; nothing in the kernel reads them.
//
// Two implementations: SQLite (durable, json_extract-backed find) and
// an in-memory store for tests and ephemeral runs.
package storage
