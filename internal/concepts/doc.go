// Package concepts bundles the built-in concepts: the API entry pair
// and a small account stack (user, password, session, note). Each
// concept is independent, keeps its state in its own storage
// relations, and knows nothing about syncs or other concepts; all
// composition happens in rule files.
package concepts
