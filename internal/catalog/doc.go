// Package catalog holds the registered sync rules and validates them
// against the concept schemas at registration time.
//
// Validation is structural and total: a rule that references an unknown
// action, an undeclared relation or an unbound variable is rejected
// before it can ever fire, and all problems are reported at once rather
// than fail-fast. The catalog also maintains the trigger index that
// maps a (concept, action) pair to the rules it can wake.
package catalog
