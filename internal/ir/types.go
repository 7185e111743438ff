package ir

import "time"

// ConceptSpec declares a concept's action signatures and query
// relations. The kernel uses it to validate sync rules and to build the
// action lookup table at registration time; it never interprets the
// business meaning of an action.
type ConceptSpec struct {
	URI       string      `json:"uri"`
	Purpose   string      `json:"purpose,omitempty"`
	Actions   []ActionSig `json:"actions"`
	Relations []string    `json:"relations,omitempty"` // query relations exposed to where clauses
}

// ActionSig is an action signature with named inputs and tagged output
// variants.
type ActionSig struct {
	Name     string       `json:"name"`
	Inputs   []NamedField `json:"inputs,omitempty"`
	Variants []VariantSig `json:"variants"`
}

// VariantSig is one tagged outcome shape an action may produce.
type VariantSig struct {
	Tag    string       `json:"tag"` // "ok", "notFound", "invalid", ...
	Fields []NamedField `json:"fields,omitempty"`
}

// NamedField is a named field with a type hint.
type NamedField struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"` // string | int | bool | array | object
}

// Action returns the signature for the named action, if declared.
func (s *ConceptSpec) Action(name string) (ActionSig, bool) {
	for _, a := range s.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return ActionSig{}, false
}

// HasRelation reports whether the concept declares the query relation.
func (s *ConceptSpec) HasRelation(name string) bool {
	for _, r := range s.Relations {
		if r == name {
			return true
		}
	}
	return false
}

// Invocation is a request to run one concept action. Created by the
// flow engine (from a then clause or an external request) and consumed
// exactly once by the concept directory.
type Invocation struct {
	ID      string    `json:"id"`
	Concept string    `json:"concept"`
	Action  string    `json:"action"`
	Input   Object    `json:"input"`
	Flow    string    `json:"flow"`
	Seq     int64     `json:"seq"` // logical clock position within the flow
	At      time.Time `json:"at"`
}

// Completion is the tagged result of running an invocation. Immutable
// once produced; ID equals the invocation's ID.
type Completion struct {
	ID      string    `json:"id"`
	Concept string    `json:"concept"`
	Action  string    `json:"action"`
	Input   Object    `json:"input"`
	Variant string    `json:"variant"`
	Output  Object    `json:"output"`
	Flow    string    `json:"flow"`
	Seq     int64     `json:"seq"`
	At      time.Time `json:"at"`
}

// Error-like variants produced by the kernel itself. Business variants
// (notFound, invalid, ...) belong to the concepts and are opaque here.
const (
	VariantOK            = "ok"
	VariantError         = "error"
	VariantTimeout       = "timeout"
	VariantUnknownAction = "unknownAction"
)

// IsErrorVariant reports whether a variant tag is one of the kernel's
// conventional error-like tags. Syncs may still match these like any
// other variant.
func IsErrorVariant(tag string) bool {
	return tag == VariantError || tag == VariantTimeout || tag == VariantUnknownAction
}
