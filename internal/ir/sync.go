package ir

// Urgency controls whether a sync's effects must finish before a
// request-driven flow may produce its response.
type Urgency string

const (
	// UrgencyEager schedules then-actions ahead of pending eventual
	// work; eager work blocks response assembly.
	UrgencyEager Urgency = "eager"

	// UrgencyEventual schedules then-actions behind eager work; the
	// flow may respond while eventual work is still draining.
	UrgencyEventual Urgency = "eventual"
)

// Normalize returns the urgency with the empty value defaulted to eager.
func (u Urgency) Normalize() Urgency {
	if u == "" {
		return UrgencyEager
	}
	return u
}

// Valid reports whether the urgency is a known value (after defaulting).
func (u Urgency) Valid() bool {
	switch u {
	case "", UrgencyEager, UrgencyEventual:
		return true
	}
	return false
}

// CompiledSync is one declarative rule: when every when-pattern matches
// a completion in the same flow under a consistent variable binding,
// the where clauses refine and fan out the binding, and each surviving
// environment resolves the then actions into new invocations.
type CompiledSync struct {
	Name    string        `json:"name"`
	Urgency Urgency       `json:"urgency,omitempty"`
	When    []WhenPattern `json:"when"`
	Where   []WhereClause `json:"where,omitempty"`
	Then    []ThenAction  `json:"then"`
}

// WhenPattern matches a completion by concept, action, optional variant
// and field patterns over input and output.
type WhenPattern struct {
	Concept string         `json:"concept"`
	Action  string         `json:"action"`
	Variant string         `json:"variant,omitempty"` // empty = any
	Input   []FieldPattern `json:"input,omitempty"`
	Output  []FieldPattern `json:"output,omitempty"`
}

// FieldPattern matches one field of a completion's input or output.
// Exactly one of Var and Literal is set: a variable binder binds on
// first match and must agree with an existing binding on reuse; a
// literal matcher requires exact equality.
type FieldPattern struct {
	Field   string `json:"field"`
	Var     string `json:"var,omitempty"`
	Literal Value  `json:"literal,omitempty"`
}

// WhereKind selects the behavior of a where clause.
type WhereKind string

const (
	// WhereQuery calls a concept's query relation and fans the
	// environment out, one per result row.
	WhereQuery WhereKind = "query"

	// WhereFilter drops environments failing a predicate.
	WhereFilter WhereKind = "filter"

	// WhereBind computes a derived value into a new variable.
	WhereBind WhereKind = "bind"
)

// WhereClause refines or extends a binding environment. The populated
// fields depend on Kind:
//
//	query:  Concept, Relation, Args, Bind (column -> new variable)
//	filter: Op, Left, Right
//	bind:   Var, Parts (concatenated; a single non-string part passes through)
type WhereClause struct {
	Kind WhereKind `json:"kind"`

	Concept  string            `json:"concept,omitempty"`
	Relation string            `json:"relation,omitempty"`
	Args     map[string]Term   `json:"args,omitempty"`
	Bind     map[string]string `json:"bind,omitempty"`

	Op    FilterOp `json:"op,omitempty"`
	Left  Term     `json:"left,omitempty"`
	Right Term     `json:"right,omitempty"`

	Var   string `json:"var,omitempty"`
	Parts []Term `json:"parts,omitempty"`
}

// FilterOp is the comparison operator of a filter clause.
type FilterOp string

const (
	FilterEq FilterOp = "eq"
	FilterNe FilterOp = "ne"
)

// Term is either a variable reference or a literal value; exactly one
// is set.
type Term struct {
	Var     string `json:"var,omitempty"`
	Literal Value  `json:"literal,omitempty"`
}

// IsVar reports whether the term is a variable reference.
func (t Term) IsVar() bool { return t.Var != "" }

// ThenAction describes one invocation to enqueue per satisfying
// environment.
type ThenAction struct {
	Concept string          `json:"concept"`
	Action  string          `json:"action"`
	Fields  map[string]Term `json:"fields,omitempty"`
}

// TriggerKey identifies the index slot for a when pattern's
// concept+action pair.
func (p WhenPattern) TriggerKey() string {
	return p.Concept + "." + p.Action
}
