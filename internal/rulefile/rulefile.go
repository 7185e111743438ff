package rulefile

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/weftworks/weft/internal/ir"
)

// ParseError is a decoding failure with source position.
type ParseError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads one CUE rule file and decodes every sync it declares,
// sorted by name.
func LoadFile(path string) ([]ir.CompiledSync, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes decodes sync declarations from CUE source. The filename is
// used for error positions only.
func LoadBytes(filename string, data []byte) ([]ir.CompiledSync, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(data, cue.Filename(filename))
	if err := root.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	syncVal := root.LookupPath(cue.ParsePath("sync"))
	if !syncVal.Exists() {
		return nil, &ParseError{
			Field:   "sync",
			Message: "rule file declares no syncs",
			Pos:     root.Pos(),
		}
	}

	iter, err := syncVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var syncs []ir.CompiledSync
	for iter.Next() {
		name := strings.Trim(iter.Label(), `"`)
		s, err := parseSync(name, iter.Value())
		if err != nil {
			return nil, err
		}
		syncs = append(syncs, s)
	}

	sort.Slice(syncs, func(i, j int) bool { return syncs[i].Name < syncs[j].Name })
	return syncs, nil
}

func parseSync(name string, v cue.Value) (ir.CompiledSync, error) {
	s := ir.CompiledSync{Name: name}

	urgencyVal := v.LookupPath(cue.ParsePath("urgency"))
	if urgencyVal.Exists() {
		urgency, err := urgencyVal.String()
		if err != nil {
			return s, formatCUEError(err)
		}
		s.Urgency = ir.Urgency(urgency)
	}

	whenVal := v.LookupPath(cue.ParsePath("when"))
	if !whenVal.Exists() {
		return s, &ParseError{
			Field:   name + ".when",
			Message: "when clause is required",
			Pos:     v.Pos(),
		}
	}
	whenIter, err := whenVal.List()
	if err != nil {
		return s, formatCUEError(err)
	}
	for whenIter.Next() {
		pattern, err := parseWhenPattern(name, whenIter.Value())
		if err != nil {
			return s, err
		}
		s.When = append(s.When, pattern)
	}

	whereVal := v.LookupPath(cue.ParsePath("where"))
	if whereVal.Exists() {
		whereIter, err := whereVal.List()
		if err != nil {
			return s, formatCUEError(err)
		}
		for whereIter.Next() {
			clause, err := parseWhereClause(name, whereIter.Value())
			if err != nil {
				return s, err
			}
			s.Where = append(s.Where, clause)
		}
	}

	thenVal := v.LookupPath(cue.ParsePath("then"))
	if !thenVal.Exists() {
		return s, &ParseError{
			Field:   name + ".then",
			Message: "then clause is required",
			Pos:     v.Pos(),
		}
	}
	thenIter, err := thenVal.List()
	if err != nil {
		return s, formatCUEError(err)
	}
	for thenIter.Next() {
		action, err := parseThenAction(name, thenIter.Value())
		if err != nil {
			return s, err
		}
		s.Then = append(s.Then, action)
	}

	return s, nil
}

func parseWhenPattern(sync string, v cue.Value) (ir.WhenPattern, error) {
	p := ir.WhenPattern{}

	var err error
	p.Concept, err = requiredString(v, "concept", sync+".when")
	if err != nil {
		return p, err
	}
	p.Action, err = requiredString(v, "action", sync+".when")
	if err != nil {
		return p, err
	}

	variantVal := v.LookupPath(cue.ParsePath("variant"))
	if variantVal.Exists() {
		p.Variant, err = variantVal.String()
		if err != nil {
			return p, formatCUEError(err)
		}
	}

	p.Input, err = parseFieldPatterns(sync, v.LookupPath(cue.ParsePath("input")))
	if err != nil {
		return p, err
	}
	p.Output, err = parseFieldPatterns(sync, v.LookupPath(cue.ParsePath("output")))
	if err != nil {
		return p, err
	}
	return p, nil
}

// parseFieldPatterns decodes an input/output struct where each field is
// either a "?var" binder or a literal value.
func parseFieldPatterns(sync string, v cue.Value) ([]ir.FieldPattern, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var patterns []ir.FieldPattern
	for iter.Next() {
		field := iter.Label()
		term, err := parseTerm(sync, iter.Value())
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, ir.FieldPattern{
			Field:   field,
			Var:     term.Var,
			Literal: term.Literal,
		})
	}
	return patterns, nil
}

func parseWhereClause(sync string, v cue.Value) (ir.WhereClause, error) {
	if q := v.LookupPath(cue.ParsePath("query")); q.Exists() {
		return parseQueryClause(sync, q)
	}
	if f := v.LookupPath(cue.ParsePath("filter")); f.Exists() {
		return parseFilterClause(sync, f)
	}
	if b := v.LookupPath(cue.ParsePath("bind")); b.Exists() {
		return parseBindClause(sync, b)
	}
	return ir.WhereClause{}, &ParseError{
		Field:   sync + ".where",
		Message: `clause must be one of "query", "filter", or "bind"`,
		Pos:     v.Pos(),
	}
}

func parseQueryClause(sync string, v cue.Value) (ir.WhereClause, error) {
	clause := ir.WhereClause{Kind: ir.WhereQuery}

	var err error
	clause.Concept, err = requiredString(v, "concept", sync+".where.query")
	if err != nil {
		return clause, err
	}
	clause.Relation, err = requiredString(v, "relation", sync+".where.query")
	if err != nil {
		return clause, err
	}

	argsVal := v.LookupPath(cue.ParsePath("args"))
	if argsVal.Exists() {
		clause.Args = make(map[string]ir.Term)
		iter, err := argsVal.Fields()
		if err != nil {
			return clause, formatCUEError(err)
		}
		for iter.Next() {
			term, err := parseTerm(sync, iter.Value())
			if err != nil {
				return clause, err
			}
			clause.Args[iter.Label()] = term
		}
	}

	bindVal := v.LookupPath(cue.ParsePath("bind"))
	if bindVal.Exists() {
		clause.Bind = make(map[string]string)
		iter, err := bindVal.Fields()
		if err != nil {
			return clause, formatCUEError(err)
		}
		for iter.Next() {
			column := iter.Label()
			binder, err := iter.Value().String()
			if err != nil {
				return clause, formatCUEError(err)
			}
			name, ok := varName(binder)
			if !ok {
				return clause, &ParseError{
					Field:   fmt.Sprintf("%s.where.query.bind.%s", sync, column),
					Message: fmt.Sprintf("binder %q must be a ?variable", binder),
					Pos:     iter.Value().Pos(),
				}
			}
			clause.Bind[column] = name
		}
	}

	return clause, nil
}

func parseFilterClause(sync string, v cue.Value) (ir.WhereClause, error) {
	clause := ir.WhereClause{Kind: ir.WhereFilter}

	op, err := requiredString(v, "op", sync+".where.filter")
	if err != nil {
		return clause, err
	}
	switch ir.FilterOp(op) {
	case ir.FilterEq, ir.FilterNe:
		clause.Op = ir.FilterOp(op)
	default:
		return clause, &ParseError{
			Field:   sync + ".where.filter.op",
			Message: fmt.Sprintf(`invalid operator %q, must be "eq" or "ne"`, op),
			Pos:     v.Pos(),
		}
	}

	leftVal := v.LookupPath(cue.ParsePath("left"))
	if !leftVal.Exists() {
		return clause, &ParseError{
			Field:   sync + ".where.filter",
			Message: "left operand is required",
			Pos:     v.Pos(),
		}
	}
	clause.Left, err = parseTerm(sync, leftVal)
	if err != nil {
		return clause, err
	}

	rightVal := v.LookupPath(cue.ParsePath("right"))
	if !rightVal.Exists() {
		return clause, &ParseError{
			Field:   sync + ".where.filter",
			Message: "right operand is required",
			Pos:     v.Pos(),
		}
	}
	clause.Right, err = parseTerm(sync, rightVal)
	return clause, err
}

func parseBindClause(sync string, v cue.Value) (ir.WhereClause, error) {
	clause := ir.WhereClause{Kind: ir.WhereBind}

	binder, err := requiredString(v, "var", sync+".where.bind")
	if err != nil {
		return clause, err
	}
	name, ok := varName(binder)
	if !ok {
		return clause, &ParseError{
			Field:   sync + ".where.bind.var",
			Message: fmt.Sprintf("binder %q must be a ?variable", binder),
			Pos:     v.Pos(),
		}
	}
	clause.Var = name

	partsVal := v.LookupPath(cue.ParsePath("parts"))
	if !partsVal.Exists() {
		return clause, &ParseError{
			Field:   sync + ".where.bind",
			Message: "parts list is required",
			Pos:     v.Pos(),
		}
	}
	iter, err := partsVal.List()
	if err != nil {
		return clause, formatCUEError(err)
	}
	for iter.Next() {
		term, err := parseTerm(sync, iter.Value())
		if err != nil {
			return clause, err
		}
		clause.Parts = append(clause.Parts, term)
	}
	return clause, nil
}

func parseThenAction(sync string, v cue.Value) (ir.ThenAction, error) {
	action := ir.ThenAction{}

	var err error
	action.Concept, err = requiredString(v, "concept", sync+".then")
	if err != nil {
		return action, err
	}
	action.Action, err = requiredString(v, "action", sync+".then")
	if err != nil {
		return action, err
	}

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if fieldsVal.Exists() {
		action.Fields = make(map[string]ir.Term)
		iter, err := fieldsVal.Fields()
		if err != nil {
			return action, formatCUEError(err)
		}
		for iter.Next() {
			term, err := parseTerm(sync, iter.Value())
			if err != nil {
				return action, err
			}
			action.Fields[iter.Label()] = term
		}
	}
	return action, nil
}

// parseTerm decodes a CUE value into a variable reference or a literal.
// Only strings can be variables.
func parseTerm(sync string, v cue.Value) (ir.Term, error) {
	if v.IncompleteKind() == cue.StringKind {
		s, err := v.String()
		if err != nil {
			return ir.Term{}, formatCUEError(err)
		}
		if name, ok := varName(s); ok {
			return ir.Term{Var: name}, nil
		}
		return ir.Term{Literal: ir.String(s)}, nil
	}

	literal, err := decodeValue(sync, v)
	if err != nil {
		return ir.Term{}, err
	}
	return ir.Term{Literal: literal}, nil
}

// decodeValue converts a concrete CUE value into an ir.Value. Floats
// are rejected.
func decodeValue(sync string, v cue.Value) (ir.Value, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.String(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Int(n), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := ir.Array{}
		for iter.Next() {
			elem, err := decodeValue(sync, iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := ir.Object{}
		for iter.Next() {
			field, err := decodeValue(sync, iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = field
		}
		return obj, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &ParseError{
			Field:   sync,
			Message: "float literals are not allowed, use int",
			Pos:     v.Pos(),
		}
	default:
		return nil, &ParseError{
			Field:   sync,
			Message: fmt.Sprintf("unsupported literal kind %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// varName strips the "?" variable marker, reporting whether s was a
// variable reference.
func varName(s string) (string, bool) {
	if strings.HasPrefix(s, "?") && len(s) > 1 {
		return s[1:], true
	}
	return "", false
}

func requiredString(v cue.Value, field, path string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return "", &ParseError{
			Field:   path + "." + field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// formatCUEError lifts position info out of CUE's error list.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &ParseError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
