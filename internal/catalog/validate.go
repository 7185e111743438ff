package catalog

import (
	"fmt"
	"slices"

	"github.com/weftworks/weft/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Rule shape errors (E100-E109)
	ErrSyncNameEmpty  = "E100" // sync name is required
	ErrNoWhenPatterns = "E101" // at least one when pattern required
	ErrNoThenActions  = "E102" // at least one then action required
	ErrInvalidUrgency = "E103" // urgency must be eager or eventual
	ErrBadFieldMatch  = "E104" // field pattern needs exactly one of var/literal

	// When pattern errors (E110-E119)
	ErrUnknownConcept = "E110" // concept not registered
	ErrUnknownAction  = "E111" // action not declared by concept
	ErrUnknownVariant = "E112" // variant not declared by action

	// Where clause errors (E120-E129)
	ErrUnknownRelation  = "E120" // query relation not declared by concept
	ErrMalformedClause  = "E121" // where clause missing required fields
	ErrUnboundWhereVar  = "E122" // where clause reads an unbound variable
	ErrShadowedVariable = "E123" // clause rebinds an already-bound variable

	// Then action errors (E130-E139)
	ErrUnboundThenVar = "E131" // then field reads an unbound variable
)

// ValidationError is one schema validation finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// SchemaSource supplies concept specs for validation. Implemented by
// the concept directory.
type SchemaSource interface {
	Spec(name string) (ir.ConceptSpec, bool)
}

// syntheticVariants are produced by the kernel for any action, so a
// when pattern may match them without the action declaring them.
var syntheticVariants = map[string]bool{
	ir.VariantError:         true,
	ir.VariantTimeout:       true,
	ir.VariantUnknownAction: true,
}

// Validate checks one sync rule against the registered concept schemas.
// Returns all findings (does not fail-fast).
func Validate(s ir.CompiledSync, schemas SchemaSource) []ValidationError {
	var errs []ValidationError

	if s.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "sync name is required",
			Code:    ErrSyncNameEmpty,
		})
	}
	if !s.Urgency.Valid() {
		errs = append(errs, ValidationError{
			Field:   "urgency",
			Message: fmt.Sprintf("urgency %q is not eager or eventual", s.Urgency),
			Code:    ErrInvalidUrgency,
		})
	}
	if len(s.When) == 0 {
		errs = append(errs, ValidationError{
			Field:   "when",
			Message: "at least one when pattern is required",
			Code:    ErrNoWhenPatterns,
		})
	}
	if len(s.Then) == 0 {
		errs = append(errs, ValidationError{
			Field:   "then",
			Message: "at least one then action is required",
			Code:    ErrNoThenActions,
		})
	}

	// Variables bound so far, in evaluation order: when binders first,
	// then each where clause's products.
	bound := make(map[string]bool)

	for i, when := range s.When {
		errs = append(errs, validateWhen(when, i, schemas, bound)...)
	}
	for i, where := range s.Where {
		errs = append(errs, validateWhere(where, i, schemas, bound)...)
	}
	for i, then := range s.Then {
		errs = append(errs, validateThen(then, i, schemas, bound)...)
	}

	return errs
}

func validateWhen(when ir.WhenPattern, idx int, schemas SchemaSource, bound map[string]bool) []ValidationError {
	var errs []ValidationError
	path := fmt.Sprintf("when[%d]", idx)

	spec, ok := schemas.Spec(when.Concept)
	if !ok {
		errs = append(errs, ValidationError{
			Field:   path + ".concept",
			Message: fmt.Sprintf("concept %q is not registered", when.Concept),
			Code:    ErrUnknownConcept,
		})
	} else {
		sig, ok := spec.Action(when.Action)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   path + ".action",
				Message: fmt.Sprintf("concept %q has no action %q", when.Concept, when.Action),
				Code:    ErrUnknownAction,
			})
		} else if when.Variant != "" && !syntheticVariants[when.Variant] {
			if !hasVariant(sig, when.Variant) {
				errs = append(errs, ValidationError{
					Field:   path + ".variant",
					Message: fmt.Sprintf("action %s.%s has no variant %q", when.Concept, when.Action, when.Variant),
					Code:    ErrUnknownVariant,
				})
			}
		}
	}

	for j, fp := range when.Input {
		errs = append(errs, validateFieldPattern(fp, fmt.Sprintf("%s.input[%d]", path, j), bound)...)
	}
	for j, fp := range when.Output {
		errs = append(errs, validateFieldPattern(fp, fmt.Sprintf("%s.output[%d]", path, j), bound)...)
	}

	return errs
}

// validateFieldPattern checks a field pattern's shape and records its
// binder. A variable may appear in several when patterns (that is the
// join), so no shadowing check here.
func validateFieldPattern(fp ir.FieldPattern, path string, bound map[string]bool) []ValidationError {
	hasVar := fp.Var != ""
	hasLit := fp.Literal != nil
	if hasVar == hasLit {
		return []ValidationError{{
			Field:   path,
			Message: fmt.Sprintf("field %q must set exactly one of var and literal", fp.Field),
			Code:    ErrBadFieldMatch,
		}}
	}
	if hasVar {
		bound[fp.Var] = true
	}
	return nil
}

func validateWhere(where ir.WhereClause, idx int, schemas SchemaSource, bound map[string]bool) []ValidationError {
	var errs []ValidationError
	path := fmt.Sprintf("where[%d]", idx)

	switch where.Kind {
	case ir.WhereQuery:
		if where.Concept == "" || where.Relation == "" {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "query clause requires concept and relation",
				Code:    ErrMalformedClause,
			})
			break
		}
		spec, ok := schemas.Spec(where.Concept)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   path + ".concept",
				Message: fmt.Sprintf("concept %q is not registered", where.Concept),
				Code:    ErrUnknownConcept,
			})
		} else if !spec.HasRelation(where.Relation) {
			errs = append(errs, ValidationError{
				Field:   path + ".relation",
				Message: fmt.Sprintf("concept %q has no relation %q", where.Concept, where.Relation),
				Code:    ErrUnknownRelation,
			})
		}
		for _, arg := range sortedKeys(where.Args) {
			errs = append(errs, checkTermBound(where.Args[arg], fmt.Sprintf("%s.args[%s]", path, arg), bound, ErrUnboundWhereVar)...)
		}
		for _, col := range sortedKeys(where.Bind) {
			v := where.Bind[col]
			if bound[v] {
				errs = append(errs, ValidationError{
					Field:   path + ".bind",
					Message: fmt.Sprintf("variable %q is already bound", v),
					Code:    ErrShadowedVariable,
				})
				continue
			}
			bound[v] = true
		}

	case ir.WhereFilter:
		if where.Op != ir.FilterEq && where.Op != ir.FilterNe {
			errs = append(errs, ValidationError{
				Field:   path + ".op",
				Message: fmt.Sprintf("filter op %q is not eq or ne", where.Op),
				Code:    ErrMalformedClause,
			})
		}
		errs = append(errs, checkTermBound(where.Left, path+".left", bound, ErrUnboundWhereVar)...)
		errs = append(errs, checkTermBound(where.Right, path+".right", bound, ErrUnboundWhereVar)...)

	case ir.WhereBind:
		if where.Var == "" || len(where.Parts) == 0 {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: "bind clause requires var and at least one part",
				Code:    ErrMalformedClause,
			})
			break
		}
		for j, part := range where.Parts {
			errs = append(errs, checkTermBound(part, fmt.Sprintf("%s.parts[%d]", path, j), bound, ErrUnboundWhereVar)...)
		}
		if bound[where.Var] {
			errs = append(errs, ValidationError{
				Field:   path + ".var",
				Message: fmt.Sprintf("variable %q is already bound", where.Var),
				Code:    ErrShadowedVariable,
			})
		} else {
			bound[where.Var] = true
		}

	default:
		errs = append(errs, ValidationError{
			Field:   path + ".kind",
			Message: fmt.Sprintf("unknown where clause kind %q", where.Kind),
			Code:    ErrMalformedClause,
		})
	}

	return errs
}

func validateThen(then ir.ThenAction, idx int, schemas SchemaSource, bound map[string]bool) []ValidationError {
	var errs []ValidationError
	path := fmt.Sprintf("then[%d]", idx)

	spec, ok := schemas.Spec(then.Concept)
	if !ok {
		errs = append(errs, ValidationError{
			Field:   path + ".concept",
			Message: fmt.Sprintf("concept %q is not registered", then.Concept),
			Code:    ErrUnknownConcept,
		})
	} else if _, ok := spec.Action(then.Action); !ok {
		errs = append(errs, ValidationError{
			Field:   path + ".action",
			Message: fmt.Sprintf("concept %q has no action %q", then.Concept, then.Action),
			Code:    ErrUnknownAction,
		})
	}

	for _, field := range sortedKeys(then.Fields) {
		errs = append(errs, checkTermBound(then.Fields[field], fmt.Sprintf("%s.fields[%s]", path, field), bound, ErrUnboundThenVar)...)
	}

	return errs
}

func checkTermBound(term ir.Term, path string, bound map[string]bool, code string) []ValidationError {
	if !term.IsVar() {
		return nil
	}
	if bound[term.Var] {
		return nil
	}
	return []ValidationError{{
		Field:   path,
		Message: fmt.Sprintf("variable %q is not bound by any when pattern or earlier where clause", term.Var),
		Code:    code,
	}}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func hasVariant(sig ir.ActionSig, tag string) bool {
	for _, v := range sig.Variants {
		if v.Tag == tag {
			return true
		}
	}
	return false
}
