package engine

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/weftworks/weft/internal/ir"
)

// resolveTerm resolves a term against an environment. Validation
// guarantees variables are bound, so a miss here is a rule evaluation
// failure, not a user error.
func resolveTerm(t ir.Term, env ir.Object) (ir.Value, error) {
	if !t.IsVar() {
		if t.Literal == nil {
			return nil, fmt.Errorf("term has neither var nor literal")
		}
		return t.Literal, nil
	}
	val, ok := env[t.Var]
	if !ok {
		return nil, fmt.Errorf("variable %q is not bound", t.Var)
	}
	return val, nil
}

// evalWhere runs a rule's where clauses over one when-candidate
// environment. Query clauses fan out, one environment per result row;
// filter clauses drop environments; bind clauses extend them. The
// result may be empty (the binding produced no work) without being a
// fault.
func (e *Engine) evalWhere(ctx context.Context, s ir.CompiledSync, flow string, env ir.Object) ([]ir.Object, *FaultError) {
	envs := []ir.Object{env}

	for i, clause := range s.Where {
		if len(envs) == 0 {
			return nil, nil
		}

		var err error
		switch clause.Kind {
		case ir.WhereQuery:
			envs, err = e.evalQuery(ctx, clause, envs)
		case ir.WhereFilter:
			envs, err = evalFilter(clause, envs)
		case ir.WhereBind:
			envs, err = evalBind(clause, envs)
		default:
			err = fmt.Errorf("unknown where clause kind %q", clause.Kind)
		}

		if err != nil {
			code := FaultWhereFailed
			if IsUnresolvableFault(err) {
				code = FaultUnresolvableConcept
			}
			return nil, &FaultError{
				Code:    code,
				Message: fmt.Sprintf("where[%d]: %v", i, err),
				Flow:    flow,
				Sync:    s.Name,
			}
		}
	}

	return envs, nil
}

func (e *Engine) evalQuery(ctx context.Context, clause ir.WhereClause, envs []ir.Object) ([]ir.Object, error) {
	transport, err := e.dir.Resolve(clause.Concept)
	if err != nil {
		return nil, &FaultError{
			Code:    FaultUnresolvableConcept,
			Message: err.Error(),
		}
	}

	var out []ir.Object
	for _, env := range envs {
		args := make(ir.Object, len(clause.Args))
		for name, term := range clause.Args {
			val, err := resolveTerm(term, env)
			if err != nil {
				return nil, fmt.Errorf("arg %q: %w", name, err)
			}
			args[name] = val
		}

		rows, err := transport.Query(ctx, clause.Relation, args)
		if err != nil {
			return nil, fmt.Errorf("query %s/%s: %w", clause.Concept, clause.Relation, err)
		}

		for _, row := range rows {
			next := maps.Clone(env)
			for col, v := range clause.Bind {
				val, ok := row[col]
				if !ok {
					return nil, fmt.Errorf("query %s/%s row is missing column %q", clause.Concept, clause.Relation, col)
				}
				next[v] = val
			}
			out = append(out, next)
		}
	}
	return out, nil
}

func evalFilter(clause ir.WhereClause, envs []ir.Object) ([]ir.Object, error) {
	out := envs[:0:0]
	for _, env := range envs {
		left, err := resolveTerm(clause.Left, env)
		if err != nil {
			return nil, err
		}
		right, err := resolveTerm(clause.Right, env)
		if err != nil {
			return nil, err
		}

		equal := ir.Equal(left, right)
		keep := equal
		if clause.Op == ir.FilterNe {
			keep = !equal
		}
		if keep {
			out = append(out, env)
		}
	}
	return out, nil
}

// evalBind computes a derived value. A single part passes through
// unchanged regardless of type; multiple parts must all be strings and
// concatenate.
func evalBind(clause ir.WhereClause, envs []ir.Object) ([]ir.Object, error) {
	out := make([]ir.Object, 0, len(envs))
	for _, env := range envs {
		var val ir.Value
		if len(clause.Parts) == 1 {
			v, err := resolveTerm(clause.Parts[0], env)
			if err != nil {
				return nil, err
			}
			val = v
		} else {
			var sb strings.Builder
			for i, part := range clause.Parts {
				v, err := resolveTerm(part, env)
				if err != nil {
					return nil, err
				}
				s, ok := v.(ir.String)
				if !ok {
					return nil, fmt.Errorf("concat part %d is %T, want string", i, v)
				}
				sb.WriteString(string(s))
			}
			val = ir.String(sb.String())
		}

		next := maps.Clone(env)
		next[clause.Var] = val
		out = append(out, next)
	}
	return out, nil
}
