package engine

import (
	"errors"
	"fmt"
)

// FaultCode categorizes flow faults. A fault settles its flow with an
// error outcome; it never crosses into other flows or the kernel.
type FaultCode string

const (
	// FaultUnresolvableConcept: an invocation or where query named a
	// concept with no live registration at dispatch time.
	FaultUnresolvableConcept FaultCode = "UNRESOLVABLE_CONCEPT"

	// FaultBudgetExceeded: the flow fired more sync bindings than its
	// budget allows, usually a rule cycle.
	FaultBudgetExceeded FaultCode = "BUDGET_EXCEEDED"

	// FaultNoResponse: a request-driven flow drained completely without
	// any respond completion to assemble a response from.
	FaultNoResponse FaultCode = "NO_RESPONSE"

	// FaultWhereFailed: a where clause could not be evaluated (query
	// transport failure, missing row column, non-string concat part).
	FaultWhereFailed FaultCode = "WHERE_FAILED"
)

// FaultError is a flow-level failure. It settles exactly one flow.
type FaultError struct {
	Code    FaultCode
	Message string
	Flow    string
	Sync    string
}

// Error implements the error interface.
func (e *FaultError) Error() string {
	if e.Sync != "" {
		return fmt.Sprintf("%s: %s (flow=%s, sync=%s)", e.Code, e.Message, e.Flow, e.Sync)
	}
	return fmt.Sprintf("%s: %s (flow=%s)", e.Code, e.Message, e.Flow)
}

// IsBudgetFault reports whether err is a budget-exceeded flow fault.
func IsBudgetFault(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe) && fe.Code == FaultBudgetExceeded
}

// IsUnresolvableFault reports whether err is an unresolvable-concept
// flow fault.
func IsUnresolvableFault(err error) bool {
	var fe *FaultError
	return errors.As(err, &fe) && fe.Code == FaultUnresolvableConcept
}
