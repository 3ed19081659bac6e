package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event.Describe())
	}

	return buf.String()
}

// matchesCall reports whether event is a call of the assertion's kind with
// its SOQL text or sobject.
func matchesCall(event TraceEvent, assertion Assertion) bool {
	if event.Kind != assertion.Kind {
		return false
	}
	if assertion.SOQL != "" && event.SOQL != assertion.SOQL {
		return false
	}
	if assertion.SObject != "" && event.SObject != assertion.SObject {
		return false
	}
	return true
}

// assertTraceContains checks if the trace contains a matching call.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchesCall(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s call %s", assertion.Kind, callTarget(assertion)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if calls appear in the specified order.
// Calls don't need to be consecutive (intervening calls are allowed), and a
// call named twice must appear twice.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Calls) && event.Describe() == assertion.Calls[next] {
			next++
		}
	}

	if next < len(assertion.Calls) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("calls in order: %q", assertion.Calls),
			Actual:   fmt.Sprintf("missing or out of order: %q", assertion.Calls[next]),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceCount checks if calls of the kind appear exactly the specified
// number of times. SOQL and SObject narrow the count when set.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchesCall(event, assertion) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s calls %s", assertion.Count, assertion.Kind, callTarget(assertion)),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertNoWrites checks that no create or update reached the remote system.
// Refused writes never reach it, so they leave no trace.
func assertNoWrites(trace []TraceEvent) error {
	for _, event := range trace {
		if event.Kind != "query" {
			return &AssertionError{
				Type:     AssertNoWrites,
				Expected: "no create or update calls",
				Actual:   fmt.Sprintf("found %s", event.Describe()),
				Trace:    trace,
			}
		}
	}
	return nil
}

// callTarget describes what an assertion matches on.
func callTarget(a Assertion) string {
	switch {
	case a.SOQL != "":
		return fmt.Sprintf("%q", a.SOQL)
	case a.SObject != "":
		return "on " + a.SObject
	default:
		return "(any)"
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertNoWrites:
			err = assertNoWrites(result.Trace)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
