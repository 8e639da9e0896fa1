package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/stockroom/internal/engine"
	"github.com/roach88/stockroom/internal/history"
	"github.com/roach88/stockroom/internal/ir"
)

// AssertionError is returned when an expectation fails.
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

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s by %s", ev.Seq, ev.Kind, ev.Actor)
			if len(ev.Diagnostics) > 0 {
				fmt.Fprintf(&buf, " %v", ev.Diagnostics)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

func evaluate(a Assertion, res *Result, replay engine.ReplayResult, p *history.Projection) error {
	switch a.Type {
	case AssertItem:
		return assertItem(res, a)
	case AssertItemAbsent:
		if it, ok := res.State.Item(a.Key()); ok {
			return fail(res, a, fmt.Sprintf("no item %s", a.Key()), fmt.Sprintf("item with qty %d", it.Qty))
		}
	case AssertItemCount:
		if n := len(res.State.Items); n != a.Count {
			return fail(res, a, fmt.Sprintf("%d item(s)", a.Count), fmt.Sprintf("%d item(s)", n))
		}
	case AssertOrder:
		return assertOrder(res, a)
	case AssertNames:
		got := res.State.Names[a.Classification]
		if !slices.Equal(got, a.Names) {
			return fail(res, a, fmt.Sprintf("names %v for %s", a.Names, a.Classification), fmt.Sprintf("%v", got))
		}
	case AssertDiagnosticCount:
		n := 0
		for _, d := range replay.Diagnostics {
			if string(d.Code) == a.Diagnostic {
				n++
			}
		}
		if n != a.Count {
			return fail(res, a, fmt.Sprintf("%d %s diagnostic(s)", a.Count, a.Diagnostic), fmt.Sprintf("%d", n))
		}
	case AssertHistoryContains:
		return assertHistory(res, a, p)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func fail(res *Result, a Assertion, expected, actual string) error {
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: res.Trace}
}

func assertItem(res *Result, a Assertion) error {
	it, ok := res.State.Item(a.Key())
	if !ok {
		return fail(res, a, fmt.Sprintf("item %s", a.Key()), "not found")
	}

	// Sorted so failures are reported in a stable order.
	fields := make([]string, 0, len(a.Expect))
	for f := range a.Expect {
		fields = append(fields, f)
	}
	slices.Sort(fields)

	var mismatches []string
	for _, f := range fields {
		want := fmt.Sprint(a.Expect[f])
		got := fmt.Sprint(itemField(it, f))
		if want != got {
			mismatches = append(mismatches, fmt.Sprintf("%s=%s (want %s)", f, got, want))
		}
	}
	if len(mismatches) > 0 {
		return fail(res, a, fmt.Sprintf("item %s with %v", a.Key(), a.Expect), strings.Join(mismatches, ", "))
	}
	return nil
}

func itemField(it ir.Item, field string) any {
	switch field {
	case "qty":
		return it.Qty
	case "shipped":
		return it.Shipped
	case "pieces":
		return it.Pieces
	case "description":
		return it.Description
	case "classification":
		return it.Classification
	case "image":
		return it.Image
	}
	return nil
}

func assertOrder(res *Result, a Assertion) error {
	o, ok := res.State.Order(a.Order)
	if !ok {
		return fail(res, a, fmt.Sprintf("order %s", a.Order), "not found")
	}
	if a.Lines == nil {
		return nil
	}

	got := make([]LineSpec, 0, len(o.Lines))
	for _, l := range o.Lines {
		got = append(got, LineSpec{Code: l.Key.Code, Subtype: l.Key.Subtype, Qty: l.Qty})
	}
	if !slices.Equal(got, a.Lines) {
		return fail(res, a, fmt.Sprintf("order %s lines %v", a.Order, a.Lines), fmt.Sprintf("%v", got))
	}
	return nil
}

func assertHistory(res *Result, a Assertion, p *history.Projection) error {
	entries := p.Entries(a.Key())
	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(e.Text, a.Text) {
			return nil
		}
		texts = append(texts, e.Text)
	}
	return fail(res, a, fmt.Sprintf("history of %s containing %q", a.Key(), a.Text), fmt.Sprintf("%q", texts))
}
