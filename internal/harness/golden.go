package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/weftworks/weft/internal/ir"
)

// Snapshot renders a result's trace as canonical JSON, keyed by the
// scenario name. Canonical serialization makes the byte output stable,
// so golden files never churn on map ordering.
func Snapshot(name string, result *Result) ([]byte, error) {
	trace := make(ir.Array, len(result.Trace))
	for i, te := range result.Trace {
		ev := ir.Object{
			"kind": ir.String(te.Kind),
			"flow": ir.String(te.Flow),
			"seq":  ir.Int(te.Seq),
		}
		if te.Action != "" {
			ev["action"] = ir.String(te.Action)
		}
		if te.Variant != "" {
			ev["variant"] = ir.String(te.Variant)
		}
		if te.Input != nil {
			ev["input"] = te.Input
		}
		if te.Output != nil {
			ev["output"] = te.Output
		}
		if te.Sync != "" {
			ev["sync"] = ir.String(te.Sync)
		}
		if te.Binding != nil {
			ev["binding"] = te.Binding
		}
		if te.FaultCode != "" {
			ev["faultCode"] = ir.String(te.FaultCode)
		}
		trace[i] = ev
	}

	return ir.MarshalCanonical(ir.Object{
		"scenario": ir.String(name),
		"trace":    trace,
	})
}

// AssertGolden compares a result's trace snapshot against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	snapshot, err := Snapshot(name, result)
	if err != nil {
		t.Fatalf("snapshot %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, snapshot)
}
