package tests

import (
	"context"
	"testing"

	"github.com/aretw0/tops/pkg/domain"
	"github.com/aretw0/tops/pkg/ports"
)

// ChartLoaderContractTest is a reusable test suite that verifies if an adapter complies with ports.ChartLoader.
// want lists the declarations the loader is expected to return, keyed by state name.
func ChartLoaderContractTest(t *testing.T, loader ports.ChartLoader, want map[string]domain.Declaration) {
	t.Helper()
	ctx := context.Background()

	t.Run("Declarations_Complete", func(t *testing.T) {
		decls, err := loader.Declarations(ctx)
		if err != nil {
			t.Fatalf("unexpected error loading declarations: %v", err)
		}
		if len(decls) != len(want) {
			t.Fatalf("expected %d declarations, got %d", len(want), len(decls))
		}
		for _, d := range decls {
			expected, ok := want[d.Name]
			if !ok {
				t.Errorf("unexpected declaration %q", d.Name)
				continue
			}
			if d.Initial != expected.Initial || d.Parent != expected.Parent {
				t.Errorf("declaration %q mismatch: got initial=%q parent=%q, want initial=%q parent=%q",
					d.Name, d.Initial, d.Parent, expected.Initial, expected.Parent)
			}
		}
	})

	t.Run("Declarations_Deterministic", func(t *testing.T) {
		first, err := loader.Declarations(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := loader.Declarations(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := range first {
			if first[i].Name != second[i].Name {
				t.Fatalf("order differs at %d: %q vs %q", i, first[i].Name, second[i].Name)
			}
		}
	})
}
