package design

import (
	"math"
	"testing"
)

func linspace(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	return x
}

func TestNaturalSplineBasis_Shape(t *testing.T) {
	x := linspace(100)
	basis, err := NaturalSplineBasis(x, 4)
	if err != nil {
		t.Fatalf("NaturalSplineBasis failed: %v", err)
	}
	if len(basis) != 100 {
		t.Fatalf("expected 100 rows, got %d", len(basis))
	}
	for i, row := range basis {
		if len(row) != 4 {
			t.Fatalf("row %d has %d columns, want 4", i, len(row))
		}
	}
}

func TestNaturalSplineBasis_LinearTermIsRescaledX(t *testing.T) {
	x := linspace(11)
	basis, err := NaturalSplineBasis(x, 3)
	if err != nil {
		t.Fatalf("NaturalSplineBasis failed: %v", err)
	}

	// First column is x rescaled to [0,1].
	for i := range x {
		want := float64(i) / 10
		if math.Abs(basis[i][0]-want) > 1e-12 {
			t.Errorf("basis[%d][0] = %g, want %g", i, basis[i][0], want)
		}
	}
}

func TestNaturalSplineBasis_ZeroAtLeftBoundary(t *testing.T) {
	x := linspace(50)
	basis, err := NaturalSplineBasis(x, 4)
	if err != nil {
		t.Fatalf("NaturalSplineBasis failed: %v", err)
	}
	// All truncated-power terms vanish at the left boundary knot.
	for j := 0; j < 4; j++ {
		if math.Abs(basis[0][j]) > 1e-12 {
			t.Errorf("basis[0][%d] = %g, want 0", j, basis[0][j])
		}
	}
}

func TestNaturalSplineBasis_LinearBeyondBoundary(t *testing.T) {
	// Natural constraint: second differences vanish past the last knot, so
	// the basis is linear there. Check the last basis function on three
	// points beyond the boundary appended to the fit range.
	n := 200
	x := linspace(n)
	basis, err := NaturalSplineBasis(x, 5)
	if err != nil {
		t.Fatalf("NaturalSplineBasis failed: %v", err)
	}

	// The boundary knot is the max of x, so the very last rows sit at the
	// boundary; check near-linearity of each function over the final step
	// by comparing one-sided slopes at the last three points.
	for j := 0; j < 5; j++ {
		s1 := basis[n-2][j] - basis[n-3][j]
		s2 := basis[n-1][j] - basis[n-2][j]
		// Cubic curvature would make these slopes diverge sharply; the
		// natural constraint keeps them close.
		if math.Abs(s2-s1) > 0.05 {
			t.Errorf("basis function %d not near-linear at boundary: slopes %g vs %g", j, s1, s2)
		}
	}
}

func TestNaturalSplineBasis_Errors(t *testing.T) {
	if _, err := NaturalSplineBasis(linspace(10), 1); err == nil {
		t.Error("df=1 should fail")
	}
	if _, err := NaturalSplineBasis(linspace(3), 4); err == nil {
		t.Error("too few points should fail")
	}
	// All points equal: degenerate knots.
	same := []float64{2, 2, 2, 2, 2, 2}
	if _, err := NaturalSplineBasis(same, 2); err == nil {
		t.Error("constant input should fail with degenerate knots")
	}
}

func TestEmpiricalQuantile(t *testing.T) {
	sorted := []float64{0, 1, 2, 3, 4}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 0},
		{1, 4},
		{0.5, 2},
		{0.25, 1},
		{0.125, 0.5},
	}
	for _, tt := range tests {
		if got := empiricalQuantile(sorted, tt.p); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("empiricalQuantile(%g) = %g, want %g", tt.p, got, tt.want)
		}
	}
}
