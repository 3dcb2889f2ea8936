package nsbasis

import (
	"math"
	"testing"
)

func TestLimitsNearZero(t *testing.T) {
	tests := []struct {
		name string
		tau  float64
	}{
		{"Short decay", 1e-3},
		{"Unit decay", 1.0},
		{"Mid decay", 2.0},
		{"Long decay", 1e3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v1 := F1(1e-12, tt.tau)
			v2 := F2(1e-12, tt.tau)
			if math.Abs(v1-1.0) >= 1e-9 {
				t.Errorf("F1 near 0 = %v, want ~1", v1)
			}
			if math.Abs(v2) >= 1e-9 {
				t.Errorf("F2 near 0 = %v, want ~0", v2)
			}
		})
	}
}

func TestZeroTenorUsesFloor(t *testing.T) {
	// t = 0 must not divide by zero; the floor maps it to the t->0 limit.
	if v := F1(0, 2.0); !(v > 0.999999999 && v <= 1.0) {
		t.Errorf("F1(0, 2) = %v, want ~1", v)
	}
	if v := F2(0, 2.0); math.Abs(v) >= 1e-9 {
		t.Errorf("F2(0, 2) = %v, want ~0", v)
	}
}

func TestFiniteOverWideRange(t *testing.T) {
	taus := []float64{1e-3, 1e-2, 0.1, 1, 10, 100, 1e3}
	for _, tau := range taus {
		for tenor := 0.0; tenor <= 100.0; tenor += 0.5 {
			v1 := F1(tenor, tau)
			v2 := F2(tenor, tau)
			if math.IsNaN(v1) || math.IsInf(v1, 0) {
				t.Fatalf("F1(%v, %v) not finite: %v", tenor, tau, v1)
			}
			if math.IsNaN(v2) || math.IsInf(v2, 0) {
				t.Fatalf("F2(%v, %v) not finite: %v", tenor, tau, v2)
			}
		}
	}
}

func TestSeriesMatchesExpm1Branch(t *testing.T) {
	// At the switchover threshold both branches should agree closely.
	tau := 1.0
	for _, x := range []float64{9e-7, 1.1e-6} {
		direct := -math.Expm1(-x) / x
		got := F1(x*tau, tau)
		if math.Abs(got-direct) > 1e-12 {
			t.Errorf("F1 branch mismatch at x=%v: got %v, direct %v", x, got, direct)
		}
	}
}

func TestBasisBounds(t *testing.T) {
	// f1 decays from 1 toward 0; f2 is non-negative and peaks mid-curve.
	for _, tau := range []float64{0.5, 2.0, 8.0} {
		prev := 1.0
		for tenor := 0.1; tenor <= 50.0; tenor += 0.1 {
			v1 := F1(tenor, tau)
			if v1 <= 0 || v1 > 1.0 {
				t.Fatalf("F1(%v, %v) = %v out of (0, 1]", tenor, tau, v1)
			}
			if v1 > prev+1e-12 {
				t.Fatalf("F1 not decreasing at t=%v tau=%v", tenor, tau)
			}
			prev = v1
			if v2 := F2(tenor, tau); v2 < -1e-12 {
				t.Fatalf("F2(%v, %v) = %v negative", tenor, tau, v2)
			}
		}
	}
}
