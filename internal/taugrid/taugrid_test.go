package taugrid

import (
	"errors"
	"math"
	"testing"

	"github.com/o15CR/rv-curves/internal/domain"
)

func TestLogSpaceIncludesEndpoints(t *testing.T) {
	v, err := LogSpace(0.1, 10.0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(v[0]-0.1) > 1e-12 {
		t.Errorf("first = %v, want 0.1", v[0])
	}
	if math.Abs(v[len(v)-1]-10.0) > 1e-12 {
		t.Errorf("last = %v, want 10", v[len(v)-1])
	}
}

func TestLogSpaceInvalid(t *testing.T) {
	tests := []struct {
		name  string
		min   float64
		max   float64
		steps int
	}{
		{"Zero min", 0, 10, 5},
		{"Negative min", -1, 10, 5},
		{"Max below min", 10, 1, 5},
		{"One step", 0.1, 10, 1},
		{"NaN max", 0.1, math.NaN(), 5},
		{"Inf max", 0.1, math.Inf(1), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LogSpace(tt.min, tt.max, tt.steps); !errors.Is(err, domain.ErrConfigInvalid) {
				t.Errorf("err = %v, want ErrConfigInvalid", err)
			}
		})
	}
}

func TestGridNSSOrderingAndRatio(t *testing.T) {
	grid, err := GridNSS(0.1, 10.0, 6, 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid) == 0 {
		t.Fatal("empty NSS grid")
	}
	for _, taus := range grid {
		if !(taus[0] < taus[1]) {
			t.Fatalf("tuple %v not strictly increasing", taus)
		}
		if taus[1] < taus[0]*1.5 {
			t.Fatalf("tuple %v violates min ratio", taus)
		}
	}
}

func TestGridNSSCEnforcesOrder(t *testing.T) {
	grid, err := GridNSSC(0.1, 10.0, 6, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	for _, taus := range grid {
		if !(taus[0] < taus[1] && taus[1] < taus[2]) {
			t.Fatalf("tuple %v not strictly increasing", taus)
		}
	}
}

func TestGridNSSCRatioFiltersTuples(t *testing.T) {
	loose, err := GridNSSC(0.5, 16.0, 6, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	tight, err := GridNSSC(0.5, 16.0, 6, 2.0)
	if err != nil {
		t.Fatal(err)
	}
	if len(tight) >= len(loose) {
		t.Errorf("tighter ratio should shrink the grid: loose=%d tight=%d", len(loose), len(tight))
	}
	for _, taus := range tight {
		if taus[1] < taus[0]*2.0 || taus[2] < taus[1]*2.0 {
			t.Fatalf("tuple %v violates ratio 2.0", taus)
		}
	}
}

func TestForKindMatchesSteps(t *testing.T) {
	cfg := domain.DefaultFitConfig()
	cfg.TauMin = 1.0
	cfg.TauMax = 4.0
	cfg.TauStepsNS = 3

	grid, err := ForKind(domain.NS, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(grid) != 3 {
		t.Fatalf("NS grid size = %d, want 3", len(grid))
	}
	want := []float64{1, 2, 4}
	for i, taus := range grid {
		if math.Abs(taus[0]-want[i]) > 1e-9 {
			t.Errorf("grid[%d] = %v, want %v", i, taus[0], want[i])
		}
	}
}
