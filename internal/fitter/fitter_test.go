package fitter

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/o15CR/rv-curves/internal/curvemodel"
	"github.com/o15CR/rv-curves/internal/domain"
)

func nsPoints(tenors []float64, betas, taus []float64) []domain.Observation {
	points := make([]domain.Observation, len(tenors))
	for i, t := range tenors {
		points[i] = domain.Observation{
			ID:     fmt.Sprintf("B%d", i),
			Tenor:  t,
			Y:      curvemodel.Predict(domain.NS, t, betas, taus),
			Weight: 1.0,
		}
	}
	return points
}

func maxAbsDiff(a, b []float64) float64 {
	m := 0.0
	for i := range a {
		if d := math.Abs(a[i] - b[i]); d > m {
			m = d
		}
	}
	return m
}

func TestFitModelRecoversNS(t *testing.T) {
	trueBetas := []float64{100, -20, 50}
	trueTaus := []float64{2.0}
	points := nsPoints([]float64{0.5, 1, 2, 5, 10, 20}, trueBetas, trueTaus)
	grid := [][]float64{{1.0}, {2.0}, {4.0}}

	fit, err := FitModel(domain.NS, points, grid, Options{Workers: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if fit.Taus[0] != 2.0 {
		t.Errorf("tau = %v, want 2", fit.Taus[0])
	}
	if d := maxAbsDiff(fit.Betas, trueBetas); d >= 1e-9 {
		t.Errorf("beta error = %v, want < 1e-9", d)
	}
	if fit.SSE >= 1e-18 {
		t.Errorf("SSE = %v, want < 1e-18", fit.SSE)
	}
	if !(fit.RMSE >= 0 && fit.RMSE < 1e-9) {
		t.Errorf("RMSE = %v", fit.RMSE)
	}
}

func TestFitModelDeterministicAcrossWorkerCounts(t *testing.T) {
	trueBetas := []float64{120, -30, 40}
	trueTaus := []float64{2.0}
	tenors := make([]float64, 20)
	for i := range tenors {
		tenors[i] = 0.5 + float64(i)*0.5
	}
	points := nsPoints(tenors, trueBetas, trueTaus)
	grid := [][]float64{{0.5}, {1.0}, {2.0}, {4.0}, {8.0}}

	ref, err := FitModel(domain.NS, points, grid, Options{Workers: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, workers := range []int{2, 4, 8} {
		fit, err := FitModel(domain.NS, points, grid, Options{Workers: workers}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if fit.SSE != ref.SSE || fit.RMSE != ref.RMSE {
			t.Errorf("workers=%d: quality differs from single-worker run", workers)
		}
		for j := range ref.Betas {
			if fit.Betas[j] != ref.Betas[j] {
				t.Errorf("workers=%d: beta[%d] = %v, want %v", workers, j, fit.Betas[j], ref.Betas[j])
			}
		}
		for j := range ref.Taus {
			if fit.Taus[j] != ref.Taus[j] {
				t.Errorf("workers=%d: tau[%d] differs", workers, j)
			}
		}
	}
}

func TestFitModelTieBreaksOnGridIndex(t *testing.T) {
	// Two bitwise-identical tuples produce exactly equal SSE; the winner must
	// be the first grid entry. The returned tau slice aliases the grid, so
	// slice identity identifies the chosen candidate.
	points := nsPoints([]float64{0.5, 1, 2, 5, 10, 20}, []float64{100, -20, 50}, []float64{2.0})
	grid := [][]float64{{2.0}, {2.0}}

	fit, err := FitModel(domain.NS, points, grid, Options{Workers: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if &fit.Taus[0] != &grid[0][0] {
		t.Error("tie should break to the smaller canonical grid index")
	}
}

func TestFitModelNoData(t *testing.T) {
	_, err := FitModel(domain.NS, nil, [][]float64{{2.0}}, Options{}, nil)
	if !errors.Is(err, domain.ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestFitModelNonNegativityRejectsAllCandidates(t *testing.T) {
	// A curve that is negative everywhere: every candidate fits it closely
	// and every candidate violates non-negativity, with no fallback.
	points := nsPoints([]float64{0.5, 1, 2, 5, 10}, []float64{-50, -10, 0}, []float64{2.0})
	grid := [][]float64{{1.0}, {2.0}, {4.0}}

	_, err := FitModel(domain.NS, points, grid, Options{EnforceNonNegative: true}, nil)
	if !errors.Is(err, domain.ErrFitFailed) {
		t.Errorf("err = %v, want ErrFitFailed", err)
	}
}

func TestFitModelMonotoneFallback(t *testing.T) {
	// Strictly decreasing short end contradicts the forced "up" direction.
	// The fitter must retry once without monotonicity and still recover.
	trueBetas := []float64{100, 50, 0}
	trueTaus := []float64{2.0}
	points := nsPoints([]float64{0.1, 0.3, 0.5, 1, 2, 5, 10}, trueBetas, trueTaus)
	grid := [][]float64{{2.0}}

	fit, err := FitModel(domain.NS, points, grid, Options{
		ShortEndMonotone: domain.MonotoneUp,
		ShortEndWindow:   1.0,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if d := maxAbsDiff(fit.Betas, trueBetas); d >= 1e-8 {
		t.Errorf("fallback fit beta error = %v", d)
	}
}

func TestFitModelRobustSuppressesOutlier(t *testing.T) {
	trueBetas := []float64{100, -20, 50}
	trueTaus := []float64{2.0}
	tenors := make([]float64, 20)
	for i := range tenors {
		tenors[i] = 0.5 + float64(i)*0.5
	}
	points := nsPoints(tenors, trueBetas, trueTaus)
	points[7].Y += 500 // single gross outlier

	grid := [][]float64{{1.0}, {2.0}, {4.0}}

	plain, err := FitModel(domain.NS, points, grid, Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	robust, err := FitModel(domain.NS, points, grid, Options{
		Robust:      domain.RobustHuber,
		RobustIters: 2,
		RobustK:     1.5,
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	plainErr := maxAbsDiff(plain.Betas, trueBetas)
	robustErr := maxAbsDiff(robust.Betas, trueBetas)
	if robustErr >= plainErr*0.3 {
		t.Errorf("robust beta error %v not materially below plain %v", robustErr, plainErr)
	}
}

func TestReweightHuberFloorsWeights(t *testing.T) {
	wBase := []float64{1, 1, 1, 1, 2}
	wWork := make([]float64, len(wBase))
	copy(wWork, wBase)
	resid := []float64{0, 0, 0, 0, 1e9}

	reweightHuber(wWork, wBase, resid, 1.5)

	for i := 0; i < 4; i++ {
		if wWork[i] != wBase[i] {
			t.Errorf("inlier %d reweighted: %v", i, wWork[i])
		}
	}
	if wWork[4] != 1e-3*wBase[4] {
		t.Errorf("outlier weight = %v, want floor %v", wWork[4], 1e-3*wBase[4])
	}
}

func TestPriorRowsInvisibleToSSE(t *testing.T) {
	trueBetas := []float64{100, -20, 50}
	trueTaus := []float64{2.0}
	points := nsPoints([]float64{1, 2, 3, 5, 7, 10, 15, 20}, trueBetas, trueTaus)
	grid := [][]float64{{2.0}}

	prior := &BaselinePrior{
		Anchors: []AnchorPoint{{Tenor: 0.1, Y: 0, Weight: 10.0}},
	}
	fit, err := FitModel(domain.NS, points, grid, Options{}, prior)
	if err != nil {
		t.Fatal(err)
	}

	// Reported SSE must equal the weighted SSE recomputed over real
	// observations only, even though the anchor row influenced beta.
	want := 0.0
	for _, p := range points {
		r := p.Y - curvemodel.Predict(domain.NS, p.Tenor, fit.Betas, fit.Taus)
		want += p.Weight * r * r
	}
	if math.Abs(fit.SSE-want) > 1e-12*math.Max(1, want) {
		t.Errorf("SSE = %v, want %v (real observations only)", fit.SSE, want)
	}
}

func TestAnchorPullsShortEnd(t *testing.T) {
	// Sparse below 1y: the anchor should pull y(0.1) toward its target.
	trueBetas := []float64{100, -80, 120}
	trueTaus := []float64{2.0}
	points := nsPoints([]float64{1, 1.5, 2, 3, 5, 7, 10, 15, 20, 30}, trueBetas, trueTaus)
	grid := [][]float64{{1.0}, {2.0}, {4.0}}

	free, err := FitModel(domain.NS, points, grid, Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	sigma := 3.0
	anchored, err := FitModel(domain.NS, points, grid, Options{}, &BaselinePrior{
		Anchors: []AnchorPoint{{Tenor: 0.1, Y: 40, Weight: 1 / (sigma * sigma)}},
	})
	if err != nil {
		t.Fatal(err)
	}

	yFree := curvemodel.Predict(domain.NS, 0.1, free.Betas, free.Taus)
	yAnchored := curvemodel.Predict(domain.NS, 0.1, anchored.Betas, anchored.Taus)
	if math.Abs(yAnchored-40) > math.Abs(yFree-40) {
		t.Errorf("anchor did not pull short end: free=%v anchored=%v", yFree, yAnchored)
	}
}

func TestInferDirection(t *testing.T) {
	tests := []struct {
		name   string
		tenors []float64
		y      []float64
		window float64
		want   int
	}{
		{"Rising front", []float64{0.2, 0.4, 0.6, 0.8, 2, 5}, []float64{10, 20, 30, 40, 60, 80}, 1.0, 1},
		{"Falling front", []float64{0.2, 0.4, 0.6, 0.8, 2, 5}, []float64{40, 30, 20, 10, 5, 2}, 1.0, -1},
		{"Sparse window falls back to shortest five", []float64{2, 3, 4, 5, 6, 7}, []float64{10, 20, 30, 40, 50, 60}, 1.0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := make([]float64, len(tt.tenors))
			for i := range w {
				w[i] = 1
			}
			if got := inferDirection(tt.tenors, tt.y, w, tt.window); got != tt.want {
				t.Errorf("inferDirection = %d, want %d", got, tt.want)
			}
		})
	}
}
