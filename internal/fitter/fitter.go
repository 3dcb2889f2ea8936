// Package fitter implements the low-level fitting routine for a single model
// kind.
//
// Given tenors t_i, observed values y_i, weights w_i and a list of candidate
// tau tuples, it solves a weighted least-squares problem for the best beta
// coefficients of every candidate, filters candidates through the shape
// guardrails, and returns the lowest-SSE survivor. An optional Huber outer
// loop reweights outliers and repeats the search.
//
// Candidates are independent and pure in their inputs, so the grid is
// evaluated in parallel; results land in a slice indexed by canonical grid
// position and are reduced sequentially, which makes the chosen candidate
// identical across runs and worker counts.
package fitter

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/o15CR/rv-curves/internal/curvemodel"
	"github.com/o15CR/rv-curves/internal/domain"
	"github.com/o15CR/rv-curves/internal/lsq"
)

// Options control the guardrails and the robust outer loop for one fit.
type Options struct {
	ShortEndMonotone   domain.ShortEndMonotone
	ShortEndWindow     float64
	EnforceNonNegative bool

	Robust      domain.RobustKind
	RobustIters int
	RobustK     float64

	// Workers bounds parallel candidate evaluation; <= 0 means NumCPU.
	Workers int
}

// AnchorPoint is a synthetic short-tenor observation pulling the front end
// toward a target without contributing to reported SSE.
type AnchorPoint struct {
	Tenor  float64
	Y      float64
	Weight float64
}

// BaselinePrior augments the least-squares system with soft prior rows:
// per-observation shrinkage targets plus front-end anchors. Prior rows never
// contribute to the reported SSE or the observation count.
type BaselinePrior struct {
	// Y holds shrinkage targets aligned with the observations.
	Y []float64
	// Weights holds the shrinkage row weights (1/sigma^2).
	Weights []float64
	// Anchors holds the front-end anchor rows.
	Anchors []AnchorPoint
}

// ModelFit is the best fit for a single model kind.
type ModelFit struct {
	Kind  domain.ModelKind
	Betas []float64
	Taus  []float64
	SSE   float64
	RMSE  float64
}

type candidate struct {
	idx   int
	taus  []float64
	betas []float64
	sse   float64
}

// FitModel fits a single model kind over a tau grid.
//
// The search is deterministic: ties in SSE break toward the smaller canonical
// grid index. When the monotonicity guardrail empties the candidate set, the
// same grid is retried once without it (non-negativity stays on).
func FitModel(kind domain.ModelKind, points []domain.Observation, grid [][]float64, opts Options, prior *BaselinePrior) (*ModelFit, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: no observations to fit", domain.ErrNoData)
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("%w: empty tau grid for model %s", domain.ErrFitFailed, kind)
	}
	if prior != nil && len(prior.Y) > 0 && len(prior.Y) != len(points) {
		return nil, fmt.Errorf("%w: baseline prior length %d != observation count %d",
			domain.ErrConfigInvalid, len(prior.Y), len(points))
	}
	if prior != nil && len(prior.Weights) != len(prior.Y) {
		return nil, fmt.Errorf("%w: baseline prior weights length %d != targets length %d",
			domain.ErrConfigInvalid, len(prior.Weights), len(prior.Y))
	}

	n := len(points)
	tenors := make([]float64, n)
	y := make([]float64, n)
	wBase := make([]float64, n)
	for i, p := range points {
		if !isFinite(p.Tenor) || p.Tenor <= 0 {
			return nil, fmt.Errorf("%w: observation %q has invalid tenor %v", domain.ErrFitFailed, p.ID, p.Tenor)
		}
		if !isFinite(p.Y) {
			return nil, fmt.Errorf("%w: observation %q has non-finite value", domain.ErrFitFailed, p.ID)
		}
		if !isFinite(p.Weight) || p.Weight <= 0 {
			return nil, fmt.Errorf("%w: observation %q has invalid weight %v", domain.ErrFitFailed, p.ID, p.Weight)
		}
		tenors[i] = p.Tenor
		y[i] = p.Y
		wBase[i] = p.Weight
	}

	dir := resolveDirection(opts, tenors, y, wBase)
	tMax := maxOf(tenors)

	// Working weights start at base and are mutated only by the robust loop.
	wWork := make([]float64, n)
	copy(wWork, wBase)

	best, err := fitOnce(kind, tenors, y, wWork, grid, opts, prior, dir, tMax)
	if err != nil {
		return nil, err
	}

	if opts.Robust == domain.RobustHuber {
		resid := make([]float64, n)
		for iter := 0; iter < opts.RobustIters; iter++ {
			for i := range tenors {
				resid[i] = y[i] - curvemodel.Predict(kind, tenors[i], best.betas, best.taus)
			}
			reweightHuber(wWork, wBase, resid, opts.RobustK)

			best, err = fitOnce(kind, tenors, y, wWork, grid, opts, prior, dir, tMax)
			if err != nil {
				return nil, err
			}
		}
	}

	return &ModelFit{
		Kind:  kind,
		Betas: best.betas,
		Taus:  best.taus,
		SSE:   best.sse,
		RMSE:  math.Sqrt(best.sse / float64(n)),
	}, nil
}

// fitOnce runs one full grid search with the current weights, applying the
// documented fallback when monotonicity removes every candidate.
func fitOnce(kind domain.ModelKind, tenors, y, w []float64, grid [][]float64, opts Options, prior *BaselinePrior, dir int, tMax float64) (*candidate, error) {
	best := evaluateGrid(kind, tenors, y, w, grid, opts, prior, dir, tMax)
	if best == nil && dir != 0 {
		// Data contradicts the inferred shape; retry once without the
		// monotonicity constraint.
		best = evaluateGrid(kind, tenors, y, w, grid, opts, prior, 0, tMax)
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no valid fit candidates for model %s", domain.ErrFitFailed, kind)
	}
	return best, nil
}

// evaluateGrid solves every candidate in parallel and reduces to the minimum
// (SSE, grid index).
func evaluateGrid(kind domain.ModelKind, tenors, y, w []float64, grid [][]float64, opts Options, prior *BaselinePrior, dir int, tMax float64) *candidate {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]*candidate, len(grid))
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)

	for idx, taus := range grid {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, taus []float64) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = evaluateCandidate(kind, taus, tenors, y, w, opts, prior, dir, tMax, idx)
		}(idx, taus)
	}
	wg.Wait()

	// Sequential reduction in canonical grid order keeps ties deterministic.
	var best *candidate
	for _, c := range results {
		if c == nil {
			continue
		}
		if best == nil || c.sse < best.sse {
			best = c
		}
	}
	return best
}

// evaluateCandidate builds the weighted design for one tau tuple, solves it,
// applies the shape guardrails, and computes the weighted SSE over real
// observations only. Any failure drops the candidate silently.
func evaluateCandidate(kind domain.ModelKind, taus, tenors, y, w []float64, opts Options, prior *BaselinePrior, dir int, tMax float64, idx int) *candidate {
	n := len(tenors)
	p := kind.BetaLen()

	rows := n
	if prior != nil {
		rows += len(prior.Y) + len(prior.Anchors)
	}

	xw := mat.NewDense(rows, p, nil)
	yw := mat.NewVecDense(rows, nil)
	row := make([]float64, p)

	for i := 0; i < n; i++ {
		curvemodel.FillDesignRow(kind, tenors[i], taus, row)
		sw := math.Sqrt(w[i])
		for j := 0; j < p; j++ {
			xw.Set(i, j, row[j]*sw)
		}
		yw.SetVec(i, y[i]*sw)
	}

	if prior != nil {
		r := n
		for i := range prior.Y {
			curvemodel.FillDesignRow(kind, tenors[i], taus, row)
			sw := math.Sqrt(prior.Weights[i])
			for j := 0; j < p; j++ {
				xw.Set(r, j, row[j]*sw)
			}
			yw.SetVec(r, prior.Y[i]*sw)
			r++
		}
		for _, a := range prior.Anchors {
			curvemodel.FillDesignRow(kind, a.Tenor, taus, row)
			sw := math.Sqrt(a.Weight)
			for j := 0; j < p; j++ {
				xw.Set(r, j, row[j]*sw)
			}
			yw.SetVec(r, a.Y*sw)
			r++
		}
	}

	betas, ok := lsq.Solve(xw, yw)
	if !ok {
		return nil
	}

	if opts.EnforceNonNegative && violatesNonNegativity(kind, betas, taus, tMax) {
		return nil
	}
	if dir != 0 && violatesMonotonicity(kind, betas, taus, opts.ShortEndWindow, dir) {
		return nil
	}

	// Weighted SSE over real observations only; prior rows never count.
	sse := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - curvemodel.Predict(kind, tenors[i], betas, taus)
		sse += w[i] * r * r
	}
	if !isFinite(sse) {
		return nil
	}

	return &candidate{idx: idx, taus: taus, betas: betas, sse: sse}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
