// Package selection fits the enabled model kinds and picks the best one by
// BIC with guardrails.
//
// For each attempted kind the fitter reports SSE / RMSE and we compute
//
//	BIC = n * ln(max(SSE/n, 1e-12)) + k * ln(n)
//
// Selection rules:
//  1. Exclude underdetermined kinds: require n >= k + 5.
//  2. Choose the kind with minimum BIC.
//  3. If a simpler kind is within 2 BIC points of the best, pick it.
package selection

import (
	"errors"
	"fmt"
	"math"

	"github.com/o15CR/rv-curves/internal/domain"
	"github.com/o15CR/rv-curves/internal/fitter"
	"github.com/o15CR/rv-curves/internal/taugrid"
)

// minNBuffer is the number of extra observations required beyond the
// parameter count before a kind is attempted.
const minNBuffer = 5

// bicSimplicityMargin is the BIC slack within which a simpler kind wins.
const bicSimplicityMargin = 2.0

// Skip records a model kind that was not fitted and why.
type Skip struct {
	Kind   domain.ModelKind
	Reason string
}

// Selection is the output of fitting plus selection.
type Selection struct {
	Best domain.FitResult
	// Fits holds results for all attempted kinds (after guardrails).
	Fits []domain.FitResult
	// Skipped lists kinds that were not fitted, with diagnostics.
	Skipped []Skip
}

// FitAndSelect fits the configured model kinds and selects the best.
//
// baseline, when non-nil, holds baseline curve values at each observation
// tenor (for the shrinkage prior); anchorBaselines holds baseline values at
// cfg.AnchorTenors (for front-end anchors).
func FitAndSelect(points []domain.Observation, baseline, anchorBaselines []float64, cfg *domain.FitConfig) (*Selection, error) {
	n := len(points)
	if !(isFinite(cfg.TauMinRatio) && cfg.TauMinRatio > 0) {
		return nil, fmt.Errorf("%w: tau_min_ratio=%v", domain.ErrConfigInvalid, cfg.TauMinRatio)
	}

	var kinds []domain.ModelKind
	switch cfg.ModelSpec {
	case domain.SpecNS:
		kinds = []domain.ModelKind{domain.NS}
	case domain.SpecNSS:
		kinds = []domain.ModelKind{domain.NSS}
	case domain.SpecNSSC:
		kinds = []domain.ModelKind{domain.NSSC}
	default:
		kinds = domain.AllKinds
	}

	prior, err := BuildBaselinePrior(points, baseline, anchorBaselines, cfg)
	if err != nil {
		return nil, err
	}

	opts := fitter.Options{
		ShortEndMonotone:   cfg.ShortEndMonotone,
		ShortEndWindow:     cfg.ShortEndWindow,
		EnforceNonNegative: cfg.EnforceNonNegative,
		Robust:             cfg.Robust,
		RobustIters:        cfg.RobustIters,
		RobustK:            cfg.RobustK,
		Workers:            cfg.Workers,
	}

	sel := &Selection{}
	attempted := false
	for _, kind := range kinds {
		k := kind.ParamCount()
		if n < k+minNBuffer {
			sel.Skipped = append(sel.Skipped, Skip{
				Kind:   kind,
				Reason: fmt.Sprintf("n=%d < k+%d=%d", n, minNBuffer, k+minNBuffer),
			})
			continue
		}
		attempted = true

		grid, err := taugrid.ForKind(kind, cfg)
		if err != nil {
			return nil, err
		}

		fit, err := fitter.FitModel(kind, points, grid, opts, prior)
		if err != nil {
			if errors.Is(err, domain.ErrFitFailed) {
				sel.Skipped = append(sel.Skipped, Skip{Kind: kind, Reason: err.Error()})
				continue
			}
			return nil, err
		}
		sel.Fits = append(sel.Fits, toFitResult(fit, n, k))
	}

	if len(sel.Fits) == 0 {
		if attempted {
			return nil, fmt.Errorf("%w: every attempted model kind failed", domain.ErrFitFailed)
		}
		return nil, fmt.Errorf("%w: insufficient observations to fit any model", domain.ErrNoData)
	}

	switch cfg.ModelSpec {
	case domain.SpecNS, domain.SpecNSS, domain.SpecNSSC:
		sel.Best = sel.Fits[0]
	default:
		sel.Best = selectByBIC(sel.Fits)
	}

	return sel, nil
}

// BuildBaselinePrior converts baseline curve values into a soft prior:
// each baseline level becomes a synthetic observation whose sigma scales
// with the level, and each anchor tenor becomes a tight short-end row.
//
// Anchors use tenor-decay sigma: sigma(t) = floor * (1 + decay*t), tightest
// at t = 0 and looser further out.
func BuildBaselinePrior(points []domain.Observation, baseline, anchorBaselines []float64, cfg *domain.FitConfig) (*fitter.BaselinePrior, error) {
	if baseline == nil && anchorBaselines == nil {
		return nil, nil
	}

	prior := &fitter.BaselinePrior{}

	if baseline != nil {
		if len(baseline) != len(points) {
			return nil, fmt.Errorf("%w: baseline prior length %d != observation count %d",
				domain.ErrConfigInvalid, len(baseline), len(points))
		}
		if !(isFinite(cfg.PriorSigmaRel) && cfg.PriorSigmaRel > 0) {
			return nil, fmt.Errorf("%w: prior_sigma_rel=%v", domain.ErrConfigInvalid, cfg.PriorSigmaRel)
		}
		if !(isFinite(cfg.PriorSigmaFloorBP) && cfg.PriorSigmaFloorBP > 0) {
			return nil, fmt.Errorf("%w: prior_sigma_floor=%v", domain.ErrConfigInvalid, cfg.PriorSigmaFloorBP)
		}

		prior.Y = append([]float64(nil), baseline...)
		prior.Weights = make([]float64, len(baseline))
		for i, yBase := range baseline {
			if !(isFinite(yBase) && yBase > 0) {
				return nil, fmt.Errorf("%w: non-positive baseline value %v in prior", domain.ErrConfigInvalid, yBase)
			}
			sigma := math.Max(cfg.PriorSigmaRel*yBase, cfg.PriorSigmaFloorBP)
			prior.Weights[i] = 1 / (sigma * sigma)
		}
	}

	if anchorBaselines != nil {
		if len(anchorBaselines) != len(cfg.AnchorTenors) {
			return nil, fmt.Errorf("%w: anchor baseline length %d != anchor tenors length %d",
				domain.ErrConfigInvalid, len(anchorBaselines), len(cfg.AnchorTenors))
		}
		if !(isFinite(cfg.AnchorSigmaFloorBP) && cfg.AnchorSigmaFloorBP > 0) {
			return nil, fmt.Errorf("%w: anchor_sigma_floor=%v", domain.ErrConfigInvalid, cfg.AnchorSigmaFloorBP)
		}
		if !(isFinite(cfg.AnchorSigmaDecay) && cfg.AnchorSigmaDecay >= 0) {
			return nil, fmt.Errorf("%w: anchor_sigma_decay=%v", domain.ErrConfigInvalid, cfg.AnchorSigmaDecay)
		}

		for i, tenor := range cfg.AnchorTenors {
			y := anchorBaselines[i]
			if !(isFinite(y) && y > 0) {
				return nil, fmt.Errorf("%w: non-positive anchor baseline value %v", domain.ErrConfigInvalid, y)
			}
			sigma := cfg.AnchorSigmaFloorBP * (1 + cfg.AnchorSigmaDecay*tenor)
			prior.Anchors = append(prior.Anchors, fitter.AnchorPoint{
				Tenor:  tenor,
				Y:      y,
				Weight: 1 / (sigma * sigma),
			})
		}
	}

	return prior, nil
}

// BIC computes the Bayesian information criterion for a fit, where k counts
// all fitted parameters (coefficients and decays) and n counts real
// observations only.
func BIC(n int, sse float64, k int) float64 {
	nf := float64(n)
	ssePer := math.Max(sse/nf, 1e-12)
	return nf*math.Log(ssePer) + float64(k)*math.Log(nf)
}

func toFitResult(fit *fitter.ModelFit, n, k int) domain.FitResult {
	return domain.FitResult{
		Model: domain.CurveModel{
			Kind:  fit.Kind,
			Betas: fit.Betas,
			Taus:  fit.Taus,
		},
		Quality: domain.FitQuality{
			SSE:  fit.SSE,
			RMSE: fit.RMSE,
			BIC:  BIC(n, fit.SSE, k),
			N:    n,
		},
	}
}

// selectByBIC picks the minimum-BIC fit, then walks the kinds in order of
// increasing complexity and returns the first fit within the simplicity
// margin of the best.
func selectByBIC(fits []domain.FitResult) domain.FitResult {
	best := fits[0]
	for _, f := range fits[1:] {
		if f.Quality.BIC < best.Quality.BIC {
			best = f
		}
	}

	for _, kind := range domain.AllKinds {
		for _, f := range fits {
			if f.Model.Kind == kind && f.Quality.BIC <= best.Quality.BIC+bicSimplicityMargin {
				return f
			}
		}
	}
	return best
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
