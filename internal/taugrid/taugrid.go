// Package taugrid generates the decay-parameter grids searched by the fitter.
//
// NS/NSS/NSSC are fitted by a deterministic grid search over tau values.
//
// Why grid search?
//   - It avoids the local-minima issues of nonlinear optimization.
//   - It is deterministic given the same inputs and flags.
//   - With tiny parameter counts a modest grid is fast enough for daily
//     RV screens.
package taugrid

import (
	"fmt"
	"math"

	"github.com/o15CR/rv-curves/internal/domain"
)

// LogSpace generates steps log-spaced points between min and max (inclusive).
func LogSpace(min, max float64, steps int) ([]float64, error) {
	if !(isFinite(min) && isFinite(max) && min > 0 && max > min) {
		return nil, fmt.Errorf("%w: tau range min=%v max=%v (must be finite, >0, and max>min)",
			domain.ErrConfigInvalid, min, max)
	}
	if steps < 2 {
		return nil, fmt.Errorf("%w: tau steps must be >= 2, got %d", domain.ErrConfigInvalid, steps)
	}

	lnMin := math.Log(min)
	lnMax := math.Log(max)
	step := (lnMax - lnMin) / float64(steps-1)

	out := make([]float64, steps)
	for i := range out {
		out[i] = math.Exp(lnMin + step*float64(i))
	}
	return out, nil
}

// GridNS returns the NS grid: single-tau tuples.
func GridNS(min, max float64, steps int) ([][]float64, error) {
	values, err := LogSpace(min, max, steps)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(values))
	for i, v := range values {
		out[i] = []float64{v}
	}
	return out, nil
}

// GridNSS returns the NSS grid: [tau1, tau2] tuples with tau1 < tau2 and
// tau2 >= tau1 * minRatio.
func GridNSS(min, max float64, steps int, minRatio float64) ([][]float64, error) {
	values, err := LogSpace(min, max, steps)
	if err != nil {
		return nil, err
	}
	minRatio = math.Max(minRatio, 1.0)

	var out [][]float64
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			if values[j] >= values[i]*minRatio {
				out = append(out, []float64{values[i], values[j]})
			}
		}
	}
	return out, nil
}

// GridNSSC returns the NSSC grid: [tau1, tau2, tau3] tuples, strictly
// increasing with the minimum ratio between successive decays.
func GridNSSC(min, max float64, steps int, minRatio float64) ([][]float64, error) {
	values, err := LogSpace(min, max, steps)
	if err != nil {
		return nil, err
	}
	minRatio = math.Max(minRatio, 1.0)

	var out [][]float64
	for i := 0; i < len(values); i++ {
		for j := i + 1; j < len(values); j++ {
			if values[j] < values[i]*minRatio {
				continue
			}
			for k := j + 1; k < len(values); k++ {
				if values[k] >= values[j]*minRatio {
					out = append(out, []float64{values[i], values[j], values[k]})
				}
			}
		}
	}
	return out, nil
}

// ForKind returns the grid for the given model kind.
func ForKind(kind domain.ModelKind, cfg *domain.FitConfig) ([][]float64, error) {
	switch kind {
	case domain.NS:
		return GridNS(cfg.TauMin, cfg.TauMax, cfg.TauStepsNS)
	case domain.NSS:
		return GridNSS(cfg.TauMin, cfg.TauMax, cfg.TauStepsNSS, cfg.TauMinRatio)
	case domain.NSSC:
		return GridNSSC(cfg.TauMin, cfg.TauMax, cfg.TauStepsNSSC, cfg.TauMinRatio)
	}
	return nil, fmt.Errorf("%w: unknown model kind %d", domain.ErrConfigInvalid, kind)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
