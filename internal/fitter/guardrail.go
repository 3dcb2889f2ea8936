package fitter

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/o15CR/rv-curves/internal/curvemodel"
	"github.com/o15CR/rv-curves/internal/domain"
)

// shapeSamples is the number of uniform samples used by both guardrails.
const shapeSamples = 25

// monoTol is the signed tolerance for the short-end monotonicity check.
const monoTol = 1e-9

// shortWindowMinPoints is the minimum front-window size for the auto
// direction probe; below it the probe falls back to the shortest points.
const shortWindowMinPoints = 3

// shortFallbackPoints is the fallback sample size for the direction probe.
const shortFallbackPoints = 5

// violatesNonNegativity reports whether the candidate curve dips below zero
// anywhere on a uniform sampling of [0, tMax].
func violatesNonNegativity(kind domain.ModelKind, betas, taus []float64, tMax float64) bool {
	for s := 0; s < shapeSamples; s++ {
		t := tMax * float64(s) / float64(shapeSamples-1)
		if curvemodel.Predict(kind, t, betas, taus) < 0 {
			return true
		}
	}
	return false
}

// violatesMonotonicity reports whether successive samples of the candidate
// curve on [0, window] move against the required direction by more than the
// tolerance. dir is +1 for increasing, -1 for decreasing.
func violatesMonotonicity(kind domain.ModelKind, betas, taus []float64, window float64, dir int) bool {
	prev := curvemodel.Predict(kind, 0, betas, taus)
	for s := 1; s < shapeSamples; s++ {
		t := window * float64(s) / float64(shapeSamples-1)
		cur := curvemodel.Predict(kind, t, betas, taus)
		diff := cur - prev
		if dir > 0 && diff < -monoTol {
			return true
		}
		if dir < 0 && diff > monoTol {
			return true
		}
		prev = cur
	}
	return false
}

// resolveDirection maps the configured monotonicity mode to a signed
// direction: +1 up, -1 down, 0 off. Auto infers the direction once, before
// fitting, from a weighted linear regression of y on t over the front window.
func resolveDirection(opts Options, tenors, y, w []float64) int {
	switch opts.ShortEndMonotone {
	case domain.MonotoneUp:
		return 1
	case domain.MonotoneDown:
		return -1
	case domain.MonotoneAuto:
		return inferDirection(tenors, y, w, opts.ShortEndWindow)
	}
	return 0
}

// inferDirection estimates the short-end slope sign. When the front window
// holds fewer than three points it falls back to the five shortest tenors.
func inferDirection(tenors, y, w []float64, window float64) int {
	var xs, ys, ws []float64
	for i, t := range tenors {
		if t <= window {
			xs = append(xs, t)
			ys = append(ys, y[i])
			ws = append(ws, w[i])
		}
	}

	if len(xs) < shortWindowMinPoints {
		idx := make([]int, len(tenors))
		for i := range idx {
			idx[i] = i
		}
		sort.Slice(idx, func(a, b int) bool { return tenors[idx[a]] < tenors[idx[b]] })

		take := shortFallbackPoints
		if take > len(idx) {
			take = len(idx)
		}
		xs = xs[:0]
		ys = ys[:0]
		ws = ws[:0]
		for _, i := range idx[:take] {
			xs = append(xs, tenors[i])
			ys = append(ys, y[i])
			ws = append(ws, w[i])
		}
	}

	if len(xs) < 2 {
		return 1
	}

	_, slope := stat.LinearRegression(xs, ys, ws, false)
	if slope < 0 {
		return -1
	}
	return 1
}
