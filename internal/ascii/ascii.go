// Package ascii renders fixed-grid terminal plots of observations and the
// fitted curve.
//
// The renderer is intentionally dumb (fixed-size character grid), optimized
// for quick visual sanity checks and deterministic output.
//
// Plot elements:
//   - observed points: 'o'
//   - fitted curve: '-'
//   - highlights: 'C' (cheap), 'R' (rich)
package ascii

import (
	"fmt"
	"math"
	"strings"

	"github.com/o15CR/rv-curves/internal/curvemodel"
	"github.com/o15CR/rv-curves/internal/domain"
	"github.com/o15CR/rv-curves/internal/report"
)

const (
	minWidth  = 10
	minHeight = 5
)

// Render plots the residual points and the fitted curve on a width x height
// character grid. rankings may be nil.
func Render(residuals []domain.Residual, fit domain.FitResult, width, height int, rankings *report.Rankings) string {
	if width < minWidth {
		width = minWidth
	}
	if height < minHeight {
		height = minHeight
	}

	tMin, tMax := tenorRange(residuals)
	curve := sampleCurve(fit.Model, tMin, tMax, width)

	yMin, yMax := yRange(residuals, curve)
	yMin, yMax = padRange(yMin, yMax, 0.05)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}

	// Curve first so points can overlay it.
	for _, c := range curve {
		x := mapX(c.t, tMin, tMax, width)
		y := mapY(c.y, yMin, yMax, height)
		grid[y][x] = '-'
	}

	cheapIDs, richIDs := highlightSets(rankings)
	for _, r := range residuals {
		x := mapX(r.Obs.Tenor, tMin, tMax, width)
		y := mapY(r.Obs.Y, yMin, yMax, height)

		ch := 'o'
		if _, ok := cheapIDs[r.Obs.ID]; ok {
			ch = 'C'
		} else if _, ok := richIDs[r.Obs.ID]; ok {
			ch = 'R'
		}
		grid[y][x] = ch
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Plot: tenor=[%.3f, %.3f] years | y=[%.2f, %.2f]bp\n", tMin, tMax, yMin, yMax)
	for _, row := range grid {
		out.WriteString(string(row))
		out.WriteString("\n")
	}
	fmt.Fprintf(&out, "Legend: o=bond  -=fit (%s)  C=cheap  R=rich\n", fit.Model.Kind)
	return out.String()
}

// RenderModel plots just a fitted model over [tMin, tMax], with no
// observation overlay. Used when plotting a saved curve file.
func RenderModel(model domain.CurveModel, tMin, tMax float64, width, height int) string {
	if width < minWidth {
		width = minWidth
	}
	if height < minHeight {
		height = minHeight
	}
	if !isFinite(tMin) || !isFinite(tMax) || tMax <= tMin {
		tMin, tMax = 0.25, 30.0
	}

	curve := sampleCurve(model, tMin, tMax, width)
	yMin, yMax := yRange(nil, curve)
	yMin, yMax = padRange(yMin, yMax, 0.05)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = make([]rune, width)
		for j := range grid[i] {
			grid[i][j] = ' '
		}
	}
	for _, c := range curve {
		x := mapX(c.t, tMin, tMax, width)
		y := mapY(c.y, yMin, yMax, height)
		grid[y][x] = '-'
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Plot: tenor=[%.3f, %.3f] years | y=[%.2f, %.2f]bp\n", tMin, tMax, yMin, yMax)
	for _, row := range grid {
		out.WriteString(string(row))
		out.WriteString("\n")
	}
	fmt.Fprintf(&out, "Legend: -=fit (%s)\n", model.Kind)
	return out.String()
}

type curvePoint struct {
	t, y float64
}

func sampleCurve(model domain.CurveModel, tMin, tMax float64, n int) []curvePoint {
	if n < 2 {
		n = 2
	}
	out := make([]curvePoint, n)
	for i := range out {
		u := float64(i) / float64(n-1)
		t := tMin + u*(tMax-tMin)
		out[i] = curvePoint{t: t, y: curvemodel.PredictModel(model, t)}
	}
	return out
}

func tenorRange(residuals []domain.Residual) (float64, float64) {
	tMin, tMax := math.Inf(1), math.Inf(-1)
	for _, r := range residuals {
		tMin = math.Min(tMin, r.Obs.Tenor)
		tMax = math.Max(tMax, r.Obs.Tenor)
	}
	if !isFinite(tMin) || !isFinite(tMax) || tMax <= tMin {
		return 0.25, 30.0
	}
	return tMin, tMax
}

func yRange(residuals []domain.Residual, curve []curvePoint) (float64, float64) {
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for _, r := range residuals {
		yMin = math.Min(yMin, r.Obs.Y)
		yMax = math.Max(yMax, r.Obs.Y)
	}
	for _, c := range curve {
		yMin = math.Min(yMin, c.y)
		yMax = math.Max(yMax, c.y)
	}
	if !isFinite(yMin) || !isFinite(yMax) || yMax <= yMin {
		return 0, 1
	}
	return yMin, yMax
}

func padRange(lo, hi, frac float64) (float64, float64) {
	pad := (hi - lo) * frac
	return lo - pad, hi + pad
}

func highlightSets(rankings *report.Rankings) (cheap, rich map[string]struct{}) {
	cheap = make(map[string]struct{})
	rich = make(map[string]struct{})
	if rankings == nil {
		return cheap, rich
	}
	for _, r := range rankings.Cheap {
		cheap[r.Obs.ID] = struct{}{}
	}
	for _, r := range rankings.Rich {
		rich[r.Obs.ID] = struct{}{}
	}
	return cheap, rich
}

func mapX(t, tMin, tMax float64, width int) int {
	u := (t - tMin) / (tMax - tMin)
	return clampIdx(int(u*float64(width-1)+0.5), width)
}

func mapY(y, yMin, yMax float64, height int) int {
	u := (y - yMin) / (yMax - yMin)
	// Row 0 is the top of the plot.
	return clampIdx(int((1-u)*float64(height-1)+0.5), height)
}

func clampIdx(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
