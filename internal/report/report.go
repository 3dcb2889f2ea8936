// Package report computes residuals and cheap/rich rankings and formats the
// terminal output.
//
// Formatting lives in one place so the math and fitting code stays clean and
// testable, and output changes are localized.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/o15CR/rv-curves/internal/curvemodel"
	"github.com/o15CR/rv-curves/internal/domain"
	"github.com/o15CR/rv-curves/internal/selection"
)

// Rankings holds the top-N cheap and rich bonds.
type Rankings struct {
	Cheap []domain.Residual
	Rich  []domain.Residual
}

// ComputeResiduals evaluates the fitted curve at every observation tenor and
// returns per-bond residuals in observation order. A non-finite prediction is
// a computation failure, not a skippable candidate.
func ComputeResiduals(points []domain.Observation, fit domain.FitResult) ([]domain.Residual, error) {
	out := make([]domain.Residual, 0, len(points))
	for _, p := range points {
		yFit := curvemodel.PredictModel(fit.Model, p.Tenor)
		if math.IsNaN(yFit) || math.IsInf(yFit, 0) {
			return nil, fmt.Errorf("%w: non-finite prediction for %q at tenor %v",
				domain.ErrComputeFailed, p.ID, p.Tenor)
		}
		out = append(out, domain.Residual{
			Obs:      p,
			YFit:     yFit,
			Residual: p.Y - yFit,
		})
	}
	return out, nil
}

// RankCheapRich ranks the top cheap (largest residual first) and rich (most
// negative first) bonds. Equal residuals keep observation order, so the
// result is deterministic for identical inputs.
func RankCheapRich(residuals []domain.Residual, topN int) Rankings {
	if topN < 0 {
		topN = 0
	}

	cheap := make([]domain.Residual, len(residuals))
	copy(cheap, residuals)
	sort.SliceStable(cheap, func(a, b int) bool { return cheap[a].Residual > cheap[b].Residual })

	rich := make([]domain.Residual, len(residuals))
	copy(rich, residuals)
	sort.SliceStable(rich, func(a, b int) bool { return rich[a].Residual < rich[b].Residual })

	n := topN
	if n > len(residuals) {
		n = len(residuals)
	}
	return Rankings{
		Cheap: cheap[:n:n],
		Rich:  rich[:n:n],
	}
}

// FormatRunSummary renders dataset stats, fit diagnostics, and the chosen
// model.
func FormatRunSummary(stats domain.DatasetStats, sel *selection.Selection, cfg *domain.FitConfig) string {
	var out strings.Builder

	out.WriteString("=== rv - RV Curve Fit (FRED-based) ===\n")
	fmt.Fprintf(&out, "Rating: %s\n", cfg.Rating)
	fmt.Fprintf(&out, "Sample: n=%d | tenor=[%.2f, %.2f]y\n", cfg.SampleCount, cfg.TenorMin, cfg.TenorMax)
	fmt.Fprintf(&out, "Points: n=%d | tenor=[%.3f, %.3f] | y=[%.2f, %.2f]bp\n",
		stats.N, stats.TenorMin, stats.TenorMax, stats.YMin, stats.YMax)

	out.WriteString("\nModel diagnostics:\n")
	for _, fit := range sel.Fits {
		chosen := " "
		if fit.Model.Kind == sel.Best.Model.Kind {
			chosen = "*"
		}
		fmt.Fprintf(&out, "%s %-14s SSE=%.3f RMSE=%.3fbp BIC=%.3f\n",
			chosen, fit.Model.Kind, fit.Quality.SSE, fit.Quality.RMSE, fit.Quality.BIC)
	}
	for _, skip := range sel.Skipped {
		fmt.Fprintf(&out, "  (skipped %s) %s\n", skip.Kind, skip.Reason)
	}

	out.WriteString("\nChosen model:\n")
	fmt.Fprintf(&out, "- %s\n", sel.Best.Model.Kind)
	fmt.Fprintf(&out, "- betas: %s\n", fmtVec(sel.Best.Model.Betas))
	fmt.Fprintf(&out, "- taus : %s\n", fmtVec(sel.Best.Model.Taus))
	out.WriteString("\n")

	return out.String()
}

// FormatRankings renders the cheap/rich tables.
func FormatRankings(r Rankings) string {
	var out strings.Builder

	out.WriteString("Top cheap (positive residual):\n")
	out.WriteString(formatTable(r.Cheap))
	out.WriteString("\n")

	out.WriteString("Top rich (negative residual):\n")
	out.WriteString(formatTable(r.Rich))

	return out.String()
}

func formatTable(rows []domain.Residual) string {
	var out strings.Builder
	fmt.Fprintf(&out, "%-24s %8s %12s %12s %12s %-10s\n",
		"id", "tenor", "y_obs", "y_fit", "residual", "rating")
	fmt.Fprintf(&out, "%s %s %s %s %s %s\n",
		strings.Repeat("-", 24), strings.Repeat("-", 8), strings.Repeat("-", 12),
		strings.Repeat("-", 12), strings.Repeat("-", 12), strings.Repeat("-", 10))

	for _, r := range rows {
		fmt.Fprintf(&out, "%-24s %8.3f %12.4f %12.4f %12.4f %-10s\n",
			truncate(r.Obs.ID, 24), r.Obs.Tenor, r.Obs.Y, r.YFit, r.Residual,
			truncate(r.Obs.Rating, 10))
	}
	return out.String()
}

func fmtVec(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%.6f", x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
