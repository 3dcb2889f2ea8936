package visualization

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/o15CR/rv-curves/internal/curvemodel"
	"github.com/o15CR/rv-curves/internal/domain"
	"github.com/o15CR/rv-curves/internal/report"
)

// curveSamples is the number of points on the fitted-curve line.
const curveSamples = 200

// PlotOptions configures the curve chart appearance.
type PlotOptions struct {
	// Title is the main plot title (default: "RV Curve Fit").
	Title string

	// Width is the plot width in inches (default: 10).
	Width float64

	// Height is the plot height in inches (default: 6).
	Height float64

	// ShowHighlights marks the ranked cheap/rich names (default: true).
	ShowHighlights bool
}

// DefaultPlotOptions returns default plotting options.
func DefaultPlotOptions() PlotOptions {
	return PlotOptions{
		Title:          "RV Curve Fit",
		Width:          10.0,
		Height:         6.0,
		ShowHighlights: true,
	}
}

// PlotCurve creates a chart of observations and the fitted curve.
//
// The plot displays:
//   - observations as blue points
//   - the fitted curve as a dark line from t = 0 to the longest tenor
//   - ranked cheap names in red, rich names in green (optional)
//
// rankings may be nil. The returned plot can be saved with SavePlot.
func PlotCurve(residuals []domain.Residual, fit domain.FitResult, rankings *report.Rankings, opts PlotOptions) (*plot.Plot, error) {
	if len(residuals) == 0 {
		return nil, fmt.Errorf("no residuals to plot")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Tenor (years)"
	p.Y.Label.Text = "Spread (bp)"

	tMax := 0.0
	for _, r := range residuals {
		tMax = math.Max(tMax, r.Obs.Tenor)
	}

	line, err := curveLine(fit.Model, tMax)
	if err != nil {
		return nil, err
	}
	p.Add(line)
	p.Legend.Add(fit.Model.Kind.String(), line)

	cheapIDs := make(map[string]struct{})
	richIDs := make(map[string]struct{})
	if opts.ShowHighlights && rankings != nil {
		for _, r := range rankings.Cheap {
			cheapIDs[r.Obs.ID] = struct{}{}
		}
		for _, r := range rankings.Rich {
			richIDs[r.Obs.ID] = struct{}{}
		}
	}

	var plain, cheap, rich plotter.XYs
	for _, r := range residuals {
		pt := plotter.XY{X: r.Obs.Tenor, Y: r.Obs.Y}
		switch {
		case member(cheapIDs, r.Obs.ID):
			cheap = append(cheap, pt)
		case member(richIDs, r.Obs.ID):
			rich = append(rich, pt)
		default:
			plain = append(plain, pt)
		}
	}

	if err := addScatter(p, plain, "observation", "Bonds"); err != nil {
		return nil, err
	}
	if err := addScatter(p, cheap, "cheap", "Cheap"); err != nil {
		return nil, err
	}
	if err := addScatter(p, rich, "rich", "Rich"); err != nil {
		return nil, err
	}

	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

func curveLine(model domain.CurveModel, tMax float64) (*plotter.Line, error) {
	pts := make(plotter.XYs, curveSamples)
	for i := range pts {
		t := tMax * float64(i) / float64(curveSamples-1)
		pts[i] = plotter.XY{X: t, Y: curvemodel.PredictModel(model, t)}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("failed to create curve line: %w", err)
	}
	line.Color = GetColor("curve")
	line.Width = vg.Points(1.5)
	return line, nil
}

func addScatter(p *plot.Plot, pts plotter.XYs, colorKey, label string) error {
	if len(pts) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return fmt.Errorf("failed to create scatter: %w", err)
	}
	s.GlyphStyle.Color = GetColor(colorKey)
	s.GlyphStyle.Radius = vg.Points(2.5)
	p.Add(s)
	p.Legend.Add(label, s)
	return nil
}

func member(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
