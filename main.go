// Command rv is a fixed-income relative-value curve fitter.
//
// It fetches ICE BofA OAS baselines from FRED (or ingests observations from
// CSV/MAT files), fits Nelson-Siegel family curves by deterministic grid
// search, selects the model order by BIC, and reports per-bond cheap/rich
// deviations.
//
// Usage:
//
//	rv fit  [flags]    full pipeline: diagnostics, rankings, plot, exports
//	rv rank [flags]    cheap/rich rankings only (for scripting)
//	rv plot -curve curve.json [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/o15CR/rv-curves/internal/ascii"
	"github.com/o15CR/rv-curves/internal/domain"
	"github.com/o15CR/rv-curves/internal/export"
	"github.com/o15CR/rv-curves/internal/fred"
	"github.com/o15CR/rv-curves/internal/ingest"
	"github.com/o15CR/rv-curves/internal/logger"
	"github.com/o15CR/rv-curves/internal/report"
	"github.com/o15CR/rv-curves/internal/sample"
	"github.com/o15CR/rv-curves/internal/selection"
	"github.com/o15CR/rv-curves/internal/store"
	"github.com/o15CR/rv-curves/pkg/curveio"
	"github.com/o15CR/rv-curves/pkg/visualization"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "fit":
		err = runFit(os.Args[2:], false)
	case "rank":
		err = runFit(os.Args[2:], true)
	case "plot":
		err = runPlot(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		logger.Error("rv", err.Error())
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `rv - Fixed-Income RV Curve Fitter (FRED-based)

Commands:
  fit    fit a curve, print diagnostics and rankings, optionally plot/export
  rank   print cheap/rich rankings only
  plot   plot a previously exported curve JSON

Run "rv <command> -h" for command flags.`)
}

type fitFlags struct {
	cfg *domain.FitConfig

	rating      string
	model       string
	monotone    string
	robust      string
	targetDate  string
	inputCSV    string
	inputMAT    string
	cachePath   string
	noCache     bool
	refresh     bool
	noPlot      bool
	plotWidth   int
	plotHeight  int
	exportCSV   string
	exportCurve string
	plotFile    string
}

func parseFitFlags(name string, args []string) (*fitFlags, error) {
	cfg := domain.DefaultFitConfig()
	ff := &fitFlags{cfg: cfg}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.StringVar(&ff.rating, "rating", "BBB", "Rating band (AAA, AA, A, BBB, BB, B, CCC)")
	fs.IntVar(&cfg.SampleCount, "n", cfg.SampleCount, "Number of synthetic bonds to generate")
	fs.Uint64Var(&cfg.SampleSeed, "seed", cfg.SampleSeed, "Random seed for sample generation")
	fs.StringVar(&ff.model, "model", "auto", "Model(s) to fit: auto, ns, nss, nssc, all")
	fs.Float64Var(&cfg.TauMin, "tau-min", cfg.TauMin, "Minimum tau (years) for grid search")
	fs.Float64Var(&cfg.TauMax, "tau-max", cfg.TauMax, "Maximum tau (years) for grid search")
	fs.IntVar(&cfg.TauStepsNS, "tau-steps-ns", cfg.TauStepsNS, "Tau grid steps for NS")
	fs.IntVar(&cfg.TauStepsNSS, "tau-steps-nss", cfg.TauStepsNSS, "Tau grid steps per dimension for NSS")
	fs.IntVar(&cfg.TauStepsNSSC, "tau-steps-nssc", cfg.TauStepsNSSC, "Tau grid steps per dimension for NSSC")
	fs.Float64Var(&cfg.TauMinRatio, "tau-min-ratio", cfg.TauMinRatio, "Minimum ratio between successive taus")
	fs.Float64Var(&cfg.TenorMin, "tenor-min", cfg.TenorMin, "Minimum tenor (years) for generated samples")
	fs.Float64Var(&cfg.TenorMax, "tenor-max", cfg.TenorMax, "Maximum tenor (years) for generated samples")
	fs.IntVar(&cfg.TopN, "top", cfg.TopN, "Show top-N cheap and rich names")
	fs.Float64Var(&cfg.JumpProbWide, "jump-prob-wide", cfg.JumpProbWide, "Probability of a wide (cheap) outlier")
	fs.Float64Var(&cfg.JumpProbTight, "jump-prob-tight", cfg.JumpProbTight, "Probability of a tight (rich) outlier")
	fs.Float64Var(&cfg.JumpKWide, "jump-k-wide", cfg.JumpKWide, "Widening jump magnitude in sigma units")
	fs.Float64Var(&cfg.JumpKTight, "jump-k-tight", cfg.JumpKTight, "Tightening jump magnitude in sigma units")
	fs.BoolVar(&cfg.EnforceNonNegative, "non-negative", cfg.EnforceNonNegative, "Reject candidates with negative fitted values")
	fs.StringVar(&ff.monotone, "monotone", "off", "Short-end monotonicity: off, auto, up, down")
	fs.Float64Var(&cfg.ShortEndWindow, "monotone-window", cfg.ShortEndWindow, "Short-end window (years) for the monotonicity guardrail")
	fs.StringVar(&ff.robust, "robust", "off", "Outlier-robust mode: off, huber")
	fs.IntVar(&cfg.RobustIters, "robust-iters", 2, "Robust reweighting iterations")
	fs.Float64Var(&cfg.RobustK, "robust-k", cfg.RobustK, "Huber cutoff in MAD-sigma units")
	fs.IntVar(&cfg.Workers, "workers", 0, "Parallel workers for the grid search (0 = NumCPU)")
	fs.StringVar(&ff.targetDate, "date", "", "Target as-of date (YYYY-MM-DD, default latest)")
	fs.StringVar(&ff.inputCSV, "input", "", "Fit observations from a CSV file instead of FRED")
	fs.StringVar(&ff.inputMAT, "input-mat", "", "Fit observations from a MATLAB .mat file instead of FRED")
	fs.StringVar(&ff.cachePath, "cache", "rv-cache.db", "SQLite cache for FRED series")
	fs.BoolVar(&ff.noCache, "no-cache", false, "Disable the FRED series cache")
	fs.BoolVar(&ff.refresh, "refresh", false, "Refetch FRED series even when cached")
	fs.BoolVar(&ff.noPlot, "no-plot", false, "Disable the terminal plot")
	fs.IntVar(&ff.plotWidth, "width", 100, "Plot width (columns)")
	fs.IntVar(&ff.plotHeight, "height", 25, "Plot height (rows)")
	fs.StringVar(&ff.exportCSV, "export", "", "Export per-bond results to CSV")
	fs.StringVar(&ff.exportCurve, "export-curve", "", "Export curve (model + params + grid) to JSON")
	fs.StringVar(&ff.plotFile, "plot-file", "", "Save a chart to PNG/SVG/PDF")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	rating, ok := domain.ParseRating(ff.rating)
	if !ok {
		return nil, fmt.Errorf("%w: unknown rating %q", domain.ErrConfigInvalid, ff.rating)
	}
	cfg.Rating = rating

	spec, ok := domain.ParseModelSpec(ff.model)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model spec %q", domain.ErrConfigInvalid, ff.model)
	}
	cfg.ModelSpec = spec

	switch ff.monotone {
	case "off":
		cfg.ShortEndMonotone = domain.MonotoneOff
	case "auto":
		cfg.ShortEndMonotone = domain.MonotoneAuto
	case "up":
		cfg.ShortEndMonotone = domain.MonotoneUp
	case "down":
		cfg.ShortEndMonotone = domain.MonotoneDown
	default:
		return nil, fmt.Errorf("%w: unknown monotone mode %q", domain.ErrConfigInvalid, ff.monotone)
	}

	switch ff.robust {
	case "off":
		cfg.Robust = domain.RobustOff
		cfg.RobustIters = 0
	case "huber":
		cfg.Robust = domain.RobustHuber
	default:
		return nil, fmt.Errorf("%w: unknown robust mode %q", domain.ErrConfigInvalid, ff.robust)
	}

	if ff.targetDate != "" {
		d, err := time.Parse("2006-01-02", ff.targetDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date %q", domain.ErrConfigInvalid, ff.targetDate)
		}
		cfg.TargetDate = &d
	}

	return ff, nil
}

func runFit(args []string, rankOnly bool) error {
	ff, err := parseFitFlags("fit", args)
	if err != nil {
		return err
	}
	cfg := ff.cfg

	points, baseline, anchorBaselines, stats, asOf, err := loadObservations(ff)
	if err != nil {
		return err
	}

	sel, err := selection.FitAndSelect(points, baseline, anchorBaselines, cfg)
	if err != nil {
		return err
	}

	residuals, err := report.ComputeResiduals(points, sel.Best)
	if err != nil {
		return err
	}
	rankings := report.RankCheapRich(residuals, cfg.TopN)

	if !rankOnly {
		fmt.Print(report.FormatRunSummary(stats, sel, cfg))
	}
	fmt.Print(report.FormatRankings(rankings))

	if !rankOnly && !ff.noPlot {
		fmt.Println()
		fmt.Print(ascii.Render(residuals, sel.Best, ff.plotWidth, ff.plotHeight, &rankings))
	}

	if ff.exportCSV != "" {
		if err := export.WriteResultsCSV(ff.exportCSV, residuals); err != nil {
			return err
		}
		logger.Success("export", fmt.Sprintf("Wrote per-bond results to %s", ff.exportCSV))
	}
	if ff.exportCurve != "" {
		if err := curveio.Write(ff.exportCurve, sel.Best, asOf, stats.TenorMax); err != nil {
			return err
		}
		logger.Success("export", fmt.Sprintf("Wrote curve JSON to %s", ff.exportCurve))
	}
	if ff.plotFile != "" {
		opts := visualization.DefaultPlotOptions()
		opts.Title = fmt.Sprintf("RV Curve Fit: %s (%s)", cfg.Rating, asOf.Format("2006-01-02"))
		p, err := visualization.PlotCurve(residuals, sel.Best, &rankings, opts)
		if err != nil {
			return err
		}
		if err := visualization.SavePlot(p, ff.plotFile, opts.Width, opts.Height); err != nil {
			return err
		}
		logger.Success("plot", fmt.Sprintf("Saved chart to %s", ff.plotFile))
	}

	return nil
}

// loadObservations resolves the observation source: CSV or MAT ingest, or
// FRED-driven synthetic generation with baselines and anchors.
func loadObservations(ff *fitFlags) (points []domain.Observation, baseline, anchorBaselines []float64, stats domain.DatasetStats, asOf time.Time, err error) {
	switch {
	case ff.inputCSV != "":
		points, err = ingest.ReadCSV(ff.inputCSV)
	case ff.inputMAT != "":
		points, err = ingest.ReadMAT(ff.inputMAT)
	default:
		var data *sample.Data
		data, anchorBaselines, err = generateFromFRED(ff)
		if err != nil {
			return nil, nil, nil, stats, asOf, err
		}
		return data.Points, data.Baseline, anchorBaselines, data.Stats, data.AsOf, nil
	}
	if err != nil {
		return nil, nil, nil, stats, asOf, err
	}

	stats = pointStats(points)
	asOf = time.Now().UTC()
	if len(points) > 0 && !points[0].AsOfDate.IsZero() {
		asOf = points[0].AsOfDate
	}
	return points, nil, nil, stats, asOf, nil
}

func generateFromFRED(ff *fitFlags) (*sample.Data, []float64, error) {
	cfg := ff.cfg

	client, err := fred.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	client.Refresh = ff.refresh

	if !ff.noCache {
		s, err := store.Open(ff.cachePath)
		if err != nil {
			return nil, nil, err
		}
		defer s.Close()
		client.SetCache(s)
	}

	logger.Info("fred", "Fetching OAS series")
	snapshot, err := client.FetchSnapshot(context.Background(), cfg.TargetDate)
	if err != nil {
		return nil, nil, err
	}
	logger.Success("fred", fmt.Sprintf("Snapshot as of %s (overall %.1fbp)",
		snapshot.Date.Format("2006-01-02"), snapshot.OverallBP))

	data, err := sample.Generate(snapshot, cfg)
	if err != nil {
		return nil, nil, err
	}
	anchorBaselines, err := sample.AnchorBaselines(snapshot, cfg)
	if err != nil {
		return nil, nil, err
	}
	return data, anchorBaselines, nil
}

func pointStats(points []domain.Observation) domain.DatasetStats {
	stats := domain.DatasetStats{
		N:        len(points),
		TenorMin: math.Inf(1),
		TenorMax: math.Inf(-1),
		YMin:     math.Inf(1),
		YMax:     math.Inf(-1),
	}
	for _, p := range points {
		stats.TenorMin = math.Min(stats.TenorMin, p.Tenor)
		stats.TenorMax = math.Max(stats.TenorMax, p.Tenor)
		stats.YMin = math.Min(stats.YMin, p.Y)
		stats.YMax = math.Max(stats.YMax, p.Y)
	}
	return stats
}

func runPlot(args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	curvePath := fs.String("curve", "", "Curve JSON file to plot")
	width := fs.Int("width", 100, "Plot width (columns)")
	height := fs.Int("height", 25, "Plot height (rows)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *curvePath == "" {
		return fmt.Errorf("%w: -curve is required", domain.ErrConfigInvalid)
	}

	curve, err := curveio.Read(*curvePath)
	if err != nil {
		return err
	}

	tMin, tMax := 0.25, 30.0
	if n := len(curve.Grid.TenorYears); n > 1 {
		tMin = curve.Grid.TenorYears[0]
		tMax = curve.Grid.TenorYears[n-1]
	}

	fmt.Printf("Curve: %s as of %s\n", curve.Model.Kind, curve.AsOfDate)
	fmt.Printf("SSE=%.3f RMSE=%.3f BIC=%.3f n=%d\n\n",
		curve.FitQuality.SSE, curve.FitQuality.RMSE, curve.FitQuality.BIC, curve.FitQuality.N)
	fmt.Print(ascii.RenderModel(curve.Model, tMin, tMax, *width, *height))
	return nil
}
