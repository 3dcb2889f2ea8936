// Package curveio reads and writes curve JSON files.
//
// Curve JSON is the portable representation of a fitted curve:
//   - model kind and parameters (betas and taus)
//   - fit quality diagnostics
//   - a precomputed fitted grid for quick plotting
package curveio

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/o15CR/rv-curves/internal/curvemodel"
	"github.com/o15CR/rv-curves/internal/domain"
)

// gridPoints is the number of samples in the precomputed fitted grid.
const gridPoints = 101

// CurveFile is the on-disk schema of a fitted curve.
type CurveFile struct {
	Tool       string             `json:"tool"`
	AsOfDate   string             `json:"asof_date"`
	YUnit      string             `json:"y_unit"`
	Model      domain.CurveModel  `json:"model"`
	FitQuality domain.FitQuality  `json:"fit_quality"`
	Grid       CurveGrid          `json:"grid"`
}

// CurveGrid is the precomputed fitted curve.
type CurveGrid struct {
	TenorYears []float64 `json:"tenor_years"`
	Y          []float64 `json:"y"`
}

// Write writes a curve JSON file. The grid always starts at t = 0 so the
// anchored short end is visible to downstream plotting.
func Write(path string, best domain.FitResult, asOf time.Time, tenorMax float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create curve JSON %q: %w", path, err)
	}
	defer f.Close()

	tenors, y := buildGrid(best.Model, 0, tenorMax, gridPoints)

	curve := CurveFile{
		Tool:       "rv",
		AsOfDate:   asOf.Format("2006-01-02"),
		YUnit:      "bp",
		Model:      best.Model,
		FitQuality: best.Quality,
		Grid:       CurveGrid{TenorYears: tenors, Y: y},
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(curve); err != nil {
		return fmt.Errorf("write curve JSON: %w", err)
	}
	return nil
}

// Read reads a curve JSON file.
func Read(path string) (*CurveFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open curve JSON %q: %w", path, err)
	}
	defer f.Close()

	var curve CurveFile
	if err := json.NewDecoder(f).Decode(&curve); err != nil {
		return nil, fmt.Errorf("invalid curve JSON: %w", err)
	}
	return &curve, nil
}

func buildGrid(model domain.CurveModel, tenorMin, tenorMax float64, n int) ([]float64, []float64) {
	if n < 2 {
		n = 2
	}
	t0, t1 := tenorMin, tenorMax
	if math.IsNaN(t0) || math.IsNaN(t1) || math.IsInf(t0, 0) || math.IsInf(t1, 0) || t1 <= t0 {
		t0, t1 = 0.25, 30.0
	}
	if math.Abs(t1-t0) < 1e-9 {
		t0 = math.Max(t0-0.5, 0.01)
		t1 += 0.5
	}

	tenors := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		u := float64(i) / float64(n-1)
		t := t0 + u*(t1-t0)
		tenors[i] = t
		y[i] = curvemodel.PredictModel(model, t)
	}
	return tenors, y
}
