// Package export writes per-bond results to CSV for spreadsheets and
// downstream scripts.
package export

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/o15CR/rv-curves/internal/domain"
)

// header is explicit so downstream tooling can rely on stable column names.
var header = []string{
	"id",
	"asof_date",
	"maturity_date",
	"tenor_years",
	"y_obs",
	"y_fit",
	"residual",
	"weight",
	"issuer",
	"rating",
}

// WriteResultsCSV writes per-bond residuals to a CSV file.
func WriteResultsCSV(path string, residuals []domain.Residual) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export CSV %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write export CSV header: %w", err)
	}

	for _, r := range residuals {
		p := r.Obs
		record := []string{
			p.ID,
			fmtDate(p),
			fmtMaturity(p),
			fmtF64(p.Tenor),
			fmtY(p.Y),
			fmtY(r.YFit),
			fmtY(r.Residual),
			fmtF64(p.Weight),
			p.Issuer,
			p.Rating,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write export CSV row for %q: %w", p.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export CSV: %w", err)
	}
	return nil
}

func fmtDate(p domain.Observation) string {
	if p.AsOfDate.IsZero() {
		return ""
	}
	return p.AsOfDate.Format("2006-01-02")
}

func fmtMaturity(p domain.Observation) string {
	if p.MaturityDate.IsZero() {
		return ""
	}
	return p.MaturityDate.Format("2006-01-02")
}

// fmtF64 keeps a consistent, locale-independent format.
func fmtF64(v float64) string {
	return fmt.Sprintf("%.10f", v)
}

func fmtY(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
