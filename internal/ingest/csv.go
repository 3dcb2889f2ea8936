// Package ingest loads bond observations from external files as an
// alternative to synthetic generation. CSV is the primary format; MATLAB
// .mat vectors are supported for data prepared in research environments.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/o15CR/rv-curves/internal/domain"
)

// ReadCSV loads observations from a CSV file with a header row. Required
// columns: id, tenor_years, y_obs. Optional: weight (default 1), rating,
// issuer.
func ReadCSV(path string) ([]domain.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open observations CSV: %w", err)
	}
	defer f.Close()

	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]domain.Observation, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"id", "tenor_years", "y_obs"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: CSV missing required column %q", domain.ErrConfigInvalid, required)
		}
	}

	var out []domain.Observation
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", line+1, err)
		}
		line++

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		obs := domain.Observation{
			ID:     get("id"),
			Weight: 1.0,
			Rating: get("rating"),
			Issuer: get("issuer"),
		}
		if obs.ID == "" {
			return nil, fmt.Errorf("%w: row %d has empty id", domain.ErrConfigInvalid, line)
		}

		if obs.Tenor, err = parseField(get("tenor_years"), "tenor_years", line); err != nil {
			return nil, err
		}
		if obs.Y, err = parseField(get("y_obs"), "y_obs", line); err != nil {
			return nil, err
		}
		if w := get("weight"); w != "" {
			if obs.Weight, err = parseField(w, "weight", line); err != nil {
				return nil, err
			}
		}

		if err := validate(obs, line); err != nil {
			return nil, err
		}
		out = append(out, obs)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: CSV contains no observation rows", domain.ErrNoData)
	}
	return out, nil
}

func parseField(raw, name string, line int) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: row %d column %s: %q is not a number", domain.ErrConfigInvalid, line, name, raw)
	}
	return v, nil
}

func validate(obs domain.Observation, line int) error {
	if !(isFinite(obs.Tenor) && obs.Tenor > 0) {
		return fmt.Errorf("%w: row %d has invalid tenor %v", domain.ErrConfigInvalid, line, obs.Tenor)
	}
	if !isFinite(obs.Y) {
		return fmt.Errorf("%w: row %d has non-finite y", domain.ErrConfigInvalid, line)
	}
	if !(isFinite(obs.Weight) && obs.Weight > 0) {
		return fmt.Errorf("%w: row %d has invalid weight %v", domain.ErrConfigInvalid, line, obs.Weight)
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
