package ingest

import (
	"fmt"
	"os"

	"github.com/scigolib/matlab"

	"github.com/o15CR/rv-curves/internal/domain"
)

// MAT variable names expected in observation files.
const (
	matVarTenor  = "tenor_years"
	matVarY      = "y_obs"
	matVarWeight = "weight"
)

// ReadMAT loads observations from a MATLAB .mat file holding tenor_years and
// y_obs vectors (and optionally weight). Both v5 and v7.3 (HDF5) formats are
// supported. Observation ids are synthesized from the row index.
func ReadMAT(path string) ([]domain.Observation, error) {
	mf, err := openMAT(path)
	if err != nil {
		return nil, err
	}
	defer mf.Close()

	tenors, err := mf.GetFloat64(matVarTenor)
	if err != nil {
		return nil, err
	}
	ys, err := mf.GetFloat64(matVarY)
	if err != nil {
		return nil, err
	}
	if len(ys) != len(tenors) {
		return nil, fmt.Errorf("%w: %s has %d values, %s has %d",
			domain.ErrConfigInvalid, matVarY, len(ys), matVarTenor, len(tenors))
	}

	weights := make([]float64, len(tenors))
	for i := range weights {
		weights[i] = 1.0
	}
	if mf.HasVariable(matVarWeight) {
		w, err := mf.GetFloat64(matVarWeight)
		if err != nil {
			return nil, err
		}
		if len(w) != len(tenors) {
			return nil, fmt.Errorf("%w: %s has %d values, %s has %d",
				domain.ErrConfigInvalid, matVarWeight, len(w), matVarTenor, len(tenors))
		}
		weights = w
	}

	if len(tenors) == 0 {
		return nil, fmt.Errorf("%w: MAT file contains no observations", domain.ErrNoData)
	}

	out := make([]domain.Observation, len(tenors))
	for i := range tenors {
		obs := domain.Observation{
			ID:     fmt.Sprintf("MAT-%03d", i+1),
			Tenor:  tenors[i],
			Y:      ys[i],
			Weight: weights[i],
		}
		if err := validate(obs, i+1); err != nil {
			return nil, err
		}
		out[i] = obs
	}
	return out, nil
}

// matFile wraps a MATLAB file for observation extraction.
type matFile struct {
	file    *matlab.MatFile
	closeFn func() error
}

func openMAT(path string) (*matFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open MAT file: %w", err)
	}

	parsed, err := matlab.Open(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parse MAT file: %w", err)
	}

	return &matFile{file: parsed, closeFn: f.Close}, nil
}

func (m *matFile) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	return nil
}

func (m *matFile) HasVariable(name string) bool {
	return m.file.HasVariable(name)
}

// GetFloat64 returns a variable as a float64 slice.
func (m *matFile) GetFloat64(name string) ([]float64, error) {
	v := m.file.GetVariable(name)
	if v == nil {
		return nil, fmt.Errorf("%w: MAT variable %q not found", domain.ErrConfigInvalid, name)
	}
	data, err := v.GetFloat64Array()
	if err != nil {
		return nil, fmt.Errorf("cannot convert MAT variable %q to float64: %w", name, err)
	}
	return data, nil
}
