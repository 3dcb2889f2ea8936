// Package lsq solves the weighted least-squares problems at the heart of the
// tau grid search.
//
// The fitter repeatedly solves small regressions of the form
//
//	minimize sum_i w_i (y_i - x_i' beta)^2
//
// The model is linear in beta given fixed tau values, so beta is re-solved for
// every tau candidate. Rows arrive already scaled by sqrt(w_i), turning the
// problem into ordinary least squares on a tall matrix (n rows, 3-5 columns).
//
// We solve via a thin SVD pseudoinverse. Certain tau tuples produce nearly
// collinear basis columns, so the solve retries with progressively looser
// singular-value cutoffs before giving up. A failed solve is not an error at
// this level; the caller drops the candidate.
package lsq

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// tolerances are the singular-value cutoffs (relative to the largest value)
// tried in order. The first finite solution wins.
var tolerances = [...]float64{1e-10, 1e-8, 1e-6}

// Solve computes the minimum-norm least-squares solution of x*beta = y for a
// tall design matrix. It reports ok = false when the system is too
// ill-conditioned to solve at any tolerance.
func Solve(x *mat.Dense, y *mat.VecDense) ([]float64, bool) {
	rows, cols := x.Dims()
	if rows < cols {
		return nil, false
	}

	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, false
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	sMax := s[0]
	if !(sMax > 0) || math.IsNaN(sMax) || math.IsInf(sMax, 0) {
		return nil, false
	}

	// uty = U' y, computed once and reused across tolerance retries.
	uty := make([]float64, len(s))
	for k := range uty {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += u.At(i, k) * y.AtVec(i)
		}
		uty[k] = sum
	}

	for _, tol := range tolerances {
		cutoff := tol * sMax

		beta := make([]float64, cols)
		used := 0
		for k, sv := range s {
			if sv <= cutoff {
				continue
			}
			used++
			scale := uty[k] / sv
			for j := 0; j < cols; j++ {
				beta[j] += v.At(j, k) * scale
			}
		}
		if used == 0 {
			continue
		}

		finite := true
		for _, b := range beta {
			if math.IsNaN(b) || math.IsInf(b, 0) {
				finite = false
				break
			}
		}
		if finite {
			return beta, true
		}
	}

	return nil, false
}
