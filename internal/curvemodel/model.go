// Package curvemodel evaluates NS / NSS / NSSC models.
//
// The fitter relies on two primitive operations:
//   - build a design row for a given tenor and taus (for the WLS solve)
//   - predict y(t) given betas and taus (for residuals and plots)
//
// The model order is a closed set of three variants with fixed coefficient
// and decay counts, so both primitives switch on the kind directly.
package curvemodel

import (
	"github.com/o15CR/rv-curves/internal/domain"
	"github.com/o15CR/rv-curves/internal/nsbasis"
)

// FillDesignRow fills a design row for the given model kind. The row begins
// with the constant term (intercept).
//
// out must have length kind.BetaLen() and taus length kind.TauLen();
// callers size these once per fit.
func FillDesignRow(kind domain.ModelKind, t float64, taus []float64, out []float64) {
	switch kind {
	case domain.NS:
		out[0] = 1.0
		out[1] = nsbasis.F1(t, taus[0])
		out[2] = nsbasis.F2(t, taus[0])
	case domain.NSS:
		out[0] = 1.0
		out[1] = nsbasis.F1(t, taus[0])
		out[2] = nsbasis.F2(t, taus[0])
		out[3] = nsbasis.F2(t, taus[1])
	case domain.NSSC:
		out[0] = 1.0
		out[1] = nsbasis.F1(t, taus[0])
		out[2] = nsbasis.F2(t, taus[0])
		out[3] = nsbasis.F2(t, taus[1])
		out[4] = nsbasis.F2(t, taus[2])
	}
}

// Predict evaluates y(t) for the given model kind.
func Predict(kind domain.ModelKind, t float64, betas, taus []float64) float64 {
	switch kind {
	case domain.NS:
		return betas[0] + betas[1]*nsbasis.F1(t, taus[0]) + betas[2]*nsbasis.F2(t, taus[0])
	case domain.NSS:
		return betas[0] + betas[1]*nsbasis.F1(t, taus[0]) + betas[2]*nsbasis.F2(t, taus[0]) +
			betas[3]*nsbasis.F2(t, taus[1])
	case domain.NSSC:
		return betas[0] + betas[1]*nsbasis.F1(t, taus[0]) + betas[2]*nsbasis.F2(t, taus[0]) +
			betas[3]*nsbasis.F2(t, taus[1]) + betas[4]*nsbasis.F2(t, taus[2])
	}
	return 0
}

// PredictModel evaluates y(t) for a fitted CurveModel.
func PredictModel(m domain.CurveModel, t float64) float64 {
	return Predict(m.Kind, t, m.Betas, m.Taus)
}
