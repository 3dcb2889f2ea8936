package domain

import "errors"

// Error kinds surfacing at the fitter boundary. Callers classify failures
// with errors.Is; everything else is context wrapped around one of these.
//
// A least-squares failure or guardrail rejection on a single tau candidate
// is not an error: the candidate is silently skipped.
var (
	// ErrConfigInvalid marks a configuration the caller must correct
	// (bad tau range, non-positive sigmas, invalid steps).
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrNoData marks a fit attempted with no usable observations.
	ErrNoData = errors.New("no data")

	// ErrFitFailed marks a model kind whose candidate set came up empty
	// even after the monotonicity fallback retry.
	ErrFitFailed = errors.New("fit failed")

	// ErrComputeFailed marks a non-finite prediction during residual
	// computation.
	ErrComputeFailed = errors.New("computation failed")
)
