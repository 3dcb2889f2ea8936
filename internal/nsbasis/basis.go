// Package nsbasis evaluates the Nelson-Siegel loading functions.
//
// The standard basis functions are:
//
//	f1(t, tau) = (1 - exp(-t/tau)) / (t/tau)
//	f2(t, tau) = f1(t, tau) - exp(-t/tau)
//
// Numerical notes:
//   - For small x = t/tau, 1 - exp(-x) suffers from catastrophic
//     cancellation. We use math.Expm1 (and a series fallback) to keep
//     precision.
//   - For t -> 0 the analytic limits are f1 -> 1 and f2 -> 0.
package nsbasis

import "math"

// tEps guards against t = 0 in basis evaluation.
const tEps = 1e-12

// smallX is the threshold below which we switch to the series approximation.
const smallX = 1e-6

// F1 computes f1(t, tau) in a numerically stable way.
func F1(t, tau float64) float64 {
	t = math.Max(t, tEps)
	x := t / tau

	if math.Abs(x) < smallX {
		// Series: (1 - e^{-x}) / x ~= 1 - x/2 + x^2/6
		return 1.0 - x/2.0 + (x*x)/6.0
	}

	// 1 - exp(-x) computed as -expm1(-x).
	return -math.Expm1(-x) / x
}

// F2 computes f2(t, tau) in a numerically stable way.
func F2(t, tau float64) float64 {
	t = math.Max(t, tEps)
	x := t / tau

	if math.Abs(x) < smallX {
		// f1(x) ~= 1 - x/2 + x^2/6 and exp(-x) ~= 1 - x + x^2/2,
		// so f2 = f1 - exp(-x) ~= x/2 - x^2/3.
		return x/2.0 - (x*x)/3.0
	}

	return F1(t, tau) - math.Exp(-x)
}
