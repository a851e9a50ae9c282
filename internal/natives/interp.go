package natives

import "math"

// mapQuickEase, mapSlowEaseIn and mapSlowEaseInOut are the three easing
// curves seni_interp.c applies over the normalised [0,1] input; linear
// passes the input straight through.
func mapQuickEase(x float64) float64 {
	x2 := x * x
	x3 := x2 * x
	return 3*x2 - 2*x3
}

func mapSlowEaseIn(x float64) float64 {
	s := math.Sin(x * math.Pi / 2)
	return s * s * s * s
}

func mapSlowEaseInOut(x float64) float64 {
	const tau = 2 * math.Pi
	return x - math.Sin(x*tau)/tau
}

func applyEasing(e easing, x float64) float64 {
	switch e {
	case easingQuick:
		return mapQuickEase(x)
	case easingSlowIn:
		return mapSlowEaseIn(x)
	case easingSlowInOut:
		return mapSlowEaseInOut(x)
	default:
		return x
	}
}

// mcM and mcC are the line-through-two-points slope/intercept helpers
// (mc_m/mc_c) seni_mathutil.c uses to build the from/to linear remap
// bind_interp_build precomputes once per interp/build call.
func mcM(xa, ya, xb, yb float64) float64 { return (ya - yb) / (xa - xb) }
func mcC(xa, ya, m float64) float64      { return ya - m*xa }

// seniInterp remaps val from the range [from0,from1] to [to0,to1] through
// the chosen easing curve, clamping to to0/to1 outside the source range
// when clamping is set — grounded on bind_interp_call's from_interp/
// to_interp pipeline (seni_focal.c's callers all pass clamping=true).
func seniInterp(val, from0, from1, to0, to1 float64, e easing, clamping bool) float64 {
	fromM := mcM(from0, 0, from1, 1)
	fromC := mcC(from0, 0, fromM)
	toM := mcM(0, to0, 1, to1)
	toC := mcC(0, to0, toM)

	fromInterp := fromM*val + fromC
	toInterp := applyEasing(e, fromInterp)
	res := toM*toInterp + toC

	if clamping {
		if fromInterp < 0 {
			return to0
		}
		if fromInterp > 1 {
			return to1
		}
	}
	return res
}
