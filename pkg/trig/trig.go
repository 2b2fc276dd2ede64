// Package trig provides the small set of closed-form math helpers the
// demodulator needs on every sample: a quadrant-folded sine table, the
// matching cosine, a phase-error wrap helper, and a table-driven
// Cartesian-to-phase conversion used to average alignment-peak estimates.
//
// The sine table is treated as fixed data (it would otherwise be generated
// by an offline cog/scipy script, which is explicitly out of scope) and is
// reproduced verbatim from the reference implementation: 65 samples of one
// quadrant of a sine wave, indexed 0..64 for phase 0..0.25. The arctangent
// table follows the same quadrant-folding idiom but, having no reference
// literal to reproduce, is built at package init the way pkg/crc32x builds
// its table: a loop over closed-form math once at start-up, not per call.
package trig

import "math"

// kSineQuadrant holds sin(pi/2 * i/64) for i in [0,64].
var kSineQuadrant = [65]float64{
	0.00000000e+00, 2.45412285e-02, 4.90676743e-02, 7.35645636e-02,
	9.80171403e-02, 1.22410675e-01, 1.46730474e-01, 1.70961889e-01,
	1.95090322e-01, 2.19101240e-01, 2.42980180e-01, 2.66712757e-01,
	2.90284677e-01, 3.13681740e-01, 3.36889853e-01, 3.59895037e-01,
	3.82683432e-01, 4.05241314e-01, 4.27555093e-01, 4.49611330e-01,
	4.71396737e-01, 4.92898192e-01, 5.14102744e-01, 5.34997620e-01,
	5.55570233e-01, 5.75808191e-01, 5.95699304e-01, 6.15231591e-01,
	6.34393284e-01, 6.53172843e-01, 6.71558955e-01, 6.89540545e-01,
	7.07106781e-01, 7.24247083e-01, 7.40951125e-01, 7.57208847e-01,
	7.73010453e-01, 7.88346428e-01, 8.03207531e-01, 8.17584813e-01,
	8.31469612e-01, 8.44853565e-01, 8.57728610e-01, 8.70086991e-01,
	8.81921264e-01, 8.93224301e-01, 9.03989293e-01, 9.14209756e-01,
	9.23879533e-01, 9.32992799e-01, 9.41544065e-01, 9.49528181e-01,
	9.56940336e-01, 9.63776066e-01, 9.70031253e-01, 9.75702130e-01,
	9.80785280e-01, 9.85277642e-01, 9.89176510e-01, 9.92479535e-01,
	9.95184727e-01, 9.97290457e-01, 9.98795456e-01, 9.99698819e-01,
	1.00000000e+00,
}

// kArctanOctant holds atan(i/64)/(2*pi) for i in [0,64] — the first octant
// (0 to pi/4) of the arctangent, expressed directly as a phase fraction so
// VectorToPhase can use it without a further scale. Built once at init from
// the closed-form definition rather than reproduced as a literal, since
// (unlike the sine table) there is no reference table to match verbatim.
var kArctanOctant [65]float64

func init() {
	for i := range kArctanOctant {
		kArctanOctant[i] = math.Atan(float64(i)/64) / (2 * math.Pi)
	}
}

// arctanOctant looks up atan(ratio)/(2*pi) for ratio in [0,1] via the
// nearest entry in kArctanOctant.
func arctanOctant(ratio float64) float64 {
	index := int(64*ratio + 0.5)
	switch {
	case index < 0:
		index = 0
	case index > 64:
		index = 64
	}
	return kArctanOctant[index]
}

// Clamp restricts x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	switch {
	case x < lo:
		return lo
	case x > hi:
		return hi
	default:
		return x
	}
}

// FractionalPart returns x minus its integer part, i.e. x truncated toward
// zero and subtracted off. Like math.Mod(x, 1) and the reference
// Truncate()-based implementation, the result keeps the sign of x
// (FractionalPart(-1.25) is -0.25).
func FractionalPart(x float64) float64 {
	return x - math.Trunc(x)
}

// Sine evaluates sin(2*pi*t) from the quadrant table, where t is a phase in
// [0,1). Values outside that range are folded the same way the reference
// fixed-point implementation folds a uint32 phase.
func Sine(t float64) float64 {
	t = FractionalPart(t)
	if t < 0 {
		t += 1
	}
	index := uint32(256 * t)
	quadrant := (index & 0xC0) >> 6
	index &= 0x3F
	if quadrant&1 != 0 {
		index = 0x40 - index
	}
	v := kSineQuadrant[index]
	if quadrant&2 != 0 {
		return -v
	}
	return v
}

// Cosine evaluates cos(2*pi*t) by phase-shifting Sine.
func Cosine(t float64) float64 {
	return Sine(t + 0.25)
}

// VectorToPhase converts a Cartesian point (x,y) back to a phase in [0,1),
// i.e. atan2(y,x) normalized by 2*pi and wrapped, via the arctangent
// quadrant table: fold (x,y) into the first octant, look up the angle
// there, then unfold by the quadrant the original point fell in.
func VectorToPhase(x, y float64) float64 {
	if x == 0 && y == 0 {
		return 0
	}
	ax, ay := math.Abs(x), math.Abs(y)

	var octant float64
	if ay <= ax {
		octant = arctanOctant(ay / ax)
	} else {
		octant = 0.25 - arctanOctant(ax/ay)
	}

	var phase float64
	switch {
	case x >= 0 && y >= 0:
		phase = octant
	case x < 0 && y >= 0:
		phase = 0.5 - octant
	case x < 0 && y < 0:
		phase = 0.5 + octant
	default:
		phase = 1 - octant
	}
	if phase < 0 {
		phase += 1
	}
	return phase
}
