package trig

import (
	"math"
	"testing"
)

func approxEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestSineMatchesMathSine(t *testing.T) {
	for _, t64 := range []float64{0, 0.125, 0.25, 0.375, 0.5, 0.625, 0.75, 0.875} {
		got := Sine(t64)
		want := math.Sin(2 * math.Pi * t64)
		if !approxEqual(got, want, 1e-3) {
			t.Errorf("Sine(%v) = %v, want %v", t64, got, want)
		}
	}
}

func TestCosineMatchesMathCosine(t *testing.T) {
	for _, t64 := range []float64{0, 0.125, 0.25, 0.375, 0.5, 0.625, 0.75, 0.875} {
		got := Cosine(t64)
		want := math.Cos(2 * math.Pi * t64)
		if !approxEqual(got, want, 1e-3) {
			t.Errorf("Cosine(%v) = %v, want %v", t64, got, want)
		}
	}
}

func TestSineFoldsOutOfRangePhase(t *testing.T) {
	if !approxEqual(Sine(1.25), Sine(0.25), 1e-9) {
		t.Errorf("Sine(1.25) = %v, want Sine(0.25) = %v", Sine(1.25), Sine(0.25))
	}
	if !approxEqual(Sine(-0.25), Sine(0.75), 1e-9) {
		t.Errorf("Sine(-0.25) = %v, want Sine(0.75) = %v", Sine(-0.25), Sine(0.75))
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		x, lo, hi, want float64
	}{
		{0.5, 0, 1, 0.5},
		{-1, 0, 1, 0},
		{2, 0, 1, 1},
		{-5, -3, 3, -3},
	}
	for _, c := range cases {
		if got := Clamp(c.x, c.lo, c.hi); got != c.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", c.x, c.lo, c.hi, got, c.want)
		}
	}
}

func TestFractionalPart(t *testing.T) {
	cases := []struct {
		x, want float64
	}{
		{1.75, 0.75},
		{0.25, 0.25},
		{-1.25, -0.25},
		{3.0, 0.0},
	}
	for _, c := range cases {
		if got := FractionalPart(c.x); !approxEqual(got, c.want, 1e-9) {
			t.Errorf("FractionalPart(%v) = %v, want %v", c.x, got, c.want)
		}
	}
}

func TestVectorToPhaseRoundTripsWithSineCosine(t *testing.T) {
	for _, phase := range []float64{0, 0.1, 0.25, 0.4, 0.5, 0.7, 0.9} {
		x, y := Cosine(phase), Sine(phase)
		got := VectorToPhase(x, y)
		if !approxEqual(got, phase, 1e-3) {
			t.Errorf("VectorToPhase(Cosine(%v), Sine(%v)) = %v, want %v", phase, phase, got, phase)
		}
	}
}

func TestVectorToPhaseWrapsNegativeAngles(t *testing.T) {
	got := VectorToPhase(0, -1) // atan2(-1,0) = -pi/2
	if got < 0 || got >= 1 {
		t.Errorf("VectorToPhase(0,-1) = %v, want a value in [0,1)", got)
	}
	if !approxEqual(got, 0.75, 1e-9) {
		t.Errorf("VectorToPhase(0,-1) = %v, want 0.75", got)
	}
}
