// Package onepole implements a one-pole IIR filter, used throughout the
// demodulator as a DC blocker, an envelope follower, and the PLL's loop
// filter. Grounded on original_source/inc/one_pole.h.
package onepole

import "math"

// LowPass is a one-pole low-pass filter: y += alpha*(x-y).
type LowPass struct {
	alpha   float64
	history float64
}

// NewLowPass builds a filter with the given normalized cutoff frequency
// (cycles/sample), using alpha = 1 - exp(-2*pi*freq).
func NewLowPass(normalizedFreq float64) *LowPass {
	return &LowPass{alpha: 1 - math.Exp(-2*math.Pi*normalizedFreq)}
}

// Reset zeroes the filter's history, keeping its cutoff.
func (f *LowPass) Reset() { f.history = 0 }

// Process filters one sample and returns the new output.
func (f *LowPass) Process(x float64) float64 {
	f.history += f.alpha * (x - f.history)
	return f.history
}

// Output returns the filter's current output without processing a new
// sample.
func (f *LowPass) Output() float64 { return f.history }

// HighPass derives a high-pass response from a low-pass filter: x - lpf(x).
type HighPass struct {
	lpf LowPass
}

// NewHighPass builds a high-pass filter with the given normalized cutoff.
func NewHighPass(normalizedFreq float64) *HighPass {
	return &HighPass{lpf: LowPass{alpha: 1 - math.Exp(-2*math.Pi*normalizedFreq)}}
}

// Reset zeroes the filter's history, keeping its cutoff.
func (f *HighPass) Reset() { f.lpf.Reset() }

// Process filters one sample and returns the new output.
func (f *HighPass) Process(x float64) float64 {
	return x - f.lpf.Process(x)
}
