// Package pll implements the phase-locked loop the demodulator uses to
// track the carrier: a phase accumulator whose step size is nudged by a
// caller-supplied phase error, filtered through a one-pole loop filter.
// Grounded on original_source/inc/pll.h.
package pll

import (
	"qpskfw/pkg/onepole"
	"qpskfw/pkg/trig"
)

// PLL maintains a phase in [0,1) and a step (phase increment) nominally
// equal to symbol_rate/sample_rate.
type PLL struct {
	nominalStep float64
	step        float64
	phase       float64
	phaseError  float64
	loopFilter  *onepole.LowPass
}

// New builds a PLL with the given nominal phase increment (symbol_rate /
// sample_rate). The loop filter's cutoff is nominalStep/32, matching the
// reference implementation's lpf_.Init(normalized_frequency / 32.f).
func New(nominalStep float64) *PLL {
	p := &PLL{
		nominalStep: nominalStep,
		loopFilter:  onepole.NewLowPass(nominalStep / 32),
	}
	p.Reset()
	return p
}

// Reset restores the step to its nominal value and zeroes phase and error.
func (p *PLL) Reset() {
	p.step = p.nominalStep
	p.phase = 0
	p.phaseError = 0
	p.loopFilter.Reset()
}

// Sync zeroes phase and error but keeps the learned step.
func (p *PLL) Sync() {
	p.phase = 0
	p.phaseError = 0
}

// Phase returns the current phase in [0,1).
func (p *PLL) Phase() float64 { return p.phase }

// PhaseIncrement returns the current step in [0,1].
func (p *PLL) PhaseIncrement() float64 { return p.step }

// Process filters the supplied phase error, updates step (integral term)
// and phase (proportional + integral terms), and returns the new phase.
func (p *PLL) Process(errSignal float64) float64 {
	p.phaseError = p.loopFilter.Process(errSignal)
	p.step = trig.Clamp(p.step-p.phaseError/4096, 0, 1)
	p.phase = trig.FractionalPart(p.phase + p.step - p.phaseError/16)
	if p.phase < 0 {
		p.phase += 1
	}
	return p.phase
}
