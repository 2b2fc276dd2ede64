// Package crf implements the carrier-rejection filter applied to each of I
// and Q after mixing: a 7-tap FIR, one precomputed kernel per supported
// samples-per-symbol M, removing the 2f image left over from I/Q
// demodulation. Kernels are reproduced verbatim (as fixed data, per
// spec.md §4.4 — they would otherwise come from an offline equiripple
// filter-design run, which is out of scope) from
// original_source/inc/carrier_rejection_filter.h.
package crf

import "qpskfw/pkg/window"

const kernelLength = 7

var kernels = map[int][kernelLength]float64{
	6: {
		-7.61504431e-02, 4.23661388e-05, 3.04728871e-01, 5.00042366e-01,
		3.04728871e-01, 4.23661388e-05, -7.61504431e-02,
	},
	8: {
		-4.62606751e-02, 1.25000000e-01, 2.96260675e-01, 3.82800831e-01,
		2.96260675e-01, 1.25000000e-01, -4.62606751e-02,
	},
	12: {
		4.06822339e-02, 2.09317766e-01, 2.09317766e-01, 2.54748848e-01,
		2.09317766e-01, 2.09317766e-01, 4.06822339e-02,
	},
	16: {
		1.56977082e-01, 1.37855092e-01, 1.68060009e-01, 1.79345186e-01,
		1.68060009e-01, 1.37855092e-01, 1.56977082e-01,
	},
	18: {
		1.70307392e-01, 1.19520171e-01, 1.40486857e-01, 1.48054138e-01,
		1.40486857e-01, 1.19520171e-01, 1.70307392e-01,
	},
	24: {
		1.98219423e-01, 7.96402625e-02, 8.76371060e-02, 9.05001755e-02,
		8.76371060e-02, 7.96402625e-02, 1.98219423e-01,
	},
	32: {
		2.18214705e-01, 4.99257841e-02, 5.25785277e-02, 5.34812099e-02,
		5.25785277e-02, 4.99257841e-02, 2.18214705e-01,
	},
}

// Supported reports whether M has a compiled-in kernel.
func Supported(m int) bool {
	_, ok := kernels[m]
	return ok
}

// Filter is a 7-tap FIR low-pass selected by samples-per-symbol M.
type Filter struct {
	kernel [kernelLength]float64
	win    *window.Window[float64]
}

// New builds a Filter for the given samples-per-symbol M. It panics if M is
// not one of the compiled-in kernel sizes (6, 8, 12, 16, 18, 24, 32) — the
// closest Go equivalent of the reference implementation's
// static_assert(...,"Unsupported symbol duration"), since Go cannot fail to
// compile over a runtime-supplied constructor argument.
func New(m int) *Filter {
	kernel, ok := kernels[m]
	if !ok {
		panic("crf: unsupported samples-per-symbol M")
	}
	return &Filter{
		kernel: kernel,
		win:    window.New[float64](kernelLength),
	}
}

// Process filters one sample.
func (f *Filter) Process(x float64) float64 {
	f.win.Write(x)
	var sum float64
	for i := 0; i < kernelLength; i++ {
		sum += f.win.At(i) * f.kernel[i]
	}
	return sum
}

// Reset clears the filter's delay line.
func (f *Filter) Reset() { f.win.Reset() }
