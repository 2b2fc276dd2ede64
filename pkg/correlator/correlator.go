// Package correlator detects the two-symbol alignment pattern {2,1} (I/Q
// order) against running I/Q history windows the demodulator already
// maintains for symbol timing, reporting a peak with a sub-sample tilt
// correction once the correlation statistic crests and begins to fall.
// Grounded on original_source/inc/correlator.h.
package correlator

import "qpskfw/pkg/window"

// The expected pattern is symbol 2 (I positive, Q negative) followed by
// symbol 1 (I negative, Q positive), read in transmission order: window 0
// (the most recently completed symbol-length span) holds symbol 1, window 1
// holds symbol 2 — the same index-to-symbol mapping as
// original_source/inc/correlator.h's `kAlignmentSequence[kLength-1-i]`
// read against its Bay cascade order. signI/signQ give the expected sign
// of each window's contribution.
var (
	signI = [kLength]float64{-1, 1}
	signQ = [kLength]float64{1, -1}
)

// kLength is the number of symbol-lengths the alignment pattern spans.
const kLength = 2

// Length is the bay width (in symbol-length windows) a caller must give
// the I/Q bays it shares with Process.
const Length = kLength

// kRipeAge is the minimum number of samples that must be processed before
// a peak can be reported, so the three-point history used for the tilt
// estimate is fully populated.
const kRipeAge = 3

// Correlator accumulates a running correlation statistic c against a pair
// of externally-owned I/Q bays (each of width kLength, shared with the
// demodulator's symbol-timing logic) and detects local maxima in it.
type Correlator struct {
	threshold float64

	history [3]float64 // [0] two samples ago, [1] one sample ago, [2] current
	max     float64
	age     uint64
}

// New builds a Correlator for the given samples-per-symbol M.
func New(m int) *Correlator {
	return &Correlator{threshold: float64(m) * kLength / 2}
}

// Peak describes a detected alignment-pattern correlation peak.
type Peak struct {
	Value float64
	Tilt  float64 // sub-sample correction in [-0.5, 0.5]
}

// Process computes the correlation statistic for the current sample from
// iBay and qBay (which the caller must have already Write-n this sample's
// I/Q into) and reports whether the sample one step ago was a peak.
func (c *Correlator) Process(iBay, qBay *window.Bay[float64]) (Peak, bool) {
	var corr float64
	for k := 0; k < kLength; k++ {
		corr += signI[k]*iBay.At(k).Sum() + signQ[k]*qBay.At(k).Sum()
	}

	if corr < 0 {
		// Reset the peak detector at each valley so several consecutive
		// peaks (as in the alignment sequence) can each be detected.
		c.max = 0
	} else if corr > c.max {
		c.max = corr
	}

	c.history[0], c.history[1], c.history[2] = c.history[1], c.history[2], corr
	c.age++

	if c.age < kRipeAge {
		return Peak{}, false
	}

	if c.history[1] != c.max || c.history[1] < c.threshold {
		return Peak{}, false
	}

	left := c.history[1] - c.history[0]
	right := c.history[1] - c.history[2]
	tilt := 0.0
	if denom := left + right; denom != 0 {
		tilt = 0.5 * (left - right) / denom
	}
	if tilt > 0.5 {
		tilt = 0.5
	} else if tilt < -0.5 {
		tilt = -0.5
	}
	return Peak{Value: c.history[1], Tilt: tilt}, true
}

// Reset clears all running state, including the age counter used to
// suppress peaks before the shared history has enough samples.
func (c *Correlator) Reset() {
	c.history = [3]float64{}
	c.max = 0
	c.age = 0
}
