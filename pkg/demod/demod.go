// Package demod implements the top-level QPSK demodulation state machine:
// settle → sense-gain → carrier-sync → align → decode. It owns every
// per-sample DSP stage (high-pass, envelope follower/AGC, I/Q mix, carrier
// rejection, PLL, correlator, symbol timing) behind a single tagged state
// variant, per the "one owner of all running windows" design note rather
// than a subclass hierarchy. Grounded on
// original_source/inc/demodulator.h, adapted to spec.md §4.7's marker-free
// alignment procedure (8 correlation peaks averaged as Cartesian unit
// vectors instead of 4 peaks with a running phase average).
package demod

import (
	"math"

	"qpskfw/internal/debug"
	"qpskfw/pkg/correlator"
	"qpskfw/pkg/crf"
	"qpskfw/pkg/onepole"
	"qpskfw/pkg/pll"
	"qpskfw/pkg/ring"
	"qpskfw/pkg/trig"
	"qpskfw/pkg/window"
)

// State tags the demodulator's current stage.
type State int

const (
	StateWaitToSettle State = iota
	StateSenseGain
	StateCarrierSync
	StateAlign
	StateOK
	StateError
)

func (s State) String() string {
	switch s {
	case StateWaitToSettle:
		return "WAIT_TO_SETTLE"
	case StateSenseGain:
		return "SENSE_GAIN"
	case StateCarrierSync:
		return "CARRIER_SYNC"
	case StateAlign:
		return "ALIGN"
	case StateOK:
		return "OK"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const (
	kLevelThreshold      = 0.05
	kAGCTarget           = 0.64
	kCarrierSyncLength   = 32
	kNumCorrelationPeaks = 8
	symbolFifoCapacity   = 128
)

// Demodulator is the per-sample DSP state machine.
type Demodulator struct {
	m            int
	settlingTime uint64

	symbols *ring.Buffer[byte]

	hpf      *onepole.HighPass
	follower *onepole.LowPass
	agcGain  float64

	pll        *pll.PLL
	crfI, crfQ *crf.Filter

	corr       *correlator.Correlator
	iBay, qBay *window.Bay[float64]

	decisionPhase   float64
	inhibitDecision bool

	skippedSamples  uint64
	skippedSymbols  int
	awaitingNonZero bool

	sumX, sumY     float64
	peaksCollected int
	awaitingGap    bool

	state State
}

// New builds a Demodulator for the given samples-per-symbol M and sample
// rate (Hz), used only to size the settling delay (kSettlingTime ≈ 0.25s).
func New(m int, sampleRate float64) *Demodulator {
	d := &Demodulator{
		m:            m,
		settlingTime: uint64(sampleRate * 0.25),
		symbols:      ring.New[byte](symbolFifoCapacity),
		hpf:          onepole.NewHighPass(0.001),
		follower:     onepole.NewLowPass(0.0001),
		pll:          pll.New(1.0 / float64(m)),
		crfI:         crf.New(m),
		crfQ:         crf.New(m),
		corr:         correlator.New(m),
		iBay:         window.NewBay[float64](m, correlator.Length),
		qBay:         window.NewBay[float64](m, correlator.Length),
		agcGain:      1,
	}
	return d
}

// SymbolsAvailable reports how many decoded symbols are waiting to be
// popped.
func (d *Demodulator) SymbolsAvailable() int { return d.symbols.Available() }

// PopSymbol removes and returns the oldest decoded symbol.
func (d *Demodulator) PopSymbol() (byte, bool) { return d.symbols.Pop() }

// State returns the demodulator's current state.
func (d *Demodulator) State() State { return d.state }

// PllPhase returns the PLL's current phase in [0,1).
func (d *Demodulator) PllPhase() float64 { return d.pll.Phase() }

// PllPhaseIncrement returns the PLL's current step.
func (d *Demodulator) PllPhaseIncrement() float64 { return d.pll.PhaseIncrement() }

// DecisionPhase returns the phase at which symbols are currently sliced.
func (d *Demodulator) DecisionPhase() float64 { return d.decisionPhase }

// SignalPower returns the envelope follower's current output.
func (d *Demodulator) SignalPower() float64 { return d.follower.Output() }

// SyncCarrier starts (or restarts) carrier acquisition. With discover
// true, gain and carrier lock are rediscovered from WAIT_TO_SETTLE; with
// discover false, the existing AGC gain and PLL step are kept and carrier
// tracking resumes directly at CARRIER_SYNC (used between blocks within a
// session).
func (d *Demodulator) SyncCarrier(discover bool) {
	d.skippedSamples = 0
	d.skippedSymbols = 0
	d.awaitingNonZero = false
	d.symbols.Flush()

	if discover {
		d.follower.Reset()
		d.pll.Reset()
		d.state = StateWaitToSettle
	} else {
		d.pll.Sync()
		d.state = StateCarrierSync
	}
}

// enterAlign transitions from CARRIER_SYNC to ALIGN once the first
// non-zero symbol after the carrier-sync run of zeros has been seen.
func (d *Demodulator) enterAlign() {
	d.state = StateAlign
	d.corr.Reset()
	d.decisionPhase = 0
	d.inhibitDecision = true
	d.sumX, d.sumY = 0, 0
	d.peaksCollected = 0
	d.awaitingGap = false
	d.skippedSymbols = 0
	d.symbols.Flush()
}

// wrapPhase folds x into [0,1).
func wrapPhase(x float64) float64 {
	x -= math.Floor(x)
	return x
}

// Process filters one audio sample through the full demodulation chain.
func (d *Demodulator) Process(sample float64) {
	sample = d.hpf.Process(sample)
	env := math.Abs(sample)
	d.follower.Process(env)
	level := d.follower.Output()
	sample *= d.agcGain

	switch d.state {
	case StateWaitToSettle:
		if d.skippedSamples < d.settlingTime {
			d.skippedSamples++
		} else if level > kLevelThreshold {
			d.skippedSamples = 0
			d.state = StateSenseGain
		}
	case StateSenseGain:
		if d.skippedSamples < d.settlingTime {
			d.skippedSamples++
		} else if level > kLevelThreshold {
			d.agcGain = kAGCTarget / level
			d.state = StateCarrierSync
			debug.Logf("demod: gain set to %.4f, entering CARRIER_SYNC\n", d.agcGain)
		} else {
			d.skippedSamples = 0
			d.state = StateWaitToSettle
		}
	case StateError:
		// terminal
	default:
		if level < kLevelThreshold {
			debug.Logf("demod: signal level %.4f dropped below threshold, entering ERROR\n", level)
			d.state = StateError
			return
		}
		d.demodulate(sample)
	}
}

const (
	kLatest = 0
	kLate   = 1
)

func (d *Demodulator) kEarly() int    { return d.m - 2 }
func (d *Demodulator) kEarliest() int { return d.m - 1 }

func (d *Demodulator) demodulate(sample float64) {
	phase := d.pll.Phase()

	iOsc := trig.Cosine(phase)
	qOsc := trig.Sine(phase)

	i := d.crfI.Process(sample * iOsc)
	q := d.crfQ.Process(sample * -qOsc)

	var phaseError float64
	if d.state == StateCarrierSync {
		phaseError = q - i // lock to (-1,-1), symbol 0
	} else {
		var a, b float64
		if q > 0 {
			a = i
		} else {
			a = -i
		}
		if i > 0 {
			b = q
		} else {
			b = -q
		}
		phaseError = a - b
	}
	d.pll.Process(phaseError / 8)

	d.iBay.Write(i)
	d.qBay.Write(q)

	prevPhase := phase
	phase = d.pll.Phase()
	wrapped := prevPhase > phase

	var decide bool
	if d.inhibitDecision {
		decide = false
		d.inhibitDecision = false
	} else if !wrapped {
		decide = prevPhase < d.decisionPhase && phase >= d.decisionPhase
	} else {
		decide = prevPhase < d.decisionPhase || phase >= d.decisionPhase
	}

	if decide {
		switch d.state {
		case StateCarrierSync:
			if d.decideSymbol(false) == 0 {
				d.skippedSymbols++
				if d.skippedSymbols == kCarrierSyncLength {
					d.awaitingNonZero = true
				}
			} else {
				d.skippedSymbols = 0
				if d.awaitingNonZero {
					d.enterAlign()
				}
			}
		case StateAlign:
			// Decisions during ALIGN only drive the correlator below; the
			// marker-based framing layer has no sentinel alphabet (that
			// belongs to the retired preamble-sync variant), so nothing is
			// pushed to the symbol FIFO until alignment completes.
		case StateOK:
			d.symbols.Push(d.decideSymbol(true))
		}
	}

	if d.state == StateAlign {
		if peak, found := d.corr.Process(d.iBay, d.qBay); found {
			corrected := wrapPhase(prevPhase + d.pll.PhaseIncrement()*peak.Tilt)
			d.sumX += trig.Cosine(corrected)
			d.sumY += trig.Sine(corrected)
			d.peaksCollected++

			if d.peaksCollected == kNumCorrelationPeaks {
				d.decisionPhase = trig.VectorToPhase(d.sumX, d.sumY)
				d.awaitingGap = true
			}
		}

		if d.awaitingGap {
			gap := wrapPhase(d.decisionPhase - phase)
			if gap > 0.5 {
				d.awaitingGap = false
				d.state = StateOK
			}
		}
	}
}

// decideSymbol slices the current symbol from the running I/Q sums. With
// adjustTiming, it also evaluates early- and late-aligned sums and uses one
// of them when it alone is more than 1.25x as strong as the on-time sums,
// tracking clock drift sample by sample.
func (d *Demodulator) decideSymbol(adjustTiming bool) byte {
	qSum := d.qBay.At(0).Sum()
	iSum := d.iBay.At(0).Sum()

	qOnTime := qSum - d.qBay.At(0).At(kLatest) - d.qBay.At(0).At(d.kEarliest())
	iOnTime := iSum - d.iBay.At(0).At(kLatest) - d.iBay.At(0).At(d.kEarliest())

	if adjustTiming {
		qEarly := qSum - d.qBay.At(0).At(kLate) - d.qBay.At(0).At(kLatest)
		iEarly := iSum - d.iBay.At(0).At(kLate) - d.iBay.At(0).At(kLatest)
		qLate := qSum - d.qBay.At(0).At(d.kEarly()) - d.qBay.At(0).At(d.kEarliest())
		iLate := iSum - d.iBay.At(0).At(d.kEarly()) - d.iBay.At(0).At(d.kEarliest())

		onTimeStrength := math.Abs(qOnTime) + math.Abs(iOnTime)
		earlyStrength := math.Abs(qEarly) + math.Abs(iEarly)
		lateStrength := math.Abs(qLate) + math.Abs(iLate)
		threshold := 1.25 * onTimeStrength

		lateOver := lateStrength > threshold
		earlyOver := earlyStrength > threshold

		qSum, iSum = qOnTime, iOnTime
		if lateOver && !earlyOver {
			qSum, iSum = qLate, iLate
		} else if earlyOver && !lateOver {
			qSum, iSum = qEarly, iEarly
		}
	} else {
		qSum, iSum = qOnTime, iOnTime
	}

	var symbol byte
	if iSum >= 0 {
		symbol |= 2
	}
	if qSum >= 0 {
		symbol |= 1
	}
	return symbol
}
