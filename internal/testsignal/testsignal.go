// Package testsignal synthesizes QPSK baseband waveforms for exercising
// the decoder without a live capture device. Grounded on
// original_source/encoder.py's QPSKEncoder: each symbol spans exactly one
// carrier cycle of samples_per_symbol samples, and byte-to-symbol packing
// matches pkg/packet's MSB-first convention so a Builder's output can be
// fed straight into a Decoder's Push/Receive loop in tests.
package testsignal

import "math"

// Config mirrors the construction parameters a Decoder built over the
// same waveform would use.
type Config struct {
	SampleRate float64
	SymbolRate float64 // must evenly divide SampleRate
	CRCSeed    uint32
	ECC        bool
}

// BlockMarker and EndMarker are the 32-bit codes a Builder encodes as 16
// symbols each, matching pkg/decoder's framing constants.
const (
	BlockMarker uint32 = 0xCCCCCCCC
	EndMarker   uint32 = 0xF0F0F0F0
)

// Builder accumulates baseband samples symbol by symbol.
type Builder struct {
	cfg     Config
	m       int
	samples []float64
}

// New builds a Builder for the given configuration.
func New(cfg Config) *Builder {
	return &Builder{cfg: cfg, m: int(cfg.SampleRate / cfg.SymbolRate)}
}

// Samples returns the accumulated waveform.
func (b *Builder) Samples() []float64 { return b.samples }

// symbolWaveform renders one symbol's worth of carrier, matching
// encoder.py's _generate_symbols: msb = (symbol&2)-1, lsb = (symbol&1)*2-1,
// sample[i] = (msb*cos(phase) - lsb*sin(phase)) / sqrt(2).
func (b *Builder) symbolWaveform(symbol byte) []float64 {
	msb := float64(int(symbol&2) - 1)
	lsb := float64(int(symbol&1)*2 - 1)
	out := make([]float64, b.m)
	for i := 0; i < b.m; i++ {
		phase := 2 * math.Pi * float64(i) / float64(b.m)
		out[i] = (msb*math.Cos(phase) - lsb*math.Sin(phase)) / math.Sqrt2
	}
	return out
}

// Symbol appends one symbol's waveform.
func (b *Builder) Symbol(symbol byte) {
	b.samples = append(b.samples, b.symbolWaveform(symbol)...)
}

// Symbols appends a run of symbols in order.
func (b *Builder) Symbols(symbols []byte) {
	for _, s := range symbols {
		b.Symbol(s)
	}
}

// Bytes appends data a byte at a time, four symbols each, MSB first —
// the same order pkg/packet.WriteSymbol expects to pack them back.
func (b *Builder) Bytes(data []byte) {
	for _, v := range data {
		b.Symbol((v >> 6) & 3)
		b.Symbol((v >> 4) & 3)
		b.Symbol((v >> 2) & 3)
		b.Symbol(v & 3)
	}
}

// Marker appends code as 16 two-bit symbols, most significant pair
// first, matching the order pkg/decoder's sync state shifts them back in.
func (b *Builder) Marker(code uint32) {
	for shift := 30; shift >= 0; shift -= 2 {
		b.Symbol(byte((code >> uint(shift)) & 3))
	}
}

// Acquire appends a carrier-only preroll long enough to carry the
// demodulator through WAIT_TO_SETTLE, SENSE_GAIN and CARRIER_SYNC, then
// alignPairs repetitions of the {2,1} alignment pattern for ALIGN. ALIGN
// consumes one pair per correlation peak; pairs beyond the ones it consumes
// are decoded in OK and reach the decoder's marker scan, so a Marker must
// follow exactly as many pairs as ALIGN collects. Defaults are given by
// AcquireDefault.
func (b *Builder) Acquire(zeroSymbols, alignPairs int) {
	// WAIT_TO_SETTLE and SENSE_GAIN each require settlingTime (sampleRate *
	// 0.25) samples to elapse before checking the signal level; round the
	// combined requirement up to whole symbols plus a small margin.
	settlingSamples := 2 * int(b.cfg.SampleRate*0.25)
	settleSymbols := (settlingSamples+b.m-1)/b.m + 2
	for i := 0; i < settleSymbols; i++ {
		b.Symbol(0)
	}
	for i := 0; i < zeroSymbols; i++ {
		b.Symbol(0)
	}
	for i := 0; i < alignPairs; i++ {
		b.Symbol(2)
		b.Symbol(1)
	}
}

// AcquireDefault appends Acquire with a zero-symbol run generous enough for
// the PLL's loop filter (time constant on the order of a handful of
// symbols) to converge well within it, followed by exactly the 8 {2,1}
// pairs the demodulator's ALIGN stage collects (one correlation peak per
// pair).
func (b *Builder) AcquireDefault() {
	b.Acquire(128, 8)
}
