package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"qpskfw/internal/testsignal"
	"qpskfw/pkg/crc32x"
)

func testConfig() Config {
	return Config{
		SampleRate: 48000,
		SymbolRate: 6000,
		PacketSize: 8,
		BlockSize:  16,
		CRCSeed:    0,
	}
}

func encodeWireSymbols(data []byte, seed uint32) []byte {
	c := crc32x.New(seed)
	crc := c.Process(data)
	wire := append([]byte{}, data...)
	wire = append(wire, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))

	syms := make([]byte, 0, len(wire)*4)
	for _, b := range wire {
		syms = append(syms, (b>>6)&3, (b>>4)&3, (b>>2)&3, b&3)
	}
	return syms
}

func feedSync(t *testing.T, d *Decoder, code uint32) Result {
	t.Helper()
	var last Result
	for shift := 30; shift >= 0; shift -= 2 {
		last = d.sync(byte((code >> uint(shift)) & 3))
	}
	return last
}

func TestSyncDetectsBlockMarkerAndEntersDecode(t *testing.T) {
	d, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if res := feedSync(t, d, blockMarker); res != ResultNone {
		t.Errorf("feedSync(blockMarker) = %v, want NONE", res)
	}
	if d.state != stateDecode {
		t.Errorf("state = %v, want stateDecode", d.state)
	}
}

func TestSyncDetectsEndMarkerAndEntersEnd(t *testing.T) {
	d, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if res := feedSync(t, d, endMarker); res != ResultEnd {
		t.Errorf("feedSync(endMarker) = %v, want END", res)
	}
	if d.state != stateEnd {
		t.Errorf("state = %v, want stateEnd", d.state)
	}
	if got := d.Receive(0); got != ResultEnd {
		t.Errorf("Receive() after END = %v, want END", got)
	}
}

func TestSyncCorruptedMarkerEntersErrorSync(t *testing.T) {
	d, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if res := feedSync(t, d, 0x12345678); res != ResultError {
		t.Errorf("feedSync(garbage) = %v, want ERROR", res)
	}
	if d.Error() != ErrorSync {
		t.Errorf("Error() = %v, want ErrorSync", d.Error())
	}
	if got := d.Receive(0); got != ResultError {
		t.Errorf("Receive() after ERROR_SYNC = %v, want ERROR", got)
	}
}

func TestDecodePacketCompleteThenBlockComplete(t *testing.T) {
	d, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d.state = stateDecode
	d.packet.Reset()

	p1 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	syms1 := encodeWireSymbols(p1, 0)
	var firstResult Result
	for i, sym := range syms1 {
		res := d.decodeSymbol(sym)
		if i < len(syms1)-1 && res != ResultNone {
			t.Fatalf("decodeSymbol() at symbol %d = %v, want NONE before the packet is complete", i, res)
		}
		firstResult = res
	}
	if firstResult != ResultPacketComplete {
		t.Fatalf("decodeSymbol() after first packet = %v, want PACKET_COMPLETE", firstResult)
	}

	p2 := []byte{9, 10, 11, 12, 13, 14, 15, 16}
	syms := encodeWireSymbols(p2, 0)
	var final Result
	for _, sym := range syms {
		final = d.decodeSymbol(sym)
	}
	if final != ResultBlockComplete {
		t.Fatalf("decodeSymbol() after second packet = %v, want BLOCK_COMPLETE", final)
	}
	if d.state != stateWrite {
		t.Errorf("state = %v, want stateWrite", d.state)
	}
}

func TestDecodeInvalidCRCEntersErrorCRC(t *testing.T) {
	d, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d.state = stateDecode
	d.packet.Reset()

	syms := encodeWireSymbols([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 0)
	syms[0] ^= 1 // corrupt one bit of the first data symbol

	var final Result
	for _, sym := range syms {
		final = d.decodeSymbol(sym)
	}
	if final != ResultError {
		t.Fatalf("decodeSymbol() on corrupted packet = %v, want ERROR", final)
	}
	if d.Error() != ErrorCRC {
		t.Errorf("Error() = %v, want ErrorCRC", d.Error())
	}
}

func TestAdvanceResumesScanningAfterBlockComplete(t *testing.T) {
	d, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d.state = stateWrite

	if got := d.Receive(0); got != ResultBlockComplete {
		t.Fatalf("Receive() while paused on WRITE = %v, want BLOCK_COMPLETE", got)
	}
	if !d.Advance(true) {
		t.Fatal("Advance(true) = false, want true while paused on WRITE")
	}
	if d.state != stateSync {
		t.Errorf("state after Advance(true) = %v, want stateSync", d.state)
	}
}

func TestAdvanceFalseEntersErrorPageWrite(t *testing.T) {
	d, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d.state = stateWrite

	if d.Advance(false) {
		t.Fatal("Advance(false) = true, want false")
	}
	if d.Error() != ErrorPageWrite {
		t.Errorf("Error() = %v, want ErrorPageWrite", d.Error())
	}
}

func TestAdvanceIsNoopOutsideWrite(t *testing.T) {
	d, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if d.Advance(true) {
		t.Fatal("Advance(true) = true while in SYNC, want false (no-op)")
	}
}

func TestAbortDuringSamplesDrainedSurfacesErrorAbort(t *testing.T) {
	d, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	d.PushAll(make([]float64, 16))
	d.Abort()
	if got := d.Receive(0); got != ResultError {
		t.Fatalf("Receive() after Abort() = %v, want ERROR", got)
	}
	if d.Error() != ErrorAbort {
		t.Errorf("Error() = %v, want ErrorAbort", d.Error())
	}
}

func TestOverflowSurfacesErrorOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.FifoCapacity = 16
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	// Push more samples than the FIFO can hold; the excess is dropped and
	// the overflow flag set, surfaced on the next Receive call.
	for i := 0; i < 32; i++ {
		d.Push(0)
	}
	if got := d.Receive(0); got != ResultError {
		t.Fatalf("Receive() after overflow = %v, want ERROR", got)
	}
	if d.Error() != ErrorOverflow {
		t.Errorf("Error() = %v, want ErrorOverflow", d.Error())
	}
}

func TestNewRejectsUnsupportedSamplesPerSymbol(t *testing.T) {
	cfg := testConfig()
	cfg.SymbolRate = 7000 // 48000/7000 is not an integer
	if _, err := New(cfg); err == nil {
		t.Fatal("New() error = nil, want a non-nil error for a non-integer M")
	}
}

func TestNewRejectsNonPowerOfTwoFifo(t *testing.T) {
	cfg := testConfig()
	cfg.FifoCapacity = 100
	if _, err := New(cfg); err == nil {
		t.Fatal("New() error = nil, want a non-nil error for a non-power-of-two fifo capacity")
	}
}

func buildBlockWaveform(sigCfg testsignal.Config, crcSeed uint32, packets [][]byte, marker uint32) []float64 {
	b := testsignal.New(sigCfg)
	b.AcquireDefault()
	b.Marker(marker)
	for _, data := range packets {
		c := crc32x.New(crcSeed)
		crc := c.Process(data)
		wire := append(append([]byte{}, data...), byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
		b.Bytes(wire)
	}
	// One trailing symbol: the demodulator decides a symbol a little after
	// its last sample, so the final frame symbol needs samples beyond it.
	b.Symbol(0)
	return b.Samples()
}

func drainUntil(d *Decoder, stop func(Result) bool) []Result {
	var results []Result
	for {
		res := d.Receive(0)
		results = append(results, res)
		if stop(res) {
			return results
		}
	}
}

// TestFullRoundTripNoiseFree drives a complete block through the decoder
// from a synthesized waveform: carrier acquisition, the block marker, two
// packets filling the block, a resync blank, and the end marker. It
// exercises the full acquisition and framing pipeline spec.md §8's first
// scenario names, scaled down to a two-packet block to keep the
// synthesized waveform small.
func TestFullRoundTripNoiseFree(t *testing.T) {
	cfg := testConfig()
	cfg.FifoCapacity = 1 << 15 // holds the whole acquisition+block waveform
	d, err := New(cfg)
	require.NoError(t, err)

	sigCfg := testsignal.Config{SampleRate: cfg.SampleRate, SymbolRate: cfg.SymbolRate, CRCSeed: cfg.CRCSeed}
	p1 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	p2 := []byte{9, 10, 11, 12, 13, 14, 15, 16}

	samples := buildBlockWaveform(sigCfg, cfg.CRCSeed, [][]byte{p1, p2}, testsignal.BlockMarker)
	require.True(t, d.PushAll(samples), "whole acquisition+block waveform should fit the FIFO")

	results := drainUntil(d, func(r Result) bool { return r == ResultBlockComplete || r == ResultError })
	last := results[len(results)-1]
	require.Equal(t, ResultBlockComplete, last, "decoder state: %v, error: %v, results so far: %v", d.state, d.Error(), results)

	want := append(append([]byte{}, p1...), p2...)
	require.Equal(t, want, d.Data())
	require.True(t, d.Advance(true), "Advance(true) after BLOCK_COMPLETE")

	endSamples := buildBlockWaveform(sigCfg, cfg.CRCSeed, nil, testsignal.EndMarker)
	require.True(t, d.PushAll(endSamples), "end-marker segment should fit the FIFO")

	endResults := drainUntil(d, func(r Result) bool { return r == ResultEnd || r == ResultError })
	require.Equal(t, ResultEnd, endResults[len(endResults)-1], "error kind: %v", d.Error())
}

// TestFullRoundTripWithNoise repeats the same scenario with Gaussian jitter
// added to every sample, approximating a 20dB SNR channel (spec.md §8's
// second scenario). The AGC, PLL and correlator margins in
// testsignal.Builder.AcquireDefault are sized to converge well within this
// noise level; a decode failure here would indicate those margins (or the
// PLL/correlator gains they assume) need revisiting.
func TestFullRoundTripWithNoise(t *testing.T) {
	cfg := testConfig()
	cfg.FifoCapacity = 1 << 15 // holds the whole acquisition+block waveform
	d, err := New(cfg)
	require.NoError(t, err)

	sigCfg := testsignal.Config{SampleRate: cfg.SampleRate, SymbolRate: cfg.SymbolRate, CRCSeed: cfg.CRCSeed}
	p1 := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	p2 := []byte{9, 10, 11, 12, 13, 14, 15, 16}

	samples := buildBlockWaveform(sigCfg, cfg.CRCSeed, [][]byte{p1, p2}, testsignal.BlockMarker)

	// Signal amplitude is on the order of 1/sqrt(2); a noise stddev of 0.05
	// gives roughly 20dB SNR.
	rng := rand.New(rand.NewSource(1))
	const noiseStddev = 0.05
	noisy := make([]float64, len(samples))
	for i, s := range samples {
		noisy[i] = s + rng.NormFloat64()*noiseStddev
	}

	require.True(t, d.PushAll(noisy), "whole acquisition+block waveform should fit the FIFO")

	results := drainUntil(d, func(r Result) bool { return r == ResultBlockComplete || r == ResultError })
	last := results[len(results)-1]
	require.Equal(t, ResultBlockComplete, last, "decoder state: %v, error: %v, results so far: %v", d.state, d.Error(), results)

	want := append(append([]byte{}, p1...), p2...)
	require.Equal(t, want, d.Data())
}
