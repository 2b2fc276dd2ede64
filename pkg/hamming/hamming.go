// Package hamming implements the non-traditional extended-Hamming
// single-bit correction used over a packet's data+CRC region. Rather than
// interleaving parity bits among the data bits, the parity-bit positions
// (powers of two in the bit-number sequence) are simply skipped, and their
// values come from a separate ECC field carried alongside the packet. Any
// conforming encoder must mirror this layout exactly — it is not a generic
// Hamming code. Grounded on original_source/inc/error_correction.h
// (Copyright 2021 Tyler Coy, MIT licensed).
package hamming

import "math/bits"

// Decoder computes and, where correctable, applies a single-bit correction
// to a byte buffer using an out-of-band parity field.
type Decoder struct {
	syndrome   uint32
	bitNum     uint32
	parityBits uint32
}

// Init resets the decoder for a new region, with parityBits holding the
// ECC field's bits (one bit per power-of-two bit-number position).
func (d *Decoder) Init(parityBits uint32) {
	d.syndrome = 0
	d.bitNum = 1
	d.parityBits = parityBits
}

// Process folds data into the running syndrome, skipping over the
// power-of-two bit-number positions reserved for parity (pulling their
// value from parityBits instead), then corrects a single flipped bit in
// data in place if the resulting syndrome indicates one.
func (d *Decoder) Process(data []byte) {
	for i := 0; i < len(data)*8; i++ {
		for d.bitNum&(d.bitNum-1) == 0 {
			d.syndrome ^= d.parityBits & d.bitNum
			d.bitNum++
		}

		bit := (data[i/8] >> (i % 8)) & 1
		if bit != 0 {
			d.syndrome ^= d.bitNum
		}
		d.bitNum++
	}

	// syndrome & (syndrome-1) == 0 for both 0 (no error) and a power of
	// two (a parity bit flipped, which carries no information worth
	// correcting); only a non-power-of-two syndrome names a correctable
	// data bit.
	if d.syndrome&(d.syndrome-1) != 0 {
		width := uint32(bits.Len32(d.syndrome))
		bitPos := d.syndrome - 1 - width
		if int(bitPos) < len(data)*8 {
			data[bitPos/8] ^= 1 << (bitPos % 8)
		}
	}
}

// Syndrome returns the accumulated syndrome after Process.
func (d *Decoder) Syndrome() uint32 { return d.syndrome }
