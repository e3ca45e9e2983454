// Copyright (c) 2026 The chd-go Authors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of chd.
//
// chd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// chd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with chd.  If not, see <https://www.gnu.org/licenses/>.

package chd

import "testing"

// TestHuffmanDecodeCanonical builds a 4-symbol decoder with code lengths
// [1,2,3,3] directly (bypassing the RLE import) and decodes a hand-built
// bitstream carrying the canonical codes buildLookup assigns for those
// lengths, verifying the lookup table and decode loop agree with each
// other end to end.
func TestHuffmanDecodeCanonical(t *testing.T) {
	t.Parallel()

	hd := newHuffmanDecoder(4, 3, 3)
	hd.nodeBits[0] = 1
	hd.nodeBits[1] = 2
	hd.nodeBits[2] = 3
	hd.nodeBits[3] = 3
	if err := hd.buildLookup(); err != nil {
		t.Fatalf("buildLookup: %v", err)
	}

	// Canonical assignment for these lengths (see buildLookup's
	// descending-length cumulative-start algorithm):
	//   symbol 0 (1 bit): code 1  -> "1"
	//   symbol 1 (2 bits): code 1 -> "01"
	//   symbol 2 (3 bits): code 0 -> "000"
	//   symbol 3 (3 bits): code 1 -> "001"
	// Concatenated: 1 01 000 001 = 101000001, padded to two bytes.
	data := []byte{0xA0, 0x80}
	br := newBitReader(data)

	want := []uint16{0, 1, 2, 3}
	for i, w := range want {
		got, err := hd.decode(br)
		if err != nil {
			t.Fatalf("decode[%d]: %v", i, err)
		}
		if got != w {
			t.Errorf("decode[%d] = %d, want %d", i, got, w)
		}
	}
}

// TestHuffmanDecodeEmptyTreeErrors verifies that a decoder with no
// assigned code lengths (every nodeBits entry 0) fails to decode instead
// of silently returning symbol 0.
func TestHuffmanDecodeEmptyTreeErrors(t *testing.T) {
	t.Parallel()

	hd := newHuffmanDecoder(4, 3, 3)
	if err := hd.buildLookup(); err != nil {
		t.Fatalf("buildLookup: %v", err)
	}

	br := newBitReader([]byte{0xFF, 0xFF})
	if _, err := hd.decode(br); err == nil {
		t.Error("expected error decoding against an empty tree")
	}
}

// TestHuffmanImportTreeSmall verifies the flat 5-bit-length "small" tree
// import: no RLE, just numCodes consecutive 5-bit fields.
func TestHuffmanImportTreeSmall(t *testing.T) {
	t.Parallel()

	// Two codes, lengths 1 and 1 is invalid (both can't be 1 bit in a
	// prefix code), so use lengths 1 and 2... but importTreeSmall just
	// reads whatever is on the wire; verify the lengths round-trip.
	hd := newHuffmanDecoder(2, 5, 5)

	// 5-bit fields: length=1 ("00001"), length=2 ("00010"), then padding;
	// MSB-first packed: 00001 000 | 10 000000.
	br := newBitReader([]byte{0x08, 0x80})
	if err := hd.importTreeSmall(br); err != nil {
		t.Fatalf("importTreeSmall: %v", err)
	}
	if hd.nodeBits[0] != 1 {
		t.Errorf("nodeBits[0] = %d, want 1", hd.nodeBits[0])
	}
	if hd.nodeBits[1] != 2 {
		t.Errorf("nodeBits[1] = %d, want 2", hd.nodeBits[1])
	}
}

func TestHuffmanLengthFieldBits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		maxBits int
		want    int
	}{
		{4, 3},
		{8, 4},
		{16, 5},
		{24, 5},
	}
	for _, tt := range tests {
		if got := huffmanLengthFieldBits(tt.maxBits); got != tt.want {
			t.Errorf("huffmanLengthFieldBits(%d) = %d, want %d", tt.maxBits, got, tt.want)
		}
	}
}
