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

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildCDCompoundPayload assembles one frame's worth of compound CD codec
// input: an all-clear ECC bitmap (no regeneration requested), a 2-byte
// length prefix, deflated sector data, then deflated subchannel data.
func buildCDCompoundPayload(t *testing.T, sector, sub []byte) []byte {
	t.Helper()
	compSector := deflateBytes(t, sector)
	compSub := deflateBytes(t, sub)

	buf := make([]byte, 0, 1+2+len(compSector)+len(compSub))
	buf = append(buf, 0x00) // ECC bitmap: 1 byte for 1 frame, no bits set
	var lenField [2]byte
	binary.BigEndian.PutUint16(lenField[:], uint16(len(compSector)))
	buf = append(buf, lenField[:]...)
	buf = append(buf, compSector...)
	buf = append(buf, compSub...)
	return buf
}

func TestCDZlibCodecDecompressCD(t *testing.T) {
	t.Parallel()

	sector := bytes.Repeat([]byte{0x5A}, cdSectorBytes)
	sub := bytes.Repeat([]byte{0x96}, cdSubBytes)
	src := buildCDCompoundPayload(t, sector, sub)

	codec := &cdZlibCodec{}
	dst := make([]byte, cdFrameBytes)
	n, err := codec.DecompressCD(dst, src, cdFrameBytes, 1)
	if err != nil {
		t.Fatalf("DecompressCD: %v", err)
	}
	if n != cdFrameBytes {
		t.Errorf("n = %d, want %d", n, cdFrameBytes)
	}
	if !bytes.Equal(dst[:cdSectorBytes], sector) {
		t.Error("sector data mismatch")
	}
	if !bytes.Equal(dst[cdSectorBytes:], sub) {
		t.Error("subchannel data mismatch")
	}
}

func TestParseCDCompoundHeaderTruncated(t *testing.T) {
	t.Parallel()

	_, err := parseCDCompoundHeader([]byte{0x00}, cdFrameBytes, 1)
	if err == nil {
		t.Error("expected error for truncated compound header")
	}
}

func TestParseCDCompoundHeaderInvalidLength(t *testing.T) {
	t.Parallel()

	// 1-byte ECC bitmap + 2-byte length claiming far more data than present.
	src := []byte{0x00, 0xFF, 0xFF}
	_, err := parseCDCompoundHeader(src, cdFrameBytes, 1)
	if err == nil {
		t.Error("expected error for invalid base length")
	}
}

// TestReassembleCDRegeneratesECC sets the ECC-present bit for one frame
// whose decompressed sector is otherwise all zero, driving reassembleCD's
// regenerateSectorECC path end to end (spec.md §8 seed scenario 4). The
// sync header must be stamped in and, since the zero codeword maps to
// zero parity for both GF(256) passes (see ecc_test.go), the P/Q region
// must come out all zero too.
func TestReassembleCDRegeneratesECC(t *testing.T) {
	t.Parallel()

	sectorData := make([]byte, cdSectorBytes)
	subData := bytes.Repeat([]byte{0x42}, cdSubBytes)

	dst := make([]byte, cdFrameBytes)
	eccBitmap := []byte{0x01} // bit 0 set: regenerate ECC for this sector
	n, err := reassembleCD(dst, sectorData, subData, eccBitmap, 1)
	if err != nil {
		t.Fatalf("reassembleCD: %v", err)
	}
	if n != len(dst) {
		t.Errorf("n = %d, want %d", n, len(dst))
	}

	if !bytes.Equal(dst[:12], cdSyncHeader[:]) {
		t.Errorf("sync header = %v, want %v", dst[:12], cdSyncHeader[:])
	}
	for i := eccPOffset; i < eccQOffset+104; i++ {
		if dst[i] != 0 {
			t.Fatalf("dst[%d] = %#x, want 0 (all-zero input regenerates to all-zero parity)", i, dst[i])
		}
	}
	if !bytes.Equal(dst[cdSectorBytes:], subData) {
		t.Error("subchannel data mismatch")
	}
}

func TestReassembleCDMultiFrame(t *testing.T) {
	t.Parallel()

	const frames = 2
	sectorData := make([]byte, frames*cdSectorBytes)
	subData := make([]byte, frames*cdSubBytes)
	for i := range sectorData {
		sectorData[i] = byte(i)
	}
	for i := range subData {
		subData[i] = byte(i + 1)
	}

	dst := make([]byte, frames*cdFrameBytes)
	eccBitmap := []byte{0x00}
	n, err := reassembleCD(dst, sectorData, subData, eccBitmap, frames)
	if err != nil {
		t.Fatalf("reassembleCD: %v", err)
	}
	if n != len(dst) {
		t.Errorf("n = %d, want %d", n, len(dst))
	}

	for i := 0; i < frames; i++ {
		frame := dst[i*cdFrameBytes : (i+1)*cdFrameBytes]
		wantSector := sectorData[i*cdSectorBytes : (i+1)*cdSectorBytes]
		if !bytes.Equal(frame[:cdSectorBytes], wantSector) {
			t.Errorf("frame %d: sector mismatch", i)
		}
		wantSub := subData[i*cdSubBytes : (i+1)*cdSubBytes]
		if !bytes.Equal(frame[cdSectorBytes:], wantSub) {
			t.Errorf("frame %d: subchannel mismatch", i)
		}
	}
}
