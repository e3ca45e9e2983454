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

// CD-ROM Mode 1 / Mode 2 Form 1 P/Q error-correction code regeneration,
// per ECMA-130 annex A. No example repo in this module's retrieval pack
// implements CD ECC (the closest, sargunv/rom-tools's cdrom codec, only
// parses the ECC-present bitmap and never regenerates parity); this is
// the public-domain GF(256) product-code construction long used by CD
// mastering and verification tools, written from the documented
// algorithm rather than any one reference's source.
//
// Sector layout (2352 bytes), offsets relative to sector start:
//
//	[0:12)    sync pattern
//	[12:16)   header (MSF address + mode)
//	[16:2064) user data (2048 bytes, Mode 1 / Mode 2 Form 1)
//	[2064:2068) EDC
//	[2068:2076) reserved, zero
//	[2076:2248) P parity (172 bytes)
//	[2248:2352) Q parity (104 bytes)

const (
	eccSrcOffset = 12 // ECC covers header..reserved, i.e. sector[12:2076)
	eccPOffset   = 2076
	eccQOffset   = 2248

	eccPMajorCount = 86
	eccPMinorCount = 24
	eccPMajorMult  = 2
	eccPMinorInc   = 86

	eccQMajorCount = 52
	eccQMinorCount = 43
	eccQMajorMult  = 86
	eccQMinorInc   = 88
)

var eccFLUT, eccBLUT [256]byte

func init() {
	for i := 0; i < 256; i++ {
		j := (i << 1)
		if i&0x80 != 0 {
			j ^= 0x11d
		}
		eccFLUT[i] = byte(j)
		eccBLUT[byte(i)^byte(j)] = byte(i)
	}
}

// eccCompute is the GF(256) product-code parity generator shared by the P
// and Q passes; it differs only in its major/minor geometry.
func eccCompute(src []byte, majorCount, minorCount, majorMult, minorInc int, dest []byte) {
	size := majorCount * minorCount
	for major := 0; major < majorCount; major++ {
		index := (major>>1)*majorMult + (major & 1)
		var eccA, eccB byte
		for minor := 0; minor < minorCount; minor++ {
			temp := src[index]
			index += minorInc
			if index >= size {
				index -= size
			}
			eccA ^= temp
			eccB ^= temp
			eccA = eccFLUT[eccA]
		}
		eccA = eccBLUT[eccFLUT[eccA]^eccB]
		dest[major] = eccA
		dest[major+majorCount] = eccA ^ eccB
	}
}

// regenerateSectorECC recomputes the P and Q parity fields of a 2352-byte
// CD sector in place, from its (already-decompressed) header and user
// data. Q is computed after P, and deliberately reads into the
// just-written P region: the Q major/minor geometry's window size (52*43
// = 2236 bytes) exceeds the 2064-byte header+data+EDC+reserved region it
// nominally covers, wrapping into the freshly regenerated P bytes exactly
// as ECMA-130's product code requires.
func regenerateSectorECC(sector []byte) error {
	if len(sector) < cdSectorBytes {
		return wrapError(KindInvalidData, "ecc: sector too short", nil)
	}
	src := sector[eccSrcOffset:]
	eccCompute(src, eccPMajorCount, eccPMinorCount, eccPMajorMult, eccPMinorInc, sector[eccPOffset:eccPOffset+172])
	eccCompute(src, eccQMajorCount, eccQMinorCount, eccQMajorMult, eccQMinorInc, sector[eccQOffset:eccQOffset+104])
	return nil
}
