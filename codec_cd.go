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
	"compress/flate"
	"encoding/binary"
	"errors"
	"io"
)

// CD sector/subchannel geometry (spec.md §4.5).
const (
	cdSectorBytes = 2352
	cdSubBytes    = 96
	cdFrameBytes  = cdSectorBytes + cdSubBytes // 2448
)

// inflateZlibInto raw-deflates src into dst, used by every CD compound
// codec's subchannel stream (always deflate, regardless of the codec
// used for the sector data itself).
func inflateZlibInto(dst, src []byte) error {
	r := flate.NewReader(bytes.NewReader(src))
	defer func() { _ = r.Close() }()
	_, err := io.ReadFull(r, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	return nil
}

var cdSyncHeader = [12]byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x00}

// cdCompoundHeader is the parsed fixed prefix common to every CD compound
// codec's compressed payload: an ECC-present bitmap followed by a length
// prefix for the inner data-codec stream.
type cdCompoundHeader struct {
	eccBitmap   []byte
	baseData    []byte
	subData     []byte
	compLenBase int
}

// parseCDCompoundHeader splits src into the ECC bitmap, the inner
// data-codec payload, and the inner subchannel-codec payload, per the
// byte layout of spec.md §4.5 item 1-2.
func parseCDCompoundHeader(src []byte, destLen, frames int) (*cdCompoundHeader, error) {
	compLenBytes := 2
	if destLen >= 65536 {
		compLenBytes = 3
	}
	eccBytes := (frames + 7) / 8
	headerBytes := eccBytes + compLenBytes

	if len(src) < headerBytes {
		return nil, wrapError(KindDecompressionError, "cd codec: source too small for header", nil)
	}

	eccBitmap := src[:eccBytes]

	var compLenBase int
	if compLenBytes > 2 {
		compLenBase = int(src[eccBytes])<<16 | int(src[eccBytes+1])<<8 | int(src[eccBytes+2])
	} else {
		compLenBase = int(binary.BigEndian.Uint16(src[eccBytes : eccBytes+2]))
	}

	if headerBytes+compLenBase > len(src) {
		return nil, wrapError(KindDecompressionError, "cd codec: invalid base length", nil)
	}

	return &cdCompoundHeader{
		eccBitmap:   eccBitmap,
		baseData:    src[headerBytes : headerBytes+compLenBase],
		subData:     src[headerBytes+compLenBase:],
		compLenBase: compLenBase,
	}, nil
}

// reassembleCD interleaves decompressed sector data and subchannel data
// into dst at 2448-byte stride, regenerating ECC for every sector whose
// bit is set in the ECC bitmap (spec.md §4.5 "Reconstruction").
func reassembleCD(dst []byte, sectorData, subData []byte, eccBitmap []byte, frames int) (int, error) {
	dstOffset := 0
	for i := 0; i < frames; i++ {
		srcSectorOffset := i * cdSectorBytes
		if srcSectorOffset+cdSectorBytes > len(sectorData) {
			return 0, wrapError(KindDecompressionError, "cd codec: sector data truncated", nil)
		}
		sector := dst[dstOffset : dstOffset+cdSectorBytes]
		copy(sector, sectorData[srcSectorOffset:srcSectorOffset+cdSectorBytes])

		if len(eccBitmap) > 0 && (eccBitmap[i/8]&(1<<(uint(i)%8))) != 0 {
			copy(sector[:12], cdSyncHeader[:])
			if err := regenerateSectorECC(sector); err != nil {
				return 0, err
			}
		}
		dstOffset += cdSectorBytes

		if cdSubBytes > 0 {
			srcSubOffset := i * cdSubBytes
			if srcSubOffset+cdSubBytes <= len(subData) {
				copy(dst[dstOffset:dstOffset+cdSubBytes], subData[srcSubOffset:srcSubOffset+cdSubBytes])
			}
			dstOffset += cdSubBytes
		}
	}
	return dstOffset, nil
}
