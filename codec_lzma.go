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
	"errors"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

func init() {
	RegisterCodec(CodecLZMA, func(h *Header) Codec { return &lzmaCodec{hunkBytes: uint32(h.HunkBytes)} })
	RegisterCodec(CodecCDLZMA, func(*Header) Codec { return &cdLZMACodec{} })
}

// lzmaCodec decompresses CHD's "lzma" codec: a raw LZMA stream with no
// header. Properties are reconstructed from the hunk size the way MAME's
// configure_properties does (level 8, reduceSize = hunkbytes).
type lzmaCodec struct {
	hunkBytes uint32
}

// computeLZMADictSize mirrors LzmaEncProps_Normalize: the smallest 2<<i
// or 3<<i that is >= hunkBytes, for level-8 encoding.
func computeLZMADictSize(hunkBytes uint32) uint32 {
	reduceSize := hunkBytes
	for i := uint32(11); i <= 30; i++ {
		if reduceSize <= (2 << i) {
			return 2 << i
		}
		if reduceSize <= (3 << i) {
			return 3 << i
		}
	}
	return 1 << 26
}

func (c *lzmaCodec) Decompress(dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, wrapError(KindDecompressionError, "lzma: empty source", nil)
	}

	hunkBytes := c.hunkBytes
	if hunkBytes == 0 {
		hunkBytes = uint32(len(dst))
	}
	dictSize := computeLZMADictSize(hunkBytes)

	// lc=3, lp=0, pb=2 encoded as a single properties byte, matching
	// MAME's default encoder properties for CHD's headerless LZMA codec.
	const propsLcLpPb = 0x5D

	header := make([]byte, 13)
	header[0] = propsLcLpPb
	binary.LittleEndian.PutUint32(header[1:5], dictSize)
	binary.LittleEndian.PutUint64(header[5:13], uint64(len(dst)))

	fullStream := make([]byte, 13+len(src))
	copy(fullStream[0:13], header)
	copy(fullStream[13:], src)

	reader, err := lzma.NewReader(bytes.NewReader(fullStream))
	if err != nil {
		return 0, wrapError(KindDecompressionError, "lzma: init", err)
	}

	n, err := io.ReadFull(reader, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, wrapError(KindDecompressionError, "lzma: read", err)
	}
	return n, nil
}

// cdLZMACodec implements "cdlz": CD sector data LZMA-compressed,
// subchannel data deflated, ECC regenerated on reassembly.
type cdLZMACodec struct{}

func (c *cdLZMACodec) Decompress(dst, src []byte) (int, error) {
	return c.DecompressCD(dst, src, len(dst), len(dst)/cdFrameBytes)
}

func (*cdLZMACodec) DecompressCD(dst, src []byte, destLen, frames int) (int, error) {
	hdr, err := parseCDCompoundHeader(src, destLen, frames)
	if err != nil {
		return 0, err
	}

	sectorDst := make([]byte, frames*cdSectorBytes)
	inner := &lzmaCodec{hunkBytes: uint32(frames * cdSectorBytes)}
	if _, err := inner.Decompress(sectorDst, hdr.baseData); err != nil {
		return 0, wrapError(KindDecompressionError, "cdlz: sector data", err)
	}

	subDst := make([]byte, frames*cdSubBytes)
	if len(hdr.subData) > 0 {
		if err := inflateZlibInto(subDst, hdr.subData); err != nil {
			return 0, wrapError(KindDecompressionError, "cdlz: subchannel data", err)
		}
	}

	return reassembleCD(dst, sectorDst, subDst, hdr.eccBitmap, frames)
}
