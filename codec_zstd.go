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

import "github.com/klauspost/compress/zstd"

func init() {
	RegisterCodec(CodecZstd, func(*Header) Codec { return &zstdCodec{} })
	RegisterCodec(CodecCDZstd, func(*Header) Codec { return &cdZstdCodec{} })
}

// zstdCodec decompresses CHD's "zstd" codec: a raw Zstandard frame.
type zstdCodec struct {
	decoder *zstd.Decoder
}

func (z *zstdCodec) Decompress(dst, src []byte) (int, error) {
	if z.decoder == nil {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return 0, wrapError(KindDecompressionError, "zstd: init", err)
		}
		z.decoder = decoder
	}

	result, err := z.decoder.DecodeAll(src, dst[:0])
	if err != nil {
		return 0, wrapError(KindDecompressionError, "zstd", err)
	}
	if len(result) > len(dst) {
		return 0, wrapError(KindDecompressionError, "zstd: output too large", nil)
	}
	if len(result) > 0 && &result[0] != &dst[0] {
		copy(dst, result)
	}
	return len(result), nil
}

// cdZstdCodec implements "cdzs": the same ECC-bitmap + length-prefixed
// compound layout as the other CD codecs (spec.md §4.5), with Zstandard
// for the sector stream and Deflate for the subchannel stream.
type cdZstdCodec struct {
	decoder *zstd.Decoder
}

func (c *cdZstdCodec) Decompress(dst, src []byte) (int, error) {
	return c.DecompressCD(dst, src, len(dst), len(dst)/cdFrameBytes)
}

func (c *cdZstdCodec) DecompressCD(dst, src []byte, destLen, frames int) (int, error) {
	hdr, err := parseCDCompoundHeader(src, destLen, frames)
	if err != nil {
		return 0, err
	}

	if c.decoder == nil {
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return 0, wrapError(KindDecompressionError, "cdzs: init", err)
		}
		c.decoder = decoder
	}

	sectorDst, err := c.decoder.DecodeAll(hdr.baseData, make([]byte, 0, frames*cdSectorBytes))
	if err != nil {
		return 0, wrapError(KindDecompressionError, "cdzs: sector data", err)
	}

	subDst := make([]byte, frames*cdSubBytes)
	if len(hdr.subData) > 0 {
		if err := inflateZlibInto(subDst, hdr.subData); err != nil {
			return 0, wrapError(KindDecompressionError, "cdzs: subchannel data", err)
		}
	}

	return reassembleCD(dst, sectorDst, subDst, hdr.eccBitmap, frames)
}
