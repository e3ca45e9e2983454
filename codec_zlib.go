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
	"errors"
	"io"
)

func init() {
	RegisterCodec(CodecZlib, func(*Header) Codec { return &zlibCodec{} })
	RegisterCodec(CodecCDZlib, func(*Header) Codec { return &cdZlibCodec{} })
}

// zlibCodec decompresses CHD's "zlib" raw codec: raw deflate (RFC 1951),
// not a zlib-wrapped stream. compress/flate implements exactly that, so
// no third-party deflate library is needed here — see DESIGN.md.
type zlibCodec struct{}

func (*zlibCodec) Decompress(dst, src []byte) (int, error) {
	reader := flate.NewReader(bytes.NewReader(src))
	defer func() { _ = reader.Close() }()

	n, err := io.ReadFull(reader, dst)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return n, wrapError(KindDecompressionError, "zlib", err)
	}
	return n, nil
}

// cdZlibCodec implements "cdzl": CD sector data deflated, subchannel
// data deflated separately, ECC regenerated on reassembly.
type cdZlibCodec struct{}

func (c *cdZlibCodec) Decompress(dst, src []byte) (int, error) {
	return c.DecompressCD(dst, src, len(dst), len(dst)/cdFrameBytes)
}

func (*cdZlibCodec) DecompressCD(dst, src []byte, destLen, frames int) (int, error) {
	hdr, err := parseCDCompoundHeader(src, destLen, frames)
	if err != nil {
		return 0, err
	}

	sectorDst := make([]byte, frames*cdSectorBytes)
	r := flate.NewReader(bytes.NewReader(hdr.baseData))
	_, err = io.ReadFull(r, sectorDst)
	_ = r.Close()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, wrapError(KindDecompressionError, "cdzl: sector data", err)
	}

	subDst := make([]byte, frames*cdSubBytes)
	if len(hdr.subData) > 0 {
		if err := inflateZlibInto(subDst, hdr.subData); err != nil {
			return 0, wrapError(KindDecompressionError, "cdzl: subchannel data", err)
		}
	}

	return reassembleCD(dst, sectorDst, subDst, hdr.eccBitmap, frames)
}
