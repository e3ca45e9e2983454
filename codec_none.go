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

func init() {
	RegisterCodec(CodecNoneTag, func(*Header) Codec { return noneCodec{} })
}

// noneCodec implements the "none" raw codec: a verbatim copy, used when
// a V5 codec slot's FourCC tag is literally "none" rather than 0 (unused).
type noneCodec struct{}

func (noneCodec) Decompress(dst, src []byte) (int, error) {
	if len(src) != len(dst) {
		return 0, wrapError(KindDecompressionError, "none codec: length mismatch", nil)
	}
	copy(dst, src)
	return len(dst), nil
}
