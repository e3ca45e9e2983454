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
	RegisterCodec(CodecHuff, func(*Header) Codec { return &huffCodec{} })
}

const (
	huffByteAlphabet = 256
	huffByteMaxBits  = 24
)


// huffCodec decompresses CHD's "huff" codec: a single canonical Huffman
// stream over byte values, with the tree (large RLE form) embedded at the
// head of the stream (spec.md §4.3, §4.4).
type huffCodec struct{}

func (*huffCodec) Decompress(dst, src []byte) (int, error) {
	br := newBitReader(src)
	hd := newHuffmanDecoder(huffByteAlphabet, huffByteMaxBits, 0)
	if err := hd.importTreeRLE(br); err != nil {
		return 0, err
	}

	for i := range dst {
		symbol, err := hd.decode(br)
		if err != nil {
			return i, err
		}
		dst[i] = byte(symbol)
	}
	return len(dst), nil
}
