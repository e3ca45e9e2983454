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

import "sync"

// Codec FourCC tags (spec.md §6), each the big-endian value of its
// 4-character ASCII name.
const (
	CodecNone    uint32 = 0x00000000 // sentinel: codec slot unused
	CodecNoneTag uint32 = 0x6e6f6e65 // "none": explicit uncompressed codec
	CodecZlib    uint32 = 0x7a6c6962 // "zlib"
	CodecLZMA   uint32 = 0x6c7a6d61 // "lzma"
	CodecHuff   uint32 = 0x68756666 // "huff"
	CodecFLAC   uint32 = 0x666c6163 // "flac"
	CodecZstd   uint32 = 0x7a737464 // "zstd"
	CodecCDZlib uint32 = 0x63647a6c // "cdzl"
	CodecCDLZMA uint32 = 0x63646c7a // "cdlz"
	CodecCDFLAC uint32 = 0x6364666c // "cdfl"
	CodecCDZstd uint32 = 0x63647a73 // "cdzs"
	CodecAVHU   uint32 = 0x61766875 // "avhu" — reserved, never registered; see the open question decisions in DESIGN.md
)

// Codec decompresses a raw hunk payload into a fixed-size destination.
type Codec interface {
	// Decompress decompresses src into dst, which is preallocated to the
	// hunk's decompressed size, and returns the number of bytes written.
	Decompress(dst, src []byte) (int, error)
}

// CDCodec decompresses a CD compound hunk payload: the ECC-bitmap +
// length-prefixed sector/subchannel layout of spec.md §4.5.
type CDCodec interface {
	Codec

	// DecompressCD decompresses src, which holds hunkBytes/2448 sectors
	// worth of compound-coded data, into dst (hunkBytes long), and
	// regenerates any ECC bytes the bitmap marks as stripped.
	DecompressCD(dst, src []byte, hunkBytes, frames int) (int, error)
}

// codecFactory instantiates a fresh, stateless-on-entry codec. Codecs
// with internal backend state (LZMA, FLAC) must reset that state on
// every Decompress call rather than relying on a single shared instance,
// so a factory per registration is sufficient.
type codecFactory func(header *Header) Codec

var (
	codecRegistry   = make(map[uint32]codecFactory)
	codecRegistryMu sync.RWMutex
)

// RegisterCodec registers a codec factory for tag. Called from each
// codec_*.go file's init().
func RegisterCodec(tag uint32, factory func(header *Header) Codec) {
	codecRegistryMu.Lock()
	defer codecRegistryMu.Unlock()
	codecRegistry[tag] = factory
}

// GetCodec returns a fresh codec instance for tag, scoped to header (some
// codecs need HunkBytes/UnitBytes to size internal buffers).
func GetCodec(tag uint32, header *Header) (Codec, error) {
	codecRegistryMu.RLock()
	factory, ok := codecRegistry[tag]
	codecRegistryMu.RUnlock()

	if !ok {
		return nil, &UnsupportedCodecError{Tag: tag, TagStr: codecTagToString(tag)}
	}
	return factory(header), nil
}

// codecTagToString renders a FourCC tag as its ASCII string, or "none".
func codecTagToString(tag uint32) string {
	if tag == 0 {
		return "none"
	}
	b := []byte{byte(tag >> 24), byte(tag >> 16), byte(tag >> 8), byte(tag)}
	return string(b)
}

// IsCDCodec reports whether tag names one of the CD compound codecs.
func IsCDCodec(tag uint32) bool {
	switch tag {
	case CodecCDZlib, CodecCDLZMA, CodecCDFLAC, CodecCDZstd:
		return true
	default:
		return false
	}
}
