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
	"io"
	"sync"

	binutil "github.com/chd-go/chd/internal/binary"
)

// Legacy (V1-V4) compression field values; these are small integers, not
// FourCC tags, so they're mapped onto the V5 codec registry by hand.
const (
	legacyCompressionNone     = 0
	legacyCompressionZlib     = 1
	legacyCompressionZlibPlus = 2
)

func legacyCompressionToTag(compression uint32) (uint32, bool) {
	switch compression {
	case legacyCompressionNone:
		return CodecNoneTag, true
	case legacyCompressionZlib, legacyCompressionZlibPlus:
		return CodecZlib, true
	default:
		return 0, false
	}
}

// hunkEngine resolves map entries to decompressed hunk bytes, recursing
// into self-references and a parent archive as spec.md §4.6 describes.
type hunkEngine struct {
	reader    io.ReaderAt
	header    *Header
	entries   []MapEntry
	codecs    [4]Codec // V5 per-slot codecs; slot 0 doubles as the legacy single codec
	parent    *hunkEngine
	verifyCRC bool

	cacheMu  sync.RWMutex
	cache    map[uint32][]byte
	maxCache int
}

const hunkCacheSize = 16

// newHunkEngine parses r's hunk map and resolves its codec slots, forming
// an engine ready to serve ReadHunk. parent may be nil.
func newHunkEngine(r io.ReaderAt, header *Header, parent *hunkEngine, verifyCRC bool) (*hunkEngine, error) {
	entries, err := parseMap(r, header)
	if err != nil {
		return nil, err
	}

	he := &hunkEngine{
		reader:    r,
		header:    header,
		entries:   entries,
		parent:    parent,
		verifyCRC: verifyCRC,
		cache:     make(map[uint32][]byte),
		maxCache:  hunkCacheSize,
	}

	if header.Version >= 5 {
		for i, tag := range header.Compressors {
			if tag == 0 {
				continue
			}
			codec, err := GetCodec(tag, header)
			if err != nil {
				return nil, err
			}
			he.codecs[i] = codec
		}
	} else if header.IsCompressed() {
		tag, ok := legacyCompressionToTag(header.Compression)
		if !ok {
			return nil, &UnsupportedCodecError{Tag: header.Compression, TagStr: "legacy"}
		}
		codec, err := GetCodec(tag, header)
		if err != nil {
			return nil, err
		}
		he.codecs[0] = codec
	}

	return he, nil
}

// NumHunks returns the hunk count this engine's map covers.
func (he *hunkEngine) NumHunks() uint32 {
	return uint32(len(he.entries))
}

// ReadHunk resolves hunk index into dst, which must be exactly HunkBytes
// long. depth bounds recursive self-reference chains.
func (he *hunkEngine) ReadHunk(index uint32, dst []byte) error {
	return he.readHunkDepth(index, dst, 0)
}

func (he *hunkEngine) readHunkDepth(index uint32, dst []byte, depth int) error {
	if index >= uint32(len(he.entries)) {
		return &HunkOutOfRangeError{Index: index, Count: uint32(len(he.entries))}
	}
	if uint32(depth) > he.NumHunks() {
		return wrapError(KindDecompressionError, "hunk: self-reference cycle detected", nil)
	}
	if uint32(len(dst)) != he.header.HunkBytes {
		return ErrInvalidParameter
	}

	if depth == 0 {
		he.cacheMu.RLock()
		cached, ok := he.cache[index]
		he.cacheMu.RUnlock()
		if ok {
			copy(dst, cached)
			return nil
		}
	}

	entry := he.entries[index]

	switch entry.Kind {
	case EntryUncompressed:
		if err := binutil.ReadAt(he.reader, int64(entry.Offset), dst); err != nil {
			return wrapError(KindReadError, "hunk: uncompressed read", err)
		}

	case EntryCompressed:
		if err := he.readCompressed(entry, dst); err != nil {
			return err
		}

	case EntryMini:
		fillMiniPattern(dst, entry.Offset)

	case EntrySelfRef:
		if err := he.readHunkDepth(uint32(entry.Offset), dst, depth+1); err != nil {
			return err
		}

	case EntryParentRef:
		if he.parent == nil {
			return ErrRequiresParent
		}
		if err := he.parent.ReadHunk(uint32(entry.Offset), dst); err != nil {
			return err
		}

	case EntryInvalid:
		for i := range dst {
			dst[i] = 0
		}

	default:
		return wrapError(KindDecompressionError, "hunk: unknown map entry kind", nil)
	}

	if he.verifyCRC && entry.HasCRC16 && entry.Kind == EntryCompressed {
		if crc16(dst) != entry.CRC16 {
			return wrapError(KindDecompressionError, "hunk: CRC-16 mismatch", nil)
		}
	}

	if depth == 0 {
		he.cacheMu.Lock()
		if len(he.cache) >= he.maxCache {
			he.cache = make(map[uint32][]byte)
		}
		stored := make([]byte, len(dst))
		copy(stored, dst)
		he.cache[index] = stored
		he.cacheMu.Unlock()
	}

	return nil
}

func (he *hunkEngine) readCompressed(entry MapEntry, dst []byte) error {
	codec := he.codecs[entry.CodecIndex]
	if codec == nil {
		return &UnsupportedCodecError{Tag: he.header.Compressors[entry.CodecIndex], TagStr: codecTagToString(he.header.Compressors[entry.CodecIndex])}
	}

	compData, err := binutil.ReadBytesAt(he.reader, int64(entry.Offset), int(entry.CompLength))
	if err != nil {
		return wrapError(KindReadError, "hunk: compressed read", err)
	}

	if cdCodec, ok := codec.(CDCodec); ok {
		unitBytes := int(he.header.UnitBytes)
		if unitBytes == 0 {
			unitBytes = cdFrameBytes
		}
		frames := len(dst) / unitBytes
		n, err := cdCodec.DecompressCD(dst, compData, len(dst), frames)
		if err != nil {
			return err
		}
		if n != len(dst) {
			return wrapError(KindDecompressionError, "hunk: CD codec short output", nil)
		}
		return nil
	}

	n, err := codec.Decompress(dst, compData)
	if err != nil {
		return err
	}
	if n != len(dst) {
		return wrapError(KindDecompressionError, "hunk: codec short output", nil)
	}
	return nil
}

// fillMiniPattern tiles the 8-byte big-endian pattern stored in a Mini
// entry's Offset field across dst (spec.md §3, §4.6).
func fillMiniPattern(dst []byte, pattern uint64) {
	var p [8]byte
	for i := 0; i < 8; i++ {
		p[i] = byte(pattern >> uint(56-8*i))
	}
	for i := range dst {
		dst[i] = p[i%8]
	}
}
