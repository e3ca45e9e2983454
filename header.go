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

// Package chd decodes CHD (Compressed Hunks of Data) disc and disk
// images: MAME's container format for disks, CD-ROMs, and laserdiscs.
package chd

import (
	"encoding/binary"
	"io"

	binutil "github.com/chd-go/chd/internal/binary"
)

// chdMagic is the fixed 8-byte magic word at offset 0 of every CHD file.
var chdMagic = [8]byte{'M', 'C', 'o', 'm', 'p', 'r', 'H', 'D'}

const (
	headerSizeV1 = 76
	headerSizeV2 = 80
	headerSizeV3 = 120
	headerSizeV4 = 108
	headerSizeV5 = 124
)

// Header is the canonical, version-normalized CHD header. It is parsed
// once at open time and never mutated thereafter.
type Header struct {
	Magic        [8]byte
	HeaderSize   uint32
	Version      uint32
	Compressors  [4]uint32 // V5 FourCC tags; all zero for V1-V4, whose single codec is in Compression
	LogicalBytes uint64
	MapOffset    uint64
	MetaOffset   uint64
	HunkBytes    uint32
	UnitBytes    uint32
	UnitCount    uint64
	MD5          [16]byte
	ParentMD5    [16]byte
	RawSHA1      [20]byte
	SHA1         [20]byte
	ParentSHA1   [20]byte
	Flags        uint32
	Compression  uint32
	TotalHunks   uint32
}

// NumHunks returns the total number of hunks in the CHD file.
func (h *Header) NumHunks() uint32 {
	if h.TotalHunks > 0 {
		return h.TotalHunks
	}
	if h.HunkBytes == 0 {
		return 0
	}
	return uint32((h.LogicalBytes + uint64(h.HunkBytes) - 1) / uint64(h.HunkBytes))
}

// IsCompressed reports whether the CHD uses any compression codec.
func (h *Header) IsCompressed() bool {
	if h.Version >= 5 {
		return h.Compressors[0] != 0
	}
	return h.Compression != 0
}

// HasParent reports whether this header declares a non-zero parent SHA-1
// (V3+) or parent MD5 (V1-V2), meaning a parent archive must be supplied.
func (h *Header) HasParent() bool {
	if h.Version >= 3 {
		return h.ParentSHA1 != [20]byte{}
	}
	return h.ParentMD5 != [16]byte{}
}

// parseHeader reads and parses a CHD header from r, which must expose the
// whole file for random access (the map and metadata parsers read from it
// independently afterward).
func parseHeader(r io.ReaderAt) (*Header, error) {
	prefix, err := binutil.ReadBytesAt(r, 0, 12)
	if err != nil {
		return nil, wrapError(KindReadError, "read header prefix", err)
	}

	var header Header
	copy(header.Magic[:], prefix[:8])
	if header.Magic != chdMagic {
		return nil, ErrInvalidFile
	}
	header.HeaderSize = binary.BigEndian.Uint32(prefix[8:12])

	remaining := int(header.HeaderSize) - 12
	if remaining <= 0 || remaining > 4096 {
		return nil, wrapError(KindInvalidFile, "implausible header size", nil)
	}

	buf, err := binutil.ReadBytesAt(r, 12, remaining)
	if err != nil {
		return nil, wrapError(KindReadError, "read header body", err)
	}
	if len(buf) < 4 {
		return nil, ErrInvalidData
	}
	header.Version = binary.BigEndian.Uint32(buf[0:4])

	switch header.Version {
	case 1:
		err = parseHeaderV1(&header, buf)
	case 2:
		err = parseHeaderV2(&header, buf)
	case 3:
		err = parseHeaderV3(&header, buf)
	case 4:
		err = parseHeaderV4(&header, buf)
	case 5:
		err = parseHeaderV5(&header, buf)
	default:
		return nil, ErrUnsupportedVersion
	}
	if err != nil {
		return nil, err
	}

	if header.NumHunks() > MaxNumHunks {
		return nil, wrapError(KindInvalidFile, "hunk count exceeds implementation limit", nil)
	}

	return &header, nil
}

// parseHeaderV1 parses a V1 header (76 bytes total). V1/V2 predate
// explicit hunk-byte fields: hunk size is derived from a per-cylinder
// sector geometry, and only an MD5 digest is present. Unit size is fixed
// at 512 bytes (a disk sector) per spec.md §4.1.
//
//	Offset 0x00: Magic (8 bytes)
//	Offset 0x08: Header size (4 bytes)
//	Offset 0x0C: Version (4 bytes)
//	Offset 0x10: Flags (4 bytes)
//	Offset 0x14: Compression (4 bytes)
//	Offset 0x18: Total hunks (4 bytes)
//	Offset 0x1C: Cylinders (4 bytes)
//	Offset 0x20: Heads (4 bytes)
//	Offset 0x24: Sectors (4 bytes)
//	Offset 0x28: MD5 (16 bytes)
//	Offset 0x38: Parent MD5 (16 bytes)
//	Offset 0x48: Sector length (4 bytes)
func parseHeaderV1(header *Header, buf []byte) error {
	if len(buf) < headerSizeV1-12 {
		return wrapError(KindInvalidFile, "buffer too small for V1", nil)
	}
	header.Flags = binary.BigEndian.Uint32(buf[4:8])
	header.Compression = binary.BigEndian.Uint32(buf[8:12])
	header.TotalHunks = binary.BigEndian.Uint32(buf[12:16])
	cylinders := binary.BigEndian.Uint32(buf[16:20])
	heads := binary.BigEndian.Uint32(buf[20:24])
	sectors := binary.BigEndian.Uint32(buf[24:28])
	copy(header.MD5[:], buf[28:44])
	copy(header.ParentMD5[:], buf[44:60])
	sectorLength := binary.BigEndian.Uint32(buf[60:64])

	header.UnitBytes = 512
	hunksPerCyl := heads * sectors
	header.HunkBytes = sectorLength * hunksPerCylOrOne(hunksPerCyl)
	header.LogicalBytes = uint64(cylinders) * uint64(heads) * uint64(sectors) * uint64(sectorLength)
	header.MapOffset = uint64(header.HeaderSize)
	return nil
}

// parseHeaderV2 parses a V2 header (80 bytes): the V1 layout followed by
// unit bytes read from the header instead of the V1 hardcoded 512 (a zero
// value falls back to 512).
//
//	Offset 0x00-0x4B: same as V1
//	Offset 0x4C: Unit bytes (4 bytes)
func parseHeaderV2(header *Header, buf []byte) error {
	if len(buf) < headerSizeV2-12 {
		return wrapError(KindInvalidFile, "buffer too small for V2", nil)
	}
	if err := parseHeaderV1(header, buf); err != nil {
		return err
	}
	header.UnitBytes = binary.BigEndian.Uint32(buf[64:68])
	if header.UnitBytes == 0 {
		header.UnitBytes = 512
	}
	return nil
}

func hunksPerCylOrOne(v uint32) uint32 {
	if v == 0 {
		return 1
	}
	return v
}

// parseHeaderV3 parses a V3 header (120 bytes total).
//
//	Offset 0x00: Magic (8 bytes)
//	Offset 0x08: Header size (4 bytes)
//	Offset 0x0C: Version (4 bytes)
//	Offset 0x10: Flags (4 bytes)
//	Offset 0x14: Compression (4 bytes)
//	Offset 0x18: Total hunks (4 bytes)
//	Offset 0x1C: Logical bytes (8 bytes)
//	Offset 0x24: Meta offset (8 bytes)
//	Offset 0x2C: MD5 (16 bytes)
//	Offset 0x3C: Parent MD5 (16 bytes)
//	Offset 0x4C: Hunk bytes (4 bytes)
//	Offset 0x50: SHA1 (20 bytes)
//	Offset 0x64: Parent SHA1 (20 bytes)
func parseHeaderV3(header *Header, buf []byte) error {
	if len(buf) < headerSizeV3-12 {
		return wrapError(KindInvalidFile, "buffer too small for V3", nil)
	}
	header.Flags = binary.BigEndian.Uint32(buf[4:8])
	header.Compression = binary.BigEndian.Uint32(buf[8:12])
	header.TotalHunks = binary.BigEndian.Uint32(buf[12:16])
	header.LogicalBytes = binary.BigEndian.Uint64(buf[16:24])
	header.MetaOffset = binary.BigEndian.Uint64(buf[24:32])
	copy(header.MD5[:], buf[32:48])
	copy(header.ParentMD5[:], buf[48:64])
	header.HunkBytes = binary.BigEndian.Uint32(buf[64:68])
	copy(header.SHA1[:], buf[68:88])
	copy(header.ParentSHA1[:], buf[88:108])

	header.UnitBytes = 2448
	header.MapOffset = uint64(header.HeaderSize)
	return nil
}

// parseHeaderV4 parses a V4 header (108 bytes): drops the MD5 digests V3
// carried, keeps everything else.
//
//	Offset 0x00: Magic (8 bytes)
//	Offset 0x08: Header size (4 bytes)
//	Offset 0x0C: Version (4 bytes)
//	Offset 0x10: Flags (4 bytes)
//	Offset 0x14: Compression (4 bytes)
//	Offset 0x18: Total hunks (4 bytes)
//	Offset 0x1C: Logical bytes (8 bytes)
//	Offset 0x24: Meta offset (8 bytes)
//	Offset 0x2C: Hunk bytes (4 bytes)
//	Offset 0x30: SHA1 (20 bytes)
//	Offset 0x44: Parent SHA1 (20 bytes)
//	Offset 0x58: Raw SHA1 (20 bytes)
func parseHeaderV4(header *Header, buf []byte) error {
	if len(buf) < headerSizeV4-12 {
		return wrapError(KindInvalidFile, "buffer too small for V4", nil)
	}
	header.Flags = binary.BigEndian.Uint32(buf[4:8])
	header.Compression = binary.BigEndian.Uint32(buf[8:12])
	header.TotalHunks = binary.BigEndian.Uint32(buf[12:16])
	header.LogicalBytes = binary.BigEndian.Uint64(buf[16:24])
	header.MetaOffset = binary.BigEndian.Uint64(buf[24:32])
	header.HunkBytes = binary.BigEndian.Uint32(buf[32:36])
	copy(header.SHA1[:], buf[36:56])
	copy(header.ParentSHA1[:], buf[56:76])
	copy(header.RawSHA1[:], buf[76:96])

	header.UnitBytes = 2448
	header.MapOffset = uint64(header.HeaderSize)
	return nil
}

// parseHeaderV5 parses a V5 header (124 bytes total). V5 replaces the
// single compression tag with four FourCC slots and exposes the map and
// metadata offsets explicitly; the map itself is parsed separately by
// map.go using MapOffset.
//
//	Offset 0x00: Magic (8 bytes)
//	Offset 0x08: Header size (4 bytes)
//	Offset 0x0C: Version (4 bytes)
//	Offset 0x10: Compressor 0 (4 bytes)
//	Offset 0x14: Compressor 1 (4 bytes)
//	Offset 0x18: Compressor 2 (4 bytes)
//	Offset 0x1C: Compressor 3 (4 bytes)
//	Offset 0x20: Logical bytes (8 bytes)
//	Offset 0x28: Map offset (8 bytes)
//	Offset 0x30: Meta offset (8 bytes)
//	Offset 0x38: Hunk bytes (4 bytes)
//	Offset 0x3C: Unit bytes (4 bytes)
//	Offset 0x40: Raw SHA1 (20 bytes)
//	Offset 0x54: SHA1 (20 bytes)
//	Offset 0x68: Parent SHA1 (20 bytes)
func parseHeaderV5(header *Header, buf []byte) error {
	if len(buf) < headerSizeV5-12 {
		return wrapError(KindInvalidFile, "buffer too small for V5", nil)
	}
	header.Compressors[0] = binary.BigEndian.Uint32(buf[4:8])
	header.Compressors[1] = binary.BigEndian.Uint32(buf[8:12])
	header.Compressors[2] = binary.BigEndian.Uint32(buf[12:16])
	header.Compressors[3] = binary.BigEndian.Uint32(buf[16:20])
	header.LogicalBytes = binary.BigEndian.Uint64(buf[20:28])
	header.MapOffset = binary.BigEndian.Uint64(buf[28:36])
	header.MetaOffset = binary.BigEndian.Uint64(buf[36:44])
	header.HunkBytes = binary.BigEndian.Uint32(buf[44:48])
	header.UnitBytes = binary.BigEndian.Uint32(buf[48:52])
	copy(header.RawSHA1[:], buf[52:72])
	copy(header.SHA1[:], buf[72:92])
	copy(header.ParentSHA1[:], buf[92:112])

	if header.UnitBytes > 0 {
		header.UnitCount = (header.LogicalBytes + uint64(header.UnitBytes) - 1) / uint64(header.UnitBytes)
	}
	return nil
}
