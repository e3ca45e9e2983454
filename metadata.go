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
	"encoding/binary"
	"io"
	"strconv"
	"strings"

	binutil "github.com/chd-go/chd/internal/binary"
)

// Metadata tag constants, each the big-endian value of its 4-character
// ASCII name.
const (
	MetaTagCHT2 uint32 = 0x43485432 // CD Track v2
	MetaTagCHCD uint32 = 0x43484344 // CD, binary track table
	MetaTagCHTR uint32 = 0x43485452 // CD Track v1
	MetaTagGDTR uint32 = 0x43484744 // "CHGD": GD-ROM track
	MetaTagWild uint32 = 0          // matches any tag
)

// MetadataEntry is one record of the on-disk metadata chain (spec.md §4.6).
type MetadataEntry struct {
	Tag    uint32
	Flags  uint8
	Data   []byte
	Offset uint64 // on-disk offset of this record, for diagnostics
	Next   uint64
}

// Track describes one CD track recovered from CHT2/CHTR/CHCD metadata.
type Track struct {
	Type       string
	SubType    string
	Number     int
	Frames     int
	Pregap     int
	Postgap    int
	DataSize   int
	SubSize    int
	StartFrame int
}

func (t *Track) IsDataTrack() bool {
	return !strings.EqualFold(t.Type, "AUDIO")
}

func (t *Track) SectorSize() int {
	if t.DataSize == 0 {
		return cdSectorBytes + t.SubSize
	}
	return t.DataSize + t.SubSize
}

// metadataWalk traverses the metadata chain starting at offset, returning
// the searchIndex-th record (0-based) whose tag matches searchTag (or any
// record if searchTag is MetaTagWild). Returns ErrMetadataNotFound if the
// chain is exhausted first.
func metadataWalk(r io.ReaderAt, offset uint64, searchTag uint32, searchIndex int) (*MetadataEntry, error) {
	visited := make(map[uint64]bool)
	matchCount := 0

	for offset != 0 {
		if visited[offset] {
			return nil, wrapError(KindInvalidMetadata, "metadata: circular chain", nil)
		}
		visited[offset] = true
		if len(visited) > MaxMetadataEntries {
			return nil, wrapError(KindInvalidMetadata, "metadata: too many records", nil)
		}

		entry, err := readMetadataEntry(r, offset)
		if err != nil {
			return nil, err
		}

		if searchTag == MetaTagWild || entry.Tag == searchTag {
			if matchCount == searchIndex {
				return entry, nil
			}
			matchCount++
		}

		offset = entry.Next
	}

	return nil, ErrMetadataNotFound
}

// parseAllMetadata collects every record in the chain, for track parsing.
func parseAllMetadata(r io.ReaderAt, offset uint64) ([]*MetadataEntry, error) {
	var entries []*MetadataEntry
	visited := make(map[uint64]bool)

	for offset != 0 {
		if visited[offset] {
			return entries, wrapError(KindInvalidMetadata, "metadata: circular chain", nil)
		}
		visited[offset] = true
		if len(entries) >= MaxMetadataEntries {
			return entries, wrapError(KindInvalidMetadata, "metadata: too many records", nil)
		}

		entry, err := readMetadataEntry(r, offset)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
		offset = entry.Next
	}

	return entries, nil
}

// readMetadataEntry reads one metadata record: 4-byte tag, 4-byte
// length-and-flags (top 8 bits flags, bottom 24 bits length), 8-byte next
// offset, then length payload bytes.
func readMetadataEntry(r io.ReaderAt, offset uint64) (*MetadataEntry, error) {
	head, err := binutil.ReadBytesAt(r, int64(offset), 16)
	if err != nil {
		return nil, wrapError(KindReadError, "metadata: header", err)
	}

	tag := binary.BigEndian.Uint32(head[0:4])
	flags := head[4]
	length := uint32(head[5])<<16 | uint32(head[6])<<8 | uint32(head[7])
	next := binary.BigEndian.Uint64(head[8:16])

	if length > MaxMetadataLen {
		return nil, wrapError(KindInvalidMetadata, "metadata: entry too large", nil)
	}

	var data []byte
	if length > 0 {
		data, err = binutil.ReadBytesAt(r, int64(offset)+16, int(length))
		if err != nil {
			return nil, wrapError(KindReadError, "metadata: payload", err)
		}
	}

	return &MetadataEntry{Tag: tag, Flags: flags, Data: data, Offset: offset, Next: next}, nil
}

// parseTracks extracts every CD track from a metadata chain already
// collected via parseAllMetadata.
func parseTracks(entries []*MetadataEntry) ([]Track, error) {
	var tracks []Track

	for _, entry := range entries {
		switch entry.Tag {
		case MetaTagCHT2, MetaTagGDTR:
			track, err := parseCHT2(entry.Data)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, track)

		case MetaTagCHTR:
			track, err := parseCHT2(entry.Data)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, track)

		case MetaTagCHCD:
			parsed, err := parseCHCD(entry.Data)
			if err != nil {
				return nil, err
			}
			tracks = append(tracks, parsed...)
		}
	}

	startFrame := 0
	for i := range tracks {
		tracks[i].StartFrame = startFrame
		startFrame += tracks[i].Pregap + tracks[i].Frames + tracks[i].Postgap
	}

	return tracks, nil
}

// parseCHT2 parses CHT2/CHTR (CD Track v1/v2) metadata: ASCII key:value
// pairs, e.g. "TRACK:1 TYPE:MODE2_RAW SUBTYPE:NONE FRAMES:1234 PREGAP:150".
func parseCHT2(data []byte) (Track, error) {
	var track Track

	str := strings.TrimRight(string(data), "\x00 \t\r\n")
	fields := strings.Fields(strings.TrimSpace(str))

	for _, field := range fields {
		parts := strings.SplitN(field, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := strings.ToUpper(parts[0]), parts[1]

		switch key {
		case "TRACK":
			n, err := strconv.Atoi(value)
			if err != nil {
				return track, wrapError(KindInvalidMetadata, "cht2: bad track number", err)
			}
			track.Number = n
		case "TYPE":
			track.Type = value
			track.DataSize = trackTypeToDataSize(value)
		case "SUBTYPE":
			track.SubType = value
			track.SubSize = subTypeToSize(value)
		case "FRAMES":
			n, err := strconv.Atoi(value)
			if err != nil {
				return track, wrapError(KindInvalidMetadata, "cht2: bad frame count", err)
			}
			track.Frames = n
		case "PREGAP":
			n, err := strconv.Atoi(value)
			if err != nil {
				return track, wrapError(KindInvalidMetadata, "cht2: bad pregap", err)
			}
			track.Pregap = n
		case "POSTGAP":
			n, err := strconv.Atoi(value)
			if err != nil {
				return track, wrapError(KindInvalidMetadata, "cht2: bad postgap", err)
			}
			track.Postgap = n
		}
	}

	return track, nil
}

// parseCHCD parses CHCD binary track-table metadata: a 4-byte track count
// followed by 24-byte fixed track entries.
func parseCHCD(data []byte) ([]Track, error) {
	if len(data) < 4 {
		return nil, wrapError(KindInvalidMetadata, "chcd: too short", nil)
	}

	numTracks := binary.BigEndian.Uint32(data[0:4])
	if numTracks > MaxNumTracks {
		return nil, wrapError(KindInvalidMetadata, "chcd: too many tracks", nil)
	}
	if uint64(len(data)) < 4+uint64(numTracks)*24 {
		return nil, wrapError(KindInvalidMetadata, "chcd: truncated track table", nil)
	}

	tracks := make([]Track, numTracks)
	offset := 4
	for i := range tracks {
		trackType := binary.BigEndian.Uint32(data[offset : offset+4])
		subType := binary.BigEndian.Uint32(data[offset+4 : offset+8])
		dataSize := binary.BigEndian.Uint32(data[offset+8 : offset+12])
		subSize := binary.BigEndian.Uint32(data[offset+12 : offset+16])
		frames := binary.BigEndian.Uint32(data[offset+16 : offset+20])

		tracks[i] = Track{
			Number:   i + 1,
			Type:     cdTypeToString(trackType),
			SubType:  cdSubTypeToString(subType),
			DataSize: int(dataSize),
			SubSize:  int(subSize),
			Frames:   int(frames),
		}
		offset += 24
	}

	return tracks, nil
}

func trackTypeToDataSize(trackType string) int {
	switch strings.ToUpper(trackType) {
	case "MODE1/2048", "MODE2_FORM1":
		return 2048
	case "MODE1/2352", "MODE1_RAW":
		return 2352
	case "MODE2/2336", "MODE2_FORM_MIX":
		return 2336
	case "MODE2/2048":
		return 2048
	case "MODE2/2352", "MODE2_RAW":
		return 2352
	case "AUDIO":
		return 2352
	default:
		return 2352
	}
}

func subTypeToSize(subType string) int {
	switch strings.ToUpper(subType) {
	case "RW", "RW_RAW":
		return 96
	default:
		return 0
	}
}

func cdTypeToString(cdType uint32) string {
	switch cdType {
	case 0:
		return "MODE1/2048"
	case 1:
		return "MODE1/2352"
	case 2:
		return "MODE2/2048"
	case 3:
		return "MODE2/2336"
	case 4:
		return "MODE2/2352"
	case 5:
		return "AUDIO"
	default:
		return "UNKNOWN"
	}
}

func cdSubTypeToString(subType uint32) string {
	switch subType {
	case 0:
		return "RW"
	case 1:
		return "RW_RAW"
	default:
		return "NONE"
	}
}
