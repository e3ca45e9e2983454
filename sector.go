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

import "io"

// SectorReader returns an io.ReaderAt exposing decompressed sector data as
// 2048-byte logical sectors (the Mode1/Mode2 data portion only), suitable
// for parsing an ISO9660 filesystem directly out of a CD CHD. For
// multi-track discs with audio tracks preceding the data track, prefer
// DataTrackSectorReader.
func (a *Archive) SectorReader() io.ReaderAt {
	return &sectorReader{archive: a, rawMode: false}
}

// DataTrackSectorReader returns an io.ReaderAt for the first data track,
// skipping any leading audio tracks (e.g. Neo Geo CD, which stores audio
// before the data track).
func (a *Archive) DataTrackSectorReader() io.ReaderAt {
	return &sectorReader{archive: a, rawMode: false, dataTrackStart: a.firstDataTrackSector()}
}

// RawSectorReader returns an io.ReaderAt exposing raw 2352-byte sectors,
// including sync header and mode byte, for callers that need to inspect
// the raw sector layout themselves.
func (a *Archive) RawSectorReader() io.ReaderAt {
	return &sectorReader{archive: a, rawMode: true}
}

// DataTrackSize returns the logical size, in bytes, of the first data
// track at 2048 bytes per sector, or the full logical size if no track
// metadata is available.
func (a *Archive) DataTrackSize() int64 {
	for _, t := range a.tracks {
		if t.IsDataTrack() {
			return int64(t.Frames) * 2048
		}
	}
	return a.Size()
}

// FirstDataTrackOffset returns the byte offset (within the archive's raw
// 2448-byte-unit logical stream) of the first data track, including its
// pregap, or 0 if no track metadata is available.
func (a *Archive) FirstDataTrackOffset() int64 {
	for _, t := range a.tracks {
		if t.IsDataTrack() {
			unitBytes := int64(a.header.UnitBytes)
			if unitBytes == 0 {
				unitBytes = cdFrameBytes
			}
			return int64(t.StartFrame) * unitBytes
		}
	}
	return 0
}

// firstDataTrackSector returns the sector number the first data track
// starts at. Track metadata is trusted first; if it claims the data track
// starts at sector 0 (ambiguous for discs whose map entry 0 is silent
// filler rather than real audio), the first hunks are scanned for an
// ISO9660 Primary Volume Descriptor to confirm.
func (a *Archive) firstDataTrackSector() int64 {
	if start := a.dataTrackStartFromMetadata(); start > 0 {
		return start
	}
	return a.searchForPVD()
}

func (a *Archive) dataTrackStartFromMetadata() int64 {
	for _, t := range a.tracks {
		if t.IsDataTrack() {
			if start := int64(t.StartFrame + t.Pregap); start > 0 {
				return start
			}
			break
		}
	}
	return 0
}

// pvdMagic is the ISO9660 Primary Volume Descriptor signature: type code
// 1 followed by the "CD001" standard identifier.
var pvdMagic = []byte{0x01, 'C', 'D', '0', '0', '1'}

func (a *Archive) searchForPVD() int64 {
	unitBytes := int64(a.header.UnitBytes)
	if unitBytes == 0 {
		unitBytes = cdFrameBytes
	}
	hunkBytes := int64(a.HunkSize())
	if hunkBytes == 0 || unitBytes == 0 {
		return 0
	}
	sectorsPerHunk := hunkBytes / unitBytes
	if sectorsPerHunk == 0 {
		return 0
	}

	maxHunks := uint32(100 / sectorsPerHunk)
	if maxHunks < 5 {
		maxHunks = 5
	}
	if maxHunks > a.HunkCount() {
		maxHunks = a.HunkCount()
	}

	buf := make([]byte, hunkBytes)
	for hunkIdx := uint32(0); hunkIdx < maxHunks; hunkIdx++ {
		if err := a.ReadHunk(hunkIdx, buf); err != nil {
			continue
		}
		if sector := findPVDInHunk(buf, hunkIdx, sectorsPerHunk, unitBytes); sector >= 0 {
			return sector
		}
	}
	return 0
}

// findPVDInHunk searches a single hunk's worth of sectors for the PVD
// signature, returning the data track start sector (the PVD itself always
// sits at ISO sector 16) or -1 if not found.
func findPVDInHunk(hunkData []byte, hunkIdx uint32, sectorsPerHunk, unitBytes int64) int64 {
	for sectorInHunk := int64(0); sectorInHunk < sectorsPerHunk; sectorInHunk++ {
		offset := sectorInHunk * unitBytes
		if offset+int64(len(pvdMagic)) > int64(len(hunkData)) {
			break
		}
		if matchesPVD(hunkData, offset) {
			absoluteSector := int64(hunkIdx)*sectorsPerHunk + sectorInHunk
			dataTrackStart := absoluteSector - 16
			if dataTrackStart < 0 {
				dataTrackStart = 0
			}
			return dataTrackStart
		}
	}
	return -1
}

func matchesPVD(data []byte, offset int64) bool {
	if int64(len(data)) < offset+int64(len(pvdMagic)) {
		return false
	}
	for i, b := range pvdMagic {
		if data[offset+int64(i)] != b {
			return false
		}
	}
	return true
}

// sectorReader implements io.ReaderAt over an Archive's decompressed
// sector stream, presenting either raw 2352-byte sectors or extracted
// 2048-byte logical sectors (skipping sync header and sector-address
// fields for Mode1/Mode2 data).
type sectorReader struct {
	archive        *Archive
	rawMode        bool
	dataTrackStart int64
}

type sectorLocation struct {
	hunkIdx        uint32
	sectorInHunk   int64
	offsetInSector int64
}

func (sr *sectorReader) computeSectorLocation(offset, hunkBytes, unitBytes int64) sectorLocation {
	sectorsPerHunk := hunkBytes / unitBytes

	if sr.rawMode {
		sector := offset / cdSectorBytes
		return sectorLocation{
			hunkIdx:        uint32(sector / sectorsPerHunk),
			sectorInHunk:   sector % sectorsPerHunk,
			offsetInSector: offset % cdSectorBytes,
		}
	}

	logicalSector := offset/2048 + sr.dataTrackStart
	return sectorLocation{
		hunkIdx:        uint32(logicalSector / sectorsPerHunk),
		sectorInHunk:   logicalSector % sectorsPerHunk,
		offsetInSector: offset % 2048,
	}
}

// extractSectorData locates the user-data portion of a sector within a
// decompressed hunk. Raw mode returns the whole 2352-byte sector body.
// Logical mode detects whether the hunk holds a full raw sector (sync
// header present, user data starting at offset 16 for Mode1 or 24 for
// Mode2) or codec-extracted user data with no leading sync header.
func (sr *sectorReader) extractSectorData(hunkData []byte, loc sectorLocation, unitBytes int64) (start, length int64) {
	sectorOffset := loc.sectorInHunk * unitBytes

	if sr.rawMode {
		return sectorOffset + loc.offsetInSector, cdSectorBytes - loc.offsetInSector
	}

	dataOffset := int64(0)
	if sectorOffset+12 <= int64(len(hunkData)) {
		hasSyncHeader := hunkData[sectorOffset] == 0x00 &&
			hunkData[sectorOffset+1] == 0xFF &&
			hunkData[sectorOffset+11] == 0x00

		if hasSyncHeader {
			dataOffset = 16
			if sectorOffset+15 < int64(len(hunkData)) && hunkData[sectorOffset+15] == 2 {
				dataOffset = 24
			}
		}
	}

	return sectorOffset + dataOffset + loc.offsetInSector, 2048 - loc.offsetInSector
}

func (sr *sectorReader) clampDataLength(dataStart, dataLen int64, hunkLen int, loc sectorLocation) int64 {
	if dataStart+dataLen > int64(hunkLen) {
		dataLen = int64(hunkLen) - dataStart
	}
	if sr.rawMode && dataLen > cdSectorBytes-loc.offsetInSector {
		dataLen = cdSectorBytes - loc.offsetInSector
	}
	return dataLen
}

func (sr *sectorReader) ReadAt(dest []byte, off int64) (int, error) {
	if len(dest) == 0 {
		return 0, nil
	}

	hunkBytes := int64(sr.archive.HunkSize())
	unitBytes := int64(sr.archive.header.UnitBytes)
	if unitBytes == 0 {
		unitBytes = cdFrameBytes
	}

	hunkBuf := make([]byte, hunkBytes)
	totalRead := 0
	remaining := len(dest)
	currentOff := off

	for remaining > 0 {
		loc := sr.computeSectorLocation(currentOff, hunkBytes, unitBytes)

		if err := sr.archive.ReadHunk(loc.hunkIdx, hunkBuf); err != nil {
			if totalRead > 0 {
				return totalRead, nil
			}
			return 0, err
		}

		dataStart, dataLen := sr.extractSectorData(hunkBuf, loc, unitBytes)
		if dataStart >= int64(len(hunkBuf)) {
			break
		}

		dataLen = sr.clampDataLength(dataStart, dataLen, len(hunkBuf), loc)
		toCopy := int(dataLen)
		if toCopy > remaining {
			toCopy = remaining
		}
		if toCopy <= 0 {
			break
		}

		copy(dest[totalRead:], hunkBuf[dataStart:dataStart+int64(toCopy)])
		totalRead += toCopy
		remaining -= toCopy
		currentOff += int64(toCopy)
	}

	if totalRead == 0 {
		return 0, io.EOF
	}
	return totalRead, nil
}
