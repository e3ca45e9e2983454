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
	"io"
)

// Archive is an open, read-only CHD file. It keeps a reference to the
// parent supplied through WithParent but does not own it: Close leaves the
// parent open, and nothing prevents one parent Archive from being passed
// to several children. A parent must already be open when its child is
// opened, so a parent chain cannot form a cycle.
type Archive struct {
	source *boundedSource
	header *Header
	engine *hunkEngine
	parent *Archive
	tracks []Track
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	parent       *Archive
	verifyCRC    bool
	progress     ProgressFunc
	doPrecache   bool
}

// WithParent supplies the already-open parent archive a child CHD
// requires. The child takes no ownership actions on parent beyond holding
// the reference; callers must not close parent while the child is live.
func WithParent(parent *Archive) OpenOption {
	return func(c *openConfig) { c.parent = parent }
}

// WithBlockCRCVerification enables per-hunk CRC-16 verification against
// the map's stored checksum for every compressed hunk read.
func WithBlockCRCVerification() OpenOption {
	return func(c *openConfig) { c.verifyCRC = true }
}

// WithPrecache reads the entire source into memory at open time, invoking
// progress (if non-nil) as each chunk completes (spec.md §4.7).
func WithPrecache(progress ProgressFunc) OpenOption {
	return func(c *openConfig) {
		c.doPrecache = true
		c.progress = progress
	}
}

// Open parses a CHD header, hunk map, and metadata chain from r, which
// must expose random access to the entire file. size is the file's total
// byte length, used to bound reads from the underlying source.
func Open(r io.ReaderAt, size int64, opts ...OpenOption) (*Archive, error) {
	var cfg openConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	header, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	if header.HasParent() && cfg.parent == nil {
		return nil, ErrRequiresParent
	}
	if cfg.parent != nil && header.Version >= 3 {
		if header.ParentSHA1 != cfg.parent.header.SHA1 {
			return nil, &ParentMismatchError{Expected: header.ParentSHA1, Actual: cfg.parent.header.SHA1}
		}
	}

	source := newBoundedSource(r, size)

	var parentEngine *hunkEngine
	if cfg.parent != nil {
		parentEngine = cfg.parent.engine
	}

	engine, err := newHunkEngine(source, header, parentEngine, cfg.verifyCRC)
	if err != nil {
		return nil, err
	}

	archive := &Archive{
		source: source,
		header: header,
		engine: engine,
		parent: cfg.parent,
	}

	if header.MetaOffset > 0 {
		entries, metaErr := parseAllMetadata(source, header.MetaOffset)
		if metaErr == nil {
			tracks, trackErr := parseTracks(entries)
			if trackErr == nil {
				archive.tracks = tracks
			}
		}
	}

	if cfg.doPrecache {
		if err := source.precache(cfg.progress); err != nil {
			return nil, err
		}
	}

	return archive, nil
}

// Close releases any resources the archive or its source holds. It does
// not close a parent supplied via WithParent; the caller that opened the
// parent owns its lifetime.
func (a *Archive) Close() error {
	if closer, ok := a.source.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Header returns the archive's parsed header.
func (a *Archive) Header() *Header {
	return a.header
}

// Tracks returns the CD tracks recovered from the metadata chain, if any.
func (a *Archive) Tracks() []Track {
	return a.tracks
}

// HunkCount returns the number of hunks in the archive.
func (a *Archive) HunkCount() uint32 {
	return a.engine.NumHunks()
}

// HunkSize returns the decompressed byte size of a single hunk.
func (a *Archive) HunkSize() uint32 {
	return a.header.HunkBytes
}

// Size returns the archive's total logical (decompressed) byte size.
func (a *Archive) Size() int64 {
	return int64(a.header.LogicalBytes)
}

// ReadHunk decompresses hunk index into dst, which must be exactly
// HunkSize() bytes long.
func (a *Archive) ReadHunk(index uint32, dst []byte) error {
	return a.engine.ReadHunk(index, dst)
}

// Metadata returns the searchIndex-th metadata record (0-based) whose tag
// matches searchTag, or any record if searchTag is MetaTagWild.
func (a *Archive) Metadata(searchTag uint32, searchIndex int) (*MetadataEntry, error) {
	if a.header.MetaOffset == 0 {
		return nil, ErrMetadataNotFound
	}
	return metadataWalk(a.source, a.header.MetaOffset, searchTag, searchIndex)
}

// Precache reads the entire source into memory, replacing the backing
// reader atomically. Calling it twice is idempotent (spec.md §8).
func (a *Archive) Precache(progress ProgressFunc) error {
	return a.source.precache(progress)
}

// ReadAt implements io.ReaderAt over the archive's logical (decompressed,
// hunk-concatenated) byte stream.
func (a *Archive) ReadAt(dst []byte, off int64) (int, error) {
	if off < 0 || off >= a.Size() {
		return 0, io.EOF
	}
	hunkBytes := int64(a.HunkSize())
	if hunkBytes == 0 {
		return 0, io.EOF
	}

	total := 0
	buf := make([]byte, hunkBytes)
	for total < len(dst) && off < a.Size() {
		hunkIdx := uint32(off / hunkBytes)
		offInHunk := off % hunkBytes

		if err := a.ReadHunk(hunkIdx, buf); err != nil {
			if total > 0 {
				return total, nil
			}
			return 0, err
		}

		avail := hunkBytes - offInHunk
		if remaining := a.Size() - off; avail > remaining {
			avail = remaining
		}
		n := int64(len(dst) - total)
		if n > avail {
			n = avail
		}
		copy(dst[total:], buf[offInHunk:offInHunk+n])
		total += int(n)
		off += n
	}

	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}
