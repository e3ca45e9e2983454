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
	"errors"
	"testing"
)

// buildFlatV3Archive assembles a complete, parseable V3 CHD file image
// with an uncompressed flat map: header, then one 16-byte map entry per
// hunk, then the hunks' raw bytes back to back. sha1/parentSHA1 may be
// the zero value to mean "no parent"/"unset".
func buildFlatV3Archive(t *testing.T, hunks [][]byte, sha1, parentSHA1 [20]byte) []byte {
	t.Helper()
	hunkBytes := len(hunks[0])
	logicalBytes := uint64(len(hunks) * hunkBytes)

	header := buildV3Header(t, legacyCompressionNone, uint32(len(hunks)), logicalBytes, uint32(hunkBytes))
	copy(header[80:100], sha1[:])
	copy(header[100:120], parentSHA1[:])

	mapStart := len(header)
	dataStart := mapStart + len(hunks)*16

	var buf bytes.Buffer
	buf.Write(header)
	for i := range hunks {
		buf.Write(buildV1V4Record(uint64(dataStart+i*hunkBytes), 0, v34TypeUncompressed))
	}
	for _, h := range hunks {
		buf.Write(h)
	}
	return buf.Bytes()
}

func TestOpenRejectsBadMagic(t *testing.T) {
	t.Parallel()

	buf := buildFlatV3Archive(t, [][]byte{bytes.Repeat([]byte{1}, 16)}, [20]byte{}, [20]byte{})
	copy(buf[0:8], "garbage!")

	_, err := Open(bytes.NewReader(buf), int64(len(buf)))
	if !errors.Is(err, ErrInvalidFile) {
		t.Errorf("expected ErrInvalidFile, got %v", err)
	}
}

func TestOpenAndReadHunks(t *testing.T) {
	t.Parallel()

	hunk0 := bytes.Repeat([]byte{0xAA}, 16)
	hunk1 := bytes.Repeat([]byte{0xBB}, 16)
	buf := buildFlatV3Archive(t, [][]byte{hunk0, hunk1}, [20]byte{}, [20]byte{})

	archive, err := Open(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	if archive.HunkCount() != 2 {
		t.Errorf("HunkCount() = %d, want 2", archive.HunkCount())
	}
	if archive.HunkSize() != 16 {
		t.Errorf("HunkSize() = %d, want 16", archive.HunkSize())
	}
	if archive.Size() != 32 {
		t.Errorf("Size() = %d, want 32", archive.Size())
	}

	dst := make([]byte, 16)
	if err := archive.ReadHunk(0, dst); err != nil {
		t.Fatalf("ReadHunk(0): %v", err)
	}
	if !bytes.Equal(dst, hunk0) {
		t.Error("hunk 0 mismatch")
	}
	if err := archive.ReadHunk(1, dst); err != nil {
		t.Fatalf("ReadHunk(1): %v", err)
	}
	if !bytes.Equal(dst, hunk1) {
		t.Error("hunk 1 mismatch")
	}
}

func TestArchiveReadHunkOutOfRange(t *testing.T) {
	t.Parallel()

	hunk0 := bytes.Repeat([]byte{0x11}, 16)
	buf := buildFlatV3Archive(t, [][]byte{hunk0}, [20]byte{}, [20]byte{})

	archive, err := Open(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	var oor *HunkOutOfRangeError
	err = archive.ReadHunk(5, make([]byte, 16))
	if !errors.As(err, &oor) {
		t.Errorf("expected *HunkOutOfRangeError, got %T: %v", err, err)
	}
}

func TestArchiveReadAtCrossesHunkBoundary(t *testing.T) {
	t.Parallel()

	hunk0 := bytes.Repeat([]byte{0xAA}, 16)
	hunk1 := bytes.Repeat([]byte{0xBB}, 16)
	buf := buildFlatV3Archive(t, [][]byte{hunk0, hunk1}, [20]byte{}, [20]byte{})

	archive, err := Open(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	dst := make([]byte, 12)
	n, err := archive.ReadAt(dst, 10)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 12 {
		t.Fatalf("n = %d, want 12", n)
	}
	want := append(bytes.Repeat([]byte{0xAA}, 6), bytes.Repeat([]byte{0xBB}, 6)...)
	if !bytes.Equal(dst, want) {
		t.Errorf("ReadAt crossing boundary = %v, want %v", dst, want)
	}
}

func TestOpenRequiresParentWhenDeclared(t *testing.T) {
	t.Parallel()

	hunk0 := bytes.Repeat([]byte{0x01}, 16)
	parentSHA1 := [20]byte{9, 9, 9}
	buf := buildFlatV3Archive(t, [][]byte{hunk0}, [20]byte{}, parentSHA1)

	_, err := Open(bytes.NewReader(buf), int64(len(buf)))
	if !errors.Is(err, ErrRequiresParent) {
		t.Errorf("expected ErrRequiresParent, got %v", err)
	}
}

func TestOpenDetectsParentSHA1Mismatch(t *testing.T) {
	t.Parallel()

	parentSHA1 := [20]byte{1, 2, 3}
	parentBuf := buildFlatV3Archive(t, [][]byte{bytes.Repeat([]byte{0x02}, 16)}, parentSHA1, [20]byte{})
	parent, err := Open(bytes.NewReader(parentBuf), int64(len(parentBuf)))
	if err != nil {
		t.Fatalf("Open(parent): %v", err)
	}
	defer parent.Close()

	wrongExpectedParentSHA1 := [20]byte{0xFF}
	childBuf := buildFlatV3Archive(t, [][]byte{bytes.Repeat([]byte{0x03}, 16)}, [20]byte{}, wrongExpectedParentSHA1)

	_, err = Open(bytes.NewReader(childBuf), int64(len(childBuf)), WithParent(parent))
	var mismatch *ParentMismatchError
	if !errors.As(err, &mismatch) {
		t.Errorf("expected *ParentMismatchError, got %T: %v", err, err)
	}
}

func TestOpenWithMatchingParentSucceeds(t *testing.T) {
	t.Parallel()

	parentSHA1 := [20]byte{7, 7, 7}
	parentBuf := buildFlatV3Archive(t, [][]byte{bytes.Repeat([]byte{0x04}, 16)}, parentSHA1, [20]byte{})
	parent, err := Open(bytes.NewReader(parentBuf), int64(len(parentBuf)))
	if err != nil {
		t.Fatalf("Open(parent): %v", err)
	}
	defer parent.Close()

	childBuf := buildFlatV3Archive(t, [][]byte{bytes.Repeat([]byte{0x05}, 16)}, [20]byte{}, parentSHA1)
	child, err := Open(bytes.NewReader(childBuf), int64(len(childBuf)), WithParent(parent))
	if err != nil {
		t.Fatalf("Open(child): %v", err)
	}
	defer child.Close()
}

func TestOpenWithPrecache(t *testing.T) {
	t.Parallel()

	hunk0 := bytes.Repeat([]byte{0x06}, 16)
	buf := buildFlatV3Archive(t, [][]byte{hunk0}, [20]byte{}, [20]byte{})

	var progressed bool
	archive, err := Open(bytes.NewReader(buf), int64(len(buf)), WithPrecache(func(done, total int64) {
		progressed = true
	}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	if !progressed {
		t.Error("expected precache progress callback to fire")
	}

	dst := make([]byte, 16)
	if err := archive.ReadHunk(0, dst); err != nil {
		t.Fatalf("ReadHunk: %v", err)
	}
	if !bytes.Equal(dst, hunk0) {
		t.Error("hunk mismatch after precache")
	}
}
