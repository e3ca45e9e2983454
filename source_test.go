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
	"testing"
)

func TestBoundedSourceReadAtWithinBounds(t *testing.T) {
	t.Parallel()

	data := []byte("0123456789")
	b := newBoundedSource(bytes.NewReader(data), int64(len(data)))

	dst := make([]byte, 4)
	n, err := b.ReadAt(dst, 2)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 4 || string(dst) != "2345" {
		t.Errorf("ReadAt = (%d,%q), want (4,%q)", n, dst, "2345")
	}
}

func TestBoundedSourceClampsPastEnd(t *testing.T) {
	t.Parallel()

	data := []byte("0123456789")
	b := newBoundedSource(bytes.NewReader(data), int64(len(data)))

	dst := make([]byte, 8)
	n, err := b.ReadAt(dst, 6)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 4 || string(dst[:n]) != "6789" {
		t.Errorf("ReadAt = (%d,%q), want (4,%q)", n, dst[:n], "6789")
	}
}

func TestBoundedSourceReadAtPastSizeReturnsEOF(t *testing.T) {
	t.Parallel()

	data := []byte("0123456789")
	b := newBoundedSource(bytes.NewReader(data), int64(len(data)))

	_, err := b.ReadAt(make([]byte, 4), 100)
	if err == nil {
		t.Fatal("expected EOF for offset past size")
	}
}

func TestBoundedSourcePrecacheRoundTrips(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0x5A}, precacheChunkBytes+1024)
	b := newBoundedSource(bytes.NewReader(data), int64(len(data)))

	var lastDone, lastTotal int64
	calls := 0
	progress := func(done, total int64) {
		calls++
		lastDone, lastTotal = done, total
	}

	if err := b.precache(progress); err != nil {
		t.Fatalf("precache: %v", err)
	}
	if calls == 0 {
		t.Error("expected at least one progress callback")
	}
	if lastDone != lastTotal || lastTotal != int64(len(data)) {
		t.Errorf("final progress = (%d,%d), want (%d,%d)", lastDone, lastTotal, len(data), len(data))
	}

	dst := make([]byte, len(data))
	n, err := b.ReadAt(dst, 0)
	if err != nil {
		t.Fatalf("ReadAt after precache: %v", err)
	}
	if n != len(data) || !bytes.Equal(dst, data) {
		t.Error("precached data mismatch")
	}
}

func TestBoundedSourcePrecacheIdempotent(t *testing.T) {
	t.Parallel()

	data := []byte("precache me twice, get the same bytes back")
	b := newBoundedSource(bytes.NewReader(data), int64(len(data)))

	if err := b.precache(nil); err != nil {
		t.Fatalf("first precache: %v", err)
	}
	if err := b.precache(nil); err != nil {
		t.Fatalf("second precache: %v", err)
	}

	dst := make([]byte, len(data))
	if _, err := b.ReadAt(dst, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if !bytes.Equal(dst, data) {
		t.Error("data changed across repeated precache calls")
	}
}

func TestMemorySourceReadAt(t *testing.T) {
	t.Parallel()

	m := &memorySource{data: []byte("abcdefgh")}

	dst := make([]byte, 3)
	n, err := m.ReadAt(dst, 2)
	if err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if n != 3 || string(dst) != "cde" {
		t.Errorf("ReadAt = (%d,%q), want (3,%q)", n, dst, "cde")
	}

	_, err = m.ReadAt(make([]byte, 4), 6)
	if err == nil {
		t.Error("expected EOF reading past end of memorySource")
	}
}
