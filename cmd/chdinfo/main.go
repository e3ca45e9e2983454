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

// Command chdinfo inspects CHD disc and disk images: header fields,
// track layout, and optional hunk verification.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/chd-go/chd"
)

var (
	inputFile  = flag.String("i", "", "CHD file path (required)")
	parentFile = flag.String("parent", "", "parent CHD file path, for differencing children")
	verify     = flag.Bool("verify", false, "read every hunk and verify its CRC-16")
	dumpHunk   = flag.Int("hunk", -1, "decompress and hex-dump a single hunk index, then exit")
	jsonOutput = flag.Bool("json", false, "output header summary as JSON")
)

const appVersion = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -i <file> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Inspects CHD disc and disk images.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i game.chd\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i game.chd -verify\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i diff.chd -parent base.chd -hunk 0\n", os.Args[0])
	}
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Error: input file required (-i)\n")
		flag.Usage()
		os.Exit(1)
	}

	var parent *chd.Archive
	if *parentFile != "" {
		p, err := openArchive(*parentFile, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening parent: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = p.Close() }()
		parent = p
	}

	archive, err := openArchive(*inputFile, parent)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", *inputFile, err)
		os.Exit(1)
	}
	defer func() { _ = archive.Close() }()

	if *dumpHunk >= 0 {
		dumpSingleHunk(archive, uint32(*dumpHunk))
		return
	}

	if *verify {
		verifyAllHunks(archive)
	}

	if *jsonOutput {
		outputJSON(archive)
	} else {
		outputText(archive)
	}
}

func openArchive(path string, parent *chd.Archive) (*chd.Archive, error) {
	f, err := os.Open(path) //nolint:gosec // path is user-supplied by design
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	var opts []chd.OpenOption
	if parent != nil {
		opts = append(opts, chd.WithParent(parent))
	}
	if *verify {
		opts = append(opts, chd.WithBlockCRCVerification())
	}
	archive, err := chd.Open(f, info.Size(), opts...)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return archive, nil
}

func verifyAllHunks(archive *chd.Archive) {
	buf := make([]byte, archive.HunkSize())
	bad := 0
	for i := uint32(0); i < archive.HunkCount(); i++ {
		if err := archive.ReadHunk(i, buf); err != nil {
			fmt.Fprintf(os.Stderr, "hunk %d: %v\n", i, err)
			bad++
		}
	}
	if bad > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d hunks failed verification\n", bad, archive.HunkCount())
		os.Exit(1)
	}
	fmt.Printf("all %d hunks verified OK\n", archive.HunkCount())
}

func dumpSingleHunk(archive *chd.Archive, index uint32) {
	buf := make([]byte, archive.HunkSize())
	if err := archive.ReadHunk(index, buf); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading hunk %d: %v\n", index, err)
		os.Exit(1)
	}
	const perLine = 16
	for off := 0; off < len(buf); off += perLine {
		end := off + perLine
		if end > len(buf) {
			end = len(buf)
		}
		fmt.Printf("%08x  ", off)
		for _, b := range buf[off:end] {
			fmt.Printf("%02x ", b)
		}
		fmt.Println()
	}
}

type summary struct {
	Version     uint32 `json:"version"`
	HunkBytes   uint32 `json:"hunk_bytes"`
	HunkCount   uint32 `json:"hunk_count"`
	UnitBytes   uint32 `json:"unit_bytes"`
	LogicalSize int64  `json:"logical_size"`
	Compressed  bool   `json:"compressed"`
	HasParent   bool   `json:"has_parent"`
	Tracks      int    `json:"tracks"`
}

func buildSummary(archive *chd.Archive) summary {
	h := archive.Header()
	return summary{
		Version:     h.Version,
		HunkBytes:   h.HunkBytes,
		HunkCount:   archive.HunkCount(),
		UnitBytes:   h.UnitBytes,
		LogicalSize: archive.Size(),
		Compressed:  h.IsCompressed(),
		HasParent:   h.HasParent(),
		Tracks:      len(archive.Tracks()),
	}
}

func outputJSON(archive *chd.Archive) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(buildSummary(archive)); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

func outputText(archive *chd.Archive) {
	s := buildSummary(archive)
	fmt.Printf("Version: %d\n", s.Version)
	fmt.Printf("Hunk size: %d bytes\n", s.HunkBytes)
	fmt.Printf("Hunk count: %d\n", s.HunkCount)
	fmt.Printf("Unit size: %d bytes\n", s.UnitBytes)
	fmt.Printf("Logical size: %d bytes\n", s.LogicalSize)
	fmt.Printf("Compressed: %v\n", s.Compressed)
	fmt.Printf("Has parent: %v\n", s.HasParent)

	if tracks := archive.Tracks(); len(tracks) > 0 {
		fmt.Println("\nTracks:")
		for _, t := range tracks {
			fmt.Printf("  #%d %s/%s frames=%d pregap=%d start=%d\n",
				t.Number, t.Type, t.SubType, t.Frames, t.Pregap, t.StartFrame)
		}
	}
}
