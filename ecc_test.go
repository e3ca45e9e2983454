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

import "testing"

// TestRegenerateSectorECCZeroSector verifies the degenerate case every
// GF(256) product code must satisfy: an all-zero input (the linear code's
// zero codeword) produces all-zero P and Q parity, for both passes,
// including Q's wraparound read into the just-written P region.
func TestRegenerateSectorECCZeroSector(t *testing.T) {
	t.Parallel()

	sector := make([]byte, cdSectorBytes)
	if err := regenerateSectorECC(sector); err != nil {
		t.Fatalf("regenerateSectorECC: %v", err)
	}

	for i := eccPOffset; i < eccQOffset+104; i++ {
		if sector[i] != 0 {
			t.Fatalf("sector[%d] = %#x, want 0 for all-zero input", i, sector[i])
		}
	}
}

// TestRegenerateSectorECCSingleImpulse hand-verifies the P-pass GF(256)
// computation against a single nonzero input byte placed at src offset
// 1978 (sector offset eccSrcOffset+1978 = 1990), chosen so it lands on the
// very last minor iteration of P's major 0 (index sequence (0+86*k) mod
// 2064 for k=0..23; 86*23=1978), making every earlier iteration a no-op
// and the major-0 trace tractable by hand:
//
//	eccA, eccB start 0; 23 iterations of temp=0 leave both 0 (eccFLUT[0]=0);
//	the 24th reads temp=1: eccA=1, eccB=1, eccA=eccFLUT[1]=2;
//	combine: eccA=eccBLUT[eccFLUT[2]^eccB]=eccBLUT[4^1]=eccBLUT[5].
//	eccFLUT[3]=6, so 3^eccFLUT[3]=3^6=5, giving eccBLUT[5]=3.
//	P[0]=eccA=3, P[0+86]=eccA^eccB=3^1=2.
//
// Index 1978 is congruent to 0 mod 86 (86*23=1978 exactly), and P's major
// sequences partition [0,2064) by residue mod 86, so no other major's
// sequence ever visits it: every other P byte stays 0.
func TestRegenerateSectorECCSingleImpulse(t *testing.T) {
	t.Parallel()

	sector := make([]byte, cdSectorBytes)
	sector[eccSrcOffset+1978] = 0x01

	if err := regenerateSectorECC(sector); err != nil {
		t.Fatalf("regenerateSectorECC: %v", err)
	}

	if got := sector[eccPOffset+0]; got != 3 {
		t.Errorf("P[0] = %#x, want 0x03", got)
	}
	if got := sector[eccPOffset+86]; got != 2 {
		t.Errorf("P[86] = %#x, want 0x02", got)
	}
	for _, major := range []int{1, 2, 10, 43, 85} {
		if got := sector[eccPOffset+major]; got != 0 {
			t.Errorf("P[%d] = %#x, want 0 (unaffected major)", major, got)
		}
		if got := sector[eccPOffset+86+major]; got != 0 {
			t.Errorf("P[%d] = %#x, want 0 (unaffected major)", major+86, got)
		}
	}

	// Q's 2236-byte window wraps into the freshly written P region (which
	// now holds nonzero bytes at src-relative offsets 2064 and 2150), so a
	// correct implementation cannot leave Q all-zero here.
	allZeroQ := true
	for i := eccQOffset; i < eccQOffset+104; i++ {
		if sector[i] != 0 {
			allZeroQ = false
			break
		}
	}
	if allZeroQ {
		t.Error("Q region is all-zero; expected it to reflect the P-region wraparound")
	}
}
