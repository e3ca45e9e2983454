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
	"errors"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

func init() {
	RegisterCodec(CodecFLAC, func(*Header) Codec { return &flacCodec{} })
	RegisterCodec(CodecCDFLAC, func(*Header) Codec { return &cdFLACCodec{} })
}

// flacCodec decompresses CHD's "flac" raw codec: a headerless FLAC stream
// (44100 Hz, 16-bit, stereo), with its first source byte selecting output
// sample endianness ('L' little, 'B' big).
type flacCodec struct{}

func (*flacCodec) Decompress(dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, wrapError(KindDecompressionError, "flac: empty source", nil)
	}

	bigEndian := src[0] == 'B'
	body := src[1:]

	blockSize := cdFLACBlockSize(len(dst))
	header := buildFLACHeader(44100, 2, 16, blockSize)

	cr := &countingReader{header: header, data: body}
	stream, err := flac.New(cr)
	if err != nil {
		return 0, wrapError(KindDecompressionError, "flac: init", err)
	}
	defer func() { _ = stream.Close() }()

	return decodeFLACFrames(stream, dst, bigEndian)
}

// decodeFLACFrames decodes every frame of stream into dst, writing 16-bit
// PCM samples in the requested endianness.
func decodeFLACFrames(stream *flac.Stream, dst []byte, bigEndian bool) (int, error) {
	offset := 0
	for {
		audioFrame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return offset, wrapError(KindDecompressionError, "flac: frame", err)
		}
		offset = writeFLACFrameSamples(audioFrame, dst, offset, bigEndian)
	}
	return offset, nil
}

// decodeFLACFramesStereo decodes a CD-FLAC stream, rejecting any frame
// that is not exactly stereo: CD audio sectors are always 2-channel, and
// MAME's CHD encoder never produces anything else for the "cdfl" codec,
// so a mismatch means a malformed or unsupported stream rather than
// something worth silently zero-filling.
func decodeFLACFramesStereo(stream *flac.Stream, dst []byte) (int, error) {
	offset := 0
	for {
		audioFrame, err := stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return offset, wrapError(KindDecompressionError, "cdfl: frame", err)
		}
		if len(audioFrame.Subframes) != 2 {
			return offset, wrapError(KindInvalidData, "cdfl: non-stereo CD-FLAC audio is not supported", nil)
		}
		offset = writeFLACFrameSamples(audioFrame, dst, offset, true)
	}
	return offset, nil
}

func writeFLACFrameSamples(audioFrame *frame.Frame, dst []byte, offset int, bigEndian bool) int {
	if len(audioFrame.Subframes) == 0 {
		return offset
	}
	numChannels := len(audioFrame.Subframes)
	if numChannels > 2 {
		numChannels = 2
	}
	for i := range int(audioFrame.Subframes[0].NSamples) {
		for ch := 0; ch < numChannels; ch++ {
			sample := audioFrame.Subframes[ch].Samples[i]
			if offset+2 > len(dst) {
				return offset
			}
			if bigEndian {
				dst[offset] = byte(sample >> 8)
				dst[offset+1] = byte(sample)
			} else {
				dst[offset] = byte(sample)
				dst[offset+1] = byte(sample >> 8)
			}
			offset += 2
		}
	}
	return offset
}

// cdFLACCodec implements "cdfl": CD audio sectors FLAC-compressed
// (44100/16/2, samples big-endian per spec.md §4.5), subchannel data
// deflated, same ECC-bitmap compound header as the other CD codecs.
type cdFLACCodec struct{}

func (c *cdFLACCodec) Decompress(dst, src []byte) (int, error) {
	return c.DecompressCD(dst, src, len(dst), len(dst)/cdFrameBytes)
}

func (*cdFLACCodec) DecompressCD(dst, src []byte, destLen, frames int) (int, error) {
	hdr, err := parseCDCompoundHeader(src, destLen, frames)
	if err != nil {
		return 0, err
	}

	totalSectorBytes := frames * cdSectorBytes
	blockSize := cdFLACBlockSize(totalSectorBytes)
	header := buildFLACHeader(44100, 2, 16, blockSize)

	cr := &countingReader{header: header, data: hdr.baseData}
	stream, err := flac.New(cr)
	if err != nil {
		return 0, wrapError(KindDecompressionError, "cdfl: init", err)
	}

	sectorDst := make([]byte, totalSectorBytes)
	_, err = decodeFLACFramesStereo(stream, sectorDst)
	_ = stream.Close()
	if err != nil {
		return 0, err
	}

	subDst := make([]byte, frames*cdSubBytes)
	if len(hdr.subData) > 0 {
		if err := inflateZlibInto(subDst, hdr.subData); err != nil {
			return 0, wrapError(KindDecompressionError, "cdfl: subchannel data", err)
		}
	}

	return reassembleCD(dst, sectorDst, subDst, hdr.eccBitmap, frames)
}

// countingReader feeds a synthetic FLAC stream header followed by the raw
// CHD-stored frame data, since CHD strips the STREAMINFO block entirely.
type countingReader struct {
	header        []byte
	data          []byte
	headerPos     int
	dataPos       int
	bytesFromData int
}

func (cr *countingReader) Read(buf []byte) (int, error) {
	total := 0
	if cr.headerPos < len(cr.header) {
		n := copy(buf, cr.header[cr.headerPos:])
		cr.headerPos += n
		total += n
		buf = buf[n:]
	}
	if len(buf) > 0 && cr.dataPos < len(cr.data) {
		n := copy(buf, cr.data[cr.dataPos:])
		cr.dataPos += n
		cr.bytesFromData += n
		total += n
	}
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// flacHeaderTemplate is a minimal valid FLAC stream header: the 8-byte
// "fLaC" + metadata-block-header pair, followed by exactly 34 bytes of
// STREAMINFO body (2 min/max block size + 3 min/max frame size each + 8
// packed sample-rate/channels/bps/total-samples + 16 MD5), patched per-use
// by buildFLACHeader. CHD never stores this header itself; it must be
// synthesized to hand the stream to a standard FLAC decoder. The MD5
// signature is left zeroed, which per the FLAC format means "not computed".
var flacHeaderTemplate = []byte{
	0x66, 0x4C, 0x61, 0x43, // "fLaC"
	0x80, 0x00, 0x00, 0x22, // STREAMINFO, last block, length 34
	0x00, 0x00, // min block size
	0x00, 0x00, // max block size
	0x00, 0x00, 0x00, // min frame size
	0x00, 0x00, 0x00, // max frame size
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // sample rate / channels / bps / total samples
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // MD5 (absent)
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// buildFLACHeader packs sampleRate (20 bits), numChannels-1 (3 bits), and
// bitsPerSample-1 (5 bits) into STREAMINFO's combined 8-byte field, per the
// FLAC format (total_samples is left 0, meaning "unknown"), then patches
// min/max block size to blockSize.
func buildFLACHeader(sampleRate uint32, numChannels, bitsPerSample uint8, blockSize uint16) []byte {
	header := make([]byte, len(flacHeaderTemplate))
	copy(header, flacHeaderTemplate)

	header[0x08] = byte(blockSize >> 8)
	header[0x09] = byte(blockSize)
	header[0x0A] = byte(blockSize >> 8)
	header[0x0B] = byte(blockSize)

	packed := uint64(sampleRate&0xfffff)<<44 |
		uint64(uint32(numChannels-1)&0x7)<<41 |
		uint64(uint32(bitsPerSample-1)&0x1f)<<36
	binary.BigEndian.PutUint64(header[0x12:0x1A], packed)

	return header
}

// cdFLACBlockSize matches MAME's chd_cd_flac_compressor::blocksize().
func cdFLACBlockSize(totalBytes int) uint16 {
	blockSize := totalBytes / 4
	for blockSize > cdSectorBytes {
		blockSize /= 2
	}
	return uint16(blockSize)
}
