// Copyright 2024 The OracleCDC Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package reader

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadSizeDoubles(t *testing.T) {
	require.Equal(t, int64(512), readSize(0, 512))
	require.Equal(t, int64(512), readSize(100, 512))
	require.Equal(t, int64(1024), readSize(512, 512))
	require.Equal(t, int64(2048), readSize(1024, 512))

	capped := readSize(int64(DiskBufferSize), 512)
	require.Equal(t, int64(DiskBufferSize/8), capped)
}

func buildBlock(blockSize uint32, blockNumber, sequence uint32, bigEndian bool) []byte {
	order := byteOrder(bigEndian)
	block := make([]byte, blockSize)
	block[0] = 0
	block[1] = magicByte1ForBlockSize[blockSize]
	order.PutUint32(block[4:8], blockNumber)
	order.PutUint32(block[8:12], sequence)
	sum := checksum(block, blockSize, bigEndian)
	order.PutUint16(block[14:16], sum)
	return block
}

func TestCheckBlockHeaderOK(t *testing.T) {
	block := buildBlock(512, 7, 42, false)

	r := New("t", 1, NewFileSource(), nil, 0)
	r.mu.hdr.blockSize = 512
	r.mu.sequence = 42

	require.Equal(t, BlockOK, r.checkBlockHeader(block, 7))
}

func TestCheckBlockHeaderBadCRC(t *testing.T) {
	block := buildBlock(512, 7, 42, false)
	block[100] ^= 0xFF // corrupt payload without touching the checksum field

	r := New("t", 1, NewFileSource(), nil, 0)
	r.mu.hdr.blockSize = 512
	r.mu.sequence = 42

	require.Equal(t, BlockBadCRC, r.checkBlockHeader(block, 7))
}

func TestCheckBlockHeaderOverwritten(t *testing.T) {
	block := buildBlock(512, 7, 10, false)

	r := New("t", 1, NewFileSource(), nil, 0)
	r.mu.hdr.blockSize = 512
	r.mu.sequence = 42 // reader expects a higher sequence than found

	require.Equal(t, BlockOverwritten, r.checkBlockHeader(block, 7))
}

func TestCheckBlockHeaderEmpty(t *testing.T) {
	block := make([]byte, 512)

	r := New("t", 1, NewFileSource(), nil, 0)
	r.mu.hdr.blockSize = 512

	require.Equal(t, BlockEmpty, r.checkBlockHeader(block, 1))
}

func TestParseHeaderLittleEndian(t *testing.T) {
	buf := make([]byte, 512*2)
	buf[0] = 0
	buf[28], buf[29], buf[30], buf[31] = 0x7D, 0x7C, 0x7B, 0x7A
	binary.LittleEndian.PutUint32(buf[20:24], 512)
	binary.LittleEndian.PutUint32(buf[24:28], 100)

	h, check, err := parseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, BlockOK, check)
	require.Equal(t, uint32(512), h.blockSize)
	require.Equal(t, uint32(100), h.numBlocks)
	require.False(t, h.bigEndian)
}

func TestParseHeaderBigEndianFlips(t *testing.T) {
	buf := make([]byte, 512*2)
	buf[28], buf[29], buf[30], buf[31] = 0x7A, 0x7B, 0x7C, 0x7D
	binary.BigEndian.PutUint32(buf[20:24], 512)

	h, check, err := parseHeader(buf)
	require.NoError(t, err)
	require.Equal(t, BlockOK, check)
	require.True(t, h.bigEndian)
}

func TestParseHeaderBadMagic(t *testing.T) {
	buf := make([]byte, 512*2)
	buf[28] = 0x00

	_, _, err := parseHeader(buf)
	require.Error(t, err)
}
