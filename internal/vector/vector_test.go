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

package vector

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/types"
)

func sampleRecord(op types.OpCode) *types.RedoRecord {
	return &types.RedoRecord{
		OpCode:       op,
		SCN:          types.SCN(12345),
		SubSCN:       1,
		Sequence:     7,
		XID:          types.NewXID(1, 2, 3),
		Obj:          100,
		DataObj:      100,
		Bdba:         0x01000010,
		Slot:         4,
		ColumnCount:  2,
		Flow:         types.FlowFirst | types.FlowLast,
		FieldLengths: []uint16{4, 3},
		Data:         []byte{1, 2, 3, 4, 5, 6, 7, 0},
	}
}

func TestEncodeNextRoundTrip(t *testing.T) {
	rec := sampleRecord(types.OpRowInsert)
	buf := Encode(rec, binary.BigEndian)

	got, n, err := Next(buf, binary.BigEndian)
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Equal(t, rec.OpCode, got.OpCode)
	require.Equal(t, rec.SCN, got.SCN)
	require.Equal(t, rec.XID, got.XID)
	require.Equal(t, rec.FieldLengths, got.FieldLengths)
	require.Equal(t, rec.Data, got.Data)
}

func TestNextReportsIncompleteOnShortBuffer(t *testing.T) {
	rec := sampleRecord(types.OpRowUpdate)
	buf := Encode(rec, binary.LittleEndian)

	_, n, err := Next(buf[:len(buf)-1], binary.LittleEndian)
	require.ErrorIs(t, err, ErrIncomplete)
	require.Zero(t, n)
}

func TestStreamFeedPairsUndoWithFollowingRecord(t *testing.T) {
	undo := sampleRecord(types.OpUndo)
	redo := sampleRecord(types.OpRowInsert)
	var buf []byte
	buf = append(buf, Encode(undo, binary.BigEndian)...)
	buf = append(buf, Encode(redo, binary.BigEndian)...)

	s := NewStream(binary.BigEndian)
	var pairs [][2]types.OpCode
	n, err := s.Feed(buf, func(u, r *types.RedoRecord) error {
		var uop types.OpCode
		if u != nil {
			uop = u.OpCode
		}
		pairs = append(pairs, [2]types.OpCode{uop, r.OpCode})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, len(buf), n)
	require.Len(t, pairs, 2)
	require.Equal(t, types.OpCode(0), pairs[0][0]) // no undo seen yet for the 0501 record itself
	require.Equal(t, types.OpUndo, pairs[0][1])
	require.Equal(t, types.OpUndo, pairs[1][0])
	require.Equal(t, types.OpRowInsert, pairs[1][1])
}

func TestStreamFeedStopsAtIncompleteTailAndResumesOnNextCall(t *testing.T) {
	rec1 := sampleRecord(types.OpUndo)
	rec2 := sampleRecord(types.OpRowDelete)
	full := append(Encode(rec1, binary.BigEndian), Encode(rec2, binary.BigEndian)...)

	s := NewStream(binary.BigEndian)
	var seen []types.OpCode
	consume := func(_, r *types.RedoRecord) error {
		seen = append(seen, r.OpCode)
		return nil
	}

	partial := full[:len(Encode(rec1, binary.BigEndian))+10]
	n, err := s.Feed(partial, consume)
	require.NoError(t, err)
	require.Equal(t, len(Encode(rec1, binary.BigEndian)), n)
	require.Equal(t, []types.OpCode{types.OpUndo}, seen)

	n2, err := s.Feed(full[n:], consume)
	require.NoError(t, err)
	require.Equal(t, len(full)-n, n2)
	require.Equal(t, []types.OpCode{types.OpUndo, types.OpRowDelete}, seen)
}
