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

package transbuf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/types"
	"github.com/bersler/oraclecdc/internal/util/chunkpool"
)

func TestRollbackLastPopsCompensatingVector(t *testing.T) {
	pool := chunkpool.New(t.Name(), 2, 8, 0)
	b := New(pool)
	xid := types.NewXID(1, 2, 3)

	// (0B02 FB_L) insert, per spec.md §8 scenario 3.
	insertUndo := &types.RedoRecord{OpCode: types.OpRowDelete, XID: xid}
	insertRedo := &types.RedoRecord{OpCode: types.OpRowInsert, XID: xid}
	require.NoError(t, b.Append(context.Background(), xid, insertUndo, insertRedo))
	require.Equal(t, 1, b.Count(xid))

	// (0B03 FB_L) undoing it: the compensating record's Undo opcode is
	// OpRowDelete (0B03), the paired rollback of a tail whose Redo opcode
	// is OpRowInsert (0B02). Its own Redo opcode plays no part.
	deleteUndo := types.OpRowDelete
	deleteRedo := types.OpRowDelete
	popped := b.RollbackLast(xid, deleteUndo, deleteRedo)
	require.True(t, popped, "compensating (0B03) vector must pop the tail (0B02) insert")
	require.Equal(t, 0, b.Count(xid))
}

func TestRollbackLastNoOpOnUnrelatedVector(t *testing.T) {
	pool := chunkpool.New(t.Name(), 2, 8, 0)
	b := New(pool)
	xid := types.NewXID(1, 2, 3)

	undo := &types.RedoRecord{OpCode: types.OpRowDelete, XID: xid}
	redo := &types.RedoRecord{OpCode: types.OpRowInsert, XID: xid}
	require.NoError(t, b.Append(context.Background(), xid, undo, redo))

	// An update's undo opcode (0B05) is not a recognized rollback of an
	// insert (0B02); the tail must survive untouched.
	popped := b.RollbackLast(xid, types.OpRowUpdate, types.OpRowUpdate)
	require.False(t, popped)
	require.Equal(t, 1, b.Count(xid))
}

func TestRollbackLastSupplementalLogMatchesAnyUndo(t *testing.T) {
	pool := chunkpool.New(t.Name(), 2, 8, 0)
	b := New(pool)
	xid := types.NewXID(1, 2, 3)

	undo := &types.RedoRecord{OpCode: types.OpRowUpdate, XID: xid}
	redo := &types.RedoRecord{OpCode: types.OpRowSupplementalLog, XID: xid}
	require.NoError(t, b.Append(context.Background(), xid, undo, redo))

	popped := b.RollbackLast(xid, types.OpRowDelete, types.OpRowInsert)
	require.True(t, popped, "0B10 rolls back against any undo opcode")
}

func TestIterateYieldsInAppendOrder(t *testing.T) {
	pool := chunkpool.New(t.Name(), 2, 8, 0)
	b := New(pool)
	xid := types.NewXID(1, 2, 3)

	for i := 0; i < 3; i++ {
		undo := &types.RedoRecord{OpCode: types.OpRowDelete, XID: xid, Slot: uint16(i)}
		redo := &types.RedoRecord{OpCode: types.OpRowInsert, XID: xid, Slot: uint16(i)}
		require.NoError(t, b.Append(context.Background(), xid, undo, redo))
	}

	var slots []uint16
	require.NoError(t, b.Iterate(xid, func(undo, redo *types.RedoRecord) error {
		slots = append(slots, redo.Slot)
		return nil
	}))
	require.Equal(t, []uint16{0, 1, 2}, slots)
}
