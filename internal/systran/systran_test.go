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

package systran

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/schema"
	"github.com/bersler/oraclecdc/internal/types"
)

func packedNumber(n byte) []byte { return []byte{0xC1, n + 1} }

func TestTracksReportsRegisteredObjects(t *testing.T) {
	cache := schema.New("TESTDB", t.TempDir())
	e := New(cache)
	require.False(t, e.Tracks(18))
	e.RegisterTable(18, KindUser)
	require.True(t, e.Tracks(18))
}

func TestApplyInsertUserAndDelete(t *testing.T) {
	cache := schema.New("TESTDB", t.TempDir())
	e := New(cache)
	e.RegisterTable(18, KindUser)

	rowID := types.NewRowId(18, 1, 2, 0)
	redo := &types.RedoRecord{
		OpCode:       types.OpRowInsert,
		Obj:          18,
		DataObj:      18,
		Bdba:         (1 << 22) | 2,
		Slot:         0,
		FieldLengths: []uint16{2, 5},
		Data:         append(append(packedNumber(42), 0, 0), []byte("ALICE")...),
	}
	require.NoError(t, e.Apply(nil, redo))

	row, ok := e.tables.Users.Get(rowID)
	require.True(t, ok)
	require.Equal(t, uint32(42), row.UserNo)
	require.Equal(t, "ALICE", row.Name)
	require.True(t, e.dirty)

	del := &types.RedoRecord{OpCode: types.OpRowDelete, Obj: 18, DataObj: 18, Bdba: (1 << 22) | 2, Slot: 0}
	require.NoError(t, e.Apply(nil, del))
	_, ok = e.tables.Users.Get(rowID)
	require.False(t, ok)
}

func TestApplyIgnoresUntrackedObject(t *testing.T) {
	cache := schema.New("TESTDB", t.TempDir())
	e := New(cache)
	redo := &types.RedoRecord{OpCode: types.OpRowInsert, Obj: 999}
	require.NoError(t, e.Apply(nil, redo))
	require.False(t, e.dirty)
}

func TestCommitNoOpWhenNotDirty(t *testing.T) {
	cache := schema.New("TESTDB", t.TempDir())
	e := New(cache)
	require.NoError(t, e.Commit(types.SCN(1)))
}
