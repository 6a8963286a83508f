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

package analyzer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/outputbuf"
	"github.com/bersler/oraclecdc/internal/schema"
	"github.com/bersler/oraclecdc/internal/transbuf"
	"github.com/bersler/oraclecdc/internal/types"
	"github.com/bersler/oraclecdc/internal/util/chunkpool"
)

func newTestAnalyzer(t *testing.T) (*Analyzer, *outputbuf.Buffer) {
	t.Helper()
	pool := chunkpool.New(t.Name(), 2, 8, 0)
	buf := transbuf.New(pool)
	out := outputbuf.New(pool, 1<<20)
	cache := schema.New("TESTDB", t.TempDir())
	cfg := Config{CheckpointIntervalS: 60, CheckpointIntervalMB: 100, MaxMessageMB: 100}
	return New(cfg, cache, buf, out, nil, nil, 0), out
}

func singlePieceInsert(xid types.XID, scn types.SCN) (*types.RedoRecord, *types.RedoRecord) {
	redo := &types.RedoRecord{
		OpCode: types.OpRowInsert,
		SCN:    scn,
		XID:    xid,
		Obj:    500,
		Bdba:   1 << 22,
		Slot:   1,
		Flow:   types.FlowFirst | types.FlowLast,
	}
	undo := &types.RedoRecord{OpCode: types.OpRowDelete, XID: xid}
	return undo, redo
}

func TestAnalyzerCommitEmitsBeginRowCommit(t *testing.T) {
	a, out := newTestAnalyzer(t)
	xid := types.NewXID(1, 2, 3)

	undo, redo := singlePieceInsert(xid, types.SCN(100))
	require.NoError(t, a.Process(undo, redo))

	commitRedo := &types.RedoRecord{OpCode: types.OpTransactionCommit, XID: xid, SCN: types.SCN(101)}
	require.NoError(t, a.Process(nil, commitRedo))

	frames := out.Drain()
	require.Len(t, frames, 3)
	require.Equal(t, "begin", envelopeOp(t, frames[0].Payload))
	require.Equal(t, "c", envelopeOp(t, frames[1].Payload))
	require.Equal(t, "commit", envelopeOp(t, frames[2].Payload))
}

// envelopeOp decodes a single-item envelope and returns its op field,
// for asserting the begin/row/commit framing sequence without coupling
// the test to the full JSON payload shape.
func envelopeOp(t *testing.T, raw []byte) string {
	t.Helper()
	var env struct {
		Payload []struct {
			Op string `json:"op"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Len(t, env.Payload, 1)
	return env.Payload[0].Op
}

func TestAnalyzerRollbackDropsTransactionWithoutEmitting(t *testing.T) {
	a, out := newTestAnalyzer(t)
	xid := types.NewXID(4, 5, 6)

	undo, redo := singlePieceInsert(xid, types.SCN(200))
	require.NoError(t, a.Process(undo, redo))

	rollbackRedo := &types.RedoRecord{OpCode: types.OpTransactionCommit, XID: xid, Rollback: true}
	require.NoError(t, a.Process(nil, rollbackRedo))

	require.Empty(t, out.Drain())
	require.False(t, a.buf.Active(xid))
}

func TestAnalyzerUndoOpcodeIgnored(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	require.NoError(t, a.Process(&types.RedoRecord{}, &types.RedoRecord{OpCode: types.OpUndo}))
}

func TestCheckpointCandidateAdvancesOnElapsedInterval(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	a.cfg.CheckpointIntervalS = 0
	xid := types.NewXID(7, 8, 9)
	undo, redo := singlePieceInsert(xid, types.SCN(300))
	require.NoError(t, a.Process(undo, redo))
	commitRedo := &types.RedoRecord{OpCode: types.OpTransactionCommit, XID: xid, SCN: types.SCN(301)}
	require.NoError(t, a.Process(nil, commitRedo))

	require.Equal(t, types.SCN(301), a.CheckpointCandidate().SCN)
}
