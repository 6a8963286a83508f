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

// Package analyzer implements the redo-record dispatch and
// transaction-assembly engine described in spec.md §4.E: it decodes
// each redo record, groups row pieces into logical operations, and
// hands completed transactions to the Output Buffer on commit.
package analyzer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bersler/oraclecdc/internal/encoder"
	"github.com/bersler/oraclecdc/internal/outputbuf"
	"github.com/bersler/oraclecdc/internal/schema"
	"github.com/bersler/oraclecdc/internal/systran"
	"github.com/bersler/oraclecdc/internal/transbuf"
	"github.com/bersler/oraclecdc/internal/types"
)

// Config bounds the analyzer's checkpoint-candidate and message-split
// policy, per spec.md §4.E.
type Config struct {
	CheckpointIntervalS  int
	CheckpointIntervalMB int
	MaxMessageMB         int
}

// txMeta tracks the per-XID bookkeeping the spec.md §3 "Transaction"
// entity describes beyond the raw record pairs already held in
// transbuf.Buffer: first-seen position, commit stamp, and the
// begin/rollback/system booleans.
type txMeta struct {
	xid           types.XID
	firstSequence types.Seq
	begin         bool
	system        bool
	rollback      bool
	commitSCN     types.SCN
	commitTime    time.Time
	commitSeq     types.Seq
	// rowOps is the append-order sequence of completed logical row
	// operations (built incrementally as chains close), consumed at
	// commit/flush time.
	rowOps []*types.RowOp
}

// Checkpoint is a candidate restart position recorded by the analyzer
// at the cadence described in spec.md §4.E; it becomes durable only
// once the writer confirms every message below its SCN.
type Checkpoint struct {
	SCN      types.SCN
	Time     time.Time
	Sequence types.Seq
	Offset   int64
}

// Analyzer owns the schema cache and all in-flight transaction state;
// it is the sole writer of the Output Buffer (spec.md §5).
type Analyzer struct {
	cfg Config

	cache  *schema.Cache
	buf    *transbuf.Buffer
	out    *outputbuf.Buffer
	sysTxn *systran.Engine
	enc    *encoder.Encoder

	txns map[types.XID]*txMeta
	// current is the row-chain under construction for whatever XID is
	// actively being appended to; Oracle redo interleaves transactions
	// across commits but a single transaction's own row pieces always
	// appear contiguously, so one in-flight chain per XID suffices.
	current map[types.XID]*chain

	lastCheckpoint   Checkpoint
	bytesSinceCkpt   int
	lastCheckpointAt time.Time
	queueID          uint32
}

// New constructs an Analyzer over the given schema cache, transaction
// buffer, output buffer, and System-Transaction engine. enc renders
// completed RowOps into the wire payload contract (spec.md §6); a nil
// enc falls back to encoder.New(encoder.Format{SchemaEveryMessage: true})
// (single-row JSON messages, schema repeated on every message).
func New(cfg Config, cache *schema.Cache, buf *transbuf.Buffer, out *outputbuf.Buffer, sysTxn *systran.Engine, enc *encoder.Encoder, queueID uint32) *Analyzer {
	if enc == nil {
		enc = encoder.New(encoder.Format{SchemaEveryMessage: true})
	}
	return &Analyzer{
		cfg:     cfg,
		cache:   cache,
		buf:     buf,
		out:     out,
		sysTxn:  sysTxn,
		enc:     enc,
		txns:    make(map[types.XID]*txMeta),
		current: make(map[types.XID]*chain),
		queueID: queueID,
	}
}

func (a *Analyzer) txFor(xid types.XID, seq types.Seq) *txMeta {
	t, ok := a.txns[xid]
	if !ok {
		t = &txMeta{xid: xid, firstSequence: seq}
		a.txns[xid] = t
	}
	return t
}

// Process dispatches one (undo, redo) pair decoded from the redo
// stream, per spec.md §4.E steps 3-4: opcode-class dispatch to
// single-undo (vector-only), transaction control (0502/0504), row ops
// (0B02/03/05/06/08/0B/0C/10/16), or "ignored/vector-only" for
// anything else (including 1801 truncate, which only needs to flow
// through SCN tracking for this system).
func (a *Analyzer) Process(undo, redo *types.RedoRecord) error {
	switch redo.OpCode {
	case types.OpUndo:
		return nil
	case types.OpTransactionStart, types.OpTransactionCommit:
		return a.processTransactionControl(redo)
	default:
		if redo.OpCode.IsRowOp() {
			return a.processRow(undo, redo)
		}
		return nil
	}
}

func (a *Analyzer) processTransactionControl(redo *types.RedoRecord) error {
	t := a.txFor(redo.XID, redo.Sequence)
	switch redo.OpCode {
	case types.OpTransactionStart:
		t.begin = true
		return nil
	case types.OpTransactionCommit:
		if !t.begin {
			logrus.WithField("xid", redo.XID.String()).Debug("analyzer: commit/rollback marker for a transaction with no observed start")
		}
		if redo.Rollback {
			t.rollback = true
			return a.rollback(redo.XID)
		}
		return a.commit(t, redo)
	default:
		return nil
	}
}

func (a *Analyzer) processRow(undo, redo *types.RedoRecord) error {
	if err := redo.Validate(); err != nil {
		return types.NewRuntimeError(errors.Wrap(err, "analyzer: invalid row redo record"))
	}

	// Partial rollback recognition: a vector whose undo opcode is the
	// paired rollback of the tail entry's redo opcode (for example undo
	// 0B03 after a 0B02 insert) pops the previously-appended tail instead
	// of being appended as a new logical piece (spec.md §4.B rollbackLast).
	if a.buf.RollbackLast(redo.XID, undo.OpCode, redo.OpCode) {
		return nil
	}

	if err := a.buf.Append(context.Background(), redo.XID, undo, redo); err != nil {
		return types.NewRuntimeError(err)
	}

	oo := a.cache.CheckDict(redo.Obj, redo.DataObj)
	if redo.OpCode == types.OpRowSupplementalLog {
		c := a.current[redo.XID]
		if c != nil {
			before := decodeColumns(undo, oo)
			after := decodeColumns(redo, oo)
			c.applySupplemental(before, after)
		}
		if redo.Flow.Has(types.FlowLast) {
			return a.closeChain(redo.XID, redo, oo)
		}
		return nil
	}

	kind := rowOpKindForOpcode(redo.OpCode)
	slot := types.Classify(redo.Flow)

	c := a.current[redo.XID]
	if c == nil || slot == types.SlotSingle || slot == types.SlotFirst {
		c = newChain(kind)
		a.current[redo.XID] = c
	}
	c.observe(slot, kind, decodeColumns(redo, oo))
	c.before = decodeColumns(undo, oo)

	if redo.Flow.Has(types.FlowLast) {
		return a.closeChain(redo.XID, redo, oo)
	}
	return nil
}

func (a *Analyzer) closeChain(xid types.XID, last *types.RedoRecord, oo *schema.OracleObject) error {
	c := a.current[xid]
	delete(a.current, xid)
	if c == nil {
		return nil
	}

	t := a.txFor(xid, last.Sequence)
	if a.sysTxn != nil && a.sysTxn.Tracks(last.Obj) {
		t.system = true
	}

	op := &types.RowOp{
		Kind:       c.finalOp(),
		SCN:        last.SCN,
		SubSCN:     last.SubSCN,
		XID:        xid,
		Obj:        last.Obj,
		DataObj:    last.DataObj,
		Row:        types.NewRowId(last.DataObj, last.Bdba>>22, last.Bdba&0x3FFFFF, last.Slot),
		Before:     c.before,
		BeforeSupp: c.beforeSupp,
		After:      c.mergedAfter(),
		AfterSupp:  c.afterSupp,
	}
	if oo != nil {
		op.Owner = oo.Owner
		op.Table = oo.Table
	}
	t.rowOps = append(t.rowOps, op)
	return nil
}

// rollback drops the transaction's buffered pieces without emitting
// anything, per spec.md §4.E "Rollback handling."
func (a *Analyzer) rollback(xid types.XID) error {
	a.buf.Drop(xid)
	delete(a.txns, xid)
	delete(a.current, xid)
	return nil
}

// commit implements spec.md §4.E's commit handling: system-transaction
// drive, output emission (splitting on maxMessageMb), and buffer
// release.
func (a *Analyzer) commit(t *txMeta, redo *types.RedoRecord) error {
	t.commitSCN = redo.SCN
	t.commitTime = time.Now()
	t.commitSeq = redo.Sequence

	if t.system && a.sysTxn != nil {
		if err := a.buf.Iterate(t.xid, func(undo, r *types.RedoRecord) error {
			return a.sysTxn.Apply(undo, r)
		}); err != nil {
			return types.NewRuntimeError(err)
		}
		if err := a.sysTxn.Commit(t.commitSCN); err != nil {
			return types.NewRuntimeError(err)
		}
	}

	if err := a.emit(t); err != nil {
		return err
	}

	a.buf.Drop(t.xid)
	delete(a.txns, t.xid)
	a.maybeCheckpoint(t.commitSCN, t.commitTime, t.commitSeq)
	return nil
}

const bytesPerMB = 1 << 20

// emit hands the transaction's accumulated row ops to the Output
// Buffer, splitting into multiple commit/begin-bracketed segments if
// the accumulated payload size would exceed maxMessageMb (spec.md
// §4.E step 3).
func (a *Analyzer) emit(t *txMeta) error {
	limit := a.cfg.MaxMessageMB * bytesPerMB
	tm := t.commitTime.UTC().Format(time.RFC3339Nano)

	if err := a.emitMarker(t, tm, types.OpBegin, false); err != nil {
		return err
	}

	size := 0
	for _, op := range t.rowOps {
		opSize := estimateSize(op)
		if limit > 0 && size > 0 && size+opSize > limit {
			logrus.WithField("xid", t.xid.String()).Warn("analyzer: splitting oversized transaction across multiple commits")
			if err := a.emitMarker(t, tm, types.OpCommit, true); err != nil {
				return err
			}
			if err := a.emitMarker(t, tm, types.OpBegin, false); err != nil {
				return err
			}
			size = 0
		}
		if err := a.emitRowOp(t, tm, op); err != nil {
			return err
		}
		size += opSize
	}

	return a.emitMarker(t, tm, types.OpCommit, true)
}

// emitRowOp renders op into the JSON payload contract via
// internal/encoder and frames it as one Output Buffer message.
func (a *Analyzer) emitRowOp(t *txMeta, tm string, op *types.RowOp) error {
	oo := a.cache.CheckDict(op.Obj, op.DataObj)
	if oo == nil {
		oo = &schema.OracleObject{Owner: op.Owner, Table: op.Table}
	}
	item, err := a.enc.EncodeRowOp(op, oo)
	if err != nil {
		return types.NewRuntimeError(errors.Wrap(err, "analyzer: encoding row op payload"))
	}
	raw, err := a.enc.EncodeEnvelope(t.commitSCN, tm, t.xid, []encoder.PayloadItem{item})
	if err != nil {
		return types.NewRuntimeError(errors.Wrap(err, "analyzer: encoding envelope"))
	}
	if err := a.out.Begin(t.commitSCN, t.commitSeq, op.Obj, a.queueID); err != nil {
		return err
	}
	a.out.Append(raw)
	return a.out.Commit(false)
}

// emitMarker frames a begin/commit/chkpt-style marker item as its own
// Output Buffer message.
func (a *Analyzer) emitMarker(t *txMeta, tm string, kind types.RowOpKind, force bool) error {
	raw, err := a.enc.EncodeEnvelope(t.commitSCN, tm, t.xid, []encoder.PayloadItem{{Op: kind.String()}})
	if err != nil {
		return types.NewRuntimeError(errors.Wrap(err, "analyzer: encoding marker envelope"))
	}
	if err := a.out.Begin(t.commitSCN, t.commitSeq, 0, a.queueID); err != nil {
		return err
	}
	a.out.Append(raw)
	return a.out.Commit(force)
}

func estimateSize(op *types.RowOp) int {
	size := 64
	for _, v := range op.After {
		size += len(v.Raw) + 16
	}
	for _, v := range op.Before {
		size += len(v.Raw) + 16
	}
	return size
}

// maybeCheckpoint records a checkpoint candidate every
// checkpointIntervalS seconds and every checkpointIntervalMB of redo
// consumed, per spec.md §4.E.
func (a *Analyzer) maybeCheckpoint(scn types.SCN, t time.Time, seq types.Seq) {
	if a.lastCheckpointAt.IsZero() {
		a.lastCheckpointAt = t
	}
	elapsed := t.Sub(a.lastCheckpointAt)
	if elapsed >= time.Duration(a.cfg.CheckpointIntervalS)*time.Second ||
		a.bytesSinceCkpt >= a.cfg.CheckpointIntervalMB*bytesPerMB {
		a.lastCheckpoint = Checkpoint{SCN: scn, Time: t, Sequence: seq}
		a.lastCheckpointAt = t
		a.bytesSinceCkpt = 0
	}
}

// CheckpointCandidate returns the most recently recorded checkpoint
// candidate; the writer promotes it to durable once every message
// below its SCN has been confirmed.
func (a *Analyzer) CheckpointCandidate() Checkpoint { return a.lastCheckpoint }

func rowOpKindForOpcode(op types.OpCode) types.RowOpKind {
	switch op {
	case types.OpRowInsert, types.OpRowMultiInsert:
		return types.OpInsert
	case types.OpRowDelete, types.OpRowMultiDelete:
		return types.OpDelete
	case types.OpRowUpdate, types.OpRowOverwrite, types.OpRowForwardingAddr:
		return types.OpUpdate
	default:
		return types.OpUpdate
	}
}
