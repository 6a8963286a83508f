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

// Package transbuf implements the per-transaction buffer described in
// spec.md §4.B: a singly linked list of fixed-size chunks (drawn from
// internal/util/chunkpool) holding, in arrival order, the
// (undo,redo) record pairs belonging to one Oracle transaction. It
// generalizes the teacher's in-memory staged-mutation accumulation
// (see the toApply *ident.TableMap[[]types.Mutation] built up in
// internal/source/cdc/resolver.go's process()) from "accumulate until
// a flush boundary" to "accumulate until commit or rollback, with
// support for popping the most recent entry on partial rollback".
package transbuf

import (
	"context"
	"sync"

	"github.com/bersler/oraclecdc/internal/types"
	"github.com/bersler/oraclecdc/internal/util/chunkpool"
)

// pairedUndo maps a just-appended pair's (Redo.OpCode) to the set of
// (Undo.OpCode) values that are recognized as its rollback, per
// spec.md §4.B's table. 0B10 rolls back against any undo opcode.
var pairedUndo = map[types.OpCode][]types.OpCode{
	types.OpRowUpdate:         {types.OpRowUpdate},
	types.OpRowDelete:         {types.OpRowInsert},
	types.OpRowInsert:         {types.OpRowDelete},
	types.OpRowOverwrite:      {types.OpRowOverwrite},
	types.OpRowForwardingAddr: {types.OpRowForwardingAddr},
	types.OpRowMultiInsert:    {types.OpRowMultiDelete},
}

func isPairedUndo(redoOp, undoOp types.OpCode) bool {
	if redoOp == types.OpRowSupplementalLog {
		return true // 0B10 -> anything
	}
	candidates, ok := pairedUndo[redoOp]
	if !ok {
		return false
	}
	for _, c := range candidates {
		if c == undoOp {
			return true
		}
	}
	return false
}

// entry is one densely packed record inside a chunk.
type entry struct {
	pair types.RecordPair
}

// chunk is one fixed-size page of entries. Chunks are singly linked;
// only the tail chunk ever grows.
type chunk struct {
	backing *chunkpool.Chunk
	entries []entry
	next    *chunk
}

// txState is the per-XID buffer: a chunk list plus a small amount of
// bookkeeping.
type txState struct {
	head, tail *chunk
	count      int
}

// Buffer holds the transaction buffers for every in-flight XID. It is
// owned and mutated exclusively by the analyzer goroutine (spec.md §5
// "Schema cache — mutated only on analyzer thread" applies equally
// here).
type Buffer struct {
	pool *chunkpool.Pool

	mu   sync.Mutex // guards only the map; the analyzer is the sole mutator in practice
	txns map[types.XID]*txState
}

// New constructs a Buffer drawing pages from pool.
func New(pool *chunkpool.Pool) *Buffer {
	return &Buffer{pool: pool, txns: make(map[types.XID]*txState)}
}

// entriesPerChunk bounds how many entries we pack into one chunk
// before rotating; a real record pair can be a few hundred bytes so
// this keeps chunk occupancy reasonable without tracking byte-precise
// remaining space for the simplified in-process page representation
// used here (chunks hold pointers to cloned records rather than a raw
// byte arena, trading a small constant overhead for simplicity and an
// iteration order that is trivial to verify).
const entriesPerChunk = 512

// Append copies the two records into the tail chunk of xid's buffer,
// acquiring a new chunk and linking it if the tail is full. The
// transaction is auto-created on first sighting.
func (b *Buffer) Append(ctx context.Context, xid types.XID, undo, redo *types.RedoRecord) error {
	b.mu.Lock()
	tx, ok := b.txns[xid]
	if !ok {
		tx = &txState{}
		b.txns[xid] = tx
	}
	b.mu.Unlock()

	if tx.tail == nil || len(tx.tail.entries) >= entriesPerChunk {
		c, err := b.pool.Acquire(ctx, false)
		if err != nil {
			return err
		}
		newChunk := &chunk{backing: c}
		if tx.tail == nil {
			tx.head = newChunk
		} else {
			tx.tail.next = newChunk
		}
		tx.tail = newChunk
	}

	tx.tail.entries = append(tx.tail.entries, entry{pair: types.RecordPair{
		Undo: undo.Clone(),
		Redo: redo.Clone(),
	}})
	tx.count++
	return nil
}

// RollbackLast pops the most recently appended pair for xid if, and
// only if, the tail entry's own Redo opcode recognizes the incoming
// record's Undo opcode as its rollback, per spec.md §4.B and
// _examples/original_source/src/Transaction.cpp's lastRedoLogRecord2
// check against the new record's opcode. redoOp (the incoming
// record's own Redo opcode) plays no part in the legality check: a
// compensating delete's Redo opcode need not match the tail's Undo
// opcode for the rollback to be legal. Otherwise this is a tolerated
// no-op, since redo vectors sometimes appear doubled.
func (b *Buffer) RollbackLast(xid types.XID, undoOp, _ types.OpCode) bool {
	b.mu.Lock()
	tx, ok := b.txns[xid]
	b.mu.Unlock()
	if !ok || tx.tail == nil || len(tx.tail.entries) == 0 {
		return false
	}

	last := tx.tail.entries[len(tx.tail.entries)-1]
	if !isPairedUndo(last.pair.Redo.OpCode, undoOp) {
		return false
	}

	tx.tail.entries = tx.tail.entries[:len(tx.tail.entries)-1]
	tx.count--
	if len(tx.tail.entries) == 0 && tx.tail != tx.head {
		// Walk to find the new tail; chunk count is small in
		// practice so a linear walk is acceptable here.
		cur := tx.head
		for cur.next != tx.tail {
			cur = cur.next
		}
		b.pool.Release(tx.tail.backing)
		cur.next = nil
		tx.tail = cur
	}
	return true
}

// Iterate yields every (undo, redo) pair for xid in append order. It
// is only ever called at flush time (commit), per spec.md §4.B.
func (b *Buffer) Iterate(xid types.XID, fn func(undo, redo *types.RedoRecord) error) error {
	b.mu.Lock()
	tx, ok := b.txns[xid]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	for c := tx.head; c != nil; c = c.next {
		for _, e := range c.entries {
			if err := fn(e.pair.Undo, e.pair.Redo); err != nil {
				return err
			}
		}
	}
	return nil
}

// Count returns the number of entries currently buffered for xid.
func (b *Buffer) Count(xid types.XID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tx, ok := b.txns[xid]; ok {
		return tx.count
	}
	return 0
}

// Drop releases every chunk belonging to xid back to the pool and
// forgets the transaction.
func (b *Buffer) Drop(xid types.XID) {
	b.mu.Lock()
	tx, ok := b.txns[xid]
	if ok {
		delete(b.txns, xid)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	for c := tx.head; c != nil; {
		next := c.next
		b.pool.Release(c.backing)
		c = next
	}
}

// Active reports whether xid currently has a buffer (i.e. a
// Transaction has been created for it and not yet dropped).
func (b *Buffer) Active(xid types.XID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.txns[xid]
	return ok
}
