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

// Package outputbuf implements the output-buffer page queue described
// in spec.md §3/§4.F: a singly linked queue of fixed-size pages,
// written only by the Analyzer goroutine and drained only by the
// Writer goroutine, framing messages with a fixed header followed by
// a variable-length payload.
package outputbuf

import (
	"sync"

	"github.com/bersler/oraclecdc/internal/types"
	"github.com/bersler/oraclecdc/internal/util/chunkpool"
	"github.com/bersler/oraclecdc/internal/util/notify"
)

// Header is the fixed-size framing header preceding every message's
// payload, per spec.md §3's "Output-buffer page" bullet.
type Header struct {
	ID       uint64
	QueueID  uint32
	Length   uint32
	SCN      types.SCN
	Sequence types.Seq
	Obj      uint32
	Pos      uint32
	Flags    uint8
}

// FlagAllocated marks a message whose payload was too large to fit in
// the remaining space of the page it started in; Commit places such a
// message at the start of a freshly rotated page. Every message's
// payload is held in its own slice either way.
const FlagAllocated uint8 = 1 << 0

// message is one framed entry: its header plus either an in-page
// payload slice or an out-of-line allocation.
type message struct {
	Header
	payload []byte // always the actual payload bytes, regardless of FlagAllocated
}

// page is one fixed-size buffer in the output queue.
type page struct {
	id      uint64
	backing *chunkpool.Chunk
	used    int
	msgs    []message
	next    *page
}

// Buffer is the single-producer (Analyzer), single-consumer (Writer)
// output queue.
type Buffer struct {
	pool *chunkpool.Pool

	mu struct {
		sync.Mutex
		first, last     *page
		nextPageID      uint64
		nextMessageID   uint64
		unconfirmedLen  int
		cur             *message
	}
	flushBuffer int
	ready       *notify.Var[int]
}

// New constructs an empty Buffer drawing pages from pool; the writer
// is signaled whenever unconfirmedLength exceeds flushBuffer bytes.
func New(pool *chunkpool.Pool, flushBuffer int) *Buffer {
	b := &Buffer{pool: pool, flushBuffer: flushBuffer}
	b.mu.nextMessageID = 1
	b.ready = notify.New(0)
	return b
}

// Ready exposes the writer-wakeup signal: its value changes every time
// commit(force) fires or unconfirmedLength crosses flushBuffer.
func (b *Buffer) Ready() *notify.Var[int] { return b.ready }

func (b *Buffer) rotateLocked() error {
	c, err := b.pool.Acquire(nil, false)
	if err != nil {
		return err
	}
	b.mu.nextPageID++
	p := &page{id: b.mu.nextPageID, backing: c}
	if b.mu.last == nil {
		b.mu.first = p
	} else {
		b.mu.last.next = p
	}
	b.mu.last = p
	return nil
}

// Begin reserves a new message header for obj in the current page,
// rotating to a fresh page first if needed.
func (b *Buffer) Begin(scn types.SCN, sequence types.Seq, obj uint32, queueID uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mu.last == nil {
		if err := b.rotateLocked(); err != nil {
			return err
		}
	}

	b.mu.nextMessageID++
	msg := message{Header: Header{
		ID:       b.mu.nextMessageID,
		QueueID:  queueID,
		SCN:      scn,
		Sequence: sequence,
		Obj:      obj,
		Pos:      uint32(b.mu.last.used),
	}}
	b.mu.cur = &msg
	return nil
}

// Append copies bytes into the in-progress message.
func (b *Buffer) Append(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mu.cur == nil {
		return
	}
	b.mu.cur.payload = append(b.mu.cur.payload, p...)
}

// Commit finalizes the in-progress message: records its length,
// pushes it into the current page (setting FlagAllocated and rotating
// to a fresh page first if it no longer fits), and signals the
// writer if force is set or unconfirmedLength has crossed flushBuffer.
func (b *Buffer) Commit(force bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.mu.cur == nil {
		return nil
	}
	msg := *b.mu.cur
	b.mu.cur = nil
	msg.Length = uint32(len(msg.payload))

	remaining := len(b.mu.last.backing.Bytes) - b.mu.last.used
	if remaining < len(msg.payload) {
		msg.Flags |= FlagAllocated
		if err := b.rotateLocked(); err != nil {
			return err
		}
		msg.Pos = 0
	}
	b.mu.last.used += len(msg.payload)
	b.mu.last.msgs = append(b.mu.last.msgs, msg)
	b.mu.unconfirmedLen += len(msg.payload)

	if force || b.mu.unconfirmedLen > b.flushBuffer {
		b.ready.Update(func(v int) int { return v + 1 })
	}
	return nil
}

// Framed is a fully materialized message ready for the Writer to
// forward to a Sink.
type Framed struct {
	types.Framed
	PageID uint64
}

// Drain returns every message currently queued across every page, in
// page/append order, without mutating the queue (the Writer advances
// firstBuffer separately via Advance once messages are confirmed).
func (b *Buffer) Drain() []Framed {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Framed
	for p := b.mu.first; p != nil; p = p.next {
		for _, m := range p.msgs {
			out = append(out, Framed{
				Framed: types.Framed{
					ID:       m.ID,
					QueueID:  m.QueueID,
					SCN:      m.SCN,
					Sequence: m.Sequence,
					Obj:      m.Obj,
					Payload:  m.payload,
				},
				PageID: p.id,
			})
		}
	}
	return out
}

// Advance releases every page whose id is strictly less than minPageID
// back to the pool, moving firstBuffer forward. Called by the writer
// once every message on those pages has been confirmed.
func (b *Buffer) Advance(minPageID uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for b.mu.first != nil && b.mu.first.id < minPageID {
		old := b.mu.first
		b.mu.first = old.next
		if b.mu.first == nil {
			b.mu.last = nil
		}
		b.pool.Release(old.backing)
	}
}

// UnconfirmedLen reports the number of payload bytes committed but not
// yet reported confirmed via MarkConfirmed.
func (b *Buffer) UnconfirmedLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mu.unconfirmedLen
}

// MarkConfirmed reduces the unconfirmed-length counter by n bytes,
// called by the writer once it has durably delivered that many
// payload bytes.
func (b *Buffer) MarkConfirmed(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mu.unconfirmedLen -= n
	if b.mu.unconfirmedLen < 0 {
		b.mu.unconfirmedLen = 0
	}
}
