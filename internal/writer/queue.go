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

package writer

import (
	"container/heap"
	"time"

	"github.com/bersler/oraclecdc/internal/types"
)

// inflight is one message the writer has handed to the sink but has
// not yet seen confirmed, per spec.md §4.H step 3-4.
type inflight struct {
	id        uint64
	pageID    uint64
	scn       types.SCN
	sentAt    time.Time
	confirmed bool
	index     int
}

// inflightQueue is the min-heap-ordered in-flight set, popped in
// (scn, id) order as described in spec.md §5's ordering guarantees:
// "Output-buffer message ids are strictly increasing and used as a
// tiebreaker in the writer's min-heap."
type inflightQueue struct {
	items []*inflight
	byID  map[uint64]*inflight
}

func newInflightQueue() *inflightQueue {
	return &inflightQueue{byID: make(map[uint64]*inflight)}
}

func (q *inflightQueue) Len() int { return len(q.items) }

func (q *inflightQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.scn != b.scn {
		return a.scn < b.scn
	}
	return a.id < b.id
}

func (q *inflightQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

func (q *inflightQueue) Push(x any) {
	e := x.(*inflight)
	e.index = len(q.items)
	q.items = append(q.items, e)
}

func (q *inflightQueue) Pop() any {
	old := q.items
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return e
}

// push enqueues a new in-flight message, stamped with the time it was
// handed to the sink so a later confirmation can report latency.
func (q *inflightQueue) push(id, pageID uint64, scn types.SCN, sentAt time.Time) {
	e := &inflight{id: id, pageID: pageID, scn: scn, sentAt: sentAt}
	q.byID[id] = e
	heap.Push(q, e)
}

// confirm marks id confirmed; returns false if id is not tracked
// (already popped, or never enqueued).
func (q *inflightQueue) confirm(id uint64) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	e.confirmed = true
	return true
}

// drainConfirmedPrefix pops every confirmed entry off the head,
// stopping at the first unconfirmed (or empty) head, per spec.md
// §4.H step 4. It returns the popped entries (oldest first, for
// per-message latency reporting), the scn of the last popped entry
// (ok=false if nothing was popped), and the minimum page id still in
// flight (0 if the queue is now empty).
func (q *inflightQueue) drainConfirmedPrefix() (popped []*inflight, lastSCN types.SCN, ok bool, minPageID uint64) {
	for len(q.items) > 0 && q.items[0].confirmed {
		e := heap.Pop(q).(*inflight)
		delete(q.byID, e.id)
		popped = append(popped, e)
		lastSCN, ok = e.scn, true
	}
	if len(q.items) > 0 {
		minPageID = q.items[0].pageID
		for _, e := range q.items {
			if e.pageID < minPageID {
				minPageID = e.pageID
			}
		}
	}
	return popped, lastSCN, ok, minPageID
}
