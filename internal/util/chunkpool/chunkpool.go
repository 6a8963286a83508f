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

// Package chunkpool implements the fixed-size memory-chunk allocator
// described in spec.md §4.A: it supplies every large buffer in this
// repository (disk-read pages, transaction-buffer pages, output-buffer
// pages) from one min/max-bounded pool, so that no single subsystem
// can starve the others of memory under load.
package chunkpool

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ChunkSize is the fixed size, in bytes, of every chunk handed out by
// a Pool.
const ChunkSize = 1 << 20 // 1 MiB

var (
	poolAllocated = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chunkpool_allocated_chunks",
		Help: "the number of chunks currently allocated from the OS",
	}, []string{"pool"})
	poolHWM = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chunkpool_hwm_chunks",
		Help: "the high-water mark of allocated chunks",
	}, []string{"pool"})
	poolFree = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chunkpool_free_chunks",
		Help: "the number of chunks currently on the free list",
	}, []string{"pool"})
)

// Chunk is a single fixed-size buffer owned by a Pool. Callers treat
// the byte slice as opaque storage; Release returns it to the pool it
// came from.
type Chunk struct {
	Bytes []byte

	supplemental bool
}

// Pool is a bounded, blocking allocator of fixed-size Chunks.
//
// Invariants (spec.md §4.A): min <= allocated <= max; free <= allocated;
// no chunk is ever on two free lists at once; release is idempotent
// only within a single acquire/release pair (double-releasing a chunk
// is a caller bug, not a pool-detected error, matching the source
// engine's contract).
type Pool struct {
	name string
	min  int
	max  int

	// supplementalReserve chunks are held back from the general pool
	// so that disk-read (reader) chunks can never be starved by
	// transaction-buffer growth; see spec.md §4.A "supplemental"
	// acquire parameter.
	supplementalReserve int

	mu struct {
		sync.Mutex
		allocated    int
		supplemental int
		free         []*Chunk
		hwm          int
	}
	cond *sync.Cond
}

// New constructs a Pool bounded to [min,max] chunks, reserving
// supplementalReserve chunks of the max for supplemental (disk-read)
// acquisitions.
func New(name string, min, max, supplementalReserve int) *Pool {
	p := &Pool{name: name, min: min, max: max, supplementalReserve: supplementalReserve}
	p.cond = sync.NewCond(&p.mu.Mutex)
	for i := 0; i < min; i++ {
		p.mu.free = append(p.mu.free, p.newChunk())
		p.mu.allocated++
	}
	p.mu.hwm = p.mu.allocated
	p.reportLocked()
	return p
}

func (p *Pool) newChunk() *Chunk {
	return &Chunk{Bytes: make([]byte, ChunkSize)}
}

// Acquire blocks (cooperatively, via sync.Cond, honoring ctx
// cancellation) until a chunk is available and returns it. When
// supplemental is true, the chunk is drawn from the reserved pool so
// that reader threads can always make progress even if all
// transaction-buffer chunks are in use.
func (p *Pool) Acquire(ctx context.Context, supplemental bool) (*Chunk, error) {
	done := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				p.cond.Broadcast()
			case <-done:
			}
		}()
		defer close(done)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		if len(p.mu.free) > 0 {
			c := p.mu.free[len(p.mu.free)-1]
			p.mu.free = p.mu.free[:len(p.mu.free)-1]
			c.supplemental = supplemental
			if supplemental {
				p.mu.supplemental++
			}
			p.reportLocked()
			return c, nil
		}

		available := p.max - p.mu.allocated
		if !supplemental {
			// Non-supplemental acquisitions must leave the reserve
			// untouched once allocated has reached max minus the
			// reserve.
			nonReserved := p.max - p.supplementalReserve - (p.mu.allocated - p.mu.supplemental)
			if nonReserved <= 0 {
				available = 0
			}
		}

		if available > 0 {
			c := p.newChunk()
			p.mu.allocated++
			if p.mu.allocated > p.mu.hwm {
				p.mu.hwm = p.mu.allocated
			}
			c.supplemental = supplemental
			if supplemental {
				p.mu.supplemental++
			}
			p.reportLocked()
			return c, nil
		}

		p.cond.Wait()
	}
}

// releaseFreeThreshold caps how many idle chunks above min we keep
// before actually giving memory back to the OS (by simply dropping the
// slice capacity so the GC can reclaim it).
const releaseFreeThreshold = 8

// Release returns a chunk to the pool. If the pool holds more than min
// allocated chunks and the free list has grown past
// releaseFreeThreshold, the chunk is dropped instead of recycled so
// that the OS can reclaim the memory.
func (p *Pool) Release(c *Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c.supplemental {
		p.mu.supplemental--
	}
	c.supplemental = false

	if p.mu.allocated > p.min && len(p.mu.free) >= releaseFreeThreshold {
		p.mu.allocated--
		p.reportLocked()
		p.cond.Broadcast()
		return
	}

	p.mu.free = append(p.mu.free, c)
	p.reportLocked()
	p.cond.Broadcast()
}

// Stats reports the pool's current occupancy, matching spec.md §4.A's
// stats() operation.
type Stats struct {
	Allocated    int
	Free         int
	HWM          int
	Supplemental int
}

// Stats returns a snapshot of the pool's occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Allocated:    p.mu.allocated,
		Free:         len(p.mu.free),
		HWM:          p.mu.hwm,
		Supplemental: p.mu.supplemental,
	}
}

func (p *Pool) reportLocked() {
	poolAllocated.WithLabelValues(p.name).Set(float64(p.mu.allocated))
	poolHWM.WithLabelValues(p.name).Set(float64(p.mu.hwm))
	poolFree.WithLabelValues(p.name).Set(float64(len(p.mu.free)))
}

// Diagnostic implements diag.Diagnostic.
func (p *Pool) Diagnostic(_ context.Context) any {
	return p.Stats()
}
