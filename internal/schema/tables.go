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

package schema

import "github.com/bersler/oraclecdc/internal/types"

// table is a generic SysXxx table: a primary index by rowid plus an
// arbitrary number of named secondary indices by semantic key, plus a
// per-row "touched" bit used for incremental rebuild (spec.md §4.C).
//
// Invariant: every rowid appears exactly once; every secondary index
// entry points at the same row as the rowid index; removing a row
// removes it from every index.
type table[K comparable, V any] struct {
	byRowID map[types.RowId]V
	keyOf   func(V) K
	byKey   map[K]types.RowId

	secondary map[string]*secondaryIndex[V]
	touched   map[types.RowId]bool
}

// secondaryIndex groups rows by a derived, possibly non-unique key.
type secondaryIndex[V any] struct {
	keyOf func(V) string
	byKey map[string]map[types.RowId]V
}

func newTable[K comparable, V any](keyOf func(V) K) *table[K, V] {
	return &table[K, V]{
		byRowID:   make(map[types.RowId]V),
		keyOf:     keyOf,
		byKey:     make(map[K]types.RowId),
		secondary: make(map[string]*secondaryIndex[V]),
		touched:   make(map[types.RowId]bool),
	}
}

func (t *table[K, V]) addSecondary(name string, keyOf func(V) string) {
	t.secondary[name] = &secondaryIndex[V]{keyOf: keyOf, byKey: make(map[string]map[types.RowId]V)}
}

// Insert adds or replaces the row at rowID.
func (t *table[K, V]) Insert(rowID types.RowId, v V) {
	if old, ok := t.byRowID[rowID]; ok {
		t.removeFromIndices(rowID, old)
	}
	t.byRowID[rowID] = v
	t.byKey[t.keyOf(v)] = rowID
	for _, idx := range t.secondary {
		k := idx.keyOf(v)
		bucket, ok := idx.byKey[k]
		if !ok {
			bucket = make(map[types.RowId]V)
			idx.byKey[k] = bucket
		}
		bucket[rowID] = v
	}
	t.touched[rowID] = true
}

// Delete removes the row at rowID from every index.
func (t *table[K, V]) Delete(rowID types.RowId) {
	v, ok := t.byRowID[rowID]
	if !ok {
		return
	}
	t.removeFromIndices(rowID, v)
	delete(t.byRowID, rowID)
	delete(t.touched, rowID)
}

func (t *table[K, V]) removeFromIndices(rowID types.RowId, v V) {
	delete(t.byKey, t.keyOf(v))
	for _, idx := range t.secondary {
		k := idx.keyOf(v)
		if bucket, ok := idx.byKey[k]; ok {
			delete(bucket, rowID)
			if len(bucket) == 0 {
				delete(idx.byKey, k)
			}
		}
	}
}

// Get returns the row stored at rowID.
func (t *table[K, V]) Get(rowID types.RowId) (V, bool) {
	v, ok := t.byRowID[rowID]
	return v, ok
}

// ByKey returns the row stored under the table's primary semantic key.
func (t *table[K, V]) ByKey(k K) (V, bool) {
	rowID, ok := t.byKey[k]
	if !ok {
		var zero V
		return zero, false
	}
	return t.Get(rowID)
}

// BySecondary returns every row matching a value of the named
// secondary index.
func (t *table[K, V]) BySecondary(name, key string) []V {
	idx, ok := t.secondary[name]
	if !ok {
		return nil
	}
	bucket := idx.byKey[key]
	out := make([]V, 0, len(bucket))
	for _, v := range bucket {
		out = append(out, v)
	}
	return out
}

// BySecondaryOne returns an arbitrary single row matching a value of
// the named secondary index, for indices known to be unique in
// practice (e.g. SysTab keyed by obj#).
func (t *table[K, V]) BySecondaryOne(name, key string) (V, bool) {
	matches := t.BySecondary(name, key)
	if len(matches) == 0 {
		var zero V
		return zero, false
	}
	return matches[0], true
}

// Touched reports whether rowID has been mutated since the last
// rebuild pass; it does not clear the bit (ClearTouched does).
func (t *table[K, V]) Touched(rowID types.RowId) bool {
	return t.touched[rowID]
}

// ClearTouched resets every row's touched bit, called after
// rebuildMaps() has processed them.
func (t *table[K, V]) ClearTouched() {
	for k := range t.touched {
		t.touched[k] = false
	}
}

// All iterates every row in the table; order is unspecified.
func (t *table[K, V]) All(fn func(types.RowId, V)) {
	for rowID, v := range t.byRowID {
		fn(rowID, v)
	}
}

// Len returns the number of rows in the table.
func (t *table[K, V]) Len() int { return len(t.byRowID) }
