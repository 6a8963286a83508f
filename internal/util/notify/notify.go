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

// Package notify provides a single-value, multi-reader notification
// variable. It is the generalized form of the `marked notify.Var[hlc.Time]`
// field used by the teacher's resolver (see
// internal/source/cdc/resolver.go): a value that is updated from one
// goroutine and whose readers want to wake up exactly when the value
// changes, without missing updates or busy-polling.
package notify

import "sync"

// Var holds a value of type T along with a channel that is closed and
// replaced every time the value changes. Get returns the current value
// and a channel that will be closed on the next Set.
type Var[T any] struct {
	mu      sync.Mutex
	val     T
	changed chan struct{}
}

// New constructs a Var holding the given initial value.
func New[T any](initial T) *Var[T] {
	return &Var[T]{val: initial, changed: make(chan struct{})}
}

// Get returns the current value and a channel that is closed when the
// value next changes.
func (v *Var[T]) Get() (T, <-chan struct{}) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.changed == nil {
		v.changed = make(chan struct{})
	}
	return v.val, v.changed
}

// Set updates the value and wakes every goroutine currently blocked on
// a channel returned by Get.
func (v *Var[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.val = val
	if v.changed != nil {
		close(v.changed)
	}
	v.changed = make(chan struct{})
}

// Update atomically mutates the value via fn and wakes waiters.
func (v *Var[T]) Update(fn func(T) T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.val = fn(v.val)
	if v.changed != nil {
		close(v.changed)
	}
	v.changed = make(chan struct{})
}
