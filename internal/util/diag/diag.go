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

// Package diag provides a process-wide registry of self-reporting
// components, generalized from the teacher's diag.Diagnostics (see
// diag.New(ctx) / diags.Register(name, obj) call sites in
// internal/source/logical/provider.go and
// internal/sinktest/all/fixture.go). Each registered component can
// report a JSON-serializable health snapshot; this backs an
// operational /debug/diagnostics endpoint without coupling every
// component to an HTTP dependency.
package diag

import (
	"context"
	"sync"
)

// Diagnostic is implemented by any component that wants to report
// structured health information.
type Diagnostic interface {
	// Diagnostic returns a JSON-serializable snapshot of the
	// component's state.
	Diagnostic(ctx context.Context) any
}

// Diagnostics is a registry of named Diagnostic implementations.
type Diagnostics struct {
	mu   sync.Mutex
	regs map[string]Diagnostic
}

// New constructs an empty registry. The returned cleanup function
// clears the registry; it exists to mirror the teacher's
// `diagnostics, cleanup := diag.New(ctx)` provider shape used
// throughout the wire-assembled Start functions.
func New(_ context.Context) (*Diagnostics, func()) {
	d := &Diagnostics{regs: make(map[string]Diagnostic)}
	return d, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.regs = nil
	}
}

// Register adds a named Diagnostic. It is an error to reuse a name.
func (d *Diagnostics) Register(name string, diag Diagnostic) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.regs == nil {
		d.regs = make(map[string]Diagnostic)
	}
	if _, found := d.regs[name]; found {
		return duplicateNameError(name)
	}
	d.regs[name] = diag
	return nil
}

type duplicateNameError string

func (e duplicateNameError) Error() string {
	return "diagnostic already registered: " + string(e)
}

// Snapshot returns a name->report map for every registered component.
func (d *Diagnostics) Snapshot(ctx context.Context) map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	ret := make(map[string]any, len(d.regs))
	for name, diag := range d.regs {
		ret[name] = diag.Diagnostic(ctx)
	}
	return ret
}
