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

package reader

import (
	"context"

	"github.com/pkg/errors"
)

// Session is the capability an ASM-backed Source needs from the
// underlying SQL*Net connection: open an ASM file by name and read
// fixed-size spans from it. Production deployments back this with
// whatever Oracle client driver they have licensed (this repository's
// dependency set, grounded on the retrieval pack, does not include a
// cgo OCI binding); tests back it with an in-memory fake.
type Session interface {
	OpenASMFile(ctx context.Context, path string) error
	ReadASM(ctx context.Context, p []byte, offset int64) (int, error)
	CloseASMFile() error
}

// asmSource reads redo logs from Oracle ASM via a live SQL*Net
// session, covering reader.type values asm/asm-standby.
//
// keepConnection is forced true: the underlying Session is opened once
// per Reader lifetime and CHECK-state transitions only ask the
// session to switch to a new ASM file name, never tearing down the
// SQL*Net connection itself. This is the other half of the divergence
// recorded in DESIGN.md's Open Question #1.
type asmSource struct {
	session Session
}

// NewASMSource constructs a Source reading redo logs over an
// already-established ASM session.
func NewASMSource(session Session) Source {
	return &asmSource{session: session}
}

func (s *asmSource) Open(ctx context.Context, path string) error {
	if s.session == nil {
		return errors.New("reader: asm source has no session")
	}
	return s.session.OpenASMFile(ctx, path)
}

func (s *asmSource) ReadAt(ctx context.Context, p []byte, offset int64) (int, error) {
	return s.session.ReadASM(ctx, p, offset)
}

func (s *asmSource) Close() error {
	// keepConnection: the SQL*Net session itself is never closed here,
	// only the currently-open ASM file handle.
	return s.session.CloseASMFile()
}

func (s *asmSource) KeepAlive() bool { return true }
