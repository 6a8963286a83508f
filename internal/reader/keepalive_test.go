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
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSession struct{}

func (fakeSession) OpenASMFile(context.Context, string) error         { return nil }
func (fakeSession) ReadASM(context.Context, []byte, int64) (int, error) { return 0, nil }
func (fakeSession) CloseASMFile() error                                { return nil }

// TestKeepAliveDivergence pins the two Source implementations'
// KeepAlive() values to the literal, intentionally-unreconciled
// values recorded in DESIGN.md's Open Question #1: the file-backed
// source always reopens on CHECK, the ASM-backed source never closes
// its SQL*Net session.
func TestKeepAliveDivergence(t *testing.T) {
	file := NewFileSource()
	asm := NewASMSource(fakeSession{})

	require.False(t, file.KeepAlive())
	require.True(t, asm.KeepAlive())
	require.NotEqual(t, file.KeepAlive(), asm.KeepAlive())
}
