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

package file

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/types"
)

func TestSinkWritesOneLinePerMessageAndConfirmsSynchronously(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	s := New(Config{Path: path})

	var confirmed []uint64
	require.NoError(t, s.Open(context.Background(), func(id uint64, err error) {
		require.NoError(t, err)
		confirmed = append(confirmed, id)
	}))

	require.NoError(t, s.Send(context.Background(), types.Framed{ID: 1, Payload: []byte(`{"a":1}`)}))
	require.NoError(t, s.Send(context.Background(), types.Framed{ID: 2, Payload: []byte(`{"a":2}`)}))
	require.NoError(t, s.Close())

	require.Equal(t, []uint64{1, 2}, confirmed)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Equal(t, []string{`{"a":1}`, `{"a":2}`}, lines)
}

func TestSinkAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	s1 := New(Config{Path: path})
	require.NoError(t, s1.Open(context.Background(), func(uint64, error) {}))
	require.NoError(t, s1.Send(context.Background(), types.Framed{ID: 1, Payload: []byte("first")}))
	require.NoError(t, s1.Close())

	s2 := New(Config{Path: path})
	require.NoError(t, s2.Open(context.Background(), func(uint64, error) {}))
	require.NoError(t, s2.Send(context.Background(), types.Framed{ID: 2, Payload: []byte("second")}))
	require.NoError(t, s2.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first\nsecond\n", string(raw))
}
