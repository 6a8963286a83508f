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

package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/types"
)

func TestLoadMissingCheckpointReturnsNotFound(t *testing.T) {
	s := New(t.TempDir(), "ORCL")
	_, found, err := s.Load()
	require.NoError(t, err)
	require.False(t, found)
}

func TestWriteThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "ORCL")
	want := File{Database: "ORCL", Scn: types.SCN(12345), Resetlogs: 7, Activation: 2}
	require.NoError(t, s.Write(want))

	got, found, err := s.Load()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, want, got)
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "ORCL")
	require.NoError(t, s.Write(File{Database: "ORCL", Scn: types.SCN(1)}))
	_, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	matches, _ := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.Empty(t, matches)
}

func TestVerifyMismatchReturnsRedoFormatError(t *testing.T) {
	f := File{Database: "ORCL", Scn: types.SCN(1), Resetlogs: 7, Activation: 2}
	err := f.Verify(7, 2)
	require.NoError(t, err)

	err = f.Verify(8, 2)
	require.Error(t, err)
	_, ok := types.IsRedoFormatError(err)
	require.True(t, ok)
}
