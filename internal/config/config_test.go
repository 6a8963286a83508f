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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/types"
)

const validConfigJSON = `{
  "version": "1.0",
  "sources": [
    {
      "alias": "ora1",
      "name": "ORCL",
      "reader": {"type": "online", "server": "orcl-scan:1521"},
      "format": {"type": "json"}
    }
  ],
  "targets": [
    {
      "alias": "t1",
      "source": "ora1",
      "writer": {"type": "file", "name": "/tmp/out.jsonl"}
    }
  ]
}`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAndPreflightValidConfig(t *testing.T) {
	path := writeConfig(t, validConfigJSON)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Preflight())
	require.Equal(t, "1.0", cfg.Version)
	require.Equal(t, WriterFile, cfg.Targets[0].Writer.Type)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{"version": `)
	_, err := Load(path)
	require.Error(t, err)
	_, ok := types.IsConfigurationError(err)
	require.True(t, ok)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	path := writeConfig(t, `{"version": "1.0", "sources": [], "targets": [], "bogus-field": true}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestPreflightRejectsMissingSources(t *testing.T) {
	path := writeConfig(t, `{"version": "1.0", "sources": [], "targets": []}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Error(t, cfg.Preflight())
}

func TestPreflightRejectsMutuallyExclusiveStartFields(t *testing.T) {
	cfg := &Config{
		Version: "1.0",
		Sources: []Source{{Alias: "s", Name: "ORCL", Reader: ReaderConfig{Type: ReaderOnline, Server: "x"}, Format: FormatConfig{Type: FormatJSON}}},
		Targets: []Target{{Alias: "t", Source: "s", Writer: WriterConfig{Type: WriterFile, Name: "/tmp/x", StartSCN: ptr(uint64(1)), StartSeq: ptrU32(2)}}},
	}
	err := cfg.Preflight()
	require.Error(t, err)
	_, ok := types.IsConfigurationError(err)
	require.True(t, ok)
}

func TestPreflightRejectsTargetWithUnknownSource(t *testing.T) {
	cfg := &Config{
		Version: "1.0",
		Sources: []Source{{Alias: "s", Name: "ORCL", Reader: ReaderConfig{Type: ReaderOnline, Server: "x"}, Format: FormatConfig{Type: FormatJSON}}},
		Targets: []Target{{Alias: "t", Source: "nope", Writer: WriterConfig{Type: WriterFile, Name: "/tmp/x"}}},
	}
	require.Error(t, cfg.Preflight())
}

func TestLockExclusiveRejectsSecondHolder(t *testing.T) {
	path := writeConfig(t, validConfigJSON)
	f1, err := LockExclusive(path)
	require.NoError(t, err)
	defer f1.Close()

	_, err = LockExclusive(path)
	require.Error(t, err)
}

func ptr(v uint64) *uint64  { return &v }
func ptrU32(v uint32) *uint32 { return &v }
