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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/checkpoint"
	"github.com/bersler/oraclecdc/internal/outputbuf"
	"github.com/bersler/oraclecdc/internal/types"
	"github.com/bersler/oraclecdc/internal/util/chunkpool"
)

// fakeSink confirms every message synchronously, in Send, matching the
// file sink's behavior.
type fakeSink struct {
	sent    []types.Framed
	confirm types.ConfirmFunc
}

func (f *fakeSink) Open(ctx context.Context, confirm types.ConfirmFunc) error {
	f.confirm = confirm
	return nil
}

func (f *fakeSink) Send(ctx context.Context, msg types.Framed) error {
	f.sent = append(f.sent, msg)
	f.confirm(msg.ID, nil)
	return nil
}

func (f *fakeSink) Close() error { return nil }

func newTestWriter(t *testing.T, sink types.Sink) (*Writer, *outputbuf.Buffer) {
	t.Helper()
	pool := chunkpool.New(t.Name(), 2, 8, 0)
	out := outputbuf.New(pool, 1<<20)
	ckpt := checkpoint.New(t.TempDir(), "ORCL")
	cfg := Config{Database: "ORCL", QueueSize: 10, PollInterval: time.Millisecond, CheckpointInterval: 0}
	return New(cfg, out, sink, ckpt), out
}

func appendMessage(t *testing.T, out *outputbuf.Buffer, scn types.SCN) {
	t.Helper()
	require.NoError(t, out.Begin(scn, types.Seq(1), 0, 0))
	out.Append([]byte(`{"payload":[{"op":"c"}]}`))
	require.NoError(t, out.Commit(true))
}

func TestWriterBootstrapWithNoCheckpointUsesConfiguredStart(t *testing.T) {
	w, _ := newTestWriter(t, &fakeSink{})
	w.cfg.StartSCN = types.SCN(500)
	scn, err := w.Bootstrap()
	require.NoError(t, err)
	require.Equal(t, types.SCN(500), scn)
}

func TestWriterBootstrapMismatchedIncarnationFails(t *testing.T) {
	dir := t.TempDir()
	ckpt := checkpoint.New(dir, "ORCL")
	require.NoError(t, ckpt.Write(checkpoint.File{Database: "ORCL", Scn: 10, Resetlogs: 7, Activation: 2}))

	pool := chunkpool.New(t.Name(), 2, 8, 0)
	out := outputbuf.New(pool, 1<<20)
	w := New(Config{Database: "ORCL", Resetlogs: 9, Activation: 2}, out, &fakeSink{}, ckpt)
	_, err := w.Bootstrap()
	require.Error(t, err)
	_, ok := types.IsRedoFormatError(err)
	require.True(t, ok)
}

func TestWriterStreamSendsAndConfirmsAdvancingSCN(t *testing.T) {
	sink := &fakeSink{}
	w, out := newTestWriter(t, sink)
	require.NoError(t, sink.Open(context.Background(), func(id uint64, err error) { w.queue.confirm(id) }))

	appendMessage(t, out, types.SCN(100))
	appendMessage(t, out, types.SCN(200))

	sent := w.stream(context.Background())
	require.True(t, sent)
	require.Len(t, sink.sent, 2)

	w.reapConfirmed()
	require.Equal(t, types.SCN(200), w.ConfirmedSCN())
	require.Equal(t, 0, w.queue.Len())
}

func TestWriterCheckpointWritesOnceConfirmedAdvances(t *testing.T) {
	sink := &fakeSink{}
	w, out := newTestWriter(t, sink)
	require.NoError(t, sink.Open(context.Background(), func(id uint64, err error) { w.queue.confirm(id) }))
	_, err := w.Bootstrap()
	require.NoError(t, err)

	appendMessage(t, out, types.SCN(42))
	w.stream(context.Background())
	w.reapConfirmed()
	require.NoError(t, w.maybeCheckpoint())

	f, found, err := w.ckpt.Load()
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, types.SCN(42), f.Scn)
}
