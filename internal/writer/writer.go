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

// Package writer implements the sink-agnostic writer/checkpoint
// protocol described in spec.md §4.H: it drains the Analyzer's Output
// Buffer, hands messages to a types.Sink, tracks confirmation with an
// in-flight min-heap, and persists a checkpoint once the confirmed SCN
// advances. It generalizes the teacher's internal/source/logical.Loop
// apply/commit/consistent-point cycle (see serial_events.go's
// OnCommit -> loop.setConsistentPoint) from "replicate mutations into
// a SQL target" to "deliver framed messages to an external sink".
package writer

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/bersler/oraclecdc/internal/checkpoint"
	"github.com/bersler/oraclecdc/internal/outputbuf"
	"github.com/bersler/oraclecdc/internal/types"
	"github.com/bersler/oraclecdc/internal/util/stopper"
)

// metricLabels returns the Writer's prometheus.Labels, keyed the way
// metrics.SinkLabels ({"target", "sink"}) requires.
func (w *Writer) metricLabels() prometheus.Labels {
	return prometheus.Labels{"target": w.cfg.Target, "sink": w.cfg.SinkName}
}

// Config bounds one writer's queueing and checkpointing policy, per
// spec.md §6 target.writer block.
type Config struct {
	Database           string
	Target             string
	SinkName           string
	QueueSize          int
	PollInterval       time.Duration
	CheckpointInterval time.Duration
	StartSCN           types.SCN
	Resetlogs          uint32
	Activation         uint32
}

// Writer drains one output buffer and delivers its messages to one
// sink, per spec.md §4.H. Each configured target owns its own Writer
// and its own checkpoint file (one writer goroutine per target, per
// spec.md §5).
type Writer struct {
	cfg  Config
	out  *outputbuf.Buffer
	sink types.Sink
	ckpt *checkpoint.Store

	queue *inflightQueue

	nextToSend       uint64
	maxSentPageID    uint64
	confirmedSCN     types.SCN
	checkpointSCN    types.SCN
	lastCheckpointAt time.Time
}

// New constructs a Writer over out, delivering to sink, checkpointing
// via ckpt.
func New(cfg Config, out *outputbuf.Buffer, sink types.Sink, ckpt *checkpoint.Store) *Writer {
	return &Writer{
		cfg:   cfg,
		out:   out,
		sink:  sink,
		ckpt:  ckpt,
		queue: newInflightQueue(),
	}
}

// Bootstrap implements spec.md §4.H step 1: load the checkpoint file,
// if present, verify its database incarnation, and overwrite the
// configured start position. It returns the SCN the caller's reader
// set should actually start from.
func (w *Writer) Bootstrap() (types.SCN, error) {
	f, found, err := w.ckpt.Load()
	if err != nil {
		return 0, err
	}
	if !found {
		w.confirmedSCN = w.cfg.StartSCN
		w.checkpointSCN = w.cfg.StartSCN
		return w.cfg.StartSCN, nil
	}
	if err := f.Verify(w.cfg.Resetlogs, w.cfg.Activation); err != nil {
		return 0, err
	}
	w.confirmedSCN = f.Scn
	w.checkpointSCN = f.Scn
	return f.Scn, nil
}

// Run is the writer's main loop: stream, queue, confirm, checkpoint,
// repeated until ctx is stopped and the output buffer has drained
// (spec.md §4.H steps 2-6).
func (w *Writer) Run(ctx *stopper.Context) error {
	confirm := func(id uint64, err error) {
		if err != nil {
			logrus.WithError(err).WithField("id", id).Warn("writer: sink reported a delivery failure; message will be retried on reconnect")
			return
		}
		w.queue.confirm(id)
	}
	if err := w.sink.Open(ctx, confirm); err != nil {
		return types.NewRuntimeError(errors.Wrap(err, "writer: opening sink"))
	}
	defer w.sink.Close()

	for {
		sent := w.stream(ctx)
		w.reapConfirmed()
		if err := w.maybeCheckpoint(); err != nil {
			return err
		}

		select {
		case <-ctx.Stopping():
			if w.out.UnconfirmedLen() == 0 && w.queue.Len() == 0 {
				return nil
			}
		case <-ctx.Done():
			return nil
		default:
		}

		if !sent && w.queue.Len() > 0 {
			select {
			case <-time.After(w.cfg.PollInterval):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// stream implements spec.md §4.H step 2-3: walk every message visible
// in the output buffer past nextToSend, sending up to queueSize
// in-flight messages. It returns whether at least one message was
// sent this pass.
func (w *Writer) stream(ctx context.Context) bool {
	sent := false
	for _, f := range w.out.Drain() {
		if f.ID < w.nextToSend {
			continue
		}
		if w.queue.Len() >= w.cfg.QueueSize {
			break
		}
		framed := types.Framed{ID: f.ID, QueueID: f.QueueID, SCN: f.SCN, Sequence: f.Sequence, Obj: f.Obj, Payload: f.Payload}
		if err := w.sink.Send(ctx, framed); err != nil {
			logrus.WithError(err).WithField("id", f.ID).Warn("writer: send failed; will retry next pass")
			writerSendErrors.With(w.metricLabels()).Inc()
			break
		}
		w.queue.push(f.ID, f.PageID, f.SCN, time.Now())
		w.nextToSend = f.ID + 1
		if f.PageID > w.maxSentPageID {
			w.maxSentPageID = f.PageID
		}
		sent = true
		writerSentCount.With(w.metricLabels()).Inc()
	}
	writerQueueDepth.With(w.metricLabels()).Set(float64(w.queue.Len()))
	return sent
}

// reapConfirmed implements spec.md §4.H step 4: pop every confirmed
// entry off the head of the in-flight queue, advance confirmedScn, and
// release any output-buffer page now fully confirmed.
func (w *Writer) reapConfirmed() {
	popped, scn, ok, minPageID := w.queue.drainConfirmedPrefix()
	labels := w.metricLabels()
	for _, e := range popped {
		writerConfirmLatency.With(labels).Observe(time.Since(e.sentAt).Seconds())
	}
	if ok && scn > w.confirmedSCN {
		w.confirmedSCN = scn
		writerConfirmedSCN.With(labels).Set(float64(w.confirmedSCN))
	}
	writerQueueDepth.With(labels).Set(float64(w.queue.Len()))
	if minPageID > 0 {
		w.out.Advance(minPageID)
	} else if w.queue.Len() == 0 && w.maxSentPageID > 0 {
		w.out.Advance(w.maxSentPageID + 1)
	}
}

// maybeCheckpoint implements spec.md §4.H step 5.
func (w *Writer) maybeCheckpoint() error {
	if w.confirmedSCN == w.checkpointSCN {
		return nil
	}
	if !w.lastCheckpointAt.IsZero() && time.Since(w.lastCheckpointAt) < w.cfg.CheckpointInterval {
		return nil
	}
	if err := w.ckpt.Write(checkpoint.File{
		Database:   w.cfg.Database,
		Scn:        w.confirmedSCN,
		Resetlogs:  w.cfg.Resetlogs,
		Activation: w.cfg.Activation,
	}); err != nil {
		return types.NewRuntimeError(errors.Wrap(err, "writer: writing checkpoint"))
	}
	w.checkpointSCN = w.confirmedSCN
	w.lastCheckpointAt = time.Now()
	return nil
}

// ConfirmedSCN reports the writer's current confirmed watermark.
func (w *Writer) ConfirmedSCN() types.SCN { return w.confirmedSCN }

// Diagnostic implements diag.Diagnostic.
func (w *Writer) Diagnostic(context.Context) any {
	return map[string]any{
		"target":        w.cfg.Target,
		"sink":          w.cfg.SinkName,
		"confirmedScn":  w.confirmedSCN,
		"checkpointScn": w.checkpointSCN,
		"queueDepth":    w.queue.Len(),
	}
}
