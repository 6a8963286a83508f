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

// Package network implements a types.Sink over a length-prefixed TCP
// stream carrying the hand-framed INFO/START/REDO/CONFIRM control
// protocol described in spec.md §4.H. Only one client connects at a
// time; a disconnect returns the sink to listening, and on reconnect
// every still-unconfirmed message is re-sent from the top (spec.md
// §4.H: "on reconnect, any already-queued (unconfirmed) message is
// re-sent").
package network

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bersler/oraclecdc/internal/types"
)

const maxFrameLen = 64 << 20

// Config names the listen address for one network-type target.
type Config struct {
	Addr string
}

type pendingMsg struct {
	scn     types.SCN
	payload []byte
	sent    bool
}

// Sink delivers framed payloads over a length-prefixed TCP stream.
type Sink struct {
	cfg     Config
	ln      net.Listener
	confirm types.ConfirmFunc

	mu      sync.Mutex
	conn    net.Conn
	w       *bufio.Writer
	pending map[uint64]*pendingMsg
	order   []uint64

	done chan struct{}
}

// New constructs a Sink; the listener binds on Open.
func New(cfg Config) *Sink {
	return &Sink{cfg: cfg, pending: make(map[uint64]*pendingMsg)}
}

var _ types.Sink = (*Sink)(nil)

// Open implements types.Sink: it binds the listener and accepts
// connections in the background, one at a time.
func (s *Sink) Open(_ context.Context, confirm types.ConfirmFunc) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return types.NewNetworkError(errors.Wrap(err, "network sink: listening"))
	}
	s.ln = ln
	s.confirm = confirm
	s.done = make(chan struct{})
	go s.acceptLoop()
	return nil
}

func (s *Sink) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			logrus.WithError(err).Warn("network sink: accept failed")
			return
		}
		s.attach(conn)
	}
}

func (s *Sink) attach(conn net.Conn) {
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn = conn
	s.w = bufio.NewWriter(conn)
	for _, id := range s.order {
		s.pending[id].sent = false
	}
	s.mu.Unlock()

	logrus.WithField("remote", conn.RemoteAddr()).Info("network sink: client connected")
	go s.readLoop(conn)
	s.resendPending()
}

// resendPending re-sends every still-unconfirmed message on a fresh
// connection, oldest first, per spec.md §4.H reconnect semantics.
func (s *Sink) resendPending() {
	s.mu.Lock()
	ids := append([]uint64(nil), s.order...)
	s.mu.Unlock()
	for _, id := range ids {
		s.mu.Lock()
		m, ok := s.pending[id]
		if !ok || m.sent {
			s.mu.Unlock()
			continue
		}
		m.sent = true
		err := s.writeFrame(redoResponse{op: types.ControlRedo, scn: m.scn, id: id, payload: m.payload}.marshal())
		s.mu.Unlock()
		if err != nil {
			logrus.WithError(err).Warn("network sink: resend failed; will retry on next reconnect")
			return
		}
	}
}

func (s *Sink) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			s.disconnect(conn)
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		if n > maxFrameLen {
			logrus.Warn("network sink: oversized frame, dropping connection")
			s.disconnect(conn)
			return
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			s.disconnect(conn)
			return
		}
		req, err := unmarshalRequest(buf)
		if err != nil {
			logrus.WithError(err).Warn("network sink: malformed request frame")
			continue
		}
		s.handleRequest(req)
	}
}

func (s *Sink) disconnect(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == conn {
		s.conn = nil
		s.w = nil
	}
}

func (s *Sink) handleRequest(req redoRequest) {
	switch req.op {
	case types.ControlInfo:
		s.mu.Lock()
		_ = s.writeFrame(redoResponse{op: types.ControlInfo}.marshal())
		s.mu.Unlock()
	case types.ControlStart:
		logrus.WithField("kind", req.startKind).WithField("value", req.startValue).
			Info("network sink: client requested start position (configured start position takes precedence)")
	case types.ControlConfirm:
		s.confirmUpTo(req.confirmSCN)
	case types.ControlRedo:
		// Client signals it is ready to stream; nothing to do, the
		// writer already pushes messages as they become available.
	}
}

func (s *Sink) confirmUpTo(upTo types.SCN) {
	s.mu.Lock()
	var confirmedIDs []uint64
	remaining := s.order[:0]
	for _, id := range s.order {
		m := s.pending[id]
		if m.scn <= upTo {
			confirmedIDs = append(confirmedIDs, id)
			delete(s.pending, id)
			continue
		}
		remaining = append(remaining, id)
	}
	s.order = remaining
	s.mu.Unlock()

	for _, id := range confirmedIDs {
		s.confirm(id, nil)
	}
}

// writeFrame writes a length-prefixed frame; caller must hold s.mu.
func (s *Sink) writeFrame(payload []byte) error {
	if s.w == nil {
		return types.NewNetworkError(errors.New("network sink: no connected client"))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := s.w.Write(lenBuf[:]); err != nil {
		return types.NewNetworkError(errors.Wrap(err, "network sink: writing frame length"))
	}
	if _, err := s.w.Write(payload); err != nil {
		return types.NewNetworkError(errors.Wrap(err, "network sink: writing frame"))
	}
	return s.w.Flush()
}

// Send implements types.Sink. If no client is currently connected the
// message is recorded as pending and re-sent once one attaches.
func (s *Sink) Send(_ context.Context, msg types.Framed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := &pendingMsg{scn: msg.SCN, payload: msg.Payload}
	s.pending[msg.ID] = m
	s.order = append(s.order, msg.ID)

	if s.w == nil {
		return nil
	}
	resp := redoResponse{op: types.ControlRedo, scn: msg.SCN, id: msg.ID, queueID: msg.QueueID, sequence: msg.Sequence, obj: msg.Obj, payload: msg.Payload}
	if err := s.writeFrame(resp.marshal()); err != nil {
		return err
	}
	m.sent = true
	return nil
}

// Close implements types.Sink.
func (s *Sink) Close() error {
	if s.done != nil {
		close(s.done)
	}
	s.mu.Lock()
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
