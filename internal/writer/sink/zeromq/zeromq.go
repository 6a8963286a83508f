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

// Package zeromq implements a types.Sink over a ZeroMQ PAIR socket
// (spec.md §4.H, §6 "a ZeroMQ pair socket"), using the pure-Go
// go-zeromq/zmq4 client so the binary stays cgo-free.
//
// The wire framing is deliberately minimal: each outgoing frame is the
// encoded message payload, unmodified; each incoming frame is an
// 8-byte big-endian message id the peer has durably consumed,
// confirming every outstanding id up to and including it (mirroring
// the network sink's bulk CONFIRM{scn} semantics, but keyed by id
// since the PAIR socket has no separate control channel).
package zeromq

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/go-zeromq/zmq4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/bersler/oraclecdc/internal/types"
)

// Config names the PAIR socket endpoint for one zeromq-type target.
type Config struct {
	// URI is either a "tcp://host:port" dial address or a
	// "tcp://*:port" bind address; Listen is true for the latter.
	URI    string
	Listen bool
}

// Sink delivers framed payloads over a ZeroMQ PAIR socket.
type Sink struct {
	cfg  Config
	sock zmq4.Socket

	mu      sync.Mutex
	pending map[uint64]struct{}
	confirm types.ConfirmFunc

	done chan struct{}
}

// New constructs a Sink; the socket connects on Open.
func New(cfg Config) *Sink {
	return &Sink{pending: make(map[uint64]struct{}), cfg: cfg}
}

var _ types.Sink = (*Sink)(nil)

// Open implements types.Sink.
func (s *Sink) Open(ctx context.Context, confirm types.ConfirmFunc) error {
	s.sock = zmq4.NewPair(ctx)
	var err error
	if s.cfg.Listen {
		err = s.sock.Listen(s.cfg.URI)
	} else {
		err = s.sock.Dial(s.cfg.URI)
	}
	if err != nil {
		return types.NewNetworkError(errors.Wrap(err, "zeromq sink: opening pair socket"))
	}
	s.confirm = confirm
	s.done = make(chan struct{})
	go s.recvLoop()
	return nil
}

// recvLoop reads confirm frames from the peer until the socket closes.
func (s *Sink) recvLoop() {
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			logrus.WithError(err).Warn("zeromq sink: receive failed; confirmations may stall until reconnect")
			return
		}
		if len(msg.Frames) != 1 || len(msg.Frames[0]) != 8 {
			logrus.Warn("zeromq sink: dropping malformed confirm frame")
			continue
		}
		upTo := binary.BigEndian.Uint64(msg.Frames[0])
		s.confirmUpTo(upTo)
	}
}

func (s *Sink) confirmUpTo(upTo uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.pending {
		if id <= upTo {
			delete(s.pending, id)
			s.confirm(id, nil)
		}
	}
}

// Send implements types.Sink.
func (s *Sink) Send(_ context.Context, msg types.Framed) error {
	s.mu.Lock()
	s.pending[msg.ID] = struct{}{}
	s.mu.Unlock()

	if err := s.sock.Send(zmq4.NewMsg(msg.Payload)); err != nil {
		return types.NewNetworkError(errors.Wrap(err, "zeromq sink: send failed"))
	}
	return nil
}

// Close implements types.Sink.
func (s *Sink) Close() error {
	if s.done != nil {
		close(s.done)
	}
	if s.sock == nil {
		return nil
	}
	return s.sock.Close()
}
