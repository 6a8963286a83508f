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

// Package kafka implements a types.Sink backed by a Kafka (or
// Redpanda-compatible) topic using franz-go. Confirmation is
// asynchronous: Send hands the record to the client's internal batcher
// and returns immediately; the confirm callback fires from franz-go's
// own goroutine once the broker acknowledges the batch, matching
// spec.md §4.H's "some sinks are asynchronous" framing.
package kafka

import (
	"context"
	"strconv"

	"github.com/pkg/errors"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/bersler/oraclecdc/internal/types"
)

// Config names the target topic and broker seed list for one
// kafka-type target, per spec.md §6 target.writer block.
type Config struct {
	Brokers []string
	Topic   string
}

// Sink publishes framed payloads to Config.Topic, keyed by queue id so
// that all messages for one output queue land on the same partition
// and therefore preserve their SCN order.
type Sink struct {
	cfg     Config
	client  *kgo.Client
	confirm types.ConfirmFunc
}

// New constructs a Sink; the underlying client connects on Open.
func New(cfg Config) *Sink {
	return &Sink{cfg: cfg}
}

var _ types.Sink = (*Sink)(nil)

// Open implements types.Sink.
func (s *Sink) Open(_ context.Context, confirm types.ConfirmFunc) error {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(s.cfg.Brokers...),
		kgo.DefaultProduceTopic(s.cfg.Topic),
		kgo.RequestRetries(10),
		kgo.ProducerBatchMaxBytes(8<<20),
	)
	if err != nil {
		return types.NewNetworkError(errors.Wrap(err, "kafka sink: constructing client"))
	}
	s.client = client
	s.confirm = confirm
	return nil
}

// Send implements types.Sink: the record is produced asynchronously;
// msg.ID is confirmed from the produce promise callback, not here.
func (s *Sink) Send(ctx context.Context, msg types.Framed) error {
	record := &kgo.Record{
		Topic: s.cfg.Topic,
		Key:   []byte(strconv.FormatUint(uint64(msg.QueueID), 10)),
		Value: msg.Payload,
	}
	id := msg.ID
	s.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.confirm(id, types.NewNetworkError(errors.Wrap(err, "kafka sink: produce failed")))
			return
		}
		s.confirm(id, nil)
	})
	return nil
}

// Close implements types.Sink.
func (s *Sink) Close() error {
	if s.client == nil {
		return nil
	}
	s.client.Close()
	return nil
}
