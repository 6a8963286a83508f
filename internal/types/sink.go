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

package types

import "context"

// Framed is a single outgoing message, ready to be delivered to a
// Sink: an encoded payload plus the metadata the Writer needs to track
// confirmation and ordering.
type Framed struct {
	ID       uint64
	QueueID  uint32
	SCN      SCN
	Sequence Seq
	Obj      uint32
	Payload  []byte
}

// ConfirmFunc is invoked by a Sink, possibly from another goroutine,
// once a Framed message has been durably accepted by the downstream
// system. err is non-nil if the sink determined the message will
// never be delivered (callers should treat this the same as a
// disconnect: the message must be resent on the next attempt).
type ConfirmFunc func(id uint64, err error)

// Sink is the capability interface every writer target implements: a
// generalization of the teacher's Appliers/Stagers/Watchers factory
// interfaces (internal/types/types.go) from "apply rows to a SQL
// table" to "deliver framed messages to an external system". Concrete
// implementations live under internal/writer/sink/{file,kafka,zeromq,network}.
type Sink interface {
	// Open prepares the sink for use; it may block until a downstream
	// connection is established. confirm is called (possibly
	// asynchronously, possibly from another goroutine) as messages
	// are acknowledged.
	Open(ctx context.Context, confirm ConfirmFunc) error

	// Send delivers one message. Implementations that are
	// synchronous (e.g. the file sink) may call confirm before
	// returning; asynchronous implementations (Kafka) return once the
	// send has been accepted by the client library and call confirm
	// later.
	Send(ctx context.Context, msg Framed) error

	// Close releases any resources held by the sink.
	Close() error
}

// ControlOp enumerates the network sink's control-protocol operations
// (spec.md §4.H): INFO, START, REDO, CONFIRM.
type ControlOp int

const (
	ControlInfo ControlOp = iota
	ControlStart
	ControlRedo
	ControlConfirm
)

// StartKind enumerates the mutually exclusive ways a client may
// request a start position in a START control message.
type StartKind int

const (
	StartSCN StartKind = iota
	StartSeq
	StartTime
	StartTimeRelative
)
