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

package network

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bersler/oraclecdc/internal/types"
)

// redoRequest is the client-to-server control message (spec.md §4.H:
// "Protobuf RedoRequest/RedoResponse"). It carries INFO, START and
// CONFIRM; hand-framed with protowire rather than generated from a
// .proto so the build needs no protoc step.
//
// Field numbers:
//  1 op          varint (types.ControlOp)
//  2 startKind   varint (types.StartKind), set on ControlStart
//  3 startValue  varint, scn/seq/unix-time depending on startKind
//  4 confirmSCN  varint, set on ControlConfirm
type redoRequest struct {
	op         types.ControlOp
	startKind  types.StartKind
	startValue uint64
	confirmSCN types.SCN
}

func (r redoRequest) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.op))
	if r.op == types.ControlStart {
		b = protowire.AppendTag(b, 2, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.startKind))
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, r.startValue)
	}
	if r.op == types.ControlConfirm {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.confirmSCN))
	}
	return b
}

func unmarshalRequest(b []byte) (redoRequest, error) {
	var r redoRequest
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, errors.Wrap(protowire.ParseError(n), "network sink: decoding request tag")
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "network sink: decoding op")
			}
			r.op = types.ControlOp(v)
			b = b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "network sink: decoding start kind")
			}
			r.startKind = types.StartKind(v)
			b = b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "network sink: decoding start value")
			}
			r.startValue = v
			b = b[n:]
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "network sink: decoding confirm scn")
			}
			r.confirmSCN = types.SCN(v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "network sink: skipping unknown field")
			}
			b = b[n:]
		}
	}
	return r, nil
}

// redoResponse is the server-to-client message: either an INFO
// acknowledgement or one framed REDO payload. The sink answers INFO
// with op alone; it does not track a confirmed SCN, so the scn field of
// an INFO reply is zero.
//
// Field numbers:
//  1 op       varint (types.ControlOp): ControlInfo or ControlRedo
//  2 scn      varint, this message's scn (REDO); zero in the sink's INFO reply
//  3 id       varint, message id (REDO only, echoed back in CONFIRM bookkeeping)
//  4 queueID  varint
//  5 sequence varint
//  6 obj      varint
//  7 payload  bytes
type redoResponse struct {
	op       types.ControlOp
	scn      types.SCN
	id       uint64
	queueID  uint32
	sequence types.Seq
	obj      uint32
	payload  []byte
}

func (r redoResponse) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.op))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.scn))
	if r.op == types.ControlRedo {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, r.id)
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.queueID))
		b = protowire.AppendTag(b, 5, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.sequence))
		b = protowire.AppendTag(b, 6, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(r.obj))
		b = protowire.AppendTag(b, 7, protowire.BytesType)
		b = protowire.AppendBytes(b, r.payload)
	}
	return b
}

func unmarshalResponse(b []byte) (redoResponse, error) {
	var r redoResponse
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return r, errors.Wrap(protowire.ParseError(n), "network sink: decoding response tag")
		}
		b = b[n:]
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.op, b = types.ControlOp(v), b[n:]
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.scn, b = types.SCN(v), b[n:]
		case num == 3 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.id, b = v, b[n:]
		case num == 4 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.queueID, b = uint32(v), b[n:]
		case num == 5 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.sequence, b = types.Seq(v), b[n:]
		case num == 6 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			r.obj, b = uint32(v), b[n:]
		case num == 7 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			r.payload, b = append([]byte(nil), v...), b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return r, errors.Wrap(protowire.ParseError(n), "network sink: skipping unknown field")
			}
			b = b[n:]
		}
	}
	return r, nil
}
