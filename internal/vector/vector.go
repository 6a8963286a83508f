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

// Package vector decodes the self-describing redo-vector records
// described in spec.md §3 ("Redo log record") out of the logical byte
// stream internal/reader exposes once block headers have been
// stripped. It also implements the undo/redo pairing step of spec.md
// §4.E ("every row opcode is split into a (rec1, rec2) pair"), handing
// each pair to the analyzer in arrival order.
package vector

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/bersler/oraclecdc/internal/types"
)

// ErrIncomplete is returned by Next when buf does not yet hold a full
// record; the caller should retry once more bytes have arrived,
// starting again at the same offset.
var ErrIncomplete = errors.New("vector: incomplete record")

// headerLen is the fixed portion of every encoded record, before its
// field-length table: totalLength(2) + opcode(2) + scn(8) + subscn(4) +
// sequence(4) + xid(8) + obj(4) + dataObj(4) + bdba(4) + slot(2) +
// fieldCount(2) + flow(1) + rollback(1) + columnCount(2) = 48 bytes.
const headerLen = 48

func align4(n int) int { return (n + 3) &^ 3 }

// Next decodes one RedoRecord from the head of buf. It returns the
// record and the number of bytes consumed, or ErrIncomplete if buf
// does not yet contain a complete record (callers must not advance
// their read position in that case).
func Next(buf []byte, order binary.ByteOrder) (*types.RedoRecord, int, error) {
	if len(buf) < headerLen {
		return nil, 0, ErrIncomplete
	}

	totalLength := int(order.Uint16(buf[0:2]))
	if totalLength < headerLen {
		return nil, 0, types.NewRedoFormatError(errors.Errorf("vector: declared record length %d shorter than header", totalLength))
	}
	if len(buf) < totalLength {
		return nil, 0, ErrIncomplete
	}

	rec := &types.RedoRecord{
		OpCode:   types.OpCode(order.Uint16(buf[2:4])),
		SCN:      types.SCN(order.Uint64(buf[4:12])),
		SubSCN:   order.Uint32(buf[12:16]),
		Sequence: types.Seq(order.Uint32(buf[16:20])),
		XID:      types.NewXID(order.Uint16(buf[20:22]), order.Uint16(buf[22:24]), order.Uint32(buf[24:28])),
		Obj:      order.Uint32(buf[28:32]),
		DataObj:  order.Uint32(buf[32:36]),
		Bdba:     order.Uint32(buf[36:40]),
		Slot:     order.Uint16(buf[40:42]),
	}
	fieldCount := int(order.Uint16(buf[42:44]))
	rec.Flow = types.FlowBits(buf[44])
	rec.Rollback = buf[45] != 0
	rec.ColumnCount = int(order.Uint16(buf[46:48]))

	pos := headerLen
	fieldTableLen := align4(fieldCount * 2)
	if pos+fieldTableLen > totalLength {
		return nil, 0, types.NewRedoFormatError(errors.New("vector: field-length table overruns declared record length"))
	}
	rec.FieldLengths = make([]uint16, fieldCount)
	for i := 0; i < fieldCount; i++ {
		rec.FieldLengths[i] = order.Uint16(buf[pos+i*2 : pos+i*2+2])
	}
	pos += fieldTableLen

	rec.Data = append([]byte(nil), buf[pos:totalLength]...)

	if err := rec.Validate(); err != nil {
		return nil, 0, types.NewRedoFormatError(err)
	}
	return rec, totalLength, nil
}

// Encode renders rec back onto the wire, the inverse of Next. Used by
// tests and by anything synthesizing redo streams (e.g. chaos
// fixtures).
func Encode(rec *types.RedoRecord, order binary.ByteOrder) []byte {
	fieldTableLen := align4(len(rec.FieldLengths) * 2)
	totalLength := headerLen + fieldTableLen + len(rec.Data)
	buf := make([]byte, totalLength)

	order.PutUint16(buf[0:2], uint16(totalLength))
	order.PutUint16(buf[2:4], uint16(rec.OpCode))
	order.PutUint64(buf[4:12], uint64(rec.SCN))
	order.PutUint32(buf[12:16], rec.SubSCN)
	order.PutUint32(buf[16:20], uint32(rec.Sequence))
	order.PutUint16(buf[20:22], rec.XID.Usn)
	order.PutUint16(buf[22:24], rec.XID.Slot)
	order.PutUint32(buf[24:28], rec.XID.Sequence)
	order.PutUint32(buf[28:32], rec.Obj)
	order.PutUint32(buf[32:36], rec.DataObj)
	order.PutUint32(buf[36:40], rec.Bdba)
	order.PutUint16(buf[40:42], rec.Slot)
	order.PutUint16(buf[42:44], uint16(len(rec.FieldLengths)))
	buf[44] = byte(rec.Flow)
	if rec.Rollback {
		buf[45] = 1
	}
	order.PutUint16(buf[46:48], uint16(rec.ColumnCount))

	pos := headerLen
	for i, l := range rec.FieldLengths {
		order.PutUint16(buf[pos+i*2:pos+i*2+2], l)
	}
	pos += fieldTableLen
	copy(buf[pos:], rec.Data)
	return buf
}

// Stream incrementally decodes a growing byte buffer into RedoRecords
// and pairs each with the most recently observed single-undo (0501)
// record, per spec.md §4.E step 4's (rec1, rec2) grouping.
type Stream struct {
	order       binary.ByteOrder
	pendingUndo *types.RedoRecord
}

// NewStream constructs a Stream that decodes multi-byte fields using
// order (the owning redo file's declared endianness).
func NewStream(order binary.ByteOrder) *Stream {
	return &Stream{order: order}
}

// Consumer is called once per decoded record, paired with whatever
// undo record preceded it (nil if none has been seen yet).
type Consumer func(undo, redo *types.RedoRecord) error

// Feed decodes every complete record available at the front of buf,
// invoking consume for each in arrival order, and returns how many
// bytes were consumed (always a whole number of records, possibly
// zero). The caller advances its source past exactly that many bytes.
func (s *Stream) Feed(buf []byte, consume Consumer) (int, error) {
	total := 0
	for {
		rec, n, err := Next(buf[total:], s.order)
		if err == ErrIncomplete {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if err := consume(s.pendingUndo, rec); err != nil {
			return total, err
		}
		if rec.OpCode == types.OpUndo {
			s.pendingUndo = rec
		}
		total += n
	}
}
