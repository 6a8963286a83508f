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

import "fmt"

// RedoRecord is a single self-describing, variable-length record
// decoded from a redo vector (spec.md §3 "Redo log record"). Analyzer
// holds two of these per row change — an undo record (rec1) and a redo
// record (rec2) — copied byte-for-byte into the Transaction Buffer.
type RedoRecord struct {
	OpCode   OpCode
	SCN      SCN
	SubSCN   uint32
	Sequence Seq
	XID      XID

	Obj     uint32
	DataObj uint32
	Bdba    uint32
	Slot    uint16

	ColumnCount int
	Flow        FlowBits

	// Rollback marks a 0504 transaction-commit record that is actually
	// a rollback marker (spec.md §4.E "Rollback handling"); meaningless
	// on any other opcode.
	Rollback bool

	// FieldLengths holds the declared length of each field in the
	// record, matching the "field-length table" described in
	// spec.md §3. Field(i) locates the ith field by summing
	// FieldLengths[:i], each 4-byte aligned.
	FieldLengths []uint16

	// Data is the raw field payload, 4-byte aligned between fields.
	Data []byte
}

// Validate checks the invariants spec.md §3 requires of every redo
// record: the sum of declared field lengths (aligned) equals the
// total payload length, and every field stays within bounds.
func (r *RedoRecord) Validate() error {
	total := 0
	for _, l := range r.FieldLengths {
		total += align4(int(l))
	}
	if total != len(r.Data) {
		return fmt.Errorf("redo record: declared field length %d does not match payload length %d", total, len(r.Data))
	}
	pos := 0
	for i, l := range r.FieldLengths {
		if pos+int(l) > len(r.Data) {
			return fmt.Errorf("redo record: field %d out of bounds (pos=%d len=%d total=%d)", i, pos, l, len(r.Data))
		}
		pos += align4(int(l))
	}
	return nil
}

func align4(n int) int {
	return (n + 3) &^ 3
}

// Field returns the ith field's raw bytes.
func (r *RedoRecord) Field(i int) []byte {
	pos := 0
	for j := 0; j < i; j++ {
		pos += align4(int(r.FieldLengths[j]))
	}
	return r.Data[pos : pos+int(r.FieldLengths[i])]
}

// Clone returns a deep copy of the record, suitable for stashing in a
// Transaction Buffer chunk whose backing array is reused across
// acquisitions.
func (r *RedoRecord) Clone() *RedoRecord {
	out := *r
	out.FieldLengths = append([]uint16(nil), r.FieldLengths...)
	out.Data = append([]byte(nil), r.Data...)
	return &out
}

// RecordPair is the (undo, redo) pair the Analyzer appends to a
// Transaction for every row opcode, matching spec.md §3's
// "(redoLogRecord1, redoLogRecord2)" pairs.
type RecordPair struct {
	Undo *RedoRecord // rec1
	Redo *RedoRecord // rec2
}
