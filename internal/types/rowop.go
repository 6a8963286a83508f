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

import (
	"time"

	"github.com/bersler/oraclecdc/internal/util/ident"
)

// RowOpKind enumerates the logical operations that flow from the
// Analyzer to the Output Buffer: a generalized form of the teacher's
// Mutation.IsDelete() boolean, since this system distinguishes insert,
// update, delete, DDL, and the begin/commit/checkpoint framing markers
// explicitly rather than inferring delete from an empty payload.
type RowOpKind uint8

const (
	OpInsert RowOpKind = iota
	OpUpdate
	OpDelete
	OpDDL
	OpBegin
	OpCommit
	OpCheckpoint
)

func (k RowOpKind) String() string {
	switch k {
	case OpInsert:
		return "c"
	case OpUpdate:
		return "u"
	case OpDelete:
		return "d"
	case OpDDL:
		return "ddl"
	case OpBegin:
		return "begin"
	case OpCommit:
		return "commit"
	case OpCheckpoint:
		return "chkpt"
	default:
		return "?"
	}
}

// Value is a single decoded column value: the raw on-disk bytes plus
// the type# used to decode them, and (once decoded) a string
// representation suitable for the JSON payload encoder. Keeping both
// forms lets the encoder defer decoding supplemental columns that are
// never actually serialized (e.g. a before-image column identical to
// the after-image).
type Value struct {
	Raw     []byte
	TypeNum int32
	// Decoded is the Oracle TO_CHAR-equivalent decoding of Raw,
	// populated by the encoder's number/string decoders. Nil means
	// "not yet decoded".
	Decoded *string
	// Null marks an Oracle NULL (as opposed to a zero-length raw
	// value, which Oracle treats identically to NULL for VARCHAR2 but
	// not for NUMBER).
	Null bool
}

// ColumnSet maps a column's internal column number (SegCol#) to a
// decoded Value.
type ColumnSet map[int32]Value

// RowOp is one logical row-level change, ready to be framed and handed
// to the Output Buffer. It is the unit the Analyzer produces and the
// Writer/encoder consumes, generalizing the teacher's types.Mutation to
// carry full before/after/supplemental images instead of opaque JSON.
type RowOp struct {
	Kind RowOpKind

	SCN      SCN
	SubSCN   uint32
	Time     time.Time
	Sequence Seq
	XID      XID

	Obj     uint32
	DataObj uint32
	Owner   ident.Ident
	Table   ident.Ident
	Row     RowId

	Before     ColumnSet
	BeforeSupp ColumnSet
	After      ColumnSet
	AfterSupp  ColumnSet

	// DDLText carries the opaque DDL statement text for OpDDL rows;
	// this system never parses it (spec.md Non-goals).
	DDLText string

	// MessageID is not set by any component in this repository. The
	// Output Buffer numbers each framed message in its own Header.ID,
	// and that id is the tiebreaker used by the Writer's in-flight
	// min-heap (spec.md §5 ordering guarantees).
	MessageID uint64
}

// MergedAfter concatenates After and AfterSupp, with After taking
// priority on conflicts — used when assembling the final column map
// for a row-chain's logical operation.
func (r *RowOp) MergedAfter() ColumnSet {
	return merge(r.AfterSupp, r.After)
}

// MergedBefore concatenates Before and BeforeSupp, with Before taking
// priority on conflicts.
func (r *RowOp) MergedBefore() ColumnSet {
	return merge(r.BeforeSupp, r.Before)
}

func merge(base, override ColumnSet) ColumnSet {
	if len(base) == 0 {
		return override
	}
	out := make(ColumnSet, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
