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

// Package systran implements the System-Transaction engine (spec.md
// §4.G): it interprets DML redo against the SYS.xxx dictionary tables
// mirrored by internal/schema and keeps the schema cache's
// OracleObject materialization in sync.
package systran

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/bersler/oraclecdc/internal/encoder"
	"github.com/bersler/oraclecdc/internal/schema"
	"github.com/bersler/oraclecdc/internal/types"
)

// Kind identifies which SYS.xxx table a tracked object number
// represents; the dictionary bootstrap (out of scope per spec.md §1)
// resolves obj# -> Kind once at startup via RegisterTable.
type Kind int

const (
	KindUser Kind = iota
	KindObj
	KindTab
	KindCol
	KindCCol
	KindCDef
	KindECol
	KindDeferredStg
	KindTabPart
	KindTabSubPart
	KindTabComPart
)

// Engine drives DML against the schema cache's raw dictionary tables,
// per spec.md §4.G. It is the only component other than the cache
// itself permitted to mutate those tables.
type Engine struct {
	cache  *schema.Cache
	tables *schema.Tables
	kinds  map[uint32]Kind
	dirty  bool
}

// New constructs a System-Transaction engine over cache.
func New(cache *schema.Cache) *Engine {
	return &Engine{
		cache:  cache,
		tables: cache.Tables(),
		kinds:  make(map[uint32]Kind),
	}
}

// RegisterTable records that obj# belongs to the named dictionary
// table kind, so that subsequent Apply calls against that obj# are
// recognized as System-Transaction DML rather than ordinary user rows.
func (e *Engine) RegisterTable(obj uint32, kind Kind) {
	e.kinds[obj] = kind
}

// Tracks reports whether obj# is a registered dictionary table, the
// test the Analyzer uses to decide whether a transaction is "system"
// (spec.md §4.E step 2).
func (e *Engine) Tracks(obj uint32) bool {
	_, ok := e.kinds[obj]
	return ok
}

// Apply resolves the target row by rowid (dataObj+bdba+slot) and
// applies the insert/update/delete carried by the (undo, redo) pair to
// the matching SysXxx table, per spec.md §4.G steps 1-4.
func (e *Engine) Apply(undo, redo *types.RedoRecord) error {
	kind, ok := e.kinds[redo.Obj]
	if !ok {
		return nil
	}
	rowID := types.NewRowId(redo.DataObj, redo.Bdba>>22, redo.Bdba&0x3FFFFF, redo.Slot)

	var err error
	switch redo.OpCode {
	case types.OpRowInsert, types.OpRowMultiInsert:
		err = e.applyInsert(kind, rowID, redo)
	case types.OpRowUpdate, types.OpRowOverwrite, types.OpRowForwardingAddr:
		err = e.applyUpdate(kind, rowID, redo)
	case types.OpRowDelete, types.OpRowMultiDelete:
		err = e.applyDelete(kind, rowID)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	e.dirty = true
	return nil
}

// Commit finishes a system transaction: rebuilds OracleObject
// materializations for every table touched since the last commit and
// writes a new schema snapshot tagged at scn, per spec.md §4.G step 5.
func (e *Engine) Commit(scn types.SCN) error {
	if !e.dirty {
		return nil
	}
	if err := e.cache.RebuildMaps(); err != nil {
		return errors.Wrap(err, "systran: rebuilding object maps")
	}
	if err := e.cache.WriteSnapshot(scn, false); err != nil {
		return errors.Wrap(err, "systran: writing schema snapshot")
	}
	e.dirty = false
	return nil
}

// field decodes the redo record's ith field as a column value using
// the same numeric/string decoders the user-facing encoder uses,
// mirroring spec.md §4.G's "value parsing mirrors the user-facing JSON
// encoder's parseNumber/parseString."
func field(rec *types.RedoRecord, i int) []byte {
	if i >= len(rec.FieldLengths) {
		return nil
	}
	return rec.Field(i)
}

func fieldString(rec *types.RedoRecord, i int, charsetID uint32) string {
	return encoder.ParseString(field(rec, i), charsetID)
}

func fieldUint32(rec *types.RedoRecord, i int) (uint32, error) {
	raw := field(rec, i)
	if len(raw) == 0 {
		return 0, nil
	}
	s, err := encoder.ParseNumber(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "systran: decoding numeric field %d", i)
	}
	var v uint32
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, errors.Wrapf(err, "systran: parsing numeric field %d value %q", i, s)
	}
	return v, nil
}

func fieldInt32(rec *types.RedoRecord, i int) (int32, error) {
	v, err := fieldUint32(rec, i)
	return int32(v), err
}

func fieldFlags(rec *types.RedoRecord, i int) [2]uint64 {
	raw := field(rec, i)
	var out [2]uint64
	if len(raw) >= 8 {
		for j := 0; j < 8; j++ {
			out[0] |= uint64(raw[j]) << (8 * j)
		}
	}
	if len(raw) >= 16 {
		for j := 0; j < 8; j++ {
			out[1] |= uint64(raw[8+j]) << (8 * j)
		}
	}
	return out
}

func fieldBool(rec *types.RedoRecord, i int) bool {
	raw := field(rec, i)
	return len(raw) > 0 && raw[0] != 0
}
