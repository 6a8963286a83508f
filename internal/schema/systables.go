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

// Package schema implements the in-memory dictionary cache described in
// spec.md §3 "Schema cache" and §4.C: a set of tables mirroring
// Oracle's SYS.* dictionary tables, each indexed by rowid plus one or
// more semantic secondary keys, materialized into OracleObject values
// for fast per-DML lookup.
package schema

import "github.com/bersler/oraclecdc/internal/types"

// SysUser mirrors SYS.USER$.
type SysUser struct {
	RowID  types.RowId
	UserNo uint32
	Name   string
	// Spare1 is a 128-bit flag field; it is decoded and stored but
	// not inspected by this package.
	Spare1 [2]uint64
}

// SysObj mirrors SYS.OBJ$.
type SysObj struct {
	RowID   types.RowId
	Owner   uint32
	Obj     uint32
	DataObj uint32
	Type    uint32
	Name    string
	Flags   [2]uint64
	Single  bool
}

func (o SysObj) isTemporary() bool { return o.Flags[0]&temporaryFlag != 0 }

const temporaryFlag = 1 << 5

// SysTab mirrors SYS.TAB$.
type SysTab struct {
	RowID   types.RowId
	Obj     uint32
	DataObj uint32
	Ts      uint32
	File    uint32
	Block   uint32
	CluCols uint32
	Flags   [2]uint64
	// Property carries the IOT/nested/compression bits this cache
	// cares about (spec.md §4.C materialization rules).
	Property [2]uint64
}

const (
	tabFlagBinary = 1 << 0
	tabFlagIOT    = 1 << 1
	tabFlagNested = 1 << 2
)

func (t SysTab) isBinary() bool { return t.Flags[0]&tabFlagBinary != 0 }
func (t SysTab) isIOT() bool    { return t.Flags[0]&tabFlagIOT != 0 }
func (t SysTab) isNested() bool { return t.Flags[0]&tabFlagNested != 0 }

const propertyInitialCompressed = 1 << 0

func (t SysTab) isInitialCompressed() bool { return t.Property[0]&propertyInitialCompressed != 0 }

// SysCol mirrors SYS.COL$.
type SysCol struct {
	RowID       types.RowId
	Obj         uint32
	Col         int32
	SegCol      int32
	IntCol      int32
	Name        string
	Type        int32
	Length      uint32
	Precision   int32
	Scale       int32
	CharsetForm uint32
	CharsetID   uint32
	Null        bool
	Property    [2]uint64
}

// SysCCol mirrors SYS.CCOL$ (constraint columns).
type SysCCol struct {
	RowID  types.RowId
	Con    uint32
	IntCol int32
	Obj    uint32
	Spare1 [2]uint64
}

// SysCDef constraint type values relevant to materialization.
const (
	ConstraintPrimaryKey      = 2
	ConstraintSuppLogPK       = 12
	ConstraintSuppLogAll      = 14
	ConstraintSuppLogForeign  = 17
)

// SysCDef mirrors SYS.CDEF$ (constraint definitions).
type SysCDef struct {
	RowID types.RowId
	Con   uint32
	Obj   uint32
	Type  uint32
}

// SysECol mirrors SYS.ECOL$ (extended/hidden columns for guard
// columns used by virtual/invisible column tracking).
type SysECol struct {
	RowID   types.RowId
	TabObj  uint32
	ColNum  int32
	GuardID int32
}

// SysDeferredStg mirrors SYS.DEFERRED_STG$ (compression flags stored
// separately from TAB$ for some releases).
type SysDeferredStg struct {
	RowID    types.RowId
	Obj      uint32
	FlagsStg [2]uint64
}

// SysTabPart mirrors SYS.TABPART$.
type SysTabPart struct {
	RowID   types.RowId
	Obj     uint32
	DataObj uint32
	Bo      uint32
}

// SysTabComPart mirrors SYS.TABCOMPART$.
type SysTabComPart struct {
	RowID   types.RowId
	Obj     uint32
	DataObj uint32
	Bo      uint32
}

// SysTabSubPart mirrors SYS.TABSUBPART$; PObj points at the
// SysTabComPart row, not directly at the base table.
type SysTabSubPart struct {
	RowID   types.RowId
	Obj     uint32
	DataObj uint32
	PObj    uint32
}
