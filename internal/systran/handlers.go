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

package systran

import (
	"fmt"

	"github.com/bersler/oraclecdc/internal/schema"
	"github.com/bersler/oraclecdc/internal/types"
)

// Field positions below follow each SysXxx struct's declaration order
// in internal/schema/systables.go (RowID excluded, since it is derived
// from the physical row address rather than carried as a column). This
// is the same dense, in-order simplification internal/analyzer's
// decodeColumns documents for user rows: real Oracle kdo vectors carry
// an explicit column-presence bitmap this cache does not reconstruct.

func (e *Engine) applyInsert(kind Kind, rowID types.RowId, redo *types.RedoRecord) error {
	switch kind {
	case KindUser:
		row := schema.SysUser{RowID: rowID, Name: fieldString(redo, 1, 0), Spare1: fieldFlags(redo, 2)}
		userNo, err := fieldUint32(redo, 0)
		if err != nil {
			return err
		}
		row.UserNo = userNo
		e.tables.Users.Insert(rowID, row)
	case KindObj:
		row, err := decodeSysObj(rowID, redo)
		if err != nil {
			return err
		}
		e.tables.Objs.Insert(rowID, row)
	case KindTab:
		row, err := decodeSysTab(rowID, redo)
		if err != nil {
			return err
		}
		e.tables.Tabs.Insert(rowID, row)
	case KindCol:
		row, err := decodeSysCol(rowID, redo)
		if err != nil {
			return err
		}
		e.tables.Cols.Insert(rowID, row)
	case KindCCol:
		row, err := decodeSysCCol(rowID, redo)
		if err != nil {
			return err
		}
		e.tables.CCols.Insert(rowID, row)
	case KindCDef:
		row, err := decodeSysCDef(rowID, redo)
		if err != nil {
			return err
		}
		e.tables.CDefs.Insert(rowID, row)
	case KindECol:
		row, err := decodeSysECol(rowID, redo)
		if err != nil {
			return err
		}
		e.tables.ECols.Insert(rowID, row)
	case KindDeferredStg:
		obj, err := fieldUint32(redo, 0)
		if err != nil {
			return err
		}
		e.tables.DeferredStg.Insert(rowID, schema.SysDeferredStg{RowID: rowID, Obj: obj, FlagsStg: fieldFlags(redo, 1)})
	case KindTabPart:
		row, err := decodePart(rowID, redo)
		if err != nil {
			return err
		}
		e.tables.TabParts.Insert(rowID, schema.SysTabPart(row))
	case KindTabSubPart:
		row, err := decodePart(rowID, redo)
		if err != nil {
			return err
		}
		e.tables.TabSubParts.Insert(rowID, schema.SysTabSubPart{RowID: rowID, Obj: row.Obj, DataObj: row.DataObj, PObj: row.Bo})
	case KindTabComPart:
		row, err := decodePart(rowID, redo)
		if err != nil {
			return err
		}
		e.tables.TabComParts.Insert(rowID, schema.SysTabComPart(row))
	default:
		return fmt.Errorf("systran: unhandled table kind %d on insert", kind)
	}
	return nil
}

// applyUpdate re-decodes the full row from the after-image and
// replaces it at the same rowid; since these tables are keyed
// primarily by rowid (not by a value that can change across an
// update), no secondary-index rekey is required beyond what
// table.Insert already performs by removing stale secondary entries.
func (e *Engine) applyUpdate(kind Kind, rowID types.RowId, redo *types.RedoRecord) error {
	return e.applyInsert(kind, rowID, redo)
}

func (e *Engine) applyDelete(kind Kind, rowID types.RowId) error {
	switch kind {
	case KindUser:
		e.tables.Users.Delete(rowID)
	case KindObj:
		e.tables.Objs.Delete(rowID)
	case KindTab:
		e.tables.Tabs.Delete(rowID)
	case KindCol:
		e.tables.Cols.Delete(rowID)
	case KindCCol:
		e.tables.CCols.Delete(rowID)
	case KindCDef:
		e.tables.CDefs.Delete(rowID)
	case KindECol:
		e.tables.ECols.Delete(rowID)
	case KindDeferredStg:
		e.tables.DeferredStg.Delete(rowID)
	case KindTabPart:
		e.tables.TabParts.Delete(rowID)
	case KindTabSubPart:
		e.tables.TabSubParts.Delete(rowID)
	case KindTabComPart:
		e.tables.TabComParts.Delete(rowID)
	default:
		return fmt.Errorf("systran: unhandled table kind %d on delete", kind)
	}
	return nil
}

func decodeSysObj(rowID types.RowId, redo *types.RedoRecord) (schema.SysObj, error) {
	owner, err := fieldUint32(redo, 0)
	if err != nil {
		return schema.SysObj{}, err
	}
	obj, err := fieldUint32(redo, 1)
	if err != nil {
		return schema.SysObj{}, err
	}
	dataObj, err := fieldUint32(redo, 2)
	if err != nil {
		return schema.SysObj{}, err
	}
	typ, err := fieldUint32(redo, 3)
	if err != nil {
		return schema.SysObj{}, err
	}
	return schema.SysObj{
		RowID:   rowID,
		Owner:   owner,
		Obj:     obj,
		DataObj: dataObj,
		Type:    typ,
		Name:    fieldString(redo, 4, 0),
		Flags:   fieldFlags(redo, 5),
		Single:  fieldBool(redo, 6),
	}, nil
}

func decodeSysTab(rowID types.RowId, redo *types.RedoRecord) (schema.SysTab, error) {
	obj, err := fieldUint32(redo, 0)
	if err != nil {
		return schema.SysTab{}, err
	}
	dataObj, err := fieldUint32(redo, 1)
	if err != nil {
		return schema.SysTab{}, err
	}
	ts, err := fieldUint32(redo, 2)
	if err != nil {
		return schema.SysTab{}, err
	}
	file, err := fieldUint32(redo, 3)
	if err != nil {
		return schema.SysTab{}, err
	}
	block, err := fieldUint32(redo, 4)
	if err != nil {
		return schema.SysTab{}, err
	}
	cluCols, err := fieldUint32(redo, 5)
	if err != nil {
		return schema.SysTab{}, err
	}
	return schema.SysTab{
		RowID:    rowID,
		Obj:      obj,
		DataObj:  dataObj,
		Ts:       ts,
		File:     file,
		Block:    block,
		CluCols:  cluCols,
		Flags:    fieldFlags(redo, 6),
		Property: fieldFlags(redo, 7),
	}, nil
}

func decodeSysCol(rowID types.RowId, redo *types.RedoRecord) (schema.SysCol, error) {
	obj, err := fieldUint32(redo, 0)
	if err != nil {
		return schema.SysCol{}, err
	}
	col, err := fieldInt32(redo, 1)
	if err != nil {
		return schema.SysCol{}, err
	}
	segCol, err := fieldInt32(redo, 2)
	if err != nil {
		return schema.SysCol{}, err
	}
	intCol, err := fieldInt32(redo, 3)
	if err != nil {
		return schema.SysCol{}, err
	}
	typ, err := fieldInt32(redo, 5)
	if err != nil {
		return schema.SysCol{}, err
	}
	length, err := fieldUint32(redo, 6)
	if err != nil {
		return schema.SysCol{}, err
	}
	precision, err := fieldInt32(redo, 7)
	if err != nil {
		return schema.SysCol{}, err
	}
	scale, err := fieldInt32(redo, 8)
	if err != nil {
		return schema.SysCol{}, err
	}
	charsetForm, err := fieldUint32(redo, 9)
	if err != nil {
		return schema.SysCol{}, err
	}
	charsetID, err := fieldUint32(redo, 10)
	if err != nil {
		return schema.SysCol{}, err
	}
	return schema.SysCol{
		RowID:       rowID,
		Obj:         obj,
		Col:         col,
		SegCol:      segCol,
		IntCol:      intCol,
		Name:        fieldString(redo, 4, 0),
		Type:        typ,
		Length:      length,
		Precision:   precision,
		Scale:       scale,
		CharsetForm: charsetForm,
		CharsetID:   charsetID,
		Null:        fieldBool(redo, 11),
		Property:    fieldFlags(redo, 12),
	}, nil
}

func decodeSysCCol(rowID types.RowId, redo *types.RedoRecord) (schema.SysCCol, error) {
	con, err := fieldUint32(redo, 0)
	if err != nil {
		return schema.SysCCol{}, err
	}
	intCol, err := fieldInt32(redo, 1)
	if err != nil {
		return schema.SysCCol{}, err
	}
	obj, err := fieldUint32(redo, 2)
	if err != nil {
		return schema.SysCCol{}, err
	}
	return schema.SysCCol{RowID: rowID, Con: con, IntCol: intCol, Obj: obj, Spare1: fieldFlags(redo, 3)}, nil
}

func decodeSysCDef(rowID types.RowId, redo *types.RedoRecord) (schema.SysCDef, error) {
	con, err := fieldUint32(redo, 0)
	if err != nil {
		return schema.SysCDef{}, err
	}
	obj, err := fieldUint32(redo, 1)
	if err != nil {
		return schema.SysCDef{}, err
	}
	typ, err := fieldUint32(redo, 2)
	if err != nil {
		return schema.SysCDef{}, err
	}
	return schema.SysCDef{RowID: rowID, Con: con, Obj: obj, Type: typ}, nil
}

func decodeSysECol(rowID types.RowId, redo *types.RedoRecord) (schema.SysECol, error) {
	tabObj, err := fieldUint32(redo, 0)
	if err != nil {
		return schema.SysECol{}, err
	}
	colNum, err := fieldInt32(redo, 1)
	if err != nil {
		return schema.SysECol{}, err
	}
	guardID, err := fieldInt32(redo, 2)
	if err != nil {
		return schema.SysECol{}, err
	}
	return schema.SysECol{RowID: rowID, TabObj: tabObj, ColNum: colNum, GuardID: guardID}, nil
}

// partRow is the shared {obj, dataObj, bo} shape of SysTabPart,
// SysTabComPart, and SysTabSubPart (whose third field is named PObj
// rather than Bo, but decodes from the same field position).
type partRow struct {
	RowID   types.RowId
	Obj     uint32
	DataObj uint32
	Bo      uint32
}

func decodePart(rowID types.RowId, redo *types.RedoRecord) (partRow, error) {
	obj, err := fieldUint32(redo, 0)
	if err != nil {
		return partRow{}, err
	}
	dataObj, err := fieldUint32(redo, 1)
	if err != nil {
		return partRow{}, err
	}
	bo, err := fieldUint32(redo, 2)
	if err != nil {
		return partRow{}, err
	}
	return partRow{RowID: rowID, Obj: obj, DataObj: dataObj, Bo: bo}, nil
}
