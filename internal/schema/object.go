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

package schema

import (
	"fmt"
	"sort"

	"github.com/bersler/oraclecdc/internal/types"
	"github.com/bersler/oraclecdc/internal/util/ident"
)

// charset form codes, per spec.md §4.C.
const (
	charsetFormDatabase = 1
	charsetFormNChar    = 2
)

// Oracle type numbers for which an unresolved charset is fatal.
const (
	typeVarchar2 = 1
	typeChar     = 96
)

// Column describes one materialized, captured column of an
// OracleObject.
type Column struct {
	Name        string
	SegCol      int32
	Type        int32
	Length      uint32
	Precision   int32
	Scale       int32
	CharsetID   uint32
	Nullable    bool
	PrimaryKey  bool
	Supplemental bool
}

// OracleObject is the materialized, user-visible view of a captured
// table: the join of SysObj/SysTab/SysCol/SysCCol/SysCDef the Analyzer
// consults on every DML, per spec.md §4.C.
type OracleObject struct {
	Obj      uint32
	DataObj  uint32
	Owner    ident.Ident
	Table    ident.Ident
	Columns  []Column
	// Keys holds the indices into Columns making up the primary/unique
	// key used to identify a row when no physical rowid match is
	// possible (user-supplied override or detected PK).
	Keys []int
	// SystemTable marks objects registered via addElement with
	// options=systemTable: dictionary tables whose DML additionally
	// drives the System-Transaction engine.
	SystemTable bool
	EventTable  bool
}

// ColumnBySegCol returns the column materialized at the given
// SysCol.SegCol#, if captured.
func (o *OracleObject) ColumnBySegCol(segCol int32) (Column, bool) {
	for _, c := range o.Columns {
		if c.SegCol == segCol {
			return c, true
		}
	}
	return Column{}, false
}

// ElementOption enumerates addElement's options parameter.
type ElementOption int

const (
	ElementNone ElementOption = iota
	ElementSystemTable
	ElementEventTable
)

// materialize builds an OracleObject for (owner, obj), applying the
// skip rules and column/key resolution from spec.md §4.C. It returns
// (nil, nil) when the object should be silently skipped (not an
// error), and a non-nil error for a fatal condition (unresolved
// charset).
func (s *Cache) materialize(obj SysObj, opt ElementOption, overrideKeys []string) (*OracleObject, error) {
	tab, ok := s.tabs.BySecondaryOne("obj", fmt.Sprint(obj.Obj))
	if !ok {
		return nil, nil
	}
	if tab.isBinary() || tab.isIOT() || obj.isTemporary() || tab.isNested() {
		return nil, nil
	}
	_, isPartitioned := s.tabParts.ByKey(obj.Obj)
	if !isPartitioned && tab.isInitialCompressed() {
		return nil, nil
	}

	user, ok := s.users.ByKey(obj.Owner)
	if !ok {
		return nil, nil
	}

	pkConstraints := map[uint32]bool{}
	suppConstraints := map[uint32]bool{}
	for _, cdef := range s.cdefs.BySecondary("obj", fmt.Sprint(obj.Obj)) {
		switch cdef.Type {
		case ConstraintPrimaryKey:
			pkConstraints[cdef.Con] = true
		case ConstraintSuppLogPK, ConstraintSuppLogAll, ConstraintSuppLogForeign:
			suppConstraints[cdef.Con] = true
		}
	}

	pkIntCols := map[int32]bool{}
	suppIntCols := map[int32]bool{}
	for _, ccol := range s.ccols.BySecondary("obj", fmt.Sprint(obj.Obj)) {
		if pkConstraints[ccol.Con] {
			pkIntCols[ccol.IntCol] = true
		}
		if suppConstraints[ccol.Con] && isZero128(ccol.Spare1) {
			suppIntCols[ccol.IntCol] = true
		}
	}

	var cols []SysCol
	for _, c := range s.cols.BySecondary("obj", fmt.Sprint(obj.Obj)) {
		if c.SegCol > 0 {
			cols = append(cols, c)
		}
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i].SegCol < cols[j].SegCol })

	oo := &OracleObject{
		Obj:         obj.Obj,
		DataObj:     obj.DataObj,
		Owner:       ident.New(user.Name),
		Table:       ident.New(obj.Name),
		SystemTable: opt == ElementSystemTable,
		EventTable:  opt == ElementEventTable,
	}

	for _, c := range cols {
		charsetID := c.CharsetID
		switch c.CharsetForm {
		case charsetFormDatabase:
			charsetID = s.dbCharsetID
		case charsetFormNChar:
			charsetID = s.nCharCharsetID
		}
		if charsetID == 0 && (c.Type == typeVarchar2 || c.Type == typeChar) {
			return nil, fmt.Errorf("schema: unresolved charset for %s.%s.%s (type %d)", oo.Owner, oo.Table, c.Name, c.Type)
		}

		col := Column{
			Name:         c.Name,
			SegCol:       c.SegCol,
			Type:         c.Type,
			Length:       c.Length,
			Precision:    c.Precision,
			Scale:        c.Scale,
			CharsetID:    charsetID,
			Nullable:     !c.Null,
			PrimaryKey:   pkIntCols[c.IntCol],
			Supplemental: suppIntCols[c.IntCol],
		}
		oo.Columns = append(oo.Columns, col)
		if col.PrimaryKey {
			oo.Keys = append(oo.Keys, len(oo.Columns)-1)
		}
	}

	if len(overrideKeys) > 0 {
		oo.Keys = oo.Keys[:0]
		for _, name := range overrideKeys {
			idx := -1
			for i, c := range oo.Columns {
				if c.Name == name {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, fmt.Errorf("schema: explicit key column %q not found on %s.%s", name, oo.Owner, oo.Table)
			}
			oo.Keys = append(oo.Keys, idx)
		}
	}

	return oo, nil
}

func isZero128(v [2]uint64) bool { return v[0] == 0 && v[1] == 0 }
