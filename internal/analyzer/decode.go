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

package analyzer

import (
	"github.com/bersler/oraclecdc/internal/schema"
	"github.com/bersler/oraclecdc/internal/types"
)

// headerFieldCount is the number of leading fields in a row-op redo
// record that carry opcode-specific addressing metadata (column
// bitmap, cluster key, etc.) rather than column values themselves.
// Fields at index >= headerFieldCount are taken to be column values in
// the captured object's SegCol order. Real Oracle kdo vectors encode a
// column bitmap distinguishing present/absent columns explicitly; this
// simplified mapping (documented in DESIGN.md) assumes dense,
// in-order column presence, which holds for the common case of a
// full-row insert/update with supplemental logging enabled.
const headerFieldCount = 1

// decodeColumns maps a redo record's field payload onto oo's captured
// columns, producing a ColumnSet keyed by SegCol#. A zero-length field
// decodes as Oracle NULL.
func decodeColumns(rec *types.RedoRecord, oo *schema.OracleObject) types.ColumnSet {
	if oo == nil || rec == nil {
		return nil
	}
	out := make(types.ColumnSet)
	for i, col := range oo.Columns {
		fieldIdx := headerFieldCount + i
		if fieldIdx >= len(rec.FieldLengths) {
			break
		}
		raw := rec.Field(fieldIdx)
		v := types.Value{TypeNum: col.Type}
		if len(raw) == 0 {
			v.Null = true
		} else {
			v.Raw = append([]byte(nil), raw...)
		}
		out[col.SegCol] = v
	}
	return out
}
