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

import "strings"

// rowIDAlphabet is Oracle's own base-64 alphabet for extended ROWID
// printing, distinct from RFC 4648: 'A'-'Z', 'a'-'z', '0'-'9', '+', '/'.
const rowIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// RowId uniquely identifies a row's physical location: the data
// object number it belongs to (distinct from the logical object
// number for partitioned tables), the block's data block address, and
// the row's slot within that block.
type RowId struct {
	DataObj uint32
	Dba     uint32
	Slot    uint16
}

// relativeFile and block split a DBA the way Oracle does for
// non-bigfile tablespaces: the high 10 bits select the relative file
// number within the tablespace, the low 22 bits select the block
// number within that file.
func (r RowId) relativeFile() uint32 { return r.Dba >> 22 }
func (r RowId) block() uint32        { return r.Dba & 0x3FFFFF }

// String renders the row id as Oracle's familiar 18-character extended
// ROWID: 6 chars data-object#, 3 chars relative-file#, 6 chars block#,
// 3 chars row#.
func (r RowId) String() string {
	var b strings.Builder
	b.Grow(18)
	encodeFixed(&b, uint64(r.DataObj), 6)
	encodeFixed(&b, uint64(r.relativeFile()), 3)
	encodeFixed(&b, uint64(r.block()), 6)
	encodeFixed(&b, uint64(r.Slot), 3)
	return b.String()
}

func encodeFixed(b *strings.Builder, v uint64, chars int) {
	bits := chars * 6
	for i := bits - 6; i >= 0; i -= 6 {
		idx := (v >> uint(i)) & 0x3F
		b.WriteByte(rowIDAlphabet[idx])
	}
}

// NewRowId constructs a RowId from its data-object number, a DBA
// composed of a relative file number and block number, and a row
// slot.
func NewRowId(dataObj uint32, relativeFile uint32, block uint32, slot uint16) RowId {
	return RowId{
		DataObj: dataObj,
		Dba:     (relativeFile << 22) | (block & 0x3FFFFF),
		Slot:    slot,
	}
}
