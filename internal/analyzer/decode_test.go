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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/schema"
	"github.com/bersler/oraclecdc/internal/types"
)

func TestDecodeColumnsNilObjectReturnsNil(t *testing.T) {
	require.Nil(t, decodeColumns(&types.RedoRecord{}, nil))
}

func TestDecodeColumnsMapsFieldsBySegCol(t *testing.T) {
	oo := &schema.OracleObject{
		Columns: []schema.Column{
			{Name: "ID", SegCol: 1},
			{Name: "NAME", SegCol: 2},
		},
	}
	rec := &types.RedoRecord{
		FieldLengths: []uint16{4, 3, 5},
		// field0 (4B, no pad) | "bob" (3B, +1 pad to align4) | "hello" (5B, +3 pad)
		Data: append(append(append([]byte{0, 0, 0, 0}, []byte("bob")...), 0), append([]byte("hello"), 0, 0, 0)...),
	}

	cols := decodeColumns(rec, oo)
	require.Len(t, cols, 2)
	require.Equal(t, []byte("bob"), cols[1].Raw)
	require.Equal(t, []byte("hello"), cols[2].Raw)
}

func TestDecodeColumnsZeroLengthFieldIsNull(t *testing.T) {
	oo := &schema.OracleObject{Columns: []schema.Column{{Name: "ID", SegCol: 1}, {Name: "NAME", SegCol: 2}}}
	rec := &types.RedoRecord{
		FieldLengths: []uint16{4, 0, 3},
		Data:         append([]byte{0, 0, 0, 0}, []byte("bob")...),
	}
	cols := decodeColumns(rec, oo)
	require.True(t, cols[1].Null)
	require.Equal(t, []byte("bob"), cols[2].Raw)
}
