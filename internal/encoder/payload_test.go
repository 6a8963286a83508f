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

package encoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/schema"
	"github.com/bersler/oraclecdc/internal/types"
	"github.com/bersler/oraclecdc/internal/util/ident"
)

func testObject() *schema.OracleObject {
	return &schema.OracleObject{
		Obj:   100,
		Owner: ident.New("SCOTT"),
		Table: ident.New("EMP"),
		Columns: []schema.Column{
			{Name: "ID", SegCol: 1, Type: typeNumber},
			{Name: "NAME", SegCol: 2, Type: typeVarchar2, CharsetID: CharsetUS7ASCII},
		},
	}
}

func TestEncodeRowOpInsert(t *testing.T) {
	oo := testObject()
	op := &types.RowOp{
		Kind:  types.OpInsert,
		Obj:   100,
		Owner: oo.Owner,
		Table: oo.Table,
		Row:   types.NewRowId(100, 1, 2, 3),
		After: types.ColumnSet{
			1: {Raw: []byte{0xC1, 2}, TypeNum: typeNumber},
			2: {Raw: []byte("SMITH"), TypeNum: typeVarchar2},
		},
	}

	e := New(Format{SchemaEveryMessage: true})
	item, err := e.EncodeRowOp(op, oo)
	require.NoError(t, err)
	require.Equal(t, "c", item.Op)
	require.Equal(t, "SCOTT", item.Schema.Owner)
	require.Equal(t, "EMP", item.Schema.Table)
	require.Equal(t, "1", item.After["ID"])
	require.Equal(t, "SMITH", item.After["NAME"])
}

func TestEncodeRowOpNullColumn(t *testing.T) {
	oo := testObject()
	op := &types.RowOp{
		Kind:  types.OpUpdate,
		Obj:   100,
		Owner: oo.Owner,
		Table: oo.Table,
		Row:   types.NewRowId(100, 1, 2, 3),
		After: types.ColumnSet{2: {Null: true, TypeNum: typeVarchar2}},
	}

	e := New(Format{SchemaEveryMessage: true})
	item, err := e.EncodeRowOp(op, oo)
	require.NoError(t, err)
	require.Nil(t, item.After["NAME"])
}

func TestEncodeEnvelopeRoundTrips(t *testing.T) {
	e := New(Format{})
	raw, err := e.EncodeEnvelope(types.SCN(42), "2024-01-01T00:00:00Z", types.NewXID(1, 2, 3), []PayloadItem{{Op: "begin"}})
	require.NoError(t, err)
	require.Contains(t, string(raw), `"op":"begin"`)
}
