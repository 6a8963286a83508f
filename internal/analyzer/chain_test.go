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

	"github.com/bersler/oraclecdc/internal/types"
)

func TestChainSinglePieceUnchanged(t *testing.T) {
	c := newChain(types.OpInsert)
	c.observe(types.SlotSingle, types.OpInsert, types.ColumnSet{1: {Raw: []byte("a")}})
	require.Equal(t, types.OpInsert, c.finalOp())
	require.Len(t, c.mergedAfter(), 1)
}

func TestChainMultiPieceMergesInSlotOrder(t *testing.T) {
	c := newChain(types.OpUpdate)
	c.observe(types.SlotFirst, types.OpUpdate, types.ColumnSet{1: {Raw: []byte("a")}})
	c.observe(types.SlotMiddle, types.OpUpdate, types.ColumnSet{2: {Raw: []byte("b")}})
	c.observe(types.SlotLast, types.OpUpdate, types.ColumnSet{3: {Raw: []byte("c")}})

	merged := c.mergedAfter()
	require.Len(t, merged, 3)
	require.Equal(t, types.OpUpdate, c.finalOp())
}

func TestChainPromotedToUpdateWhenPiecesDisagree(t *testing.T) {
	c := newChain(types.OpInsert)
	c.observe(types.SlotFirst, types.OpInsert, types.ColumnSet{1: {Raw: []byte("a")}})
	c.observe(types.SlotLast, types.OpDelete, types.ColumnSet{2: {Raw: []byte("b")}})
	require.Equal(t, types.OpUpdate, c.finalOp())
}

func TestChainSupplementalImagesOnlyFromFollowingRecord(t *testing.T) {
	c := newChain(types.OpUpdate)
	require.Empty(t, c.beforeSupp)
	c.applySupplemental(types.ColumnSet{1: {Raw: []byte("old")}}, types.ColumnSet{1: {Raw: []byte("new")}})
	require.Equal(t, []byte("old"), c.beforeSupp[1].Raw)
	require.Equal(t, []byte("new"), c.afterSupp[1].Raw)
}
