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

import "github.com/bersler/oraclecdc/internal/types"

// chain accumulates the pieces of one row-chain (a row whose before/
// after images were split across multiple redo records because of
// flow-bit chaining) until an FB_L record closes it. Slot assignment
// follows spec.md §4.E's row-chain merge rules.
type chain struct {
	kindFromFirst types.RowOpKind
	promoted      bool

	slots [3]struct {
		set   bool
		after types.ColumnSet
	}

	before     types.ColumnSet
	beforeSupp types.ColumnSet
	afterSupp  types.ColumnSet

	first *types.RedoRecord
}

func newChain(firstOp types.RowOpKind) *chain {
	return &chain{kindFromFirst: firstOp}
}

// observe records one piece's classification and after-image columns.
func (c *chain) observe(slot types.RowPieceSlot, op types.RowOpKind, cols types.ColumnSet) {
	if op != c.kindFromFirst {
		c.promoted = true
	}

	switch slot {
	case types.SlotFirst:
		c.slots[0] = struct {
			set   bool
			after types.ColumnSet
		}{true, cols}
	case types.SlotMiddle:
		c.slots[1] = struct {
			set   bool
			after types.ColumnSet
		}{true, cols}
	case types.SlotLast:
		c.slots[2] = struct {
			set   bool
			after types.ColumnSet
		}{true, cols}
	case types.SlotSingle:
		c.slots[0] = struct {
			set   bool
			after types.ColumnSet
		}{true, cols}
	}
}

// finalOp reports the logical operation kind this chain resolves to:
// promoted chains (e.g. an insert later touched by a delete piece)
// become UPDATE; a chain left untouched remains its first opcode.
func (c *chain) finalOp() types.RowOpKind {
	if c.promoted {
		return types.OpUpdate
	}
	return c.kindFromFirst
}

// mergedAfter concatenates every set slot's column set in slot order
// (0,1,2), per spec.md §4.E "On FB_L, concatenate columns from all
// set slots."
func (c *chain) mergedAfter() types.ColumnSet {
	out := types.ColumnSet{}
	for _, s := range c.slots {
		if !s.set {
			continue
		}
		for k, v := range s.after {
			out[k] = v
		}
	}
	return out
}

// applySupplemental merges a following 0B10 record's before/after
// supplemental images; these never come from the base 0B05 record
// itself (spec.md §4.E).
func (c *chain) applySupplemental(before, after types.ColumnSet) {
	c.beforeSupp = before
	c.afterSupp = after
}
