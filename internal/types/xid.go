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

import "fmt"

// XID is an Oracle transaction identifier: the triple (undo-segment
// number, undo-slot, undo-sequence). All three components participate
// in equality; two transactions with the same slot but different
// sequence are unrelated (the slot has been recycled).
type XID struct {
	Usn      uint16
	Slot     uint16
	Sequence uint32
}

// NewXID constructs an XID from its three components.
func NewXID(usn, slot uint16, sequence uint32) XID {
	return XID{Usn: usn, Slot: slot, Sequence: sequence}
}

func (x XID) String() string {
	return fmt.Sprintf("0x%04x.%03x.%08x", x.Usn, x.Slot, x.Sequence)
}

// Zero reports whether this is the zero-value XID, which never
// appears on the wire and is used as a sentinel for "no transaction".
func (x XID) Zero() bool {
	return x.Usn == 0 && x.Slot == 0 && x.Sequence == 0
}
