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

package writer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/types"
)

func TestDrainConfirmedPrefixStopsAtFirstUnconfirmed(t *testing.T) {
	q := newInflightQueue()
	q.push(1, 10, types.SCN(100), time.Now())
	q.push(2, 11, types.SCN(200), time.Now())
	q.push(3, 12, types.SCN(300), time.Now())

	require.True(t, q.confirm(1))
	require.True(t, q.confirm(3))
	// id 2 left unconfirmed: the prefix stops there even though 3 is confirmed.

	popped, scn, ok, minPageID := q.drainConfirmedPrefix()
	require.True(t, ok)
	require.Len(t, popped, 1)
	require.Equal(t, uint64(1), popped[0].id)
	require.Equal(t, types.SCN(100), scn)
	require.Equal(t, uint64(11), minPageID)
	require.Equal(t, 2, q.Len())
}

func TestDrainConfirmedPrefixDrainsWholeQueueInOrder(t *testing.T) {
	q := newInflightQueue()
	q.push(1, 1, types.SCN(100), time.Now())
	q.push(2, 2, types.SCN(200), time.Now())
	require.True(t, q.confirm(1))
	require.True(t, q.confirm(2))

	popped, scn, ok, minPageID := q.drainConfirmedPrefix()
	require.True(t, ok)
	require.Equal(t, []uint64{1, 2}, []uint64{popped[0].id, popped[1].id})
	require.Equal(t, types.SCN(200), scn)
	require.Equal(t, uint64(0), minPageID)
	require.Equal(t, 0, q.Len())
}

func TestConfirmUnknownIDReturnsFalse(t *testing.T) {
	q := newInflightQueue()
	require.False(t, q.confirm(99))
}

func TestOrderingTiebreaksOnID(t *testing.T) {
	q := newInflightQueue()
	q.push(2, 1, types.SCN(100), time.Now())
	q.push(1, 1, types.SCN(100), time.Now())
	require.True(t, q.confirm(1))
	require.True(t, q.confirm(2))

	popped, _, _, _ := q.drainConfirmedPrefix()
	require.Equal(t, []uint64{1, 2}, []uint64{popped[0].id, popped[1].id})
}
