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

package network

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/types"
)

// TestSendWithNoClientQueuesPending exercises the "no client connected
// yet" path: Send must succeed (the writer treats this as accepted,
// not failed) and remember the message for a later reconnect.
func TestSendWithNoClientQueuesPending(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})
	var confirmed []uint64
	s.confirm = func(id uint64, err error) { confirmed = append(confirmed, id) }

	require.NoError(t, s.Send(context.Background(), types.Framed{ID: 1, SCN: types.SCN(100), Payload: []byte("a")}))
	require.NoError(t, s.Send(context.Background(), types.Framed{ID: 2, SCN: types.SCN(200), Payload: []byte("b")}))

	require.Len(t, s.pending, 2)
	require.Empty(t, confirmed)
}

func TestConfirmUpToConfirmsAllMessagesAtOrBelowSCN(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"})
	var confirmed []uint64
	s.confirm = func(id uint64, err error) { confirmed = append(confirmed, id) }

	require.NoError(t, s.Send(context.Background(), types.Framed{ID: 1, SCN: types.SCN(100), Payload: []byte("a")}))
	require.NoError(t, s.Send(context.Background(), types.Framed{ID: 2, SCN: types.SCN(200), Payload: []byte("b")}))
	require.NoError(t, s.Send(context.Background(), types.Framed{ID: 3, SCN: types.SCN(300), Payload: []byte("c")}))

	s.confirmUpTo(types.SCN(200))

	require.ElementsMatch(t, []uint64{1, 2}, confirmed)
	require.Len(t, s.pending, 1)
	_, stillPending := s.pending[3]
	require.True(t, stillPending)
}
