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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bersler/oraclecdc/internal/types"
)

func TestRequestRoundTripStart(t *testing.T) {
	req := redoRequest{op: types.ControlStart, startKind: types.StartSCN, startValue: 12345}
	got, err := unmarshalRequest(req.marshal())
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestRequestRoundTripConfirm(t *testing.T) {
	req := redoRequest{op: types.ControlConfirm, confirmSCN: types.SCN(999)}
	got, err := unmarshalRequest(req.marshal())
	require.NoError(t, err)
	require.Equal(t, req, got)
}

func TestResponseRoundTripRedo(t *testing.T) {
	resp := redoResponse{op: types.ControlRedo, scn: types.SCN(42), id: 7, queueID: 1, sequence: types.Seq(3), obj: 500, payload: []byte(`{"op":"c"}`)}
	got, err := unmarshalResponse(resp.marshal())
	require.NoError(t, err)
	require.Equal(t, resp, got)
}

func TestResponseRoundTripInfo(t *testing.T) {
	resp := redoResponse{op: types.ControlInfo, scn: types.SCN(10)}
	got, err := unmarshalResponse(resp.marshal())
	require.NoError(t, err)
	require.Equal(t, resp, got)
}

func TestUnmarshalRequestIgnoresUnknownFields(t *testing.T) {
	base := redoRequest{op: types.ControlInfo}.marshal()
	extra := append([]byte(nil), base...)
	extra = append(extra, 0x50, 0x01) // field 10, varint 1
	got, err := unmarshalRequest(extra)
	require.NoError(t, err)
	require.Equal(t, types.ControlInfo, got.op)
}
