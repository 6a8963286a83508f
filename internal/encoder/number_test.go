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
)

func TestParseNumberZero(t *testing.T) {
	s, err := ParseNumber([]byte{0x80})
	require.NoError(t, err)
	require.Equal(t, "0", s)
}

func TestParseNumberPositiveInteger(t *testing.T) {
	// 123 encodes as digits=0xC2 (0xC0+2 groups), then 2,24 (1-based).
	s, err := ParseNumber([]byte{0xC2, 2, 24})
	require.NoError(t, err)
	require.Equal(t, "123", s)
}

func TestParseNumberNegativeInteger(t *testing.T) {
	// -123 mirrors the positive encoding through 101-value per group,
	// prefixed 0x3F-2=0x3D, terminated by the 0x66 negative marker.
	s, err := ParseNumber([]byte{0x3D, 0x64, 0x4E, 0x66})
	require.NoError(t, err)
	require.Equal(t, "-123", s)
}

func TestParseNumberEmptyIsError(t *testing.T) {
	_, err := ParseNumber(nil)
	require.Error(t, err)
}
