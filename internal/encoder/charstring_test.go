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

func TestParseStringUS7ASCIIPassthrough(t *testing.T) {
	require.Equal(t, "hello", ParseString([]byte("hello"), CharsetUS7ASCII))
}

func TestParseStringISO8859P1(t *testing.T) {
	// 0xE9 is 'é' in Latin-1.
	require.Equal(t, "é", ParseString([]byte{0xE9}, CharsetWE8ISO8859P1))
}

func TestParseStringAL16UTF16BigEndian(t *testing.T) {
	// "AB" as big-endian UTF-16: each pair is read as (hi<<8|lo) from
	// successive bytes, matching the decoder's own byte order.
	data := []byte{0x00, 'A', 0x00, 'B'}
	require.Equal(t, "AB", ParseString(data, CharsetAL16UTF16))
}

func TestParseStringUnknownCharsetPassesThroughRaw(t *testing.T) {
	require.Equal(t, "raw", ParseString([]byte("raw"), 9999))
}
