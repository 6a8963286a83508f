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
	"strings"

	"github.com/sirupsen/logrus"
)

// Well-known Oracle NLS character set ids this decoder maps natively;
// every other id falls back to raw passthrough with a logged warning,
// matching spec.md §6's "unknown-type=dump" tolerant-degradation
// posture applied to charsets rather than column types.
const (
	CharsetUS7ASCII     = 1
	CharsetWE8ISO8859P1 = 31
	CharsetAL32UTF8     = 873
	CharsetAL16UTF16    = 2000
)

var unresolvedCharsetWarned = map[uint32]bool{}

// ParseString decodes a column's raw bytes into a UTF-8 string using
// the resolved charsetID, mirroring parseString in
// original_source/src/OutputBuffer.h. US7ASCII and AL32UTF8 pass
// through unchanged (both are ASCII-compatible / already UTF-8);
// WE8ISO8859P1 is translated byte-by-byte (Latin-1 maps 1:1 onto the
// first 256 Unicode code points); AL16UTF16 is decoded as big-endian
// UTF-16 (each byte pair read high byte first).
// Any other charset id is passed through as raw bytes with a
// once-per-id warning.
func ParseString(data []byte, charsetID uint32) string {
	switch charsetID {
	case CharsetUS7ASCII, CharsetAL32UTF8, 0:
		return string(data)
	case CharsetWE8ISO8859P1:
		var b strings.Builder
		b.Grow(len(data))
		for _, c := range data {
			b.WriteRune(rune(c))
		}
		return b.String()
	case CharsetAL16UTF16:
		if len(data)%2 != 0 {
			data = data[:len(data)-1]
		}
		runes := make([]rune, 0, len(data)/2)
		for i := 0; i+1 < len(data); i += 2 {
			runes = append(runes, rune(uint16(data[i])<<8|uint16(data[i+1])))
		}
		return string(runes)
	default:
		if !unresolvedCharsetWarned[charsetID] {
			unresolvedCharsetWarned[charsetID] = true
			logrus.WithField("charsetId", charsetID).Warn("encoder: passing through column bytes for unmapped NLS character set")
		}
		return string(data)
	}
}
