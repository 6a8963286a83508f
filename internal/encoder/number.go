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

// Package encoder implements the Oracle on-disk value decoders used by
// both the user-facing JSON payload encoder and the System-Transaction
// engine's dictionary-row parsing (spec.md §4.G "value parsing mirrors
// the user-facing JSON encoder's parseNumber and parseString").
package encoder

import (
	"strings"

	"github.com/pkg/errors"
)

// ParseNumber decodes Oracle's packed-decimal NUMBER wire format into
// the same decimal string TO_CHAR would produce: leading zeros after
// the decimal point are preserved, a single trailing zero before the
// end of the fractional part is suppressed. Transcribed against
// original_source/src/OutputBuffer.h's parseNumber.
func ParseNumber(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("encoder: empty number payload")
	}

	var b strings.Builder
	digits := int(data[0])

	if digits == 0x80 {
		b.WriteByte('0')
		return b.String(), nil
	}

	jMax := len(data) - 1
	j := 1

	switch {
	case digits > 0x80 && jMax >= 1:
		var zeros int
		if digits <= 0xC0 {
			b.WriteByte('0')
			zeros = 0xC0 - digits
		} else {
			digits -= 0xC0
			value := int(data[j]) - 1
			writeTwoDigitsFirst(&b, value)
			j++
			digits--
			for digits > 0 {
				if j <= jMax {
					value = int(data[j]) - 1
					writeTwoDigits(&b, value)
					j++
				} else {
					b.WriteString("00")
				}
				digits--
			}
		}

		if j <= jMax {
			b.WriteByte('.')
			for ; zeros > 0; zeros-- {
				b.WriteString("00")
			}
			for j <= jMax-1 {
				value := int(data[j]) - 1
				writeTwoDigits(&b, value)
				j++
			}
			value := int(data[j]) - 1
			b.WriteByte(byte('0' + value/10))
			if value%10 != 0 {
				b.WriteByte(byte('0' + value%10))
			}
		}

	case digits < 0x80 && jMax >= 1:
		var zeros int
		b.WriteByte('-')
		if data[jMax] == 0x66 {
			jMax--
		}

		if digits >= 0x3F {
			b.WriteByte('0')
			zeros = digits - 0x3F
		} else {
			digits = 0x3F - digits
			value := 101 - int(data[j])
			writeTwoDigitsFirst(&b, value)
			j++
			digits--
			for digits > 0 {
				if j <= jMax {
					value = 101 - int(data[j])
					writeTwoDigits(&b, value)
					j++
				} else {
					b.WriteString("00")
				}
				digits--
			}
		}

		if j <= jMax {
			b.WriteByte('.')
			for ; zeros > 0; zeros-- {
				b.WriteString("00")
			}
			for j <= jMax-1 {
				value := 101 - int(data[j])
				writeTwoDigits(&b, value)
				j++
			}
			value := 101 - int(data[j])
			b.WriteByte(byte('0' + value/10))
			if value%10 != 0 {
				b.WriteByte(byte('0' + value%10))
			}
		}

	default:
		return "", errors.Errorf("encoder: unrecognized packed-decimal number (digits=0x%02x, len=%d)", data[0], len(data))
	}

	return b.String(), nil
}

func writeTwoDigitsFirst(b *strings.Builder, value int) {
	if value < 10 {
		b.WriteByte(byte('0' + value))
	} else {
		writeTwoDigits(b, value)
	}
}

func writeTwoDigits(b *strings.Builder, value int) {
	b.WriteByte(byte('0' + value/10))
	b.WriteByte(byte('0' + value%10))
}
