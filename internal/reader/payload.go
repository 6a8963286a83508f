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

package reader

// PayloadStart returns the logical stream offset of the first byte
// still buffered (everything before it has been Advance()d away).
func (r *Reader) PayloadStart() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mu.payloadStart
}

// PayloadEnd returns the logical stream offset just past the last
// byte currently buffered and available to a consumer.
func (r *Reader) PayloadEnd() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mu.payloadStart + int64(len(r.mu.payload))
}

// ByteOrder reports the endianness this reader's redo file declared in
// its header, for internal/vector's consumer-side decode.
func (r *Reader) ByteOrder() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mu.hdr.bigEndian
}

// ReadPayload copies up to len(p) logical-stream bytes starting at
// offset at into p, returning how many bytes were copied. at must be
// within [PayloadStart, PayloadEnd); offsets before PayloadStart have
// already been released by Advance and return 0.
func (r *Reader) ReadPayload(p []byte, at int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if at < r.mu.payloadStart {
		return 0
	}
	off := at - r.mu.payloadStart
	if off >= int64(len(r.mu.payload)) {
		return 0
	}
	return copy(p, r.mu.payload[off:])
}

// Advance releases every logical-stream byte before minOffset; the
// analyzer calls this once a record has been fully decoded and
// dispatched, so the payload buffer never grows past what the
// analyzer has not yet consumed.
func (r *Reader) Advance(minOffset int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if minOffset <= r.mu.payloadStart {
		return
	}
	drop := minOffset - r.mu.payloadStart
	if drop > int64(len(r.mu.payload)) {
		drop = int64(len(r.mu.payload))
	}
	r.mu.payload = append([]byte(nil), r.mu.payload[drop:]...)
	r.mu.payloadStart += drop
}
