// Copyright 2018 Axel Wagner
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

package wire

import (
	"encoding/binary"
)

// EncodeState holds state about the encoding process. It is not
// supposed to be used directly - call Encode instead.
type EncodeState struct {
	msg []byte

	n     uint32
	i     uint32
	t     Tag
	hdr   []byte
	body  []byte
	depth int
}

// Encode runs f to encode a message into a freshly allocated buffer of
// bufLen bytes. f can use the EncodeState to emit wanted fields, in
// ascending tag order.
func Encode(bufLen int, f func(st *EncodeState)) []byte {
	msg := make([]byte, bufLen)
	st := &EncodeState{msg: msg}
	f(st)
	return st.msg[:st.Length()]
}

// NTags sets the number of tags of the message. It must be called
// before any other methods of EncodeState.
func (e *EncodeState) NTags(n uint32) {
	if n > MaxTags {
		panic("wire: too many tags")
	}
	if n == 0 {
		e.hdr = e.msg[:4]
		e.body = e.msg[4:4:len(e.msg)]
	} else {
		binary.LittleEndian.PutUint32(e.msg, n)
		e.hdr = e.msg[0 : 8*n : 8*n]
		e.body = e.msg[8*n : 8*n : len(e.msg)]
	}
	e.n = n
	e.i = 0
}

// Length returns the length of the message, as far as encoded so far.
func (e *EncodeState) Length() int {
	return len(e.hdr) + len(e.body)
}

// Bytes emits a field with tag t and length n, which must be divisible
// by 4. It returns a slice that the data should be written to.
func (e *EncodeState) Bytes(t Tag, n int) []byte {
	if n < 0 || (n%4 != 0) {
		panic("wire: length of field not multiple of 4")
	}
	if e.i > 0 && e.t >= t {
		panic("wire: tags not written in ascending order")
	}
	if e.i >= e.n {
		panic("wire: too many tags written")
	}
	e.t = t
	if e.i > 0 {
		binary.LittleEndian.PutUint32(e.hdr[4*e.i:], uint32(len(e.body)))
	}
	binary.LittleEndian.PutUint32(e.hdr[4*e.n+4*e.i:], uint32(t))
	e.i++

	buf := e.body[len(e.body) : len(e.body)+n]
	e.body = e.body[:len(e.body)+n]
	return buf
}

// Bytes32 emits a field with tag t and value v.
func (e *EncodeState) Bytes32(t Tag, v [32]byte) {
	buf := e.Bytes(t, 32)
	copy(buf, v[:])
}

// Bytes64 emits a field with tag t and value v.
func (e *EncodeState) Bytes64(t Tag, v [64]byte) {
	buf := e.Bytes(t, 64)
	copy(buf, v[:])
}

// Uint32 emits a field with tag t and value v.
func (e *EncodeState) Uint32(t Tag, v uint32) {
	buf := e.Bytes(t, 4)
	binary.LittleEndian.PutUint32(buf, v)
}

// Uint64 emits a field with tag t and value v.
func (e *EncodeState) Uint64(t Tag, v uint64) {
	buf := e.Bytes(t, 8)
	binary.LittleEndian.PutUint64(buf, v)
}

// Uint32Slice emits a field with tag t and values v, each encoded as a
// little-endian uint32.
func (e *EncodeState) Uint32Slice(t Tag, v []uint32) {
	buf := e.Bytes(t, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], x)
	}
}

// RawBytes emits a field with tag t and the literal contents of v,
// which must already be a multiple of 4 bytes long. Used for opaque
// payloads such as ZZZZ padding.
func (e *EncodeState) RawBytes(t Tag, v []byte) {
	buf := e.Bytes(t, len(v))
	copy(buf, v)
}

// Message emits a field with tag t and calls f to encode a
// submessage into a scratch buffer, then copies the result in.
// Submessages nest at most MaxNestingDepth deep.
func (e *EncodeState) Message(t Tag, f func(*EncodeState)) {
	if e.depth+1 > MaxNestingDepth {
		panic("wire: message nesting too deep")
	}
	scratch := make([]byte, cap(e.body)-len(e.body))
	st := &EncodeState{msg: scratch, depth: e.depth + 1}
	f(st)
	copy(e.Bytes(t, st.Length()), st.msg[:st.Length()])
}
