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
	"errors"
	"fmt"
)

// DecodeError taxonomy, spec.md §7.
var (
	ErrShortHeader         = errors.New("wire: short header")
	ErrTooManyTags         = errors.New("wire: too many tags")
	ErrUnsortedTags        = errors.New("wire: tags not strictly ascending")
	ErrBadOffset           = errors.New("wire: invalid offset")
	ErrUnderflowValues     = errors.New("wire: value extends past buffer")
	ErrBadNesting          = errors.New("wire: tag does not decode as a nested message")
	ErrBadFixedSize        = errors.New("wire: field has wrong fixed size")
	ErrUnknownMandatoryTag = errors.New("wire: unrecognized tag in strict message")
	ErrNestingTooDeep      = errors.New("wire: message nesting too deep")

	// FrameError taxonomy.
	ErrBadMagic  = errors.New("wire: bad frame magic")
	ErrBadLength = errors.New("wire: frame length mismatch")
)

// DecodeState holds state about the decoding process. It is not
// supposed to be used directly - call Decode instead.
type DecodeState struct {
	hdr   []byte
	body  []byte
	err   *error
	i     uint32
	n     uint32
	depth int
}

var sentinel = new(int8)

// Decode runs f to decode msg. f can use the passed DecodeState to
// extract the wanted fields, in ascending tag order.
func Decode(msg []byte, f func(st *DecodeState)) (err error) {
	defer func() {
		if v := recover(); v != nil && v != sentinel {
			panic(v)
		}
	}()
	st := &DecodeState{err: &err}
	st.SetMessage(msg)
	f(st)
	return nil
}

// Abort aborts the decoding process with the given error. A nil error
// is a no-op.
func (d *DecodeState) Abort(e error) {
	if e != nil {
		*d.err = e
		panic(sentinel)
	}
}

// SetMessage validates the message header of msg and starts decoding
// from its first field. The values section must be a multiple of 4
// bytes long (and empty when there are no tags), so that every
// accepted message re-encodes to exactly msg.
func (d *DecodeState) SetMessage(msg []byte) {
	if len(msg) < 4 {
		d.Abort(ErrShortHeader)
	}
	d.n = binary.LittleEndian.Uint32(msg)
	if d.n > MaxTags {
		d.Abort(ErrTooManyTags)
	}
	if d.n == 0 {
		if len(msg) != 4 {
			d.Abort(ErrBadOffset)
		}
		d.hdr, d.body = msg[:4], msg[4:]
		d.i = 0
		return
	}
	hdrLen := 8 * d.n
	if uint32(len(msg)) < hdrLen {
		d.Abort(ErrShortHeader)
	}
	valuesLen := uint32(len(msg)) - hdrLen
	if valuesLen%4 != 0 {
		d.Abort(ErrBadOffset)
	}

	var prevTag Tag
	var prevOff uint32
	for i := uint32(0); i < d.n; i++ {
		tag := Tag(binary.LittleEndian.Uint32(msg[4*d.n+4*i:]))
		if i > 0 {
			if tag <= prevTag {
				d.Abort(ErrUnsortedTags)
			}
			off := binary.LittleEndian.Uint32(msg[4*i:])
			if off%4 != 0 || off < prevOff || off > valuesLen {
				d.Abort(ErrBadOffset)
			}
			prevOff = off
		}
		prevTag = tag
	}
	d.hdr = msg[0:hdrLen]
	d.body = msg[hdrLen:]
	d.i = 0
}

// field returns the i-th tag/value pair. SetMessage must already have
// validated the header's offsets.
func (d *DecodeState) field(i uint32) (Tag, []byte) {
	tag := Tag(binary.LittleEndian.Uint32(d.hdr[d.n*4+i*4:]))
	start, end := uint32(0), uint32(len(d.body))
	if i > 0 {
		start = binary.LittleEndian.Uint32(d.hdr[i*4:])
	}
	if i+1 < d.n {
		end = binary.LittleEndian.Uint32(d.hdr[(i+1)*4:])
	}
	if end < start || end > uint32(len(d.body)) {
		d.Abort(ErrUnderflowValues)
	}
	return tag, d.body[start:end]
}

// Bytes advances through the fields of the message until it finds t
// and stores a slice to the corresponding data in p. The stored slice
// aliases the message buffer. If t is absent, p is left untouched and
// the cursor stops at the first field past where t would have sorted.
func (d *DecodeState) Bytes(t Tag, p *[]byte) {
	for d.i < d.n {
		tag, value := d.field(d.i)
		if tag > t {
			return
		}
		d.i++
		if tag == t {
			*p = value
			return
		}
	}
}

// RequireBytes is like Bytes, but aborts with a "missing tag" error if
// t is absent.
func (d *DecodeState) RequireBytes(t Tag, p *[]byte) {
	d.Bytes(t, p)
	if *p == nil {
		d.Abort(fmt.Errorf("wire: missing required tag %v", t))
	}
}

// Uint32 advances through the fields of the message until it finds t
// and stores the corresponding value as a uint32 in p. t is mandatory.
func (d *DecodeState) Uint32(t Tag, p *uint32) {
	var buf []byte
	d.RequireBytes(t, &buf)
	if len(buf) != 4 {
		d.Abort(ErrBadFixedSize)
	}
	*p = binary.LittleEndian.Uint32(buf)
}

// Uint64 advances through the fields of the message until it finds t
// and stores the corresponding value as a uint64 in p. t is mandatory.
func (d *DecodeState) Uint64(t Tag, p *uint64) {
	var buf []byte
	d.RequireBytes(t, &buf)
	if len(buf) != 8 {
		d.Abort(ErrBadFixedSize)
	}
	*p = binary.LittleEndian.Uint64(buf)
}

// Bytes32 advances through the fields of the message until it finds t
// and stores the corresponding 32-byte value into p. t is mandatory.
func (d *DecodeState) Bytes32(t Tag, p *[32]byte) {
	var buf []byte
	d.RequireBytes(t, &buf)
	if len(buf) != 32 {
		d.Abort(ErrBadFixedSize)
	}
	copy((*p)[:], buf)
}

// Bytes64 advances through the fields of the message until it finds t
// and stores the corresponding 64-byte value into p. t is mandatory.
func (d *DecodeState) Bytes64(t Tag, p *[64]byte) {
	var buf []byte
	d.RequireBytes(t, &buf)
	if len(buf) != 64 {
		d.Abort(ErrBadFixedSize)
	}
	copy((*p)[:], buf)
}

// Uint32Slice advances through the fields of the message until it
// finds t and decodes its value as a list of little-endian uint32s.
// t is optional; *p is left nil if absent.
func (d *DecodeState) Uint32Slice(t Tag, p *[]uint32) {
	var buf []byte
	d.Bytes(t, &buf)
	if buf == nil {
		return
	}
	if len(buf)%4 != 0 {
		d.Abort(ErrBadFixedSize)
	}
	out := make([]uint32, len(buf)/4)
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	*p = out
}

// RequireUint32Slice is like Uint32Slice, but t is mandatory and must
// be non-empty.
func (d *DecodeState) RequireUint32Slice(t Tag, p *[]uint32) {
	d.Uint32Slice(t, p)
	if len(*p) == 0 {
		d.Abort(fmt.Errorf("wire: missing required tag %v", t))
	}
}

// Message advances through the fields of the message until it finds
// t, validates that its value decodes as a nested message (within
// MaxNestingDepth), and calls f on it. raw is set to the undecoded
// submessage bytes (aliasing the message buffer). t is mandatory.
func (d *DecodeState) Message(t Tag, raw *[]byte, f func(*DecodeState)) {
	var buf []byte
	d.RequireBytes(t, &buf)
	if d.depth+1 > MaxNestingDepth {
		d.Abort(ErrNestingTooDeep)
	}
	if len(buf) < 4 {
		d.Abort(ErrBadNesting)
	}
	st := &DecodeState{err: d.err, depth: d.depth + 1}
	st.SetMessage(buf)
	f(st)
	*raw = buf
}

// Done aborts with ErrUnknownMandatoryTag if the message has fields
// past the decoder's cursor, i.e. tags the caller never consumed. Call
// this after decoding a message whose tag set spec.md treats as
// closed (Request, SREP, DELE, CERT).
func (d *DecodeState) Done() {
	if d.i < d.n {
		tag, _ := d.field(d.i)
		d.Abort(fmt.Errorf("%w: %v", ErrUnknownMandatoryTag, tag))
	}
}
