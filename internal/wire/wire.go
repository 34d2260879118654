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

// Package wire implements the Roughtime tag/length/value message
// format: an ordered mapping from 4-byte Tag to byte string, plus the
// 8-byte-magic/4-byte-length framing layer around it.
package wire

import (
	"bytes"
	"encoding/binary"
	"strconv"
)

// Tag represents a wire-format tag: a 4-byte ASCII identifier,
// interpreted as a little-endian uint32 for ordering purposes. Names
// shorter than 4 characters are right-padded with zero bytes.
type Tag uint32

// NewTag builds a Tag from its ASCII name. Names longer than 4 bytes
// panic; this is only ever called with compile-time-constant names.
func NewTag(name string) Tag {
	if len(name) > 4 {
		panic("wire: tag name longer than 4 bytes: " + name)
	}
	var b [4]byte
	copy(b[:], name)
	return Tag(binary.LittleEndian.Uint32(b[:]))
}

// String implements fmt.Stringer, reversing NewTag.
func (t Tag) String() string {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(t))
	s := strconv.Quote(string(b[:]))
	return s[1 : len(s)-1]
}

// Roughtime protocol tags (spec.md §3).
var (
	TagVER  = NewTag("VER")
	TagNONC = NewTag("NONC")
	TagTYPE = NewTag("TYPE")
	TagSRV  = NewTag("SRV")
	TagZZZZ = NewTag("ZZZZ")
	TagSIG  = NewTag("SIG")
	TagPATH = NewTag("PATH")
	TagINDX = NewTag("INDX")
	TagCERT = NewTag("CERT")
	TagSREP = NewTag("SREP")
	TagDELE = NewTag("DELE")
	TagPUBK = NewTag("PUBK")
	TagMINT = NewTag("MINT")
	TagMAXT = NewTag("MAXT")
	TagROOT = NewTag("ROOT")
	TagRADI = NewTag("RADI")
	TagMIDP = NewTag("MIDP")
	TagVERS = NewTag("VERS")
	TagSIGQ = NewTag("SIGQ")
	TagCERQ = NewTag("CERQ")
)

// MaxTags bounds the number of tags a single message may carry
// (spec.md §4.1, "hard cap to bound allocations and ordering checks").
const MaxTags = 1024

// MaxNestingDepth bounds how many Message-within-Message levels a
// decode may recurse through (spec.md §3 and §5).
const MaxNestingDepth = 3

// Magic is the 8-byte frame preamble.
var Magic = [8]byte{'R', 'O', 'U', 'G', 'H', 'T', 'I', 'M'}

// FrameHeaderLen is len(Magic) plus the 4-byte length field.
const FrameHeaderLen = len(Magic) + 4

// RequestFrameLen is the mandatory total size of a framed request
// datagram (spec.md §3).
const RequestFrameLen = 1024

// Frame prepends the magic and length header to msg.
func Frame(msg []byte) []byte {
	buf := make([]byte, FrameHeaderLen+len(msg))
	copy(buf, Magic[:])
	binary.LittleEndian.PutUint32(buf[len(Magic):], uint32(len(msg)))
	copy(buf[FrameHeaderLen:], msg)
	return buf
}

// Unframe validates the frame header of b and returns the enclosed
// message bytes (aliasing b).
func Unframe(b []byte) ([]byte, error) {
	if len(b) < FrameHeaderLen {
		return nil, ErrBadMagic
	}
	if !bytes.Equal(b[:len(Magic)], Magic[:]) {
		return nil, ErrBadMagic
	}
	n := binary.LittleEndian.Uint32(b[len(Magic):FrameHeaderLen])
	if int(n) != len(b)-FrameHeaderLen {
		return nil, ErrBadLength
	}
	return b[FrameHeaderLen:], nil
}
