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
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tcs := []struct {
		in        string
		wantTags  []string
		wantBytes []string
		wantErr   bool
	}{
		// No data
		{"", nil, nil, true},
		// Data too short
		{"010203", nil, nil, true},
		// No fields
		{"00000000", nil, nil, false},
		// Missing tags
		{"01000000", nil, nil, true},
		// Empty field
		{"0100000054455354", []string{"TEST"}, []string{""}, false},
		// Single field whose value isn't a multiple of 4: it could not
		// be re-encoded byte-identically, so it is rejected.
		{"0100000054455354464f4f", nil, nil, true},
		// Single field
		{"0100000054455354464f4f0a", []string{"TEST"}, []string{"FOO\n"}, false},
		// Wrong order of tags
		{"0200000004000000454747535350414d464f4f0a4241520a", nil, nil, true},
		// Two fields
		{"02000000040000005350414d45474753464f4f0a4241520a", []string{"SPAM", "EGGS"}, []string{"FOO\n", "BAR\n"}, false},
		// Wrong order of offsets
		{"0300000008000000040000005350414d4547475354455354464f4f0a4241520a", nil, nil, true},
		// Three fields
		{"0300000004000000080000005350414d4547475354455354464f4f0a4241520a", []string{"SPAM", "EGGS", "TEST"}, []string{"FOO\n", "BAR\n", ""}, false},
	}
	for _, tc := range tcs {
		check := func(st *DecodeState) {
			for i, stag := range tc.wantTags {
				var content []byte
				tag := makeTag(stag)
				st.Bytes(tag, &content)
				if !bytes.Equal(content, []byte(tc.wantBytes[i])) {
					t.Errorf("st.Bytes(%v) = %x, want %x", tag, content, tc.wantBytes[i])
				}
			}
			st.Done()
		}
		err := Decode(hexBytes(tc.in), check)
		if err != nil && !tc.wantErr {
			t.Errorf("Decode(%q) = %v, want nil", tc.in, err)
		}
		if err == nil && tc.wantErr {
			t.Errorf("Decode(%q) = <nil>, want error", tc.in)
		}
	}
}

func TestDecodeTooManyTags(t *testing.T) {
	var hdr [4]byte
	putLE32(hdr[:], MaxTags+1)
	err := Decode(hdr[:], func(st *DecodeState) {})
	require.ErrorIs(t, err, ErrTooManyTags)
}

func TestDecodeNestingTooDeep(t *testing.T) {
	// Build a message nested one level deeper than MaxNestingDepth
	// allows and confirm the decoder rejects it.
	msg := Encode(64, func(st *EncodeState) {
		st.NTags(1)
		st.Uint32(TagVER, 1)
	})
	for i := 0; i < MaxNestingDepth+1; i++ {
		msg = Encode(1024, func(st *EncodeState) {
			st.NTags(1)
			st.RawBytes(TagDELE, msg)
		})
	}

	var decodeLevel func(st *DecodeState, remaining int)
	decodeLevel = func(st *DecodeState, remaining int) {
		var raw []byte
		st.Message(TagDELE, &raw, func(inner *DecodeState) {
			if remaining > 0 {
				decodeLevel(inner, remaining-1)
			}
		})
	}
	err := Decode(msg, func(st *DecodeState) {
		decodeLevel(st, MaxNestingDepth+1)
	})
	require.ErrorIs(t, err, ErrNestingTooDeep)
}

func TestEncode(t *testing.T) {
	tcs := []struct {
		inTags  []string
		inBytes []string
		want    string
	}{
		{nil, nil, "00000000"},
		{[]string{"TEST"}, []string{""}, "0100000054455354"},
		{[]string{"TEST"}, []string{"FOO\n"}, "0100000054455354464f4f0a"},
		{[]string{"SPAM", "EGGS"}, []string{"FOO\n", "BAR\n"}, "02000000040000005350414d45474753464f4f0a4241520a"},
		{[]string{"SPAM", "EGGS", "TEST"}, []string{"FOO\n", "BAR\n", ""}, "0300000004000000080000005350414d4547475354455354464f4f0a4241520a"},
	}
	for _, tc := range tcs {
		enc := func(st *EncodeState) {
			st.NTags(uint32(len(tc.inTags)))
			for i, stag := range tc.inTags {
				tag := makeTag(stag)
				content := st.Bytes(tag, len(tc.inBytes[i]))
				copy(content, tc.inBytes[i])
			}
		}
		msg := Encode(1024, enc)
		if want := hexBytes(tc.want); !bytes.Equal(msg, want) {
			t.Errorf("Encode(%v) = %x, want %x", tc.inTags, msg, want)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msg := Encode(1024, func(st *EncodeState) {
		st.NTags(3)
		st.Uint32(makeTag("AAAA"), 1)
		st.Bytes32(makeTag("BBBB"), [32]byte{1, 2, 3})
		st.Message(makeTag("CCCC"), func(inner *EncodeState) {
			inner.NTags(1)
			inner.Uint64(makeTag("DDDD"), 42)
		})
	})

	var a uint32
	var b [32]byte
	var cRaw []byte
	var d uint64
	err := Decode(msg, func(st *DecodeState) {
		st.Uint32(makeTag("AAAA"), &a)
		st.Bytes32(makeTag("BBBB"), &b)
		st.Message(makeTag("CCCC"), &cRaw, func(inner *DecodeState) {
			inner.Uint64(makeTag("DDDD"), &d)
			inner.Done()
		})
		st.Done()
	})
	require.NoError(t, err)
	require.Equal(t, uint32(1), a)
	require.Equal(t, [32]byte{1, 2, 3}, b)
	require.Equal(t, uint64(42), d)

	// Re-encoding decoded data must reproduce the original bytes
	// (canonicality, spec.md §8 property 1).
	reenc := Encode(1024, func(st *EncodeState) {
		st.NTags(3)
		st.Uint32(makeTag("AAAA"), a)
		st.Bytes32(makeTag("BBBB"), b)
		st.RawBytes(makeTag("CCCC"), cRaw)
	})
	require.Equal(t, msg, reenc)
}

func TestFrame(t *testing.T) {
	msg := []byte("hello")
	framed := Frame(msg)
	require.Len(t, framed, FrameHeaderLen+len(msg))

	got, err := Unframe(framed)
	require.NoError(t, err)
	require.Equal(t, msg, got)

	_, err = Unframe([]byte("short"))
	require.ErrorIs(t, err, ErrBadMagic)

	bad := append([]byte(nil), framed...)
	bad[0] ^= 0xff
	_, err = Unframe(bad)
	require.ErrorIs(t, err, ErrBadMagic)

	truncated := framed[:len(framed)-1]
	_, err = Unframe(truncated)
	require.ErrorIs(t, err, ErrBadLength)
}

// FuzzDecode is the modern go test -fuzz successor to the package's
// old +build gofuzz harness: no accepted input may panic, and any
// successfully decoded message must round-trip canonically.
func FuzzDecode(f *testing.F) {
	f.Add([]byte{})
	f.Add(hexBytes("00000000"))
	f.Add(hexBytes("0100000054455354464f4f0a"))
	f.Fuzz(func(t *testing.T, data []byte) {
		var tags []Tag
		var vals [][]byte
		err := Decode(data, func(st *DecodeState) {
			for st.i < st.n {
				tag, val := st.field(st.i)
				tags = append(tags, tag)
				vals = append(vals, val)
				st.i++
			}
		})
		if err != nil {
			return
		}
		reenc := Encode(len(data), func(st *EncodeState) {
			st.NTags(uint32(len(tags)))
			for i, tag := range tags {
				st.RawBytes(tag, vals[i])
			}
		})
		if !bytes.Equal(reenc, data) {
			t.Fatalf("Decode(%x) did not round-trip: re-encoded as %x", data, reenc)
		}
	})
}

func hexBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

func makeTag(s string) Tag {
	if len(s) == 0 || len(s) > 4 {
		panic(errors.New("invalid tag"))
	}
	return NewTag(s)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
