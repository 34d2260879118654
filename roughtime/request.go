package roughtime

import (
	"errors"
	"sort"

	"github.com/int08h/roughenough/internal/wire"
)

// ErrNotAscending is returned when a VER/VERS list isn't strictly
// ascending.
var ErrNotAscending = errors.New("roughtime: version list not strictly ascending")

// TypeRequest and TypeResponse are the wire values of the TYPE tag
// (spec.md §3).
const (
	TypeRequest  uint32 = 0
	TypeResponse uint32 = 1
)

// Request is a client's query: the versions it supports, a fresh
// nonce, and optionally the server identity it expects to answer.
type Request struct {
	Versions []uint32 // ascending, non-empty
	Nonce    Nonce
	Srv      *[32]byte // optional SRV commitment
}

// Encode serializes r as an exactly RequestFrameLen-byte framed
// datagram, per spec.md §3: VER, NONC, TYPE=0, optional SRV, then ZZZZ
// padding sized to make the total exactly 1024 bytes.
func (r *Request) Encode() ([]byte, error) {
	if len(r.Versions) == 0 {
		return nil, errors.New("roughtime: request has no supported versions")
	}
	if !ascending(r.Versions) {
		return nil, ErrNotAscending
	}

	n := uint32(3) // VER, NONC, TYPE
	if r.Srv != nil {
		n++
	}
	n++ // ZZZZ

	// Size everything but ZZZZ to compute how much padding is needed.
	fixedLen := 4*len(r.Versions) + 32 + 4
	if r.Srv != nil {
		fixedLen += 32
	}
	headerLen := 8 * n
	padLen := wire.RequestFrameLen - wire.FrameHeaderLen - int(headerLen) - fixedLen
	if padLen < 0 {
		return nil, errors.New("roughtime: request fields too large to fit in 1024-byte frame")
	}

	msg := wire.Encode(wire.RequestFrameLen, func(st *wire.EncodeState) {
		st.NTags(n)
		st.Uint32Slice(wire.TagVER, r.Versions)
		if r.Srv != nil {
			st.Bytes32(wire.TagSRV, *r.Srv)
		}
		st.Bytes32(wire.TagNONC, [32]byte(r.Nonce))
		st.Uint32(wire.TagTYPE, TypeRequest)
		st.RawBytes(wire.TagZZZZ, make([]byte, padLen))
	})
	return wire.Frame(msg), nil
}

// DecodeRequest parses a framed request datagram. It enforces the
// required tag set and rejects anything that isn't exactly
// RequestFrameLen bytes (spec.md §4.4).
func DecodeRequest(framed []byte) (*Request, error) {
	if len(framed) != wire.RequestFrameLen {
		return nil, errors.New("roughtime: request frame is not 1024 bytes")
	}
	msg, err := wire.Unframe(framed)
	if err != nil {
		return nil, err
	}

	var r Request
	var typ uint32
	var srv [32]byte
	var hasSrv bool
	err = wire.Decode(msg, func(st *wire.DecodeState) {
		st.RequireUint32Slice(wire.TagVER, &r.Versions)
		var srvBuf []byte
		st.Bytes(wire.TagSRV, &srvBuf)
		if srvBuf != nil {
			hasSrv = true
			copy(srv[:], srvBuf)
		}
		st.Bytes32(wire.TagNONC, (*[32]byte)(&r.Nonce))
		st.Uint32(wire.TagTYPE, &typ)
		var zzzz []byte
		st.RequireBytes(wire.TagZZZZ, &zzzz)
		st.Done()
	})
	if err != nil {
		return nil, err
	}
	if typ != TypeRequest {
		return nil, errors.New("roughtime: request TYPE is not 0")
	}
	if !ascending(r.Versions) {
		return nil, ErrNotAscending
	}
	if hasSrv {
		r.Srv = &srv
	}
	return &r, nil
}

func ascending(v []uint32) bool {
	return sort.SliceIsSorted(v, func(i, j int) bool { return v[i] < v[j] }) && allDistinct(v)
}

func allDistinct(v []uint32) bool {
	for i := 1; i < len(v); i++ {
		if v[i] == v[i-1] {
			return false
		}
	}
	return true
}
