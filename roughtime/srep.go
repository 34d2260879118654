package roughtime

import (
	"errors"

	"github.com/int08h/roughenough/internal/wire"
)

// SignedResponse is the SREP submessage: the server's time reading and
// the Merkle root it signs over (spec.md §3). Field order on the wire
// is VER, RADI, MIDP, VERS, ROOT.
type SignedResponse struct {
	Version  uint32   // the single version chosen for this response
	Radius   uint32   // accuracy radius in seconds, >= 1
	Midpoint uint64   // Unix seconds
	Versions []uint32 // server's full supported-version set
	Root     Root
}

// Encode returns SignedResponse's raw (unnested) wire bytes.
func (s *SignedResponse) Encode() []byte {
	return wire.Encode(512, func(st *wire.EncodeState) {
		st.NTags(5)
		st.Uint32(wire.TagVER, s.Version)
		st.Uint32(wire.TagRADI, s.Radius)
		st.Uint64(wire.TagMIDP, s.Midpoint)
		st.Uint32Slice(wire.TagVERS, s.Versions)
		st.Bytes32(wire.TagROOT, s.Root)
	})
}

func decodeSignedResponse(st *wire.DecodeState, s *SignedResponse) {
	st.Uint32(wire.TagVER, &s.Version)
	st.Uint32(wire.TagRADI, &s.Radius)
	st.Uint64(wire.TagMIDP, &s.Midpoint)
	st.RequireUint32Slice(wire.TagVERS, &s.Versions)
	st.Bytes32(wire.TagROOT, (*[32]byte)(&s.Root))
	st.Done()
}

// Validate checks spec.md §3's SREP invariants: a nonzero radius and
// that Version is among the advertised Versions (downgrade defense,
// spec.md §8 property 8).
func (s *SignedResponse) Validate() error {
	if s.Radius < 1 {
		return errors.New("roughtime: SREP.RADI must be >= 1")
	}
	found := false
	for _, v := range s.Versions {
		if v == s.Version {
			found = true
			break
		}
	}
	if !found {
		return ErrVersionDowngrade
	}
	return nil
}

// ErrVersionDowngrade is returned when a response's chosen version
// isn't present in its own advertised version set.
var ErrVersionDowngrade = errors.New("roughtime: SREP.VER not in SREP.VERS")
