package roughtime

import (
	"errors"

	"github.com/int08h/roughenough/internal/wire"
)

// Delegation is the DELE submessage: the long-term key's signed
// statement that PublicKey (the online key) is authorized to sign
// responses with MIDP values in [Min, Max] (spec.md §3).
//
// Field order on the wire is PUBK, MINT, MAXT — the ascending order of
// their tag values, not the order spec.md's prose lists them in.
type Delegation struct {
	PublicKey PublicKey
	Min       uint64 // earliest allowed MIDP, Unix seconds
	Max       uint64 // latest allowed MIDP, Unix seconds
}

// Encode returns Delegation's raw (unnested) wire bytes.
func (d *Delegation) Encode() []byte {
	return wire.Encode(256, func(st *wire.EncodeState) {
		st.NTags(3)
		st.Bytes32(wire.TagPUBK, d.PublicKey)
		st.Uint64(wire.TagMINT, d.Min)
		st.Uint64(wire.TagMAXT, d.Max)
	})
}

func decodeDelegation(st *wire.DecodeState, d *Delegation) {
	st.Bytes32(wire.TagPUBK, (*[32]byte)(&d.PublicKey))
	st.Uint64(wire.TagMINT, &d.Min)
	st.Uint64(wire.TagMAXT, &d.Max)
	st.Done()
}

// Validate checks spec.md §3's DELE invariant (MINT <= MAXT). Whether
// a given midp falls in [Min, Max] is checked by Covers.
func (d *Delegation) Validate() error {
	if d.Min > d.Max {
		return errors.New("roughtime: DELE.MINT > DELE.MAXT")
	}
	return nil
}

// Covers reports whether midp falls within [Min, Max], inclusive.
func (d *Delegation) Covers(midp uint64) bool {
	return midp >= d.Min && midp <= d.Max
}
