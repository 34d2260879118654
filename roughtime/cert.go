package roughtime

import (
	"github.com/int08h/roughenough/internal/wire"
)

// Certificate is the CERT envelope: the long-term key's signature over
// a Delegation (spec.md §3). Field order on the wire is SIG, DELE.
type Certificate struct {
	Signature  Signature
	Delegation Delegation

	deleRaw []byte // the exact bytes CERT.SIG was computed over
}

// EncodeCertificate builds a CERT for dele carrying sig, the long-term
// key's signature over dele's raw bytes (see SignDelegation).
func EncodeCertificate(dele Delegation, sig Signature) []byte {
	deleRaw := dele.Encode()
	return wire.Encode(256, func(st *wire.EncodeState) {
		st.NTags(2)
		st.Bytes64(wire.TagSIG, sig)
		st.RawBytes(wire.TagDELE, deleRaw)
	})
}

func decodeCertificate(st *wire.DecodeState, c *Certificate) {
	st.Bytes64(wire.TagSIG, (*[64]byte)(&c.Signature))
	var raw []byte
	st.Message(wire.TagDELE, &raw, func(inner *wire.DecodeState) {
		decodeDelegation(inner, &c.Delegation)
	})
	c.deleRaw = raw
	st.Done()
}

// Verify checks CERT.SIG against the long-term public key.
func (c *Certificate) Verify(longTermPub PublicKey) bool {
	return VerifyDelegation(longTermPub, c.deleRaw, c.Signature)
}
