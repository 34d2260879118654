// Package pq implements the optional post-quantum CERQ/SIGQ
// authentication path (spec.md §9): a Falcon-512 signature layered on
// top of the Ed25519 delegation chain, so that a server can prove its
// delegation to clients that no longer trust Ed25519 alone, without
// breaking interoperability with clients that do.
//
// Grounded on spec.md §9's summary, since no repo in this corpus
// implements Roughtime itself; the signature primitive comes from
// github.com/cloudflare/circl/sign/falcon512, the pack's only
// post-quantum signature library (pulled in by caddyserver-caddy and
// luxfi-consensus for TLS).
package pq

import (
	"crypto/rand"
	"errors"

	"github.com/cloudflare/circl/sign/falcon512"

	"github.com/int08h/roughenough/internal/wire"
	"github.com/int08h/roughenough/roughtime"
)

// contextCERQ is the domain-separation prefix for SIGQ, per spec.md §9:
// Falcon signs "RoughTime v1 CERQ\0" || SIG_bytes || DELE_bytes.
var contextCERQ = []byte("RoughTime v1 CERQ\x00")

// PublicKey and PrivateKey are Falcon-512 long-term keys, distinct from
// (and additional to) the Ed25519 long-term key used for CERT.
type PublicKey = falcon512.PublicKey
type PrivateKey = falcon512.PrivateKey

// GenerateKey creates a fresh Falcon-512 keypair for a server opting
// into the post-quantum extension.
func GenerateKey() (PublicKey, PrivateKey, error) {
	return falcon512.GenerateKey(rand.Reader)
}

// Certificate is the CERQ envelope: an Ed25519 SIG over DELE, plus a
// Falcon-512 SIGQ over the concatenation of SIG and DELE's raw bytes.
// Field order on the wire is SIG, DELE, SIGQ.
type Certificate struct {
	Signature       roughtime.Signature // Ed25519 SIG over DELE
	Delegation      roughtime.Delegation
	FalconSignature []byte // Falcon-512 SIGQ, falcon512.SignatureSize bytes

	deleRaw []byte
}

// ErrFalconSignatureInvalid means SIGQ does not verify against the
// server's Falcon-512 public key.
var ErrFalconSignatureInvalid = errors.New("pq: SIGQ does not verify")

// Encode builds a CERQ for dele, given both the Ed25519 SIG (already
// computed the same way as a plain CERT's) and the Falcon private key
// to sign the combination with.
func Encode(dele roughtime.Delegation, edSig roughtime.Signature, falconPriv PrivateKey) []byte {
	deleRaw := dele.Encode()
	falconSig := signFalcon(falconPriv, edSig, deleRaw)
	return wire.Encode(falcon512.SignatureSize+256, func(st *wire.EncodeState) {
		st.NTags(3)
		st.Bytes64(wire.TagSIG, edSig)
		st.RawBytes(wire.TagDELE, deleRaw)
		st.RawBytes(wire.TagSIGQ, pad4(falconSig))
	})
}

func signFalcon(priv PrivateKey, edSig roughtime.Signature, deleRaw []byte) []byte {
	buf := make([]byte, 0, len(contextCERQ)+64+len(deleRaw))
	buf = append(buf, contextCERQ...)
	buf = append(buf, edSig[:]...)
	buf = append(buf, deleRaw...)
	sig := make([]byte, falcon512.SignatureSize)
	falcon512.SignTo(&priv, buf, sig)
	return sig
}

// Decode parses a CERQ submessage. st must already be positioned at the
// CERQ's nested fields, e.g. via wire.DecodeState.Message.
func Decode(st *wire.DecodeState) *Certificate {
	var c Certificate
	st.Bytes64(wire.TagSIG, (*[64]byte)(&c.Signature))
	var deleRaw []byte
	st.Message(wire.TagDELE, &deleRaw, func(inner *wire.DecodeState) {
		decodeDelegation(inner, &c.Delegation)
	})
	c.deleRaw = deleRaw
	var sigqRaw []byte
	st.RequireBytes(wire.TagSIGQ, &sigqRaw)
	st.Done()
	c.FalconSignature = unpad4(sigqRaw)
	return &c
}

func decodeDelegation(st *wire.DecodeState, d *roughtime.Delegation) {
	// Mirrors roughtime.decodeDelegation, duplicated because that
	// function is unexported across package boundaries.
	st.Bytes32(wire.TagPUBK, (*[32]byte)(&d.PublicKey))
	st.Uint64(wire.TagMINT, &d.Min)
	st.Uint64(wire.TagMAXT, &d.Max)
	st.Done()
}

// Verify checks both legs of the chain: CERT.SIG against the Ed25519
// long-term key, and SIGQ against the Falcon-512 long-term key.
func (c *Certificate) Verify(edLongTerm roughtime.PublicKey, falconLongTerm PublicKey) bool {
	if !roughtime.VerifyDelegation(edLongTerm, c.deleRaw, c.Signature) {
		return false
	}
	buf := make([]byte, 0, len(contextCERQ)+64+len(c.deleRaw))
	buf = append(buf, contextCERQ...)
	buf = append(buf, c.Signature[:]...)
	buf = append(buf, c.deleRaw...)
	return falcon512.Verify(&falconLongTerm, buf, c.FalconSignature)
}

// pad4/unpad4 round SIGQ's length up to a multiple of 4, as the wire
// format requires for every field; the original length is recovered
// from the leading 4-byte little-endian count unpad4 strips back off.
func pad4(b []byte) []byte {
	out := make([]byte, 4, 4+((len(b)+3)/4)*4)
	out[0] = byte(len(b))
	out[1] = byte(len(b) >> 8)
	out[2] = byte(len(b) >> 16)
	out[3] = byte(len(b) >> 24)
	out = append(out, b...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

func unpad4(b []byte) []byte {
	if len(b) < 4 {
		return nil
	}
	n := int(b[0]) | int(b[1])<<8 | int(b[2])<<16 | int(b[3])<<24
	if n < 0 || 4+n > len(b) {
		return nil
	}
	return b[4 : 4+n]
}
