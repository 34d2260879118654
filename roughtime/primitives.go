// Package roughtime implements the Roughtime data model: fixed-size
// wire primitives, the request/response message shapes, and the
// Merkle aggregation engine used to amortize a single signature over
// a batch of client requests.
//
// It is grounded on github.com/Merovius/notary's roughtime.go (the
// hashLeaf/hashNode domain separation and the Response/SignedResponse/
// Certificate/Delegation struct shapes), generalized to the full tag
// set and size bounds of spec.md.
package roughtime

import (
	"crypto/sha512"

	"golang.org/x/crypto/ed25519"
)

// Nonce is the 32 random bytes a client includes in every request, and
// which binds that request into the batch's Merkle tree.
type Nonce [32]byte

// Root is a 32-byte Merkle root, truncated SHA-512.
type Root [32]byte

// PublicKey is an Ed25519 public key.
type PublicKey [32]byte

// Signature is an Ed25519 signature.
type Signature [64]byte

// Signing contexts, spec.md §6. Both include the terminating NUL.
var (
	contextResponseSignature   = []byte("RoughTime v1 response signature\x00")
	contextDelegationSignature = []byte("RoughTime v1 delegation signature\x00")
)

// leafTweak and nodeTweak are the domain-separation prefixes for the
// Merkle hash function (spec.md §4.3).
const (
	leafTweak byte = 0x00
	nodeTweak byte = 0x01
)

// hashTruncated512 returns the first 32 bytes of SHA-512(b).
func hashTruncated512(b ...[]byte) Root {
	h := sha512.New()
	for _, p := range b {
		h.Write(p)
	}
	var sum [64]byte
	h.Sum(sum[:0])
	var r Root
	copy(r[:], sum[:32])
	return r
}

// HashLeaf computes a Merkle leaf hash over the full framed request
// datagram (magic + length + message), per spec.md §4.3: hashing the
// entire packet binds the transcript to the exact bytes the server
// saw.
func HashLeaf(framedRequest []byte) Root {
	return hashTruncated512([]byte{leafTweak}, framedRequest)
}

// HashNode combines two sibling Merkle hashes into their parent.
func HashNode(left, right Root) Root {
	return hashTruncated512([]byte{nodeTweak}, left[:], right[:])
}

// ServerCommitment computes the SRV tag value a client uses to pin a
// request to an expected server identity: the first 32 bytes of
// SHA-512(0xff || longTermPubKey).
func ServerCommitment(longTermPubKey PublicKey) [32]byte {
	return hashTruncated512([]byte{0xff}, longTermPubKey[:])
}

// SignDelegation signs a DELE submessage's raw bytes with the
// long-term private key, for embedding in a CERT.
func SignDelegation(priv ed25519.PrivateKey, deleBytes []byte) Signature {
	return sign(priv, contextDelegationSignature, deleBytes)
}

// VerifyDelegation verifies a CERT's SIG over DELE's raw bytes against
// the long-term public key.
func VerifyDelegation(pub PublicKey, deleBytes []byte, sig Signature) bool {
	return verify(pub, contextDelegationSignature, deleBytes, sig)
}

// SignResponse signs an SREP submessage's raw bytes with the online
// private key.
func SignResponse(priv ed25519.PrivateKey, srepBytes []byte) Signature {
	return sign(priv, contextResponseSignature, srepBytes)
}

// VerifyResponse verifies a response's SIG over SREP's raw bytes
// against the online public key carried in DELE.PUBK.
func VerifyResponse(pub PublicKey, srepBytes []byte, sig Signature) bool {
	return verify(pub, contextResponseSignature, srepBytes, sig)
}

func sign(priv ed25519.PrivateKey, ctx, msg []byte) Signature {
	buf := make([]byte, 0, len(ctx)+len(msg))
	buf = append(buf, ctx...)
	buf = append(buf, msg...)
	var sig Signature
	copy(sig[:], ed25519.Sign(priv, buf))
	return sig
}

func verify(pub PublicKey, ctx, msg []byte, sig Signature) bool {
	buf := make([]byte, 0, len(ctx)+len(msg))
	buf = append(buf, ctx...)
	buf = append(buf, msg...)
	return ed25519.Verify(ed25519.PublicKey(pub[:]), buf, sig[:])
}
