// Package backend defines the SigningBackend capability (spec.md §6):
// the seam between the server's delegation-signing logic and wherever
// the long-term private key actually lives (in-process, a KMS, an SSH
// agent, a PKCS#11 token). Only an in-memory implementation ships
// here; the rest are out of scope.
package backend

import (
	"crypto/rand"

	"golang.org/x/crypto/ed25519"

	"github.com/int08h/roughenough/roughtime"
)

// SigningBackend is the capability a long-term key holder exposes to
// the server: it can report its public key and sign a delegation, but
// never hands over the private key itself.
type SigningBackend interface {
	// LongTermPublicKey returns the backend's Ed25519 public key.
	LongTermPublicKey() roughtime.PublicKey

	// SignDelegation signs the raw wire bytes of a Delegation, as the
	// CERT.SIG field (spec.md §4.2).
	SignDelegation(deleBytes []byte) roughtime.Signature
}

// InMemory is a SigningBackend holding the long-term private key
// directly in process memory. It exists for tests, local development,
// and deployments that accept that tradeoff; production deployments
// are expected to implement SigningBackend against a KMS or hardware
// key store instead.
type InMemory struct {
	priv ed25519.PrivateKey
	pub  roughtime.PublicKey
}

// NewInMemory wraps an existing Ed25519 private key as a SigningBackend.
func NewInMemory(priv ed25519.PrivateKey) *InMemory {
	var pub roughtime.PublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return &InMemory{priv: priv, pub: pub}
}

// GenerateInMemory creates a fresh Ed25519 keypair and wraps it.
func GenerateInMemory() (*InMemory, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	var pk roughtime.PublicKey
	copy(pk[:], pub)
	return &InMemory{priv: priv, pub: pk}, nil
}

func (b *InMemory) LongTermPublicKey() roughtime.PublicKey {
	return b.pub
}

func (b *InMemory) SignDelegation(deleBytes []byte) roughtime.Signature {
	return roughtime.SignDelegation(b.priv, deleBytes)
}
