package server

import (
	"crypto/rand"
	"fmt"
	"time"

	"golang.org/x/crypto/ed25519"

	"github.com/int08h/roughenough/backend"
	"github.com/int08h/roughenough/internal/config"
	"github.com/int08h/roughenough/roughtime"
)

// KeyManager holds the long-term identity (via a backend.SigningBackend)
// and the online keypair it delegates to, per spec.md §4.2. It
// produces exactly one CERT per process lifetime; the online private
// key lives in process memory, while the long-term key is reached only
// through the backend and never held by the KeyManager itself.
type KeyManager struct {
	longTerm backend.SigningBackend

	onlinePub  roughtime.PublicKey
	onlinePriv ed25519.PrivateKey
	cert       roughtime.Certificate
	certRaw    []byte
}

// Bootstrap generates a fresh online keypair, builds its DELE validity
// window as [now-skewTolerance, now+onlineValidity], and asks the
// backend for exactly one delegation signature. Backend errors here are
// fatal, per spec.md §4.2's failure semantics.
func Bootstrap(longTerm backend.SigningBackend, now time.Time, cfg *config.Config) (*KeyManager, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("server: generating online keypair: %w", err)
	}

	km := &KeyManager{longTerm: longTerm, onlinePriv: priv}
	copy(km.onlinePub[:], pub)

	dele := roughtime.Delegation{
		PublicKey: km.onlinePub,
		Min:       uint64(now.Add(-cfg.SkewTolerance()).Unix()),
		Max:       uint64(now.Add(cfg.OnlineKeyValidity()).Unix()),
	}
	if err := dele.Validate(); err != nil {
		return nil, fmt.Errorf("server: building delegation: %w", err)
	}

	deleRaw := dele.Encode()
	sig := longTerm.SignDelegation(deleRaw)
	km.cert = roughtime.Certificate{Signature: sig, Delegation: dele}
	km.certRaw = roughtime.EncodeCertificate(dele, sig)

	return km, nil
}

// Certificate returns the bootstrapped CERT envelope (raw wire bytes,
// ready to embed in every response this process sends).
func (km *KeyManager) Certificate() []byte {
	return km.certRaw
}

// Delegation returns the current delegation, for checking MIDP against
// its validity window.
func (km *KeyManager) Delegation() roughtime.Delegation {
	return km.cert.Delegation
}

// SignResponse signs srepBytes (an SREP submessage's raw wire bytes)
// with the online private key.
func (km *KeyManager) SignResponse(srepBytes []byte) roughtime.Signature {
	return roughtime.SignResponse(km.onlinePriv, srepBytes)
}

// Expired reports whether the delegation's validity window has passed
// now, meaning the server needs a fresh Bootstrap before issuing more
// responses.
func (km *KeyManager) Expired(now time.Time) bool {
	return uint64(now.Unix()) > km.cert.Delegation.Max
}
