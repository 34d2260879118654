package pq

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ed25519"

	"github.com/int08h/roughenough/internal/wire"
	"github.com/int08h/roughenough/roughtime"
)

func TestCERQEncodeDecodeRoundTrip(t *testing.T) {
	edPub, edPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var longTerm roughtime.PublicKey
	copy(longTerm[:], edPub)

	falconPub, falconPriv, err := GenerateKey()
	require.NoError(t, err)

	dele := roughtime.Delegation{Min: 100, Max: 200}
	edSig := roughtime.SignDelegation(edPriv, dele.Encode())

	cerq := Encode(dele, edSig, falconPriv)

	var c *Certificate
	err = wire.Decode(cerq, func(st *wire.DecodeState) {
		c = Decode(st)
		st.Done()
	})
	require.NoError(t, err)
	require.Equal(t, dele, c.Delegation)
	require.True(t, c.Verify(longTerm, falconPub))
}

func TestCERQVerifyRejectsTamperedFalconSignature(t *testing.T) {
	edPub, edPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var longTerm roughtime.PublicKey
	copy(longTerm[:], edPub)

	falconPub, falconPriv, err := GenerateKey()
	require.NoError(t, err)

	dele := roughtime.Delegation{Min: 100, Max: 200}
	edSig := roughtime.SignDelegation(edPriv, dele.Encode())
	cerq := Encode(dele, edSig, falconPriv)

	var c *Certificate
	err = wire.Decode(cerq, func(st *wire.DecodeState) {
		c = Decode(st)
		st.Done()
	})
	require.NoError(t, err)

	c.FalconSignature[0] ^= 0xff
	require.False(t, c.Verify(longTerm, falconPub))
}
