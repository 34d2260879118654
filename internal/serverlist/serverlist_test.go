package serverlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const validDoc = `{
	"servers": [
		{
			"name": "Test",
			"publicKeyType": "ed25519",
			"publicKey": "etPaaIxcBMY1oUeGpwvPMCJMwlRVNxv51KK/tktoJTQ=",
			"addresses": [
				{"protocol": "udp", "address": "roughtime.example.com:2002"}
			]
		}
	]
}`

func TestReadValidDocument(t *testing.T) {
	l, err := Read(strings.NewReader(validDoc))
	require.NoError(t, err)
	require.Len(t, l.Servers, 1)

	addr, ok := l.Servers[0].UDPAddress()
	require.True(t, ok)
	require.Equal(t, "roughtime.example.com:2002", addr)

	pk, err := l.Servers[0].PublicKeyBytes()
	require.NoError(t, err)
	require.NotZero(t, pk)
}

func TestReadRejectsUnsupportedKeyType(t *testing.T) {
	doc := strings.Replace(validDoc, `"ed25519"`, `"rsa"`, 1)
	_, err := Read(strings.NewReader(doc))
	require.Error(t, err)
}

func TestReadRejectsMalformedKey(t *testing.T) {
	doc := strings.Replace(validDoc, `"etPaaIxcBMY1oUeGpwvPMCJMwlRVNxv51KK/tktoJTQ="`, `"not-base64!!"`, 1)
	_, err := Read(strings.NewReader(doc))
	require.Error(t, err)
}

func TestUDPAddressMissing(t *testing.T) {
	s := Server{Addresses: []Address{{Protocol: "tcp", Address: "x:1"}}}
	_, ok := s.UDPAddress()
	require.False(t, ok)
}
