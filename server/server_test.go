package server

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/int08h/roughenough/backend"
	"github.com/int08h/roughenough/internal/config"
	"github.com/int08h/roughenough/internal/stats"
	"github.com/int08h/roughenough/internal/wire"
	"github.com/int08h/roughenough/roughtime"
)

func TestChooseVersion(t *testing.T) {
	v, ok := chooseVersion([]uint32{1, 2, 3}, []uint32{2, 3, 4})
	require.True(t, ok)
	require.Equal(t, uint32(3), v)

	_, ok = chooseVersion([]uint32{5}, []uint32{1, 2})
	require.False(t, ok)
}

func TestBootstrapProducesValidCertificate(t *testing.T) {
	b, err := backend.GenerateInMemory()
	require.NoError(t, err)

	cfg := config.Defaults()
	now := time.Unix(1700000000, 0)
	km, err := Bootstrap(b, now, &cfg)
	require.NoError(t, err)

	dele := km.Delegation()
	require.NoError(t, dele.Validate())
	require.True(t, dele.Covers(uint64(now.Unix())))
	require.False(t, km.Expired(now))
	require.True(t, km.Expired(now.Add(2*cfg.OnlineKeyValidity())))

	srep := roughtime.SignedResponse{
		Version:  1,
		Radius:   cfg.RadiSeconds,
		Midpoint: uint64(now.Unix()),
		Versions: cfg.SupportedVersions,
		Root:     roughtime.HashLeaf([]byte("leaf")),
	}
	srepRaw := srep.Encode()
	sig := km.SignResponse(srepRaw)
	require.True(t, roughtime.VerifyResponse(dele.PublicKey, srepRaw, sig))
}

func TestBatchReadyToClose(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := OpenBatch(now)
	require.False(t, b.ReadyToClose(now, 64, 100*time.Millisecond))

	var nonce roughtime.Nonce
	b.Admit(nil, make([]byte, 1024), nonce, 1)
	require.False(t, b.ReadyToClose(now, 64, 100*time.Millisecond))
	require.True(t, b.ReadyToClose(now.Add(200*time.Millisecond), 64, 100*time.Millisecond))

	for i := 0; i < 63; i++ {
		b.Admit(nil, make([]byte, 1024), nonce, 1)
	}
	require.True(t, b.ReadyToClose(now, 64, 100*time.Millisecond))
}

// TestCommitSendsValidatableResponses exercises the batch commit path
// end to end: admit two requests, commit the batch over a real
// loopback UDP socket, and validate both responses with the client
// validator.
func TestCommitSendsValidatableResponses(t *testing.T) {
	b, err := backend.GenerateInMemory()
	require.NoError(t, err)
	cfg := config.Defaults()
	now := time.Now()
	km, err := Bootstrap(b, now, &cfg)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	sink := stats.NewSink(reg)
	log := zaptest.NewLogger(t)

	replyConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer replyConn.Close()
	sendConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	defer sendConn.Close()

	srv := New(&cfg, b, km, sink, log)
	srv.conn = sendConn

	replyAddr := replyConn.LocalAddr().(*net.UDPAddr)

	requests := make([]*roughtime.Request, 2)
	framed := make([][]byte, 2)
	for i := range requests {
		var nonce roughtime.Nonce
		nonce[0] = byte(i + 1)
		req := &roughtime.Request{Versions: []uint32{1}, Nonce: nonce}
		f, err := req.Encode()
		require.NoError(t, err)
		requests[i] = req
		framed[i] = f
	}

	batch := OpenBatch(now)
	for i := range requests {
		batch.Admit(replyAddr, framed[i], requests[i].Nonce, 1)
	}
	srv.commit(batch)

	buf := make([]byte, 1500)
	replyConn.SetReadDeadline(time.Now().Add(time.Second))
	for i := range requests {
		n, _, err := replyConn.ReadFromUDP(buf)
		require.NoError(t, err)

		msg, err := wire.Unframe(buf[:n])
		require.NoError(t, err)
		resp, err := roughtime.DecodeResponse(msg)
		require.NoError(t, err)
		require.NoError(t, resp.Validate(b.LongTermPublicKey(), findRequestByNonce(requests, resp.Nonce)))
	}
}

func findRequestByNonce(reqs []*roughtime.Request, nonce roughtime.Nonce) *roughtime.Request {
	for _, r := range reqs {
		if r.Nonce == nonce {
			return r
		}
	}
	return nil
}
