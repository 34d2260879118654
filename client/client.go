// Package client implements the client validator of spec.md §4.5:
// building requests, validating responses, and chaining a nonce
// across multiple servers for cross-validation.
//
// Grounded on github.com/Merovius/notary's roughtime.go FetchRoughtime
// (the UDP round-trip shape: ResolveUDPAddr, ListenUDP, WriteTo,
// ReadFromUDP) and its cmd/notary/main.go, which named but never
// implemented roughtime.Chain/LoadChain/VerifyChain — this package
// completes that gestured-at API.
package client

import (
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/int08h/roughenough/internal/wire"
	"github.com/int08h/roughenough/roughtime"
)

// Result is what a successful Validate returns: the server's time
// reading plus the chain-of-evidence bytes spec.md §4.5 step 8 calls
// for (the framed request and the raw response, sufficient to
// reconstruct and re-verify the whole exchange later).
type Result struct {
	Midpoint time.Time
	Radius   time.Duration

	RequestFramed  []byte
	ResponseFramed []byte
}

// BuildRequest emits a fresh request per spec.md §4.5: client's
// supported versions (ascending), a random nonce, TYPE=0, an optional
// SRV if the server's long-term key is known, padded to exactly 1024
// bytes.
func BuildRequest(versions []uint32, serverLongTermPub *roughtime.PublicKey) (*roughtime.Request, []byte, error) {
	var nonce roughtime.Nonce
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, nil, fmt.Errorf("client: generating nonce: %w", err)
	}

	req := &roughtime.Request{Versions: versions, Nonce: nonce}
	if serverLongTermPub != nil {
		srv := roughtime.ServerCommitment(*serverLongTermPub)
		req.Srv = &srv
	}

	framed, err := req.Encode()
	if err != nil {
		return nil, nil, err
	}
	return req, framed, nil
}

// Fetch sends a request to addr over UDP and returns the validated
// result. timeout bounds the round trip; spec.md §5 recommends 2-5s.
func Fetch(addr string, versions []uint32, longTermPub roughtime.PublicKey, timeout time.Duration) (*Result, error) {
	req, reqFramed, err := BuildRequest(versions, &longTermPub)
	if err != nil {
		return nil, err
	}

	respFramed, err := roundTrip(addr, reqFramed, timeout)
	if err != nil {
		return nil, err
	}

	return Validate(respFramed, req, reqFramed, longTermPub)
}

// roundTrip sends framed to addr over a fresh UDP socket and returns
// the first datagram received back, per spec.md §5 ("clients set
// their own socket timeout").
func roundTrip(addr string, framed []byte, timeout time.Duration) ([]byte, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.WriteTo(framed, udpAddr); err != nil {
		return nil, err
	}

	buf := make([]byte, 1500)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Validate runs spec.md §4.5's validate operation against an already
// received, framed response.
func Validate(respFramed []byte, req *roughtime.Request, reqFramed []byte, longTermPub roughtime.PublicKey) (*Result, error) {
	msg, err := wire.Unframe(respFramed)
	if err != nil {
		return nil, err
	}

	resp, err := roughtime.DecodeResponse(msg)
	if err != nil {
		return nil, err
	}
	if err := resp.Validate(longTermPub, req); err != nil {
		return nil, err
	}

	return &Result{
		Midpoint:       time.Unix(int64(resp.SignedResp.Midpoint), 0),
		Radius:         time.Duration(resp.SignedResp.Radius) * time.Second,
		RequestFramed:  reqFramed,
		ResponseFramed: respFramed,
	}, nil
}
