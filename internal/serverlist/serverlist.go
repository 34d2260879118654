// Package serverlist reads the public Roughtime servers.json format
// (the registry published at github.com/cloudflare/roughtime and
// mirrored by google/roughtime), so the client package can validate
// against a known set of servers without hardcoding their keys.
//
// Grounded on cmd/notary/main.go's defaultServers literal and its
// gestured-at config.ServersJSON/roughtime.ReadServersJSON calls in
// github.com/Merovius/notary, which named this shape but never
// implemented it.
package serverlist

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/int08h/roughenough/roughtime"
)

// Address is one transport endpoint for a server.
type Address struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address"`
}

// Server describes one entry in a servers.json document.
type Server struct {
	Name          string    `json:"name"`
	PublicKeyType string    `json:"publicKeyType"`
	PublicKey     string    `json:"publicKey"` // base64-encoded
	Addresses     []Address `json:"addresses"`
}

// List is the top-level servers.json document.
type List struct {
	Servers []Server `json:"servers"`
}

// Read parses a servers.json document from r.
func Read(r io.Reader) (*List, error) {
	var l List
	if err := json.NewDecoder(r).Decode(&l); err != nil {
		return nil, fmt.Errorf("serverlist: %w", err)
	}
	for _, s := range l.Servers {
		if s.PublicKeyType != "ed25519" {
			return nil, fmt.Errorf("serverlist: server %q has unsupported publicKeyType %q", s.Name, s.PublicKeyType)
		}
		if _, err := s.PublicKeyBytes(); err != nil {
			return nil, fmt.Errorf("serverlist: server %q: %w", s.Name, err)
		}
	}
	return &l, nil
}

// PublicKeyBytes decodes the server's base64 public key.
func (s *Server) PublicKeyBytes() (roughtime.PublicKey, error) {
	var pk roughtime.PublicKey
	raw, err := base64.StdEncoding.DecodeString(s.PublicKey)
	if err != nil {
		return pk, err
	}
	if len(raw) != 32 {
		return pk, fmt.Errorf("public key is %d bytes, want 32", len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// UDPAddress returns the server's first udp address, if any.
func (s *Server) UDPAddress() (string, bool) {
	for _, a := range s.Addresses {
		if a.Protocol == "udp" {
			return a.Address, true
		}
	}
	return "", false
}
