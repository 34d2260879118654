package client

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/int08h/roughenough/internal/serverlist"
	"github.com/int08h/roughenough/roughtime"
)

// Link is one hop of a chained, multi-server validation: the request
// sent to Server and the response it returned, plus the nonce that
// bound this request to the previous hop (spec.md §4.5, "Chaining").
type Link struct {
	Server         string `json:"server"`
	NonceOrBlind   []byte `json:"nonce_or_blind"`
	RequestFramed  []byte `json:"request_framed"`
	ResponseFramed []byte `json:"response_framed"`
}

// Doc is a serialized chain: evidence that can be replayed and
// reverified later, e.g. to accompany a file's timestamp proof.
type Doc struct {
	Links []Link `json:"links"`
}

// Chain queries every server in list in order, threading
// next_nonce = H(previous_response_framed_bytes || 32_random_bytes)
// between hops (spec.md §4.5), and writes the resulting Doc as JSON to
// w. seed is the first hop's nonce (e.g. derived from a file digest,
// to tie the chain to some external artifact).
func Chain(w io.Writer, list *serverlist.List, versions []uint32, seed roughtime.Nonce, timeout time.Duration) (*Doc, error) {
	doc := &Doc{}
	nonce := seed

	for _, srv := range list.Servers {
		pub, err := srv.PublicKeyBytes()
		if err != nil {
			return nil, fmt.Errorf("client: %s: %w", srv.Name, err)
		}
		addr, ok := srv.UDPAddress()
		if !ok {
			return nil, fmt.Errorf("client: %s: no udp address", srv.Name)
		}

		req, reqFramed, err := BuildRequestWithNonce(versions, nonce, &pub)
		if err != nil {
			return nil, fmt.Errorf("client: %s: %w", srv.Name, err)
		}

		respFramed, err := roundTrip(addr, reqFramed, timeout)
		if err != nil {
			return nil, fmt.Errorf("client: %s: %w", srv.Name, err)
		}
		if _, err := Validate(respFramed, req, reqFramed, pub); err != nil {
			return nil, fmt.Errorf("client: %s: %w", srv.Name, err)
		}

		doc.Links = append(doc.Links, Link{
			Server:         srv.Name,
			NonceOrBlind:   append([]byte(nil), nonce[:]...),
			RequestFramed:  reqFramed,
			ResponseFramed: respFramed,
		})

		nonce, err = nextNonce(respFramed)
		if err != nil {
			return nil, err
		}
	}

	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// LoadChain reads back a Doc written by Chain.
func LoadChain(r io.Reader) (*Doc, error) {
	var doc Doc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	return &doc, nil
}

// VerifyChain reverifies every link's cryptographic validity against
// list, then checks causality across the whole chain (spec.md §4.5):
// for i < j, MIDP_i - RADI_i <= MIDP_j + RADI_j. It returns the first
// MisbehaviorProof it finds, if any, alongside a nil error; a non-nil
// error means the chain itself failed to validate cryptographically.
func VerifyChain(doc *Doc, list *serverlist.List) (*MisbehaviorProof, error) {
	byName := make(map[string]serverlist.Server, len(list.Servers))
	for _, s := range list.Servers {
		byName[s.Name] = s
	}

	results := make([]*Result, len(doc.Links))
	for i, link := range doc.Links {
		srv, ok := byName[link.Server]
		if !ok {
			return nil, fmt.Errorf("client: unknown server %q in chain", link.Server)
		}
		pub, err := srv.PublicKeyBytes()
		if err != nil {
			return nil, err
		}
		req, err := roughtime.DecodeRequest(link.RequestFramed)
		if err != nil {
			return nil, fmt.Errorf("client: %s: %w", link.Server, err)
		}
		res, err := Validate(link.ResponseFramed, req, link.RequestFramed, pub)
		if err != nil {
			return nil, fmt.Errorf("client: %s: %w", link.Server, err)
		}
		results[i] = res
	}

	for i := 0; i < len(results); i++ {
		for j := i + 1; j < len(results); j++ {
			if proof := checkCausality(doc.Links[i].Server, results[i], doc.Links[j].Server, results[j]); proof != nil {
				return proof, nil
			}
		}
	}
	return nil, nil
}

// MisbehaviorProof is evidence that two cryptographically valid
// responses from the same chain violate causality (spec.md §4.5).
type MisbehaviorProof struct {
	ServerA string
	ServerB string
	ResultA *Result
	ResultB *Result
	Reason  string
}

func checkCausality(nameA string, a *Result, nameB string, b *Result) *MisbehaviorProof {
	// for i < j: MIDP_i - RADI_i <= MIDP_j + RADI_j
	lowerA := a.Midpoint.Add(-a.Radius)
	upperB := b.Midpoint.Add(b.Radius)
	if lowerA.After(upperB) {
		return &MisbehaviorProof{
			ServerA: nameA, ServerB: nameB,
			ResultA: a, ResultB: b,
			Reason: fmt.Sprintf("%s's earliest possible time is after %s's latest possible time", nameA, nameB),
		}
	}
	return nil
}

// BuildRequestWithNonce is like BuildRequest, but uses an
// explicitly-chosen nonce instead of a fresh random one, for chaining.
func BuildRequestWithNonce(versions []uint32, nonce roughtime.Nonce, serverLongTermPub *roughtime.PublicKey) (*roughtime.Request, []byte, error) {
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

// nextNonce computes H(previous_response_framed_bytes || 32_random_bytes).
func nextNonce(prevResponseFramed []byte) (roughtime.Nonce, error) {
	var blind [32]byte
	if _, err := io.ReadFull(rand.Reader, blind[:]); err != nil {
		return roughtime.Nonce{}, err
	}
	h := sha512.New()
	h.Write(prevResponseFramed)
	h.Write(blind[:])
	var sum [64]byte
	h.Sum(sum[:0])
	var n roughtime.Nonce
	copy(n[:], sum[:32])
	return n, nil
}
