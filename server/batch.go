package server

import (
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/int08h/roughenough/roughtime"
)

// admittedRequest is one datagram that passed admission checks and is
// waiting for its batch to close (spec.md §4.4 step 2).
type admittedRequest struct {
	addr    *net.UDPAddr
	framed  []byte // the exact 1024-byte datagram received
	nonce   roughtime.Nonce
	version uint32
}

// Batch accumulates admitted requests between open and close. Its ID
// is a supplemented field (google/uuid, the pack's UUID library) used
// only for log correlation; it never touches the wire.
type Batch struct {
	ID       string
	opened   time.Time
	requests []admittedRequest
}

// OpenBatch starts a fresh, empty batch.
func OpenBatch(now time.Time) *Batch {
	return &Batch{ID: uuid.NewString(), opened: now}
}

// Admit appends a request to the batch.
func (b *Batch) Admit(addr *net.UDPAddr, framed []byte, nonce roughtime.Nonce, version uint32) {
	b.requests = append(b.requests, admittedRequest{addr: addr, framed: framed, nonce: nonce, version: version})
}

// Len reports how many requests the batch currently holds.
func (b *Batch) Len() int {
	return len(b.requests)
}

// ReadyToClose reports whether the batch should close now, per
// spec.md §4.4 step 3: size cap or elapsed-timeout, whichever first.
func (b *Batch) ReadyToClose(now time.Time, max int, timeout time.Duration) bool {
	if len(b.requests) == 0 {
		return false
	}
	return len(b.requests) >= max || now.Sub(b.opened) >= timeout
}

// leaves returns the Merkle leaf hash of every admitted request, in
// admission order.
func (b *Batch) leaves() []roughtime.Root {
	leaves := make([]roughtime.Root, len(b.requests))
	for i, r := range b.requests {
		leaves[i] = roughtime.HashLeaf(r.framed)
	}
	return leaves
}
