// Package server implements the batching UDP server loop (spec.md
// §4.4): a single-threaded, cooperative event loop that accumulates
// requests into a batch, amortizes one Merkle-aggregated signature
// across the whole batch, and answers each admitted request.
//
// The loop shape is new (the teacher, github.com/Merovius/notary, is
// client-only); it is grounded on spec.md §4.4 directly and on the
// UDP listener idiom shown by the wider example pack (net.ListenUDP,
// ReadFromUDP into a reused buffer, WriteToUDP per reply), logged and
// instrumented the way caddyserver-caddy wires zap and Prometheus
// through its own long-running services.
package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/int08h/roughenough/backend"
	"github.com/int08h/roughenough/internal/config"
	"github.com/int08h/roughenough/internal/stats"
	"github.com/int08h/roughenough/internal/wire"
	"github.com/int08h/roughenough/roughtime"
)

// Server runs the batching UDP loop described by spec.md §4.4.
type Server struct {
	cfg     *config.Config
	km      *KeyManager
	backend backend.SigningBackend
	stats   *stats.Sink
	log     *zap.Logger

	conn *net.UDPConn
	srv  [32]byte // this server's identity commitment, spec.md §4.4 step 2
}

// New constructs a Server. Bootstrap must already have produced km
// from the same long-term backend before the loop starts, per spec.md
// §4.2 ("exactly one CERT envelope per process lifetime").
func New(cfg *config.Config, b backend.SigningBackend, km *KeyManager, sink *stats.Sink, log *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		km:      km,
		backend: b,
		stats:   sink,
		log:     log,
		srv:     roughtime.ServerCommitment(b.LongTermPublicKey()),
	}
}

// ListenAndServe opens the UDP socket and runs the batching loop until
// ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := &net.UDPAddr{IP: net.ParseIP(s.cfg.ListenIP), Port: s.cfg.ListenUDPPort}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	s.conn = conn

	s.log.Info("listening", zap.String("addr", conn.LocalAddr().String()))
	return s.loop(ctx)
}

// loop is the cooperative event loop of spec.md §4.4: a batch opens,
// accumulates admitted requests with a short read deadline so it can
// re-check the close condition, and commits when full or timed out.
func (s *Server) loop(ctx context.Context) error {
	buf := make([]byte, wire.RequestFrameLen)
	batch := OpenBatch(time.Now())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err == nil {
			s.admit(batch, addr, buf[:n])
		} else if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			s.log.Error("read failed", zap.Error(err))
		}

		if batch.ReadyToClose(time.Now(), s.cfg.BatchMax, s.cfg.BatchTimeout()) {
			s.commit(batch)
			batch = OpenBatch(time.Now())
		}
	}
}

// admit runs spec.md §4.4 step 2's per-datagram checks and appends the
// request to batch if it passes all of them.
func (s *Server) admit(batch *Batch, addr *net.UDPAddr, framed []byte) {
	s.stats.RequestsTotal.Inc()

	if len(framed) != wire.RequestFrameLen {
		s.stats.RequestsRejected.WithLabelValues("bad_frame_length").Inc()
		return
	}

	// DecodeRequest re-validates magic/length and decodes the message,
	// including the ZZZZ/unknown-tag checks spec.md §4.4 requires.
	reqCopy := make([]byte, len(framed))
	copy(reqCopy, framed)
	req, err := roughtime.DecodeRequest(reqCopy)
	if err != nil {
		s.stats.RequestsRejected.WithLabelValues("decode_error").Inc()
		return
	}

	if req.Srv != nil && *req.Srv != s.srv {
		s.stats.RequestsRejected.WithLabelValues("srv_mismatch").Inc()
		return
	}

	version, ok := chooseVersion(req.Versions, s.cfg.SupportedVersions)
	if !ok {
		s.stats.RequestsRejected.WithLabelValues("no_common_version").Inc()
		return
	}

	batch.Admit(addr, reqCopy, req.Nonce, version)
}

// chooseVersion returns the highest element of the intersection of
// offered and supported, per spec.md §4.4 step 2.
func chooseVersion(offered, supported []uint32) (uint32, bool) {
	supportedSet := make(map[uint32]bool, len(supported))
	for _, v := range supported {
		supportedSet[v] = true
	}
	best, found := uint32(0), false
	for _, v := range offered {
		if supportedSet[v] && (!found || v > best) {
			best, found = v, true
		}
	}
	return best, found
}

// commit runs spec.md §4.4 step 4: build the Merkle tree, sign one
// SREP for the whole batch, and send each admitted request its
// response.
func (s *Server) commit(batch *Batch) {
	if batch.Len() == 0 {
		return
	}

	if s.km.Expired(time.Now()) {
		s.log.Error("online key delegation expired, dropping batch", zap.String("batch_id", batch.ID))
		s.stats.RequestsRejected.WithLabelValues("delegation_expired").Add(float64(batch.Len()))
		return
	}

	tree := roughtime.BuildTree(batch.leaves())
	midp := uint64(time.Now().Unix())

	srep := roughtime.SignedResponse{
		Version:  batch.requests[0].version,
		Radius:   s.cfg.RadiSeconds,
		Midpoint: midp,
		Versions: s.cfg.SupportedVersions,
		Root:     tree.Root(),
	}
	srepRaw := srep.Encode()
	sig := s.km.SignResponse(srepRaw)
	certRaw := s.km.Certificate()

	for i, r := range batch.requests {
		resp := roughtime.ResponseFromParts(sig, r.nonce, tree.Path(i), srepRaw, certRaw, uint32(i))
		if _, err := s.conn.WriteToUDP(resp, r.addr); err != nil {
			s.log.Warn("write failed", zap.Error(err), zap.String("addr", r.addr.String()))
			continue
		}
		s.stats.ResponsesSent.Inc()
	}

	s.stats.BatchesClosed.Inc()
	s.stats.BatchSize.Observe(float64(batch.Len()))
	s.log.Debug("batch committed", zap.String("batch_id", batch.ID), zap.Int("size", batch.Len()))
}
