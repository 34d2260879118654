package roughtime

import (
	"errors"

	"github.com/int08h/roughenough/internal/wire"
)

// Response is a server's answer to one Request: a signed time reading,
// the Merkle inclusion proof tying it back to that request's nonce, and
// the delegation chain authorizing the online key that signed it
// (spec.md §3, §4.5).
type Response struct {
	Signature   Signature // SREP.SIG, the online key's signature over SREP
	Nonce       Nonce     // echoed client nonce, at the PATH leaf
	Path        []Root    // Merkle sibling path, leaf to root
	SignedResp  SignedResponse
	Certificate Certificate
	Index       uint32 // leaf index within the batch

	srepRaw []byte // exact bytes SREP.SIG was computed over
}

var (
	// ErrNonceMismatch means a response's echoed NONC doesn't match the
	// nonce the client sent.
	ErrNonceMismatch = errors.New("roughtime: response NONC does not match request nonce")
	// ErrMerklePathInvalid means PATH does not lead from this response's
	// leaf to SREP.ROOT.
	ErrMerklePathInvalid = errors.New("roughtime: merkle path does not verify against SREP.ROOT")
	// ErrMidpointOutOfRange means SREP.MIDP falls outside the
	// delegation's [MINT, MAXT] validity window.
	ErrMidpointOutOfRange = errors.New("roughtime: SREP.MIDP outside delegation validity window")
	// ErrCertificateInvalid means CERT.SIG does not verify against the
	// server's long-term public key.
	ErrCertificateInvalid = errors.New("roughtime: CERT signature does not verify")
	// ErrResponseSignatureInvalid means SREP.SIG does not verify against
	// the delegated (online) public key in CERT.DELE.
	ErrResponseSignatureInvalid = errors.New("roughtime: SREP signature does not verify")
	// ErrVersionNotOffered means the response picked a version the
	// client never offered.
	ErrVersionNotOffered = errors.New("roughtime: response VER was not offered by request")
)

// Encode serializes resp, in tag order SIG, NONC, PATH, SREP, CERT,
// INDX.
func (resp *Response) Encode() []byte {
	srepRaw := resp.SignedResp.Encode()
	certRaw := EncodeCertificate(resp.Certificate.Delegation, resp.Certificate.Signature)
	return ResponseFromParts(resp.Signature, resp.Nonce, resp.Path, srepRaw, certRaw, resp.Index)
}

// ResponseFromParts assembles a response's framed wire bytes directly
// from an already-encoded SREP and CERT, without requiring the caller
// to first decode them back into typed structs. The batching server
// uses this to send each request its response while re-signing
// nothing but SIG itself once per batch (spec.md §4.4 step 4). Per
// spec.md §3, responses are framed like requests but not padded to a
// fixed size.
func ResponseFromParts(sig Signature, nonce Nonce, path []Root, srepRaw, certRaw []byte, index uint32) []byte {
	bufLen := 8*6 + 64 + 32 + 32*len(path) + len(srepRaw) + len(certRaw) + 4
	msg := wire.Encode(bufLen, func(st *wire.EncodeState) {
		st.NTags(6)
		st.Bytes64(wire.TagSIG, sig)
		st.Bytes32(wire.TagNONC, [32]byte(nonce))
		st.RawBytes(wire.TagPATH, encodePath(path))
		st.RawBytes(wire.TagSREP, srepRaw)
		st.RawBytes(wire.TagCERT, certRaw)
		st.Uint32(wire.TagINDX, index)
	})
	return wire.Frame(msg)
}

func encodePath(path []Root) []byte {
	b := make([]byte, 0, 32*len(path))
	for _, r := range path {
		b = append(b, r[:]...)
	}
	return b
}

func decodePath(b []byte) ([]Root, error) {
	if len(b)%32 != 0 {
		return nil, errors.New("roughtime: PATH length is not a multiple of 32")
	}
	path := make([]Root, len(b)/32)
	for i := range path {
		copy(path[i][:], b[i*32:(i+1)*32])
	}
	return path, nil
}

// DecodeResponse parses a single response message (already unframed).
func DecodeResponse(msg []byte) (*Response, error) {
	var resp Response
	var pathRaw []byte
	err := wire.Decode(msg, func(st *wire.DecodeState) {
		st.Bytes64(wire.TagSIG, (*[64]byte)(&resp.Signature))
		st.Bytes32(wire.TagNONC, (*[32]byte)(&resp.Nonce))
		st.RequireBytes(wire.TagPATH, &pathRaw)
		var srepRaw []byte
		st.Message(wire.TagSREP, &srepRaw, func(inner *wire.DecodeState) {
			decodeSignedResponse(inner, &resp.SignedResp)
		})
		resp.srepRaw = srepRaw
		var certRaw []byte
		st.Message(wire.TagCERT, &certRaw, func(inner *wire.DecodeState) {
			decodeCertificate(inner, &resp.Certificate)
		})
		st.Uint32(wire.TagINDX, &resp.Index)
		st.Done()
	})
	if err != nil {
		return nil, err
	}
	resp.Path, err = decodePath(pathRaw)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Validate runs the full client-side check of spec.md §4.5, steps
// 1-8: nonce echo, certificate chain, response signature, delegation
// validity window, Merkle inclusion, and version-downgrade detection.
// longTermPub is the server's known long-term public key and req is
// the request this response answers.
func (resp *Response) Validate(longTermPub PublicKey, req *Request) error {
	if resp.Nonce != req.Nonce {
		return ErrNonceMismatch
	}

	if !resp.Certificate.Verify(longTermPub) {
		return ErrCertificateInvalid
	}
	if err := resp.Certificate.Delegation.Validate(); err != nil {
		return err
	}

	if !VerifyResponse(resp.Certificate.Delegation.PublicKey, resp.srepRaw, resp.Signature) {
		return ErrResponseSignatureInvalid
	}

	if err := resp.SignedResp.Validate(); err != nil {
		return err
	}

	if !resp.Certificate.Delegation.Covers(resp.SignedResp.Midpoint) {
		return ErrMidpointOutOfRange
	}

	leaf := HashLeaf(mustFrame(req))
	got := VerifyPath(leaf, resp.Index, resp.Path)
	if got != resp.SignedResp.Root {
		return ErrMerklePathInvalid
	}

	offered := false
	for _, v := range req.Versions {
		if v == resp.SignedResp.Version {
			offered = true
			break
		}
	}
	if !offered {
		return ErrVersionNotOffered
	}

	return nil
}

func mustFrame(req *Request) []byte {
	framed, err := req.Encode()
	if err != nil {
		panic(err)
	}
	return framed
}
