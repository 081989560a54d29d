// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"encoding/binary"

	"github.com/JonDoeBeep/BCNP/metrics"
)

// HandshakeFrameSize is the fixed size of a handshake frame: 4 magic bytes
// plus a 4-byte big-endian schema hash.
const HandshakeFrameSize = 8

// handshakeMagic is "BCNP" — 0x42 0x43 0x4E 0x50.
var handshakeMagic = [4]byte{'B', 'C', 'N', 'P'}

// EncodeHandshakeFrame writes the 8-byte handshake frame (magic + schema
// hash) into dst, which must be at least HandshakeFrameSize bytes.
func EncodeHandshakeFrame(schemaHash uint32, dst []byte) {
	copy(dst[:4], handshakeMagic[:])
	binary.BigEndian.PutUint32(dst[4:8], schemaHash)
}

// DecodeHandshakeFrame parses an 8-byte handshake frame, returning the
// peer's schema hash. It fails with ErrBadHandshakeFrame if the magic bytes
// do not match or data is shorter than HandshakeFrameSize.
func DecodeHandshakeFrame(data []byte) (uint32, error) {
	if len(data) < HandshakeFrameSize {
		return 0, ErrBadHandshakeFrame
	}
	if data[0] != handshakeMagic[0] || data[1] != handshakeMagic[1] ||
		data[2] != handshakeMagic[2] || data[3] != handshakeMagic[3] {
		return 0, ErrBadHandshakeFrame
	}
	return binary.BigEndian.Uint32(data[4:8]), nil
}

// Handshake runs BCNP's one-round schema-hash exchange. It is not a
// packet and must never be fed to a StreamParser;
// receive code must accumulate exactly HandshakeFrameSize bytes, validate
// them via Accept, then forward any remainder of the buffer to normal
// parsing.
type Handshake struct {
	localSchemaHash uint32
	recorder        metrics.Recorder

	sent      bool
	validated bool
	complete  bool
	peerHash  uint32
}

// NewHandshake constructs a Handshake that will advertise localSchemaHash
// and expect the same hash back from the peer.
func NewHandshake(localSchemaHash uint32) *Handshake {
	return &Handshake{localSchemaHash: localSchemaHash, recorder: metrics.NoOp}
}

// SetRecorder installs r as the handshake's metrics sink, replacing
// whatever was previously set (metrics.NoOp by default). Passing nil is
// equivalent to metrics.NoOp.
func (h *Handshake) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoOp
	}
	h.recorder = r
}

// OutboundFrame returns the 8-byte frame this side should send, marking it
// as sent. Safe to call more than once; the frame contents never change
// across a Handshake's lifetime.
func (h *Handshake) OutboundFrame() []byte {
	buf := make([]byte, HandshakeFrameSize)
	EncodeHandshakeFrame(h.localSchemaHash, buf)
	h.sent = true
	return buf
}

// Accept validates an inbound handshake frame. On a magic mismatch it
// returns ErrBadHandshakeFrame and leaves state unchanged. On a schema hash
// mismatch it records the failure (Accept returns ErrSchemaMismatch,
// IsComplete/IsValidated stay false) without panicking — callers decide how
// to react (a UDP adapter should refuse further payload from that peer;
// a TCP adapter may continue transport-level traffic but must keep
// surfacing IsComplete()=false so the application refuses to treat the
// link as live).
func (h *Handshake) Accept(frame []byte) error {
	peerHash, err := DecodeHandshakeFrame(frame)
	if err != nil {
		return err
	}
	h.peerHash = peerHash
	if peerHash != h.localSchemaHash {
		h.validated = false
		h.complete = false
		h.recorder.HandshakeFailure()
		return ErrSchemaMismatch
	}
	h.validated = true
	h.complete = true
	return nil
}

// IsValidated reports whether the peer's schema hash has been confirmed to
// match.
func (h *Handshake) IsValidated() bool { return h.validated }

// IsComplete reports whether the handshake has finished successfully.
// Until this is true, the application layer must treat the connection
// as not connected even if the byte pipe is open.
func (h *Handshake) IsComplete() bool { return h.complete }

// PeerSchemaHash returns the most recently accepted peer schema hash.
func (h *Handshake) PeerSchemaHash() uint32 { return h.peerHash }

// LocalSchemaHash returns the hash this side advertises.
func (h *Handshake) LocalSchemaHash() uint32 { return h.localSchemaHash }
