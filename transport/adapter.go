// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport provides byte-oriented adapters (TCP, UDP, and an
// in-memory loopback) plus a poll-driven Driver that pumps bytes between
// an adapter and a bcnp.Dispatcher, following a DuplexAdapter/poll-loop
// split and the accept/dial and connection-reaping idioms used for
// single-peer sockets elsewhere.
package transport

// ByteWriter sends raw bytes over a transport. SendBytes reports whether
// the bytes were sent or queued; it must never block waiting on I/O
// readiness.
type ByteWriter interface {
	SendBytes(data []byte) bool
}

// ByteStream receives available bytes from a transport without blocking.
// ReceiveChunk copies as many bytes as are currently available (up to
// len(buf)) and returns the count; 0 means nothing was available.
type ByteStream interface {
	ReceiveChunk(buf []byte) int
}

// Duplex is the combined send/receive surface a Driver pumps against.
type Duplex interface {
	ByteWriter
	ByteStream
	// Poll advances the adapter's internal connection state machine:
	// accepting new clients, progressing a non-blocking connect, flushing
	// queued bytes, and reaping dead peers. Driver calls it once per
	// PollOnce, but adapters may also be polled directly by tests.
	Poll()
	// IsConnected reports whether a peer is currently reachable. A
	// handshake-aware adapter (TCPAdapter) folds handshake completion
	// into this signal, so true here additionally means the peer's
	// declared schema hash has been confirmed to match.
	IsConnected() bool
}
