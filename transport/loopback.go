// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"sync"

	"github.com/JonDoeBeep/BCNP/internal/ring"
)

// DefaultLoopbackBufferCapacity sizes a LoopbackPair endpoint's internal
// ring.
const DefaultLoopbackBufferCapacity = 16 * 1024

// Loopback is an in-memory Duplex with no network underneath — useful
// for driving a Dispatcher/Queue pipeline in tests without opening a
// socket. Poll is a no-op: delivery is immediate on SendBytes. A Loopback
// is only meaningful as one half of a NewLoopbackPair.
type Loopback struct {
	peer *Loopback

	mu        sync.Mutex
	rx        *ring.ByteRing
	connected bool
}

// LoopbackPair is two Loopback endpoints wired to each other: bytes sent
// on A arrive at B's ReceiveChunk and vice versa.
type LoopbackPair struct {
	A *Loopback
	B *Loopback
}

// NewLoopbackPair constructs a connected pair of Loopback endpoints.
func NewLoopbackPair() *LoopbackPair {
	a := &Loopback{rx: ring.NewByteRing(DefaultLoopbackBufferCapacity), connected: true}
	b := &Loopback{rx: ring.NewByteRing(DefaultLoopbackBufferCapacity), connected: true}
	a.peer = b
	b.peer = a
	return &LoopbackPair{A: a, B: b}
}

// SendBytes appends data directly to the peer's receive buffer.
func (l *Loopback) SendBytes(data []byte) bool {
	l.mu.Lock()
	connected := l.connected
	l.mu.Unlock()
	if !connected || l.peer == nil {
		return false
	}
	l.peer.mu.Lock()
	defer l.peer.mu.Unlock()
	if !l.peer.connected {
		return false
	}
	return l.peer.rx.Write(data) == len(data)
}

// ReceiveChunk drains up to len(buf) bytes from this endpoint's receive
// buffer.
func (l *Loopback) ReceiveChunk(buf []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.rx.Peek(0, buf)
	l.rx.Discard(n)
	return n
}

// Poll is a no-op: a Loopback delivers synchronously on SendBytes.
func (l *Loopback) Poll() {}

// IsConnected reports whether this endpoint has been disconnected via
// Disconnect.
func (l *Loopback) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Disconnect simulates a dropped link: subsequent SendBytes calls on
// either endpoint of the pair fail until Reconnect is called.
func (l *Loopback) Disconnect() {
	l.mu.Lock()
	l.connected = false
	l.mu.Unlock()
}

// Reconnect restores a previously disconnected endpoint.
func (l *Loopback) Reconnect() {
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
}

var _ Duplex = (*Loopback)(nil)
