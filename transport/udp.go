// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"encoding/binary"
	"net"
	"sync"
	"time"
)

// DefaultPeerTimeout is how long a paired (non-fixed) peer may stay silent
// in PeerLocked mode before UDPAdapter re-opens pairing.
const DefaultPeerTimeout = 5 * time.Second

// pairingMagic/pairingFrameSize mirror the 8-byte pairing datagram
// (4-byte magic + 4-byte token) used to bind a peer before any BCNP
// traffic is accepted from it. The magic
// intentionally matches handshake.go's "BCNP" magic, since both serve the
// same purpose: refusing to treat an address as live until it proves it
// speaks this protocol.
const pairingFrameSize = 8

var pairingMagic = [4]byte{'B', 'C', 'N', 'P'}

// UDPConfig configures a UDPAdapter.
type UDPConfig struct {
	// PeerLocked, when true, restricts SendBytes/ReceiveChunk to a single
	// bound peer address, established either by FixedTarget or by a
	// successful pairing datagram bearing PairingToken.
	PeerLocked bool
	// FixedTarget, if set, is used as the locked peer immediately,
	// skipping the pairing handshake (used for a statically-addressed
	// counterpart).
	FixedTarget *net.UDPAddr
	// PairingToken is the 4-byte value (beyond the magic) a pairing
	// datagram must carry to bind a new peer. Defaults to the schema hash
	// passed to NewUDPAdapter if zero, so a peer running an incompatible
	// message schema is refused at the pairing step rather than being
	// admitted and failing checksum validation downstream.
	PairingToken uint32
	PeerTimeout  time.Duration
}

func (c UDPConfig) clamped(schemaHash uint32) UDPConfig {
	if c.PeerTimeout <= 0 {
		c.PeerTimeout = DefaultPeerTimeout
	}
	if c.PairingToken == 0 {
		c.PairingToken = schemaHash
	}
	return c
}

// UDPAdapter is a datagram Duplex bound to a single local port. In
// PeerLocked mode it refuses traffic from any address other than the one
// it has paired with, re-opening pairing if that peer falls silent for
// PeerTimeout.
type UDPAdapter struct {
	cfg  UDPConfig
	conn *net.UDPConn

	mu          sync.Mutex
	peer        *net.UDPAddr
	hasPeer     bool
	pairingDone bool
	fixedPeer   bool
	lastPeerRx  time.Time
}

// NewUDPAdapter opens a UDP socket bound to listenAddr (":0" for an
// ephemeral port). schemaHash is the local message registry's schema hash
// (Registry.SchemaHash), used as cfg.PairingToken's default so peers cannot
// pair across incompatible schemas. cfg.FixedTarget, if set, is used as the
// locked peer immediately; otherwise a peer is only bound once pairing
// succeeds (or, if PeerLocked is false, on the first datagram received from
// anywhere).
func NewUDPAdapter(listenAddr string, schemaHash uint32, cfg UDPConfig) (*UDPAdapter, error) {
	cfg = cfg.clamped(schemaHash)
	laddr, err := net.ResolveUDPAddr("udp", listenAddr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, err
	}
	a := &UDPAdapter{cfg: cfg, conn: conn}
	if cfg.FixedTarget != nil {
		a.peer = cfg.FixedTarget
		a.hasPeer = true
		a.pairingDone = true
		a.fixedPeer = true
	}
	return a, nil
}

// Poll re-opens pairing if a locked, non-fixed peer has gone silent
// beyond cfg.PeerTimeout.
func (a *UDPAdapter) Poll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cfg.PeerLocked && a.hasPeer && !a.fixedPeer &&
		!a.lastPeerRx.IsZero() && time.Since(a.lastPeerRx) > a.cfg.PeerTimeout {
		a.hasPeer = false
		a.pairingDone = false
		a.peer = nil
	}
}

// SendBytes transmits data to the currently bound peer. It fails if no
// peer has been established yet.
func (a *UDPAdapter) SendBytes(data []byte) bool {
	a.mu.Lock()
	peer := a.peer
	has := a.hasPeer
	a.mu.Unlock()
	if !has || peer == nil {
		return false
	}
	n, err := a.conn.WriteToUDP(data, peer)
	return err == nil && n == len(data)
}

// ReceiveChunk reads at most one pending datagram into buf (UDP is
// message-oriented, so reading less than a full datagram would corrupt
// framing; a datagram larger than buf is truncated by the kernel and
// will fail BCNP checksum validation downstream, which is the correct
// outcome for an oversized frame). It enforces PeerLocked/pairing rules
// and never forwards pairing datagrams themselves to the caller.
func (a *UDPAdapter) ReceiveChunk(buf []byte) int {
	a.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	n, src, err := a.conn.ReadFromUDP(buf)
	if err != nil || n == 0 {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.cfg.PeerLocked {
		a.peer = src
		a.hasPeer = true
		a.lastPeerRx = time.Now()
		return n
	}

	if !a.pairingDone && !a.fixedPeer {
		if a.processPairing(buf[:n], src) {
			a.lastPeerRx = time.Now()
		}
		return 0
	}

	if a.hasPeer && !addrEqual(src, a.peer) {
		return 0
	}
	if !a.hasPeer {
		a.peer = src
		a.hasPeer = true
	}
	a.lastPeerRx = time.Now()
	return n
}

func (a *UDPAdapter) processPairing(data []byte, src *net.UDPAddr) bool {
	if len(data) != pairingFrameSize {
		return false
	}
	magic := binary.BigEndian.Uint32(data[0:4])
	token := binary.BigEndian.Uint32(data[4:8])
	if magic != binary.BigEndian.Uint32(pairingMagic[:]) || token != a.cfg.PairingToken {
		return false
	}
	a.peer = src
	a.hasPeer = true
	a.pairingDone = true
	return true
}

// SendPairingDatagram transmits the pairing handshake datagram to dst,
// for use by a client establishing itself with a PeerLocked server.
func (a *UDPAdapter) SendPairingDatagram(dst *net.UDPAddr) bool {
	var frame [pairingFrameSize]byte
	copy(frame[0:4], pairingMagic[:])
	binary.BigEndian.PutUint32(frame[4:8], a.cfg.PairingToken)
	n, err := a.conn.WriteToUDP(frame[:], dst)
	return err == nil && n == len(frame)
}

// IsConnected reports whether a peer is currently bound.
func (a *UDPAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasPeer
}

// UnlockPeer drops the current peer binding (unless it was configured as
// a FixedTarget), forcing pairing to run again.
func (a *UDPAdapter) UnlockPeer() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fixedPeer {
		return
	}
	a.hasPeer = false
	a.pairingDone = false
	a.peer = nil
}

// LocalAddr returns the adapter's bound local address.
func (a *UDPAdapter) LocalAddr() net.Addr { return a.conn.LocalAddr() }

// Close releases the underlying socket.
func (a *UDPAdapter) Close() error { return a.conn.Close() }

func addrEqual(a, b *net.UDPAddr) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

var _ Duplex = (*UDPAdapter)(nil)
