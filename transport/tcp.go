// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/JonDoeBeep/BCNP"
	"github.com/JonDoeBeep/BCNP/internal/ring"
	"github.com/JonDoeBeep/BCNP/metrics"
)

const (
	// DefaultReconnectInterval bounds how often a client adapter retries
	// a failed dial.
	DefaultReconnectInterval = 500 * time.Millisecond
	// DefaultZombieTimeout is how long a server adapter tolerates a
	// client that has gone silent before dropping it.
	DefaultZombieTimeout = 5 * time.Second
	// DefaultTCPBufferCapacity sizes both the tx and rx byte rings.
	DefaultTCPBufferCapacity = 64 * 1024
	// txCongestionFraction is the fraction of the tx buffer at which
	// SendBytes starts rejecting new packets outright — rejecting early
	// avoids ever needing to drop a packet mid-flight once buffered.
	txCongestionFraction = 0.5
	writeFlushDeadline   = 20 * time.Millisecond
)

// TCPConfig configures a TCPAdapter.
type TCPConfig struct {
	ReconnectInterval time.Duration
	ZombieTimeout     time.Duration
	BufferCapacity    int
}

func (c TCPConfig) clamped() TCPConfig {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.ZombieTimeout <= 0 {
		c.ZombieTimeout = DefaultZombieTimeout
	}
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = DefaultTCPBufferCapacity
	}
	return c
}

// TCPAdapter is a single-peer TCP Duplex: one side listens and serves
// exactly one client at a time (accepting a new client replaces any
// prior one), the other dials and auto-reconnects. Rather than a
// non-blocking socket state machine polled from a single thread, this
// adapter uses a reader goroutine per live connection plus a connCh
// handoff so Poll, SendBytes, and ReceiveChunk never wait on a dial, an
// accept, or a read, and stay lock-compatible with being called from one
// driver goroutine. Poll and SendBytes do write buffered tx bytes to the
// socket directly, with a writeFlushDeadline (20ms) write deadline, so
// either call can block for up to that long when the socket cannot take
// more data.
//
// Every connection (accepted or dialed) starts with an 8-byte handshake
// exchange: on connect, the adapter immediately queues its own outbound
// frame, and the first HandshakeFrameSize bytes received are diverted to
// bcnp.Handshake.Accept rather than forwarded to rx. IsConnected only
// reports true once that exchange has succeeded, so a caller polling
// IsConnected before sending application traffic never races the
// handshake.
type TCPAdapter struct {
	cfg        TCPConfig
	isServer   bool
	schemaHash uint32

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	lastRx    time.Time

	handshake         *bcnp.Handshake
	handshakeBuf      [bcnp.HandshakeFrameSize]byte
	handshakeFill     int
	handshakeSettled  bool
	handshakeComplete bool

	tx *ring.ByteRing
	rx *ring.ByteRing

	connCh chan net.Conn

	listener   net.Listener
	targetAddr string
	nextDial   time.Time
	dialing    bool
	closed     bool

	recorder metrics.Recorder
	logger   *bcnp.Logger
}

// NewTCPServer starts listening on listenAddr and returns a TCPAdapter
// that will serve the first client to connect, replacing it if another
// client connects later. schemaHash is advertised to, and expected from,
// every peer's handshake frame (ordinarily Registry.SchemaHash).
func NewTCPServer(listenAddr string, schemaHash uint32, cfg TCPConfig) (*TCPAdapter, error) {
	cfg = cfg.clamped()
	l, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	a := &TCPAdapter{
		cfg:        cfg,
		isServer:   true,
		schemaHash: schemaHash,
		listener:   l,
		tx:         ring.NewByteRing(cfg.BufferCapacity),
		rx:         ring.NewByteRing(cfg.BufferCapacity),
		connCh:     make(chan net.Conn, 1),
		recorder:   metrics.NoOp,
		logger:     bcnp.DevNullLogger,
	}
	go a.acceptLoop()
	return a, nil
}

// NewTCPClient constructs a TCPAdapter that dials targetAddr, retrying
// every cfg.ReconnectInterval while disconnected. The first dial attempt
// happens on the first call to Poll. schemaHash is advertised to, and
// expected from, the server's handshake frame.
func NewTCPClient(targetAddr string, schemaHash uint32, cfg TCPConfig) *TCPAdapter {
	cfg = cfg.clamped()
	return &TCPAdapter{
		cfg:        cfg,
		isServer:   false,
		schemaHash: schemaHash,
		targetAddr: targetAddr,
		tx:         ring.NewByteRing(cfg.BufferCapacity),
		rx:         ring.NewByteRing(cfg.BufferCapacity),
		connCh:     make(chan net.Conn, 1),
		recorder:   metrics.NoOp,
		logger:     bcnp.DevNullLogger,
	}
}

// SetRecorder installs r as the adapter's metrics sink (propagated to the
// handshake it owns), replacing whatever was previously set (metrics.NoOp
// by default). Passing nil is equivalent to metrics.NoOp.
func (a *TCPAdapter) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoOp
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recorder = r
	if a.handshake != nil {
		a.handshake.SetRecorder(r)
	}
}

// SetLogger installs l as the adapter's advisory logger, replacing
// whatever was previously set (bcnp.DevNullLogger by default). Passing
// nil is equivalent to bcnp.DevNullLogger.
func (a *TCPAdapter) SetLogger(l *bcnp.Logger) {
	if l == nil {
		l = bcnp.DevNullLogger
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logger = l
}

func (a *TCPAdapter) acceptLoop() {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			return
		}
		select {
		case a.connCh <- conn:
		default:
			conn.Close()
		}
	}
}

func (a *TCPAdapter) dialOnce() {
	conn, err := net.DialTimeout("tcp", a.targetAddr, a.cfg.ReconnectInterval)
	a.mu.Lock()
	a.dialing = false
	a.mu.Unlock()
	if err != nil {
		return
	}
	select {
	case a.connCh <- conn:
	default:
		conn.Close()
	}
}

// Poll picks up any newly accepted/dialed connection, reaps a zombie
// server-side client, kicks off a reconnect attempt for a disconnected
// client adapter, and flushes any buffered tx bytes.
func (a *TCPAdapter) Poll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	select {
	case conn := <-a.connCh:
		a.swapConnLocked(conn)
	default:
	}

	if a.isServer {
		if a.conn != nil && !a.lastRx.IsZero() && time.Since(a.lastRx) > a.cfg.ZombieTimeout {
			a.dropConnLocked()
		}
	} else if a.conn == nil && !a.dialing && time.Now().After(a.nextDial) {
		a.dialing = true
		a.nextDial = time.Now().Add(a.cfg.ReconnectInterval)
		go a.dialOnce()
	}

	a.flushLocked()
}

func (a *TCPAdapter) swapConnLocked(conn net.Conn) {
	a.dropConnLocked()
	a.conn = conn
	a.connected = true
	a.lastRx = time.Now()
	a.handshake = bcnp.NewHandshake(a.schemaHash)
	a.handshake.SetRecorder(a.recorder)
	a.tx.Write(a.handshake.OutboundFrame())
	go a.readLoop(conn)
}

func (a *TCPAdapter) dropConnLocked() {
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
	a.connected = false
	a.handshakeFill = 0
	a.handshakeSettled = false
	a.handshakeComplete = false
	a.tx.Reset()
}

func (a *TCPAdapter) readLoop(conn net.Conn) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			a.mu.Lock()
			if a.conn == conn {
				a.handleIncomingLocked(buf[:n])
			}
			a.mu.Unlock()
		}
		if err != nil {
			a.mu.Lock()
			if a.conn == conn {
				a.dropConnLocked()
			}
			a.mu.Unlock()
			return
		}
	}
}

// handleIncomingLocked diverts the first HandshakeFrameSize received bytes
// to the handshake, forwarding only what remains (if anything) to rx.
// Caller holds a.mu.
func (a *TCPAdapter) handleIncomingLocked(data []byte) {
	a.lastRx = time.Now()

	if !a.handshakeSettled {
		need := bcnp.HandshakeFrameSize - a.handshakeFill
		if need > len(data) {
			need = len(data)
		}
		copy(a.handshakeBuf[a.handshakeFill:], data[:need])
		a.handshakeFill += need
		data = data[need:]

		if a.handshakeFill == bcnp.HandshakeFrameSize {
			a.handshakeSettled = true
			if err := a.handshake.Accept(a.handshakeBuf[:]); err != nil {
				a.logger.Warn("tcp handshake rejected: %v", err)
				if errors.Is(err, bcnp.ErrBadHandshakeFrame) {
					a.dropConnLocked()
					return
				}
				// Schema mismatch: the byte pipe stays open (the peer
				// may be diagnosable), but handshakeComplete is never
				// set, so IsConnected keeps reporting false.
			} else {
				a.handshakeComplete = true
			}
		}
	}

	if len(data) > 0 {
		a.rx.Write(data)
	}
}

func (a *TCPAdapter) flushLocked() {
	if a.conn == nil || !a.connected || a.tx.Len() == 0 {
		return
	}
	pending := make([]byte, a.tx.Len())
	a.tx.Peek(0, pending)
	a.conn.SetWriteDeadline(time.Now().Add(writeFlushDeadline))
	n, err := a.conn.Write(pending)
	if n > 0 {
		a.tx.Discard(n)
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return
		}
		a.dropConnLocked()
	}
}

// SendBytes enqueues data for transmission, rejecting it outright if the
// tx buffer is already more than half full or cannot fit it at all.
func (a *TCPAdapter) SendBytes(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil || !a.connected {
		return false
	}
	if float64(a.tx.Len()) > float64(a.tx.Cap())*txCongestionFraction {
		return false
	}
	if len(data) > a.tx.Free() {
		return false
	}
	a.tx.Write(data)
	a.flushLocked()
	return true
}

// ReceiveChunk drains up to len(buf) bytes received so far.
func (a *TCPAdapter) ReceiveChunk(buf []byte) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.rx.Peek(0, buf)
	a.rx.Discard(n)
	return n
}

// IsConnected reports whether a peer is currently attached and the
// schema-hash handshake with it has completed successfully.
func (a *TCPAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected && a.handshakeComplete
}

// Close tears down the adapter: any listener, any live connection, and
// stops future reconnect/accept activity.
func (a *TCPAdapter) Close() error {
	a.mu.Lock()
	a.closed = true
	a.dropConnLocked()
	a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Close()
	}
	return nil
}

var _ Duplex = (*TCPAdapter)(nil)
