// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"sync"
	"time"

	"github.com/JonDoeBeep/BCNP/metrics"
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	ParserBufferSize  int
	ConnectionTimeout time.Duration
}

func (c DispatcherConfig) clamped() DispatcherConfig {
	if c.ParserBufferSize < minParserBufferSize {
		c.ParserBufferSize = DefaultParserBufferSize
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	return c
}

// Dispatcher is a thin adapter owning a StreamParser and a type_id to
// handler map, plus receive-time bookkeeping.
//
// Dispatcher is thread-safe for concurrent PushBytes calls (serialized by
// the underlying StreamParser's internal mutex), but handlers run on the
// calling goroutine and must never call back into the same Dispatcher: the
// StreamParser invokes handlePacket while still holding its own mutex, so a
// handler that calls PushBytes again deadlocks on that (non-reentrant)
// mutex by design: a handler is never allowed to reenter the pipeline
// that is currently calling it.
type Dispatcher struct {
	mu sync.Mutex

	cfg    DispatcherConfig
	parser *StreamParser
	reg    *Registry

	handlers map[TypeID]PacketFunc
	errFn    ErrorFunc

	lastRx      time.Time
	hasRx       bool
	parseErrors uint64

	recorder metrics.Recorder
	logger   *Logger
}

// NewDispatcher constructs a Dispatcher backed by reg for wire-size and
// validator lookups.
func NewDispatcher(cfg DispatcherConfig, reg *Registry) *Dispatcher {
	cfg = cfg.clamped()
	d := &Dispatcher{
		cfg:      cfg,
		reg:      reg,
		handlers: make(map[TypeID]PacketFunc),
		recorder: metrics.NoOp,
		logger:   DevNullLogger,
	}
	d.parser = NewStreamParser(
		ParserConfig{BufferSize: cfg.ParserBufferSize},
		reg.WireSize,
		d.handlePacket,
		d.handleError,
	)
	d.parser.SetValidatorLookup(reg.Validator)
	return d
}

// PushBytes forwards data to the internal stream parser. Safe for
// concurrent use.
func (d *Dispatcher) PushBytes(data []byte) {
	d.parser.Push(data)
}

// RegisterHandler installs fn as the handler for typeID, replacing any
// existing handler for that id. At most one handler may be registered
// per type_id at a time.
func (d *Dispatcher) RegisterHandler(typeID TypeID, fn PacketFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[typeID] = fn
}

// UnregisterHandler removes the handler for typeID, if any.
func (d *Dispatcher) UnregisterHandler(typeID TypeID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, typeID)
}

// SetRecorder installs r as the dispatcher's metrics sink, replacing
// whatever was previously set (metrics.NoOp by default). Passing nil is
// equivalent to metrics.NoOp.
func (d *Dispatcher) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoOp
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recorder = r
}

// SetLogger installs l as the dispatcher's advisory logger, replacing
// whatever was previously set (DevNullLogger by default). Passing nil is
// equivalent to DevNullLogger.
func (d *Dispatcher) SetLogger(l *Logger) {
	if l == nil {
		l = DevNullLogger
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logger = l
}

// SetErrorHandler installs fn as the parser-error callback.
func (d *Dispatcher) SetErrorHandler(fn ErrorFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errFn = fn
}

// IsConnected reports whether a packet has arrived within ConnectionTimeout
// of now.
func (d *Dispatcher) IsConnected(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasRx {
		return false
	}
	return now.Sub(d.lastRx) <= d.cfg.ConnectionTimeout
}

// LastReceiveTime returns the timestamp of the most recently dispatched
// packet, or the zero time if none has ever arrived.
func (d *Dispatcher) LastReceiveTime() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRx
}

// ParseErrorCount returns the cumulative count of parser errors observed.
func (d *Dispatcher) ParseErrorCount() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.parseErrors
}

// Parser exposes the underlying StreamParser for diagnostics.
func (d *Dispatcher) Parser() *StreamParser { return d.parser }

// handlePacket is the StreamParser's onPacket callback: stamp receive time,
// then route to a registered handler if one exists. Unknown-type packets
// are a valid protocol event (the parser already rejected truly unknown
// wire types before the dispatcher even sees a view), not an error.
func (d *Dispatcher) handlePacket(view PacketView) {
	d.mu.Lock()
	now := time.Now()
	d.lastRx = now
	d.hasRx = true
	fn := d.handlers[view.Header.MessageTypeID]
	rec := d.recorder
	d.mu.Unlock()

	rec.PacketsReceived(uint16(view.Header.MessageTypeID))

	if fn != nil {
		fn(view)
	}
}

func (d *Dispatcher) handleError(info ErrorInfo) {
	d.mu.Lock()
	d.parseErrors++
	fn := d.errFn
	rec := d.recorder
	log := d.logger
	d.mu.Unlock()

	rec.ParseError(info.Code.String())
	log.Warn("parse error %s at offset %d (consecutive=%d)", info.Code, info.StreamOffset, info.ConsecutiveErrors)

	if fn != nil {
		fn(info)
	}
}
