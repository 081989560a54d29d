// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"sync"

	"github.com/JonDoeBeep/BCNP/internal/ring"
)

// TelemetryAccumulatorConfig configures a TelemetryAccumulator.
type TelemetryAccumulatorConfig struct {
	// FlushIntervalTicks is the number of MaybeFlush calls between actual
	// flushes. A control loop calling MaybeFlush once per tick at 50Hz
	// with FlushIntervalTicks=2 emits telemetry packets at 25Hz.
	FlushIntervalTicks int
	// MaxBufferedMessages bounds the accumulator buffer. Once full, Record
	// drops the buffered batch entirely (latest-wins: a dashboard reading
	// the most recent snapshot doesn't care about older ones that never
	// got sent) rather than blocking or growing.
	MaxBufferedMessages int
}

func (c TelemetryAccumulatorConfig) clamped() TelemetryAccumulatorConfig {
	if c.FlushIntervalTicks < 1 {
		c.FlushIntervalTicks = 2
	}
	if c.MaxBufferedMessages < 1 {
		c.MaxBufferedMessages = 64
	}
	return c
}

// TelemetryMetrics are cumulative counters maintained by a
// TelemetryAccumulator.
type TelemetryMetrics struct {
	MessagesRecorded uint64
	MessagesSent     uint64
	PacketsSent      uint64
	BufferOverflows  uint64
	EncodeFailures   uint64
}

// TelemetrySink is the narrow transport surface a TelemetryAccumulator
// flushes through. Any transport.ByteWriter (TCPAdapter, UDPAdapter,
// Loopback) satisfies it.
type TelemetrySink interface {
	SendBytes(data []byte) bool
}

// TelemetryAccumulator batches high-frequency, duration-free snapshot
// messages and flushes them as a single BCNP packet
// every FlushIntervalTicks calls to MaybeFlush, rather than paying a
// transport round trip per reading. It always sends the current buffered
// state, never deltas, so a dropped packet self-corrects on the next flush.
//
// TelemetryAccumulator is generic over any Message type; unlike Queue it
// does not require TimedMessage, since telemetry snapshots carry no
// playback duration.
type TelemetryAccumulator[T Message] struct {
	mu sync.Mutex

	cfg       TelemetryAccumulatorConfig
	typeID    TypeID
	wireSize  int
	buffer    *ring.ItemRing[T]
	tickCount int
	metrics   TelemetryMetrics
}

// NewTelemetryAccumulator constructs an accumulator for messages of the
// given type id and fixed wire size (the same values that would be passed
// to Registry.Register for T).
func NewTelemetryAccumulator[T Message](typeID TypeID, wireSize int, cfg TelemetryAccumulatorConfig) *TelemetryAccumulator[T] {
	cfg = cfg.clamped()
	return &TelemetryAccumulator[T]{
		cfg:      cfg,
		typeID:   typeID,
		wireSize: wireSize,
		buffer:   ring.NewItemRing[T](cfg.MaxBufferedMessages),
	}
}

// Record appends msg to the buffer. If the buffer is already at capacity,
// it is cleared first (latest-wins: the previous batch is discarded rather
// than blocking the caller or growing without bound), counted as a buffer
// overflow.
func (a *TelemetryAccumulator[T]) Record(msg T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buffer.Full() {
		a.buffer.Clear()
		a.metrics.BufferOverflows++
	}
	a.buffer.PushBack(msg)
	a.metrics.MessagesRecorded++
}

// RecordBatch records every message in msgs in order.
func (a *TelemetryAccumulator[T]) RecordBatch(msgs []T) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range msgs {
		if a.buffer.Full() {
			a.buffer.Clear()
			a.metrics.BufferOverflows++
		}
		a.buffer.PushBack(m)
		a.metrics.MessagesRecorded++
	}
}

// MaybeFlush increments the tick counter and, once FlushIntervalTicks have
// elapsed, flushes the buffer through sink. Call this once per control
// loop iteration. It reports whether a packet was actually sent.
func (a *TelemetryAccumulator[T]) MaybeFlush(sink TelemetrySink) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tickCount++
	if a.tickCount < a.cfg.FlushIntervalTicks {
		return false
	}
	a.tickCount = 0
	return a.flushLocked(sink)
}

// ForceFlush flushes the buffer immediately, regardless of tick count.
func (a *TelemetryAccumulator[T]) ForceFlush(sink TelemetrySink) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tickCount = 0
	return a.flushLocked(sink)
}

func (a *TelemetryAccumulator[T]) flushLocked(sink TelemetrySink) bool {
	n := a.buffer.Len()
	if n == 0 {
		return false
	}
	batch := make([]T, 0, n)
	for !a.buffer.Empty() {
		batch = append(batch, a.buffer.PopFront())
	}

	dst := make([]byte, EncodedLen(len(batch), a.wireSize))
	encoded, ok := EncodeTyped(batch, 0, dst)
	if !ok {
		a.metrics.EncodeFailures++
		return false
	}
	if !sink.SendBytes(dst[:encoded]) {
		a.metrics.EncodeFailures++
		return false
	}
	a.metrics.MessagesSent += uint64(len(batch))
	a.metrics.PacketsSent++
	return true
}

// TypeID returns the message type id this accumulator flushes packets as.
func (a *TelemetryAccumulator[T]) TypeID() TypeID { return a.typeID }

// BufferedCount returns the number of messages currently buffered.
func (a *TelemetryAccumulator[T]) BufferedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buffer.Len()
}

// Clear discards all buffered messages without sending, and resets the
// tick counter.
func (a *TelemetryAccumulator[T]) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffer.Clear()
	a.tickCount = 0
}

// Metrics returns a copy of the accumulator's current metrics counters.
func (a *TelemetryAccumulator[T]) Metrics() TelemetryMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.metrics
}

// ResetMetrics zeroes the accumulator's metrics counters.
func (a *TelemetryAccumulator[T]) ResetMetrics() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.metrics = TelemetryMetrics{}
}

// SetConfig reconfigures the accumulator. A changed MaxBufferedMessages
// resizes (and discards) the buffer.
func (a *TelemetryAccumulator[T]) SetConfig(cfg TelemetryAccumulatorConfig) {
	cfg = cfg.clamped()
	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.MaxBufferedMessages != a.cfg.MaxBufferedMessages {
		a.buffer.Resize(cfg.MaxBufferedMessages)
	}
	a.cfg = cfg
}
