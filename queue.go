// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"sync"
	"time"

	"github.com/JonDoeBeep/BCNP/internal/ring"
	"github.com/JonDoeBeep/BCNP/metrics"
)

const (
	// DefaultQueueCapacity is the default number of pending messages a
	// Queue can hold.
	DefaultQueueCapacity = 200
	// DefaultConnectionTimeout is the default "link is dead" threshold.
	DefaultConnectionTimeout = 200 * time.Millisecond
	// DefaultMaxCommandLag is the default bound on how much schedule
	// history may replay after an update() gap.
	DefaultMaxCommandLag = 100 * time.Millisecond
)

// QueueConfig configures a Queue. Capacity must be >= 1 and MaxCommandLag
// must be positive; SetConfig/NewQueue replace a value outside those limits
// (and a non-positive ConnectionTimeout) with the matching Default* constant.
type QueueConfig struct {
	Capacity          int
	ConnectionTimeout time.Duration
	MaxCommandLag     time.Duration
}

func (c QueueConfig) clamped() QueueConfig {
	if c.Capacity < 1 {
		c.Capacity = DefaultQueueCapacity
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.MaxCommandLag <= 0 {
		c.MaxCommandLag = DefaultMaxCommandLag
	}
	return c
}

// QueueMetrics are cumulative counters maintained by a Queue.
type QueueMetrics struct {
	MessagesReceived uint64
	QueueOverflows   uint64
	MessagesSkipped  uint64
}

// activeSlot holds the currently-playing message and the virtual time at
// which it began.
type activeSlot[T TimedMessage] struct {
	message T
	start   time.Time
}

// Queue is a per-message-type FIFO that plays back duration-bearing
// messages against a virtual clock. It is generic over any message type
// implementing TimedMessage.
//
// All public operations lock an internal mutex. ActiveMessage additionally
// offers a non-blocking variant (TryActiveMessage) for real-time readers
// that must never wait on contention.
type Queue[T TimedMessage] struct {
	mu sync.Mutex

	cfg     QueueConfig
	pending *ring.ItemRing[T]

	active *activeSlot[T]
	cursor time.Time
	hasCur bool
	lastRx time.Time
	hasRx  bool

	metrics QueueMetrics

	name     string
	recorder metrics.Recorder
	logger   *Logger
}

// NewQueue constructs a Queue with the given configuration, clamped to
// safe minima. name identifies this queue in metrics labels (e.g. the
// message type it carries); it may be empty.
func NewQueue[T TimedMessage](name string, cfg QueueConfig) *Queue[T] {
	cfg = cfg.clamped()
	return &Queue[T]{
		cfg:      cfg,
		pending:  ring.NewItemRing[T](cfg.Capacity),
		name:     name,
		recorder: metrics.NoOp,
		logger:   DevNullLogger,
	}
}

// SetRecorder installs r as the queue's metrics sink, replacing whatever
// was previously set (metrics.NoOp by default). Passing nil is equivalent
// to metrics.NoOp.
func (q *Queue[T]) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoOp
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recorder = r
}

// SetLogger installs l as the queue's advisory logger, replacing whatever
// was previously set (DevNullLogger by default). Passing nil is
// equivalent to DevNullLogger.
func (q *Queue[T]) SetLogger(l *Logger) {
	if l == nil {
		l = DevNullLogger
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.logger = l
}

// Push appends msg to the tail of the pending ring. It returns false
// (counted as an overflow) if the queue is already at configured capacity.
func (q *Queue[T]) Push(msg T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushLocked(msg)
}

func (q *Queue[T]) pushLocked(msg T) bool {
	if !q.pending.PushBack(msg) {
		q.metrics.QueueOverflows++
		q.recorder.QueueOverflow(q.name)
		q.logger.Warn("queue %s overflow: dropping push at capacity %d", q.name, q.cfg.Capacity)
		return false
	}
	return true
}

// Clear discards every pending message and the active slot, without
// touching the virtual cursor or connection state.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearLocked()
}

func (q *Queue[T]) clearLocked() {
	q.pending.Clear()
	q.active = nil
}

// Size returns the number of pending (not-yet-active) messages.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// NotifyReceived stamps the connection-liveness clock. Call this whenever a
// packet for this queue's message type arrives.
func (q *Queue[T]) NotifyReceived(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lastRx = now
	q.hasRx = true
	q.metrics.MessagesReceived++
}

// IsConnected reports whether a packet has ever been received and the gap
// since the last one is within ConnectionTimeout.
func (q *Queue[T]) IsConnected(now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isConnectedLocked(now)
}

func (q *Queue[T]) isConnectedLocked(now time.Time) bool {
	if !q.hasRx {
		return false
	}
	return now.Sub(q.lastRx) <= q.cfg.ConnectionTimeout
}

// Update drives the queue's state machine forward to now: disconnect
// handling, active-slot completion (looping while more messages are due,
// so a long pause drains every message whose window has already elapsed),
// and promotion of the next pending message.
func (q *Queue[T]) Update(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isConnectedLocked(now) {
		q.clearLocked()
		q.hasCur = false
		return
	}

	if q.active == nil {
		q.promoteNextLocked(now)
		return
	}

	for q.active != nil {
		elapsed := now.Sub(q.active.start)
		due := time.Duration(q.active.message.DurationMillis()) * time.Millisecond
		if elapsed < due {
			return
		}
		q.cursor = q.active.start.Add(due)
		q.hasCur = true
		q.active = nil
		q.promoteNextLocked(now)
	}
}

// promoteNextLocked advances the active message once its duration has
// elapsed, pulling the next pending message off the front of the queue.
// Caller holds q.mu and has already established the queue is connected.
func (q *Queue[T]) promoteNextLocked(now time.Time) {
	if !q.hasCur {
		q.cursor = now
		q.hasCur = true
	}

	for {
		if q.pending.Empty() {
			if q.cursor.After(now) {
				q.cursor = now
			}
			return
		}

		head := q.pending.Front()
		duration := time.Duration(head.DurationMillis()) * time.Millisecond
		projectedStart := q.cursor
		projectedEnd := projectedStart.Add(duration)
		lagFloor := now.Add(-q.cfg.MaxCommandLag)

		if !projectedEnd.After(lagFloor) {
			q.pending.PopFront()
			q.cursor = projectedEnd
			q.metrics.MessagesSkipped++
			q.recorder.CommandsSkipped(q.name, 1)
			continue
		}

		if projectedStart.Before(lagFloor) {
			projectedStart = lagFloor
		}

		q.pending.PopFront()
		q.active = &activeSlot[T]{message: head, start: projectedStart}
		q.cursor = projectedStart.Add(duration)
		return
	}
}

// ActiveMessage returns the currently playing message, blocking on the
// internal mutex if contended.
func (q *Queue[T]) ActiveMessage() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.active == nil {
		var zero T
		return zero, false
	}
	return q.active.message, true
}

// TryActiveMessage is a non-blocking variant of ActiveMessage for real-time
// readers that must not wait on contention; it reports (zero, false) under
// lock contention exactly as it would for "no active message".
func (q *Queue[T]) TryActiveMessage() (T, bool) {
	if !q.mu.TryLock() {
		var zero T
		return zero, false
	}
	defer q.mu.Unlock()
	if q.active == nil {
		var zero T
		return zero, false
	}
	return q.active.message, true
}

// SetMetrics overwrites the queue's metrics counters (e.g. to reset them).
func (q *Queue[T]) SetMetrics(m QueueMetrics) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.metrics = m
}

// Metrics returns a copy of the queue's current metrics counters.
func (q *Queue[T]) Metrics() QueueMetrics {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.metrics
}

// ResetMetrics zeroes the queue's metrics counters.
func (q *Queue[T]) ResetMetrics() {
	q.SetMetrics(QueueMetrics{})
}

// SetConfig reconfigures the queue. A changed Capacity discards pending
// messages, since the ring is resized — the same discard that happens
// on disconnect.
func (q *Queue[T]) SetConfig(cfg QueueConfig) {
	cfg = cfg.clamped()
	q.mu.Lock()
	defer q.mu.Unlock()
	if cfg.Capacity != q.cfg.Capacity {
		q.pending.Resize(cfg.Capacity)
	}
	q.cfg = cfg
}

// GetConfig returns the queue's current configuration.
func (q *Queue[T]) GetConfig() QueueConfig {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cfg
}

// Transaction acquires exclusive access to the queue for an atomic batch of
// Push/Clear calls. Release by calling Commit (or simply letting the
// Transaction go out of scope is not enough — Commit must be called to
// unlock).
type Transaction[T TimedMessage] struct {
	q *Queue[T]
}

// BeginTransaction locks the queue and returns a Transaction handle. The
// caller must call Commit exactly once.
func (q *Queue[T]) BeginTransaction() *Transaction[T] {
	q.mu.Lock()
	return &Transaction[T]{q: q}
}

// Push appends msg within the transaction's exclusive scope.
func (t *Transaction[T]) Push(msg T) bool {
	return t.q.pushLocked(msg)
}

// Clear discards pending/active state within the transaction's exclusive
// scope.
func (t *Transaction[T]) Clear() {
	t.q.clearLocked()
}

// Commit releases the transaction's exclusive lock.
func (t *Transaction[T]) Commit() {
	t.q.mu.Unlock()
}
