// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueuePushAndSize(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{Capacity: 4})
	assert.True(t, q.Push(&timedMsg{Value: 1, Duration: 10}))
	assert.True(t, q.Push(&timedMsg{Value: 2, Duration: 10}))
	assert.Equal(t, 2, q.Size())
}

func TestQueuePushOverflow(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{Capacity: 2})
	require.True(t, q.Push(&timedMsg{Value: 1, Duration: 10}))
	require.True(t, q.Push(&timedMsg{Value: 2, Duration: 10}))
	assert.False(t, q.Push(&timedMsg{Value: 3, Duration: 10}))

	m := q.Metrics()
	assert.Equal(t, uint64(1), m.QueueOverflows)
}

func TestQueuePushOverflowLogsWarning(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{Capacity: 1})
	var buf bytes.Buffer
	q.SetLogger(NewLoggerWithWriter(&buf, LogLevelWarn))

	require.True(t, q.Push(&timedMsg{Value: 1, Duration: 10}))
	assert.False(t, q.Push(&timedMsg{Value: 2, Duration: 10}))

	assert.Contains(t, buf.String(), "overflow")
}

func TestQueueNotConnectedUntilFirstMessage(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{})
	now := time.Now()
	assert.False(t, q.IsConnected(now))

	q.NotifyReceived(now)
	assert.True(t, q.IsConnected(now))
	assert.False(t, q.IsConnected(now.Add(time.Hour)))
}

func TestQueueUpdatePromotesAndExpires(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{ConnectionTimeout: time.Second, MaxCommandLag: 500 * time.Millisecond})
	now := time.Now()
	q.NotifyReceived(now)

	require.True(t, q.Push(&timedMsg{Value: 1, Duration: 50}))
	q.Update(now)

	active, ok := q.ActiveMessage()
	require.True(t, ok)
	assert.Equal(t, uint32(1), active.Value)

	q.Update(now.Add(60 * time.Millisecond))
	_, ok = q.ActiveMessage()
	assert.False(t, ok)
}

func TestQueueUpdateDisconnectClearsState(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{ConnectionTimeout: 10 * time.Millisecond})
	now := time.Now()
	q.NotifyReceived(now)
	require.True(t, q.Push(&timedMsg{Value: 1, Duration: 50}))
	q.Update(now)

	q.Update(now.Add(time.Second))
	assert.Equal(t, 0, q.Size())
	_, ok := q.ActiveMessage()
	assert.False(t, ok)
}

func TestQueueLagFloorSkipsStaleMessages(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{ConnectionTimeout: time.Second, MaxCommandLag: 10 * time.Millisecond})
	now := time.Now()
	q.NotifyReceived(now)

	require.True(t, q.Push(&timedMsg{Value: 1, Duration: 5}))
	require.True(t, q.Push(&timedMsg{Value: 2, Duration: 5}))
	require.True(t, q.Push(&timedMsg{Value: 3, Duration: 5}))

	q.Update(now)

	q.Update(now.Add(time.Second))

	m := q.Metrics()
	assert.Greater(t, m.MessagesSkipped, uint64(0))
}

func TestQueueClear(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{})
	now := time.Now()
	q.NotifyReceived(now)
	require.True(t, q.Push(&timedMsg{Value: 1, Duration: 10}))
	q.Update(now)

	q.Clear()
	assert.Equal(t, 0, q.Size())
	_, ok := q.ActiveMessage()
	assert.False(t, ok)
}

func TestQueueTryActiveMessage(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{})
	_, ok := q.TryActiveMessage()
	assert.False(t, ok)
}

func TestQueueSetConfigResizeDiscardsPending(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{Capacity: 10})
	require.True(t, q.Push(&timedMsg{Value: 1, Duration: 10}))
	require.True(t, q.Push(&timedMsg{Value: 2, Duration: 10}))
	require.Equal(t, 2, q.Size())

	q.SetConfig(QueueConfig{Capacity: 5})
	assert.Equal(t, 0, q.Size())
	assert.Equal(t, 5, q.GetConfig().Capacity)
}

func TestQueueTransactionAtomicPushAndClear(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{})
	tx := q.BeginTransaction()
	tx.Push(&timedMsg{Value: 1, Duration: 10})
	tx.Push(&timedMsg{Value: 2, Duration: 10})
	tx.Commit()

	assert.Equal(t, 2, q.Size())
}

func TestQueueResetMetrics(t *testing.T) {
	q := NewQueue[*timedMsg]("test", QueueConfig{Capacity: 1})
	require.True(t, q.Push(&timedMsg{Value: 1, Duration: 10}))
	require.False(t, q.Push(&timedMsg{Value: 2, Duration: 10}))

	assert.NotZero(t, q.Metrics().QueueOverflows)
	q.ResetMetrics()
	assert.Zero(t, q.Metrics().QueueOverflows)
}
