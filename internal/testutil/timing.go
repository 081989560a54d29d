// Copyright 2025 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package testutil

import (
	"context"
	"sync"
	"testing"
	"time"
)

// MessageTracker tracks sent and received messages for delivery/latency
// verification in end-to-end transport and dispatcher tests.
type MessageTracker struct {
	sent     map[string]time.Time
	received map[string]time.Time
	order    []string
	mu       sync.RWMutex
}

// NewMessageTracker creates a new message tracker.
func NewMessageTracker() *MessageTracker {
	return &MessageTracker{
		sent:     make(map[string]time.Time),
		received: make(map[string]time.Time),
		order:    make([]string, 0),
	}
}

// MarkSent marks a message as sent.
func (mt *MessageTracker) MarkSent(messageID string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.sent[messageID] = time.Now()
}

// MarkReceived marks a message as received.
func (mt *MessageTracker) MarkReceived(messageID string) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.received[messageID] = time.Now()
	mt.order = append(mt.order, messageID)
}

// GetStats returns statistics about the message exchange.
func (mt *MessageTracker) GetStats() MessageStats {
	mt.mu.RLock()
	defer mt.mu.RUnlock()

	stats := MessageStats{
		TotalSent:     len(mt.sent),
		TotalReceived: len(mt.received),
		MessageOrder:  make([]string, len(mt.order)),
		Latencies:     make(map[string]time.Duration),
	}
	copy(stats.MessageOrder, mt.order)

	for msgID, sentTime := range mt.sent {
		if recvTime, received := mt.received[msgID]; received {
			stats.Latencies[msgID] = recvTime.Sub(sentTime)
		}
	}
	return stats
}

// VerifyDelivery fails t if any sent message was never received.
func (mt *MessageTracker) VerifyDelivery(t testing.TB) {
	stats := mt.GetStats()
	if stats.TotalSent != stats.TotalReceived {
		t.Errorf("message delivery mismatch: sent %d, received %d",
			stats.TotalSent, stats.TotalReceived)
	}

	mt.mu.RLock()
	defer mt.mu.RUnlock()
	for msgID := range mt.sent {
		if _, received := mt.received[msgID]; !received {
			t.Errorf("message %s was sent but not received", msgID)
		}
	}
}

// MessageStats holds statistics about a tracked message exchange.
type MessageStats struct {
	TotalSent     int
	TotalReceived int
	MessageOrder  []string
	Latencies     map[string]time.Duration
}

// GetAverageLatency returns the mean latency across all matched messages.
func (ms *MessageStats) GetAverageLatency() time.Duration {
	if len(ms.Latencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, latency := range ms.Latencies {
		total += latency
	}
	return total / time.Duration(len(ms.Latencies))
}

// TestTimeoutContext creates a context with timeout for testing.
func TestTimeoutContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// WaitWithTimeout polls condition until it returns true or timeout
// elapses, failing t in the latter case.
func WaitWithTimeout(t testing.TB, condition func() bool, timeout time.Duration, checkInterval time.Duration) {
	ctx, cancel := TestTimeoutContext(timeout)
	defer cancel()

	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("timeout waiting for condition after %v", timeout)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}
