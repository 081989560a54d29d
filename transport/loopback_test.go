// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestLoopbackPairDeliversBothWays(t *testing.T) {
	pair := NewLoopbackPair()

	require.True(t, pair.A.SendBytes([]byte("hello")))
	buf := make([]byte, 32)
	n := pair.B.ReceiveChunk(buf)
	assert.Equal(t, "hello", string(buf[:n]))

	require.True(t, pair.B.SendBytes([]byte("world")))
	n = pair.A.ReceiveChunk(buf)
	assert.Equal(t, "world", string(buf[:n]))
}

func TestLoopbackDisconnectBlocksSend(t *testing.T) {
	pair := NewLoopbackPair()
	pair.A.Disconnect()

	assert.False(t, pair.A.SendBytes([]byte("x")))
	assert.False(t, pair.A.IsConnected())

	pair.A.Reconnect()
	assert.True(t, pair.A.IsConnected())
	assert.True(t, pair.A.SendBytes([]byte("x")))
}

func TestLoopbackReceiveChunkEmptyWhenNothingSent(t *testing.T) {
	pair := NewLoopbackPair()
	buf := make([]byte, 8)
	n := pair.A.ReceiveChunk(buf)
	assert.Equal(t, 0, n)
}
