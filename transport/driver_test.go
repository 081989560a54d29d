// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonDoeBeep/BCNP"
	"github.com/JonDoeBeep/BCNP/internal/testutil"
)

type counterMsg struct {
	value uint32
}

func (m *counterMsg) TypeID() bcnp.TypeID { return 1 }
func (m *counterMsg) WireSize() int        { return 4 }
func (m *counterMsg) Encode(dst []byte) bool {
	binary.BigEndian.PutUint32(dst, m.value)
	return true
}
func (m *counterMsg) Decode(src []byte) bool {
	m.value = binary.BigEndian.Uint32(src)
	return true
}

func TestDriverPollOncePumpsBytesIntoDispatcher(t *testing.T) {
	pair := NewLoopbackPair()

	reg := bcnp.NewRegistry()
	require.NoError(t, reg.Register(1, 4, nil))
	dispatcher := bcnp.NewDispatcher(bcnp.DispatcherConfig{}, reg)

	tracker := testutil.NewMessageTracker()
	dispatcher.RegisterHandler(1, func(view bcnp.PacketView) {
		tracker.MarkReceived("pkt")
	})

	driver := NewDriver(pair.B, dispatcher, DriverConfig{})

	msgs := []*counterMsg{{value: 5}}
	dst := make([]byte, bcnp.EncodedLen(1, 4))
	n, ok := bcnp.EncodeTyped(msgs, 0, dst)
	require.True(t, ok)

	tracker.MarkSent("pkt")
	require.True(t, pair.A.SendBytes(dst[:n]))

	testutil.WaitWithTimeout(t, func() bool {
		driver.PollOnce()
		return dispatcher.ParseErrorCount() > 0 || dispatcher.LastReceiveTime() != (time.Time{})
	}, time.Second, 5*time.Millisecond)

	tracker.VerifyDelivery(t)
}

func TestDriverSendPacket(t *testing.T) {
	pair := NewLoopbackPair()
	reg := bcnp.NewRegistry()
	dispatcher := bcnp.NewDispatcher(bcnp.DispatcherConfig{}, reg)
	driver := NewDriver(pair.A, dispatcher, DriverConfig{})

	assert.NoError(t, driver.SendPacket([]byte("data")))

	buf := make([]byte, 16)
	n := pair.B.ReceiveChunk(buf)
	assert.Equal(t, "data", string(buf[:n]))
}

func TestDriverSendPacketRequiresHandshakeCompleteAdapter(t *testing.T) {
	pair := NewLoopbackPair()
	pair.A.Disconnect()
	reg := bcnp.NewRegistry()
	dispatcher := bcnp.NewDispatcher(bcnp.DispatcherConfig{}, reg)
	driver := NewDriver(pair.A, dispatcher, DriverConfig{})

	err := driver.SendPacket([]byte("data"))
	assert.ErrorIs(t, err, bcnp.ErrHandshakeRequired)
}

func TestDriverRunStopsOnContextCancel(t *testing.T) {
	pair := NewLoopbackPair()
	reg := bcnp.NewRegistry()
	dispatcher := bcnp.NewDispatcher(bcnp.DispatcherConfig{}, reg)
	driver := NewDriver(pair.A, dispatcher, DriverConfig{PollInterval: 5 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := driver.Run(ctx)
	assert.NoError(t, err)
}
