// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherRoutesToRegisteredHandler(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(1, 4, nil))

	d := NewDispatcher(DispatcherConfig{}, reg)

	var got []uint32
	d.RegisterHandler(1, func(view PacketView) {
		out, ok := DecodeAll(view, 1, func() *fixedMsg { return &fixedMsg{typeID: 1} })
		require.True(t, ok)
		for _, m := range out {
			got = append(got, m.Value)
		}
	})

	msgs := []*fixedMsg{{typeID: 1, Value: 11}}
	dst := make([]byte, EncodedLen(1, 4))
	n, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)

	d.PushBytes(dst[:n])

	require.Len(t, got, 1)
	assert.Equal(t, uint32(11), got[0])
	assert.True(t, d.IsConnected(d.LastReceiveTime()))
}

func TestDispatcherUnregisterHandler(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(1, 4, nil))
	d := NewDispatcher(DispatcherConfig{}, reg)

	called := false
	d.RegisterHandler(1, func(PacketView) { called = true })
	d.UnregisterHandler(1)

	msgs := []*fixedMsg{{typeID: 1, Value: 1}}
	dst := make([]byte, EncodedLen(1, 4))
	n, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)
	d.PushBytes(dst[:n])

	assert.False(t, called)
}

func TestDispatcherReplacesExistingHandler(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(1, 4, nil))
	d := NewDispatcher(DispatcherConfig{}, reg)

	var which string
	d.RegisterHandler(1, func(PacketView) { which = "first" })
	d.RegisterHandler(1, func(PacketView) { which = "second" })

	msgs := []*fixedMsg{{typeID: 1, Value: 1}}
	dst := make([]byte, EncodedLen(1, 4))
	n, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)
	d.PushBytes(dst[:n])

	assert.Equal(t, "second", which)
}

func TestDispatcherParseErrorHandler(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(DispatcherConfig{}, reg)

	var errs []ErrorInfo
	d.SetErrorHandler(func(info ErrorInfo) { errs = append(errs, info) })

	dst := make([]byte, EncodedLen(0, 4))
	_, ok := EncodePacket(99, 0, 4, nil, dst)
	require.True(t, ok)
	d.PushBytes(dst)

	require.NotEmpty(t, errs)
	assert.Equal(t, ErrUnknownMessageType, errs[0].Code)
	assert.Equal(t, uint64(1), d.ParseErrorCount())
}

func TestDispatcherLogsParseErrors(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(DispatcherConfig{}, reg)

	var buf bytes.Buffer
	d.SetLogger(NewLoggerWithWriter(&buf, LogLevelWarn))

	dst := make([]byte, EncodedLen(0, 4))
	_, ok := EncodePacket(99, 0, 4, nil, dst)
	require.True(t, ok)
	d.PushBytes(dst)

	assert.Contains(t, buf.String(), "parse error")
}

func TestDispatcherNotConnectedWithoutTraffic(t *testing.T) {
	reg := NewRegistry()
	d := NewDispatcher(DispatcherConfig{}, reg)
	assert.False(t, d.IsConnected(d.LastReceiveTime()))
}
