// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	msgs := []*fixedMsg{
		{typeID: 7, Value: 1},
		{typeID: 7, Value: 2},
		{typeID: 7, Value: 3},
	}
	dst := make([]byte, EncodedLen(len(msgs), 4))
	n, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)
	require.Equal(t, len(dst), n)

	view, perr, consumed := DecodeView(dst, 4)
	require.Equal(t, ErrNone, perr)
	assert.Equal(t, n, consumed)
	assert.Equal(t, TypeID(7), view.Header.MessageTypeID)
	assert.Equal(t, 3, view.Len())

	out, ok := DecodeAll(view, 7, func() *fixedMsg { return &fixedMsg{typeID: 7} })
	require.True(t, ok)
	require.Len(t, out, 3)
	assert.Equal(t, uint32(1), out[0].Value)
	assert.Equal(t, uint32(2), out[1].Value)
	assert.Equal(t, uint32(3), out[2].Value)
}

func TestDecodeAllWrongTypeYieldsEmpty(t *testing.T) {
	msgs := []*fixedMsg{{typeID: 7, Value: 1}}
	dst := make([]byte, EncodedLen(1, 4))
	_, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)

	view, perr, _ := DecodeView(dst, 4)
	require.Equal(t, ErrNone, perr)

	out, ok := DecodeAll(view, 99, func() *fixedMsg { return &fixedMsg{} })
	assert.True(t, ok)
	assert.Nil(t, out)
}

func TestDecodeViewTooSmall(t *testing.T) {
	_, perr, consumed := DecodeView([]byte{1, 2, 3}, 4)
	assert.Equal(t, ErrTooSmall, perr)
	assert.Equal(t, 0, consumed)
}

func TestDecodeViewUnsupportedVersion(t *testing.T) {
	dst := make([]byte, EncodedLen(0, 4))
	_, ok := EncodePacket(1, 0, 4, nil, dst)
	require.True(t, ok)
	dst[0] = ProtocolMajor + 1

	_, perr, consumed := DecodeView(dst, 4)
	assert.Equal(t, ErrUnsupportedVersion, perr)
	assert.Equal(t, 1, consumed)
}

func TestDecodeViewTruncated(t *testing.T) {
	msgs := []*fixedMsg{{typeID: 1, Value: 9}}
	dst := make([]byte, EncodedLen(1, 4))
	n, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)

	_, perr, consumed := DecodeView(dst[:n-1], 4)
	assert.Equal(t, ErrTruncated, perr)
	assert.Equal(t, 0, consumed)
}

func TestDecodeViewChecksumMismatch(t *testing.T) {
	msgs := []*fixedMsg{{typeID: 1, Value: 9}}
	dst := make([]byte, EncodedLen(1, 4))
	n, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)
	dst[n-1] ^= 0xFF

	_, perr, consumed := DecodeView(dst, 4)
	assert.Equal(t, ErrChecksumMismatch, perr)
	assert.Equal(t, n, consumed)
}

func TestDecodeViewByRegistryUnknownType(t *testing.T) {
	reg := NewRegistry()
	dst := make([]byte, EncodedLen(0, 4))
	_, ok := EncodePacket(42, 0, 4, nil, dst)
	require.True(t, ok)

	_, perr, consumed := DecodeViewByRegistry(dst, reg)
	assert.Equal(t, ErrUnknownMessageType, perr)
	assert.Equal(t, 1, consumed)
}

func TestDecodeViewByRegistryKnownType(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(42, 4, nil))

	msgs := []*fixedMsg{{typeID: 42, Value: 5}}
	dst := make([]byte, EncodedLen(1, 4))
	n, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)

	view, perr, consumed := DecodeViewByRegistry(dst, reg)
	require.Equal(t, ErrNone, perr)
	assert.Equal(t, n, consumed)
	assert.Equal(t, 1, view.Len())
}

func TestDecodeViewByRegistryValidatorRejectsPayload(t *testing.T) {
	reg := NewRegistry()
	alwaysReject := func(raw []byte) bool { return false }
	require.NoError(t, reg.Register(1, 4, alwaysReject))

	msgs := []*fixedMsg{{typeID: 1, Value: 1}}
	dst := make([]byte, EncodedLen(1, 4))
	_, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)

	_, perr, _ := DecodeViewByRegistry(dst, reg)
	assert.Equal(t, ErrInvalidFloat, perr)
}

func TestEncodePacketRejectsTooManyMessages(t *testing.T) {
	msgs := make([]Message, MaxMessageCount+1)
	for i := range msgs {
		msgs[i] = &fixedMsg{typeID: 1}
	}
	dst := make([]byte, EncodedLen(len(msgs), 4))
	_, ok := EncodePacket(1, 0, 4, msgs, dst)
	assert.False(t, ok)
}

func TestEncodePacketRejectsReservedFlags(t *testing.T) {
	dst := make([]byte, EncodedLen(0, 4))
	_, ok := EncodePacket(1, 0x80, 4, nil, dst)
	assert.False(t, ok)
}

func TestEncodePacketRejectsShortDestination(t *testing.T) {
	msgs := []Message{&fixedMsg{typeID: 1, Value: 1}}
	dst := make([]byte, 3)
	_, ok := EncodePacket(1, 0, 4, msgs, dst)
	assert.False(t, ok)
}

func TestHeaderClearQueueFlag(t *testing.T) {
	h := Header{Flags: FlagClearQueue}
	assert.True(t, h.ClearQueue())

	h2 := Header{Flags: 0}
	assert.False(t, h2.ClearQueue())
}

func TestPacketViewRaw(t *testing.T) {
	msgs := []*fixedMsg{{typeID: 1, Value: 10}, {typeID: 1, Value: 20}}
	dst := make([]byte, EncodedLen(2, 4))
	_, ok := EncodeTyped(msgs, 0, dst)
	require.True(t, ok)

	view, perr, _ := DecodeView(dst, 4)
	require.Equal(t, ErrNone, perr)
	assert.Len(t, view.Raw(0), 4)
	assert.Len(t, view.Raw(1), 4)
}
