// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteRingWriteAndPeekWraps(t *testing.T) {
	r := NewByteRing(4)
	assert.Equal(t, 2, r.Write([]byte{1, 2}))
	r.Discard(2)
	assert.Equal(t, 4, r.Write([]byte{3, 4, 5, 6}))

	buf := make([]byte, 4)
	n := r.Peek(0, buf)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{3, 4, 5, 6}, buf)
}

func TestByteRingWriteReturnsShortOnFull(t *testing.T) {
	r := NewByteRing(3)
	n := r.Write([]byte{1, 2, 3, 4})
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, r.Free())
}

func TestByteRingByteAtAndDiscard(t *testing.T) {
	r := NewByteRing(8)
	r.Write([]byte{10, 20, 30})
	assert.Equal(t, byte(20), r.ByteAt(1))
	r.Discard(1)
	assert.Equal(t, byte(20), r.ByteAt(0))
	assert.Equal(t, 2, r.Len())
}

func TestByteRingReset(t *testing.T) {
	r := NewByteRing(4)
	r.Write([]byte{1, 2, 3})
	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 4, r.Free())
}

func TestItemRingPushFrontPop(t *testing.T) {
	r := NewItemRing[int](3)
	require.True(t, r.PushBack(1))
	require.True(t, r.PushBack(2))
	require.True(t, r.PushBack(3))
	assert.True(t, r.Full())
	assert.False(t, r.PushBack(4))

	assert.Equal(t, 1, r.Front())
	assert.Equal(t, 1, r.PopFront())
	assert.Equal(t, 2, r.Len())
	assert.True(t, r.PushBack(5))

	assert.Equal(t, 2, r.PopFront())
	assert.Equal(t, 3, r.PopFront())
	assert.Equal(t, 5, r.PopFront())
	assert.True(t, r.Empty())
}

func TestItemRingClearZeroesSlots(t *testing.T) {
	r := NewItemRing[string](2)
	r.PushBack("a")
	r.Clear()
	assert.Equal(t, "", r.buf[0])
	assert.True(t, r.Empty())
	assert.Equal(t, 0, r.Len())
	require.True(t, r.PushBack("b"))
	assert.Equal(t, "b", r.Front())
}

func TestItemRingResizeDiscards(t *testing.T) {
	r := NewItemRing[int](2)
	r.PushBack(1)
	r.PushBack(2)
	r.Resize(5)
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 5, r.Cap())
}
