// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ring provides fixed-capacity circular buffers with no heap
// allocation after construction, used by the stream parser's receive
// buffer and the timed message queue's pending-message store. Indices
// head/size into a fixed-size backing array stand in for a linked list.
package ring

// ByteRing is a fixed-capacity circular byte buffer.
type ByteRing struct {
	buf  []byte
	head int
	size int
}

// NewByteRing allocates a ByteRing with the given capacity. This is the
// only allocation in the ring's lifetime.
func NewByteRing(capacity int) *ByteRing {
	return &ByteRing{buf: make([]byte, capacity)}
}

// Cap returns the ring's fixed capacity.
func (r *ByteRing) Cap() int { return len(r.buf) }

// Len returns the number of bytes currently buffered.
func (r *ByteRing) Len() int { return r.size }

// Free returns the number of bytes that can still be written.
func (r *ByteRing) Free() int { return len(r.buf) - r.size }

// Write appends p to the ring, splitting the copy at the wrap point if
// necessary. It returns the number of bytes actually written, which is
// less than len(p) if the ring does not have room for all of it.
func (r *ByteRing) Write(p []byte) int {
	n := len(p)
	if n > r.Free() {
		n = r.Free()
	}
	if n == 0 {
		return 0
	}
	tail := (r.head + r.size) % len(r.buf)
	first := len(r.buf) - tail
	if first > n {
		first = n
	}
	copy(r.buf[tail:tail+first], p[:first])
	if n > first {
		copy(r.buf[0:n-first], p[first:n])
	}
	r.size += n
	return n
}

// Peek copies up to len(dst) bytes starting at logical offset off (0 is the
// oldest byte still buffered) into dst, without discarding them. It returns
// the number of bytes copied.
func (r *ByteRing) Peek(off int, dst []byte) int {
	if off >= r.size {
		return 0
	}
	n := len(dst)
	if max := r.size - off; n > max {
		n = max
	}
	start := (r.head + off) % len(r.buf)
	first := len(r.buf) - start
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[start:start+first])
	if n > first {
		copy(dst[first:n], r.buf[0:n-first])
	}
	return n
}

// ByteAt returns the byte at logical offset off without discarding it.
func (r *ByteRing) ByteAt(off int) byte {
	idx := (r.head + off) % len(r.buf)
	return r.buf[idx]
}

// Discard drops the oldest n bytes from the ring (n is clamped to Len()).
func (r *ByteRing) Discard(n int) {
	if n > r.size {
		n = r.size
	}
	r.head = (r.head + n) % len(r.buf)
	r.size -= n
}

// Reset empties the ring.
func (r *ByteRing) Reset() {
	r.head = 0
	r.size = 0
}
