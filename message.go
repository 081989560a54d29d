// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

// TypeID is the 16-bit wire identifier of a message type, unique within a
// schema.
type TypeID uint16

// Message is the capability every wire type must implement: a fixed
// compile-time-known wire size, and big-endian, no-padding encode/decode.
//
// Encode writes the message into dst, which is guaranteed to be at least
// WireSize() bytes long, and reports whether encoding succeeded (it fails
// only for non-finite float fields). Decode reads WireSize() bytes from src
// and reports whether the bytes were valid (again, only float finiteness is
// checked here; structural validity is the caller's responsibility).
type Message interface {
	TypeID() TypeID
	WireSize() int
	Encode(dst []byte) bool
	Decode(src []byte) bool
}

// TimedMessage is a Message that additionally carries a playback duration in
// milliseconds. Only message types implementing TimedMessage may be pushed
// into a Queue.
type TimedMessage interface {
	Message
	DurationMillis() uint16
}

// Validator inspects the raw wire bytes of a single message (before typed
// decode) and reports whether they are acceptable. The registry attaches an
// optional validator per type; the stream parser runs it after a successful
// CRC check so malformed payloads (e.g. NaN/Inf floats) are rejected before
// reaching application handlers.
type Validator func(raw []byte) bool
