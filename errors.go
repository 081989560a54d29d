// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import "errors"

// ParseError classifies why a packet failed to decode. Zero value ErrNone
// means decoding succeeded.
type ParseError int

const (
	ErrNone ParseError = iota
	ErrTooSmall
	ErrUnsupportedVersion
	ErrUnknownMessageType
	ErrTooManyMessages
	ErrTruncated
	ErrInvalidFloat
	ErrChecksumMismatch
)

func (e ParseError) String() string {
	switch e {
	case ErrNone:
		return "none"
	case ErrTooSmall:
		return "too_small"
	case ErrUnsupportedVersion:
		return "unsupported_version"
	case ErrUnknownMessageType:
		return "unknown_message_type"
	case ErrTooManyMessages:
		return "too_many_messages"
	case ErrTruncated:
		return "truncated"
	case ErrInvalidFloat:
		return "invalid_float"
	case ErrChecksumMismatch:
		return "checksum_mismatch"
	default:
		return "unknown"
	}
}

// Recoverable reports whether a stream parser should keep waiting for more
// bytes (true) rather than discard and resynchronize (false).
func (e ParseError) Recoverable() bool {
	switch e {
	case ErrTooSmall, ErrTruncated:
		return true
	default:
		return false
	}
}

// Sentinel errors for API boundaries that return a single error value
// (handshake, registry setup, transport construction). The hot-path codec
// and parser never allocate an error value; they return ParseError instead.
var (
	// ErrDuplicateTypeID is returned by Registry.Register when a type_id
	// has already been registered.
	ErrDuplicateTypeID = errors.New("bcnp: duplicate message type id")

	// ErrSchemaMismatch is returned by the handshake when the peer's
	// schema hash does not match the local schema hash.
	ErrSchemaMismatch = errors.New("bcnp: peer schema hash mismatch")

	// ErrHandshakeRequired is returned when application traffic is
	// attempted before the handshake has completed.
	ErrHandshakeRequired = errors.New("bcnp: handshake not complete")

	// ErrBadHandshakeFrame is returned when a handshake frame does not
	// carry the expected magic bytes.
	ErrBadHandshakeFrame = errors.New("bcnp: malformed handshake frame")
)
