// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"encoding/binary"
	"hash/crc32"
)

const (
	// ProtocolMajor and ProtocolMinor are the BCNP v3 wire version this
	// package speaks. The parser rejects any major.minor that does not
	// equal these exactly.
	ProtocolMajor uint8 = 3
	ProtocolMinor uint8 = 0

	// HeaderSize is the fixed 7-byte packet header.
	HeaderSize = 7
	// CRCSize is the trailing CRC32 size.
	CRCSize = 4
	// MaxMessageCount is the largest message_count a header may carry.
	MaxMessageCount = 65535

	// FlagClearQueue is bit 0 of the header flags byte.
	FlagClearQueue uint8 = 0x01
	// flagsReservedMask covers every bit other than FlagClearQueue; those
	// bits must be zero on the wire.
	flagsReservedMask uint8 = ^FlagClearQueue

	headerMajorIndex = 0
	headerMinorIndex = 1
	headerFlagsIndex = 2
	headerTypeIndex  = 3
	headerCountIndex = 5
)

// Header is the 7-byte BCNP packet header, decoded into host fields.
type Header struct {
	Major         uint8
	Minor         uint8
	Flags         uint8
	MessageTypeID TypeID
	MessageCount  uint16
}

// ClearQueue reports whether the CLEAR_QUEUE flag bit is set.
func (h Header) ClearQueue() bool { return h.Flags&FlagClearQueue != 0 }

func encodeHeader(h Header, dst []byte) {
	dst[headerMajorIndex] = h.Major
	dst[headerMinorIndex] = h.Minor
	dst[headerFlagsIndex] = h.Flags
	binary.BigEndian.PutUint16(dst[headerTypeIndex:], uint16(h.MessageTypeID))
	binary.BigEndian.PutUint16(dst[headerCountIndex:], h.MessageCount)
}

func decodeHeader(src []byte) Header {
	return Header{
		Major:         src[headerMajorIndex],
		Minor:         src[headerMinorIndex],
		Flags:         src[headerFlagsIndex],
		MessageTypeID: TypeID(binary.BigEndian.Uint16(src[headerTypeIndex:])),
		MessageCount:  binary.BigEndian.Uint16(src[headerCountIndex:]),
	}
}

// crcTable uses the reflected polynomial 0xEDB88320, matching
// crc32.IEEE — the table wire-compatible implementations of this
// trailer hand-roll in other languages.
var crcTable = crc32.MakeTable(crc32.IEEE)

func computeCRC(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// EncodedLen returns the total wire size of a packet with count messages of
// wireSize bytes each: header + payload + trailing CRC.
func EncodedLen(count int, wireSize int) int {
	return HeaderSize + count*wireSize + CRCSize
}

// EncodePacket writes typeID, flags, and messages (all of the same wire
// type) into dst as one framed BCNP packet: header, then each message's
// Encode output, then a trailing CRC32 over header+payload. It reports the
// number of bytes written and whether encoding succeeded.
//
// Encoding fails (returns 0, false) when len(messages) exceeds
// MaxMessageCount, when dst is too small to hold the encoded packet, or when
// any message's Encode call reports failure (non-finite float fields).
func EncodePacket(typeID TypeID, flags uint8, wireSize int, messages []Message, dst []byte) (int, bool) {
	if len(messages) > MaxMessageCount {
		return 0, false
	}
	if flags&flagsReservedMask != 0 {
		return 0, false
	}
	required := EncodedLen(len(messages), wireSize)
	if len(dst) < required {
		return 0, false
	}

	encodeHeader(Header{
		Major:         ProtocolMajor,
		Minor:         ProtocolMinor,
		Flags:         flags,
		MessageTypeID: typeID,
		MessageCount:  uint16(len(messages)),
	}, dst)

	offset := HeaderSize
	for _, m := range messages {
		if !m.Encode(dst[offset : offset+wireSize]) {
			return 0, false
		}
		offset += wireSize
	}

	crc := computeCRC(dst[:offset])
	binary.BigEndian.PutUint32(dst[offset:], crc)

	return offset + CRCSize, true
}

// EncodeTyped is a generic convenience wrapper over EncodePacket for a
// homogeneous slice of one concrete message type.
func EncodeTyped[T Message](messages []T, flags uint8, dst []byte) (int, bool) {
	ifaces := make([]Message, len(messages))
	var typeID TypeID
	var wireSize int
	for i, m := range messages {
		ifaces[i] = m
		if i == 0 {
			typeID = m.TypeID()
			wireSize = m.WireSize()
		}
	}
	if len(messages) == 0 {
		return 0, false
	}
	return EncodePacket(typeID, flags, wireSize, ifaces, dst)
}

// PacketView is a borrowed, read-only view into a stream parser's receive
// buffer: a decoded Header plus the raw payload bytes. A view delivered by a
// StreamParser is valid only for the duration of the packet callback: the
// parser stages every frame in the same buffer, so the next packet (in the
// same Push or a later one) overwrites it — callers must decode what they
// need before returning from their handler.
type PacketView struct {
	Header   Header
	WireSize int
	Payload  []byte
}

// Len returns the number of messages the view carries (Header.MessageCount).
func (v PacketView) Len() int { return int(v.Header.MessageCount) }

// Raw returns the raw wire bytes of the i-th message in the view, without
// decoding. It is a sub-slice of Payload, so it shares the view's lifetime.
func (v PacketView) Raw(i int) []byte {
	return v.Payload[i*v.WireSize : (i+1)*v.WireSize]
}

// DecodeAll decodes every message in the view into freshly allocated T
// instances via newMsg, provided the view's header type matches typeID.
// If the type does not match, it returns a nil, empty slice — a view
// requested with the wrong type yields the empty sequence rather than an
// error; it is not an error to ask a view for the wrong type.
func DecodeAll[T Message](v PacketView, typeID TypeID, newMsg func() T) ([]T, bool) {
	if v.Header.MessageTypeID != typeID {
		return nil, true
	}
	out := make([]T, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		m := newMsg()
		if !m.Decode(v.Raw(i)) {
			return out, false
		}
		out = append(out, m)
	}
	return out, true
}

// decodeView is the shared implementation behind DecodeView and
// DecodeViewByRegistry. It performs the header, length, and checksum
// checks in order and reports bytesConsumed as follows: ErrTooSmall and
// ErrTruncated consume 0, ErrUnsupportedVersion and ErrTooManyMessages
// consume 1, and ErrChecksumMismatch, ErrInvalidFloat and success consume
// the full frame size.
func decodeView(data []byte, wireSize int, validator Validator) (PacketView, ParseError, int) {
	if len(data) < HeaderSize {
		return PacketView{}, ErrTooSmall, 0
	}

	hdr := decodeHeader(data)

	if hdr.Major != ProtocolMajor || hdr.Minor != ProtocolMinor {
		return PacketView{}, ErrUnsupportedVersion, 1
	}
	if int(hdr.MessageCount) > MaxMessageCount {
		return PacketView{}, ErrTooManyMessages, 1
	}

	frameSize := EncodedLen(int(hdr.MessageCount), wireSize)
	if len(data) < frameSize {
		return PacketView{}, ErrTruncated, 0
	}

	payload := data[HeaderSize : frameSize-CRCSize]
	wantCRC := binary.BigEndian.Uint32(data[frameSize-CRCSize : frameSize])
	gotCRC := computeCRC(data[:frameSize-CRCSize])
	if wantCRC != gotCRC {
		return PacketView{}, ErrChecksumMismatch, frameSize
	}

	if validator != nil {
		for i := 0; i < int(hdr.MessageCount); i++ {
			raw := payload[i*wireSize : (i+1)*wireSize]
			if !validator(raw) {
				return PacketView{}, ErrInvalidFloat, frameSize
			}
		}
	}

	return PacketView{Header: hdr, WireSize: wireSize, Payload: payload}, ErrNone, frameSize
}

// DecodeView attempts to parse one framed packet out of the front of data,
// treating every message in it as wireSize bytes. See decodeView for the
// exact check ordering and bytesConsumed policy.
func DecodeView(data []byte, wireSize int) (PacketView, ParseError, int) {
	return decodeView(data, wireSize, nil)
}

// DecodeViewByRegistry is like DecodeView but looks wireSize (and an
// optional payload validator) up from reg by the header's message type id.
// It returns ErrUnknownMessageType with bytesConsumed=1 if the header is
// otherwise well-formed but names an unregistered type — the header must be
// read far enough to know the type id before this can be determined, so the
// TooSmall/UnsupportedVersion checks still run first.
func DecodeViewByRegistry(data []byte, reg *Registry) (PacketView, ParseError, int) {
	if len(data) < HeaderSize {
		return PacketView{}, ErrTooSmall, 0
	}
	hdr := decodeHeader(data)
	if hdr.Major != ProtocolMajor || hdr.Minor != ProtocolMinor {
		return PacketView{}, ErrUnsupportedVersion, 1
	}
	wireSize, ok := reg.WireSize(hdr.MessageTypeID)
	if !ok {
		return PacketView{}, ErrUnknownMessageType, 1
	}
	return decodeView(data, wireSize, reg.Validator(hdr.MessageTypeID))
}
