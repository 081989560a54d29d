// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import "encoding/binary"

// fixedMsg is a minimal fixed-layout test message: a 4-byte big-endian
// counter. Used across codec, registry, parser, and dispatcher tests so
// none of them need a real application schema.
type fixedMsg struct {
	typeID TypeID
	Value  uint32
}

func newFixedMsg(typeID TypeID) func() Message {
	return func() Message { return &fixedMsg{typeID: typeID} }
}

func (m *fixedMsg) TypeID() TypeID { return m.typeID }
func (m *fixedMsg) WireSize() int  { return 4 }

func (m *fixedMsg) Encode(dst []byte) bool {
	if len(dst) < 4 {
		return false
	}
	binary.BigEndian.PutUint32(dst, m.Value)
	return true
}

func (m *fixedMsg) Decode(src []byte) bool {
	if len(src) < 4 {
		return false
	}
	m.Value = binary.BigEndian.Uint32(src)
	return true
}

// timedMsg is a minimal TimedMessage: a 6-byte (4-byte value, 2-byte
// duration_ms) wire layout, used by queue tests.
type timedMsg struct {
	typeID   TypeID
	Value    uint32
	Duration uint16
}

func (m *timedMsg) TypeID() TypeID         { return m.typeID }
func (m *timedMsg) WireSize() int          { return 6 }
func (m *timedMsg) DurationMillis() uint16 { return m.Duration }

func (m *timedMsg) Encode(dst []byte) bool {
	if len(dst) < 6 {
		return false
	}
	binary.BigEndian.PutUint32(dst[0:4], m.Value)
	binary.BigEndian.PutUint16(dst[4:6], m.Duration)
	return true
}

func (m *timedMsg) Decode(src []byte) bool {
	if len(src) < 6 {
		return false
	}
	m.Value = binary.BigEndian.Uint32(src[0:4])
	m.Duration = binary.BigEndian.Uint16(src[4:6])
	return true
}
