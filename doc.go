// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bcnp implements BCNP (Binary Control Network Protocol) v3, a
// low-latency command and telemetry protocol between a driver station
// and a robot controller.
//
// The package is organized around four tightly coupled pieces: a wire
// codec for fixed-layout messages framed by a header and CRC32 trailer,
// a message registry mapping wire type IDs to wire sizes, a resynchronizing
// stream parser that recovers packets from an arbitrary byte stream, and a
// duration-scheduled message queue for playing back timed commands against
// a virtual clock. A dispatcher ties the parser to per-type handlers and a
// one-round schema-hash handshake.
//
// Concrete byte transports (TCP, UDP, loopback) live in the transport
// subpackage; this package only depends on the narrow ByteWriter/ByteStream
// contract described there.
package bcnp
