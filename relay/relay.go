// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package relay implements a service-keyed RPC relay for BCNP, grounded
// on a Service/Worker/PendingRequest broker model, reworked around Go
// channels and a BCNP-encodable frame instead of owning a socket
// directly: relay traffic still ultimately travels as ordinary BCNP
// packets (RelayFrame is a bcnp.Message like any other), it just happens
// to be routed through an in-process broker rather than demultiplexed
// off a single transport connection.
package relay

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonDoeBeep/BCNP"
	"github.com/JonDoeBeep/BCNP/metrics"
)

// MaxServiceNameLen and MaxPayloadLen bound RelayFrame's fixed wire
// layout, since every BCNP message type must have a single fixed
// WireSize.
const (
	MaxServiceNameLen = 32
	MaxPayloadLen     = 240

	FrameKindRequest = 0
	FrameKindReply   = 1
	FrameKindError   = 2

	relayFrameWireSize = 16 + 1 + MaxServiceNameLen + 1 + 2 + MaxPayloadLen
)

// ErrPayloadTooLarge is returned by EncodeRequest/EncodeReply when payload
// exceeds MaxPayloadLen.
var ErrPayloadTooLarge = errors.New("relay: payload exceeds MaxPayloadLen")

// ErrServiceNameTooLong is returned when a service name exceeds
// MaxServiceNameLen bytes.
var ErrServiceNameTooLong = errors.New("relay: service name exceeds MaxServiceNameLen")

// RelayFrame is the BCNP message carrying one relay request, reply, or
// error. It implements bcnp.Message (TypeID is supplied by the caller's
// registry, so RelayFrame itself stays decoupled from any fixed id).
type RelayFrame struct {
	typeID        bcnp.TypeID
	CorrelationID uuid.UUID
	Service       string
	Kind          uint8
	Payload       []byte
}

// NewRelayFrame constructs a RelayFrame bound to the given message type
// id, validating field lengths.
func NewRelayFrame(typeID bcnp.TypeID, correlationID uuid.UUID, service string, kind uint8, payload []byte) (RelayFrame, error) {
	if len(service) > MaxServiceNameLen {
		return RelayFrame{}, ErrServiceNameTooLong
	}
	if len(payload) > MaxPayloadLen {
		return RelayFrame{}, ErrPayloadTooLarge
	}
	return RelayFrame{
		typeID:        typeID,
		CorrelationID: correlationID,
		Service:       service,
		Kind:          kind,
		Payload:       payload,
	}, nil
}

func (f RelayFrame) TypeID() bcnp.TypeID { return f.typeID }
func (f RelayFrame) WireSize() int       { return relayFrameWireSize }

// Encode writes the frame into dst, which must be at least WireSize()
// bytes.
func (f RelayFrame) Encode(dst []byte) bool {
	if len(dst) < relayFrameWireSize || len(f.Service) > MaxServiceNameLen || len(f.Payload) > MaxPayloadLen {
		return false
	}
	off := 0
	copy(dst[off:off+16], f.CorrelationID[:])
	off += 16
	dst[off] = uint8(len(f.Service))
	off++
	var svcBuf [MaxServiceNameLen]byte
	copy(svcBuf[:], f.Service)
	copy(dst[off:off+MaxServiceNameLen], svcBuf[:])
	off += MaxServiceNameLen
	dst[off] = f.Kind
	off++
	binary.BigEndian.PutUint16(dst[off:off+2], uint16(len(f.Payload)))
	off += 2
	var payBuf [MaxPayloadLen]byte
	copy(payBuf[:], f.Payload)
	copy(dst[off:off+MaxPayloadLen], payBuf[:])
	return true
}

// Decode populates f from src, which must be at least WireSize() bytes.
// The frame's typeID is left unchanged by Decode — callers that decode
// through a Registry already know the type id from the packet header.
func (f *RelayFrame) Decode(src []byte) bool {
	if len(src) < relayFrameWireSize {
		return false
	}
	off := 0
	copy(f.CorrelationID[:], src[off:off+16])
	off += 16
	svcLen := int(src[off])
	off++
	if svcLen > MaxServiceNameLen {
		return false
	}
	f.Service = string(src[off : off+svcLen])
	off += MaxServiceNameLen
	f.Kind = src[off]
	off++
	payLen := int(binary.BigEndian.Uint16(src[off : off+2]))
	off += 2
	if payLen > MaxPayloadLen {
		return false
	}
	f.Payload = append(f.Payload[:0], src[off:off+payLen]...)
	return true
}

// pendingCall tracks one outstanding client request awaiting a reply.
type pendingCall struct {
	reply chan RelayFrame
}

// Broker relays requests from callers to whichever worker has been waiting
// longest as idle for the requested service, round-robin across
// workers via a per-service waiting list, and routes the eventual reply
// back to the original caller by correlation id.
type Broker struct {
	mu sync.Mutex

	queues  map[string][]*workerSlot
	pending map[uuid.UUID]*pendingCall

	requestTimeout time.Duration
	recorder       metrics.Recorder
}

// workerSlot is a worker's inbox, delivered to at most once per Next call.
type workerSlot struct {
	ch chan RelayFrame
}

// NewBroker constructs a Broker. requestTimeout bounds how long Call
// waits for a reply before giving up; zero means DefaultRequestTimeout.
func NewBroker(requestTimeout time.Duration) *Broker {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Broker{
		queues:         make(map[string][]*workerSlot),
		pending:        make(map[uuid.UUID]*pendingCall),
		requestTimeout: requestTimeout,
		recorder:       metrics.NoOp,
	}
}

// DefaultRequestTimeout bounds how long a Call waits for a worker reply.
const DefaultRequestTimeout = 5 * time.Second

// SetRecorder installs r as the broker's metrics sink. Passing nil is
// equivalent to metrics.NoOp.
func (b *Broker) SetRecorder(r metrics.Recorder) {
	if r == nil {
		r = metrics.NoOp
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recorder = r
}

// Call sends a request frame to the named service and blocks until a
// reply arrives, ctx is cancelled, or the broker's request timeout
// elapses. It generates a fresh correlation id for the request.
func (b *Broker) Call(ctx context.Context, typeID bcnp.TypeID, service string, payload []byte) (RelayFrame, error) {
	id := uuid.New()
	req, err := NewRelayFrame(typeID, id, service, FrameKindRequest, payload)
	if err != nil {
		return RelayFrame{}, err
	}

	call := &pendingCall{reply: make(chan RelayFrame, 1)}
	b.mu.Lock()
	b.pending[id] = call
	b.dispatchLocked(service, req)
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, b.requestTimeout)
	defer cancel()

	select {
	case resp := <-call.reply:
		return resp, nil
	case <-ctx.Done():
		b.mu.Lock()
		delete(b.pending, id)
		rec := b.recorder
		b.mu.Unlock()
		rec.RelayTimeout(service)
		return RelayFrame{}, ctx.Err()
	}
}

// dispatchLocked hands req to an idle worker for service if one is
// waiting, otherwise it is dropped — Broker has no durable request
// queue; a worker must be registered (via Next) before a Call arrives.
func (b *Broker) dispatchLocked(service string, req RelayFrame) {
	slots := b.queues[service]
	if len(slots) == 0 {
		return
	}
	slot := slots[0]
	b.queues[service] = slots[1:]
	slot.ch <- req
}

// Next blocks until a request for service arrives (or ctx is done),
// registering the calling worker as idle for service in the meantime.
// The returned reply function must be called exactly once to deliver the
// response back to the original caller.
func (b *Broker) Next(ctx context.Context, service string) (RelayFrame, func(payload []byte, kind uint8) error, error) {
	slot := &workerSlot{ch: make(chan RelayFrame, 1)}
	b.mu.Lock()
	b.queues[service] = append(b.queues[service], slot)
	b.mu.Unlock()

	select {
	case req := <-slot.ch:
		reply := func(payload []byte, kind uint8) error {
			frame, err := NewRelayFrame(req.typeID, req.CorrelationID, req.Service, kind, payload)
			if err != nil {
				return err
			}
			b.mu.Lock()
			call, ok := b.pending[req.CorrelationID]
			delete(b.pending, req.CorrelationID)
			b.mu.Unlock()
			if !ok {
				return nil
			}
			call.reply <- frame
			return nil
		}
		return req, reply, nil
	case <-ctx.Done():
		b.removeSlot(service, slot)
		return RelayFrame{}, nil, ctx.Err()
	}
}

func (b *Broker) removeSlot(service string, target *workerSlot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	slots := b.queues[service]
	for i, s := range slots {
		if s == target {
			b.queues[service] = append(slots[:i], slots[i+1:]...)
			return
		}
	}
}

// PendingCount returns the number of outstanding calls awaiting a reply.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// IdleWorkers returns the number of workers currently waiting for a
// request on the named service.
func (b *Broker) IdleWorkers(service string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queues[service])
}
