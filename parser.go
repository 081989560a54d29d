// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"sync"

	"github.com/JonDoeBeep/BCNP/internal/ring"
)

const (
	// DefaultParserBufferSize is the default ring buffer capacity.
	DefaultParserBufferSize = 4096
	// minParserBufferSize is the smallest buffer that can ever hold one
	// zero-payload packet (header + CRC).
	minParserBufferSize = HeaderSize + CRCSize
	// DefaultMaxParseIterationsPerPush bounds header-inspection work done
	// by a single Push call.
	DefaultMaxParseIterationsPerPush = 1024
)

// WireSizeLookup resolves a message type id to its wire size, returning
// (0, false) if the id is unknown. Registry.WireSize has this shape.
type WireSizeLookup func(id TypeID) (int, bool)

// ValidatorLookup resolves a message type id to its optional payload
// validator. Registry.Validator has this shape (returning nil for
// "no validator" is valid).
type ValidatorLookup func(id TypeID) Validator

// ErrorInfo is reported to a parser's error callback for every rejected
// candidate packet.
type ErrorInfo struct {
	Code              ParseError
	StreamOffset      int
	ConsecutiveErrors uint64
}

// PacketFunc is invoked once per successfully decoded packet view. The view
// is only valid for the duration of the call.
type PacketFunc func(view PacketView)

// ErrorFunc is invoked once per rejected candidate packet.
type ErrorFunc func(info ErrorInfo)

// ParserConfig configures a StreamParser.
type ParserConfig struct {
	// BufferSize is the ring buffer capacity in bytes. Must be at least
	// HeaderSize+CRCSize; smaller values are clamped up.
	BufferSize int
	// MaxParseIterationsPerPush bounds header-inspection iterations done
	// by one Push call, so a pathological input cannot monopolize the
	// caller. Zero selects DefaultMaxParseIterationsPerPush.
	MaxParseIterationsPerPush int
}

func (c ParserConfig) clamped() ParserConfig {
	if c.BufferSize < minParserBufferSize {
		c.BufferSize = DefaultParserBufferSize
	}
	if c.MaxParseIterationsPerPush <= 0 {
		c.MaxParseIterationsPerPush = DefaultMaxParseIterationsPerPush
	}
	return c
}

// StreamParser is a single-producer, single-consumer resynchronizing framer
// over a fixed-size ring buffer. It recovers complete BCNP packets from an
// arbitrary byte stream, never blocks, and never allocates on the hot path
// after construction.
//
// StreamParser is safe for concurrent Push calls in the sense that they are
// serialized by an internal mutex (matching the dispatcher's documented
// thread-safety), but a PacketFunc/ErrorFunc callback must never call
// back into the same StreamParser — that would deadlock on the
// (non-reentrant) mutex, by design.
type StreamParser struct {
	mu sync.Mutex

	onPacket PacketFunc
	onError  ErrorFunc

	wireSizeOf WireSizeLookup
	validator  ValidatorLookup

	cfg ParserConfig

	buf            *ring.ByteRing
	scratchHeader  [HeaderSize]byte
	scratchFrame   []byte
	consecutive    uint64
	streamOffset   int
}

// NewStreamParser constructs a StreamParser. wireSizeOf resolves a header's
// message_type_id to its wire size (ordinarily Registry.WireSize); a nil
// lookup always fails with ErrUnknownMessageType. onPacket is required;
// onError may be nil to discard diagnostics.
func NewStreamParser(cfg ParserConfig, wireSizeOf WireSizeLookup, onPacket PacketFunc, onError ErrorFunc) *StreamParser {
	cfg = cfg.clamped()
	return &StreamParser{
		onPacket:     onPacket,
		onError:      onError,
		wireSizeOf:   wireSizeOf,
		cfg:          cfg,
		buf:          ring.NewByteRing(cfg.BufferSize),
		scratchFrame: make([]byte, cfg.BufferSize),
	}
}

// SetWireSizeLookup overrides the registry lookup — a testing hook.
func (p *StreamParser) SetWireSizeLookup(fn WireSizeLookup) {
	p.mu.Lock()
	p.wireSizeOf = fn
	p.mu.Unlock()
}

// SetValidatorLookup installs a per-type payload validator lookup (e.g.
// Registry.Validator), used to reject invalid float payloads after CRC
// validation succeeds.
func (p *StreamParser) SetValidatorLookup(fn ValidatorLookup) {
	p.mu.Lock()
	p.validator = fn
	p.mu.Unlock()
}

// ConsecutiveErrors returns the current consecutive-error count.
func (p *StreamParser) ConsecutiveErrors() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutive
}

// StreamOffset returns the absolute byte index, in the logical input
// stream since the last Reset(true), at which the parser is currently
// positioned.
func (p *StreamParser) StreamOffset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.streamOffset
}

// Reset empties the ring buffer. If clearErrorState is true, the
// consecutive-error counter and stream offset are also zeroed.
func (p *StreamParser) Reset(clearErrorState bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf.Reset()
	if clearErrorState {
		p.consecutive = 0
		p.streamOffset = 0
	}
}

// Push appends data to the ring buffer and drains as many complete packets
// as possible. It never blocks and never allocates. Each parsing pass is
// capped at cfg.MaxParseIterationsPerPush header-inspection iterations (a
// Push that overflows the ring runs two passes); any bytes left
// unprocessed are retried on the next Push.
func (p *StreamParser) Push(data []byte) {
	if len(data) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	written := p.buf.Write(data)
	if written < len(data) {
		// Overflow policy: the ring couldn't hold everything. Try to
		// free room by draining complete packets first, then retry
		// writing the remainder; if the ring is
		// still full after that, this is a denial-of-service-shaped
		// flood, not an ordinary truncation, so we drop everything.
		p.parseLocked()
		written += p.buf.Write(data[written:])
		if written < len(data) {
			p.emitErrorLocked(ErrTooManyMessages)
			p.buf.Reset()
			return
		}
	}

	p.parseLocked()
}

// parseLocked drains as many complete packets as possible from the ring.
// Caller holds p.mu.
func (p *StreamParser) parseLocked() {
	budget := p.cfg.MaxParseIterationsPerPush
	for budget > 0 {
		if p.buf.Len() < HeaderSize {
			return
		}
		budget--

		p.buf.Peek(0, p.scratchHeader[:])
		major := p.scratchHeader[headerMajorIndex]
		minor := p.scratchHeader[headerMinorIndex]

		if major != ProtocolMajor || minor != ProtocolMinor {
			p.emitErrorLocked(ErrUnsupportedVersion)
			p.discardLocked(p.findResyncDistance())
			continue
		}

		hdr := decodeHeader(p.scratchHeader[:])

		wireSize, ok := 0, false
		if p.wireSizeOf != nil {
			wireSize, ok = p.wireSizeOf(hdr.MessageTypeID)
		}
		if !ok {
			p.emitErrorLocked(ErrUnknownMessageType)
			p.discardLocked(1)
			continue
		}

		if int(hdr.MessageCount) > MaxMessageCount {
			p.emitErrorLocked(ErrTooManyMessages)
			p.discardLocked(1)
			continue
		}

		expected := EncodedLen(int(hdr.MessageCount), wireSize)
		available := p.buf.Len()
		if available < expected {
			// Truncated: wait for more bytes. available can never
			// exceed p.buf's capacity, which is what scratchFrame
			// is sized to, so expected <= len(p.scratchFrame)
			// always holds once we get past this check.
			return
		}

		frame := p.scratchFrame[:expected]
		p.buf.Peek(0, frame)

		var validator Validator
		if p.validator != nil {
			validator = p.validator(hdr.MessageTypeID)
		}
		view, perr, consumed := decodeView(frame, wireSize, validator)

		switch perr {
		case ErrNone:
			// view.Payload points into scratchFrame, valid only
			// for the duration of this callback — discardLocked
			// runs after emitPacketLocked returns, but the next
			// frame's Peek into scratchFrame (in this loop or a
			// later Push) is what actually overwrites these bytes,
			// not discardLocked itself.
			p.emitPacketLocked(view)
			p.resetConsecutiveLocked()
			p.discardLocked(consumed)
		case ErrChecksumMismatch, ErrInvalidFloat:
			p.emitErrorLocked(perr)
			p.discardLocked(1)
		default:
			n := consumed
			if n < 1 {
				n = 1
			}
			p.emitErrorLocked(perr)
			p.discardLocked(n)
		}
	}
}

// findResyncDistance scans forward in the ring for the next occurrence of
// the (major, minor) byte pair, returning its offset, or 1 if none is found
// within the buffered window.
func (p *StreamParser) findResyncDistance() int {
	n := p.buf.Len()
	for i := 1; i+1 < n; i++ {
		if p.buf.ByteAt(i) == ProtocolMajor && p.buf.ByteAt(i+1) == ProtocolMinor {
			return i
		}
	}
	return 1
}

func (p *StreamParser) discardLocked(n int) {
	if n <= 0 {
		n = 1
	}
	p.buf.Discard(n)
	p.streamOffset += n
}

func (p *StreamParser) resetConsecutiveLocked() {
	p.consecutive = 0
}

func (p *StreamParser) emitPacketLocked(view PacketView) {
	if p.onPacket != nil {
		p.onPacket(view)
	}
}

func (p *StreamParser) emitErrorLocked(code ParseError) {
	p.consecutive++
	if p.onError != nil {
		p.onError(ErrorInfo{Code: code, StreamOffset: p.streamOffset, ConsecutiveErrors: p.consecutive})
	}
}
