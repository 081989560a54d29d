// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonDoeBeep/BCNP"
)

// ErrSendFailed is returned by Driver.SendPacket when the adapter reports a
// handshake-complete, live connection but still rejects the send (e.g. the
// tx buffer is congested).
var ErrSendFailed = errors.New("transport: send failed")

// DefaultMaxChunksPerPoll bounds how many ReceiveChunk calls PollOnce
// makes before yielding. Without a cap, a sufficiently fast, sufficiently
// full adapter could starve everything else sharing the calling
// goroutine.
const DefaultMaxChunksPerPoll = 10

// DefaultRxChunkSize is the scratch buffer size PollOnce reads into.
const DefaultRxChunkSize = 4096

// DriverConfig configures a Driver.
type DriverConfig struct {
	MaxChunksPerPoll int
	RxChunkSize      int
	PollInterval     time.Duration
}

func (c DriverConfig) clamped() DriverConfig {
	if c.MaxChunksPerPoll <= 0 {
		c.MaxChunksPerPoll = DefaultMaxChunksPerPoll
	}
	if c.RxChunkSize <= 0 {
		c.RxChunkSize = DefaultRxChunkSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Millisecond
	}
	return c
}

// Driver pumps bytes between a Duplex adapter and a bcnp.Dispatcher.
// Beyond a single-threaded PollOnce called from an external loop, Driver
// additionally owns its own ticking goroutine (Run), managed through an
// errgroup so callers can wait for clean shutdown.
type Driver struct {
	cfg        DriverConfig
	adapter    Duplex
	dispatcher *bcnp.Dispatcher
	scratch    []byte
}

// NewDriver constructs a Driver wiring adapter's bytes into dispatcher.
func NewDriver(adapter Duplex, dispatcher *bcnp.Dispatcher, cfg DriverConfig) *Driver {
	cfg = cfg.clamped()
	return &Driver{
		cfg:        cfg,
		adapter:    adapter,
		dispatcher: dispatcher,
		scratch:    make([]byte, cfg.RxChunkSize),
	}
}

// PollOnce advances the adapter's connection state machine, then drains
// up to cfg.MaxChunksPerPoll chunks of received bytes into the
// dispatcher. It returns the number of chunks consumed (0 if nothing was
// available).
func (d *Driver) PollOnce() int {
	d.adapter.Poll()
	consumed := 0
	for consumed < d.cfg.MaxChunksPerPoll {
		n := d.adapter.ReceiveChunk(d.scratch)
		if n == 0 {
			break
		}
		d.dispatcher.PushBytes(d.scratch[:n])
		consumed++
	}
	return consumed
}

// SendPacket transmits pre-encoded packet bytes through the adapter. It
// returns bcnp.ErrHandshakeRequired if the adapter does not yet report a
// live, handshake-complete connection, so application traffic never goes
// out ahead of (or instead of failing silently before) the schema-hash
// exchange completing.
func (d *Driver) SendPacket(data []byte) error {
	if !d.adapter.IsConnected() {
		return bcnp.ErrHandshakeRequired
	}
	if !d.adapter.SendBytes(data) {
		return ErrSendFailed
	}
	return nil
}

// Run ticks PollOnce every cfg.PollInterval until ctx is cancelled. It
// uses an errgroup so a future Driver extension (e.g. a parallel
// telemetry-flush goroutine) can be added to the same group and have its
// error observed by Wait without hand-rolling another sync.WaitGroup.
func (d *Driver) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(d.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				d.PollOnce()
			}
		}
	})
	return g.Wait()
}
