// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import "time"

// DispatcherOption configures some aspect of a Dispatcher at construction
// time, following the functional-options pattern used elsewhere for
// socket configuration.
type DispatcherOption func(*DispatcherConfig)

// WithParserBufferSize sets the stream parser's ring buffer capacity.
func WithParserBufferSize(n int) DispatcherOption {
	return func(c *DispatcherConfig) { c.ParserBufferSize = n }
}

// WithDispatcherConnectionTimeout sets the dispatcher's connection-timeout
// threshold.
func WithDispatcherConnectionTimeout(d time.Duration) DispatcherOption {
	return func(c *DispatcherConfig) { c.ConnectionTimeout = d }
}

// NewDispatcherConfig builds a DispatcherConfig from a set of options,
// starting from clamped defaults.
func NewDispatcherConfig(opts ...DispatcherOption) DispatcherConfig {
	cfg := DispatcherConfig{}.clamped()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.clamped()
}

// QueueOption configures a QueueConfig.
type QueueOption func(*QueueConfig)

// WithQueueCapacity sets the queue's pending-message capacity.
func WithQueueCapacity(n int) QueueOption {
	return func(c *QueueConfig) { c.Capacity = n }
}

// WithQueueConnectionTimeout sets the queue's connection-timeout
// threshold.
func WithQueueConnectionTimeout(d time.Duration) QueueOption {
	return func(c *QueueConfig) { c.ConnectionTimeout = d }
}

// WithMaxCommandLag sets the queue's lag-clamp bound.
func WithMaxCommandLag(d time.Duration) QueueOption {
	return func(c *QueueConfig) { c.MaxCommandLag = d }
}

// NewQueueConfig builds a QueueConfig from a set of options, starting from
// clamped defaults.
func NewQueueConfig(opts ...QueueOption) QueueConfig {
	cfg := QueueConfig{}.clamped()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.clamped()
}
