// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bcnp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDispatcherConfigAppliesOptions(t *testing.T) {
	cfg := NewDispatcherConfig(
		WithParserBufferSize(8192),
		WithDispatcherConnectionTimeout(time.Second),
	)
	assert.Equal(t, 8192, cfg.ParserBufferSize)
	assert.Equal(t, time.Second, cfg.ConnectionTimeout)
}

func TestNewDispatcherConfigDefaultsWithNoOptions(t *testing.T) {
	cfg := NewDispatcherConfig()
	assert.Equal(t, DefaultParserBufferSize, cfg.ParserBufferSize)
	assert.Equal(t, DefaultConnectionTimeout, cfg.ConnectionTimeout)
}

func TestNewQueueConfigAppliesOptions(t *testing.T) {
	cfg := NewQueueConfig(
		WithQueueCapacity(50),
		WithQueueConnectionTimeout(2*time.Second),
		WithMaxCommandLag(30*time.Millisecond),
	)
	assert.Equal(t, 50, cfg.Capacity)
	assert.Equal(t, 2*time.Second, cfg.ConnectionTimeout)
	assert.Equal(t, 30*time.Millisecond, cfg.MaxCommandLag)
}

func TestNewQueueConfigClampsInvalidOptionValues(t *testing.T) {
	cfg := NewQueueConfig(WithQueueCapacity(0))
	assert.Equal(t, DefaultQueueCapacity, cfg.Capacity)
}
