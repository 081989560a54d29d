// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metrics provides the Recorder interface used by the dispatcher,
// queue, handshake, TCP adapter, and relay broker to report health
// counters, plus a Prometheus-backed
// implementation. Passing a nil Recorder (or using NoOp) disables metrics
// without touching call sites, the same way a component falls back to a
// default logger when none is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the metrics surface consulted by C1-C7. Every method must be
// safe to call from any goroutine and must never block on I/O.
type Recorder interface {
	PacketsReceived(typeID uint16)
	ParseError(code string)
	QueueOverflow(queue string)
	CommandsSkipped(queue string, n int)
	HandshakeFailure()
	RelayTimeout(service string)
}

// noop implements Recorder with no-op methods.
type noop struct{}

func (noop) PacketsReceived(uint16)      {}
func (noop) ParseError(string)           {}
func (noop) QueueOverflow(string)        {}
func (noop) CommandsSkipped(string, int) {}
func (noop) HandshakeFailure()           {}
func (noop) RelayTimeout(string)         {}

// NoOp is a Recorder that discards every observation.
var NoOp Recorder = noop{}

// Prometheus implements Recorder using five counter vectors and one plain
// counter registered
// against the supplied registry (or prometheus.DefaultRegisterer if nil).
type Prometheus struct {
	packetsReceived   *prometheus.CounterVec
	parseErrors       *prometheus.CounterVec
	queueOverflows    *prometheus.CounterVec
	commandsSkipped   *prometheus.CounterVec
	handshakeFailures prometheus.Counter
	relayTimeouts     *prometheus.CounterVec
}

// NewPrometheus constructs and registers a Prometheus recorder. If reg is
// nil, prometheus.DefaultRegisterer is used.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		packetsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bcnp",
			Name:      "packets_received_total",
			Help:      "Total packets successfully decoded by the stream parser, by message type id.",
		}, []string{"type_id"}),
		parseErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bcnp",
			Name:      "parse_errors_total",
			Help:      "Total packet parse errors, by error code.",
		}, []string{"code"}),
		queueOverflows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bcnp",
			Name:      "queue_overflows_total",
			Help:      "Total rejected pushes due to a full timed message queue, by queue name.",
		}, []string{"queue"}),
		commandsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bcnp",
			Name:      "commands_skipped_total",
			Help:      "Total messages skipped by lag-floor clamping, by queue name.",
		}, []string{"queue"}),
		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bcnp",
			Name:      "handshake_failures_total",
			Help:      "Total schema-hash handshake mismatches observed.",
		}),
		relayTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bcnp",
			Name:      "relay_timeouts_total",
			Help:      "Total relay broker calls that timed out waiting for a worker reply, by service.",
		}, []string{"service"}),
	}
	reg.MustRegister(p.packetsReceived, p.parseErrors, p.queueOverflows, p.commandsSkipped, p.handshakeFailures, p.relayTimeouts)
	return p
}

func (p *Prometheus) PacketsReceived(typeID uint16) {
	p.packetsReceived.WithLabelValues(formatTypeID(typeID)).Inc()
}

func (p *Prometheus) ParseError(code string) {
	p.parseErrors.WithLabelValues(code).Inc()
}

func (p *Prometheus) QueueOverflow(queue string) {
	p.queueOverflows.WithLabelValues(queue).Inc()
}

func (p *Prometheus) CommandsSkipped(queue string, n int) {
	p.commandsSkipped.WithLabelValues(queue).Add(float64(n))
}

func (p *Prometheus) HandshakeFailure() {
	p.handshakeFailures.Inc()
}

func (p *Prometheus) RelayTimeout(service string) {
	p.relayTimeouts.WithLabelValues(service).Inc()
}

func formatTypeID(id uint16) string {
	const hex = "0123456789abcdef"
	buf := [6]byte{'0', 'x', hex[(id>>12)&0xF], hex[(id>>8)&0xF], hex[(id>>4)&0xF], hex[id&0xF]}
	return string(buf[:])
}
