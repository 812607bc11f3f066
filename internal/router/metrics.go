// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package router

import (
	"github.com/prometheus/client_golang/prometheus"
)

// nodeMetrics holds the internal counters a Node reports while dispatching
// traffic. These are process-local observability only: nothing here binds
// an HTTP listener — a caller that wants Prometheus exposition wires the
// Registerer it passes into WithMetrics to its own handler.
type nodeMetrics struct {
	forwardLatencyMS prometheus.Histogram
	forwardFailures  prometheus.Counter
}

func newNodeMetrics(reg prometheus.Registerer) (*nodeMetrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dawn_router",
		Name:      "forward_latency_ms",
		Help:      "Round-trip latency of forwarded requests, in milliseconds.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dawn_router",
		Name:      "forward_failures_total",
		Help:      "Forwarded requests that failed to reach a peer or timed out.",
	})
	if err := reg.Register(latency); err != nil {
		return nil, err
	}
	if err := reg.Register(failures); err != nil {
		return nil, err
	}
	return &nodeMetrics{forwardLatencyMS: latency, forwardFailures: failures}, nil
}

// WithMetrics registers a Node's internal counters against reg. A nil reg
// uses a private registry, so metrics are still collected even when nobody
// exposes them. A Node built without this option collects no metrics.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(n *Node) {
		m, err := newNodeMetrics(reg)
		if err != nil {
			return
		}
		n.metrics = m
	}
}

func (n *Node) observeForwardLatencyMS(ms float64) {
	if n.metrics == nil {
		return
	}
	n.metrics.forwardLatencyMS.Observe(ms)
}

func (n *Node) recordForwardFailure() {
	if n.metrics == nil {
		return
	}
	n.metrics.forwardFailures.Inc()
}
