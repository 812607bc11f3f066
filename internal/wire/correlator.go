// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"sync"
	"time"
)

// DefaultRequestTimeout is used when a caller doesn't specify one.
const DefaultRequestTimeout = 30 * time.Second

// pendingRequest tracks an outstanding request awaiting its Response frame.
type pendingRequest struct {
	resultCh chan Frame
	timer    *time.Timer
}

// Correlator tracks outbound requests by ID and matches inbound Response
// frames back to their waiting caller, timing out requests that never get
// an answer. One Correlator is owned per session (or per router, for
// locally dispatched calls).
type Correlator struct {
	mu      sync.Mutex
	pending map[string]*pendingRequest
}

// NewCorrelator constructs an empty Correlator.
func NewCorrelator() *Correlator {
	return &Correlator{pending: make(map[string]*pendingRequest)}
}

// Register records id as awaiting a response and returns a channel that
// receives exactly one Frame: the matched response, or a synthetic
// ErrRequestTimeout error Frame if timeout elapses first.
func (c *Correlator) Register(id string, timeout time.Duration) <-chan Frame {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	ch := make(chan Frame, 1)
	pr := &pendingRequest{resultCh: ch}
	pr.timer = time.AfterFunc(timeout, func() {
		c.completeWithTimeout(id)
	})

	c.mu.Lock()
	c.pending[id] = pr
	c.mu.Unlock()
	return ch
}

// Complete matches an inbound response Frame to its pending request by ID.
// It reports false if no request is pending under that ID (late, duplicate,
// or unsolicited response).
func (c *Correlator) Complete(f Frame) bool {
	if f.ID == nil {
		return false
	}
	c.mu.Lock()
	pr, ok := c.pending[*f.ID]
	if ok {
		delete(c.pending, *f.ID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	pr.timer.Stop()
	pr.resultCh <- f
	return true
}

func (c *Correlator) completeWithTimeout(id string) {
	c.mu.Lock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	errObj := ToErrorObject(ErrRequestTimeout)
	pr.resultCh <- Frame{Version: ProtocolVersion, ID: &id, Error: errObj}
}

// Fail delivers a synthetic error Frame to a pending request's waiter
// immediately, for a caller that has independently learned the request can
// never complete (e.g. the peer's session was torn down). It reports false
// if no request is pending under that ID.
func (c *Correlator) Fail(id string, errObj *ErrorObject) bool {
	c.mu.Lock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	pr.timer.Stop()
	pr.resultCh <- Frame{Version: ProtocolVersion, ID: &id, Error: errObj}
	return true
}

// Cancel abandons a pending request without delivering a result, used when
// the owning session tears down.
func (c *Correlator) Cancel(id string) {
	c.mu.Lock()
	pr, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if ok {
		pr.timer.Stop()
	}
}

// Pending returns the count of currently outstanding requests, for tests
// and diagnostics.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
