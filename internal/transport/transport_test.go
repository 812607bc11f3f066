// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/luxfi/version"
	"github.com/stretchr/testify/require"

	"github.com/rpretzer/dawn/internal/identity"
	"github.com/rpretzer/dawn/internal/wire"
)

var testAppVersion = &version.Application{Name: "dawn-node", Major: 1, Minor: 0, Patch: 0}

// pipeConn is an in-memory Conn used to test the handshake and Session
// framing without a real network socket.
type pipeConn struct {
	mu   sync.Mutex
	in   chan []byte
	out  chan []byte
	done chan struct{}
}

func newPipePair() (*pipeConn, *pipeConn) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	done := make(chan struct{})
	a := &pipeConn{in: ba, out: ab, done: done}
	b := &pipeConn{in: ab, out: ba, done: done}
	return a, b
}

func (p *pipeConn) WriteMessage(_ int, data []byte) error {
	cp := append([]byte(nil), data...)
	select {
	case p.out <- cp:
		return nil
	case <-p.done:
		return errClosed
	}
}

func (p *pipeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-p.in:
		return 2, data, nil
	case <-p.done:
		return 0, nil, errClosed
	}
}

func (p *pipeConn) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	return nil
}

type pipeError struct{ msg string }

func (e *pipeError) Error() string { return e.msg }

var errClosed = &pipeError{"pipe closed"}

func TestHandshakeEstablishesSymmetricSession(t *testing.T) {
	require := require.New(t)

	idA, err := identity.New()
	require.NoError(err)
	idB, err := identity.New()
	require.NoError(err)

	connA, connB := newPipePair()

	var sessA, sessB *Session
	var errA, errB error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sessA, errA = Handshake(context.Background(), connA, idA, testAppVersion, time.Second)
	}()
	go func() {
		defer wg.Done()
		sessB, errB = Accept(context.Background(), connB, idB, testAppVersion, time.Second)
	}()
	wg.Wait()

	require.NoError(errA)
	require.NoError(errB)
	require.Equal(idB.NodeID(), sessA.PeerNodeID)
	require.Equal(idA.NodeID(), sessB.PeerNodeID)
}

func TestSessionSendReceiveRoundTrip(t *testing.T) {
	require := require.New(t)

	idA, err := identity.New()
	require.NoError(err)
	idB, err := identity.New()
	require.NoError(err)

	connA, connB := newPipePair()

	var sessA, sessB *Session
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sessA, _ = Handshake(context.Background(), connA, idA, testAppVersion, time.Second)
	}()
	go func() {
		defer wg.Done()
		sessB, _ = Accept(context.Background(), connB, idB, testAppVersion, time.Second)
	}()
	wg.Wait()
	require.NotNil(sessA)
	require.NotNil(sessB)

	payload := []byte(`{"jsonrpc":"2.0","method":"coordination/ping"}`)
	require.NoError(sessA.Send(payload))

	got, err := sessB.Receive()
	require.NoError(err)
	require.Equal(payload, got)
}

// These two tests exercise enqueue's full-queue policy directly on a bare
// Session (no handshake, no live runSender goroutine), since the policy
// itself is pure queue bookkeeping independent of the wire transport.

func TestSessionSendDropsOldestGossipWhenQueueFull(t *testing.T) {
	require := require.New(t)

	sess := &Session{queueCap: 2, queue: []outboundItem{
		{payload: []byte(`gossip`), gossip: true},
		{payload: []byte(`other`), gossip: false},
	}}

	require.NoError(sess.enqueue(outboundItem{payload: []byte(`new`), gossip: false}))

	require.Len(sess.queue, 2)
	require.False(sess.queue[0].gossip)
	require.Equal([]byte(`other`), sess.queue[0].payload)
	require.Equal([]byte(`new`), sess.queue[1].payload)
}

func TestSessionSendBackpressureWhenQueueFullOfNonGossip(t *testing.T) {
	require := require.New(t)

	sess := &Session{queueCap: 1, queue: []outboundItem{
		{payload: []byte(`other`), gossip: false},
	}}

	err := sess.enqueue(outboundItem{payload: []byte(`blocked`), gossip: false})
	require.ErrorIs(err, wire.ErrBackpressure)
}

func TestSessionPadTo256ObscuresLength(t *testing.T) {
	require := require.New(t)

	small := framePayload([]byte("hi"), true)
	require.Len(small, paddingTarget)
	require.Equal([]byte("hi"), unframePayload(small))
}

func TestHandshakeRejectsTamperedSignature(t *testing.T) {
	require := require.New(t)

	idA, err := identity.New()
	require.NoError(err)

	nonce := make([]byte, 32)
	h := buildHello(idA, testAppVersion, nonce)
	h.Signature[0] ^= 0xFF

	require.Error(verifyHello(h, testAppVersion))
}
