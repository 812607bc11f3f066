// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/luxfi/version"

	"github.com/rpretzer/dawn/internal/identity"
	"github.com/rpretzer/dawn/internal/wire"
)

// DefaultOutboundQueueCapacity bounds how many not-yet-written payloads a
// Session holds for a slow peer before applying backpressure.
const DefaultOutboundQueueCapacity = 1024

// outboundItem is one payload waiting to be written, tagged so the queue
// can tell a droppable gossip notification apart from everything else.
type outboundItem struct {
	payload []byte
	gossip  bool
}

// Conn is the minimal carrier Session needs; *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// paddingTarget is the minimum ciphertext length PadTo256 pads up to,
// hiding small-message size from passive observers.
const paddingTarget = 256

// Session is an authenticated, encrypted, framed bidirectional channel to
// exactly one peer. After the handshake completes, Send/Receive operate on
// opaque payload bytes (the wire package frames them); Session itself only
// guarantees confidentiality, integrity, and ordering.
type Session struct {
	conn Conn

	PeerNodeID  string
	PeerSignPub ed25519.PublicKey
	PeerAgreePub [32]byte

	PadTo256   bool
	JitterSend bool

	sendAEAD *identity.AEAD
	recvAEAD *identity.AEAD

	sendMu      sync.Mutex
	sendCounter uint64
	recvMu      sync.Mutex
	recvCounter uint64

	queueMu  sync.Mutex
	queue    []outboundItem
	queueCap int
	wake     chan struct{}
	stopCh   chan struct{}

	closeOnce sync.Once
}

// Handshake performs the Hello exchange over conn as the dialing
// ("client") side and returns an established Session on success.
func Handshake(ctx context.Context, conn Conn, id *identity.Identity, appVersion *version.Application, deadline time.Duration) (*Session, error) {
	return handshake(ctx, conn, id, appVersion, deadline)
}

// Accept performs the Hello exchange over conn as the accepting ("server")
// side. The handshake itself is symmetric; Accept exists for readability
// at call sites.
func Accept(ctx context.Context, conn Conn, id *identity.Identity, appVersion *version.Application, deadline time.Duration) (*Session, error) {
	return handshake(ctx, conn, id, appVersion, deadline)
}

func handshake(ctx context.Context, conn Conn, id *identity.Identity, appVersion *version.Application, deadline time.Duration) (*Session, error) {
	if deadline <= 0 {
		deadline = DefaultHandshakeTimeout
	}
	done := make(chan struct{})
	var sess *Session
	var hsErr error

	go func() {
		defer close(done)
		sess, hsErr = doHandshake(conn, id, appVersion)
	}()

	select {
	case <-done:
		return sess, hsErr
	case <-time.After(deadline):
		conn.Close()
		return nil, errors.Wrap(ErrHandshakeFailed, "transport: handshake timed out")
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}
}

func doHandshake(conn Conn, id *identity.Identity, appVersion *version.Application) (*Session, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "transport: generate handshake nonce")
	}
	local := buildHello(id, appVersion, nonce)
	localBytes, err := encodeHello(local)
	if err != nil {
		return nil, err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, localBytes); err != nil {
		return nil, errors.Wrap(err, "transport: send hello")
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "transport: read hello")
	}
	remote, err := decodeHello(data)
	if err != nil {
		return nil, err
	}
	if err := verifyHello(remote, appVersion); err != nil {
		return nil, err
	}
	if remote.NodeID == id.NodeID() {
		return nil, errors.Wrap(ErrHandshakeFailed, "transport: peer advertised our own node_id")
	}

	var remoteAgree [32]byte
	copy(remoteAgree[:], remote.AgreePubKey)
	shared, err := id.KeyAgreement(remoteAgree)
	if err != nil {
		return nil, err
	}

	keys, err := deriveSessionKeys(shared, id.SigningPublicKey(), remote.SigningPubKey)
	if err != nil {
		return nil, err
	}
	sendAEAD, err := identity.NewAEAD(keys.sendKey)
	if err != nil {
		return nil, err
	}
	recvAEAD, err := identity.NewAEAD(keys.recvKey)
	if err != nil {
		return nil, err
	}

	sess := &Session{
		conn:         conn,
		PeerNodeID:   remote.NodeID,
		PeerSignPub:  remote.SigningPubKey,
		PeerAgreePub: remoteAgree,
		sendAEAD:     sendAEAD,
		recvAEAD:     recvAEAD,
		queueCap:     DefaultOutboundQueueCapacity,
		wake:         make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
	}
	go sess.runSender()
	return sess, nil
}

// Send enqueues one application payload (a wire-encoded Frame/Batch) for
// delivery, returning as soon as it is queued rather than waiting on the
// network write. The outbound queue is a bounded FIFO of
// DefaultOutboundQueueCapacity: when full, a gossip notification is
// dropped to make room for the new item; a non-gossip payload instead
// fails the call with wire.ErrBackpressure, since dropping it silently
// would be a protocol violation.
func (s *Session) Send(payload []byte) error {
	return s.enqueue(outboundItem{payload: payload, gossip: isGossipPayload(payload)})
}

func (s *Session) enqueue(item outboundItem) error {
	s.queueMu.Lock()
	if len(s.queue) >= s.queueCap {
		idx := -1
		for i, queued := range s.queue {
			if queued.gossip {
				idx = i
				break
			}
		}
		if idx < 0 {
			s.queueMu.Unlock()
			return wire.ErrBackpressure
		}
		s.queue = append(s.queue[:idx], s.queue[idx+1:]...)
	}
	s.queue = append(s.queue, item)
	s.queueMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// isGossipPayload reports whether payload carries a "node/gossip_announce"
// notification, the only message kind this transport drops under pressure.
func isGossipPayload(payload []byte) bool {
	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return false
	}
	return probe.Method == "node/gossip_announce"
}

// runSender drains the outbound queue in order, writing each item to the
// wire. It is the only goroutine that touches sendAEAD/sendCounter/conn
// for writes, so no separate send lock is needed once a Session is queued
// through.
func (s *Session) runSender() {
	for {
		s.queueMu.Lock()
		for len(s.queue) == 0 {
			s.queueMu.Unlock()
			select {
			case <-s.wake:
			case <-s.stopCh:
				return
			}
			s.queueMu.Lock()
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()

		if err := s.writeFrame(item.payload); err != nil {
			s.Close()
			return
		}
	}
}

// writeFrame seals and writes a single payload, applying optional padding
// and jitter per the session's privacy flags.
func (s *Session) writeFrame(payload []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	framed := framePayload(payload, s.PadTo256)
	ct := s.sendAEAD.Seal(s.sendCounter, framed, nil)
	s.sendCounter++

	if s.JitterSend {
		time.Sleep(jitterDelay())
	}

	return s.conn.WriteMessage(websocket.BinaryMessage, ct)
}

// Receive reads and decrypts one application payload. It returns
// identity.ErrDecryptionFailed if the AEAD tag fails to verify (replay,
// corruption, or out-of-order delivery), which callers should treat as
// fatal for the session.
func (s *Session) Receive() ([]byte, error) {
	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	_, ct, err := s.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	pt, err := s.recvAEAD.Open(s.recvCounter, ct, nil)
	if err != nil {
		return nil, err
	}
	s.recvCounter++
	return unframePayload(pt), nil
}

// Close tears down the underlying connection. Safe to call more than once.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		err = s.conn.Close()
	})
	return err
}

// framePayload prefixes payload with its true length (so padding can be
// stripped on receive) and, if pad is set, pads the result up to
// paddingTarget bytes with zeros.
func framePayload(payload []byte, pad bool) []byte {
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	if pad && len(out) < paddingTarget {
		padded := make([]byte, paddingTarget)
		copy(padded, out)
		return padded
	}
	return out
}

func unframePayload(data []byte) []byte {
	if len(data) < 4 {
		return nil
	}
	n := binary.BigEndian.Uint32(data[:4])
	if int(n) > len(data)-4 {
		return nil
	}
	return data[4 : 4+n]
}

// jitterDelay returns a pseudo-random delay in [0, 50ms), used to decorrelate
// send timing from application-level event timing when JitterSend is set.
// Not a source of cryptographic randomness; timing jitter only.
func jitterDelay() time.Duration {
	return time.Duration(mrand.Intn(50)) * time.Millisecond
}
