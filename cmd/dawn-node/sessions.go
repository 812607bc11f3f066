// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/luxfi/log"

	"github.com/rpretzer/dawn/internal/agentreg"
	"github.com/rpretzer/dawn/internal/discovery"
	"github.com/rpretzer/dawn/internal/peer"
	"github.com/rpretzer/dawn/internal/router"
	"github.com/rpretzer/dawn/internal/transport"
	"github.com/rpretzer/dawn/internal/wire"
)

// sessionManager owns every live transport.Session, keyed by peer node_id,
// and wires inbound frames to the router.Node and outbound frames back out
// over the matching session. It is the per-process adapter between the
// connection-oriented transport package and the node-ID-addressed router
// package.
type sessionManager struct {
	log log.Logger
	mu  sync.RWMutex

	byNodeID map[string]*transport.Session
	node     *router.Node
}

func newSessionManager(logger log.Logger) *sessionManager {
	return &sessionManager{log: logger, byNodeID: make(map[string]*transport.Session)}
}

// onInboundSession is the Listener callback for a freshly accepted
// session: register it, record the peer, and start its read loop.
func (sm *sessionManager) onInboundSession(sess *transport.Session) {
	sm.node.ApplySessionPrivacy(sess)
	sm.adopt(sess)
}

// dial is the discovery.DialFunc used by Bootstrap.
func (sm *sessionManager) dial(ctx context.Context, address string) (string, error) {
	sess, err := transport.Dial(ctx, address, sm.node.ID, nodeAppVersion)
	if err != nil {
		return "", err
	}
	sm.node.ApplySessionPrivacy(sess)
	sm.adopt(sess)
	return sess.PeerNodeID, nil
}

func (sm *sessionManager) adopt(sess *transport.Session) {
	sm.mu.Lock()
	sm.byNodeID[sess.PeerNodeID] = sess
	sm.mu.Unlock()

	sm.node.Peers.Add(peer.Peer{
		NodeID:        sess.PeerNodeID,
		SigningPubKey: append([]byte(nil), sess.PeerSignPub...),
		AgreePubKey:   sess.PeerAgreePub,
	})
	sm.node.Peers.SetConnected(sess.PeerNodeID, true)

	if err := sm.sendRegistrySync(sess.PeerNodeID); err != nil {
		sm.log.Debug("registry sync send failed", log.String("peer", sess.PeerNodeID), log.Err(err))
	}

	go sm.readLoop(sess)
}

// sendRegistrySync pushes a full snapshot of the local CRDT agent registry
// to a newly established peer session, per the protocol's new-session
// full-state sync requirement.
func (sm *sessionManager) sendRegistrySync(peerNodeID string) error {
	notif, err := wire.NewNotification("node/registry_sync", registrySyncPayload{Deltas: sm.node.Agents.Snapshot()})
	if err != nil {
		return err
	}
	data, err := wire.Encode(notif)
	if err != nil {
		return err
	}
	return sm.send(context.Background(), peerNodeID, data)
}

// registrySyncPayload mirrors router.registrySyncArgs; kept separate since
// that type is unexported router-package internals.
type registrySyncPayload struct {
	Deltas []agentreg.Delta `json:"deltas"`
}

func (sm *sessionManager) readLoop(sess *transport.Session) {
	defer func() {
		sm.mu.Lock()
		delete(sm.byNodeID, sess.PeerNodeID)
		sm.mu.Unlock()
		sm.node.Peers.SetConnected(sess.PeerNodeID, false)
		sm.node.SessionClosed(sess.PeerNodeID)
		sess.Close()
	}()

	for {
		payload, err := sess.Receive()
		if err != nil {
			sm.log.Debug("session closed", log.String("peer", sess.PeerNodeID), log.Err(err))
			return
		}
		batch, err := wire.DecodeAny(payload)
		if err != nil {
			sm.log.Debug("dropping malformed frame", log.String("peer", sess.PeerNodeID), log.Err(err))
			continue
		}
		var responses wire.Batch
		for _, f := range batch {
			if resp := sm.node.HandleInbound(context.Background(), sess.PeerNodeID, f); resp != nil {
				responses = append(responses, *resp)
			}
		}
		if len(responses) == 0 {
			continue
		}
		data, err := wire.EncodeBatch(responses)
		if err != nil {
			continue
		}
		if err := sess.Send(data); err != nil {
			sm.log.Debug("failed sending response", log.String("peer", sess.PeerNodeID), log.Err(err))
			return
		}
	}
}

// send implements router.OutboundSink: it looks up the live session for
// peerNodeID and writes payload on it.
func (sm *sessionManager) send(_ context.Context, peerNodeID string, payload []byte) error {
	sm.mu.RLock()
	sess, ok := sm.byNodeID[peerNodeID]
	sm.mu.RUnlock()
	if !ok {
		return errors.Newf("sessions: no live session for peer %q", peerNodeID)
	}
	return sess.Send(payload)
}

// gossipSend implements discovery.Sender by wrapping a gossip Announcement
// as a node/gossip_announce notification on the peer's session.
func (sm *sessionManager) gossipSend(ctx context.Context, peerNodeID string, a discovery.Announcement) error {
	notif, err := wire.NewNotification("node/gossip_announce", a)
	if err != nil {
		return err
	}
	data, err := wire.Encode(notif)
	if err != nil {
		return err
	}
	return sm.send(ctx, peerNodeID, data)
}

// knownPeerSamples implements discovery.KnownPeersFunc from the peer
// registry's alive-peer view.
func (sm *sessionManager) knownPeerSamples() []discovery.PeerSample {
	alive := sm.node.Peers.ListAlive()
	out := make([]discovery.PeerSample, len(alive))
	for i, p := range alive {
		out[i] = discovery.PeerSample{NodeID: p.NodeID, Address: p.Address}
	}
	return out
}
