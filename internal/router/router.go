// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package router implements the Node: the top-level coordinator owning a
// node's identity, peer registry, distributed agent registry, and locally
// hosted agents, and dispatching every inbound Frame to the right place —
// a local agent, a reserved node-level method, or a forward across the
// mesh to another node.
package router

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/luxfi/log"

	"github.com/rpretzer/dawn/internal/agentreg"
	"github.com/rpretzer/dawn/internal/agentrt"
	"github.com/rpretzer/dawn/internal/identity"
	"github.com/rpretzer/dawn/internal/peer"
	"github.com/rpretzer/dawn/internal/transport"
	"github.com/rpretzer/dawn/internal/wire"
)

// OutboundSink sends an encoded Frame to a connected peer session. Supplied
// by whatever owns the live transport.Session for that peer.
type OutboundSink func(ctx context.Context, peerNodeID string, payload []byte) error

// Node is the single coordinating object for one running instance of the
// mesh: it owns the identity, the peer registry, the CRDT agent registry,
// and every locally hosted agent, and is the dispatch target for every
// inbound Frame regardless of which session it arrived on.
type Node struct {
	ID         *identity.Identity
	Peers      *peer.Registry
	Agents     *agentreg.Registry
	Log        log.Logger
	AppVersion string
	Address    string

	localMu     sync.RWMutex
	localAgents map[string]*agentrt.Agent

	correlator *wire.Correlator
	sendFrame  OutboundSink

	privacyMu  sync.Mutex
	padTo256   bool
	jitterSend bool

	// forwardingMu guards outboundRewrite, the table used to correlate a
	// forwarded request's response back to the inbound caller that
	// originated it: outbound request ID -> (inbound session id, inbound
	// request id).
	forwardingMu    sync.Mutex
	outboundRewrite map[string]forwardRecord
	forwardsByPeer  map[string]map[string]struct{}

	requestTimeout time.Duration
	metrics        *nodeMetrics
}

type forwardRecord struct {
	inboundSession string
	inboundID      string
}

// Option configures a Node at construction.
type Option func(*Node)

// WithRequestTimeout overrides wire.DefaultRequestTimeout for forwarded
// calls. Calls dispatched to a local agent are not bounded by it.
func WithRequestTimeout(d time.Duration) Option {
	return func(n *Node) { n.requestTimeout = d }
}

// WithLogger overrides the no-op default logger.
func WithLogger(l log.Logger) Option {
	return func(n *Node) { n.Log = l }
}

// WithAddress sets the dialable address this node advertises from
// node/get_info, typically the same value passed to the listener.
func WithAddress(addr string) Option {
	return func(n *Node) { n.Address = addr }
}

// NewNode assembles a Node around an identity, wiring up an empty peer
// registry and agent registry, and registering the built-in coordination
// agent (startup sequence steps 1-3 of the node lifecycle: load identity,
// bind listener [left to the caller], instantiate built-ins).
func NewNode(id *identity.Identity, sendFrame OutboundSink, opts ...Option) (*Node, error) {
	n := &Node{
		ID:              id,
		Peers:           peer.NewRegistry(id.NodeID()),
		Agents:          agentreg.NewRegistry(id.NodeID()),
		Log:             log.NewNoOpLogger(),
		AppVersion:      "1.0.0",
		localAgents:     make(map[string]*agentrt.Agent),
		correlator:      wire.NewCorrelator(),
		sendFrame:       sendFrame,
		outboundRewrite: make(map[string]forwardRecord),
		forwardsByPeer:  make(map[string]map[string]struct{}),
		requestTimeout:  wire.DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}

	coordination, err := agentrt.NewCoordinationAgent(id.NodeID())
	if err != nil {
		return nil, errors.Wrap(err, "router: build coordination agent")
	}
	n.RegisterAgent(coordination)

	return n, nil
}

// RegisterAgent adds a locally hosted agent and publishes its descriptor
// into the distributed agent registry.
func (n *Node) RegisterAgent(a *agentrt.Agent) {
	n.localMu.Lock()
	n.localAgents[a.ID] = a
	n.localMu.Unlock()

	n.Agents.LocalAdd(agentreg.Descriptor{
		AgentID:   a.ID,
		Name:      a.Name,
		Tools:     toolNames(a),
		Resources: resourceNames(a),
		Prompts:   promptNames(a),
		Chat:      a.Chat != nil,
	})
}

// RemoveAgent retracts a locally hosted agent.
func (n *Node) RemoveAgent(agentID string) {
	n.localMu.Lock()
	delete(n.localAgents, agentID)
	n.localMu.Unlock()
	n.Agents.LocalRemove(agentID)
}

func toolNames(a *agentrt.Agent) []string {
	out := make([]string, 0, len(a.Tools))
	for name := range a.Tools {
		out = append(out, name)
	}
	return out
}

func resourceNames(a *agentrt.Agent) []string {
	out := make([]string, 0, len(a.Resources))
	for name := range a.Resources {
		out = append(out, name)
	}
	return out
}

func promptNames(a *agentrt.Agent) []string {
	out := make([]string, 0, len(a.Prompts))
	for name := range a.Prompts {
		out = append(out, name)
	}
	return out
}

// ConfigurePrivacy toggles the padding/jitter flags that ApplySessionPrivacy
// gives new sessions, inbound and outbound. Existing sessions keep their
// handshake-time setting.
func (n *Node) ConfigurePrivacy(padTo256, jitterSend bool) {
	n.privacyMu.Lock()
	defer n.privacyMu.Unlock()
	n.padTo256 = padTo256
	n.jitterSend = jitterSend
}

// PrivacyDefaults returns the current default privacy flags for new
// sessions.
func (n *Node) PrivacyDefaults() (padTo256, jitterSend bool) {
	n.privacyMu.Lock()
	defer n.privacyMu.Unlock()
	return n.padTo256, n.jitterSend
}

// ApplySessionPrivacy sets a freshly established Session's privacy flags
// from the current defaults.
func (n *Node) ApplySessionPrivacy(sess *transport.Session) {
	pad, jitter := n.PrivacyDefaults()
	sess.PadTo256 = pad
	sess.JitterSend = jitter
}

// encodeAgreePub renders an X25519 public key as base64 for advertisement.
func encodeAgreePub(pub [32]byte) string {
	return base64.StdEncoding.EncodeToString(pub[:])
}
