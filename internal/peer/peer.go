// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package peer maintains the node's view of other reachable nodes: their
// addresses, advertised public keys, connection state, and a health score
// derived from recent call outcomes.
package peer

import (
	"sync"
	"time"
)

// Status classifies a Peer's current reachability.
type Status int

const (
	// StatusUnknown is the initial status of a discovered-but-untried peer.
	StatusUnknown Status = iota
	// StatusConnecting means the peer is known by address but has not yet
	// completed a handshake.
	StatusConnecting
	// StatusAlive means the peer has responded recently.
	StatusAlive
	// StatusConnected means a live session is currently open to the peer.
	StatusConnected
	// StatusFailed means the most recent contact attempt with the peer
	// errored out (e.g. its session was torn down mid-forward).
	StatusFailed
	// StatusDead means the peer hasn't been heard from within DeadThreshold.
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusAlive:
		return "alive"
	case StatusConnected:
		return "connected"
	case StatusFailed:
		return "failed"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// Peer is one entry in the registry: everything known about a reachable node.
type Peer struct {
	NodeID        string
	Address       string
	SigningPubKey []byte
	AgreePubKey   [32]byte
	Status        Status
	Health        float64
	LastSeen      time.Time
	Connected     bool
}

// healthAlpha is the exponential-moving-average weight applied to each new
// outcome: health = alpha*new + (1-alpha)*health.
const healthAlpha = 0.2

// DefaultDeadThreshold is how long without contact before a peer is
// reclassified Dead.
const DefaultDeadThreshold = 5 * time.Minute

// DefaultCleanupInterval is how often the registry sweeps for dead peers.
const DefaultCleanupInterval = 60 * time.Second

// Callback is invoked when a peer transitions status, e.g. to drive
// connection teardown or discovery re-dial.
type Callback func(p Peer, previous Status)

// Registry is the concurrency-safe store of known peers, keyed by NodeID.
// A registry never holds an entry for its own node.
type Registry struct {
	mu             sync.RWMutex
	peers          map[string]*Peer
	selfNodeID     string
	deadThreshold  time.Duration
	now            func() time.Time
	onStatusChange []Callback
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithDeadThreshold overrides DefaultDeadThreshold.
func WithDeadThreshold(d time.Duration) Option {
	return func(r *Registry) { r.deadThreshold = d }
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry constructs an empty Registry. selfNodeID is used to reject
// adding the node's own identity as a peer.
func NewRegistry(selfNodeID string, opts ...Option) *Registry {
	r := &Registry{
		peers:         make(map[string]*Peer),
		selfNodeID:    selfNodeID,
		deadThreshold: DefaultDeadThreshold,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnStatusChange registers a callback invoked (synchronously, under no
// lock) whenever a peer's Status changes.
func (r *Registry) OnStatusChange(cb Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onStatusChange = append(r.onStatusChange, cb)
}

// Add inserts or refreshes a peer entry. Adding the self node_id is a no-op.
func (r *Registry) Add(p Peer) {
	if p.NodeID == r.selfNodeID {
		return
	}
	r.mu.Lock()
	existing, ok := r.peers[p.NodeID]
	if !ok {
		if p.LastSeen.IsZero() {
			p.LastSeen = r.now()
		}
		if p.Status == StatusUnknown {
			p.Status = StatusAlive
		}
		cp := p
		r.peers[p.NodeID] = &cp
		r.mu.Unlock()
		r.fireStatusChange(cp, StatusUnknown)
		return
	}
	prevStatus := existing.Status
	existing.Address = p.Address
	if len(p.SigningPubKey) > 0 {
		existing.SigningPubKey = p.SigningPubKey
	}
	if p.AgreePubKey != ([32]byte{}) {
		existing.AgreePubKey = p.AgreePubKey
	}
	existing.LastSeen = r.now()
	if existing.Status == StatusDead || existing.Status == StatusFailed || existing.Status == StatusConnecting {
		existing.Status = StatusAlive
	}
	snapshot := *existing
	r.mu.Unlock()
	if snapshot.Status != prevStatus {
		r.fireStatusChange(snapshot, prevStatus)
	}
}

// AddPending registers a peer known only by address, with no signing key
// and no session yet established (e.g. an administratively added address
// that hasn't been dialed). It is a no-op if an entry already exists under
// that key.
func (r *Registry) AddPending(address string) {
	r.mu.Lock()
	if _, ok := r.peers[address]; ok {
		r.mu.Unlock()
		return
	}
	p := &Peer{NodeID: address, Address: address, Status: StatusConnecting, LastSeen: r.now()}
	r.peers[address] = p
	cp := *p
	r.mu.Unlock()
	r.fireStatusChange(cp, StatusUnknown)
}

// Get returns a copy of the peer entry for nodeID, if present.
func (r *Registry) Get(nodeID string) (Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[nodeID]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Remove evicts a peer entry unconditionally (used by node/remove_peer).
func (r *Registry) Remove(nodeID string) {
	r.mu.Lock()
	p, ok := r.peers[nodeID]
	if ok {
		delete(r.peers, nodeID)
	}
	r.mu.Unlock()
	if ok {
		r.fireStatusChange(Peer{NodeID: nodeID, Status: StatusDead}, p.Status)
	}
}

// SetConnected marks a peer's live-session state, moving it to
// StatusConnected or back down to StatusAlive.
func (r *Registry) SetConnected(nodeID string, connected bool) {
	r.mu.Lock()
	p, ok := r.peers[nodeID]
	if !ok {
		r.mu.Unlock()
		return
	}
	prev := p.Status
	p.Connected = connected
	p.LastSeen = r.now()
	if connected {
		p.Status = StatusConnected
	} else if p.Status == StatusConnected {
		p.Status = StatusAlive
	}
	snapshot := *p
	r.mu.Unlock()
	if snapshot.Status != prev {
		r.fireStatusChange(snapshot, prev)
	}
}

// RecordSuccess applies a successful-call outcome (new=1.0) to the peer's
// health EMA and refreshes LastSeen.
func (r *Registry) RecordSuccess(nodeID string) {
	r.recordOutcome(nodeID, 1.0)
}

// RecordFailure applies a failed-call outcome (new=0.0) to the peer's
// health EMA without touching LastSeen (a failure is not contact).
func (r *Registry) RecordFailure(nodeID string) {
	r.recordOutcome(nodeID, 0.0)
}

func (r *Registry) recordOutcome(nodeID string, outcome float64) {
	r.mu.Lock()
	p, ok := r.peers[nodeID]
	if !ok {
		r.mu.Unlock()
		return
	}
	prev := p.Status
	p.Health = healthAlpha*outcome + (1-healthAlpha)*p.Health
	if outcome == 1.0 {
		p.LastSeen = r.now()
		if p.Status == StatusDead || p.Status == StatusFailed {
			p.Status = StatusAlive
		}
	} else if p.Status != StatusDead {
		p.Status = StatusFailed
		p.Connected = false
	}
	snapshot := *p
	r.mu.Unlock()
	if snapshot.Status != prev {
		r.fireStatusChange(snapshot, prev)
	}
}

// List returns a snapshot of all known peers.
func (r *Registry) List() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	return out
}

// ListAlive returns peers not currently classified Dead.
func (r *Registry) ListAlive() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.Status != StatusDead {
			out = append(out, *p)
		}
	}
	return out
}

// ListConnected returns peers with a currently open session.
func (r *Registry) ListConnected() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.Connected {
			out = append(out, *p)
		}
	}
	return out
}

// CleanupDead scans for peers whose LastSeen exceeds DeadThreshold and
// reclassifies them Status Dead, invoking the status-change callbacks.
// It is intended to run on DefaultCleanupInterval from the router's
// periodic-task loop.
func (r *Registry) CleanupDead() {
	now := r.now()
	var changed []struct {
		p    Peer
		prev Status
	}

	r.mu.Lock()
	for _, p := range r.peers {
		if p.Status == StatusDead {
			continue
		}
		if now.Sub(p.LastSeen) >= r.deadThreshold {
			prev := p.Status
			p.Status = StatusDead
			p.Connected = false
			changed = append(changed, struct {
				p    Peer
				prev Status
			}{*p, prev})
		}
	}
	r.mu.Unlock()

	for _, c := range changed {
		r.fireStatusChange(c.p, c.prev)
	}
}

func (r *Registry) fireStatusChange(p Peer, prev Status) {
	r.mu.RLock()
	cbs := append([]Callback(nil), r.onStatusChange...)
	r.mu.RUnlock()
	for _, cb := range cbs {
		cb(p, prev)
	}
}
