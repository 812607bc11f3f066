// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/luxfi/log"
)

// DefaultGossipInterval is the base period between gossip rounds; each
// round's actual delay is jittered +/-10%.
const DefaultGossipInterval = 60 * time.Second

// staleAfterRounds is how many consecutive gossip rounds a send to a peer
// may fail before the gossip loop reports that peer through onStale. The
// gossip loop itself does not change the peer registry; what happens to
// the peer is up to the onStale callback.
const staleAfterRounds = 10

// Announcement is what one gossip round sends to a sampled peer: this
// node's own liveness plus a sample of peers it knows about, so liveness
// information propagates transitively across the mesh.
type Announcement struct {
	FromNodeID string       `json:"from_node_id"`
	Sample     []PeerSample `json:"sample"`
}

// PeerSample is one entry in a gossip announcement's peer sample.
type PeerSample struct {
	NodeID  string
	Address string
}

// SampleSize is how many known peers are included in each announcement.
const SampleSize = 8

// Sender sends one gossip announcement to one peer and reports whether it
// was acknowledged (reachable).
type Sender func(ctx context.Context, peerNodeID string, a Announcement) error

// KnownPeersFunc returns the current set of peers eligible for sampling
// and fan-out, supplied by the router's peer registry.
type KnownPeersFunc func() []PeerSample

// Gossip runs the periodic announce+sample loop. It follows the
// started/cancel/WaitGroup lifecycle pattern used elsewhere in this
// module for long-running background loops.
type Gossip struct {
	selfNodeID string
	interval   time.Duration
	send       Sender
	knownPeers KnownPeersFunc
	onStale    func(nodeID string)
	log        log.Logger

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	executing sync.WaitGroup

	missedRounds map[string]int
}

// NewGossip constructs a Gossip loop. onStale is invoked (outside any
// internal lock) when a peer has gone staleAfterRounds consecutive rounds
// without a successful send.
func NewGossip(selfNodeID string, interval time.Duration, send Sender, knownPeers KnownPeersFunc, onStale func(nodeID string), logger log.Logger) *Gossip {
	if interval <= 0 {
		interval = DefaultGossipInterval
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Gossip{
		selfNodeID:   selfNodeID,
		interval:     interval,
		send:         send,
		knownPeers:   knownPeers,
		onStale:      onStale,
		log:          logger,
		missedRounds: make(map[string]int),
	}
}

// Start begins the periodic gossip loop. Safe to call more than once;
// subsequent calls are no-ops while already started.
func (g *Gossip) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return
	}
	g.started = true

	var ctx context.Context
	ctx, g.cancel = context.WithCancel(context.Background())
	g.executing.Add(1)
	go g.run(ctx)
}

// Stop cancels the gossip loop and waits for it to exit.
func (g *Gossip) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	cancel := g.cancel
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	g.executing.Wait()
}

func (g *Gossip) run(ctx context.Context) {
	defer g.executing.Done()
	for {
		delay := jitteredInterval(g.interval)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
			g.round(ctx)
		}
	}
}

func (g *Gossip) round(ctx context.Context) {
	peers := g.knownPeers()
	if len(peers) == 0 {
		return
	}
	sample := samplePeers(peers, SampleSize)
	announcement := Announcement{FromNodeID: g.selfNodeID, Sample: sample}

	for _, p := range peers {
		err := g.send(ctx, p.NodeID, announcement)
		if err != nil {
			g.missedRounds[p.NodeID]++
			g.log.Debug("gossip round missed peer", log.String("peer", p.NodeID), log.Err(err))
			if g.missedRounds[p.NodeID] >= staleAfterRounds {
				delete(g.missedRounds, p.NodeID)
				if g.onStale != nil {
					g.onStale(p.NodeID)
				}
			}
			continue
		}
		delete(g.missedRounds, p.NodeID)
	}
}

// jitteredInterval returns base scaled by a uniform random factor in
// [0.9, 1.1).
func jitteredInterval(base time.Duration) time.Duration {
	jitter := 0.9 + rand.Float64()*0.2
	return time.Duration(float64(base) * jitter)
}

func samplePeers(peers []PeerSample, n int) []PeerSample {
	if len(peers) <= n {
		out := make([]PeerSample, len(peers))
		copy(out, peers)
		return out
	}
	idx := rand.Perm(len(peers))[:n]
	out := make([]PeerSample, n)
	for i, j := range idx {
		out[i] = peers[j]
	}
	return out
}
