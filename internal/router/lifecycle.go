// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package router

import (
	"context"
	"sync"
	"time"

	"github.com/luxfi/log"

	"github.com/rpretzer/dawn/internal/agentreg"
	"github.com/rpretzer/dawn/internal/peer"
)

// Tasks owns the Node's periodic background loops: peer-registry cleanup
// and agent-registry GC. Discovery (bootstrap/multicast/gossip) is started
// separately by cmd/dawn-node, since it needs transport-layer dial/send
// functions the router package doesn't itself construct.
type Tasks struct {
	node *Node

	peerCleanupInterval time.Duration

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	executing sync.WaitGroup
}

// NewTasks builds the periodic-task runner for node, using
// peer.DefaultCleanupInterval unless overridden by the caller via
// SetPeerCleanupInterval before Start.
func NewTasks(node *Node) *Tasks {
	return &Tasks{node: node, peerCleanupInterval: peer.DefaultCleanupInterval}
}

// SetPeerCleanupInterval overrides the default peer-registry cleanup
// period. Must be called before Start.
func (t *Tasks) SetPeerCleanupInterval(d time.Duration) {
	if d > 0 {
		t.peerCleanupInterval = d
	}
}

// Start begins both periodic loops. Safe to call more than once; later
// calls are no-ops while already started.
func (t *Tasks) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true

	var ctx context.Context
	ctx, t.cancel = context.WithCancel(context.Background())
	t.executing.Add(2)
	go t.runPeerCleanup(ctx)
	go t.runAgentGC(ctx)
}

// Stop cancels both loops and waits for them to exit.
func (t *Tasks) Stop() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}
	t.started = false
	cancel := t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	t.executing.Wait()
}

func (t *Tasks) runPeerCleanup(ctx context.Context) {
	defer t.executing.Done()
	ticker := time.NewTicker(t.peerCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.node.Peers.CleanupDead()
		}
	}
}

func (t *Tasks) runAgentGC(ctx context.Context) {
	defer t.executing.Done()
	ticker := time.NewTicker(agentreg.DefaultEvictionAge / 24) // sweep hourly
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.node.Agents.GC(time.Now())
		}
	}
}

// LogStatus emits a one-line snapshot of peer/agent counts, useful for
// operators tailing console output.
func (t *Tasks) LogStatus(logger log.Logger) {
	if logger == nil {
		return
	}
	logger.Info("node status",
		log.Int("peers_known", len(t.node.Peers.List())),
		log.Int("peers_alive", len(t.node.Peers.ListAlive())),
		log.Int("agents_visible", len(t.node.Agents.ListAll())),
	)
}
