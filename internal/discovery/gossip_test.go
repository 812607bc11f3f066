// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGossipRoundSendsToAllKnownPeers(t *testing.T) {
	require := require.New(t)

	var mu sync.Mutex
	sent := map[string]int{}

	send := func(_ context.Context, peerNodeID string, _ Announcement) error {
		mu.Lock()
		sent[peerNodeID]++
		mu.Unlock()
		return nil
	}
	known := func() []PeerSample {
		return []PeerSample{{NodeID: "peer-a"}, {NodeID: "peer-b"}}
	}

	g := NewGossip("self", time.Millisecond, send, known, nil, nil)
	g.round(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(1, sent["peer-a"])
	require.Equal(1, sent["peer-b"])
}

func TestGossipMarksStaleAfterConsecutiveMisses(t *testing.T) {
	require := require.New(t)

	var staleMu sync.Mutex
	var staled []string

	send := func(_ context.Context, peerNodeID string, _ Announcement) error {
		return errAlwaysFail
	}
	known := func() []PeerSample {
		return []PeerSample{{NodeID: "peer-a"}}
	}
	onStale := func(nodeID string) {
		staleMu.Lock()
		staled = append(staled, nodeID)
		staleMu.Unlock()
	}

	g := NewGossip("self", time.Millisecond, send, known, onStale, nil)
	for i := 0; i < staleAfterRounds; i++ {
		g.round(context.Background())
	}

	staleMu.Lock()
	defer staleMu.Unlock()
	require.Equal([]string{"peer-a"}, staled)
}

func TestGossipStartStopLifecycle(t *testing.T) {
	require := require.New(t)

	var mu sync.Mutex
	rounds := 0
	send := func(_ context.Context, _ string, _ Announcement) error {
		mu.Lock()
		rounds++
		mu.Unlock()
		return nil
	}
	known := func() []PeerSample { return []PeerSample{{NodeID: "peer-a"}} }

	g := NewGossip("self", 5*time.Millisecond, send, known, nil, nil)
	g.Start()
	g.Start() // no-op second call
	time.Sleep(40 * time.Millisecond)
	g.Stop()

	mu.Lock()
	got := rounds
	mu.Unlock()
	require.Greater(got, 0)
}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

var errAlwaysFail = &testError{"gossip send failed"}
