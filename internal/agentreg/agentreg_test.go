// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package agentreg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLocalAddVisibleImmediately(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("node-a")
	r.LocalAdd(Descriptor{AgentID: "coordination", Name: "Coordination"})

	d, ok := r.FindAgent("coordination")
	require.True(ok)
	require.Equal("node-a", d.NodeID)
}

func TestLocalRemoveHidesAgent(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("node-a")
	r.LocalAdd(Descriptor{AgentID: "coordination"})
	r.LocalRemove("coordination")

	_, ok := r.FindAgent("coordination")
	require.False(ok)
}

func TestMergeIsIdempotent(t *testing.T) {
	require := require.New(t)

	a := NewRegistry("node-a")
	a.LocalAdd(Descriptor{AgentID: "coordination"})
	delta := a.Snapshot()[0]

	b := NewRegistry("node-b")
	b.Merge(delta)
	b.Merge(delta)
	b.Merge(delta)

	require.Len(b.ListAll(), 1)
}

func TestMergeIsCommutative(t *testing.T) {
	require := require.New(t)

	a := NewRegistry("node-a")
	a.LocalAdd(Descriptor{AgentID: "agent-1"})
	a.LocalAdd(Descriptor{AgentID: "agent-2"})
	deltas := a.Snapshot()
	require.Len(deltas, 2)

	order1 := NewRegistry("x")
	order1.Merge(deltas[0])
	order1.Merge(deltas[1])

	order2 := NewRegistry("y")
	order2.Merge(deltas[1])
	order2.Merge(deltas[0])

	require.ElementsMatch(agentIDs(order1.ListAll()), agentIDs(order2.ListAll()))
}

func TestConcurrentAddRemoveConvergesToRemoved(t *testing.T) {
	require := require.New(t)

	a := NewRegistry("node-a")
	a.LocalAdd(Descriptor{AgentID: "coordination"})
	addDelta := a.Snapshot()[0]

	a.LocalRemove("coordination")
	removeDelta := a.Snapshot()[0]

	b := NewRegistry("node-b")
	b.Merge(removeDelta)
	b.Merge(addDelta)

	_, ok := b.FindAgent("coordination")
	require.False(ok, "tombstone for the observed add must win regardless of merge order")
}

func TestGCEvictsStaleNodeAgents(t *testing.T) {
	require := require.New(t)

	base := time.Now()
	r := NewRegistry("node-a")
	r.now = func() time.Time { return base }
	r.LocalAdd(Descriptor{AgentID: "local-agent"})

	remoteDelta := Delta{
		NodeID:  "node-b",
		AgentID: "remote-agent",
		Adds:    []Tag{{NodeID: "node-b", Counter: 1}},
		Desc:    Descriptor{AgentID: "remote-agent", NodeID: "node-b", UpdatedAt: base},
	}
	r.Merge(remoteDelta)

	require.Len(r.ListAll(), 2)

	r.GC(base.Add(25 * time.Hour))

	remaining := r.ListAll()
	require.Len(remaining, 1)
	require.Equal("local-agent", remaining[0].AgentID)
}

func agentIDs(ds []Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.AgentID
	}
	return out
}
