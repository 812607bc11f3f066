// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package peer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAddRejectsSelf(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("self-node")
	r.Add(Peer{NodeID: "self-node", Address: "127.0.0.1:9000"})

	require.Empty(r.List())
}

func TestAddThenGet(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("self-node")
	r.Add(Peer{NodeID: "peer-a", Address: "10.0.0.1:9000"})

	p, ok := r.Get("peer-a")
	require.True(ok)
	require.Equal(StatusAlive, p.Status)
	require.Equal("10.0.0.1:9000", p.Address)
}

func TestHealthEMAFormula(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("self-node")
	r.Add(Peer{NodeID: "peer-a", Address: "10.0.0.1:9000"})

	r.RecordSuccess("peer-a")
	p, _ := r.Get("peer-a")
	require.InDelta(0.2, p.Health, 1e-9) // 0.2*1 + 0.8*0

	r.RecordSuccess("peer-a")
	p, _ = r.Get("peer-a")
	require.InDelta(0.36, p.Health, 1e-9) // 0.2*1 + 0.8*0.2

	r.RecordFailure("peer-a")
	p, _ = r.Get("peer-a")
	require.InDelta(0.288, p.Health, 1e-9) // 0.2*0 + 0.8*0.36
}

func TestCleanupDeadReclassifiesStalePeers(t *testing.T) {
	require := require.New(t)

	current := time.Now()
	r := NewRegistry("self-node", WithClock(func() time.Time { return current }), WithDeadThreshold(time.Minute))
	r.Add(Peer{NodeID: "peer-a", Address: "10.0.0.1:9000"})

	current = current.Add(2 * time.Minute)
	r.CleanupDead()

	p, ok := r.Get("peer-a")
	require.True(ok)
	require.Equal(StatusDead, p.Status)
	require.NotContains(r.ListAlive(), p)
}

func TestRecordSuccessRevivesDeadPeer(t *testing.T) {
	require := require.New(t)

	current := time.Now()
	r := NewRegistry("self-node", WithClock(func() time.Time { return current }), WithDeadThreshold(time.Minute))
	r.Add(Peer{NodeID: "peer-a", Address: "10.0.0.1:9000"})

	current = current.Add(2 * time.Minute)
	r.CleanupDead()
	p, _ := r.Get("peer-a")
	require.Equal(StatusDead, p.Status)

	r.RecordSuccess("peer-a")
	p, _ = r.Get("peer-a")
	require.Equal(StatusAlive, p.Status)
}

func TestSetConnectedTransitions(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("self-node")
	r.Add(Peer{NodeID: "peer-a", Address: "10.0.0.1:9000"})

	r.SetConnected("peer-a", true)
	p, _ := r.Get("peer-a")
	require.Equal(StatusConnected, p.Status)
	require.Contains(r.ListConnected(), p)

	r.SetConnected("peer-a", false)
	p, _ = r.Get("peer-a")
	require.Equal(StatusAlive, p.Status)
}

func TestStatusChangeCallbackFires(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("self-node")

	var transitions []Status
	r.OnStatusChange(func(p Peer, previous Status) {
		transitions = append(transitions, p.Status)
	})

	r.Add(Peer{NodeID: "peer-a", Address: "10.0.0.1:9000"})
	r.SetConnected("peer-a", true)
	r.Remove("peer-a")

	require.Equal([]Status{StatusAlive, StatusConnected, StatusDead}, transitions)
}

func TestAddPendingStartsConnecting(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("self-node")
	r.AddPending("10.0.0.9:9000")

	p, ok := r.Get("10.0.0.9:9000")
	require.True(ok)
	require.Equal(StatusConnecting, p.Status)
}

func TestRecordFailureMarksConnectedPeerFailed(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("self-node")
	r.Add(Peer{NodeID: "peer-a", Address: "10.0.0.1:9000"})
	r.SetConnected("peer-a", true)

	r.RecordFailure("peer-a")
	p, _ := r.Get("peer-a")
	require.Equal(StatusFailed, p.Status)
	require.False(p.Connected)

	r.RecordSuccess("peer-a")
	p, _ = r.Get("peer-a")
	require.Equal(StatusAlive, p.Status)
}

func TestRemoveEvictsImmediately(t *testing.T) {
	require := require.New(t)

	r := NewRegistry("self-node")
	r.Add(Peer{NodeID: "peer-a", Address: "10.0.0.1:9000"})
	r.Remove("peer-a")

	_, ok := r.Get("peer-a")
	require.False(ok)
}
