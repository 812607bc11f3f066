// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpretzer/dawn/internal/identity"
	"github.com/rpretzer/dawn/internal/peer"
	"github.com/rpretzer/dawn/internal/wire"
)

func newTestNode(t *testing.T, sendFrame OutboundSink) *Node {
	id, err := identity.New()
	require.NoError(t, err)
	if sendFrame == nil {
		sendFrame = func(context.Context, string, []byte) error { return nil }
	}
	n, err := NewNode(id, sendFrame)
	require.NoError(t, err)
	return n
}

func TestDispatchLocalCoordinationPing(t *testing.T) {
	require := require.New(t)

	n := newTestNode(t, nil)
	req, err := wire.NewRequest("1", "coordination/tools/call", map[string]interface{}{
		"name":      "ping",
		"arguments": map[string]string{"echo": "hi"},
	})
	require.NoError(err)

	resp := n.HandleInbound(context.Background(), "sess-1", req)
	require.NotNil(resp)
	require.Nil(resp.Error)

	var result map[string]string
	require.NoError(json.Unmarshal(resp.Result, &result))
	require.Equal("hi", result["echo"])
}

func TestDispatchUnknownAgentReturnsError(t *testing.T) {
	require := require.New(t)

	n := newTestNode(t, nil)
	req, err := wire.NewRequest("1", "missing-agent/tools/call", nil)
	require.NoError(err)

	resp := n.HandleInbound(context.Background(), "sess-1", req)
	require.NotNil(resp.Error)
	require.Equal(wire.CodeMethodNotFound, resp.Error.Code)
}

func TestDispatchReservedNodeGetInfo(t *testing.T) {
	require := require.New(t)

	n := newTestNode(t, nil)
	req, err := wire.NewRequest("1", "node/get_info", nil)
	require.NoError(err)

	resp := n.HandleInbound(context.Background(), "sess-1", req)
	require.Nil(resp.Error)

	var info NodeInfo
	require.NoError(json.Unmarshal(resp.Result, &info))
	require.Equal(n.ID.NodeID(), info.NodeID)
}

func TestDispatchForwardUnknownPeer(t *testing.T) {
	require := require.New(t)

	n := newTestNode(t, nil)
	req, err := wire.NewRequest("1", "node-xyz:coordination/ping", nil)
	require.NoError(err)

	resp := n.HandleInbound(context.Background(), "sess-1", req)
	require.NotNil(resp.Error)
	require.Equal(wire.CodeUnknownPeer, resp.Error.Code)
}

func TestDispatchForwardRoutesToPeerAndCorrelatesResponse(t *testing.T) {
	require := require.New(t)

	var captured []byte
	var n *Node
	n = newTestNode(t, func(ctx context.Context, peerNodeID string, payload []byte) error {
		captured = payload
		go func() {
			f, err := wire.Decode(payload)
			require.NoError(err)
			result, err := wire.NewResult(*f.ID, map[string]string{"echo": "pong"})
			require.NoError(err)
			n.HandleInbound(ctx, "sess-1", result)
		}()
		return nil
	})
	n.Peers.Add(peer.Peer{NodeID: "node-remote", Address: "10.0.0.5:7946"})

	req, err := wire.NewRequest("1", "node-remote:coordination/ping", map[string]string{"echo": "hi"})
	require.NoError(err)

	resp := n.HandleInbound(context.Background(), "sess-1", req)
	require.NotNil(resp)
	require.Nil(resp.Error)
	require.NotEmpty(captured)

	var result map[string]string
	require.NoError(json.Unmarshal(resp.Result, &result))
	require.Equal("pong", result["echo"])
}

func TestCreateAgentThenDispatchToIt(t *testing.T) {
	require := require.New(t)

	n := newTestNode(t, nil)
	createReq, err := wire.NewRequest("1", "node/create_agent", map[string]string{"agent_id": "helper"})
	require.NoError(err)

	resp := n.HandleInbound(context.Background(), "sess-1", createReq)
	require.Nil(resp.Error)

	pingReq, err := wire.NewRequest("2", "helper/tools/call", map[string]interface{}{
		"name":      "ping",
		"arguments": map[string]string{"echo": "yo"},
	})
	require.NoError(err)
	pingResp := n.HandleInbound(context.Background(), "sess-1", pingReq)
	require.Nil(pingResp.Error)
}

func TestDispatchAgentPromptAndChat(t *testing.T) {
	require := require.New(t)

	n := newTestNode(t, nil)

	listReq, err := wire.NewRequest("1", "coordination/tools/list", nil)
	require.NoError(err)
	listResp := n.HandleInbound(context.Background(), "sess-1", listReq)
	require.Nil(listResp.Error)

	promptReq, err := wire.NewRequest("2", "coordination/prompts/get", map[string]interface{}{
		"name":      "introduce",
		"arguments": map[string]string{"node_id": n.ID.NodeID(), "message": "hi"},
	})
	require.NoError(err)
	promptResp := n.HandleInbound(context.Background(), "sess-1", promptReq)
	require.Nil(promptResp.Error)

	chatReq, err := wire.NewRequest("3", "coordination/chat/message", map[string]string{"message": "hello"})
	require.NoError(err)
	chatResp := n.HandleInbound(context.Background(), "sess-1", chatReq)
	require.NotNil(chatResp.Error)
	require.Equal(wire.CodeMethodNotFound, chatResp.Error.Code)
}

func TestSessionClosedFailsInFlightForwardWithPeerTransportFailed(t *testing.T) {
	require := require.New(t)

	blockSend := make(chan struct{})
	n := newTestNode(t, func(ctx context.Context, peerNodeID string, payload []byte) error {
		<-blockSend
		return nil
	})
	n.Peers.Add(peer.Peer{NodeID: "node-remote", Address: "10.0.0.5:7946"})

	req, err := wire.NewRequest("1", "node-remote:coordination/tools/call", map[string]interface{}{
		"name": "ping",
	})
	require.NoError(err)

	done := make(chan *wire.Frame, 1)
	go func() {
		done <- n.HandleInbound(context.Background(), "sess-1", req)
	}()

	require.Eventually(func() bool {
		n.forwardingMu.Lock()
		defer n.forwardingMu.Unlock()
		return len(n.forwardsByPeer["node-remote"]) == 1
	}, time.Second, time.Millisecond)

	n.SessionClosed("node-remote")
	close(blockSend)

	resp := <-done
	require.NotNil(resp.Error)
	require.Equal(wire.CodePeerTransportFailed, resp.Error.Code)
}

func TestWithMetricsObservesForwardLatency(t *testing.T) {
	require := require.New(t)

	id, err := identity.New()
	require.NoError(err)

	n, err := NewNode(id, func(context.Context, string, []byte) error { return nil }, WithMetrics(nil))
	require.NoError(err)
	require.NotNil(n.metrics)

	n.observeForwardLatencyMS(1.5)
	n.recordForwardFailure()
}

func TestNotificationProducesNoResponse(t *testing.T) {
	require := require.New(t)

	n := newTestNode(t, nil)
	notif, err := wire.NewNotification("coordination/ping", map[string]string{"echo": "x"})
	require.NoError(err)

	resp := n.HandleInbound(context.Background(), "sess-1", notif)
	require.Nil(resp)
}
