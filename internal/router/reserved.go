// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package router

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/rpretzer/dawn/internal/agentreg"
	"github.com/rpretzer/dawn/internal/discovery"
	"github.com/rpretzer/dawn/internal/peer"
	"github.com/rpretzer/dawn/internal/wire"
)

// NodeInfo is the payload returned by "node/get_info".
type NodeInfo struct {
	NodeID        string              `json:"node_id"`
	Address       string              `json:"address"`
	PeerCount     int                 `json:"peer_count"`
	SigningPubKey string              `json:"signing_pub_key"`
	AgreePubKey   string              `json:"agree_pub_key"`
	Version       string              `json:"version"`
	Agents        []agentreg.Descriptor `json:"agents"`
	Privacy       privacyInfo         `json:"privacy"`
}

// privacyInfo reports the node's current default privacy posture. Onion
// routing is out of scope for this core; it is always reported false.
type privacyInfo struct {
	OnionRouting      bool `json:"onion_routing"`
	MessagePadding    bool `json:"message_padding"`
	TimingObfuscation bool `json:"timing_obfuscation"`
}

// registrySyncArgs is the body of the "node/registry_sync" notification a
// session sends on establishment (a full CRDT snapshot) and may resend
// incrementally thereafter.
type registrySyncArgs struct {
	Deltas []agentreg.Delta `json:"deltas"`
}

// gossipAnnounceArgs mirrors discovery.Announcement on the wire.
type gossipAnnounceArgs struct {
	FromNodeID string                   `json:"from_node_id"`
	Sample     []discovery.PeerSample `json:"sample"`
}

// dispatchReserved implements the node-level method table: node/*,
// tools/list, resources/list, prompts/list, and the llm_* passthroughs.
func (n *Node) dispatchReserved(ctx context.Context, method wire.Method, params json.RawMessage) (interface{}, error) {
	switch method.Op {
	case "node/get_info":
		return n.handleGetInfo()
	case "node/list_peers":
		return n.handleListPeers()
	case "node/list_agents":
		return n.handleListAgents()
	case "node/create_agent":
		return n.handleCreateAgent(params)
	case "node/configure_privacy":
		return n.handleConfigurePrivacy(params)
	case "node/add_peer":
		return n.handleAddPeer(params)
	case "node/remove_peer":
		return n.handleRemovePeer(params)
	case "node/gossip_announce":
		return n.handleGossipAnnounce(params)
	case "node/registry_sync":
		return n.handleRegistrySync(params)
	case "tools/list":
		return n.handleToolsList()
	case "resources/list":
		return n.handleResourcesList()
	case "prompts/list":
		return n.handlePromptsList()
	case "llm_get_config", "llm_set_config", "llm_list_models":
		// Opaque passthrough: accepted and echoed, not interpreted, since
		// model/provider configuration lives outside this repo's scope.
		return n.handleLLMPassthrough(method.Op, params)
	default:
		return nil, wire.ErrMethodNotFound
	}
}

func (n *Node) handleGetInfo() (interface{}, error) {
	agree := n.ID.AgreementPublicKey()
	padTo256, jitterSend := n.PrivacyDefaults()
	return NodeInfo{
		NodeID:        n.ID.NodeID(),
		Address:       n.Address,
		PeerCount:     len(n.Peers.List()),
		SigningPubKey: base64.StdEncoding.EncodeToString(n.ID.SigningPublicKey()),
		AgreePubKey:   encodeAgreePub(agree),
		Version:       n.AppVersion,
		Agents:        n.Agents.ListAll(),
		Privacy: privacyInfo{
			OnionRouting:      false,
			MessagePadding:    padTo256,
			TimingObfuscation: jitterSend,
		},
	}, nil
}

func (n *Node) handleListPeers() (interface{}, error) {
	return n.Peers.List(), nil
}

func (n *Node) handleListAgents() (interface{}, error) {
	return n.Agents.ListAll(), nil
}

type createAgentArgs struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

// handleCreateAgent clones the shape of the built-in coordination agent
// under a caller-chosen ID. Intentionally left unauthenticated at the
// wire layer: any session that can reach the node can create a locally
// hosted agent, same as every other reserved method.
func (n *Node) handleCreateAgent(params json.RawMessage) (interface{}, error) {
	var args createAgentArgs
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, wire.ErrInvalidParams
		}
	}
	if args.AgentID == "" {
		return nil, wire.ErrInvalidParams
	}
	n.localMu.RLock()
	_, exists := n.localAgents[args.AgentID]
	n.localMu.RUnlock()
	if exists {
		return nil, wire.ErrInvalidParams
	}

	name := args.Name
	if name == "" {
		name = args.AgentID
	}
	agent, err := cloneCoordinationAgent(args.AgentID, name)
	if err != nil {
		return nil, err
	}
	n.RegisterAgent(agent)
	return map[string]string{"agent_id": args.AgentID}, nil
}

type configurePrivacyArgs struct {
	PadTo256   bool `json:"pad_to_256"`
	JitterSend bool `json:"jitter_send"`
}

func (n *Node) handleConfigurePrivacy(params json.RawMessage) (interface{}, error) {
	var args configurePrivacyArgs
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, wire.ErrInvalidParams
		}
	}
	n.ConfigurePrivacy(args.PadTo256, args.JitterSend)
	return map[string]bool{"ok": true}, nil
}

type addPeerArgs struct {
	Address string `json:"address"`
}

func (n *Node) handleAddPeer(params json.RawMessage) (interface{}, error) {
	var args addPeerArgs
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, wire.ErrInvalidParams
		}
	}
	if args.Address == "" {
		return nil, wire.ErrInvalidParams
	}
	n.Peers.AddPending(args.Address)
	return map[string]bool{"ok": true}, nil
}

type removePeerArgs struct {
	NodeID string `json:"node_id"`
}

func (n *Node) handleRemovePeer(params json.RawMessage) (interface{}, error) {
	var args removePeerArgs
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, wire.ErrInvalidParams
		}
	}
	if args.NodeID == "" {
		return nil, wire.ErrInvalidParams
	}
	n.Peers.Remove(args.NodeID)
	return map[string]bool{"ok": true}, nil
}

// handleGossipAnnounce merges an announced peer sample into the local peer
// registry, the receiving half of the gossip protocol (discovery.Gossip
// only implements the sending half). Malformed params yield InvalidParams;
// a well-formed announcement always succeeds.
func (n *Node) handleGossipAnnounce(params json.RawMessage) (interface{}, error) {
	var args gossipAnnounceArgs
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, wire.ErrInvalidParams
		}
	}
	for _, sample := range args.Sample {
		if sample.NodeID == "" || sample.NodeID == n.ID.NodeID() {
			continue
		}
		n.Peers.Add(peer.Peer{NodeID: sample.NodeID, Address: sample.Address})
	}
	return nil, nil
}

// handleRegistrySync merges an inbound CRDT snapshot or incremental delta
// set into the local agent registry. Sent by a peer on session
// establishment (full state) and may be resent incrementally thereafter.
func (n *Node) handleRegistrySync(params json.RawMessage) (interface{}, error) {
	var args registrySyncArgs
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, wire.ErrInvalidParams
		}
	}
	for _, d := range args.Deltas {
		n.Agents.Merge(d)
	}
	return nil, nil
}

// capabilityEntry is the listing shape returned by tools/resources/prompts
// "list" reserved methods: which agent hosts the capability and its name.
type capabilityEntry struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

func (n *Node) handleToolsList() (interface{}, error) {
	n.localMu.RLock()
	defer n.localMu.RUnlock()
	var out []capabilityEntry
	for agentID, agent := range n.localAgents {
		for name := range agent.Tools {
			out = append(out, capabilityEntry{AgentID: agentID, Name: name})
		}
	}
	return out, nil
}

func (n *Node) handleResourcesList() (interface{}, error) {
	n.localMu.RLock()
	defer n.localMu.RUnlock()
	var out []capabilityEntry
	for agentID, agent := range n.localAgents {
		for uri := range agent.Resources {
			out = append(out, capabilityEntry{AgentID: agentID, Name: uri})
		}
	}
	return out, nil
}

func (n *Node) handlePromptsList() (interface{}, error) {
	n.localMu.RLock()
	defer n.localMu.RUnlock()
	var out []capabilityEntry
	for agentID, agent := range n.localAgents {
		for name := range agent.Prompts {
			out = append(out, capabilityEntry{AgentID: agentID, Name: name})
		}
	}
	return out, nil
}

// handleLLMPassthrough accepts llm_get_config/llm_set_config/llm_list_models
// calls without interpreting them, returning {op, params}: the method name
// and the decoded params (null when none were sent).
func (n *Node) handleLLMPassthrough(op string, params json.RawMessage) (interface{}, error) {
	var echoed interface{}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &echoed); err != nil {
			return nil, wire.ErrInvalidParams
		}
	}
	return map[string]interface{}{"op": op, "params": echoed}, nil
}
