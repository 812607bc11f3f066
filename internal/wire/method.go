// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "strings"

// MethodKind classifies a parsed Method.
type MethodKind int

const (
	// MethodReserved is a bare node-level method, e.g. "node/list_peers".
	MethodReserved MethodKind = iota
	// MethodLocal addresses an agent hosted by the receiving node directly,
	// e.g. "coordination/ping".
	MethodLocal
	// MethodForward addresses an agent on a named remote node for full-mesh
	// forwarding, e.g. "node-abc:coordination/ping".
	MethodForward
)

// Method is a parsed RPC method string.
type Method struct {
	Kind    MethodKind
	NodeID  string // set only for MethodForward
	AgentID string // set for MethodLocal and MethodForward
	Op      string
	Raw     string
}

// reservedPrefixes lists the top-level namespaces dispatched directly by the
// router rather than forwarded to an agent.
var reservedPrefixes = []string{
	"node/", "tools/", "resources/", "prompts/", "llm_",
}

// ParseMethod classifies a raw method string per the three accepted forms:
//
//	"<node_id>:<agent_id>/<op>"  -> MethodForward
//	"<agent_id>/<op>"            -> MethodLocal
//	"node/...", "tools/list", …  -> MethodReserved
func ParseMethod(raw string) Method {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(raw, p) || raw == strings.TrimSuffix(p, "/") {
			return Method{Kind: MethodReserved, Op: raw, Raw: raw}
		}
	}

	if idx := strings.IndexByte(raw, ':'); idx >= 0 {
		nodeID := raw[:idx]
		rest := raw[idx+1:]
		agentID, op := splitAgentOp(rest)
		return Method{Kind: MethodForward, NodeID: nodeID, AgentID: agentID, Op: op, Raw: raw}
	}

	agentID, op := splitAgentOp(raw)
	return Method{Kind: MethodLocal, AgentID: agentID, Op: op, Raw: raw}
}

func splitAgentOp(s string) (agentID, op string) {
	idx := strings.IndexByte(s, '/')
	if idx < 0 {
		return s, ""
	}
	return s[:idx], s[idx+1:]
}

// String reconstructs the canonical method string for logging.
func (m Method) String() string { return m.Raw }
