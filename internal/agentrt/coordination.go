// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package agentrt

import (
	"context"
	"encoding/json"
)

// CoordinationAgentID is the well-known agent_id every node hosts out of
// the box, used for liveness checks and as the template node/create_agent
// clones.
const CoordinationAgentID = "coordination"

var pingSchema = []byte(`{
	"type": "object",
	"properties": {
		"echo": {"type": "string"}
	},
	"additionalProperties": false
}`)

type pingArgs struct {
	Echo string `json:"echo"`
}

// NewCoordinationAgent builds the node's built-in agent: a "ping" tool
// that echoes its input, and an "introduce" prompt that renders the
// caller-supplied node_id and message arguments into a short greeting.
func NewCoordinationAgent(nodeID string) (*Agent, error) {
	a := NewAgent(CoordinationAgentID, "Coordination")

	err := a.RegisterTool("ping", "Echoes the supplied value back to the caller.", pingSchema,
		func(_ context.Context, args json.RawMessage) (interface{}, error) {
			var in pingArgs
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
			}
			return map[string]string{"echo": in.Echo, "node_id": nodeID}, nil
		})
	if err != nil {
		return nil, err
	}

	a.RegisterPrompt("introduce", "Renders a short greeting naming this node.",
		"Hello from node {{node_id}}. {{message}}", []string{"node_id", "message"})

	return a, nil
}
