// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package router

import (
	"context"
	"encoding/json"

	"github.com/rpretzer/dawn/internal/agentrt"
)

// cloneCoordinationAgent builds a fresh agent under agentID with the same
// capability shape as the built-in coordination agent (a ping tool and an
// introduce prompt) — the template node/create_agent clones.
func cloneCoordinationAgent(agentID, name string) (*agentrt.Agent, error) {
	a := agentrt.NewAgent(agentID, name)

	schema := []byte(`{"type":"object","properties":{"echo":{"type":"string"}},"additionalProperties":false}`)
	err := a.RegisterTool("ping", "Echoes the supplied value back to the caller.", schema,
		func(_ context.Context, args json.RawMessage) (interface{}, error) {
			var in struct {
				Echo string `json:"echo"`
			}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return nil, err
				}
			}
			return map[string]string{"echo": in.Echo, "agent_id": agentID}, nil
		})
	if err != nil {
		return nil, err
	}

	a.RegisterPrompt("introduce", "Renders a short greeting naming this agent.",
		"Hello from agent {{agent_id}}. {{message}}", []string{"agent_id", "message"})

	return a, nil
}
