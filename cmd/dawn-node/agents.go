// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpretzer/dawn/internal/agentreg"
)

func newAgentsCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List the agents visible to a running node's distributed registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := callNode(*configPath, "node/list_agents", nil)
			if err != nil {
				return err
			}
			var agents []agentreg.Descriptor
			if err := json.Unmarshal(raw, &agents); err != nil {
				return err
			}
			for _, a := range agents {
				fmt.Printf("%-24s node=%-40s tools=%v resources=%v prompts=%v chat=%v\n",
					a.AgentID, a.NodeID, a.Tools, a.Resources, a.Prompts, a.Chat)
			}
			return nil
		},
	}
	return cmd
}
