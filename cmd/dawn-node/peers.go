// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpretzer/dawn/internal/peer"
)

func newPeersCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "List the peers known to a running node",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := callNode(*configPath, "node/list_peers", nil)
			if err != nil {
				return err
			}
			var peers []peer.Peer
			if err := json.Unmarshal(raw, &peers); err != nil {
				return err
			}
			for _, p := range peers {
				fmt.Printf("%-40s %-21s %-10s health=%.2f\n", p.NodeID, p.Address, p.Status, p.Health)
			}
			return nil
		},
	}
	return cmd
}
