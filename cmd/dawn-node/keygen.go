// Copyright (c) 2026 The Dawn Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rpretzer/dawn/internal/identity"
)

func newKeygenCommand() *cobra.Command {
	var outPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new node identity file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(outPath); err == nil && !force {
				return fmt.Errorf("keygen: %s already exists (use --force to overwrite)", outPath)
			}
			id, err := identity.New()
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, id.Save(), 0o600); err != nil {
				return err
			}
			fmt.Printf("generated identity %s (node_id=%s)\n", outPath, id.NodeID())
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "dawn-identity.bin", "output path for the identity file")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing identity file")
	return cmd
}
