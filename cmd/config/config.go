// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stratastor/pgbranch/config"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and persist configuration",
	}

	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newSaveCmd())

	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}

			if path := config.GetLoadedConfigPath(); path != "" {
				fmt.Printf("# %s\n", path)
			}
			fmt.Print(string(out))
			return nil
		},
	}
}

func newSaveCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write the effective configuration to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.GetConfig()
			if err := config.SaveConfig(path); err != nil {
				return err
			}
			fmt.Printf("Saved configuration to %s\n", config.GetLoadedConfigPath())
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "destination path (defaults to the config directory)")

	return cmd
}
