// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stratastor/pgbranch/cmd/branch"
	configcmd "github.com/stratastor/pgbranch/cmd/config"
	"github.com/stratastor/pgbranch/cmd/health"
	"github.com/stratastor/pgbranch/cmd/project"
	"github.com/stratastor/pgbranch/cmd/serve"
	"github.com/stratastor/pgbranch/cmd/snapshot"
	"github.com/stratastor/pgbranch/cmd/status"
	"github.com/stratastor/pgbranch/cmd/version"
	"github.com/stratastor/pgbranch/config"
)

func NewRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "pgbranch",
		Short: "pgbranch: copy-on-write PostgreSQL branches on ZFS",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadConfig(configFile)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	rootCmd.AddCommand(project.NewProjectCmd())
	rootCmd.AddCommand(branch.NewBranchCmd())
	rootCmd.AddCommand(snapshot.NewSnapshotCmd())
	rootCmd.AddCommand(status.NewStatusCmd())
	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(health.NewHealthCmd())
	rootCmd.AddCommand(configcmd.NewConfigCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return rootCmd
}
