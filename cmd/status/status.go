// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"fmt"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/stratastor/pgbranch/config"
	"github.com/stratastor/pgbranch/pkg/engine"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pool health and catalog summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			report, err := mgr.Status(cmd.Context())
			if err != nil {
				return err
			}

			if !report.Initialized {
				fmt.Println("Not initialized; run 'pgbranch project create <name>' first")
				return nil
			}

			fmt.Printf("Pool:      %s (%s)\n", report.Pool.Name, report.Pool.Health)
			fmt.Printf("Size:      %s\n", units.BytesSize(float64(report.Pool.Size)))
			fmt.Printf("Allocated: %s\n", units.BytesSize(float64(report.Pool.Allocated)))
			fmt.Printf("Free:      %s\n", units.BytesSize(float64(report.Pool.Free)))
			fmt.Printf("Projects:  %d\n", report.Projects)
			fmt.Printf("Branches:  %d\n", report.Branches)
			fmt.Printf("Snapshots: %d\n", report.Snapshots)
			return nil
		},
	}
}
