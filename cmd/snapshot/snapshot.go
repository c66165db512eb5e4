// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"fmt"
	"os"
	"text/tabwriter"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/stratastor/pgbranch/config"
	"github.com/stratastor/pgbranch/pkg/engine"
	"github.com/stratastor/pgbranch/pkg/errors"
)

func NewSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage snapshots",
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newPruneCmd())

	return cmd
}

func newCreateCmd() *cobra.Command {
	var label string

	cmd := &cobra.Command{
		Use:   "create <project>/<branch>",
		Short: "Take a snapshot of a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			snap, err := mgr.CreateSnapshot(cmd.Context(), args[0], label)
			if err != nil {
				if errors.IsKind(err, errors.KindNotFound) {
					fmt.Fprintln(os.Stderr, "Hint: run 'pgbranch branch list'")
				}
				return err
			}

			fmt.Printf("Created snapshot %s\n", snap.ZFSSnapshot)
			fmt.Printf("  id: %s\n", snap.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "label appended to the snapshot name")

	return cmd
}

func newListCmd() *cobra.Command {
	var branchName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			snaps, err := mgr.ListSnapshots(cmd.Context(), branchName)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tBRANCH\tSNAPSHOT\tLABEL\tSIZE\tIMPLICIT")
			for _, s := range snaps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n",
					s.ID, s.BranchName, s.ZFSSnapshot, s.Label,
					units.BytesSize(float64(s.SizeBytes)), s.Implicit)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&branchName, "branch", "", "restrict to one branch (<project>/<branch>)")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			if err := mgr.DeleteSnapshot(cmd.Context(), args[0]); err != nil {
				if errors.IsKind(err, errors.KindNotFound) {
					fmt.Fprintln(os.Stderr, "Hint: run 'pgbranch snapshot list'")
				}
				if errors.IsKind(err, errors.KindHasDependents) {
					fmt.Fprintln(os.Stderr, "Hint: delete the dependent branch first")
				}
				return err
			}

			fmt.Printf("Deleted snapshot %s\n", args[0])
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	var branchName string
	var retentionDays int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Destroy snapshots older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			if retentionDays == 0 {
				retentionDays = cfg.Retention.Days
			}

			mgr, err := engine.Bootstrap(cfg)
			if err != nil {
				return err
			}

			result, err := mgr.PruneSnapshots(cmd.Context(), branchName, retentionDays)
			if err != nil {
				return err
			}

			for _, s := range result.Pruned {
				fmt.Printf("Pruned %s\n", s.ZFSSnapshot)
			}
			for _, s := range result.Skipped {
				fmt.Printf("Skipped %s (in use by a branch)\n", s.ZFSSnapshot)
			}
			fmt.Printf("%d pruned, %d skipped\n", len(result.Pruned), len(result.Skipped))
			return nil
		},
	}

	cmd.Flags().StringVar(&branchName, "branch", "", "restrict to one branch (<project>/<branch>)")
	cmd.Flags().IntVar(&retentionDays, "retention-days", 0, "retention window in days (default from config)")

	return cmd
}
