// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package branch

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

func NewBranchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: "Manage copy-on-write branches",
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newResetCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newStopCmd())

	return cmd
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <project>/<parent> <name>",
		Short: "Create a branch from a snapshot of its parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			result, err := mgr.CreateBranch(cmd.Context(), args[0], args[1])
			if err != nil {
				if errors.IsKind(err, errors.KindNotFound) {
					fmt.Fprintln(os.Stderr, "Hint: run 'pgbranch branch list'")
				}
				return err
			}

			if result.CanonicalizedFrom != "" {
				fmt.Printf("Note: name %q canonicalized to %q\n",
					result.CanonicalizedFrom, result.Branch.Leaf())
			}

			fmt.Printf("Created branch %s\n", result.Branch.Name)
			fmt.Printf("  snapshot: %s\n", result.Snapshot.ZFSSnapshot)
			fmt.Printf("  port:     %d\n", result.Branch.Port)
			return nil
		},
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <project>/<branch>",
		Short: "Show one branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			info, project, err := mgr.GetBranch(cmd.Context(), args[0])
			if err != nil {
				if errors.IsKind(err, errors.KindNotFound) {
					fmt.Fprintln(os.Stderr, "Hint: run 'pgbranch branch list'")
				}
				return err
			}

			b := info.Branch
			fmt.Printf("Branch:     %s\n", b.Name)
			fmt.Printf("Primary:    %v\n", b.IsPrimary)
			if b.SnapshotName != "" {
				fmt.Printf("Origin:     %s\n", b.SnapshotName)
			}
			fmt.Printf("Dataset:    %s\n", b.ZFSDataset)
			fmt.Printf("Container:  %s\n", b.ContainerName)
			fmt.Printf("Status:     %s", b.Status)
			if info.Live {
				fmt.Printf(" (runtime: %s)", info.LiveState)
			}
			fmt.Println()
			fmt.Printf("Port:       %d\n", b.Port)
			fmt.Printf("Size:       %s\n", units.BytesSize(float64(b.SizeBytes)))
			fmt.Printf("Connection: %s\n", engine.ConnectionString(project.Credentials, b.Port))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var projectName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			infos, err := mgr.ListBranches(cmd.Context(), projectName)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRIMARY\tSTATUS\tPORT\tSIZE")
			for _, info := range infos {
				status := info.Branch.Status
				if !info.Live {
					status = "stopped"
				} else if info.LiveState != "running" {
					status = info.LiveState
				}
				fmt.Fprintf(w, "%s\t%v\t%s\t%d\t%s\n",
					info.Branch.Name, info.Branch.IsPrimary, status,
					info.Branch.Port, units.BytesSize(float64(info.Branch.SizeBytes)))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&projectName, "project", "", "restrict to one project")

	return cmd
}

func newDeleteCmd() *cobra.Command {
	var keepSnapshot bool

	cmd := &cobra.Command{
		Use:   "delete <project>/<branch>",
		Short: "Delete a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			err = mgr.DeleteBranch(cmd.Context(), args[0],
				engine.DeleteBranchOptions{KeepSnapshot: keepSnapshot})
			if err != nil {
				if errors.IsKind(err, errors.KindNotFound) {
					fmt.Fprintln(os.Stderr, "Hint: run 'pgbranch branch list'")
				}
				return err
			}

			fmt.Printf("Deleted branch %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepSnapshot, "keep-snapshot", false,
		"keep the implicit backing snapshot instead of garbage-collecting it")

	return cmd
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <project>/<branch>",
		Short: "Reset a branch to its origin snapshot, discarding divergence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			branch, err := mgr.ResetBranch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Reset branch %s to %s (port %d)\n",
				branch.Name, branch.SnapshotName, branch.Port)
			return nil
		},
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <project>/<branch>",
		Short: "Start a stopped branch on its recorded port",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			branch, err := mgr.StartBranch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Started branch %s on port %d\n", branch.Name, branch.Port)
			return nil
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <project>/<branch>",
		Short: "Stop a running branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			branch, err := mgr.StopBranch(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Stopped branch %s\n", branch.Name)
			return nil
		},
	}
}
