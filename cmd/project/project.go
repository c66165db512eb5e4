// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package project

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

func NewProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects (primary databases)",
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDeleteCmd())

	return cmd
}

func newCreateCmd() *cobra.Command {
	var image, version, pool string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project with its primary branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			result, err := mgr.CreateProject(cmd.Context(), engine.CreateProjectParams{
				Name:    args[0],
				Image:   image,
				Version: version,
				Pool:    pool,
			})
			if err != nil {
				return err
			}

			if result.CanonicalizedFrom != "" {
				fmt.Printf("Note: name %q canonicalized to %q\n",
					result.CanonicalizedFrom, result.Project.Name)
			}

			primary := result.Project.PrimaryBranch()
			fmt.Printf("Created project %s\n", result.Project.Name)
			fmt.Printf("  branch:     %s\n", primary.Name)
			fmt.Printf("  port:       %d\n", primary.Port)
			fmt.Printf("  connection: %s\n",
				engine.ConnectionString(result.Project.Credentials, primary.Port))
			return nil
		},
	}

	cmd.Flags().StringVar(&image, "image", "", "container image reference")
	cmd.Flags().StringVar(&version, "version", "", "PostgreSQL major version (resolves to postgres:<version>-alpine)")
	cmd.Flags().StringVar(&pool, "pool", "", "ZFS pool (required when multiple pools exist)")

	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Show a project and its branches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			project, err := mgr.GetProject(cmd.Context(), args[0])
			if err != nil {
				if errors.IsKind(err, errors.KindNotFound) {
					fmt.Fprintln(os.Stderr, "Hint: run 'pgbranch project list'")
				}
				return err
			}

			fmt.Printf("Project:  %s\n", project.Name)
			fmt.Printf("Image:    %s\n", project.Image)
			fmt.Printf("Created:  %s\n", project.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Println("Branches:")

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "  NAME\tPRIMARY\tSTATUS\tPORT\tSIZE\tCONNECTION")
			for _, b := range project.Branches {
				fmt.Fprintf(w, "  %s\t%v\t%s\t%d\t%s\t%s\n",
					b.Name, b.IsPrimary, b.Status, b.Port,
					units.BytesSize(float64(b.SizeBytes)),
					engine.ConnectionString(project.Credentials, b.Port))
			}
			return w.Flush()
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			projects, err := mgr.ListProjects(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tIMAGE\tBRANCHES\tCREATED")
			for _, p := range projects {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					p.Name, p.Image, len(p.Branches),
					p.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a project and all of its branches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := engine.Bootstrap(config.GetConfig())
			if err != nil {
				return err
			}

			if err := mgr.DeleteProject(cmd.Context(), args[0]); err != nil {
				if errors.IsKind(err, errors.KindNotFound) {
					fmt.Fprintln(os.Stderr, "Hint: run 'pgbranch project list'")
				}
				return err
			}

			fmt.Printf("Deleted project %s\n", args[0])
			return nil
		},
	}
}
