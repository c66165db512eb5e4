// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/stratastor/pgbranch/pkg/docker"
	"github.com/stratastor/pgbranch/pkg/state"
	"github.com/stratastor/pgbranch/pkg/zfs/pool"
)

// Storage is the copy-on-write block storage collaborator. Dataset
// arguments are leaf names; the driver owns the <pool>/<base> prefix.
// Mutations are retry-tolerant: repeating one after a crash either
// succeeds or fails with a typed AlreadyExists/NotFound/Busy error the
// engine can classify.
type Storage interface {
	Configure(zfsPool, datasetBase string)
	CreateDataset(ctx context.Context, leaf string, properties map[string]string) error
	DestroyDataset(ctx context.Context, leaf string) error
	CreateSnapshot(ctx context.Context, leaf, snapName string) error
	DestroySnapshot(ctx context.Context, fullRef string) error
	CloneSnapshot(ctx context.Context, fullRef, newLeaf string) error
	DatasetExists(ctx context.Context, leaf string) (bool, error)
	SnapshotExists(ctx context.Context, fullRef string) (bool, error)
	GetMountpoint(ctx context.Context, leaf string) (string, error)
	GetUsedSpace(ctx context.Context, leaf string) (int64, error)
	GetSnapshotSize(ctx context.Context, fullRef string) (int64, error)
	GetPoolStatus(ctx context.Context, zfsPool string) (pool.Status, error)
	ListPools(ctx context.Context) ([]string, error)
	DatasetPath(leaf string) string
}

// Containers is the OCI runtime collaborator.
type Containers interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
	PullImage(ctx context.Context, ref string) error
	CreateContainer(ctx context.Context, cfg docker.CreateConfig) (string, error)
	StartContainer(ctx context.Context, id string) error
	StopContainer(ctx context.Context, id string, timeout time.Duration) error
	RemoveContainer(ctx context.Context, id string) error
	WaitForHealthy(ctx context.Context, id string, timeout time.Duration) error
	GetContainerByName(ctx context.Context, name string) (string, error)
	GetContainerStatus(ctx context.Context, id string) (docker.ContainerStatus, error)
	GetContainerPort(ctx context.Context, id string) (int, error)
	ExecSQL(ctx context.Context, id, sql, user string) error
}

// CreateProjectParams are the inputs of the project-create workflow.
// Image and Version are mutually exclusive.
type CreateProjectParams struct {
	Name    string
	Image   string
	Version string
	Pool    string
}

// CreateProjectResult reports the created project. CanonicalizedFrom is
// set when the requested name was rewritten into canonical form.
type CreateProjectResult struct {
	Project           state.Project
	CanonicalizedFrom string
}

// CreateBranchResult reports the created branch and its backing snapshot.
type CreateBranchResult struct {
	Branch            state.Branch
	Snapshot          state.Snapshot
	CanonicalizedFrom string
}

// DeleteBranchOptions tunes branch deletion. KeepSnapshot disables the
// garbage collection of the implicit backing snapshot.
type DeleteBranchOptions struct {
	KeepSnapshot bool
}

// BranchInfo pairs the catalog record of a branch with its observed
// container state.
type BranchInfo struct {
	Branch    state.Branch
	Live      bool   // container exists in the runtime
	LiveState string // runtime state when Live
}

// StatusReport summarizes pool health and catalog contents.
type StatusReport struct {
	Initialized bool
	Pool        pool.Status
	Projects    int
	Branches    int
	Snapshots   int
}

// PruneResult reports the outcome of a snapshot retention pass.
type PruneResult struct {
	Pruned  []state.Snapshot
	Skipped []state.Snapshot // still referenced by a branch
}

// ConnectionString renders a client connection string for a branch.
func ConnectionString(creds state.Credentials, port int) string {
	return "postgresql://" + creds.Username + ":" + creds.Password +
		"@localhost:" + strconv.Itoa(port) + "/" + creds.Database
}
