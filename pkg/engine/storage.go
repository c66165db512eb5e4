// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"strings"

	"github.com/stratastor/pgbranch/pkg/errors"
	"github.com/stratastor/pgbranch/pkg/naming"
	"github.com/stratastor/pgbranch/pkg/zfs/command"
	"github.com/stratastor/pgbranch/pkg/zfs/dataset"
	"github.com/stratastor/pgbranch/pkg/zfs/pool"
)

// ZFSStorage implements Storage over the zfs/zpool command managers.
// The pool and dataset base are set once the catalog is initialized.
type ZFSStorage struct {
	datasets *dataset.Manager
	pools    *pool.Manager

	zfsPool     string
	datasetBase string
}

var _ Storage = (*ZFSStorage)(nil)

// NewZFSStorage builds the driver over a command executor.
func NewZFSStorage(executor command.Executor) *ZFSStorage {
	return &ZFSStorage{
		datasets: dataset.NewManager(executor),
		pools:    pool.NewManager(executor),
	}
}

// Configure fixes the dataset layout. Called once the catalog knows its
// pool; the values never change afterwards.
func (z *ZFSStorage) Configure(zfsPool, datasetBase string) {
	z.zfsPool = zfsPool
	z.datasetBase = datasetBase
}

// DatasetPath returns the full path of a dataset leaf.
func (z *ZFSStorage) DatasetPath(leaf string) string {
	return naming.DatasetPathFromLeaf(z.zfsPool, z.datasetBase, leaf)
}

func (z *ZFSStorage) CreateDataset(ctx context.Context, leaf string, properties map[string]string) error {
	err := z.datasets.CreateFilesystem(ctx, dataset.FilesystemConfig{
		NameConfig: dataset.NameConfig{Name: z.DatasetPath(leaf)},
		Properties: properties,
		Parents:    true,
	})
	return classifyStorageErr(err)
}

func (z *ZFSStorage) DestroyDataset(ctx context.Context, leaf string) error {
	err := z.datasets.Destroy(ctx, dataset.DestroyConfig{
		NameConfig:               dataset.NameConfig{Name: z.DatasetPath(leaf)},
		RecursiveDestroyChildren: true,
	})
	return classifyStorageErr(err)
}

func (z *ZFSStorage) CreateSnapshot(ctx context.Context, leaf, snapName string) error {
	err := z.datasets.CreateSnapshot(ctx, dataset.SnapshotConfig{
		NameConfig: dataset.NameConfig{Name: z.DatasetPath(leaf)},
		SnapName:   snapName,
	})
	return classifyStorageErr(err)
}

func (z *ZFSStorage) DestroySnapshot(ctx context.Context, fullRef string) error {
	return classifyStorageErr(z.datasets.DestroySnapshot(ctx, fullRef))
}

func (z *ZFSStorage) CloneSnapshot(ctx context.Context, fullRef, newLeaf string) error {
	err := z.datasets.Clone(ctx, dataset.CloneConfig{
		NameConfig: dataset.NameConfig{Name: fullRef},
		CloneName:  z.DatasetPath(newLeaf),
	})
	return classifyStorageErr(err)
}

func (z *ZFSStorage) DatasetExists(ctx context.Context, leaf string) (bool, error) {
	return z.datasets.Exists(ctx, z.DatasetPath(leaf))
}

func (z *ZFSStorage) SnapshotExists(ctx context.Context, fullRef string) (bool, error) {
	return z.datasets.Exists(ctx, fullRef)
}

func (z *ZFSStorage) GetMountpoint(ctx context.Context, leaf string) (string, error) {
	return z.datasets.GetMountpoint(ctx, z.DatasetPath(leaf))
}

func (z *ZFSStorage) GetUsedSpace(ctx context.Context, leaf string) (int64, error) {
	return z.datasets.GetPropertyBytes(ctx, z.DatasetPath(leaf), "used")
}

func (z *ZFSStorage) GetSnapshotSize(ctx context.Context, fullRef string) (int64, error) {
	return z.datasets.GetPropertyBytes(ctx, fullRef, "used")
}

func (z *ZFSStorage) GetPoolStatus(ctx context.Context, zfsPool string) (pool.Status, error) {
	return z.pools.Status(ctx, zfsPool)
}

func (z *ZFSStorage) ListPools(ctx context.Context) ([]string, error) {
	return z.pools.List(ctx)
}

// classifyStorageErr maps zfs stderr onto the typed error taxonomy so
// the engine can branch on exists/busy/not-found without string
// matching of its own.
func classifyStorageErr(err error) error {
	if err == nil {
		return nil
	}

	stderr := errors.Stderr(err)
	switch {
	case strings.Contains(stderr, "already exists"):
		return errors.Wrap(err, errors.ZFSDatasetExists)
	case strings.Contains(stderr, "has dependent clones"),
		strings.Contains(stderr, "dataset is busy"),
		strings.Contains(stderr, "snapshot has dependent clones"),
		strings.Contains(stderr, "filesystem has dependent clones"):
		return errors.Wrap(err, errors.ZFSDatasetBusy)
	case strings.Contains(stderr, "does not exist"):
		return errors.Wrap(err, errors.ZFSDatasetNotFound)
	default:
		return err
	}
}
