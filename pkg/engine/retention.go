// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/stratastor/pgbranch/pkg/errors"
)

// PruneSnapshots destroys the snapshots of a branch older than the
// retention window. Snapshots still backing a branch clone are skipped
// and reported, never force-destroyed. branchName may be empty to prune
// across all branches.
func (m *Manager) PruneSnapshots(ctx context.Context, branchName string, retentionDays int) (*PruneResult, error) {
	if retentionDays <= 0 {
		return nil, errors.New(errors.EngineInvalidInput,
			"retention days must be positive")
	}

	if err := m.store.Lock(ctx); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	catalog, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if err := m.configureStorage(catalog); err != nil {
		return nil, err
	}

	candidates, err := m.store.DeleteOldSnapshots(branchName, retentionDays)
	if err != nil {
		return nil, err
	}

	branches, err := m.store.AllBranches()
	if err != nil {
		return nil, err
	}
	referenced := make(map[string]string, len(branches))
	for i := range branches {
		if branches[i].SnapshotName != "" {
			referenced[branches[i].SnapshotName] = branches[i].Name
		}
	}

	result := &PruneResult{}
	for _, snap := range candidates {
		if _, ok := referenced[snap.ZFSSnapshot]; ok {
			result.Skipped = append(result.Skipped, snap)
			continue
		}

		if err := m.storage.DestroySnapshot(ctx, snap.ZFSSnapshot); err != nil {
			if errors.IsKind(err, errors.KindStorageBusy) {
				result.Skipped = append(result.Skipped, snap)
				continue
			}
			if !errors.IsKind(err, errors.KindNotFound) {
				return result, err
			}
		}
		if err := m.store.DeleteSnapshot(snap.ID); err != nil {
			return result, err
		}
		result.Pruned = append(result.Pruned, snap)
	}

	return result, nil
}

// PruneAllSnapshots is the serve-mode entry point: one retention pass
// over every branch using the configured window.
func (m *Manager) PruneAllSnapshots(ctx context.Context) (*PruneResult, error) {
	return m.PruneSnapshots(ctx, "", m.cfg.Retention.Days)
}
