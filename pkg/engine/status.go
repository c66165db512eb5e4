// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"

	"github.com/stratastor/pgbranch/pkg/errors"
	"github.com/stratastor/pgbranch/pkg/naming"
	"github.com/stratastor/pgbranch/pkg/state"
)

// Status reports pool health and catalog counts. Read-only: shared lock.
func (m *Manager) Status(ctx context.Context) (*StatusReport, error) {
	if err := m.store.RLock(ctx); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	catalog, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		Initialized: catalog.Initialized,
		Projects:    len(catalog.Projects),
		Snapshots:   len(catalog.Snapshots),
	}
	for i := range catalog.Projects {
		report.Branches += len(catalog.Projects[i].Branches)
	}

	if catalog.Initialized {
		m.storage.Configure(catalog.ZFSPool, catalog.ZFSDatasetBase)
		poolStatus, err := m.storage.GetPoolStatus(ctx, catalog.ZFSPool)
		if err != nil {
			return nil, err
		}
		report.Pool = poolStatus
	}

	return report, nil
}

// ListProjects returns all projects. Read-only.
func (m *Manager) ListProjects(ctx context.Context) ([]state.Project, error) {
	if err := m.store.RLock(ctx); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	if _, err := m.store.Load(); err != nil {
		return nil, err
	}
	return m.store.ListProjects()
}

// GetProject returns one project by name. Read-only.
func (m *Manager) GetProject(ctx context.Context, name string) (*state.Project, error) {
	if err := m.store.RLock(ctx); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	if _, err := m.store.Load(); err != nil {
		return nil, err
	}

	project, err := m.store.GetProjectByName(naming.Canonicalize(name))
	if err != nil {
		return nil, errors.New(errors.EngineNotFound, "project "+name+" not found")
	}
	return project, nil
}

// ListBranches returns branches (optionally of one project) with their
// live container state. Catalog status is not rewritten here; a branch
// whose container exited still shows Live=true with LiveState "exited",
// while its recorded Status stays as the last mutating workflow left it.
func (m *Manager) ListBranches(ctx context.Context, projectName string) ([]BranchInfo, error) {
	if err := m.store.RLock(ctx); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	if _, err := m.store.Load(); err != nil {
		return nil, err
	}

	var branches []state.Branch
	if projectName == "" {
		all, err := m.store.AllBranches()
		if err != nil {
			return nil, err
		}
		branches = all
	} else {
		project, err := m.store.GetProjectByName(naming.Canonicalize(projectName))
		if err != nil {
			return nil, errors.New(errors.EngineNotFound, "project "+projectName+" not found")
		}
		branches = project.Branches
	}

	infos := make([]BranchInfo, 0, len(branches))
	for _, b := range branches {
		info := BranchInfo{Branch: b}
		if containerID, err := m.containers.GetContainerByName(ctx, b.ContainerName); err == nil && containerID != "" {
			if status, err := m.containers.GetContainerStatus(ctx, containerID); err == nil {
				info.Live = true
				info.LiveState = status.State
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetBranch resolves one branch with live state. Read-only.
func (m *Manager) GetBranch(ctx context.Context, namespace string) (*BranchInfo, *state.Project, error) {
	if err := m.store.RLock(ctx); err != nil {
		return nil, nil, err
	}
	defer m.store.Unlock()

	if _, err := m.store.Load(); err != nil {
		return nil, nil, err
	}

	project, branch, err := m.resolveBranch(namespace)
	if err != nil {
		return nil, nil, err
	}

	info := &BranchInfo{Branch: *branch}
	if containerID, err := m.containers.GetContainerByName(ctx, branch.ContainerName); err == nil && containerID != "" {
		if status, err := m.containers.GetContainerStatus(ctx, containerID); err == nil {
			info.Live = true
			info.LiveState = status.State
		}
	}
	return info, project, nil
}

// ListSnapshots returns snapshot records, optionally for one branch.
func (m *Manager) ListSnapshots(ctx context.Context, branchName string) ([]state.Snapshot, error) {
	if err := m.store.RLock(ctx); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	if _, err := m.store.Load(); err != nil {
		return nil, err
	}
	return m.store.ListSnapshots(branchName)
}

// StopBranch stops a branch's container. The container is kept so the
// recorded port binding survives for resurrection.
func (m *Manager) StopBranch(ctx context.Context, namespace string) (*state.Branch, error) {
	if err := m.store.Lock(ctx); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	if _, err := m.store.Load(); err != nil {
		return nil, err
	}

	project, branch, err := m.resolveBranch(namespace)
	if err != nil {
		return nil, err
	}

	containerID, err := m.containers.GetContainerByName(ctx, branch.ContainerName)
	if err != nil {
		return nil, err
	}
	if containerID != "" {
		if err := m.containers.StopContainer(ctx, containerID, m.cfg.StopTimeout()); err != nil {
			return nil, err
		}
	}

	branch.Status = state.StatusStopped
	if err := m.store.UpdateBranch(project.ID, *branch); err != nil {
		return nil, err
	}
	return branch, nil
}

// StartBranch resurrects a stopped branch on its recorded port. A port
// already bound elsewhere surfaces as a driver failure.
func (m *Manager) StartBranch(ctx context.Context, namespace string) (*state.Branch, error) {
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

	project, branch, err := m.resolveBranch(namespace)
	if err != nil {
		return nil, err
	}

	containerID, err := m.containers.GetContainerByName(ctx, branch.ContainerName)
	if err != nil {
		return nil, err
	}

	if containerID != "" {
		status, err := m.containers.GetContainerStatus(ctx, containerID)
		if err != nil {
			return nil, err
		}
		if !status.Running() {
			if err := m.containers.StartContainer(ctx, containerID); err != nil {
				return nil, err
			}
		}
		if err := m.containers.WaitForHealthy(ctx, containerID, m.cfg.HealthTimeout()); err != nil {
			return nil, errors.Wrap(err, errors.EngineUnhealthy)
		}
	} else {
		// Container is gone; recreate it on the recorded port.
		started, err := m.startBranchContainer(ctx, startContainerParams{
			image:         project.Image,
			pullImage:     false,
			leaf:          branch.ZFSDatasetName,
			containerName: branch.ContainerName,
			port:          branch.Port,
			creds:         project.Credentials,
		})
		if err != nil {
			return nil, err
		}
		branch.Port = started.port
		branch.SizeBytes = started.sizeBytes
	}

	branch.Status = state.StatusRunning
	if err := m.store.UpdateBranch(project.ID, *branch); err != nil {
		return nil, err
	}
	return branch, nil
}
