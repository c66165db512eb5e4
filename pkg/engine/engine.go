// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package engine composes the storage driver, the container runtime and
// the state store into the branching workflows: project-create,
// branch-create, branch-reset, branch-delete, snapshot-create and
// snapshot-delete. Every workflow follows the same shape: acquire the
// catalog lock, observe reality, apply storage mutations, then container
// mutations, and commit the state mutation last. On failure the steps
// already applied are compensated in reverse and the original error is
// surfaced; compensation failures are logged, never returned.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stratastor/logger"

	"github.com/stratastor/pgbranch/config"
	"github.com/stratastor/pgbranch/internal/common"
	"github.com/stratastor/pgbranch/pkg/docker"
	"github.com/stratastor/pgbranch/pkg/errors"
	"github.com/stratastor/pgbranch/pkg/naming"
	"github.com/stratastor/pgbranch/pkg/state"
)

// Manager runs the branching workflows.
type Manager struct {
	store      *state.Store
	storage    Storage
	containers Containers
	cfg        *config.Config
	logger     logger.Logger
}

// NewManager wires the engine. The storage driver is configured lazily
// once the catalog is initialized.
func NewManager(store *state.Store, storage Storage, containers Containers, cfg *config.Config) (*Manager, error) {
	l, err := logger.NewTag(config.NewLoggerConfig(cfg), "engine")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &Manager{
		store:      store,
		storage:    storage,
		containers: containers,
		cfg:        cfg,
		logger:     l,
	}, nil
}

// configureStorage points the storage driver at the catalog's layout.
func (m *Manager) configureStorage(catalog *state.Catalog) error {
	if !catalog.Initialized {
		return errors.New(errors.StateNotInitialized,
			"no project exists yet; create one first")
	}
	m.storage.Configure(catalog.ZFSPool, catalog.ZFSDatasetBase)
	return nil
}

func (m *Manager) datasetProperties() map[string]string {
	return map[string]string{
		"compression": m.cfg.ZFS.Compression,
		"recordsize":  m.cfg.ZFS.Recordsize,
	}
}

func randomPassword() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.EngineDriverFailure)
	}
	return hex.EncodeToString(buf), nil
}

// databaseName derives a PostgreSQL database name from a canonical
// project name. Hyphens become underscores so clients need no quoting.
func databaseName(project string) string {
	return strings.ReplaceAll(project, "-", "_")
}

// CreateProject runs the project-create workflow: initialize the catalog
// on first use, create the primary dataset, start the primary container
// and commit the project record.
func (m *Manager) CreateProject(ctx context.Context, params CreateProjectParams) (*CreateProjectResult, error) {
	if params.Image != "" && params.Version != "" {
		return nil, errors.New(errors.EngineInvalidInput,
			"image and version are mutually exclusive")
	}

	name := naming.Canonicalize(params.Name)
	if name == "" {
		return nil, errors.New(errors.EngineInvalidInput,
			"project name has no usable characters: "+params.Name)
	}
	result := &CreateProjectResult{}
	if name != params.Name {
		result.CanonicalizedFrom = params.Name
	}

	image := params.Image
	if image == "" && params.Version != "" {
		image = "postgres:" + params.Version + "-alpine"
	}
	if image == "" {
		image = m.cfg.Container.DefaultImage
	}

	if err := m.store.Lock(ctx); err != nil {
		return nil, err
	}
	defer m.store.Unlock()

	catalog, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	if !catalog.Initialized {
		if err := m.initializeCatalog(ctx, params.Pool); err != nil {
			return nil, err
		}
		catalog, err = m.store.Catalog()
		if err != nil {
			return nil, err
		}
	}
	if err := m.configureStorage(catalog); err != nil {
		return nil, err
	}

	if existing, _ := m.store.GetProjectByName(name); existing != nil {
		return nil, errors.New(errors.EngineNameConflict,
			"project "+name+" already exists")
	}

	leaf := naming.DatasetName(name, "main")
	containerName := naming.ContainerName(name, "main")

	password, err := randomPassword()
	if err != nil {
		return nil, err
	}
	creds := state.Credentials{
		Username: "postgres",
		Password: password,
		Database: databaseName(name),
	}

	// Storage first. A dataset left behind by an interrupted run is
	// adopted rather than treated as a conflict: the catalog has no
	// project of this name, so nothing else owns it.
	datasetCreated := false
	exists, err := m.storage.DatasetExists(ctx, leaf)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := m.storage.CreateDataset(ctx, leaf, m.datasetProperties()); err != nil {
			return nil, err
		}
		datasetCreated = true
	}

	started, err := m.startBranchContainer(ctx, startContainerParams{
		image:         image,
		pullImage:     true,
		leaf:          leaf,
		containerName: containerName,
		port:          0,
		creds:         creds,
	})
	if err != nil {
		m.compensateDataset(ctx, leaf, datasetCreated)
		return nil, err
	}

	now := time.Now().UTC()
	project := state.Project{
		ID:          uuid.New().String(),
		Name:        name,
		Image:       image,
		CreatedAt:   now,
		Credentials: creds,
		Branches: []state.Branch{{
			ID:             uuid.New().String(),
			Name:           naming.Namespace(name, "main"),
			ProjectName:    name,
			IsPrimary:      true,
			ZFSDataset:     m.storage.DatasetPath(leaf),
			ZFSDatasetName: leaf,
			ContainerName:  containerName,
			Port:           started.port,
			CreatedAt:      now,
			SizeBytes:      started.sizeBytes,
			Status:         state.StatusRunning,
		}},
	}

	// Single atomic success point.
	if err := m.store.AddProject(project); err != nil {
		m.compensateContainer(ctx, started.containerID)
		m.compensateDataset(ctx, leaf, datasetCreated)
		return nil, err
	}

	result.Project = project
	return result, nil
}

// initializeCatalog detects or validates the pool and commits the
// one-time catalog initialization.
func (m *Manager) initializeCatalog(ctx context.Context, poolFlag string) error {
	zfsPool := poolFlag
	if zfsPool == "" {
		zfsPool = m.cfg.ZFS.Pool
	}
	if zfsPool == "" {
		pools, err := m.storage.ListPools(ctx)
		if err != nil {
			return err
		}
		switch len(pools) {
		case 0:
			return errors.New(errors.EngineInvalidInput,
				"no ZFS pools found; specify one with --pool")
		case 1:
			zfsPool = pools[0]
		default:
			return errors.New(errors.EngineInvalidInput,
				"multiple ZFS pools found; specify one with --pool")
		}
	}

	if _, err := m.storage.GetPoolStatus(ctx, zfsPool); err != nil {
		return err
	}

	walRoot, err := common.WALArchiveRoot()
	if err != nil {
		return errors.Wrap(err, errors.EngineDriverFailure)
	}
	if err := common.EnsureDir(walRoot, 0755); err != nil {
		return errors.Wrap(err, errors.EngineDriverFailure)
	}

	return m.store.AutoInitialize(zfsPool, m.cfg.ZFS.DatasetBase)
}

type startContainerParams struct {
	image         string
	pullImage     bool
	leaf          string
	containerName string
	port          int // 0 delegates allocation to the runtime
	creds         state.Credentials
}

type startedContainer struct {
	containerID string
	port        int
	sizeBytes   int64
}

// startBranchContainer brings up the container for a dataset: image
// pull, WAL archive directory, create, start, health wait and port
// introspection. A stale container of the same name (from an interrupted
// run; the catalog does not know it) is removed first.
func (m *Manager) startBranchContainer(ctx context.Context, p startContainerParams) (*startedContainer, error) {
	if p.pullImage {
		present, err := m.containers.ImageExists(ctx, p.image)
		if err != nil {
			return nil, err
		}
		if !present {
			if err := m.containers.PullImage(ctx, p.image); err != nil {
				return nil, err
			}
		}
	}

	walPath, err := common.WALArchivePath(p.leaf)
	if err != nil {
		return nil, errors.Wrap(err, errors.EngineDriverFailure)
	}
	if err := common.EnsureDir(walPath, 0755); err != nil {
		return nil, errors.Wrap(err, errors.EngineDriverFailure)
	}

	mountpoint, err := m.storage.GetMountpoint(ctx, p.leaf)
	if err != nil {
		return nil, err
	}

	if staleID, err := m.containers.GetContainerByName(ctx, p.containerName); err != nil {
		return nil, err
	} else if staleID != "" {
		m.logger.Warn("Removing stale container from interrupted run", "name", p.containerName)
		if err := m.containers.StopContainer(ctx, staleID, m.cfg.StopTimeout()); err != nil {
			m.logger.Warn("Failed to stop stale container", "name", p.containerName, "err", err)
		}
		if err := m.containers.RemoveContainer(ctx, staleID); err != nil {
			return nil, err
		}
	}

	containerID, err := m.containers.CreateContainer(ctx, docker.CreateConfig{
		Name:           p.containerName,
		Image:          p.image,
		Port:           p.port,
		DataPath:       mountpoint,
		WALArchivePath: walPath,
		Username:       p.creds.Username,
		Password:       p.creds.Password,
		Database:       p.creds.Database,
	})
	if err != nil {
		return nil, err
	}

	if err := m.containers.StartContainer(ctx, containerID); err != nil {
		m.compensateContainer(ctx, containerID)
		return nil, err
	}

	if err := m.containers.WaitForHealthy(ctx, containerID, m.cfg.HealthTimeout()); err != nil {
		m.compensateContainer(ctx, containerID)
		return nil, errors.Wrap(err, errors.EngineUnhealthy)
	}

	port, err := m.containers.GetContainerPort(ctx, containerID)
	if err != nil {
		m.compensateContainer(ctx, containerID)
		return nil, err
	}

	sizeBytes, err := m.storage.GetUsedSpace(ctx, p.leaf)
	if err != nil {
		m.logger.Warn("Failed to read dataset size", "dataset", p.leaf, "err", err)
		sizeBytes = 0
	}

	return &startedContainer{containerID: containerID, port: port, sizeBytes: sizeBytes}, nil
}

// compensateContainer stops and removes a container created by a failed
// workflow. Errors are logged; they must not mask the primary cause.
func (m *Manager) compensateContainer(ctx context.Context, containerID string) {
	if containerID == "" {
		return
	}
	if err := m.containers.StopContainer(ctx, containerID, m.cfg.StopTimeout()); err != nil {
		m.logger.Warn("Compensation: failed to stop container", "id", containerID, "err", err)
	}
	if err := m.containers.RemoveContainer(ctx, containerID); err != nil {
		m.logger.Warn("Compensation: failed to remove container", "id", containerID, "err", err)
	}
}

// compensateDataset destroys a dataset created by a failed workflow.
func (m *Manager) compensateDataset(ctx context.Context, leaf string, created bool) {
	if !created {
		return
	}
	if err := m.storage.DestroyDataset(ctx, leaf); err != nil {
		m.logger.Warn("Compensation: failed to destroy dataset", "dataset", leaf, "err", err)
	}
}

// compensateSnapshot destroys a snapshot created by a failed workflow.
func (m *Manager) compensateSnapshot(ctx context.Context, fullRef string, created bool) {
	if !created {
		return
	}
	if err := m.storage.DestroySnapshot(ctx, fullRef); err != nil {
		m.logger.Warn("Compensation: failed to destroy snapshot", "snapshot", fullRef, "err", err)
	}
}

// resolveBranch canonicalizes and resolves a qualified branch name.
func (m *Manager) resolveBranch(namespace string) (*state.Project, *state.Branch, error) {
	projectName, leaf, err := naming.SplitNamespace(namespace)
	if err != nil {
		return nil, nil, err
	}
	canonical := naming.Namespace(naming.Canonicalize(projectName), naming.Canonicalize(leaf))

	project, branch, err := m.store.GetBranchByNamespace(canonical)
	if err != nil {
		return nil, nil, errors.New(errors.EngineNotFound,
			"branch "+canonical+" not found")
	}
	return project, branch, nil
}

// checkpointIfRunning flushes PostgreSQL's dirty buffers when the
// branch container is up, so the snapshot captures a consistent data
// directory. A CHECKPOINT failure is fatal: no snapshot is taken.
func (m *Manager) checkpointIfRunning(ctx context.Context, branch *state.Branch, creds state.Credentials) error {
	containerID, err := m.containers.GetContainerByName(ctx, branch.ContainerName)
	if err != nil {
		return err
	}
	if containerID == "" {
		return nil
	}

	status, err := m.containers.GetContainerStatus(ctx, containerID)
	if err != nil {
		return err
	}
	if !status.Running() {
		return nil
	}

	if err := m.containers.ExecSQL(ctx, containerID, "CHECKPOINT;", creds.Username); err != nil {
		return errors.Wrap(err, errors.EngineCheckpointFailed)
	}
	return nil
}

// CreateBranch runs the branch-create workflow: snapshot the parent,
// clone it and bring up a container on a fresh port.
func (m *Manager) CreateBranch(ctx context.Context, parentNamespace, childLeaf string) (*CreateBranchResult, error) {
	leaf := naming.Canonicalize(childLeaf)
	if leaf == "" {
		return nil, errors.New(errors.EngineInvalidInput,
			"branch name has no usable characters: "+childLeaf)
	}
	result := &CreateBranchResult{}
	if leaf != childLeaf {
		result.CanonicalizedFrom = childLeaf
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

	project, parent, err := m.resolveBranch(parentNamespace)
	if err != nil {
		return nil, err
	}

	childNamespace := naming.Namespace(project.Name, leaf)
	if _, existing, _ := m.store.GetBranchByNamespace(childNamespace); existing != nil {
		return nil, errors.New(errors.EngineNameConflict,
			"branch "+childNamespace+" already exists")
	}

	if err := m.checkpointIfRunning(ctx, parent, project.Credentials); err != nil {
		return nil, err
	}

	snapName := naming.SnapshotName(time.Now(), leaf)
	snapshotRef := naming.SnapshotRef(parent.ZFSDataset, snapName)

	snapshotCreated := false
	if exists, err := m.storage.SnapshotExists(ctx, snapshotRef); err != nil {
		return nil, err
	} else if !exists {
		if err := m.storage.CreateSnapshot(ctx, parent.ZFSDatasetName, snapName); err != nil {
			return nil, err
		}
		snapshotCreated = true
	}

	cloneLeaf := naming.DatasetName(project.Name, leaf)
	cloneCreated := false
	if exists, err := m.storage.DatasetExists(ctx, cloneLeaf); err != nil {
		m.compensateSnapshot(ctx, snapshotRef, snapshotCreated)
		return nil, err
	} else if !exists {
		if err := m.storage.CloneSnapshot(ctx, snapshotRef, cloneLeaf); err != nil {
			m.compensateSnapshot(ctx, snapshotRef, snapshotCreated)
			return nil, err
		}
		cloneCreated = true
	}

	containerName := naming.ContainerName(project.Name, leaf)
	started, err := m.startBranchContainer(ctx, startContainerParams{
		image:         project.Image,
		pullImage:     false,
		leaf:          cloneLeaf,
		containerName: containerName,
		port:          0,
		creds:         project.Credentials,
	})
	if err != nil {
		m.compensateDataset(ctx, cloneLeaf, cloneCreated)
		m.compensateSnapshot(ctx, snapshotRef, snapshotCreated)
		return nil, err
	}

	snapshotSize, err := m.storage.GetSnapshotSize(ctx, snapshotRef)
	if err != nil {
		m.logger.Warn("Failed to read snapshot size", "snapshot", snapshotRef, "err", err)
		snapshotSize = 0
	}

	now := time.Now().UTC()
	branch := state.Branch{
		ID:             uuid.New().String(),
		Name:           childNamespace,
		ProjectName:    project.Name,
		ParentBranchID: parent.ID,
		IsPrimary:      false,
		SnapshotName:   snapshotRef,
		ZFSDataset:     m.storage.DatasetPath(cloneLeaf),
		ZFSDatasetName: cloneLeaf,
		ContainerName:  containerName,
		Port:           started.port,
		CreatedAt:      now,
		SizeBytes:      started.sizeBytes,
		Status:         state.StatusRunning,
	}
	snapshot := state.Snapshot{
		ID:          uuid.New().String(),
		BranchID:    parent.ID,
		BranchName:  parent.Name,
		ProjectName: project.Name,
		ZFSSnapshot: snapshotRef,
		CreatedAt:   now,
		SizeBytes:   snapshotSize,
		Implicit:    true,
	}

	if err := m.store.AddBranchAndSnapshot(project.ID, branch, snapshot); err != nil {
		m.compensateContainer(ctx, started.containerID)
		m.compensateDataset(ctx, cloneLeaf, cloneCreated)
		m.compensateSnapshot(ctx, snapshotRef, snapshotCreated)
		return nil, err
	}

	result.Branch = branch
	result.Snapshot = snapshot
	return result, nil
}

// ResetBranch restores a branch to its origin snapshot, discarding all
// divergence. A failure after the dataset was destroyed leaves the
// branch stopped; re-running the reset resumes from where it stopped.
func (m *Manager) ResetBranch(ctx context.Context, namespace string) (*state.Branch, error) {
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
	if branch.IsPrimary {
		return nil, errors.New(errors.EnginePrimaryImmutable,
			"primary branches have no snapshot to reset to")
	}

	if containerID, err := m.containers.GetContainerByName(ctx, branch.ContainerName); err != nil {
		return nil, err
	} else if containerID != "" {
		if err := m.containers.StopContainer(ctx, containerID, m.cfg.StopTimeout()); err != nil {
			return nil, err
		}
		if err := m.containers.RemoveContainer(ctx, containerID); err != nil {
			return nil, err
		}
	}

	markStopped := func() {
		branch.Status = state.StatusStopped
		if err := m.store.UpdateBranch(project.ID, *branch); err != nil {
			m.logger.Warn("Failed to record stopped status", "branch", branch.Name, "err", err)
		}
	}

	if exists, err := m.storage.DatasetExists(ctx, branch.ZFSDatasetName); err != nil {
		return nil, err
	} else if exists {
		if err := m.storage.DestroyDataset(ctx, branch.ZFSDatasetName); err != nil {
			markStopped()
			return nil, err
		}
	}

	if err := m.storage.CloneSnapshot(ctx, branch.SnapshotName, branch.ZFSDatasetName); err != nil {
		markStopped()
		return nil, err
	}

	// The port is identity to clients: recreate on the recorded one.
	started, err := m.startBranchContainer(ctx, startContainerParams{
		image:         project.Image,
		pullImage:     false,
		leaf:          branch.ZFSDatasetName,
		containerName: branch.ContainerName,
		port:          branch.Port,
		creds:         project.Credentials,
	})
	if err != nil {
		markStopped()
		return nil, err
	}

	branch.Port = started.port
	branch.SizeBytes = started.sizeBytes
	branch.Status = state.StatusRunning
	if err := m.store.UpdateBranch(project.ID, *branch); err != nil {
		return nil, err
	}

	return branch, nil
}

// DeleteBranch runs the branch-delete workflow. The backing snapshot is
// garbage-collected when it was created implicitly by branch-create and
// nothing else depends on it.
func (m *Manager) DeleteBranch(ctx context.Context, namespace string, opts DeleteBranchOptions) error {
	if err := m.store.Lock(ctx); err != nil {
		return err
	}
	defer m.store.Unlock()

	catalog, err := m.store.Load()
	if err != nil {
		return err
	}
	if err := m.configureStorage(catalog); err != nil {
		return err
	}

	project, branch, err := m.resolveBranch(namespace)
	if err != nil {
		return err
	}

	if branch.IsPrimary {
		if len(project.Branches) > 1 {
			return errors.New(errors.EngineHasDependents,
				"project still has child branches")
		}
		return errors.New(errors.EnginePrimaryImmutable,
			"delete the project to remove its primary branch")
	}

	for i := range project.Branches {
		if project.Branches[i].ParentBranchID == branch.ID {
			return errors.New(errors.EngineHasDependents,
				"branch "+project.Branches[i].Name+" was created from this branch")
		}
	}

	return m.deleteBranchResources(ctx, project, branch, opts.KeepSnapshot)
}

// deleteBranchResources tears down a branch's container, dataset and WAL
// archive, then commits the state removal. Caller holds the lock.
func (m *Manager) deleteBranchResources(ctx context.Context, project *state.Project, branch *state.Branch, keepSnapshot bool) error {
	if containerID, err := m.containers.GetContainerByName(ctx, branch.ContainerName); err != nil {
		return err
	} else if containerID != "" {
		if err := m.containers.StopContainer(ctx, containerID, m.cfg.StopTimeout()); err != nil {
			return err
		}
		if err := m.containers.RemoveContainer(ctx, containerID); err != nil {
			return err
		}
	}

	if exists, err := m.storage.DatasetExists(ctx, branch.ZFSDatasetName); err != nil {
		return err
	} else if exists {
		if err := m.storage.DestroyDataset(ctx, branch.ZFSDatasetName); err != nil {
			if errors.IsKind(err, errors.KindStorageBusy) {
				return errors.Wrap(err, errors.EngineHasDependents)
			}
			return err
		}
	}

	if walPath, err := common.WALArchivePath(branch.ZFSDatasetName); err == nil {
		if err := os.RemoveAll(walPath); err != nil {
			m.logger.Warn("Failed to remove WAL archive", "path", walPath, "err", err)
		}
	}

	// Garbage-collect the implicit backing snapshot when this branch was
	// its only dependent.
	var dropSnapshots []string
	if !branch.IsPrimary && branch.SnapshotName != "" && !keepSnapshot {
		if snap, err := m.store.GetSnapshotByRef(branch.SnapshotName); err == nil && snap.Implicit {
			inUse := false
			branches, _ := m.store.AllBranches()
			for i := range branches {
				if branches[i].ID != branch.ID && branches[i].SnapshotName == branch.SnapshotName {
					inUse = true
					break
				}
			}
			if !inUse {
				destroyErr := m.storage.DestroySnapshot(ctx, branch.SnapshotName)
				if destroyErr == nil || errors.IsKind(destroyErr, errors.KindNotFound) {
					dropSnapshots = append(dropSnapshots, snap.ID)
				} else {
					m.logger.Warn("Failed to destroy backing snapshot",
						"snapshot", branch.SnapshotName, "err", destroyErr)
				}
			}
		}
	}

	return m.store.RemoveBranchAndSnapshots(project.ID, branch.ID, dropSnapshots)
}

// DeleteProject tears down every branch of a project, children first,
// then removes the project and its snapshot records.
func (m *Manager) DeleteProject(ctx context.Context, name string) error {
	if err := m.store.Lock(ctx); err != nil {
		return err
	}
	defer m.store.Unlock()

	catalog, err := m.store.Load()
	if err != nil {
		return err
	}
	if err := m.configureStorage(catalog); err != nil {
		return err
	}

	canonical := naming.Canonicalize(name)
	project, err := m.store.GetProjectByName(canonical)
	if err != nil {
		return errors.New(errors.EngineNotFound, "project "+canonical+" not found")
	}

	// Children first: repeatedly delete branches nothing depends on.
	for {
		project, err = m.store.GetProjectByName(canonical)
		if err != nil {
			return err
		}
		var next *state.Branch
		for i := range project.Branches {
			b := &project.Branches[i]
			if b.IsPrimary {
				continue
			}
			hasChild := false
			for j := range project.Branches {
				if project.Branches[j].ParentBranchID == b.ID {
					hasChild = true
					break
				}
			}
			if !hasChild {
				next = b
				break
			}
		}
		if next == nil {
			break
		}
		if err := m.deleteBranchResources(ctx, project, next, false); err != nil {
			return err
		}
	}

	project, err = m.store.GetProjectByName(canonical)
	if err != nil {
		return err
	}
	primary := project.PrimaryBranch()
	if primary != nil {
		if containerID, err := m.containers.GetContainerByName(ctx, primary.ContainerName); err != nil {
			return err
		} else if containerID != "" {
			if err := m.containers.StopContainer(ctx, containerID, m.cfg.StopTimeout()); err != nil {
				return err
			}
			if err := m.containers.RemoveContainer(ctx, containerID); err != nil {
				return err
			}
		}

		if exists, err := m.storage.DatasetExists(ctx, primary.ZFSDatasetName); err != nil {
			return err
		} else if exists {
			if err := m.storage.DestroyDataset(ctx, primary.ZFSDatasetName); err != nil {
				if errors.IsKind(err, errors.KindStorageBusy) {
					return errors.Wrap(err, errors.EngineHasDependents)
				}
				return err
			}
		}

		if walPath, err := common.WALArchivePath(primary.ZFSDatasetName); err == nil {
			if err := os.RemoveAll(walPath); err != nil {
				m.logger.Warn("Failed to remove WAL archive", "path", walPath, "err", err)
			}
		}
	}

	return m.store.RemoveProjectAndSnapshots(project.ID)
}

// CreateSnapshot runs the snapshot-create workflow on a branch.
func (m *Manager) CreateSnapshot(ctx context.Context, namespace, label string) (*state.Snapshot, error) {
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

	// A stopped branch needs no CHECKPOINT; its data directory is
	// already quiescent.
	if err := m.checkpointIfRunning(ctx, branch, project.Credentials); err != nil {
		return nil, err
	}

	snapName := naming.SnapshotName(time.Now(), label)
	snapshotRef := naming.SnapshotRef(branch.ZFSDataset, snapName)

	if err := m.storage.CreateSnapshot(ctx, branch.ZFSDatasetName, snapName); err != nil {
		return nil, err
	}

	sizeBytes, err := m.storage.GetSnapshotSize(ctx, snapshotRef)
	if err != nil {
		m.logger.Warn("Failed to read snapshot size", "snapshot", snapshotRef, "err", err)
		sizeBytes = 0
	}

	snapshot := state.Snapshot{
		ID:          uuid.New().String(),
		BranchID:    branch.ID,
		BranchName:  branch.Name,
		ProjectName: project.Name,
		ZFSSnapshot: snapshotRef,
		CreatedAt:   time.Now().UTC(),
		Label:       label,
		SizeBytes:   sizeBytes,
	}

	if err := m.store.AddSnapshot(snapshot); err != nil {
		m.compensateSnapshot(ctx, snapshotRef, true)
		return nil, err
	}

	return &snapshot, nil
}

// DeleteSnapshot runs the snapshot-delete workflow. A snapshot that
// still backs a branch clone cannot be deleted.
func (m *Manager) DeleteSnapshot(ctx context.Context, id string) error {
	if err := m.store.Lock(ctx); err != nil {
		return err
	}
	defer m.store.Unlock()

	catalog, err := m.store.Load()
	if err != nil {
		return err
	}
	if err := m.configureStorage(catalog); err != nil {
		return err
	}

	snap, err := m.store.GetSnapshotByID(id)
	if err != nil {
		return errors.New(errors.EngineNotFound, "snapshot "+id+" not found")
	}

	branches, err := m.store.AllBranches()
	if err != nil {
		return err
	}
	for i := range branches {
		if branches[i].SnapshotName == snap.ZFSSnapshot {
			return errors.New(errors.EngineHasDependents,
				"branch "+branches[i].Name+" depends on this snapshot")
		}
	}

	if err := m.storage.DestroySnapshot(ctx, snap.ZFSSnapshot); err != nil {
		if errors.IsKind(err, errors.KindStorageBusy) {
			return errors.Wrap(err, errors.EngineHasDependents)
		}
		if !errors.IsKind(err, errors.KindNotFound) {
			return err
		}
		// Already gone in storage; converge the catalog.
	}

	return m.store.DeleteSnapshot(snap.ID)
}
