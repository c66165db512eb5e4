// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stratastor/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratastor/pgbranch/config"
	"github.com/stratastor/pgbranch/pkg/docker"
	"github.com/stratastor/pgbranch/pkg/errors"
	"github.com/stratastor/pgbranch/pkg/state"
	"github.com/stratastor/pgbranch/pkg/zfs/pool"
)

// fakeStorage models datasets, snapshots and clone dependencies in
// memory with ZFS semantics: a snapshot with dependent clones refuses to
// die, and so does a dataset with such snapshots.
type fakeStorage struct {
	pool, base string
	pools      []string

	datasets  map[string]bool   // leaf -> present
	snapshots map[string]bool   // full ref -> present
	clones    map[string]string // clone leaf -> origin snapshot ref
	used      map[string]int64  // leaf -> bytes

	failCloneOnce bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		pools:     []string{"tank"},
		datasets:  map[string]bool{},
		snapshots: map[string]bool{},
		clones:    map[string]string{},
		used:      map[string]int64{},
	}
}

func (f *fakeStorage) Configure(zfsPool, base string) { f.pool, f.base = zfsPool, base }

func (f *fakeStorage) DatasetPath(leaf string) string {
	return f.pool + "/" + f.base + "/" + leaf
}

func (f *fakeStorage) CreateDataset(ctx context.Context, leaf string, props map[string]string) error {
	if f.datasets[leaf] {
		return errors.New(errors.ZFSDatasetExists, leaf)
	}
	f.datasets[leaf] = true
	f.used[leaf] = 1 << 20
	return nil
}

func (f *fakeStorage) DestroyDataset(ctx context.Context, leaf string) error {
	if !f.datasets[leaf] {
		return errors.New(errors.ZFSDatasetNotFound, leaf)
	}
	prefix := f.DatasetPath(leaf) + "@"
	for ref := range f.snapshots {
		if strings.HasPrefix(ref, prefix) {
			for _, origin := range f.clones {
				if origin == ref {
					return errors.New(errors.ZFSDatasetBusy, ref)
				}
			}
		}
	}
	for ref := range f.snapshots {
		if strings.HasPrefix(ref, prefix) {
			delete(f.snapshots, ref)
		}
	}
	delete(f.datasets, leaf)
	delete(f.clones, leaf)
	delete(f.used, leaf)
	return nil
}

func (f *fakeStorage) CreateSnapshot(ctx context.Context, leaf, snapName string) error {
	ref := f.DatasetPath(leaf) + "@" + snapName
	if f.snapshots[ref] {
		return errors.New(errors.ZFSDatasetExists, ref)
	}
	if !f.datasets[leaf] {
		return errors.New(errors.ZFSDatasetNotFound, leaf)
	}
	f.snapshots[ref] = true
	return nil
}

func (f *fakeStorage) DestroySnapshot(ctx context.Context, fullRef string) error {
	if !f.snapshots[fullRef] {
		return errors.New(errors.ZFSDatasetNotFound, fullRef)
	}
	for _, origin := range f.clones {
		if origin == fullRef {
			return errors.New(errors.ZFSDatasetBusy, fullRef)
		}
	}
	delete(f.snapshots, fullRef)
	return nil
}

func (f *fakeStorage) CloneSnapshot(ctx context.Context, fullRef, newLeaf string) error {
	if f.failCloneOnce {
		f.failCloneOnce = false
		return errors.New(errors.ZFSCloneError, "injected clone failure")
	}
	if !f.snapshots[fullRef] {
		return errors.New(errors.ZFSDatasetNotFound, fullRef)
	}
	if f.datasets[newLeaf] {
		return errors.New(errors.ZFSDatasetExists, newLeaf)
	}
	f.datasets[newLeaf] = true
	f.clones[newLeaf] = fullRef
	f.used[newLeaf] = 64 << 10
	return nil
}

func (f *fakeStorage) DatasetExists(ctx context.Context, leaf string) (bool, error) {
	return f.datasets[leaf], nil
}

func (f *fakeStorage) SnapshotExists(ctx context.Context, fullRef string) (bool, error) {
	return f.snapshots[fullRef], nil
}

func (f *fakeStorage) GetMountpoint(ctx context.Context, leaf string) (string, error) {
	if !f.datasets[leaf] {
		return "", errors.New(errors.ZFSDatasetNotFound, leaf)
	}
	return "/" + f.DatasetPath(leaf), nil
}

func (f *fakeStorage) GetUsedSpace(ctx context.Context, leaf string) (int64, error) {
	return f.used[leaf], nil
}

func (f *fakeStorage) GetSnapshotSize(ctx context.Context, fullRef string) (int64, error) {
	return 4096, nil
}

func (f *fakeStorage) GetPoolStatus(ctx context.Context, name string) (pool.Status, error) {
	for _, p := range f.pools {
		if p == name {
			return pool.Status{Name: name, Health: "ONLINE", Size: 10 << 30, Allocated: 1 << 30, Free: 9 << 30}, nil
		}
	}
	return pool.Status{}, errors.New(errors.ZFSPoolNotFound, name)
}

func (f *fakeStorage) ListPools(ctx context.Context) ([]string, error) {
	return f.pools, nil
}

// fakeContainers models the runtime: named containers, dynamic host
// ports assigned at start, health driven by running state.
type fakeContainer struct {
	id      string
	name    string
	port    int
	running bool
	cfg     docker.CreateConfig
}

type fakeContainers struct {
	images     map[string]bool
	nextID     int
	nextPort   int
	containers map[string]*fakeContainer // by id

	execSQL []string

	failStartOnce  bool
	failHealthOnce bool
}

func newFakeContainers() *fakeContainers {
	return &fakeContainers{
		images:     map[string]bool{"postgres:16-alpine": true},
		nextPort:   54300,
		containers: map[string]*fakeContainer{},
	}
}

func (f *fakeContainers) ImageExists(ctx context.Context, ref string) (bool, error) {
	return f.images[ref], nil
}

func (f *fakeContainers) PullImage(ctx context.Context, ref string) error {
	f.images[ref] = true
	return nil
}

func (f *fakeContainers) byName(name string) *fakeContainer {
	for _, c := range f.containers {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (f *fakeContainers) CreateContainer(ctx context.Context, cfg docker.CreateConfig) (string, error) {
	if f.byName(cfg.Name) != nil {
		return "", errors.New(errors.DockerContainerCreate, "name already in use: "+cfg.Name)
	}
	f.nextID++
	c := &fakeContainer{
		id:   fmt.Sprintf("c%04d", f.nextID),
		name: cfg.Name,
		port: cfg.Port,
		cfg:  cfg,
	}
	f.containers[c.id] = c
	return c.id, nil
}

func (f *fakeContainers) StartContainer(ctx context.Context, id string) error {
	if f.failStartOnce {
		f.failStartOnce = false
		return errors.New(errors.DockerContainerStart, "injected start failure")
	}
	c, ok := f.containers[id]
	if !ok {
		return errors.New(errors.DockerContainerNotFound, id)
	}
	if c.port == 0 {
		c.port = f.nextPort
		f.nextPort++
	}
	for _, other := range f.containers {
		if other.id != c.id && other.running && other.port == c.port {
			return errors.New(errors.DockerContainerStart,
				fmt.Sprintf("port %d already bound", c.port))
		}
	}
	c.running = true
	return nil
}

func (f *fakeContainers) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	if c, ok := f.containers[id]; ok {
		c.running = false
	}
	return nil
}

func (f *fakeContainers) RemoveContainer(ctx context.Context, id string) error {
	delete(f.containers, id)
	return nil
}

func (f *fakeContainers) WaitForHealthy(ctx context.Context, id string, timeout time.Duration) error {
	if f.failHealthOnce {
		f.failHealthOnce = false
		return errors.New(errors.DockerUnhealthy, "injected health failure")
	}
	c, ok := f.containers[id]
	if !ok {
		return errors.New(errors.DockerContainerNotFound, id)
	}
	if !c.running {
		return errors.New(errors.DockerUnhealthy, "container not running")
	}
	return nil
}

func (f *fakeContainers) GetContainerByName(ctx context.Context, name string) (string, error) {
	if c := f.byName(name); c != nil {
		return c.id, nil
	}
	return "", nil
}

func (f *fakeContainers) GetContainerStatus(ctx context.Context, id string) (docker.ContainerStatus, error) {
	c, ok := f.containers[id]
	if !ok {
		return docker.ContainerStatus{}, errors.New(errors.DockerContainerNotFound, id)
	}
	stateStr := "exited"
	if c.running {
		stateStr = "running"
	}
	return docker.ContainerStatus{ID: c.id, Name: c.name, State: stateStr, Health: "healthy"}, nil
}

func (f *fakeContainers) GetContainerPort(ctx context.Context, id string) (int, error) {
	c, ok := f.containers[id]
	if !ok || c.port == 0 {
		return 0, errors.New(errors.DockerPortUnavailable, id)
	}
	return c.port, nil
}

func (f *fakeContainers) ExecSQL(ctx context.Context, id, sql, user string) error {
	f.execSQL = append(f.execSQL, sql)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.ZFS.DatasetBase = "pgbranch"
	cfg.ZFS.Compression = "lz4"
	cfg.ZFS.Recordsize = "8k"
	cfg.Container.DefaultImage = "postgres:16-alpine"
	cfg.Container.HealthTimeout = "5s"
	cfg.Container.StopTimeout = "5s"
	cfg.Retention.Days = 14
	cfg.Logger.LogLevel = "error"
	return cfg
}

type testEnv struct {
	mgr        *Manager
	store      *state.Store
	storage    *fakeStorage
	containers *fakeContainers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, err := state.NewStore(filepath.Join(t.TempDir(), "state.json"), logger.Config{LogLevel: "error"})
	require.NoError(t, err)
	_, err = store.Load()
	require.NoError(t, err)

	storage := newFakeStorage()
	containers := newFakeContainers()

	mgr, err := NewManager(store, storage, containers, testConfig())
	require.NoError(t, err)

	return &testEnv{mgr: mgr, store: store, storage: storage, containers: containers}
}

func TestCreateProjectCleanSystem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	assert.Empty(t, result.CanonicalizedFrom)

	catalog, err := env.store.Catalog()
	require.NoError(t, err)
	assert.True(t, catalog.Initialized)
	assert.Equal(t, "tank", catalog.ZFSPool)
	require.Len(t, catalog.Projects, 1)

	project := catalog.Projects[0]
	require.Len(t, project.Branches, 1)
	primary := project.Branches[0]
	assert.True(t, primary.IsPrimary)
	assert.Empty(t, primary.ParentBranchID)
	assert.Empty(t, primary.SnapshotName)
	assert.Equal(t, "tank/pgbranch/demo-main", primary.ZFSDataset)
	assert.Equal(t, "pgbranch-demo-main", primary.ContainerName)
	assert.GreaterOrEqual(t, primary.Port, 1024)
	assert.Equal(t, state.StatusRunning, primary.Status)

	assert.True(t, env.storage.datasets["demo-main"])
	require.NotNil(t, env.containers.byName("pgbranch-demo-main"))
	assert.True(t, env.containers.byName("pgbranch-demo-main").running)
}

func TestCreateProjectCanonicalizesName(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.mgr.CreateProject(context.Background(), CreateProjectParams{Name: "My App"})
	require.NoError(t, err)
	assert.Equal(t, "My App", result.CanonicalizedFrom)
	assert.Equal(t, "my-app", result.Project.Name)
	assert.Equal(t, "my_app", result.Project.Credentials.Database)
}

func TestCreateProjectImageAndVersionConflict(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.mgr.CreateProject(context.Background(), CreateProjectParams{
		Name:    "foo",
		Image:   "postgres:15",
		Version: "16",
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUser))
	assert.Equal(t, errors.ExitUserError, errors.ExitCode(err))

	// No state change.
	catalog, err := env.store.Catalog()
	require.NoError(t, err)
	assert.False(t, catalog.Initialized)
	assert.Empty(t, catalog.Projects)
}

func TestCreateProjectTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)

	_, err = env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUser))

	catalog, _ := env.store.Catalog()
	assert.Len(t, catalog.Projects, 1)
}

func TestCreateProjectCompensatesOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.containers.failHealthOnce = true

	_, err := env.mgr.CreateProject(context.Background(), CreateProjectParams{Name: "demo"})
	require.Error(t, err)

	// Dataset and container rolled back; catalog has no project.
	assert.False(t, env.storage.datasets["demo-main"])
	assert.Nil(t, env.containers.byName("pgbranch-demo-main"))
	catalog, _ := env.store.Catalog()
	assert.Empty(t, catalog.Projects)

	// Re-run converges to success.
	_, err = env.mgr.CreateProject(context.Background(), CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
}

func TestCreateBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)

	result, err := env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)

	branch := result.Branch
	assert.Equal(t, "demo/dev", branch.Name)
	assert.False(t, branch.IsPrimary)
	assert.Equal(t, "tank/pgbranch/demo-dev", branch.ZFSDataset)
	assert.Equal(t, "pgbranch-demo-dev", branch.ContainerName)
	assert.True(t, strings.HasPrefix(result.Snapshot.ZFSSnapshot, "tank/pgbranch/demo-main@"))
	assert.True(t, result.Snapshot.Implicit)

	// CHECKPOINT ran against the running parent.
	assert.Contains(t, env.containers.execSQL, "CHECKPOINT;")

	// Distinct port from the primary.
	_, primary, err := env.store.GetBranchByNamespace("demo/main")
	require.NoError(t, err)
	assert.NotEqual(t, primary.Port, branch.Port)

	catalog, _ := env.store.Catalog()
	require.Len(t, catalog.Projects, 1)
	assert.Len(t, catalog.Projects[0].Branches, 2)
	require.Len(t, catalog.Snapshots, 1)
	assert.Equal(t, primary.ID, catalog.Snapshots[0].BranchID)
}

func TestCreateBranchParentNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)

	_, err = env.mgr.CreateBranch(ctx, "demo/nope", "dev")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestCreateBranchCompensatesOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)

	env.containers.failStartOnce = true
	_, err = env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.Error(t, err)

	// Snapshot and clone rolled back, no branch recorded.
	assert.False(t, env.storage.datasets["demo-dev"])
	for ref := range env.storage.snapshots {
		t.Errorf("leftover snapshot %s", ref)
	}
	catalog, _ := env.store.Catalog()
	assert.Len(t, catalog.Projects[0].Branches, 1)
	assert.Empty(t, catalog.Snapshots)

	// Re-running with the same arguments converges to success.
	result, err := env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)
	assert.Equal(t, "demo/dev", result.Branch.Name)
}

func TestTwoBranchesDistinct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)

	a, err := env.mgr.CreateBranch(ctx, "demo/main", "a")
	require.NoError(t, err)
	b, err := env.mgr.CreateBranch(ctx, "demo/main", "b")
	require.NoError(t, err)

	assert.NotEqual(t, a.Snapshot.ZFSSnapshot, b.Snapshot.ZFSSnapshot)
	assert.NotEqual(t, a.Branch.Port, b.Branch.Port)

	catalog, _ := env.store.Catalog()
	assert.Len(t, catalog.Projects[0].Branches, 3)
	assert.Len(t, catalog.Snapshots, 2)
}

func TestDeleteSnapshotWithDependents(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	created, err := env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)

	err = env.mgr.DeleteSnapshot(ctx, created.Snapshot.ID)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindHasDependents))

	// No state change.
	catalog, _ := env.store.Catalog()
	assert.Len(t, catalog.Snapshots, 1)

	// Delete the branch keeping the snapshot, then the snapshot goes.
	require.NoError(t, env.mgr.DeleteBranch(ctx, "demo/dev", DeleteBranchOptions{KeepSnapshot: true}))
	require.NoError(t, env.mgr.DeleteSnapshot(ctx, created.Snapshot.ID))

	catalog, _ = env.store.Catalog()
	assert.Empty(t, catalog.Snapshots)
}

func TestDeleteBranchCollectsImplicitSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	created, err := env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)

	require.NoError(t, env.mgr.DeleteBranch(ctx, "demo/dev", DeleteBranchOptions{}))

	catalog, _ := env.store.Catalog()
	assert.Len(t, catalog.Projects[0].Branches, 1)
	assert.Empty(t, catalog.Snapshots)
	assert.False(t, env.storage.snapshots[created.Snapshot.ZFSSnapshot])
	assert.False(t, env.storage.datasets["demo-dev"])
	assert.Nil(t, env.containers.byName("pgbranch-demo-dev"))
}

func TestDeleteBranchNotFound(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)

	before, _ := env.store.Catalog()
	beforeBranches := len(before.Projects[0].Branches)

	err = env.mgr.DeleteBranch(ctx, "demo/ghost", DeleteBranchOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))

	after, _ := env.store.Catalog()
	assert.Equal(t, beforeBranches, len(after.Projects[0].Branches))
}

func TestDeletePrimaryBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	_, err = env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)

	err = env.mgr.DeleteBranch(ctx, "demo/main", DeleteBranchOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindHasDependents))
}

func TestResetBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	created, err := env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)

	// Simulate divergence.
	env.storage.used["demo-dev"] = 5 << 20
	preReset := env.storage.used["demo-dev"]

	branch, err := env.mgr.ResetBranch(ctx, "demo/dev")
	require.NoError(t, err)

	assert.Equal(t, created.Branch.Port, branch.Port, "port is identity to clients")
	assert.Equal(t, state.StatusRunning, branch.Status)
	assert.LessOrEqual(t, branch.SizeBytes, preReset)
	assert.Equal(t, created.Snapshot.ZFSSnapshot, env.storage.clones["demo-dev"])
}

func TestResetPrimaryRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)

	_, err = env.mgr.ResetBranch(ctx, "demo/main")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUser))
}

func TestResetBranchResumesAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	_, err = env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)

	env.storage.failCloneOnce = true
	_, err = env.mgr.ResetBranch(ctx, "demo/dev")
	require.Error(t, err)

	// Dataset is gone and the branch is recorded stopped.
	assert.False(t, env.storage.datasets["demo-dev"])
	_, branch, err := env.store.GetBranchByNamespace("demo/dev")
	require.NoError(t, err)
	assert.Equal(t, state.StatusStopped, branch.Status)

	// A second reset resumes and completes.
	reset, err := env.mgr.ResetBranch(ctx, "demo/dev")
	require.NoError(t, err)
	assert.Equal(t, state.StatusRunning, reset.Status)
	assert.True(t, env.storage.datasets["demo-dev"])
}

func TestStopStartBranch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	created, err := env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)

	stopped, err := env.mgr.StopBranch(ctx, "demo/dev")
	require.NoError(t, err)
	assert.Equal(t, state.StatusStopped, stopped.Status)
	assert.False(t, env.containers.byName("pgbranch-demo-dev").running)

	started, err := env.mgr.StartBranch(ctx, "demo/dev")
	require.NoError(t, err)
	assert.Equal(t, state.StatusRunning, started.Status)
	assert.Equal(t, created.Branch.Port, started.Port)
}

func TestDeleteProject(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	_, err = env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)
	_, err = env.mgr.CreateBranch(ctx, "demo/dev", "deeper")
	require.NoError(t, err)

	require.NoError(t, env.mgr.DeleteProject(ctx, "demo"))

	catalog, _ := env.store.Catalog()
	assert.Empty(t, catalog.Projects)
	assert.Empty(t, catalog.Snapshots)
	assert.Empty(t, env.storage.datasets)
	assert.Empty(t, env.containers.containers)
}

func TestCreateSnapshotOnStoppedBranchSkipsCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	_, err = env.mgr.StopBranch(ctx, "demo/main")
	require.NoError(t, err)

	env.containers.execSQL = nil
	snap, err := env.mgr.CreateSnapshot(ctx, "demo/main", "cold")
	require.NoError(t, err)
	assert.Empty(t, env.containers.execSQL, "stopped branch must skip CHECKPOINT")
	assert.Equal(t, "cold", snap.Label)
	assert.False(t, snap.Implicit)
	assert.Contains(t, snap.ZFSSnapshot, "-cold")
}

func TestStatusReport(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	_, err = env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)

	report, err := env.mgr.Status(ctx)
	require.NoError(t, err)
	assert.True(t, report.Initialized)
	assert.Equal(t, "tank", report.Pool.Name)
	assert.Equal(t, "ONLINE", report.Pool.Health)
	assert.Equal(t, 1, report.Projects)
	assert.Equal(t, 2, report.Branches)
	assert.Equal(t, 1, report.Snapshots)
}

func TestPruneSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)
	_, err = env.mgr.CreateBranch(ctx, "demo/main", "dev")
	require.NoError(t, err)

	// One explicit snapshot, backdated past the retention window.
	snap, err := env.mgr.CreateSnapshot(ctx, "demo/main", "old")
	require.NoError(t, err)
	require.NoError(t, env.store.Lock(ctx))
	catalog, _ := env.store.Catalog()
	for i := range catalog.Snapshots {
		catalog.Snapshots[i].CreatedAt = time.Now().AddDate(0, 0, -30)
	}
	require.NoError(t, env.store.Save())
	env.store.Unlock()

	result, err := env.mgr.PruneSnapshots(ctx, "", 14)
	require.NoError(t, err)

	// The implicit snapshot backs demo/dev and must be skipped; the
	// explicit one is pruned.
	require.Len(t, result.Pruned, 1)
	assert.Equal(t, snap.ID, result.Pruned[0].ID)
	require.Len(t, result.Skipped, 1)

	catalog, _ = env.store.Catalog()
	assert.Len(t, catalog.Snapshots, 1)
}

func TestListBranchesLiveState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.mgr.CreateProject(ctx, CreateProjectParams{Name: "demo"})
	require.NoError(t, err)

	infos, err := env.mgr.ListBranches(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Live)
	assert.Equal(t, "running", infos[0].LiveState)
}
