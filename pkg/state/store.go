// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package state owns the durable catalog of projects, branches and
// snapshots. The catalog lives in one JSON file; every mutation rewrites
// the whole file through a temp file + rename so a crash mid-write leaves
// the prior catalog intact. Cross-process serialization uses an advisory
// flock on a sibling lock file, held by the caller for the duration of a
// workflow, not just the save.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/stratastor/logger"
	"github.com/stratastor/pgbranch/internal/constants"
	"github.com/stratastor/pgbranch/pkg/errors"
)

const lockRetryDelay = 100 * time.Millisecond

// Store is a file-backed catalog with advisory locking.
type Store struct {
	path    string
	lock    *flock.Flock
	logger  logger.Logger
	catalog *Catalog
}

// NewStore creates a store over the catalog file at path. The directory
// is created if missing; the file itself is not touched until Save.
func NewStore(path string, logConfig logger.Config) (*Store, error) {
	l, err := logger.NewTag(logConfig, "state")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.StateLoadFailed).
			WithMetadata("path", dir)
	}

	return &Store{
		path:   path,
		lock:   flock.New(filepath.Join(dir, constants.StateLockName)),
		logger: l,
	}, nil
}

// Path returns the catalog file path.
func (s *Store) Path() string {
	return s.path
}

// Lock acquires the exclusive advisory lock. Callers hold it for the
// whole read-modify-write cycle of a mutating workflow.
func (s *Store) Lock(ctx context.Context) error {
	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errors.Wrap(err, errors.StateLockBusy)
	}
	if !ok {
		return errors.New(errors.StateLockBusy, "could not acquire catalog lock")
	}
	return nil
}

// RLock acquires the shared advisory lock for read-only commands.
func (s *Store) RLock(ctx context.Context) error {
	ok, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return errors.Wrap(err, errors.StateLockBusy)
	}
	if !ok {
		return errors.New(errors.StateLockBusy, "could not acquire catalog lock")
	}
	return nil
}

// Unlock releases the advisory lock.
func (s *Store) Unlock() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Warn("Failed to release catalog lock", "err", err)
	}
}

// Load reads the catalog from disk. An absent file yields an empty,
// uninitialized catalog.
func (s *Store) Load() (*Catalog, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.catalog = &Catalog{
				Projects:  []Project{},
				Snapshots: []Snapshot{},
			}
			return s.catalog, nil
		}
		return nil, errors.Wrap(err, errors.StateLoadFailed).
			WithMetadata("path", s.path)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, errors.Wrap(err, errors.StateLoadFailed).
			WithMetadata("path", s.path)
	}
	if catalog.Projects == nil {
		catalog.Projects = []Project{}
	}
	if catalog.Snapshots == nil {
		catalog.Snapshots = []Snapshot{}
	}

	s.catalog = &catalog
	return s.catalog, nil
}

// Save atomically persists the catalog: write a sibling temp file, then
// rename it over the destination.
func (s *Store) Save() error {
	if s.catalog == nil {
		return errors.New(errors.StateSaveFailed, "no catalog loaded")
	}

	data, err := json.MarshalIndent(s.catalog, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.StateSaveFailed)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, constants.StateFileName+".tmp-*")
	if err != nil {
		return errors.Wrap(err, errors.StateSaveFailed).
			WithMetadata("path", dir)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.StateSaveFailed)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.StateSaveFailed)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.StateSaveFailed)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.StateSaveFailed).
			WithMetadata("path", s.path)
	}

	return nil
}

// Catalog returns the loaded catalog, loading it first if needed.
func (s *Store) Catalog() (*Catalog, error) {
	if s.catalog != nil {
		return s.catalog, nil
	}
	return s.Load()
}

// AutoInitialize records the pool and dataset base. Both are immutable
// afterwards.
func (s *Store) AutoInitialize(pool, datasetBase string) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}
	if catalog.Initialized {
		return errors.New(errors.StateAlreadyInitialized,
			fmt.Sprintf("catalog already initialized with pool %s", catalog.ZFSPool))
	}

	catalog.Initialized = true
	catalog.ZFSPool = pool
	catalog.ZFSDatasetBase = datasetBase

	s.logger.Info("Catalog initialized", "pool", pool, "datasetBase", datasetBase)
	return s.Save()
}

// AddProject appends a project. The caller validated uniqueness.
func (s *Store) AddProject(p Project) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}
	if existing, _ := s.GetProjectByName(p.Name); existing != nil {
		return errors.New(errors.StateDuplicateProject, p.Name)
	}

	catalog.Projects = append(catalog.Projects, p)
	return s.Save()
}

// RemoveProject deletes a project by id.
func (s *Store) RemoveProject(projectID string) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}

	for i := range catalog.Projects {
		if catalog.Projects[i].ID == projectID {
			catalog.Projects = append(catalog.Projects[:i], catalog.Projects[i+1:]...)
			return s.Save()
		}
	}
	return errors.New(errors.StateProjectNotFound, projectID)
}

// GetProjectByName returns the project with the given canonical name.
func (s *Store) GetProjectByName(name string) (*Project, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}

	for i := range catalog.Projects {
		if catalog.Projects[i].Name == name {
			return &catalog.Projects[i], nil
		}
	}
	return nil, errors.New(errors.StateProjectNotFound, name)
}

// ListProjects returns all projects.
func (s *Store) ListProjects() ([]Project, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	return catalog.Projects, nil
}

// AddBranch appends a branch to a project.
func (s *Store) AddBranch(projectID string, b Branch) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}

	for i := range catalog.Projects {
		if catalog.Projects[i].ID != projectID {
			continue
		}
		for j := range catalog.Projects[i].Branches {
			if catalog.Projects[i].Branches[j].Name == b.Name {
				return errors.New(errors.StateDuplicateBranch, b.Name)
			}
		}
		catalog.Projects[i].Branches = append(catalog.Projects[i].Branches, b)
		return s.Save()
	}
	return errors.New(errors.StateProjectNotFound, projectID)
}

// UpdateBranch replaces a branch record by id.
func (s *Store) UpdateBranch(projectID string, b Branch) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}

	for i := range catalog.Projects {
		if catalog.Projects[i].ID != projectID {
			continue
		}
		for j := range catalog.Projects[i].Branches {
			if catalog.Projects[i].Branches[j].ID == b.ID {
				catalog.Projects[i].Branches[j] = b
				return s.Save()
			}
		}
		return errors.New(errors.StateBranchNotFound, b.Name)
	}
	return errors.New(errors.StateProjectNotFound, projectID)
}

// RemoveBranch deletes a branch record by id.
func (s *Store) RemoveBranch(projectID, branchID string) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}

	for i := range catalog.Projects {
		if catalog.Projects[i].ID != projectID {
			continue
		}
		branches := catalog.Projects[i].Branches
		for j := range branches {
			if branches[j].ID == branchID {
				catalog.Projects[i].Branches = append(branches[:j], branches[j+1:]...)
				return s.Save()
			}
		}
		return errors.New(errors.StateBranchNotFound, branchID)
	}
	return errors.New(errors.StateProjectNotFound, projectID)
}

// GetBranchByNamespace resolves "<project>/<branch>" to its project and
// branch records.
func (s *Store) GetBranchByNamespace(namespace string) (*Project, *Branch, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, nil, err
	}

	for i := range catalog.Projects {
		for j := range catalog.Projects[i].Branches {
			if catalog.Projects[i].Branches[j].Name == namespace {
				return &catalog.Projects[i], &catalog.Projects[i].Branches[j], nil
			}
		}
	}
	return nil, nil, errors.New(errors.StateBranchNotFound, namespace)
}

// AllBranches returns every branch across all projects.
func (s *Store) AllBranches() ([]Branch, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}

	var branches []Branch
	for i := range catalog.Projects {
		branches = append(branches, catalog.Projects[i].Branches...)
	}
	return branches, nil
}

// AddBranchAndSnapshot records a new branch and its backing snapshot in
// one save, so a crash cannot leave a branch whose snapshot the catalog
// does not know.
func (s *Store) AddBranchAndSnapshot(projectID string, b Branch, snap Snapshot) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}

	for i := range catalog.Projects {
		if catalog.Projects[i].ID != projectID {
			continue
		}
		for j := range catalog.Projects[i].Branches {
			if catalog.Projects[i].Branches[j].Name == b.Name {
				return errors.New(errors.StateDuplicateBranch, b.Name)
			}
		}
		catalog.Projects[i].Branches = append(catalog.Projects[i].Branches, b)
		if _, err := s.getSnapshotByRefLocked(snap.ZFSSnapshot); err != nil {
			catalog.Snapshots = append(catalog.Snapshots, snap)
		}
		return s.Save()
	}
	return errors.New(errors.StateProjectNotFound, projectID)
}

// RemoveBranchAndSnapshots drops a branch and the given snapshot records
// in one save.
func (s *Store) RemoveBranchAndSnapshots(projectID, branchID string, snapshotIDs []string) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}

	found := false
	for i := range catalog.Projects {
		if catalog.Projects[i].ID != projectID {
			continue
		}
		branches := catalog.Projects[i].Branches
		for j := range branches {
			if branches[j].ID == branchID {
				catalog.Projects[i].Branches = append(branches[:j], branches[j+1:]...)
				found = true
				break
			}
		}
	}
	if !found {
		return errors.New(errors.StateBranchNotFound, branchID)
	}

	drop := make(map[string]bool, len(snapshotIDs))
	for _, id := range snapshotIDs {
		drop[id] = true
	}
	kept := catalog.Snapshots[:0]
	for _, snap := range catalog.Snapshots {
		if !drop[snap.ID] {
			kept = append(kept, snap)
		}
	}
	catalog.Snapshots = kept

	return s.Save()
}

// RemoveProjectAndSnapshots drops a project and every snapshot record of
// its branches in one save.
func (s *Store) RemoveProjectAndSnapshots(projectID string) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}

	name := ""
	for i := range catalog.Projects {
		if catalog.Projects[i].ID == projectID {
			name = catalog.Projects[i].Name
			catalog.Projects = append(catalog.Projects[:i], catalog.Projects[i+1:]...)
			break
		}
	}
	if name == "" {
		return errors.New(errors.StateProjectNotFound, projectID)
	}

	kept := catalog.Snapshots[:0]
	for _, snap := range catalog.Snapshots {
		if snap.ProjectName != name {
			kept = append(kept, snap)
		}
	}
	catalog.Snapshots = kept

	return s.Save()
}

// AddSnapshot appends a snapshot record.
func (s *Store) AddSnapshot(snap Snapshot) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}

	catalog.Snapshots = append(catalog.Snapshots, snap)
	return s.Save()
}

// DeleteSnapshot removes a snapshot record by id.
func (s *Store) DeleteSnapshot(id string) error {
	catalog, err := s.Catalog()
	if err != nil {
		return err
	}

	for i := range catalog.Snapshots {
		if catalog.Snapshots[i].ID == id {
			catalog.Snapshots = append(catalog.Snapshots[:i], catalog.Snapshots[i+1:]...)
			return s.Save()
		}
	}
	return errors.New(errors.StateSnapshotNotFound, id)
}

// GetSnapshotByID returns the snapshot with the given id.
func (s *Store) GetSnapshotByID(id string) (*Snapshot, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}

	for i := range catalog.Snapshots {
		if catalog.Snapshots[i].ID == id {
			return &catalog.Snapshots[i], nil
		}
	}
	return nil, errors.New(errors.StateSnapshotNotFound, id)
}

// GetSnapshotByRef returns the snapshot with the given full ZFS reference.
func (s *Store) GetSnapshotByRef(ref string) (*Snapshot, error) {
	if _, err := s.Catalog(); err != nil {
		return nil, err
	}
	return s.getSnapshotByRefLocked(ref)
}

func (s *Store) getSnapshotByRefLocked(ref string) (*Snapshot, error) {
	for i := range s.catalog.Snapshots {
		if s.catalog.Snapshots[i].ZFSSnapshot == ref {
			return &s.catalog.Snapshots[i], nil
		}
	}
	return nil, errors.New(errors.StateSnapshotNotFound, ref)
}

// ListSnapshots returns snapshots, optionally filtered by branch name.
func (s *Store) ListSnapshots(branchName string) ([]Snapshot, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}

	if branchName == "" {
		return catalog.Snapshots, nil
	}

	var snaps []Snapshot
	for _, snap := range catalog.Snapshots {
		if snap.BranchName == branchName {
			snaps = append(snaps, snap)
		}
	}
	return snaps, nil
}

// DeleteOldSnapshots returns the snapshots of a branch older than the
// retention window. It does not mutate the catalog; destroying storage
// and deleting records is the caller's responsibility.
func (s *Store) DeleteOldSnapshots(branchName string, retentionDays int) ([]Snapshot, error) {
	snaps, err := s.ListSnapshots(branchName)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	var old []Snapshot
	for _, snap := range snaps {
		if snap.CreatedAt.Before(cutoff) {
			old = append(old, snap)
		}
	}
	return old, nil
}
