// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package state

import "time"

// Branch status values.
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

// Credentials are the PostgreSQL superuser credentials of a project.
// Every branch of a project shares them.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// Branch is one PostgreSQL instance backed by a writable dataset.
// ParentBranchID and SnapshotName are empty exactly when the branch is
// the project's primary.
type Branch struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"` // qualified: <project>/<leaf>
	ProjectName    string    `json:"projectName"`
	ParentBranchID string    `json:"parentBranchId,omitempty"`
	IsPrimary      bool      `json:"isPrimary"`
	SnapshotName   string    `json:"snapshotName,omitempty"` // full ref of the backing snapshot
	ZFSDataset     string    `json:"zfsDataset"`             // full path
	ZFSDatasetName string    `json:"zfsDatasetName"`         // leaf
	ContainerName  string    `json:"containerName"`
	Port           int       `json:"port"`
	CreatedAt      time.Time `json:"createdAt"`
	SizeBytes      int64     `json:"sizeBytes"`
	Status         string    `json:"status"`
}

// Leaf returns the branch leaf of the qualified name.
func (b *Branch) Leaf() string {
	for i := len(b.Name) - 1; i >= 0; i-- {
		if b.Name[i] == '/' {
			return b.Name[i+1:]
		}
	}
	return b.Name
}

// Project is a named PostgreSQL environment owning one primary branch
// and any number of child branches.
type Project struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Image       string      `json:"image"`
	CreatedAt   time.Time   `json:"createdAt"`
	Credentials Credentials `json:"credentials"`
	Branches    []Branch    `json:"branches"`
}

// PrimaryBranch returns the project's primary branch, or nil.
func (p *Project) PrimaryBranch() *Branch {
	for i := range p.Branches {
		if p.Branches[i].IsPrimary {
			return &p.Branches[i]
		}
	}
	return nil
}

// Snapshot is an immutable point-in-time reference to a branch dataset.
// Implicit snapshots are the ones branch-create takes automatically; they
// are garbage-collected with the branch that depends on them.
type Snapshot struct {
	ID          string    `json:"id"`
	BranchID    string    `json:"branchId"`
	BranchName  string    `json:"branchName"`
	ProjectName string    `json:"projectName"`
	ZFSSnapshot string    `json:"zfsSnapshot"` // full ref: <pool>/<base>/<dataset>@<snap>
	CreatedAt   time.Time `json:"createdAt"`
	Label       string    `json:"label,omitempty"`
	SizeBytes   int64     `json:"sizeBytes"`
	Implicit    bool      `json:"implicit,omitempty"`
}

// Catalog is the singleton root persisted as one JSON document.
// ZFSPool and ZFSDatasetBase are immutable once Initialized is true.
type Catalog struct {
	Initialized    bool       `json:"initialized"`
	ZFSPool        string     `json:"zfsPool"`
	ZFSDatasetBase string     `json:"zfsDatasetBase"`
	Projects       []Project  `json:"projects"`
	Snapshots      []Snapshot `json:"snapshots"`
}
