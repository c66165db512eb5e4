// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package naming holds the deterministic translation from project and
// branch names to container names, dataset names and snapshot references.
// Everything here is a pure function; drivers and the engine never build
// these strings themselves.
package naming

import (
	"strings"
	"time"

	"github.com/stratastor/pgbranch/internal/constants"
	"github.com/stratastor/pgbranch/pkg/errors"
)

// Canonicalize lowercases a name and replaces every character outside
// [a-z0-9-] with '-'. Leading/trailing dashes are trimmed so the result
// is a valid dataset component.
func Canonicalize(name string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(name) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-':
			b.WriteRune(c)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

// IsCanonical reports whether a name is already in canonical form.
func IsCanonical(name string) bool {
	return name != "" && name == Canonicalize(name)
}

// ContainerName returns the container name for a branch:
// <prefix>-<project>-<branch-leaf>.
func ContainerName(project, branch string) string {
	return constants.ToolPrefix + "-" + project + "-" + branch
}

// DatasetName returns the dataset leaf name for a branch:
// <project>-<branch-leaf>.
func DatasetName(project, branch string) string {
	return project + "-" + branch
}

// DatasetPath returns the full dataset path <pool>/<base>/<leaf>.
func DatasetPath(pool, base, project, branch string) string {
	return pool + "/" + base + "/" + DatasetName(project, branch)
}

// DatasetPathFromLeaf joins an already-formed leaf under the pool/base.
func DatasetPathFromLeaf(pool, base, leaf string) string {
	return pool + "/" + base + "/" + leaf
}

// SnapshotRef returns the full snapshot reference <datasetPath>@<snap>.
func SnapshotRef(datasetPath, snapName string) string {
	return datasetPath + "@" + snapName
}

// SnapshotName formats a snapshot name from a timestamp and an optional
// label: YYYY-MM-DDTHH-MM-SS[-<label>]. Colons are replaced with dashes
// so names sort lexically and stay valid ZFS components.
func SnapshotName(t time.Time, label string) string {
	name := t.UTC().Format("2006-01-02T15-04-05")
	if label != "" {
		name += "-" + Canonicalize(label)
	}
	return name
}

// SplitNamespace splits "<project>/<branch>" into its parts.
func SplitNamespace(namespace string) (project, branch string, err error) {
	parts := strings.Split(namespace, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New(errors.EngineInvalidInput,
			"expected <project>/<branch>, got "+namespace)
	}
	return parts[0], parts[1], nil
}

// Namespace joins a project and branch leaf into the qualified name.
func Namespace(project, branch string) string {
	return project + "/" + branch
}

// BranchLeaf extracts the branch leaf from a qualified branch name:
// "demo/dev" yields "dev".
func BranchLeaf(namespace string) string {
	if i := strings.IndexByte(namespace, '/'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}
