/*
 * Copyright 2024-2025 Raamsri Kumar <raam@tinkershack.in>
 * Copyright 2024-2025 The StrataSTOR Authors and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package common

import (
	"strings"

	"github.com/stratastor/pgbranch/pkg/errors"
)

// Adapted from ZFS name validation functions from OpenZFS: zfs_namecheck.c

const (
	MaxDatasetNameLen = 256 // ZFS_MAX_DATASET_NAME_LEN
)

// isValidChar follows the valid_char() function logic
func isValidChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == ':'
}

// ComponentNameCheck validates a single path component (no '/', '@', '#').
func ComponentNameCheck(name string) error {
	if len(name) >= MaxDatasetNameLen {
		return errors.New(errors.ZFSNameInvalid, "component name too long: "+name)
	}
	if len(name) == 0 {
		return errors.New(errors.ZFSNameInvalid, "component name empty")
	}
	for _, c := range name {
		if !isValidChar(c) {
			return errors.New(errors.ZFSNameInvalid, "invalid character in component name: "+name)
		}
	}
	return nil
}

// DatasetNameCheck validates a full dataset path (pool/base/leaf).
func DatasetNameCheck(path string) error {
	if len(path) >= MaxDatasetNameLen {
		return errors.New(errors.ZFSNameInvalid, "name too long: "+path)
	}
	if len(path) == 0 {
		return errors.New(errors.ZFSNameInvalid, "name empty")
	}
	if path[0] == '/' {
		return errors.New(errors.ZFSNameInvalid, "name cannot start with '/': "+path)
	}
	if path[len(path)-1] == '/' {
		return errors.New(errors.ZFSNameInvalid, "trailing slash: "+path)
	}
	if strings.ContainsAny(path, "@#") {
		return errors.New(errors.ZFSNameInvalid, "dataset name cannot contain '@' or '#': "+path)
	}
	for _, component := range strings.Split(path, "/") {
		if err := ComponentNameCheck(component); err != nil {
			return err
		}
	}
	return nil
}

// SnapshotNameCheck validates a full snapshot reference (dataset@snap).
func SnapshotNameCheck(path string) error {
	if strings.Count(path, "@") != 1 {
		return errors.New(errors.ZFSNameInvalid, "snapshot name must contain exactly one '@': "+path)
	}
	parts := strings.SplitN(path, "@", 2)
	if err := DatasetNameCheck(parts[0]); err != nil {
		return err
	}
	return ComponentNameCheck(parts[1])
}

// PoolNameCheck validates a pool name; pools must begin with a letter.
func PoolNameCheck(name string) error {
	if err := ComponentNameCheck(name); err != nil {
		return err
	}
	c := name[0]
	if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') {
		return errors.New(errors.ZFSNameInvalid, "pool name must begin with a letter: "+name)
	}
	// Reserved prefixes per zpool(8)
	for _, reserved := range []string{"mirror", "raidz", "draid", "spare", "log"} {
		if strings.HasPrefix(name, reserved) {
			return errors.New(errors.ZFSNameInvalid, "pool name uses a reserved prefix: "+name)
		}
	}
	return nil
}
