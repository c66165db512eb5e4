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

package dataset

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/stratastor/pgbranch/pkg/errors"
	"github.com/stratastor/pgbranch/pkg/zfs/command"
	"github.com/stratastor/pgbranch/pkg/zfs/common"
)

// Manager handles ZFS dataset operations
type Manager struct {
	executor command.Executor
}

func NewManager(executor command.Executor) *Manager {
	return &Manager{executor: executor}
}

// CreateFilesystem creates a new ZFS filesystem
func (m *Manager) CreateFilesystem(ctx context.Context, cfg FilesystemConfig) error {
	if err := common.DatasetNameCheck(cfg.Name); err != nil {
		return err
	}

	args := []string{"create"}

	if cfg.Parents {
		args = append(args, "-p")
	}
	if cfg.DoNotMount {
		args = append(args, "-u")
	}

	for k, v := range cfg.Properties {
		quotedValue := shellquote.Join(v)
		args = append(args, "-o", fmt.Sprintf("%s=%s", k, quotedValue))
	}

	args = append(args, cfg.Name)

	opts := command.CommandOptions{}

	out, err := m.executor.Execute(ctx, opts, "zfs create", args...)
	if err != nil {
		if len(out) > 0 {
			return errors.Wrap(err, errors.ZFSDatasetCreate).
				WithMetadata("output", string(out))
		}
		return errors.Wrap(err, errors.ZFSDatasetCreate)
	}

	return nil
}

// Destroy removes a dataset
func (m *Manager) Destroy(ctx context.Context, dc DestroyConfig) error {
	args := []string{"destroy"}

	if dc.RecursiveDestroyChildren {
		args = append(args, "-r")
	}
	if dc.Force {
		args = append(args, "-f")
	}

	args = append(args, dc.Name)

	opts := command.CommandOptions{}

	out, err := m.executor.Execute(ctx, opts, "zfs destroy", args...)
	if err != nil {
		if len(out) > 0 {
			return errors.Wrap(err, errors.ZFSDatasetDestroy).
				WithMetadata("output", string(out))
		}
		return errors.Wrap(err, errors.ZFSDatasetDestroy)
	}

	return nil
}

// CreateSnapshot creates a new ZFS snapshot
func (m *Manager) CreateSnapshot(ctx context.Context, cfg SnapshotConfig) error {
	snapStr := fmt.Sprintf("%s@%s", cfg.Name, cfg.SnapName)
	if err := common.SnapshotNameCheck(snapStr); err != nil {
		return err
	}

	args := []string{"snapshot", snapStr}

	opts := command.CommandOptions{}
	out, err := m.executor.Execute(ctx, opts, "zfs snapshot", args...)
	if err != nil {
		if len(out) > 0 {
			return errors.Wrap(err, errors.ZFSSnapshotFailed).
				WithMetadata("output", string(out))
		}
		return errors.Wrap(err, errors.ZFSSnapshotFailed)
	}

	return nil
}

// DestroySnapshot removes a snapshot by its full reference (dataset@snap).
func (m *Manager) DestroySnapshot(ctx context.Context, fullRef string) error {
	if err := common.SnapshotNameCheck(fullRef); err != nil {
		return err
	}

	args := []string{"destroy", fullRef}

	out, err := m.executor.Execute(ctx, command.CommandOptions{}, "zfs destroy", args...)
	if err != nil {
		if len(out) > 0 {
			return errors.Wrap(err, errors.ZFSSnapshotDestroy).
				WithMetadata("output", string(out))
		}
		return errors.Wrap(err, errors.ZFSSnapshotDestroy)
	}

	return nil
}

// Clone creates a clone from a snapshot
func (m *Manager) Clone(ctx context.Context, cfg CloneConfig) error {
	if err := common.SnapshotNameCheck(cfg.Name); err != nil {
		return err
	}
	if err := common.DatasetNameCheck(cfg.CloneName); err != nil {
		return err
	}

	args := []string{"clone"}

	if cfg.Parents {
		args = append(args, "-p")
	}

	for k, v := range cfg.Properties {
		quotedValue := shellquote.Join(v)
		args = append(args, "-o", fmt.Sprintf("%s=%s", k, quotedValue))
	}

	args = append(args, cfg.Name, cfg.CloneName)

	opts := command.CommandOptions{}
	out, err := m.executor.Execute(ctx, opts, "zfs clone", args...)
	if err != nil {
		if len(out) > 0 {
			return errors.Wrap(err, errors.ZFSCloneError).
				WithMetadata("output", string(out))
		}
		return errors.Wrap(err, errors.ZFSCloneError)
	}

	return nil
}

// Exists checks if a dataset or snapshot exists
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	args := []string{"list", "-H"}

	if strings.Contains(name, "@") {
		args = append(args, "-t", "snapshot")
	}

	args = append(args, name)

	opts := command.CommandOptions{}
	_, err := m.executor.Execute(ctx, opts, "zfs list", args...)
	if err != nil {
		if strings.Contains(errors.Stderr(err), "does not exist") {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ZFSDatasetList)
	}

	return true, nil
}

// GetProperty reads a single property value in parsable form.
func (m *Manager) GetProperty(ctx context.Context, cfg PropertyConfig) (string, error) {
	args := []string{"get", "-H", "-p", "-o", "value", cfg.Property, cfg.Name}

	out, err := m.executor.Execute(ctx, command.CommandOptions{}, "zfs get", args...)
	if err != nil {
		if strings.Contains(errors.Stderr(err), "does not exist") {
			return "", errors.New(errors.ZFSDatasetNotFound,
				fmt.Sprintf("dataset %s not found", cfg.Name))
		}
		return "", errors.Wrap(err, errors.ZFSDatasetGetProperty)
	}

	value := strings.TrimSpace(string(out))
	if value == "" || value == "-" {
		return "", errors.New(errors.ZFSDatasetGetProperty,
			fmt.Sprintf("property %s not set on %s", cfg.Property, cfg.Name))
	}

	return value, nil
}

// GetPropertyBytes reads a numeric property (used, referenced, ...) as bytes.
func (m *Manager) GetPropertyBytes(ctx context.Context, name, property string) (int64, error) {
	value, err := m.GetProperty(ctx, PropertyConfig{
		NameConfig: NameConfig{Name: name},
		Property:   property,
	})
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, errors.CommandOutputParse).
			WithMetadata("property", property).
			WithMetadata("value", value)
	}

	return n, nil
}

// GetMountpoint returns the absolute mountpoint of a dataset.
func (m *Manager) GetMountpoint(ctx context.Context, name string) (string, error) {
	value, err := m.GetProperty(ctx, PropertyConfig{
		NameConfig: NameConfig{Name: name},
		Property:   "mountpoint",
	})
	if err != nil {
		return "", err
	}

	if !strings.HasPrefix(value, "/") {
		return "", errors.New(errors.ZFSDatasetGetProperty,
			fmt.Sprintf("dataset %s is not mounted at a path: %s", name, value))
	}

	return value, nil
}
