// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"github.com/stratastor/pgbranch/config"
	"github.com/stratastor/pgbranch/internal/common"
	"github.com/stratastor/pgbranch/pkg/docker"
	"github.com/stratastor/pgbranch/pkg/state"
	"github.com/stratastor/pgbranch/pkg/zfs/command"
)

// Bootstrap wires the engine with the real collaborators: the catalog
// under the user's data directory, the zfs shell-out driver and the
// local container runtime.
func Bootstrap(cfg *config.Config) (*Manager, error) {
	logCfg := config.NewLoggerConfig(cfg)

	statePath, err := common.StatePath()
	if err != nil {
		return nil, err
	}
	store, err := state.NewStore(statePath, logCfg)
	if err != nil {
		return nil, err
	}

	executor := command.NewCommandExecutor(cfg.ZFS.UseSudo, logCfg)
	storage := NewZFSStorage(executor)

	containers, err := docker.NewClient(logCfg)
	if err != nil {
		return nil, err
	}

	return NewManager(store, storage, containers, cfg)
}
