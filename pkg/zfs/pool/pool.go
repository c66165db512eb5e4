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

package pool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stratastor/pgbranch/pkg/errors"
	"github.com/stratastor/pgbranch/pkg/zfs/command"
	"github.com/stratastor/pgbranch/pkg/zfs/common"
)

// Manager manages ZFS pool queries.
type Manager struct {
	executor command.Executor
}

func NewManager(executor command.Executor) *Manager {
	return &Manager{executor: executor}
}

// statusFields is the column order requested from zpool list.
const statusFields = "name,health,size,alloc,free"

// List returns the names of all imported pools.
func (p *Manager) List(ctx context.Context) ([]string, error) {
	args := []string{"list", "-H", "-o", "name"}

	out, err := p.executor.Execute(ctx, command.CommandOptions{}, "zpool list", args...)
	if err != nil {
		if strings.Contains(errors.Stderr(err), "no pools available") {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ZFSPoolList)
	}

	var pools []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			pools = append(pools, line)
		}
	}
	return pools, nil
}

// Status returns health and capacity of the named pool.
func (p *Manager) Status(ctx context.Context, name string) (Status, error) {
	if err := common.PoolNameCheck(name); err != nil {
		return Status{}, err
	}

	args := []string{"list", "-H", "-p", "-o", statusFields, name}

	out, err := p.executor.Execute(ctx, command.CommandOptions{}, "zpool list", args...)
	if err != nil {
		if strings.Contains(errors.Stderr(err), "no such pool") {
			return Status{}, errors.New(errors.ZFSPoolNotFound,
				fmt.Sprintf("pool %s not found", name))
		}
		return Status{}, errors.Wrap(err, errors.ZFSPoolStatus)
	}

	return parseStatusLine(string(out))
}

func parseStatusLine(out string) (Status, error) {
	line := strings.TrimSpace(out)
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return Status{}, errors.New(errors.CommandOutputParse,
			"unexpected zpool list output: "+line)
	}

	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Status{}, errors.Wrap(err, errors.CommandOutputParse)
	}
	alloc, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Status{}, errors.Wrap(err, errors.CommandOutputParse)
	}
	free, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return Status{}, errors.Wrap(err, errors.CommandOutputParse)
	}

	return Status{
		Name:      fields[0],
		Health:    fields[1],
		Size:      size,
		Allocated: alloc,
		Free:      free,
	}, nil
}
