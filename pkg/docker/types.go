// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package docker

import "time"

// CreateConfig describes a PostgreSQL container to create. Port 0 lets
// the runtime assign a free host port.
type CreateConfig struct {
	Name           string
	Image          string
	Port           int
	DataPath       string
	WALArchivePath string
	Username       string
	Password       string
	Database       string
}

// ContainerStatus is the observed state of a container.
type ContainerStatus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	State     string    `json:"state"`  // created, running, exited, ...
	Health    string    `json:"health"` // healthy, unhealthy, starting, none
	StartedAt time.Time `json:"startedAt"`
}

// Running reports whether the container process is up.
func (s ContainerStatus) Running() bool {
	return s.State == "running"
}
