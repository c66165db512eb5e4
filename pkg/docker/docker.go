// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package docker drives the local OCI daemon for branch containers:
// image pulls, container lifecycle, health polling, host-port
// introspection and in-container psql execution.
package docker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/stratastor/logger"

	"github.com/stratastor/pgbranch/internal/constants"
	"github.com/stratastor/pgbranch/pkg/errors"
)

const healthPollInterval = 500 * time.Millisecond

// Client wraps the Docker API client.
type Client struct {
	cli    *client.Client
	logger logger.Logger
}

// NewClient connects to the local daemon using the environment's
// configuration (DOCKER_HOST etc.).
func NewClient(logConfig logger.Config) (*Client, error) {
	l, err := logger.NewTag(logConfig, "docker")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, errors.Wrap(err, errors.DockerConnect)
	}

	return &Client{cli: cli, logger: l}, nil
}

// ImageExists reports whether an image is present locally.
func (c *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.DockerImageInspect)
	}
	return true, nil
}

// PullImage pulls an image, draining the progress stream.
func (c *Client) PullImage(ctx context.Context, ref string) error {
	c.logger.Info("Pulling image", "ref", ref)

	reader, err := c.cli.ImagePull(ctx, ref, types.ImagePullOptions{})
	if err != nil {
		return errors.Wrap(err, errors.DockerImagePull).WithMetadata("image", ref)
	}
	defer reader.Close()

	// The pull only completes once the stream is consumed.
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return errors.Wrap(err, errors.DockerImagePull).WithMetadata("image", ref)
	}

	return nil
}

// CreateContainer creates (but does not start) a PostgreSQL container
// with the dataset mounted as the data directory and the WAL archive
// directory bound in. Returns the container id.
func (c *Client) CreateContainer(ctx context.Context, cfg CreateConfig) (string, error) {
	hostPort := ""
	if cfg.Port > 0 {
		hostPort = strconv.Itoa(cfg.Port)
	}

	hostConfig := &container.HostConfig{
		Binds: []string{
			fmt.Sprintf("%s:%s", cfg.DataPath, constants.PostgresDataDir),
			fmt.Sprintf("%s:%s", cfg.WALArchivePath, constants.PostgresWALMount),
		},
		PortBindings: nat.PortMap{
			nat.Port(constants.PostgresPort): []nat.PortBinding{{
				HostIP:   "127.0.0.1",
				HostPort: hostPort,
			}},
		},
		RestartPolicy: container.RestartPolicy{Name: "unless-stopped"},
	}

	config := &container.Config{
		Image: cfg.Image,
		Env: []string{
			"POSTGRES_USER=" + cfg.Username,
			"POSTGRES_PASSWORD=" + cfg.Password,
			"POSTGRES_DB=" + cfg.Database,
		},
		Healthcheck: &container.HealthConfig{
			Test:     []string{"CMD-SHELL", fmt.Sprintf("pg_isready -U %s -d %s", cfg.Username, cfg.Database)},
			Interval: 2 * time.Second,
			Timeout:  3 * time.Second,
			Retries:  5,
		},
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, cfg.Name)
	if err != nil {
		return "", errors.Wrap(err, errors.DockerContainerCreate).
			WithMetadata("name", cfg.Name)
	}

	c.logger.Debug("Created container", "name", cfg.Name, "id", resp.ID)
	return resp.ID, nil
}

// StartContainer starts a created container.
func (c *Client) StartContainer(ctx context.Context, id string) error {
	if err := c.cli.ContainerStart(ctx, id, types.ContainerStartOptions{}); err != nil {
		return errors.Wrap(err, errors.DockerContainerStart).WithMetadata("id", id)
	}
	return nil
}

// StopContainer stops a container, waiting up to timeout for a clean exit.
func (c *Client) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	seconds := int(timeout.Seconds())
	if err := c.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return errors.Wrap(err, errors.DockerContainerStop).WithMetadata("id", id)
	}
	return nil
}

// RemoveContainer removes a container. Absent containers are not an error.
func (c *Client) RemoveContainer(ctx context.Context, id string) error {
	err := c.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true})
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return errors.Wrap(err, errors.DockerContainerRemove).WithMetadata("id", id)
	}
	return nil
}

// WaitForHealthy polls the container health check until it reports
// healthy or the timeout elapses.
func (c *Client) WaitForHealthy(ctx context.Context, id string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		inspect, err := c.cli.ContainerInspect(ctx, id)
		if err != nil {
			return errors.Wrap(err, errors.DockerContainerInspect).WithMetadata("id", id)
		}

		if inspect.State != nil {
			if inspect.State.Health != nil && inspect.State.Health.Status == "healthy" {
				return nil
			}
			if inspect.State.Status == "exited" || inspect.State.Status == "dead" {
				return errors.New(errors.DockerUnhealthy,
					fmt.Sprintf("container exited before becoming healthy (status %s)", inspect.State.Status)).
					WithMetadata("id", id)
			}
		}

		if time.Now().After(deadline) {
			return errors.New(errors.DockerUnhealthy,
				fmt.Sprintf("container not healthy after %s", timeout)).
				WithMetadata("id", id)
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.DockerUnhealthy)
		case <-time.After(healthPollInterval):
		}
	}
}

// GetContainerByName returns the id of the container with the exact
// name, or "" when absent.
func (c *Client) GetContainerByName(ctx context.Context, name string) (string, error) {
	containers, err := c.cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return "", errors.Wrap(err, errors.DockerContainerList)
	}

	// The name filter matches substrings; require an exact match.
	for _, cont := range containers {
		for _, n := range cont.Names {
			if strings.TrimPrefix(n, "/") == name {
				return cont.ID, nil
			}
		}
	}
	return "", nil
}

// GetContainerStatus returns the observed state of a container.
func (c *Client) GetContainerStatus(ctx context.Context, id string) (ContainerStatus, error) {
	inspect, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ContainerStatus{}, errors.New(errors.DockerContainerNotFound, id)
		}
		return ContainerStatus{}, errors.Wrap(err, errors.DockerContainerInspect).WithMetadata("id", id)
	}

	status := ContainerStatus{
		ID:     inspect.ID,
		Name:   strings.TrimPrefix(inspect.Name, "/"),
		Health: "none",
	}
	if inspect.State != nil {
		status.State = inspect.State.Status
		if inspect.State.Health != nil {
			status.Health = inspect.State.Health.Status
		}
		if t, err := time.Parse(time.RFC3339Nano, inspect.State.StartedAt); err == nil {
			status.StartedAt = t
		}
	}

	return status, nil
}

// GetContainerPort returns the host port bound to PostgreSQL's 5432.
func (c *Client) GetContainerPort(ctx context.Context, id string) (int, error) {
	inspect, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return 0, errors.Wrap(err, errors.DockerContainerInspect).WithMetadata("id", id)
	}

	if inspect.NetworkSettings == nil {
		return 0, errors.New(errors.DockerPortUnavailable, "container has no network settings")
	}

	bindings := inspect.NetworkSettings.Ports[nat.Port(constants.PostgresPort)]
	for _, binding := range bindings {
		if binding.HostPort == "" {
			continue
		}
		port, err := strconv.Atoi(binding.HostPort)
		if err != nil {
			continue
		}
		return port, nil
	}

	return 0, errors.New(errors.DockerPortUnavailable,
		"no host port bound for "+constants.PostgresPort).WithMetadata("id", id)
}

// ExecSQL runs a single SQL statement inside the container via psql and
// fails if psql exits non-zero.
func (c *Client) ExecSQL(ctx context.Context, id, sql, user string) error {
	execResp, err := c.cli.ContainerExecCreate(ctx, id, types.ExecConfig{
		User:         "postgres",
		Cmd:          []string{"psql", "-U", user, "-c", sql},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return errors.Wrap(err, errors.DockerExecFailed).WithMetadata("sql", sql)
	}

	attach, err := c.cli.ContainerExecAttach(ctx, execResp.ID, types.ExecStartCheck{})
	if err != nil {
		return errors.Wrap(err, errors.DockerExecFailed).WithMetadata("sql", sql)
	}
	defer attach.Close()

	output, _ := io.ReadAll(attach.Reader)

	inspect, err := c.cli.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return errors.Wrap(err, errors.DockerExecFailed).WithMetadata("sql", sql)
	}
	if inspect.ExitCode != 0 {
		return errors.New(errors.DockerExecFailed,
			fmt.Sprintf("psql exited with code %d", inspect.ExitCode)).
			WithMetadata("sql", sql).
			WithMetadata("stderr", string(output))
	}

	return nil
}
