package devnet

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const managedLabel = "com.compose-network.contract-deployer"

type (
	// ContainerSpec describes a detached container publishing one TCP port on loopback.
	ContainerSpec struct {
		Name          string
		Image         string
		Cmd           []string
		ContainerPort int
		HostPort      int
	}

	DockerClient struct {
		cli    *client.Client
		logger *slog.Logger
	}
)

// NewDockerClient creates a Docker client from the environment.
func NewDockerClient() (*DockerClient, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}

	return &DockerClient{cli: cli, logger: logger.Named("docker_client")}, nil
}

func (c *DockerClient) Close() error {
	return c.cli.Close()
}

// ImageExists checks if a Docker image exists locally.
func (c *DockerClient) ImageExists(ctx context.Context, imageName string) (bool, error) {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, imageName)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

// PullImage pulls a Docker image from a registry.
func (c *DockerClient) PullImage(ctx context.Context, imageName string) error {
	c.logger.With("image", imageName).Info("pulling docker image")

	resp, err := c.cli.ImagePull(ctx, imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer resp.Close()

	scanner := bufio.NewScanner(resp)
	var pullError error
	for scanner.Scan() {
		line := scanner.Text()
		c.logger.Debug(line)

		var msg struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal([]byte(line), &msg); err == nil && msg.Error != "" {
			pullError = fmt.Errorf("pull failed: %s", msg.Error)
			c.logger.Error("docker pull error", "error", msg.Error)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading pull output: %w", err)
	}
	if pullError != nil {
		return pullError
	}

	c.logger.With("image", imageName).Info("docker image pulled successfully")
	return nil
}

// ContainerState reports whether a container named name exists and whether it is running.
func (c *DockerClient) ContainerState(ctx context.Context, name string) (exists, running bool, err error) {
	inspect, err := c.cli.ContainerInspect(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to inspect container %s: %w", name, err)
	}

	return true, inspect.State != nil && inspect.State.Running, nil
}

// StartContainer creates and starts spec detached and returns the container id.
func (c *DockerClient) StartContainer(ctx context.Context, spec ContainerSpec) (string, error) {
	port, err := nat.NewPort("tcp", strconv.Itoa(spec.ContainerPort))
	if err != nil {
		return "", fmt.Errorf("invalid container port %d: %w", spec.ContainerPort, err)
	}

	config := &container.Config{
		Image:        spec.Image,
		Cmd:          spec.Cmd,
		ExposedPorts: nat.PortSet{port: struct{}{}},
		Labels:       map[string]string{managedLabel: "devnet"},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(spec.HostPort)}},
		},
	}

	resp, err := c.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create container: %w", err)
	}

	if err := c.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = c.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return "", fmt.Errorf("failed to start container: %w", err)
	}

	c.logger.
		With("name", spec.Name).
		With("id", resp.ID).
		Info("container started")

	return resp.ID, nil
}

// RemoveContainer force-removes the container named name. A missing container is not an error.
func (c *DockerClient) RemoveContainer(ctx context.Context, name string) error {
	err := c.cli.ContainerRemove(ctx, name, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("failed to remove container %s: %w", name, err)
	}

	return nil
}
