// Package devnet runs a local anvil node in Docker for development deployments.
package devnet

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/logger"
)

const (
	anvilPort      = 8545
	rpcWaitAttempt = time.Second
	rpcAttempts    = 60
)

type (
	Engine interface {
		ImageExists(ctx context.Context, imageName string) (bool, error)
		PullImage(ctx context.Context, imageName string) error
		ContainerState(ctx context.Context, name string) (exists, running bool, err error)
		StartContainer(ctx context.Context, spec ContainerSpec) (string, error)
		RemoveContainer(ctx context.Context, name string) error
	}

	// RPCWaiter blocks until the node at url answers.
	RPCWaiter func(ctx context.Context, url string, attempts int, interval time.Duration) error

	Service struct {
		engine  Engine
		cfg     configs.Devnet
		waitRPC RPCWaiter
		logger  *slog.Logger
	}
)

func NewService(engine Engine, cfg configs.Devnet, waitRPC RPCWaiter) *Service {
	return &Service{
		engine:  engine,
		cfg:     cfg,
		waitRPC: waitRPC,
		logger:  logger.Named("devnet"),
	}
}

func (s *Service) RPCURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.cfg.Port)
}

// Start makes sure the anvil container is running and serving RPC. It returns the RPC url.
func (s *Service) Start(ctx context.Context) (string, error) {
	log := s.logger.With("container", s.cfg.ContainerName)

	exists, running, err := s.engine.ContainerState(ctx, s.cfg.ContainerName)
	if err != nil {
		return "", err
	}
	if running {
		log.Info("devnet is already running")
		return s.RPCURL(), s.waitRPC(ctx, s.RPCURL(), rpcAttempts, rpcWaitAttempt)
	}
	if exists {
		log.Info("removing stopped devnet container")
		if err := s.engine.RemoveContainer(ctx, s.cfg.ContainerName); err != nil {
			return "", err
		}
	}

	present, err := s.engine.ImageExists(ctx, s.cfg.Image)
	if err != nil {
		return "", fmt.Errorf("failed to inspect image %s: %w", s.cfg.Image, err)
	}
	if !present {
		if err := s.engine.PullImage(ctx, s.cfg.Image); err != nil {
			return "", err
		}
	}

	if _, err := s.engine.StartContainer(ctx, ContainerSpec{
		Name:          s.cfg.ContainerName,
		Image:         s.cfg.Image,
		Cmd:           []string{s.anvilCommand()},
		ContainerPort: anvilPort,
		HostPort:      s.cfg.Port,
	}); err != nil {
		return "", err
	}

	log.With("url", s.RPCURL()).Info("waiting for devnet RPC")
	if err := s.waitRPC(ctx, s.RPCURL(), rpcAttempts, rpcWaitAttempt); err != nil {
		return "", fmt.Errorf("devnet did not become ready: %w", err)
	}

	log.With("url", s.RPCURL()).With("chain_id", s.cfg.ChainID).Info("devnet is ready")

	return s.RPCURL(), nil
}

func (s *Service) Stop(ctx context.Context) error {
	if err := s.engine.RemoveContainer(ctx, s.cfg.ContainerName); err != nil {
		return err
	}

	s.logger.With("container", s.cfg.ContainerName).Info("devnet stopped")

	return nil
}

// anvilCommand is a single shell string since the foundry image's entrypoint is /bin/sh -c.
func (s *Service) anvilCommand() string {
	args := []string{"anvil", "--host", "0.0.0.0", "--port", strconv.Itoa(anvilPort)}
	if s.cfg.ChainID != 0 {
		args = append(args, "--chain-id", strconv.FormatUint(s.cfg.ChainID, 10))
	}
	if s.cfg.BlockTime > 0 {
		args = append(args, "--block-time", strconv.Itoa(s.cfg.BlockTime))
	}

	return strings.Join(args, " ")
}
