package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/artifacts"
	"github.com/compose-network/contract-deployer/internal/catalog"
	"github.com/compose-network/contract-deployer/internal/contracts"
	fsjson "github.com/compose-network/contract-deployer/internal/filesystem/json"
	"github.com/compose-network/contract-deployer/internal/network"
	"github.com/compose-network/contract-deployer/internal/records"
	"github.com/compose-network/contract-deployer/internal/resolver"
	"github.com/compose-network/contract-deployer/internal/verify"
	"github.com/ethereum/go-ethereum/ethclient"
)

// environment is what every command builds from the loaded configuration.
type environment struct {
	cfg       configs.Config
	profile   network.Profile
	catalog   *catalog.Catalog
	registry  *records.Registry
	resolver  *resolver.Resolver
	history   *records.History
	verifier  *verify.Verifier
	artifacts artifacts.Set
	client    *ethclient.Client
	deployer  *contracts.Deployer
}

func newEnvironment(cfg configs.Config) (*environment, error) {
	profile, err := network.ProfileFor(cfg, cfg.Network)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid contract catalog: %w", err)
	}

	table, err := network.LoadDependencyTable(cfg.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("invalid dependency table: %w", err)
	}

	registry := records.NewRegistry()

	slog.
		With("network", profile.Name).
		With("chain_id", profile.ChainID).
		With("development", profile.IsDevelopment).
		Info("network profile resolved")

	return &environment{
		cfg:      cfg,
		profile:  profile,
		catalog:  cat,
		registry: registry,
		resolver: resolver.New(cat, table, registry, resolver.OptionsFromConfig(cfg)),
		history:  records.NewHistory(cfg.Deployment.RecordsDir, fsjson.NewReader(), fsjson.NewWriter()),
		verifier: verify.NewVerifier(cfg.Verification, cfg.Secrets.EtherscanAPIKey),
	}, nil
}

func (e *environment) loadArtifacts() error {
	set, err := artifacts.Load(e.cfg.Deployment.ArtifactsDir)
	if err != nil {
		return err
	}
	e.artifacts = set

	return nil
}

// connect dials the network's RPC and prepares a deployer. Missing RPC urls and
// signing keys surface here, only when a transaction is about to be sent.
func (e *environment) connect(ctx context.Context) error {
	url, err := network.RPCURL(e.profile.Name, e.cfg.Networks[e.profile.Name])
	if err != nil {
		return err
	}

	key, err := network.SigningKey(e.profile, e.cfg.Secrets)
	if err != nil {
		return err
	}

	client, err := contracts.Dial(ctx, url, e.profile.ChainID)
	if err != nil {
		return err
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to get chain ID: %w", err)
	}

	e.client = client
	e.deployer = contracts.NewDeployer(client, key, chainID, contracts.Options{
		GasLimit:     e.cfg.Deployment.GasLimit,
		PollInterval: e.cfg.Deployment.PollInterval,
		Timeout:      e.cfg.Deployment.Timeout,
	})

	slog.
		With("url", url).
		With("from", e.deployer.From()).
		Info("connected to network")

	return nil
}

func (e *environment) Close() {
	if e.client != nil {
		e.client.Close()
	}
}
