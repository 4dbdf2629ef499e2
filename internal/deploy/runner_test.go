package deploy

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/artifacts"
	"github.com/compose-network/contract-deployer/internal/catalog"
	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/compose-network/contract-deployer/internal/network"
	"github.com/compose-network/contract-deployer/internal/records"
	"github.com/compose-network/contract-deployer/internal/resolver"
	"github.com/compose-network/contract-deployer/internal/verify"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	localhost = network.Profile{Name: "localhost", ChainID: 31337, IsDevelopment: true}
	sepolia   = network.Profile{Name: "sepolia", ChainID: 11155111}
)

type fakeDeployer struct {
	fail     map[string]error
	requests []contracts.Request
	next     byte
}

func (f *fakeDeployer) Deploy(_ context.Context, req contracts.Request) (contracts.Result, error) {
	f.requests = append(f.requests, req)
	if err := f.fail[req.ContractName]; err != nil {
		return contracts.Result{}, err
	}

	f.next++
	result := contracts.Result{
		Address:     common.BytesToAddress([]byte{f.next}),
		TxHash:      common.BytesToHash([]byte{f.next}),
		BlockNumber: uint64(f.next),
		EncodedArgs: []byte{f.next},
	}
	if req.Proxy != nil {
		impl := common.BytesToAddress([]byte{0xf0, f.next})
		result.Implementation = &impl
	}
	if req.Outputs != nil {
		result.Outputs = make(map[string]common.Address)
		for i, field := range req.Outputs.Fields {
			result.Outputs[field] = common.BytesToAddress([]byte{f.next, byte(i + 1)})
		}
	}

	return result, nil
}

func (f *fakeDeployer) request(name string) (contracts.Request, bool) {
	for _, req := range f.requests {
		if req.ContractName == name {
			return req, true
		}
	}
	return contracts.Request{}, false
}

type fakeVerifier struct {
	err      error
	requests []verify.Request
}

func (f *fakeVerifier) Verify(_ context.Context, req verify.Request) error {
	f.requests = append(f.requests, req)
	return f.err
}

type fakeHistory struct {
	written []records.Record
}

func (f *fakeHistory) Write(record records.Record) error {
	f.written = append(f.written, record)
	return nil
}

type anyArtifact struct{}

func (anyArtifact) Get(name string) (artifacts.Artifact, error) {
	return artifacts.Artifact{Name: name}, nil
}

type pipeline struct {
	runner   *Runner
	deployer *fakeDeployer
	verifier *fakeVerifier
	history  *fakeHistory
	registry *records.Registry
}

func newPipeline(t *testing.T, apiKey string) pipeline {
	t.Helper()

	cfg, err := configs.DefaultConfig()
	require.NoError(t, err)
	cat, err := catalog.FromConfig(cfg)
	require.NoError(t, err)
	table, err := network.LoadDependencyTable(cfg.Dependencies)
	require.NoError(t, err)

	opts := resolver.OptionsFromConfig(cfg)
	opts.ExplorerAPIKey = apiKey

	p := pipeline{
		deployer: &fakeDeployer{fail: map[string]error{}},
		verifier: &fakeVerifier{},
		history:  &fakeHistory{},
		registry: records.NewRegistry(),
	}
	p.runner = NewRunner(cat, resolver.New(cat, table, p.registry, opts), p.deployer, p.verifier, anyArtifact{}, p.history, p.registry)

	return p
}

func names(list []records.Record) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ContractName)
	}
	return out
}

func TestRunDevelopmentDeploysMocksFirst(t *testing.T) {
	p := newPipeline(t, "key")

	report, err := p.runner.Run(context.Background(), localhost, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"MockV3Aggregator", "CCIPLocalSimulator", "FundMe", "MyToken",
		"NFTPoolLockAndRelease", "WrappedMyToken", "NFTPoolBurnAndMint", "MyContract",
	}, names(report.Deployed))
	assert.Empty(t, report.Skipped)
	assert.Empty(t, p.verifier.requests, "development networks never verify")
	assert.Len(t, p.history.written, 8)

	mock, ok := p.registry.Get("MockV3Aggregator")
	require.True(t, ok)
	fundMe, ok := p.deployer.request("FundMe")
	require.True(t, ok)
	assert.Equal(t, []any{"360", mock.Address}, fundMe.ConstructorArgs)
	assert.Zero(t, fundMe.Confirmations)

	simulator, ok := p.registry.Get("CCIPLocalSimulator")
	require.True(t, ok)
	burnAndMint, ok := p.deployer.request("NFTPoolBurnAndMint")
	require.True(t, ok)
	assert.Equal(t, simulator.Outputs["destinationRouter_"], burnAndMint.ConstructorArgs[0])
	assert.Equal(t, simulator.Outputs["linkToken_"], burnAndMint.ConstructorArgs[1])

	myContract, ok := p.deployer.request("MyContract")
	require.True(t, ok)
	require.NotNil(t, myContract.Proxy)
	assert.Equal(t, "ERC1967Proxy", myContract.Proxy.Artifact.Name)
	assert.Equal(t, "initialize", myContract.Proxy.Initializer)
	assert.Equal(t, "MyContractV1", myContract.Artifact.Name)
}

func TestRunPublicNetworkSkipsMocksAndSurvivesVerificationFailure(t *testing.T) {
	p := newPipeline(t, "key")
	p.verifier.err = &verify.VerificationFailure{Contract: "FundMe", Err: errors.New("context deadline exceeded")}

	report, err := p.runner.Run(context.Background(), sepolia, nil)
	require.NoError(t, err, "verification failures never fail a run")

	assert.Equal(t, []string{"MockV3Aggregator", "CCIPLocalSimulator"}, report.Skipped)
	assert.Equal(t, []string{
		"FundMe", "MyToken", "NFTPoolLockAndRelease", "WrappedMyToken", "NFTPoolBurnAndMint", "MyContract",
	}, names(report.Deployed))
	assert.Len(t, report.Unverified, 6)
	assert.Len(t, p.verifier.requests, 6)

	for _, req := range p.deployer.requests {
		assert.Equal(t, uint64(5), req.Confirmations)
	}

	fundMe, _ := p.deployer.request("FundMe")
	assert.Equal(t, []any{"360", common.HexToAddress("0x694AA1769357215DE4FAC081bf1f309aDC325306")}, fundMe.ConstructorArgs)

	proxied, ok := p.registry.Get("MyContract")
	require.True(t, ok)
	last := p.verifier.requests[len(p.verifier.requests)-1]
	assert.Equal(t, *proxied.Implementation, last.Address, "the implementation is verified, not the proxy")
	assert.Equal(t, sepolia.ChainID, last.ChainID)
}

func TestRunWithoutAPIKeyDoesNotVerify(t *testing.T) {
	p := newPipeline(t, "")

	_, err := p.runner.Run(context.Background(), sepolia, []string{"fundme"})
	require.NoError(t, err)
	assert.Empty(t, p.verifier.requests)
}

func TestRunFailureBlocksOnlyDependents(t *testing.T) {
	p := newPipeline(t, "")
	p.deployer.fail["MyToken"] = errors.New("insufficient funds")

	report, err := p.runner.Run(context.Background(), localhost, nil)
	require.Error(t, err)

	assert.NotContains(t, names(report.Deployed), "MyToken")
	assert.NotContains(t, names(report.Deployed), "NFTPoolLockAndRelease")
	assert.Contains(t, names(report.Deployed), "FundMe")
	assert.Contains(t, names(report.Deployed), "NFTPoolBurnAndMint")

	_, attempted := p.deployer.request("NFTPoolLockAndRelease")
	assert.False(t, attempted)

	failed := report.FailedByContract()
	require.Len(t, failed, 2)
	assert.ErrorContains(t, failed["MyToken"], "insufficient funds")

	var blocked *BlockedError
	require.True(t, errors.As(failed["NFTPoolLockAndRelease"], &blocked))
	assert.Equal(t, "MyToken", blocked.Dependency)

	assert.ErrorContains(t, err, "MyToken: insufficient funds")
	assert.True(t, errors.As(err, &blocked))
}

func TestRunMockFailureBlocksPools(t *testing.T) {
	p := newPipeline(t, "")
	p.deployer.fail["CCIPLocalSimulator"] = errors.New("reverted")

	report, err := p.runner.Run(context.Background(), localhost, nil)
	require.Error(t, err)

	failed := report.FailedByContract()
	assert.Contains(t, failed, "NFTPoolLockAndRelease")
	assert.Contains(t, failed, "NFTPoolBurnAndMint")
	assert.Equal(t, []string{"MockV3Aggregator", "FundMe", "MyToken", "WrappedMyToken", "MyContract"}, names(report.Deployed))
}

func TestRunUnsupportedNetwork(t *testing.T) {
	p := newPipeline(t, "")

	report, err := p.runner.Run(context.Background(), network.Profile{Name: "mainnet", ChainID: 1}, nil)
	require.Error(t, err)

	var unsupported *network.UnsupportedNetworkError
	assert.True(t, errors.As(err, &unsupported))
	assert.Equal(t, uint64(1), unsupported.ChainID)

	assert.Empty(t, report.Deployed)
	assert.Empty(t, p.deployer.requests)
	assert.Equal(t, []string{"MockV3Aggregator", "CCIPLocalSimulator"}, report.Skipped)

	failed := report.FailedByContract()
	for _, name := range []string{"FundMe", "MyToken", "WrappedMyToken", "MyContract"} {
		require.Contains(t, failed, name)
		assert.True(t, errors.As(failed[name], &unsupported), name)
	}
	for _, name := range []string{"NFTPoolLockAndRelease", "NFTPoolBurnAndMint"} {
		var blocked *BlockedError
		require.Contains(t, failed, name)
		assert.True(t, errors.As(failed[name], &blocked), name)
	}
}

func TestRunTagsIncludeDependencies(t *testing.T) {
	p := newPipeline(t, "")

	report, err := p.runner.Run(context.Background(), localhost, []string{"sourcechain"})
	require.NoError(t, err)

	assert.Equal(t, []string{"CCIPLocalSimulator", "MyToken", "NFTPoolLockAndRelease"}, names(report.Deployed))
}

func TestRunCancelled(t *testing.T) {
	p := newPipeline(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := p.runner.Run(ctx, localhost, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Deployed)
	assert.Empty(t, p.deployer.requests)
}

func TestDryRun(t *testing.T) {
	cfg, err := configs.DefaultConfig()
	require.NoError(t, err)
	cat, err := catalog.FromConfig(cfg)
	require.NoError(t, err)
	table, err := network.LoadDependencyTable(cfg.Dependencies)
	require.NoError(t, err)

	registry := records.NewRegistry()
	runner := NewRunner(cat, resolver.New(cat, table, registry, resolver.OptionsFromConfig(cfg)), DryRunDeployer{}, nil, dryRunArtifacts{}, nil, registry)

	report, err := runner.Run(context.Background(), localhost, nil)
	require.NoError(t, err)
	require.Len(t, report.Plans, 8)

	var buf bytes.Buffer
	require.NoError(t, printPlans(&buf, report.Plans))
	assert.Contains(t, buf.String(), "contract: FundMe")
	assert.Contains(t, buf.String(), "- \"360\"")
}

func TestCatalogArtifacts(t *testing.T) {
	cfg, err := configs.DefaultConfig()
	require.NoError(t, err)
	cat, err := catalog.FromConfig(cfg)
	require.NoError(t, err)

	got := catalogArtifacts(cat)
	assert.Contains(t, got, "MyContractV1")
	assert.Contains(t, got, "ERC1967Proxy")
	assert.NotContains(t, got, "MyContract")
	assert.Len(t, got, 9)
}
