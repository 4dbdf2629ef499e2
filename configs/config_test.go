package configs

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	require.NoError(t, err)

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "localhost", cfg.Network)
	assert.True(t, cfg.Networks["localhost"].Development)
	assert.Equal(t, uint64(11155111), cfg.Networks["sepolia"].ChainID)
	assert.Equal(t, uint64(5), cfg.Networks["sepolia"].Confirmations)
	assert.Equal(t, "0x694AA1769357215DE4FAC081bf1f309aDC325306", cfg.Dependencies["11155111"].Oracle)
	assert.Equal(t, "MockV3Aggregator", cfg.Mocks[DependencyOracle].Contract)
	assert.Equal(t, "linkToken_", cfg.Mocks[DependencyLinkToken].Output)

	require.NotEmpty(t, cfg.Contracts)
	assert.Equal(t, "MockV3Aggregator", cfg.Contracts[0].Name)
	assert.Equal(t, []string{"all", "mock"}, cfg.Contracts[0].Tags)
}

func TestLoad(t *testing.T) {
	t.Run("merges config file over defaults", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("network: sepolia\ndeployment:\n  records-dir: out/records\n"), 0o644))

		cfg, err := Load(viper.New(), path)
		require.NoError(t, err)

		assert.Equal(t, "sepolia", cfg.Network)
		assert.Equal(t, "out/records", cfg.Deployment.RecordsDir)
		assert.Equal(t, "artifacts", cfg.Deployment.ArtifactsDir)
	})

	t.Run("reads secrets from the environment", func(t *testing.T) {
		t.Setenv("ETHERSCAN_API_KEY", "explorer-key")
		t.Setenv("PRIVATE_KEY", "0xabc")

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)

		assert.Equal(t, "explorer-key", cfg.Secrets.EtherscanAPIKey)
		assert.Equal(t, "0xabc", cfg.Secrets.PrivateKey)
	})

	t.Run("explicit missing file is an error", func(t *testing.T) {
		_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DEPLOYER_TEST_DOTENV=from-file\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("DEPLOYER_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("DEPLOYER_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := DefaultConfig()
		require.NoError(t, err)
		return cfg
	}

	t.Run("unknown network", func(t *testing.T) {
		cfg := valid()
		cfg.Network = "mainnet"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `network "mainnet" is not defined`)
	})

	t.Run("public network needs confirmations", func(t *testing.T) {
		cfg := valid()
		cfg.Networks["sepolia"] = Network{ChainID: 11155111, RPCURLEnv: "SEPOLIA_RPC_URL"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "networks.sepolia.confirmations must be greater than 0")
	})

	t.Run("malformed chain id key", func(t *testing.T) {
		cfg := valid()
		cfg.Dependencies["sepolia"] = Dependency{Oracle: "0x694AA1769357215DE4FAC081bf1f309aDC325306"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "dependencies.sepolia")
	})

	t.Run("duplicate contract", func(t *testing.T) {
		cfg := valid()
		cfg.Contracts = append(cfg.Contracts, Contract{Name: "FundMe"})
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contracts.FundMe is declared twice")
	})

	t.Run("arg with two sources", func(t *testing.T) {
		cfg := valid()
		cfg.Contracts = append(cfg.Contracts, Contract{
			Name: "Broken",
			Args: []Arg{{Value: "1", Contract: "MyToken"}},
		})
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly one of value, dependency or contract")
	})

	t.Run("unknown dependency kind", func(t *testing.T) {
		cfg := valid()
		cfg.Contracts = append(cfg.Contracts, Contract{
			Name: "Broken",
			Args: []Arg{{Dependency: "sequencer"}},
		})
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown dependency kind "sequencer"`)
	})

	t.Run("dependency without mock source", func(t *testing.T) {
		cfg := valid()
		delete(cfg.Mocks, DependencyRouter)
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mocks.router is required")
		assert.NotContains(t, err.Error(), "mocks.oracle is required")
	})

	t.Run("public-only config needs no mock sources", func(t *testing.T) {
		cfg := valid()
		cfg.Network = "sepolia"
		delete(cfg.Networks, "hardhat")
		delete(cfg.Networks, "localhost")
		cfg.Mocks = nil
		cfg.Contracts = slices.DeleteFunc(cfg.Contracts, func(c Contract) bool { return c.DevelopmentOnly })
		assert.NoError(t, cfg.Validate())
	})

	t.Run("mock source must be development only", func(t *testing.T) {
		cfg := valid()
		cfg.Mocks[DependencyOracle] = MockSource{Contract: "FundMe"}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `mocks.oracle.contract "FundMe" must be development-only`)
	})
}
