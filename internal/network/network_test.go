package network

import (
	"errors"
	"testing"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sepolia = 11155111

func TestProfileFor(t *testing.T) {
	cfg := configs.Config{
		Networks: map[string]configs.Network{
			"localhost": {Development: true},
			"sepolia":   {ChainID: sepolia, Confirmations: 5},
			"broken":    {},
		},
	}

	t.Run("development without chain id", func(t *testing.T) {
		p, err := ProfileFor(cfg, "localhost")
		require.NoError(t, err)
		assert.Equal(t, Profile{Name: "localhost", IsDevelopment: true}, p)
	})

	t.Run("public network", func(t *testing.T) {
		p, err := ProfileFor(cfg, "sepolia")
		require.NoError(t, err)
		assert.Equal(t, uint64(sepolia), p.ChainID)
		assert.False(t, p.IsDevelopment)
	})

	t.Run("public network without chain id", func(t *testing.T) {
		_, err := ProfileFor(cfg, "broken")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "chain id is required")
	})

	t.Run("unknown network", func(t *testing.T) {
		_, err := ProfileFor(cfg, "mainnet")
		assert.Error(t, err)
	})

	t.Run("empty name", func(t *testing.T) {
		assert.Error(t, Profile{IsDevelopment: true}.Validate())
	})
}

func TestLoadDependencyTable(t *testing.T) {
	t.Run("valid entries", func(t *testing.T) {
		table, err := LoadDependencyTable(map[string]configs.Dependency{
			"11155111": {
				Oracle:    "0x694AA1769357215DE4FAC081bf1f309aDC325306",
				Router:    "0x0BF3dE8c5D3e8A2B34D2BEeB17ABfCeBaf363A59",
				LinkToken: "0x779877A7B0D9E8603169DdbD7836e478b4624789",
			},
			"80002": {Router: "0x9C32fCB86BF0f4a1A8921a9Fe46de3198bb884B2"},
		})
		require.NoError(t, err)
		require.Len(t, table, 2)

		deps, err := table.Lookup(sepolia)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0x694AA1769357215DE4FAC081bf1f309aDC325306"), deps.Oracle)

		_, err = table.Address(80002, configs.DependencyOracle)
		var unsupported *UnsupportedNetworkError
		require.True(t, errors.As(err, &unsupported))
		assert.Equal(t, uint64(80002), unsupported.ChainID)
		assert.Equal(t, configs.DependencyOracle, unsupported.Dependency)
	})

	t.Run("malformed chain id", func(t *testing.T) {
		_, err := LoadDependencyTable(map[string]configs.Dependency{
			"sepolia": {Oracle: "0x694AA1769357215DE4FAC081bf1f309aDC325306"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid chain id")
	})

	t.Run("malformed address", func(t *testing.T) {
		_, err := LoadDependencyTable(map[string]configs.Dependency{
			"1": {Oracle: "0x1234"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid address")
	})

	t.Run("empty entry", func(t *testing.T) {
		_, err := LoadDependencyTable(map[string]configs.Dependency{"1": {}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least one address")
	})

	t.Run("unknown chain", func(t *testing.T) {
		_, err := DependencyTable{}.Lookup(42)
		var unsupported *UnsupportedNetworkError
		require.True(t, errors.As(err, &unsupported))
		assert.Equal(t, uint64(42), unsupported.ChainID)
		assert.Contains(t, err.Error(), "chain 42")
	})
}

func TestRPCURL(t *testing.T) {
	t.Setenv("TEST_SEPOLIA_RPC_URL", "https://sepolia.example")

	url, err := RPCURL("sepolia", configs.Network{RPCURLEnv: "TEST_SEPOLIA_RPC_URL", RPCURL: "https://fallback.example"})
	require.NoError(t, err)
	assert.Equal(t, "https://sepolia.example", url)

	url, err = RPCURL("sepolia", configs.Network{RPCURLEnv: "TEST_UNSET_RPC_URL", RPCURL: "https://fallback.example"})
	require.NoError(t, err)
	assert.Equal(t, "https://fallback.example", url)

	_, err = RPCURL("sepolia", configs.Network{RPCURLEnv: "TEST_UNSET_RPC_URL"})
	require.ErrorIs(t, err, ErrMissingRPCURL)
	assert.Contains(t, err.Error(), "TEST_UNSET_RPC_URL")
}

func TestSigningKey(t *testing.T) {
	dev := Profile{Name: "localhost", IsDevelopment: true}
	public := Profile{Name: "sepolia", ChainID: sepolia}

	key, err := SigningKey(dev, configs.Secrets{})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), crypto.PubkeyToAddress(key.PublicKey))

	_, err = SigningKey(public, configs.Secrets{})
	require.ErrorIs(t, err, ErrMissingSigningKey)

	key, err = SigningKey(public, configs.Secrets{PrivateKey: "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"})
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), crypto.PubkeyToAddress(key.PublicKey))

	_, err = SigningKey(public, configs.Secrets{PrivateKey: "zz"})
	assert.Error(t, err)
}
