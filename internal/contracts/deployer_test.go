package contracts

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/compose-network/contract-deployer/internal/artifacts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoLinkToken is returned by every call to echoContract.
var echoLinkToken = common.HexToAddress("0x779877A7B0D9E8603169DdbD7836e478b4624789")

// echoContract deploys runtime code that answers any call with echoLinkToken as a single word.
var echoContract = common.FromHex("601d80600b6000396000f3" + "73" + strings.TrimPrefix(strings.ToLower(echoLinkToken.Hex()), "0x") + "60005260206000f3")

const echoABI = `[
	{"type":"function","name":"configuration","inputs":[],"outputs":[{"name":"linkToken_","type":"address"}],"stateMutability":"view"},
	{"type":"function","name":"initialize","inputs":[{"name":"owner","type":"address"}],"outputs":[],"stateMutability":"nonpayable"}
]`

const proxyABI = `[{"type":"constructor","inputs":[{"name":"implementation","type":"address"},{"name":"_data","type":"bytes"}],"stateMutability":"payable"}]`

type simulatedChain struct {
	backend  *simulated.Backend
	deployer *Deployer
	stop     chan struct{}
	wg       sync.WaitGroup
}

func newSimulatedChain(t *testing.T) *simulatedChain {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	balance := new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))
	backend := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: balance},
	})

	chain := &simulatedChain{
		backend: backend,
		deployer: NewDeployer(backend.Client(), key, big.NewInt(1337), Options{
			PollInterval: 10 * time.Millisecond,
			Timeout:      30 * time.Second,
		}),
		stop: make(chan struct{}),
	}

	chain.wg.Add(1)
	go func() {
		defer chain.wg.Done()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-chain.stop:
				return
			case <-ticker.C:
				backend.Commit()
			}
		}
	}()

	t.Cleanup(func() {
		close(chain.stop)
		chain.wg.Wait()
		_ = backend.Close()
	})

	return chain
}

func artifact(t *testing.T, name, rawABI string) artifacts.Artifact {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	require.NoError(t, err)
	return artifacts.Artifact{Name: name, ABI: parsed, RawABI: rawABI, Bytecode: echoContract}
}

func TestDeployWaitsForConfirmationsAndReadsOutputs(t *testing.T) {
	chain := newSimulatedChain(t)
	ctx := context.Background()

	result, err := chain.deployer.Deploy(ctx, Request{
		ContractName:  "CCIPLocalSimulator",
		Artifact:      artifact(t, "CCIPLocalSimulator", echoABI),
		Confirmations: 3,
		Outputs:       &OutputsRequest{Method: "configuration", Fields: []string{"linkToken_"}},
	})
	require.NoError(t, err)

	assert.NotEqual(t, common.Address{}, result.Address)
	assert.Nil(t, result.Implementation)
	assert.Empty(t, result.EncodedArgs)
	assert.Equal(t, map[string]common.Address{"linkToken_": echoLinkToken}, result.Outputs)

	head, err := chain.backend.Client().BlockNumber(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, head-result.BlockNumber+1, uint64(3))

	code, err := chain.backend.Client().CodeAt(ctx, result.Address, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, code)
}

func TestDeployProxy(t *testing.T) {
	chain := newSimulatedChain(t)
	owner := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	result, err := chain.deployer.Deploy(context.Background(), Request{
		ContractName: "MyContract",
		Artifact:     artifact(t, "MyContractV1", echoABI),
		Proxy: &ProxyRequest{
			Artifact:        artifact(t, "ERC1967Proxy", proxyABI),
			Initializer:     "initialize",
			InitializerArgs: []any{owner},
		},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Implementation)
	assert.NotEqual(t, *result.Implementation, result.Address)
	assert.Empty(t, result.ConstructorArgs)
}

func TestDeployRejectsBadArguments(t *testing.T) {
	chain := newSimulatedChain(t)

	_, err := chain.deployer.Deploy(context.Background(), Request{
		ContractName:    "ERC1967Proxy",
		Artifact:        artifact(t, "ERC1967Proxy", proxyABI),
		ConstructorArgs: []any{"0x70997970C51812dc3A010C7d01b50e0d17dc79C8"},
	})
	assert.ErrorIs(t, err, ErrArity)
}

func TestDeployMissingOutput(t *testing.T) {
	chain := newSimulatedChain(t)

	_, err := chain.deployer.Deploy(context.Background(), Request{
		ContractName: "CCIPLocalSimulator",
		Artifact:     artifact(t, "CCIPLocalSimulator", echoABI),
		Outputs:      &OutputsRequest{Method: "configuration", Fields: []string{"sourceRouter_"}},
	})
	assert.ErrorContains(t, err, `no address output "sourceRouter_"`)
}

func TestUpgrade(t *testing.T) {
	chain := newSimulatedChain(t)
	ctx := context.Background()

	deployed, err := chain.deployer.Deploy(ctx, Request{
		ContractName: "MyContract",
		Artifact:     artifact(t, "MyContractV1", echoABI),
		Proxy: &ProxyRequest{
			Artifact:        artifact(t, "ERC1967Proxy", proxyABI),
			Initializer:     "initialize",
			InitializerArgs: []any{chain.deployer.From()},
		},
	})
	require.NoError(t, err)

	upgraded, err := chain.deployer.Upgrade(ctx, UpgradeRequest{
		Proxy:          deployed.Address,
		Implementation: artifact(t, "MyContractV2", echoABI),
		Confirmations:  2,
	})
	require.NoError(t, err)
	assert.NotEqual(t, *deployed.Implementation, upgraded.Implementation)
	assert.NotEqual(t, common.Hash{}, upgraded.TxHash)
}
