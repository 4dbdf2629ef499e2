package contracts

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"strings"
	"time"

	"github.com/compose-network/contract-deployer/internal/artifacts"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const defaultPollInterval = 2 * time.Second

var ErrTransactionFailed = errors.New("transaction reverted")

type (
	// Backend is the subset of an RPC client the deployer needs.
	Backend interface {
		bind.ContractBackend
		TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
		BlockNumber(ctx context.Context) (uint64, error)
	}

	Options struct {
		// GasLimit of zero lets the node estimate.
		GasLimit     uint64
		PollInterval time.Duration
		// Timeout bounds a single deployment, including confirmations. Zero means no bound.
		Timeout time.Duration
	}

	Deployer struct {
		backend Backend
		key     *ecdsa.PrivateKey
		chainID *big.Int
		opts    Options
		logger  *slog.Logger
	}

	// ProxyRequest deploys the request's artifact as an implementation behind Artifact,
	// which must take (address implementation, bytes data) in its constructor.
	ProxyRequest struct {
		Artifact        artifacts.Artifact
		Initializer     string
		InitializerArgs []any
	}

	// OutputsRequest reads a view method after deployment and keeps the named address results.
	OutputsRequest struct {
		Method string
		Fields []string
	}

	Request struct {
		ContractName    string
		Artifact        artifacts.Artifact
		ConstructorArgs []any
		Confirmations   uint64
		Proxy           *ProxyRequest
		Outputs         *OutputsRequest
	}

	Result struct {
		Address        common.Address
		Implementation *common.Address
		TxHash         common.Hash
		BlockNumber    uint64
		// ConstructorArgs are the coerced arguments of the verification target.
		ConstructorArgs []any
		EncodedArgs     []byte
		Outputs         map[string]common.Address
	}

	UpgradeRequest struct {
		Proxy           common.Address
		Implementation  artifacts.Artifact
		ConstructorArgs []any
		// Call is an optional method of the new implementation invoked through upgradeToAndCall.
		Call          string
		CallArgs      []any
		Confirmations uint64
	}

	UpgradeResult struct {
		Implementation common.Address
		TxHash         common.Hash
		BlockNumber    uint64
		EncodedArgs    []byte
	}

	deployment struct {
		address     common.Address
		receipt     *types.Receipt
		args        []any
		encodedArgs []byte
	}
)

const upgradeABI = `[{"inputs":[{"internalType":"address","name":"newImplementation","type":"address"},{"internalType":"bytes","name":"data","type":"bytes"}],"name":"upgradeToAndCall","outputs":[],"stateMutability":"payable","type":"function"}]`

var uupsABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(upgradeABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

func NewDeployer(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, opts Options) *Deployer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	return &Deployer{
		backend: backend,
		key:     key,
		chainID: chainID,
		opts:    opts,
		logger:  logger.Named("contracts_deployer"),
	}
}

// From is the address transactions are sent from.
func (d *Deployer) From() common.Address {
	return crypto.PubkeyToAddress(d.key.PublicKey)
}

// Deploy sends the creation transaction(s) of req and waits for the requested confirmations.
func (d *Deployer) Deploy(ctx context.Context, req Request) (Result, error) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	log := d.logger.With("contract", req.ContractName)

	impl, err := d.deployContract(ctx, req.Artifact, req.ConstructorArgs)
	if err != nil {
		return Result{}, fmt.Errorf("failed to deploy %s: %w", req.ContractName, err)
	}

	result := Result{
		Address:         impl.address,
		TxHash:          impl.receipt.TxHash,
		BlockNumber:     impl.receipt.BlockNumber.Uint64(),
		ConstructorArgs: impl.args,
		EncodedArgs:     impl.encodedArgs,
	}
	last := impl.receipt

	if req.Proxy != nil {
		data, err := packCall(req.Artifact.ABI, req.Proxy.Initializer, req.Proxy.InitializerArgs)
		if err != nil {
			return Result{}, fmt.Errorf("failed to encode %s initializer: %w", req.ContractName, err)
		}

		log.With("implementation", impl.address).Info("implementation deployed, deploying proxy")

		proxy, err := d.deployContract(ctx, req.Proxy.Artifact, []any{impl.address, data})
		if err != nil {
			return Result{}, fmt.Errorf("failed to deploy %s proxy: %w", req.ContractName, err)
		}

		implementation := impl.address
		result.Address = proxy.address
		result.Implementation = &implementation
		result.TxHash = proxy.receipt.TxHash
		result.BlockNumber = proxy.receipt.BlockNumber.Uint64()
		last = proxy.receipt
	}

	if err := d.waitConfirmations(ctx, last, req.Confirmations); err != nil {
		return Result{}, fmt.Errorf("%s: %w", req.ContractName, err)
	}

	if req.Outputs != nil {
		outputs, err := d.readOutputs(ctx, result.Address, req.Artifact.ABI, *req.Outputs)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read %s outputs: %w", req.ContractName, err)
		}
		result.Outputs = outputs
	}

	log.
		With("address", result.Address).
		With("tx_hash", result.TxHash.Hex()).
		With("block", result.BlockNumber).
		Info("contract deployed")

	return result, nil
}

// Upgrade deploys a new implementation and points the UUPS proxy at it.
func (d *Deployer) Upgrade(ctx context.Context, req UpgradeRequest) (UpgradeResult, error) {
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	impl, err := d.deployContract(ctx, req.Implementation, req.ConstructorArgs)
	if err != nil {
		return UpgradeResult{}, fmt.Errorf("failed to deploy implementation %s: %w", req.Implementation.Name, err)
	}

	data, err := packCall(req.Implementation.ABI, req.Call, req.CallArgs)
	if err != nil {
		return UpgradeResult{}, fmt.Errorf("failed to encode upgrade call: %w", err)
	}

	auth, err := d.transactor(ctx)
	if err != nil {
		return UpgradeResult{}, err
	}

	proxy := bind.NewBoundContract(req.Proxy, uupsABI, d.backend, d.backend, d.backend)
	tx, err := proxy.Transact(auth, "upgradeToAndCall", impl.address, data)
	if err != nil {
		return UpgradeResult{}, fmt.Errorf("failed to send upgradeToAndCall: %w", err)
	}

	d.logger.
		With("proxy", req.Proxy).
		With("implementation", impl.address).
		With("tx_hash", tx.Hash().Hex()).
		Info("upgrade transaction sent")

	receipt, err := d.waitMined(ctx, tx)
	if err != nil {
		return UpgradeResult{}, fmt.Errorf("upgrade of %s: %w", req.Proxy, err)
	}
	if err := d.waitConfirmations(ctx, receipt, req.Confirmations); err != nil {
		return UpgradeResult{}, fmt.Errorf("upgrade of %s: %w", req.Proxy, err)
	}

	return UpgradeResult{
		Implementation: impl.address,
		TxHash:         receipt.TxHash,
		BlockNumber:    receipt.BlockNumber.Uint64(),
		EncodedArgs:    impl.encodedArgs,
	}, nil
}

func (d *Deployer) transactor(ctx context.Context) (*bind.TransactOpts, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(d.key, d.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	gasPrice, err := d.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	auth.Context = ctx
	auth.GasLimit = d.opts.GasLimit
	auth.GasPrice = gasPrice

	return auth, nil
}

func (d *Deployer) deployContract(ctx context.Context, artifact artifacts.Artifact, args []any) (deployment, error) {
	coerced, err := CoerceArgs(artifact.ABI.Constructor.Inputs, args)
	if err != nil {
		return deployment{}, fmt.Errorf("constructor of %s: %w", artifact.Name, err)
	}

	encoded, err := artifact.ABI.Pack("", coerced...)
	if err != nil {
		return deployment{}, fmt.Errorf("failed to encode constructor of %s: %w", artifact.Name, err)
	}

	auth, err := d.transactor(ctx)
	if err != nil {
		return deployment{}, err
	}

	address, tx, _, err := bind.DeployContract(auth, artifact.ABI, artifact.Bytecode, d.backend, coerced...)
	if err != nil {
		return deployment{}, fmt.Errorf("failed to send creation transaction: %w", err)
	}

	d.logger.
		With("artifact", artifact.Name).
		With("address", address).
		With("tx_hash", tx.Hash().Hex()).
		Info("contract deployment transaction sent")

	receipt, err := d.waitMined(ctx, tx)
	if err != nil {
		return deployment{}, err
	}

	return deployment{address: address, receipt: receipt, args: coerced, encodedArgs: encoded}, nil
}

func (d *Deployer) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, d.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s has status %d", ErrTransactionFailed, tx.Hash().Hex(), receipt.Status)
	}

	return receipt, nil
}

// waitConfirmations blocks until the receipt's block has the given number of confirmations,
// counting the inclusion block as the first.
func (d *Deployer) waitConfirmations(ctx context.Context, receipt *types.Receipt, confirmations uint64) error {
	if confirmations <= 1 {
		return nil
	}

	mined := receipt.BlockNumber.Uint64()
	log := d.logger.
		With("tx_hash", receipt.TxHash.Hex()).
		With("confirmations", confirmations)
	log.Info("waiting for confirmations")

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		head, err := d.backend.BlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("failed to get block number: %w", err)
		}
		if head >= mined && head-mined+1 >= confirmations {
			log.With("head", head).Debug("confirmations reached")
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d confirmations of %s: %w", confirmations, receipt.TxHash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (d *Deployer) readOutputs(ctx context.Context, address common.Address, contractABI abi.ABI, req OutputsRequest) (map[string]common.Address, error) {
	method, ok := contractABI.Methods[req.Method]
	if !ok {
		return nil, fmt.Errorf("method %s not found in ABI", req.Method)
	}

	data, err := contractABI.Pack(req.Method)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", req.Method, err)
	}

	raw, err := d.backend.CallContract(ctx, ethereum.CallMsg{From: d.From(), To: &address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", req.Method, err)
	}

	values, err := method.Outputs.Unpack(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", req.Method, err)
	}

	outputs := make(map[string]common.Address, len(req.Fields))
	for i, output := range method.Outputs {
		if len(req.Fields) > 0 && !slices.Contains(req.Fields, output.Name) {
			continue
		}
		if addr, ok := values[i].(common.Address); ok {
			outputs[output.Name] = addr
		}
	}

	for _, field := range req.Fields {
		if _, ok := outputs[field]; !ok {
			return nil, fmt.Errorf("%s has no address output %q", req.Method, field)
		}
	}

	return outputs, nil
}

// packCall encodes a call to method with args coerced against its inputs. An empty method encodes to no data.
func packCall(contractABI abi.ABI, method string, args []any) ([]byte, error) {
	if method == "" {
		if len(args) > 0 {
			return nil, errors.New("arguments given without a method")
		}
		return []byte{}, nil
	}

	m, ok := contractABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("method %s not found in ABI", method)
	}

	coerced, err := CoerceArgs(m.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	return contractABI.Pack(method, coerced...)
}
