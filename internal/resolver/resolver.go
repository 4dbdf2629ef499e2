// Package resolver decides, per network, the constructor arguments, the
// confirmation count and the verification policy of each catalog contract.
package resolver

import (
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/catalog"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/compose-network/contract-deployer/internal/network"
	"github.com/compose-network/contract-deployer/internal/records"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultConfirmations applies to public networks whose confirmation count is not configured.
const DefaultConfirmations uint64 = 5

type (
	// RecordLookup is the read side of the in-run registry.
	RecordLookup interface {
		Get(contractName string) (records.Record, bool)
	}

	Plan struct {
		ContractName          string
		ConstructorArgs       []any
		InitializerArgs       []any
		ConfirmationsRequired uint64
		ShouldVerify          bool
	}

	Options struct {
		// Confirmations per network name.
		Confirmations  map[string]uint64
		ExplorerAPIKey string
	}

	Resolver struct {
		catalog        *catalog.Catalog
		dependencies   network.DependencyTable
		records        RecordLookup
		confirmations  map[string]uint64
		explorerAPIKey string
		noticeLogged   bool
		logger         *slog.Logger
	}
)

func New(cat *catalog.Catalog, dependencies network.DependencyTable, lookup RecordLookup, opts Options) *Resolver {
	return &Resolver{
		catalog:        cat,
		dependencies:   dependencies,
		records:        lookup,
		confirmations:  opts.Confirmations,
		explorerAPIKey: opts.ExplorerAPIKey,
		logger:         logger.Named("resolver"),
	}
}

// OptionsFromConfig collects per-network confirmations and the explorer key from cfg.
func OptionsFromConfig(cfg configs.Config) Options {
	confirmations := make(map[string]uint64, len(cfg.Networks))
	for name, n := range cfg.Networks {
		confirmations[name] = n.Confirmations
	}

	return Options{
		Confirmations:  confirmations,
		ExplorerAPIKey: cfg.Secrets.EtherscanAPIKey,
	}
}

// Resolve builds the deployment plan of contractName on profile. It has no side
// effects besides logging; records are only read.
func (r *Resolver) Resolve(profile network.Profile, contractName string) (Plan, error) {
	if err := profile.Validate(); err != nil {
		return Plan{}, err
	}

	contract, ok := r.catalog.Contract(contractName)
	if !ok {
		return Plan{}, fmt.Errorf("%s: %w", contractName, ErrUnknownContract)
	}
	if contract.DevelopmentOnly && !profile.IsDevelopment {
		return Plan{}, fmt.Errorf("%s on %s: %w", contractName, profile.Name, ErrDevelopmentOnly)
	}
	if !profile.IsDevelopment {
		if _, err := r.dependencies.Lookup(profile.ChainID); err != nil {
			return Plan{}, fmt.Errorf("%s on %s: %w", contractName, profile.Name, err)
		}
	}

	plan := Plan{ContractName: contractName}

	args, err := r.resolveArgs(profile, contractName, contract.Args)
	if err != nil {
		return Plan{}, err
	}
	plan.ConstructorArgs = args

	if contract.Proxy != nil {
		initArgs, err := r.resolveArgs(profile, contractName, contract.Proxy.Args)
		if err != nil {
			return Plan{}, err
		}
		plan.InitializerArgs = initArgs
	}

	plan.ConfirmationsRequired, plan.ShouldVerify = r.Policy(profile)

	return plan, nil
}

// Policy returns how many confirmations to wait for on profile and whether to verify sources there.
// Development networks never wait and never verify.
func (r *Resolver) Policy(profile network.Profile) (confirmations uint64, shouldVerify bool) {
	if profile.IsDevelopment {
		return 0, false
	}

	confirmations = r.confirmations[profile.Name]
	if confirmations == 0 {
		confirmations = DefaultConfirmations
	}

	shouldVerify = r.explorerAPIKey != ""
	if !shouldVerify && !r.noticeLogged {
		r.noticeLogged = true
		r.logger.
			With("network", profile.Name).
			Info("ETHERSCAN_API_KEY is not set, source verification is disabled")
	}

	return confirmations, shouldVerify
}

func (r *Resolver) resolveArgs(profile network.Profile, contractName string, args []catalog.Arg) ([]any, error) {
	resolved := make([]any, 0, len(args))
	for _, arg := range args {
		switch arg.Kind {
		case catalog.ArgLiteral:
			resolved = append(resolved, arg.Value)
		case catalog.ArgContract:
			record, ok := r.records.Get(arg.Contract)
			if !ok {
				return nil, &DependencyNotFoundError{Contract: contractName, Dependency: arg.Contract}
			}
			resolved = append(resolved, record.Address)
		case catalog.ArgDependency:
			addr, err := r.resolveDependency(profile, contractName, arg)
			if err != nil {
				return nil, err
			}
			resolved = append(resolved, addr)
		default:
			return nil, fmt.Errorf("%s: unsupported argument kind %s", contractName, arg.Kind)
		}
	}

	return resolved, nil
}

// resolveDependency reads mock records on development networks and the dependency table everywhere else.
func (r *Resolver) resolveDependency(profile network.Profile, contractName string, arg catalog.Arg) (common.Address, error) {
	if !profile.IsDevelopment {
		return r.dependencies.Address(profile.ChainID, arg.Dependency)
	}

	source, ok := r.catalog.MockSource(arg.Dependency)
	if !ok {
		return common.Address{}, &DependencyNotFoundError{Contract: contractName, Dependency: "mock " + string(arg.Dependency)}
	}

	record, ok := r.records.Get(source.Contract)
	if !ok {
		return common.Address{}, &DependencyNotFoundError{Contract: contractName, Dependency: source.Contract}
	}

	output := source.Output
	if arg.MockOutput != "" {
		output = arg.MockOutput
	}
	if output == "" {
		return record.Address, nil
	}

	addr, ok := record.Output(output)
	if !ok {
		return common.Address{}, &DependencyNotFoundError{Contract: contractName, Dependency: source.Contract + "." + output}
	}

	return addr, nil
}
