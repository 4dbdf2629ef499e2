package configs

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"
)

var Values Config

type (
	DependencyKind string

	Config struct {
		Network      string                        `mapstructure:"network"`
		Networks     map[string]Network            `mapstructure:"networks"`
		Dependencies map[string]Dependency         `mapstructure:"dependencies"`
		Mocks        map[DependencyKind]MockSource `mapstructure:"mocks"`
		Contracts    []Contract                    `mapstructure:"contracts"`
		Deployment   Deployment                    `mapstructure:"deployment"`
		Verification Verification                  `mapstructure:"verification"`
		Devnet       Devnet                        `mapstructure:"devnet"`
		Secrets      Secrets                       `mapstructure:"secrets"`
		Log          Log                           `mapstructure:"log"`
	}

	Network struct {
		ChainID       uint64 `mapstructure:"chain-id"`
		RPCURL        string `mapstructure:"rpc-url"`
		RPCURLEnv     string `mapstructure:"rpc-url-env"`
		Development   bool   `mapstructure:"development"`
		Confirmations uint64 `mapstructure:"confirmations"`
	}

	// Dependency holds the production addresses for one chain, keyed by chain id in Config.Dependencies.
	Dependency struct {
		Oracle    string `mapstructure:"oracle"`
		Router    string `mapstructure:"router"`
		LinkToken string `mapstructure:"link-token"`
	}

	MockSource struct {
		Contract string `mapstructure:"contract"`
		Output   string `mapstructure:"output"`
	}

	Contract struct {
		Name            string   `mapstructure:"name"`
		Artifact        string   `mapstructure:"artifact"`
		Tags            []string `mapstructure:"tags"`
		DevelopmentOnly bool     `mapstructure:"development-only"`
		Args            []Arg    `mapstructure:"args"`
		Outputs         *Outputs `mapstructure:"outputs"`
		Proxy           *Proxy   `mapstructure:"proxy"`
	}

	Arg struct {
		Value      string         `mapstructure:"value"`
		Dependency DependencyKind `mapstructure:"dependency"`
		MockOutput string         `mapstructure:"mock-output"`
		Contract   string         `mapstructure:"contract"`
	}

	Outputs struct {
		Method string   `mapstructure:"method"`
		Fields []string `mapstructure:"fields"`
	}

	Proxy struct {
		Artifact    string `mapstructure:"artifact"`
		Initializer string `mapstructure:"initializer"`
		Args        []Arg  `mapstructure:"args"`
	}

	Deployment struct {
		ArtifactsDir string        `mapstructure:"artifacts-dir"`
		RecordsDir   string        `mapstructure:"records-dir"`
		OutputFile   string        `mapstructure:"output-file"`
		GasLimit     uint64        `mapstructure:"gas-limit"`
		Timeout      time.Duration `mapstructure:"timeout"`
		PollInterval time.Duration `mapstructure:"poll-interval"`
		Tags         []string      `mapstructure:"tags"`
	}

	Verification struct {
		APIURL       string        `mapstructure:"api-url"`
		Timeout      time.Duration `mapstructure:"timeout"`
		PollInterval time.Duration `mapstructure:"poll-interval"`
		MaxPolls     int           `mapstructure:"max-polls"`
	}

	Devnet struct {
		Image         string `mapstructure:"image"`
		ContainerName string `mapstructure:"container-name"`
		Port          int    `mapstructure:"port"`
		ChainID       uint64 `mapstructure:"chain-id"`
		BlockTime     int    `mapstructure:"block-time"`
	}

	Secrets struct {
		PrivateKey      string `mapstructure:"private-key"`
		EtherscanAPIKey string `mapstructure:"etherscan-api-key"`
	}

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}
)

const (
	DependencyOracle    DependencyKind = "oracle"
	DependencyRouter    DependencyKind = "router"
	DependencyLinkToken DependencyKind = "link-token"
)

var dependencyKinds = []DependencyKind{DependencyOracle, DependencyRouter, DependencyLinkToken}

// Known reports whether k is one of the supported dependency kinds.
func (k DependencyKind) Known() bool {
	return slices.Contains(dependencyKinds, k)
}

func (c *Config) Validate() error {
	var errs []error

	if c.Network == "" {
		errs = append(errs, errors.New("network is required"))
	} else if _, ok := c.Networks[c.Network]; !ok {
		errs = append(errs, fmt.Errorf("network %q is not defined under networks", c.Network))
	}

	for name, n := range c.Networks {
		if n.Development {
			continue
		}
		if n.ChainID == 0 {
			errs = append(errs, fmt.Errorf("networks.%s.chain-id is required", name))
		}
		if n.Confirmations == 0 {
			errs = append(errs, fmt.Errorf("networks.%s.confirmations must be greater than 0", name))
		}
		if n.RPCURL == "" && n.RPCURLEnv == "" {
			errs = append(errs, fmt.Errorf("networks.%s requires rpc-url or rpc-url-env", name))
		}
	}

	for chainID := range c.Dependencies {
		if _, err := strconv.ParseUint(chainID, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("dependencies.%s: chain id must be an unsigned integer", chainID))
		}
	}

	contracts := make(map[string]Contract, len(c.Contracts))
	for i, contract := range c.Contracts {
		if contract.Name == "" {
			errs = append(errs, fmt.Errorf("contracts[%d].name is required", i))
			continue
		}
		if _, dup := contracts[contract.Name]; dup {
			errs = append(errs, fmt.Errorf("contracts.%s is declared twice", contract.Name))
		}
		contracts[contract.Name] = contract
	}

	referenced := make(map[DependencyKind]bool)
	for _, contract := range c.Contracts {
		markDependencies(referenced, contract.Args)
		errs = append(errs, validateArgs("contracts."+contract.Name+".args", contract.Args, contracts)...)
		if contract.Proxy != nil {
			if contract.Proxy.Artifact == "" {
				errs = append(errs, fmt.Errorf("contracts.%s.proxy.artifact is required", contract.Name))
			}
			markDependencies(referenced, contract.Proxy.Args)
			errs = append(errs, validateArgs("contracts."+contract.Name+".proxy.args", contract.Proxy.Args, contracts)...)
		}
		if contract.Outputs != nil && contract.Outputs.Method == "" {
			errs = append(errs, fmt.Errorf("contracts.%s.outputs.method is required", contract.Name))
		}
	}

	for kind, source := range c.Mocks {
		if !kind.Known() {
			errs = append(errs, fmt.Errorf("mocks.%s: unknown dependency kind", kind))
			continue
		}
		mock, ok := contracts[source.Contract]
		if !ok {
			errs = append(errs, fmt.Errorf("mocks.%s.contract %q is not a declared contract", kind, source.Contract))
			continue
		}
		if !mock.DevelopmentOnly {
			errs = append(errs, fmt.Errorf("mocks.%s.contract %q must be development-only", kind, source.Contract))
		}
	}

	if c.hasDevelopmentNetwork() {
		for _, kind := range dependencyKinds {
			if _, ok := c.Mocks[kind]; referenced[kind] && !ok {
				errs = append(errs, fmt.Errorf("mocks.%s is required: contracts depend on %s and development networks are configured", kind, kind))
			}
		}
	}

	if c.Deployment.ArtifactsDir == "" {
		errs = append(errs, errors.New("deployment.artifacts-dir is required"))
	}
	if c.Deployment.RecordsDir == "" {
		errs = append(errs, errors.New("deployment.records-dir is required"))
	}
	if c.Verification.APIURL == "" {
		errs = append(errs, errors.New("verification.api-url is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (c *Config) hasDevelopmentNetwork() bool {
	for _, n := range c.Networks {
		if n.Development {
			return true
		}
	}
	return false
}

func markDependencies(referenced map[DependencyKind]bool, args []Arg) {
	for _, arg := range args {
		if arg.Dependency != "" {
			referenced[arg.Dependency] = true
		}
	}
}

func validateArgs(path string, args []Arg, contracts map[string]Contract) []error {
	var errs []error
	for i, arg := range args {
		set := 0
		if arg.Value != "" {
			set++
		}
		if arg.Dependency != "" {
			set++
			if !arg.Dependency.Known() {
				errs = append(errs, fmt.Errorf("%s[%d]: unknown dependency kind %q", path, i, arg.Dependency))
			}
		}
		if arg.Contract != "" {
			set++
			if _, ok := contracts[arg.Contract]; !ok {
				errs = append(errs, fmt.Errorf("%s[%d]: contract %q is not declared", path, i, arg.Contract))
			}
		}
		if set != 1 {
			errs = append(errs, fmt.Errorf("%s[%d]: exactly one of value, dependency or contract must be set", path, i))
		}
		if arg.MockOutput != "" && arg.Dependency == "" {
			errs = append(errs, fmt.Errorf("%s[%d]: mock-output requires dependency", path, i))
		}
	}
	return errs
}
