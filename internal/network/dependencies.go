package network

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/ethereum/go-ethereum/common"
)

type (
	// Dependencies are the production addresses a chain provides to constructors.
	Dependencies struct {
		Oracle    common.Address
		Router    common.Address
		LinkToken common.Address
	}

	// DependencyTable is the closed chain id to Dependencies mapping used on public networks.
	DependencyTable map[uint64]Dependencies

	// UnsupportedNetworkError is returned when a chain has no dependency entry,
	// or its entry lacks the requested dependency.
	UnsupportedNetworkError struct {
		ChainID    uint64
		Dependency configs.DependencyKind
	}
)

func (e *UnsupportedNetworkError) Error() string {
	if e.Dependency != "" {
		return fmt.Sprintf("unsupported network: chain %d has no %s configured", e.ChainID, e.Dependency)
	}

	return fmt.Sprintf("unsupported network: no dependency configuration for chain %d", e.ChainID)
}

// Get returns the address configured for kind, and whether it is set.
func (d Dependencies) Get(kind configs.DependencyKind) (common.Address, bool) {
	var addr common.Address
	switch kind {
	case configs.DependencyOracle:
		addr = d.Oracle
	case configs.DependencyRouter:
		addr = d.Router
	case configs.DependencyLinkToken:
		addr = d.LinkToken
	}

	return addr, addr != (common.Address{})
}

// LoadDependencyTable converts the raw config section into a DependencyTable,
// failing on malformed chain ids, malformed addresses and empty entries.
func LoadDependencyTable(raw map[string]configs.Dependency) (DependencyTable, error) {
	table := make(DependencyTable, len(raw))
	var errs []error

	for key, entry := range raw {
		chainID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("dependencies.%s: invalid chain id: %w", key, err))
			continue
		}

		var deps Dependencies
		fields := []struct {
			kind  configs.DependencyKind
			value string
			dst   *common.Address
		}{
			{configs.DependencyOracle, entry.Oracle, &deps.Oracle},
			{configs.DependencyRouter, entry.Router, &deps.Router},
			{configs.DependencyLinkToken, entry.LinkToken, &deps.LinkToken},
		}

		set := 0
		for _, f := range fields {
			if f.value == "" {
				continue
			}
			if !common.IsHexAddress(f.value) {
				errs = append(errs, fmt.Errorf("dependencies.%s.%s: invalid address %q", key, f.kind, f.value))
				continue
			}
			*f.dst = common.HexToAddress(f.value)
			set++
		}
		if set == 0 {
			errs = append(errs, fmt.Errorf("dependencies.%s: at least one address is required", key))
			continue
		}

		table[chainID] = deps
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return table, nil
}

// Lookup returns the dependencies configured for chainID.
func (t DependencyTable) Lookup(chainID uint64) (Dependencies, error) {
	deps, ok := t[chainID]
	if !ok {
		return Dependencies{}, &UnsupportedNetworkError{ChainID: chainID}
	}

	return deps, nil
}

// Address returns a single dependency of chainID.
func (t DependencyTable) Address(chainID uint64, kind configs.DependencyKind) (common.Address, error) {
	deps, err := t.Lookup(chainID)
	if err != nil {
		return common.Address{}, err
	}

	addr, ok := deps.Get(kind)
	if !ok {
		return common.Address{}, &UnsupportedNetworkError{ChainID: chainID, Dependency: kind}
	}

	return addr, nil
}
