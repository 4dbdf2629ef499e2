// Package catalog holds the ordered set of contracts a run can deploy and
// where each constructor argument comes from.
package catalog

import (
	"errors"
	"fmt"
	"slices"

	"github.com/compose-network/contract-deployer/configs"
)

type ArgKind int

const (
	ArgLiteral ArgKind = iota
	ArgDependency
	ArgContract
)

func (k ArgKind) String() string {
	switch k {
	case ArgLiteral:
		return "literal"
	case ArgDependency:
		return "dependency"
	case ArgContract:
		return "contract"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

type (
	Arg struct {
		Kind       ArgKind
		Value      string
		Dependency configs.DependencyKind
		// MockOutput overrides the mock source output on development networks.
		MockOutput string
		Contract   string
	}

	// Outputs names a view method whose address results are recorded after deployment.
	Outputs struct {
		Method string
		Fields []string
	}

	Proxy struct {
		Artifact    string
		Initializer string
		Args        []Arg
	}

	Contract struct {
		Name            string
		Artifact        string
		Tags            []string
		DevelopmentOnly bool
		Args            []Arg
		Outputs         *Outputs
		Proxy           *Proxy
	}

	// MockSource says which development-only contract stands in for a dependency,
	// and which of its recorded outputs carries the address (empty means the contract itself).
	MockSource struct {
		Contract string
		Output   string
	}

	Catalog struct {
		contracts []Contract
		byName    map[string]int
		mocks     map[configs.DependencyKind]MockSource
	}
)

const TagAll = "all"

func (c Contract) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// New validates contracts and mocks and returns the catalog. Contract order is deployment order.
func New(contracts []Contract, mocks map[configs.DependencyKind]MockSource) (*Catalog, error) {
	c := &Catalog{
		contracts: slices.Clone(contracts),
		byName:    make(map[string]int, len(contracts)),
		mocks:     mocks,
	}

	var errs []error
	for i, contract := range contracts {
		if contract.Name == "" {
			errs = append(errs, fmt.Errorf("contract #%d has no name", i))
			continue
		}
		if _, dup := c.byName[contract.Name]; dup {
			errs = append(errs, fmt.Errorf("contract %s is declared twice", contract.Name))
			continue
		}
		if contract.Artifact == "" {
			c.contracts[i].Artifact = contract.Name
		}
		c.byName[contract.Name] = i
	}

	for _, contract := range contracts {
		args := contract.Args
		if contract.Proxy != nil {
			args = append(slices.Clone(args), contract.Proxy.Args...)
		}
		for _, arg := range args {
			if arg.Kind != ArgContract {
				continue
			}
			if arg.Contract == contract.Name {
				errs = append(errs, fmt.Errorf("contract %s references itself", contract.Name))
				continue
			}
			if _, ok := c.byName[arg.Contract]; !ok {
				errs = append(errs, fmt.Errorf("contract %s references undeclared contract %s", contract.Name, arg.Contract))
			}
		}
	}

	for kind, source := range mocks {
		i, ok := c.byName[source.Contract]
		if !ok {
			errs = append(errs, fmt.Errorf("mock source for %s references undeclared contract %s", kind, source.Contract))
			continue
		}
		if !contracts[i].DevelopmentOnly {
			errs = append(errs, fmt.Errorf("mock source for %s must be a development-only contract, %s is not", kind, source.Contract))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return c, nil
}

// FromConfig builds the catalog from the contracts and mocks sections.
func FromConfig(cfg configs.Config) (*Catalog, error) {
	contracts := make([]Contract, 0, len(cfg.Contracts))
	for _, raw := range cfg.Contracts {
		contract := Contract{
			Name:            raw.Name,
			Artifact:        raw.Artifact,
			Tags:            raw.Tags,
			DevelopmentOnly: raw.DevelopmentOnly,
			Args:            convertArgs(raw.Args),
		}
		if raw.Outputs != nil {
			contract.Outputs = &Outputs{Method: raw.Outputs.Method, Fields: raw.Outputs.Fields}
		}
		if raw.Proxy != nil {
			contract.Proxy = &Proxy{
				Artifact:    raw.Proxy.Artifact,
				Initializer: raw.Proxy.Initializer,
				Args:        convertArgs(raw.Proxy.Args),
			}
		}
		contracts = append(contracts, contract)
	}

	mocks := make(map[configs.DependencyKind]MockSource, len(cfg.Mocks))
	for kind, source := range cfg.Mocks {
		mocks[kind] = MockSource{Contract: source.Contract, Output: source.Output}
	}

	return New(contracts, mocks)
}

func convertArgs(raw []configs.Arg) []Arg {
	args := make([]Arg, 0, len(raw))
	for _, a := range raw {
		switch {
		case a.Dependency != "":
			args = append(args, Arg{Kind: ArgDependency, Dependency: a.Dependency, MockOutput: a.MockOutput})
		case a.Contract != "":
			args = append(args, Arg{Kind: ArgContract, Contract: a.Contract})
		default:
			args = append(args, Arg{Kind: ArgLiteral, Value: a.Value})
		}
	}
	return args
}

func (c *Catalog) Contract(name string) (Contract, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Contract{}, false
	}
	return c.contracts[i], true
}

func (c *Catalog) Contracts() []Contract {
	return slices.Clone(c.contracts)
}

func (c *Catalog) MockSource(kind configs.DependencyKind) (MockSource, bool) {
	source, ok := c.mocks[kind]
	return source, ok
}

// Select returns the contracts carrying any of tags, in catalog order. No tags, or the "all" tag, selects everything.
func (c *Catalog) Select(tags []string) []Contract {
	if len(tags) == 0 || slices.Contains(tags, TagAll) {
		return c.Contracts()
	}

	var selected []Contract
	for _, contract := range c.contracts {
		if slices.ContainsFunc(tags, contract.HasTag) {
			selected = append(selected, contract)
		}
	}
	return selected
}

// Dependencies lists the contracts that must be deployed before contract on a
// development or public network.
func (c *Catalog) Dependencies(contract Contract, development bool) []string {
	args := contract.Args
	if contract.Proxy != nil {
		args = append(slices.Clone(args), contract.Proxy.Args...)
	}

	var deps []string
	add := func(name string) {
		if name != "" && !slices.Contains(deps, name) {
			deps = append(deps, name)
		}
	}

	for _, arg := range args {
		switch arg.Kind {
		case ArgContract:
			add(arg.Contract)
		case ArgDependency:
			if !development {
				continue
			}
			if source, ok := c.mocks[arg.Dependency]; ok {
				add(source.Contract)
			}
		}
	}

	return deps
}
