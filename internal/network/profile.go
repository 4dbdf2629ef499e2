package network

import (
	"errors"
	"fmt"

	"github.com/compose-network/contract-deployer/configs"
)

// Profile identifies the network a run targets. It is built once per process
// and passed explicitly to everything that branches on the network.
type Profile struct {
	Name          string
	ChainID       uint64
	IsDevelopment bool
}

func (p Profile) Validate() error {
	if p.Name == "" {
		return errors.New("network name is required")
	}
	if !p.IsDevelopment && p.ChainID == 0 {
		return fmt.Errorf("network %s: chain id is required for non-development networks", p.Name)
	}

	return nil
}

func (p Profile) String() string {
	return fmt.Sprintf("%s (chain %d)", p.Name, p.ChainID)
}

// ProfileFor builds the profile of the named network from cfg.
func ProfileFor(cfg configs.Config, name string) (Profile, error) {
	n, ok := cfg.Networks[name]
	if !ok {
		return Profile{}, fmt.Errorf("network %q is not configured", name)
	}

	p := Profile{
		Name:          name,
		ChainID:       n.ChainID,
		IsDevelopment: n.Development,
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}

	return p, nil
}
