package output

import (
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	Model struct {
		Network   string                    `yaml:"network"`
		ChainID   uint64                    `yaml:"chain-id"`
		Deployer  common.Address            `yaml:"deployer"`
		Contracts map[string]ContractConfig `yaml:"contracts"`
		Skipped   []string                  `yaml:"skipped,omitempty"`
		Failed    map[string]string         `yaml:"failed,omitempty"`
	}

	ContractConfig struct {
		Address        common.Address            `yaml:"address"`
		Implementation *common.Address           `yaml:"implementation,omitempty"`
		TxHash         string                    `yaml:"tx-hash"`
		Block          uint64                    `yaml:"block"`
		Outputs        map[string]common.Address `yaml:"outputs,omitempty"`
		ABI            SingleQuotedString        `yaml:"abi,omitempty"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}
