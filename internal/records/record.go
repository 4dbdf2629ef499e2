package records

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Record describes one deployed contract. For proxied contracts Address is the
// proxy and Implementation the logic contract.
type Record struct {
	ContractName          string                    `json:"contractName"`
	Artifact              string                    `json:"artifact"`
	Network               string                    `json:"network"`
	ChainID               uint64                    `json:"chainId"`
	Address               common.Address            `json:"address"`
	Implementation        *common.Address           `json:"implementation,omitempty"`
	ConstructorArgs       []any                     `json:"args"`
	EncodedArgs           hexutil.Bytes             `json:"encodedArgs,omitempty"`
	ConfirmationsRequired uint64                    `json:"confirmations"`
	TxHash                common.Hash               `json:"transactionHash"`
	BlockNumber           uint64                    `json:"blockNumber"`
	Outputs               map[string]common.Address `json:"outputs,omitempty"`
	DeployedAt            time.Time                 `json:"deployedAt"`
}

// VerificationTarget is the address whose source should be verified: the implementation behind a proxy, otherwise the contract itself.
func (r Record) VerificationTarget() common.Address {
	if r.Implementation != nil {
		return *r.Implementation
	}
	return r.Address
}

// Output returns a recorded output address.
func (r Record) Output(name string) (common.Address, bool) {
	addr, ok := r.Outputs[name]
	return addr, ok
}
