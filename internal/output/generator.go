// Package output writes the YAML summary of a deployment run.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/compose-network/contract-deployer/internal/filesystem"
	"github.com/compose-network/contract-deployer/internal/records"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	// Summary is what a run produced. ABIs are raw JSON keyed by contract name.
	Summary struct {
		Network  string
		ChainID  uint64
		Deployer common.Address
		Records  []records.Record
		ABIs     map[string]string
		Skipped  []string
		Failed   map[string]error
	}

	Generator struct {
		writer filesystem.Writer
	}
)

func NewGenerator(writer filesystem.Writer) *Generator {
	return &Generator{writer: writer}
}

// Generate writes summary to path.
func (g *Generator) Generate(path string, summary Summary) error {
	data, err := Render(summary)
	if err != nil {
		return err
	}

	if err := g.writer.WriteBytes(path, data); err != nil {
		return fmt.Errorf("could not write output file: %w", err)
	}

	return nil
}

// Render marshals summary into the YAML document Generate writes.
func Render(summary Summary) ([]byte, error) {
	model := Model{
		Network:   summary.Network,
		ChainID:   summary.ChainID,
		Deployer:  summary.Deployer,
		Contracts: make(map[string]ContractConfig, len(summary.Records)),
		Skipped:   summary.Skipped,
	}

	for _, r := range summary.Records {
		model.Contracts[r.ContractName] = ContractConfig{
			Address:        r.Address,
			Implementation: r.Implementation,
			TxHash:         r.TxHash.Hex(),
			Block:          r.BlockNumber,
			Outputs:        r.Outputs,
			ABI:            SingleQuotedString(compactJSON(summary.ABIs[r.ContractName])),
		}
	}

	if len(summary.Failed) > 0 {
		model.Failed = make(map[string]string, len(summary.Failed))
		for name, err := range summary.Failed {
			model.Failed[name] = err.Error()
		}
	}

	data, err := yaml.Marshal(&model)
	if err != nil {
		return nil, fmt.Errorf("could not marshal output model: %w", err)
	}

	return data, nil
}

func compactJSON(jsonStr string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(jsonStr)); err != nil {
		return jsonStr
	}
	return buf.String()
}
