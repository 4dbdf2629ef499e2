package deploy

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type recordView struct {
	Contract       string          `yaml:"contract"`
	Address        common.Address  `yaml:"address"`
	Implementation *common.Address `yaml:"implementation,omitempty"`
	TxHash         string          `yaml:"tx-hash"`
	Block          uint64          `yaml:"block"`
	DeployedAt     time.Time       `yaml:"deployed-at"`
}

var RecordsCMD = &cobra.Command{
	Use:   "records",
	Short: "List the deployment history of the selected network",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnvironment(configs.Values)
		if err != nil {
			return err
		}

		list, err := env.history.List(env.profile.Name)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			slog.With("network", env.profile.Name).Info("no deployments recorded")
			return nil
		}

		views := make([]recordView, 0, len(list))
		for _, r := range list {
			views = append(views, recordView{
				Contract:       r.ContractName,
				Address:        r.Address,
				Implementation: r.Implementation,
				TxHash:         r.TxHash.Hex(),
				Block:          r.BlockNumber,
				DeployedAt:     r.DeployedAt,
			})
		}

		data, err := yaml.Marshal(views)
		if err != nil {
			return fmt.Errorf("failed to render records: %w", err)
		}

		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}
