package deploy

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/compose-network/contract-deployer/internal/verify"
	"github.com/spf13/cobra"
)

var (
	upgradeImplementation string
	upgradeCall           string
	upgradeCallArgs       []string
)

var ErrNotAProxy = errors.New("recorded deployment is not behind a proxy")

var UpgradeCMD = &cobra.Command{
	Use:   "upgrade <contract>",
	Short: "Upgrade a UUPS proxy recorded in the deployment history to a new implementation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("running upgrade command", "contract", args[0], "implementation", upgradeImplementation)
		ctx := cmd.Context()

		env, err := newEnvironment(configs.Values)
		if err != nil {
			return err
		}
		defer env.Close()

		record, err := env.history.Read(env.profile.Name, args[0])
		if err != nil {
			return err
		}
		if record.Implementation == nil {
			return fmt.Errorf("%s: %w", args[0], ErrNotAProxy)
		}

		if err := env.loadArtifacts(); err != nil {
			return err
		}
		artifact, err := env.artifacts.Get(upgradeImplementation)
		if err != nil {
			return err
		}

		if err := env.connect(ctx); err != nil {
			return err
		}

		callArgs := make([]any, 0, len(upgradeCallArgs))
		for _, arg := range upgradeCallArgs {
			callArgs = append(callArgs, arg)
		}

		confirmations, shouldVerify := env.resolver.Policy(env.profile)
		result, err := env.deployer.Upgrade(ctx, contracts.UpgradeRequest{
			Proxy:          record.Address,
			Implementation: artifact,
			Call:           upgradeCall,
			CallArgs:       callArgs,
			Confirmations:  confirmations,
		})
		if err != nil {
			return err
		}

		implementation := result.Implementation
		record.Artifact = artifact.Name
		record.Implementation = &implementation
		record.EncodedArgs = result.EncodedArgs
		record.ConstructorArgs = []any{}
		record.TxHash = result.TxHash
		record.BlockNumber = result.BlockNumber
		record.ConfirmationsRequired = confirmations
		record.DeployedAt = time.Now().UTC()

		if err := env.history.Write(record); err != nil {
			return err
		}

		slog.
			With("proxy", record.Address).
			With("implementation", implementation).
			Info("proxy upgraded")

		if shouldVerify {
			if err := env.verifier.Verify(ctx, verify.Request{
				ChainID:     record.ChainID,
				Address:     implementation,
				Artifact:    artifact,
				EncodedArgs: result.EncodedArgs,
			}); err != nil {
				slog.With("err", err.Error()).Warn("source verification failed, upgrade is kept")
			}
		}

		return nil
	},
}

func init() {
	UpgradeCMD.Flags().StringVar(&upgradeImplementation, "implementation", "", "Artifact of the new implementation")
	UpgradeCMD.Flags().StringVar(&upgradeCall, "call", "", "Method of the new implementation to call during the upgrade")
	UpgradeCMD.Flags().StringSliceVar(&upgradeCallArgs, "call-args", nil, "Arguments of --call")
	if err := UpgradeCMD.MarkFlagRequired("implementation"); err != nil {
		panic(err)
	}
}
