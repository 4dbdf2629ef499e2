package deploy

import (
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/verify"
	"github.com/spf13/cobra"
)

var VerifyCMD = &cobra.Command{
	Use:   "verify <contract>",
	Short: "Submit source verification for a recorded deployment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("running verify command", "contract", args[0])

		env, err := newEnvironment(configs.Values)
		if err != nil {
			return err
		}

		if env.profile.IsDevelopment {
			return fmt.Errorf("network %s is a development network, nothing to verify", env.profile.Name)
		}

		record, err := env.history.Read(env.profile.Name, args[0])
		if err != nil {
			return err
		}

		if err := env.loadArtifacts(); err != nil {
			return err
		}
		artifact, err := env.artifacts.Get(record.Artifact)
		if err != nil {
			return err
		}

		return env.verifier.Verify(cmd.Context(), verify.Request{
			ChainID:     record.ChainID,
			Address:     record.VerificationTarget(),
			Artifact:    artifact,
			EncodedArgs: record.EncodedArgs,
		})
	},
}
