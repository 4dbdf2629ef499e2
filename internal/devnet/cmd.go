package devnet

import (
	"fmt"
	"log/slog"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/spf13/cobra"
)

var CMD = &cobra.Command{
	Use:   "devnet",
	Short: "Commands for running a local anvil node",
}

func init() {
	CMD.AddCommand(startCmd)
	CMD.AddCommand(stopCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a local anvil node in Docker",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("running devnet start command")

		docker, err := NewDockerClient()
		if err != nil {
			return fmt.Errorf("failed to create docker client: %w", err)
		}
		defer docker.Close()

		url, err := NewService(docker, configs.Values.Devnet, contracts.WaitForRPC).Start(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), url)

		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop and remove the local anvil node",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("running devnet stop command")

		docker, err := NewDockerClient()
		if err != nil {
			return fmt.Errorf("failed to create docker client: %w", err)
		}
		defer docker.Close()

		return NewService(docker, configs.Values.Devnet, contracts.WaitForRPC).Stop(cmd.Context())
	},
}
