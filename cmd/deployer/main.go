package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/deploy"
	"github.com/compose-network/contract-deployer/internal/devnet"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "deployer"

var configFile string

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Network-aware smart contract deployer",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := configs.LoadDotEnv(".env"); err != nil {
			return err
		}

		cfg, err := configs.Load(viper.GetViper(), configFile)
		if err != nil {
			const errMsg = "unable to load application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		level, err := logger.ParseLevel(cfg.Log.Level)
		if err != nil {
			return err
		}
		logger.Initialize(level, cfg.Log.Format)

		if err := cfg.Validate(); err != nil {
			return err
		}

		configs.Values = cfg
		slog.With("network", cfg.Network).Debug("configuration loaded")

		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default: config.yaml in the executable dir, . or ./configs)")
	flags.String("network", "localhost", "Network to deploy to, as named under networks")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "json", "Log format: json or text")

	for flagName, viperKey := range map[string]string{
		"network":    "network",
		"log-level":  "log.level",
		"log-format": "log.format",
	} {
		if err := viper.BindPFlag(viperKey, flags.Lookup(flagName)); err != nil {
			panic(err)
		}
	}
}

func main() {
	rootCmd.AddCommand(deploy.CMD)
	rootCmd.AddCommand(deploy.CompileCMD)
	rootCmd.AddCommand(deploy.VerifyCMD)
	rootCmd.AddCommand(deploy.UpgradeCMD)
	rootCmd.AddCommand(deploy.RecordsCMD)
	rootCmd.AddCommand(devnet.CMD)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
