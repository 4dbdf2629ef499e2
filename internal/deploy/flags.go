package deploy

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagDef defines a command-line flag bound to a viper configuration key.
type (
	flagType interface {
		string | int | bool
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

var (
	deployStringFlags = []flagDef[string]{
		{"artifacts-dir", "deployment.artifacts-dir", "artifacts", "Directory holding hardhat, foundry or bundled artifacts"},
		{"records-dir", "deployment.records-dir", "deployments", "Directory holding the deployment history"},
		{"output-file", "deployment.output-file", "deployment.yaml", "Summary written after a run (empty disables it)"},
	}

	deployIntFlags = []flagDef[int]{
		{"gas-limit", "deployment.gas-limit", 0, "Gas limit per transaction (0 estimates)"},
	}
)

// declareFlags declares multiple flags on cmd and binds them to viper configuration keys.
func declareFlags[T flagType](cmd *cobra.Command, flags []flagDef[T]) error {
	for _, flag := range flags {
		if err := declareFlag(cmd, flag.name, flag.viperKey, flag.defaultValue, flag.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a single flag and binds it to a viper configuration key.
// The type parameter T determines the flag type (string, int, or bool).
func declareFlag[T flagType](cmd *cobra.Command, flagName, viperKey string, defaultValue T, description string) error {
	var zero T
	switch any(zero).(type) {
	case string:
		cmd.Flags().String(flagName, any(defaultValue).(string), description)
	case int:
		cmd.Flags().Int(flagName, any(defaultValue).(int), description)
	case bool:
		cmd.Flags().Bool(flagName, any(defaultValue).(bool), description)
	}
	return viper.BindPFlag(viperKey, cmd.Flags().Lookup(flagName))
}
