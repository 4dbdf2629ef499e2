package configs

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

//go:embed config.example.yaml
var defaultConfigYAML string

const envPrefix = "DEPLOYER"

// secretEnv maps config keys to the conventional environment variables used by hardhat workspaces.
var secretEnv = map[string]string{
	"secrets.private-key":       "PRIVATE_KEY",
	"secrets.etherscan-api-key": "ETHERSCAN_API_KEY",
}

// Load layers the embedded defaults, an optional config file and the environment
// into v and decodes the result. An empty configFile searches for config.yaml
// next to the executable, in the working directory and in ./configs.
func Load(v *viper.Viper, configFile string) (Config, error) {
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
		return Config{}, fmt.Errorf("failed to read embedded defaults: %w", err)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range secretEnv {
		if err := v.BindEnv(key, env, envPrefix+"_"+strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		if execPath, err := os.Executable(); err == nil {
			v.AddConfigPath(filepath.Dir(execPath))
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		slog.Debug("no config file found, relying on defaults, flags and environment")
	} else {
		slog.With("config_file", v.ConfigFileUsed()).Debug("config file merged")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode application config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns the configuration described by the embedded config.example.yaml alone.
func DefaultConfig() (Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
		return Config{}, fmt.Errorf("failed to read embedded config.example.yaml: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode embedded config.example.yaml: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	return nil
}
