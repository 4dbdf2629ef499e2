package deploy

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/compose-network/contract-deployer/configs"
	fsjson "github.com/compose-network/contract-deployer/internal/filesystem/json"
	"github.com/compose-network/contract-deployer/internal/output"
	"github.com/compose-network/contract-deployer/internal/resolver"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var dryRun bool

var CMD = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy the contract catalog to the selected network",
	Long: "Deploys the contracts selected by --tags, and the contracts they depend on, in catalog order. " +
		"Development networks get fresh mocks; public networks use the configured dependency addresses.",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("running deploy command")
		ctx := cmd.Context()

		env, err := newEnvironment(configs.Values)
		if err != nil {
			return err
		}
		defer env.Close()

		tags := env.cfg.Deployment.Tags

		if dryRun {
			if err := env.loadArtifacts(); err != nil {
				slog.With("err", err.Error()).Warn("artifacts unavailable, constructor arguments are not type-checked")
			}
			runner := NewRunner(env.catalog, env.resolver, DryRunDeployer{}, nil, dryRunArtifacts{set: env.artifacts}, nil, env.registry)
			report, runErr := runner.Run(ctx, env.profile, tags)
			if err := printPlans(cmd.OutOrStdout(), report.Plans); err != nil {
				return err
			}
			return runErr
		}

		if err := env.loadArtifacts(); err != nil {
			return err
		}
		if err := env.connect(ctx); err != nil {
			return err
		}

		runner := NewRunner(env.catalog, env.resolver, env.deployer, env.verifier, env.artifacts, env.history, env.registry)
		report, runErr := runner.Run(ctx, env.profile, tags)

		if path := env.cfg.Deployment.OutputFile; path != "" {
			if err := writeSummary(env, path, report); err != nil {
				slog.With("err", err.Error()).Error("failed to write deployment summary")
			} else {
				slog.With("path", path).Info("deployment summary written")
			}
		}

		if runErr != nil {
			return fmt.Errorf("deployment finished with failures: %w", runErr)
		}

		slog.Info("all selected contracts deployed")

		return nil
	},
}

func init() {
	if err := declareFlags(CMD, deployStringFlags); err != nil {
		panic(err)
	}
	if err := declareFlags(CMD, deployIntFlags); err != nil {
		panic(err)
	}

	CMD.Flags().StringSlice("tags", []string{"all"}, "Deploy only contracts carrying one of these tags")
	if err := viper.BindPFlag("deployment.tags", CMD.Flags().Lookup("tags")); err != nil {
		panic(err)
	}
	CMD.Flags().BoolVar(&dryRun, "dry-run", false, "Resolve and print deployment plans without sending transactions")
}

func writeSummary(env *environment, path string, report Report) error {
	abis := make(map[string]string, len(report.Deployed))
	for _, record := range report.Deployed {
		if artifact, err := env.artifacts.Get(record.Artifact); err == nil {
			abis[record.ContractName] = artifact.RawABI
		}
	}

	return output.NewGenerator(fsjson.NewWriter()).Generate(path, output.Summary{
		Network:  env.profile.Name,
		ChainID:  env.profile.ChainID,
		Deployer: env.deployer.From(),
		Records:  report.Deployed,
		ABIs:     abis,
		Skipped:  report.Skipped,
		Failed:   report.FailedByContract(),
	})
}

type planView struct {
	Contract        string `yaml:"contract"`
	ConstructorArgs []any  `yaml:"constructor-args"`
	InitializerArgs []any  `yaml:"initializer-args,omitempty"`
	Confirmations   uint64 `yaml:"confirmations"`
	Verify          bool   `yaml:"verify"`
}

func printPlans(w io.Writer, plans []resolver.Plan) error {
	views := make([]planView, 0, len(plans))
	for _, p := range plans {
		args := p.ConstructorArgs
		if args == nil {
			args = []any{}
		}
		views = append(views, planView{
			Contract:        p.ContractName,
			ConstructorArgs: args,
			InitializerArgs: p.InitializerArgs,
			Confirmations:   p.ConfirmationsRequired,
			Verify:          p.ShouldVerify,
		})
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(views); err != nil {
		return fmt.Errorf("failed to print plans: %w", err)
	}

	return enc.Close()
}
