package deploy

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/artifacts"
	"github.com/compose-network/contract-deployer/internal/catalog"
	fsjson "github.com/compose-network/contract-deployer/internal/filesystem/json"
	"github.com/spf13/cobra"
)

var (
	compileProjectDir  string
	compileContracts   []string
	compileSkipInstall bool
)

var CompileCMD = &cobra.Command{
	Use:   "compile",
	Short: "Compile catalog contracts with forge into a contracts.json bundle",
	Long:  "Runs forge inspect for every artifact the catalog references and writes contracts.json with ABIs and bytecodes into the artifacts directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		slog.Info("running contract compilation command")

		names := compileContracts
		if len(names) == 0 {
			cat, err := catalog.FromConfig(configs.Values)
			if err != nil {
				return fmt.Errorf("invalid contract catalog: %w", err)
			}
			names = catalogArtifacts(cat)
		}

		compiler := artifacts.NewCompiler(compileProjectDir, configs.Values.Deployment.ArtifactsDir, fsjson.NewWriter())
		path, err := compiler.Compile(cmd.Context(), names, !compileSkipInstall)
		if err != nil {
			return fmt.Errorf("contract compilation failed: %w", err)
		}

		slog.With("path", path).Info("contract compilation completed successfully")

		return nil
	},
}

func init() {
	CompileCMD.Flags().StringVar(&compileProjectDir, "project-dir", ".", "Foundry project directory")
	CompileCMD.Flags().StringSliceVar(&compileContracts, "contracts", nil, "Contracts to compile (default: every artifact in the catalog)")
	CompileCMD.Flags().BoolVar(&compileSkipInstall, "skip-install", false, "Do not run forge install first")
}

// catalogArtifacts lists each artifact the catalog deploys, proxies included, once.
func catalogArtifacts(cat *catalog.Catalog) []string {
	var names []string
	add := func(name string) {
		if name != "" && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}

	for _, contract := range cat.Contracts() {
		add(contract.Artifact)
		if contract.Proxy != nil {
			add(contract.Proxy.Artifact)
		}
	}

	return names
}
