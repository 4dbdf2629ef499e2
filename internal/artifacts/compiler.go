package artifacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/compose-network/contract-deployer/internal/filesystem"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
)

type (
	// CommandRunner runs a forge subcommand in dir and returns its stdout.
	CommandRunner func(ctx context.Context, dir string, args ...string) ([]byte, error)

	// Compiler builds a contracts.json bundle from a foundry project.
	Compiler struct {
		projectDir string
		outputDir  string
		writer     filesystem.Writer
		run        CommandRunner
		logger     *slog.Logger
	}
)

// placeholderAddress satisfies forge verify-contract when it only prints the standard-JSON input.
const placeholderAddress = "0x0000000000000000000000000000000000000000"

func NewCompiler(projectDir, outputDir string, writer filesystem.Writer) *Compiler {
	return &Compiler{
		projectDir: projectDir,
		outputDir:  outputDir,
		writer:     writer,
		run:        runForge,
		logger:     logger.Named("contracts_compiler"),
	}
}

// WithRunner replaces the forge invocation.
func (c *Compiler) WithRunner(run CommandRunner) *Compiler {
	c.run = run
	return c
}

// Compile inspects each contract with forge and writes the bundle. It returns the bundle path.
// Each contract's standard-JSON input is written under build-info for explorer verification;
// a contract whose input cannot be captured is still bundled, without build info.
func (c *Compiler) Compile(ctx context.Context, contractNames []string, install bool) (string, error) {
	c.logger.
		With("project_dir", c.projectDir).
		With("contracts", contractNames).
		Info("starting contract compilation")

	if install {
		c.logger.Info("installing forge dependencies")
		if _, err := c.run(ctx, c.projectDir, "install"); err != nil {
			return "", fmt.Errorf("forge install failed: %w", err)
		}
	}

	bundle := make(map[string]bundleEntry, len(contractNames))
	for _, name := range contractNames {
		c.logger.With("name", name).Info("compiling contract")

		entry, err := c.inspect(ctx, name)
		if err != nil {
			return "", fmt.Errorf("failed to compile %s: %w", name, err)
		}

		if err := c.captureBuildInfo(ctx, name, &entry); err != nil {
			c.logger.
				With("name", name).
				With("err", err.Error()).
				Warn("build info unavailable, the contract cannot be verified")
		}
		bundle[name] = entry
	}

	path := filepath.Join(c.outputDir, BundleFileName)
	if err := c.writer.WriteJSON(path, bundle); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", BundleFileName, err)
	}

	c.logger.With("path", path).Info("contracts compiled successfully")

	return path, nil
}

func (c *Compiler) inspect(ctx context.Context, contractName string) (bundleEntry, error) {
	abiOutput, err := c.run(ctx, c.projectDir, "inspect", contractName, "abi", "--json")
	if err != nil {
		return bundleEntry{}, fmt.Errorf("failed to get ABI for %s: %w", contractName, err)
	}
	if _, err := abi.JSON(strings.NewReader(string(abiOutput))); err != nil {
		return bundleEntry{}, fmt.Errorf("failed to parse ABI for %s: %w", contractName, err)
	}

	bytecodeOutput, err := c.run(ctx, c.projectDir, "inspect", contractName, "bytecode")
	if err != nil {
		return bundleEntry{}, fmt.Errorf("failed to get bytecode for %s: %w", contractName, err)
	}

	return bundleEntry{
		ABI:      json.RawMessage(abiOutput),
		Bytecode: strings.TrimSpace(string(bytecodeOutput)),
	}, nil
}

// captureBuildInfo records the source name of contractName and writes its compiler input
// to <output>/build-info/<contractName>.json.
func (c *Compiler) captureBuildInfo(ctx context.Context, contractName string, entry *bundleEntry) error {
	metadataOutput, err := c.run(ctx, c.projectDir, "inspect", contractName, "metadata", "--json")
	if err != nil {
		return fmt.Errorf("failed to get metadata: %w", err)
	}

	var meta contractMetadata
	if err := json.Unmarshal(metadataOutput, &meta); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}

	var sourceName string
	for source, name := range meta.Settings.CompilationTarget {
		if name == contractName {
			sourceName = source
		}
	}
	if sourceName == "" {
		return ErrNoSourceName
	}
	if meta.Compiler.Version == "" {
		return errors.New("metadata has no compiler version")
	}

	input, err := c.run(ctx, c.projectDir, "verify-contract", "--show-standard-json-input", placeholderAddress, sourceName+":"+contractName)
	if err != nil {
		return fmt.Errorf("failed to get standard-JSON input: %w", err)
	}
	if !json.Valid(input) {
		return errors.New("standard-JSON input is not valid JSON")
	}

	shortVersion, _, _ := strings.Cut(meta.Compiler.Version, "+")
	rel := filepath.Join(buildInfoDirName, contractName+".json")
	if err := c.writer.WriteJSON(filepath.Join(c.outputDir, rel), BuildInfo{
		SolcVersion:     shortVersion,
		SolcLongVersion: meta.Compiler.Version,
		Input:           json.RawMessage(input),
	}); err != nil {
		return fmt.Errorf("failed to write build info: %w", err)
	}

	entry.SourceName = sourceName
	entry.BuildInfo = rel

	return nil
}

func runForge(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "forge", args...)
	cmd.Dir = dir
	cmd.Stderr = os.Stderr

	return cmd.Output()
}
