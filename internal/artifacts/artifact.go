// Package artifacts loads compiled contracts produced by hardhat, foundry or
// the compile command.
package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

type Format string

const (
	FormatHardhat Format = "hardhat"
	FormatFoundry Format = "foundry"
	FormatBundle  Format = "bundle"
)

var (
	ErrNotFound     = errors.New("artifact not found")
	ErrNoBuildInfo  = errors.New("artifact has no build info")
	ErrNoSourceName = errors.New("artifact has no source name")
)

type (
	Artifact struct {
		Name       string
		SourceName string
		ABI        abi.ABI
		RawABI     string
		Bytecode   []byte
		Format     Format
		Path       string

		buildInfoPath   string
		compilerVersion string
	}

	// BuildInfo is the compiler input of a build, as needed for explorer verification.
	BuildInfo struct {
		SolcVersion     string          `json:"solcVersion"`
		SolcLongVersion string          `json:"solcLongVersion"`
		Input           json.RawMessage `json:"input"`
	}

	rawArtifact struct {
		ContractName string          `json:"contractName"`
		SourceName   string          `json:"sourceName"`
		ABI          json.RawMessage `json:"abi"`
		Bytecode     json.RawMessage `json:"bytecode"`
		Metadata     json.RawMessage `json:"metadata"`
	}

	// contractMetadata is the subset of solc metadata foundry embeds in its artifacts.
	contractMetadata struct {
		Compiler struct {
			Version string `json:"version"`
		} `json:"compiler"`
		Settings struct {
			CompilationTarget map[string]string `json:"compilationTarget"`
		} `json:"settings"`
	}

	// bundleEntry is one contract of contracts.json. BuildInfo is relative to the bundle.
	bundleEntry struct {
		ABI        json.RawMessage `json:"abi"`
		Bytecode   string          `json:"bytecode"`
		SourceName string          `json:"sourceName,omitempty"`
		BuildInfo  string          `json:"buildInfo,omitempty"`
	}

	debugFile struct {
		BuildInfo string `json:"buildInfo"`
	}
)

// FullyQualifiedName returns "<source>:<name>", the form explorers expect.
func (a Artifact) FullyQualifiedName() (string, error) {
	if a.SourceName == "" {
		return "", fmt.Errorf("%s: %w", a.Name, ErrNoSourceName)
	}

	return a.SourceName + ":" + a.Name, nil
}

func (a Artifact) HasBuildInfo() bool {
	return a.buildInfoPath != ""
}

// BuildInfo reads the compiler input the artifact was built from.
func (a Artifact) BuildInfo() (BuildInfo, error) {
	if a.buildInfoPath == "" {
		return BuildInfo{}, fmt.Errorf("%s: %w", a.Name, ErrNoBuildInfo)
	}

	data, err := os.ReadFile(a.buildInfoPath)
	if err != nil {
		return BuildInfo{}, fmt.Errorf("failed to read build info of %s: %w", a.Name, err)
	}

	var info BuildInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return BuildInfo{}, fmt.Errorf("failed to parse build info of %s: %w", a.Name, err)
	}
	if info.SolcLongVersion == "" {
		info.SolcLongVersion = a.compilerVersion
	}
	if info.SolcVersion == "" {
		info.SolcVersion, _, _ = strings.Cut(info.SolcLongVersion, "+")
	}
	if info.SolcLongVersion == "" || len(info.Input) == 0 {
		return BuildInfo{}, fmt.Errorf("build info of %s lacks compiler version or input", a.Name)
	}

	return info, nil
}

func parseArtifact(path string, data []byte) (Artifact, bool, error) {
	var raw rawArtifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return Artifact{}, false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(raw.ABI) == 0 || len(raw.Bytecode) == 0 {
		return Artifact{}, false, nil
	}

	a := Artifact{
		Name:       raw.ContractName,
		SourceName: raw.SourceName,
		RawABI:     string(raw.ABI),
		Path:       path,
	}
	if a.Name == "" {
		a.Name = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	var bytecode string
	switch {
	case json.Unmarshal(raw.Bytecode, &bytecode) == nil:
		a.Format = FormatHardhat
	default:
		var object struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(raw.Bytecode, &object); err != nil {
			return Artifact{}, false, fmt.Errorf("%s: unrecognised bytecode field: %w", path, err)
		}
		bytecode = object.Object
		a.Format = FormatFoundry
		a.applyMetadata(raw.Metadata)
	}

	var err error
	if a.ABI, a.Bytecode, err = decode(raw.ABI, bytecode); err != nil {
		return Artifact{}, false, fmt.Errorf("%s: %w", path, err)
	}
	if len(a.Bytecode) == 0 {
		return Artifact{}, false, nil
	}

	return a, true, nil
}

// applyMetadata fills the source name and compiler version from solc metadata, when present.
func (a *Artifact) applyMetadata(raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}

	var meta contractMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return
	}

	for source, name := range meta.Settings.CompilationTarget {
		if name == a.Name && a.SourceName == "" {
			a.SourceName = source
		}
	}
	a.compilerVersion = meta.Compiler.Version
}

func parseBundle(path string, data []byte) ([]Artifact, error) {
	var bundle map[string]bundleEntry
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	list := make([]Artifact, 0, len(bundle))
	for name, entry := range bundle {
		parsedABI, bytecode, err := decode(entry.ABI, entry.Bytecode)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, name, err)
		}
		a := Artifact{
			Name:       name,
			SourceName: entry.SourceName,
			ABI:        parsedABI,
			RawABI:     string(entry.ABI),
			Bytecode:   bytecode,
			Format:     FormatBundle,
			Path:       path,
		}
		if entry.BuildInfo != "" {
			a.buildInfoPath = existing(filepath.Dir(path), entry.BuildInfo)
		}
		list = append(list, a)
	}

	return list, nil
}

func decode(rawABI json.RawMessage, bytecodeHex string) (abi.ABI, []byte, error) {
	parsedABI, err := abi.JSON(strings.NewReader(string(rawABI)))
	if err != nil {
		return abi.ABI{}, nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	bytecodeHex = strings.TrimPrefix(strings.TrimSpace(bytecodeHex), "0x")
	if len(bytecodeHex)%2 != 0 {
		return abi.ABI{}, nil, errors.New("bytecode has odd length")
	}
	if strings.Contains(bytecodeHex, "__") {
		return abi.ABI{}, nil, errors.New("bytecode has unlinked library references")
	}

	return parsedABI, common.FromHex(bytecodeHex), nil
}
