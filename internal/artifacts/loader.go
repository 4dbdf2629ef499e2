package artifacts

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/compose-network/contract-deployer/internal/logger"
)

const (
	// BundleFileName is the file written by the compile command.
	BundleFileName = "contracts.json"

	buildInfoDirName = "build-info"
	debugSuffix      = ".dbg.json"
)

// Set is a collection of artifacts keyed by contract name.
type Set map[string]Artifact

// Get returns the artifact named name.
func (s Set) Get(name string) (Artifact, error) {
	a, ok := s[name]
	if !ok {
		return Artifact{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	return a, nil
}

func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Load walks dir and collects every artifact it recognises. When two files
// define the same contract name the first in lexical path order wins.
func Load(dir string) (Set, error) {
	log := logger.Named("artifacts")

	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("artifacts directory %s: %w", dir, err)
	}

	set := make(Set)
	foundryBuilds := make(buildInfoIndex)
	add := func(a Artifact) {
		if existing, dup := set[a.Name]; dup {
			log.
				With("contract", a.Name).
				With("kept", existing.Path).
				With("ignored", a.Path).
				Warn("duplicate artifact name")
			return
		}
		set[a.Name] = a
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == buildInfoDirName {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if filepath.Ext(name) != ".json" || strings.HasSuffix(name, debugSuffix) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		if name == BundleFileName {
			bundle, err := parseBundle(path, data)
			if err != nil {
				return err
			}
			sort.Slice(bundle, func(i, j int) bool { return bundle[i].Name < bundle[j].Name })
			for _, a := range bundle {
				add(a)
			}
			return nil
		}

		a, ok, err := parseArtifact(path, data)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		switch {
		case a.Format == FormatHardhat:
			a.buildInfoPath = resolveBuildInfo(strings.TrimSuffix(path, ".json") + debugSuffix)
		case a.Format == FormatFoundry && a.SourceName != "":
			// foundry writes out/<File>.sol/<Contract>.json next to out/build-info.
			a.buildInfoPath = foundryBuilds.lookup(filepath.Dir(filepath.Dir(path)), a.SourceName)
		}
		add(a)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load artifacts from %s: %w", dir, err)
	}

	log.With("dir", dir).With("count", len(set)).Debug("artifacts loaded")

	return set, nil
}

// resolveBuildInfo follows a hardhat debug file to its build-info file, returning "" when there is none.
func resolveBuildInfo(debugPath string) string {
	data, err := os.ReadFile(debugPath)
	if err != nil {
		return ""
	}

	var dbg debugFile
	if err := json.Unmarshal(data, &dbg); err != nil || dbg.BuildInfo == "" {
		return ""
	}

	return existing(filepath.Dir(debugPath), dbg.BuildInfo)
}

// existing resolves path against base and returns it when the file exists, "" otherwise.
func existing(base, path string) string {
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}

	return path
}

// buildInfoIndex maps a foundry output directory to the build-info file of each source it compiled.
type buildInfoIndex map[string]map[string]string

func (idx buildInfoIndex) lookup(outDir, sourceName string) string {
	sources, ok := idx[outDir]
	if !ok {
		sources = indexBuildInfo(filepath.Join(outDir, buildInfoDirName))
		idx[outDir] = sources
	}

	return sources[sourceName]
}

// indexBuildInfo reads every build-info file in dir. A source compiled by several
// builds resolves to the most recently written one.
func indexBuildInfo(dir string) map[string]string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var (
		sources = make(map[string]string)
		written = make(map[string]time.Time)
	)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		stat, err := entry.Info()
		if err != nil {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var info struct {
			Input struct {
				Sources map[string]json.RawMessage `json:"sources"`
			} `json:"input"`
		}
		if err := json.Unmarshal(data, &info); err != nil {
			continue
		}

		for source := range info.Input.Sources {
			if seen, ok := written[source]; ok && !stat.ModTime().After(seen) {
				continue
			}
			sources[source] = path
			written[source] = stat.ModTime()
		}
	}

	return sources
}
