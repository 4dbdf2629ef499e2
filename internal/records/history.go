package records

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-network/contract-deployer/internal/filesystem"
	"github.com/compose-network/contract-deployer/internal/logger"
)

const chainIDFileName = ".chainId"

// ErrNotFound is returned by History.Read when no record exists for a contract.
var ErrNotFound = errors.New("deployment record not found")

// History keeps one JSON file per deployed contract under <dir>/<network>/.
type History struct {
	dir    string
	reader filesystem.Reader
	writer filesystem.Writer
	logger *slog.Logger
}

func NewHistory(dir string, reader filesystem.Reader, writer filesystem.Writer) *History {
	return &History{
		dir:    dir,
		reader: reader,
		writer: writer,
		logger: logger.Named("deployment_history"),
	}
}

// Write persists record, replacing any earlier record of the same contract on that network.
func (h *History) Write(record Record) error {
	networkDir := filepath.Join(h.dir, record.Network)

	if err := h.writer.WriteBytes(filepath.Join(networkDir, chainIDFileName), []byte(strconv.FormatUint(record.ChainID, 10))); err != nil {
		return fmt.Errorf("failed to write chain id for %s: %w", record.Network, err)
	}

	path := filepath.Join(networkDir, record.ContractName+".json")
	if err := h.writer.WriteJSON(path, record); err != nil {
		return fmt.Errorf("failed to write record for %s: %w", record.ContractName, err)
	}

	h.logger.
		With("contract", record.ContractName).
		With("network", record.Network).
		With("path", path).
		Debug("deployment record written")

	return nil
}

// Read loads the record of contractName on network.
func (h *History) Read(network, contractName string) (Record, error) {
	var record Record
	path := filepath.Join(h.dir, network, contractName+".json")
	if err := h.reader.ReadJSON(path, &record); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, fmt.Errorf("%s on %s: %w", contractName, network, ErrNotFound)
		}
		return Record{}, err
	}

	return record, nil
}

// List returns every record stored for network, sorted by contract name.
func (h *History) List(network string) ([]Record, error) {
	entries, err := os.ReadDir(filepath.Join(h.dir, network))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list records for %s: %w", network, err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(names)

	list := make([]Record, 0, len(names))
	for _, name := range names {
		record, err := h.Read(network, name)
		if err != nil {
			return nil, err
		}
		list = append(list, record)
	}

	return list, nil
}
