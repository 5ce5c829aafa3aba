// Package export writes and reads YAML snapshots of every persisted
// document, for backup and device migration.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/gmsas95/medimate/internal/errors"
	"github.com/gmsas95/medimate/internal/storage"
)

// snapshotVersion marks the snapshot file format.
const snapshotVersion = 1

// Snapshot is the exported file shape. Documents maps storage keys to their
// decoded JSON values so the YAML stays human-readable.
type Snapshot struct {
	Version    int                    `yaml:"version"`
	ExportedAt time.Time              `yaml:"exportedAt"`
	Documents  map[string]interface{} `yaml:"documents"`
}

// Exporter snapshots the persistence gateway.
type Exporter struct {
	store  storage.Gateway
	logger *zap.Logger
}

// New creates an exporter.
func New(store storage.Gateway, logger *zap.Logger) *Exporter {
	return &Exporter{store: store, logger: logger}
}

// Export writes every stored document to path as YAML.
func (e *Exporter) Export(path string) error {
	keys, err := e.store.Keys()
	if err != nil {
		return errors.Wrap(err, "STORE_001", "failed to list documents")
	}

	snapshot := Snapshot{
		Version:    snapshotVersion,
		ExportedAt: time.Now(),
		Documents:  make(map[string]interface{}, len(keys)),
	}
	for _, key := range keys {
		raw, err := e.store.Get(key)
		if err != nil {
			return errors.Wrap(err, "STORE_001", fmt.Sprintf("failed to read %s", key))
		}
		if raw == nil {
			continue
		}
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			return errors.Wrap(err, "STORE_001", fmt.Sprintf("document %s is not valid JSON", key))
		}
		snapshot.Documents[key] = value
	}

	out, err := yaml.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "GEN_002", "failed to encode snapshot")
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return errors.Wrap(err, "STORE_002", fmt.Sprintf("failed to write %s", path))
	}

	e.logger.Info("Snapshot exported",
		zap.String("path", path),
		zap.Int("documents", len(snapshot.Documents)),
	)

	return nil
}

// Import loads a snapshot file and writes its documents back into the
// store, replacing whatever is there for each key.
func (e *Exporter) Import(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "STORE_001", fmt.Sprintf("failed to read %s", path))
	}

	var snapshot Snapshot
	if err := yaml.Unmarshal(raw, &snapshot); err != nil {
		return errors.Wrap(err, "VALID_001", "snapshot file is not valid YAML")
	}
	if snapshot.Version != snapshotVersion {
		return errors.New("VALID_001", fmt.Sprintf("unsupported snapshot version %d", snapshot.Version))
	}

	for key, value := range snapshot.Documents {
		encoded, err := json.Marshal(value)
		if err != nil {
			return errors.Wrap(err, "VALID_001", fmt.Sprintf("document %s cannot be encoded", key))
		}
		if err := e.store.Set(key, encoded); err != nil {
			return errors.Wrap(err, "STORE_002", fmt.Sprintf("failed to restore %s", key))
		}
	}

	e.logger.Info("Snapshot imported",
		zap.String("path", path),
		zap.Int("documents", len(snapshot.Documents)),
	)

	return nil
}
