package schema

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/starford/ansuz/internal/checksum"
	"github.com/starford/ansuz/internal/storage"
)

// SnapshotPath is the vault-relative location of the schema fingerprint
// snapshot used for drift detection.
const SnapshotPath = ".ansuz/schema.sum"

// Fingerprint returns the stable fingerprint of raw schema bytes.
func Fingerprint(data []byte) string {
	return checksum.Sum(data)
}

// Drift describes whether the live schema differs from the snapshotted one.
// This core only detects drift; applying a migration is a separate concern.
type Drift struct {
	Drifted    bool   `json:"drifted"`
	Current    string `json:"current"`
	Snapshot   string `json:"snapshot,omitempty"`
	NoSnapshot bool   `json:"no_snapshot,omitempty"`
}

// DetectDrift compares the fingerprint of schemaData against the stored
// snapshot. A missing snapshot is reported as NoSnapshot, not as drift.
func DetectDrift(store storage.Provider, schemaData []byte) (*Drift, error) {
	current := Fingerprint(schemaData)

	raw, err := store.Read(SnapshotPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Drift{Current: current, NoSnapshot: true}, nil
		}
		return nil, fmt.Errorf("schema: read snapshot: %w", err)
	}

	snap := strings.TrimSpace(string(raw))
	return &Drift{
		Drifted:  snap != current,
		Current:  current,
		Snapshot: snap,
	}, nil
}

// WriteSnapshot records the current schema fingerprint as the new baseline.
func WriteSnapshot(store storage.Provider, schemaData []byte) error {
	sum := Fingerprint(schemaData)
	if err := store.Write(SnapshotPath, []byte(sum+"\n")); err != nil {
		return fmt.Errorf("schema: write snapshot: %w", err)
	}
	return nil
}
