package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Manifest describes one run: its inputs, parameters, outputs and omissions
type Manifest struct {
	Version     string         `json:"version"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Alignment   string         `json:"alignment"`
	Metadata    string         `json:"metadata"`
	Fingerprint string         `json:"fingerprint"`
	Sequences   int            `json:"sequences"`
	References  int            `json:"references"`
	Queries     int            `json:"queries"`
	Columns     int            `json:"columns"`
	Windows     int            `json:"windows"`
	Workers     int            `json:"workers"`
	Parameters  any            `json:"parameters"`
	Tables      []string       `json:"tables"`
	Omissions   map[string]int `json:"omissions"`
}

// Encode renders the manifest as indented JSON
func (m *Manifest) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteManifest stores the manifest as run.json
func WriteManifest(ctx context.Context, store Storage, m *Manifest) error {
	data, err := m.Encode()
	if err != nil {
		return err
	}
	if err := store.WriteFile(ctx, ManifestFile, data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads run.json from a result location
func ReadManifest(ctx context.Context, store Storage) (*Manifest, error) {
	data, err := store.ReadFile(ctx, ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
