// Package dataset loads a CSV dataset into the embedded analytical
// store, driven by a YAML manifest and the dataset's schema registry.
package dataset

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest names a dataset's source file and schema definition.
// Relative paths resolve against the manifest's directory.
type Manifest struct {
	Name   string `yaml:"name"`
	CSV    string `yaml:"csv"`
	Schema string `yaml:"schema"`
}

// LoadManifest reads and validates a manifest file, resolving its
// relative paths.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest: name is required")
	}
	if m.CSV == "" {
		return nil, fmt.Errorf("manifest: csv path is required")
	}
	if m.Schema == "" {
		return nil, fmt.Errorf("manifest: schema path is required")
	}

	base := filepath.Dir(path)
	if !filepath.IsAbs(m.CSV) {
		m.CSV = filepath.Join(base, m.CSV)
	}
	if !filepath.IsAbs(m.Schema) {
		m.Schema = filepath.Join(base, m.Schema)
	}
	return &m, nil
}
