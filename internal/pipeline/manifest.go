package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dosanma1/clapforge/internal/config"
	"github.com/dosanma1/clapforge/internal/plugin"
	"github.com/dosanma1/clapforge/pkg/xos"
)

// ManifestFileName is written into the output directory next to the
// bundles.
const ManifestFileName = "bundles.yaml"

// Manifest describes the bundles of one packaging run.
type Manifest struct {
	Target   string          `yaml:"target"`
	BundleID string          `yaml:"bundle_id"`
	Version  string          `yaml:"version"`
	Profile  plugin.Profile  `yaml:"profile"`
	Platform plugin.Platform `yaml:"platform"`
	Bundles  []ManifestEntry `yaml:"bundles"`
}

// ManifestEntry names the bundle produced for one format.
type ManifestEntry struct {
	Format plugin.Format `yaml:"format"`
	Name   string        `yaml:"name"`
}

// NewManifest builds the manifest for bundles produced under cfg.
// Entries follow canonical format order.
func NewManifest(cfg *config.Configuration, bundles []plugin.Bundle) *Manifest {
	m := &Manifest{
		Target:   cfg.Target(),
		BundleID: cfg.BundleID(),
		Version:  cfg.Version(),
		Profile:  cfg.Profile(),
		Platform: cfg.Platform(),
	}
	byFormat := make(map[plugin.Format]plugin.Bundle, len(bundles))
	for _, b := range bundles {
		byFormat[b.Format] = b
	}
	for _, f := range plugin.AllFormats() {
		if b, ok := byFormat[f]; ok {
			m.Bundles = append(m.Bundles, ManifestEntry{Format: f, Name: b.Name()})
		}
	}
	return m
}

// Marshal encodes the manifest as YAML.
func (m *Manifest) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteManifest atomically writes the manifest into dir and returns its
// path.
func WriteManifest(dir string, m *Manifest) (string, error) {
	data, err := m.Marshal()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, ManifestFileName)
	if err := xos.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// RemoveRecorded deletes the bundles listed by the manifest in dir, then
// the manifest itself. Nothing else in dir is touched. A missing manifest
// is not an error.
func RemoveRecorded(dir string) ([]string, error) {
	path := filepath.Join(dir, ManifestFileName)
	m, err := ReadManifest(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, e := range m.Bundles {
		if e.Name == "" || e.Name == "." || e.Name == ".." || filepath.Base(e.Name) != e.Name {
			return removed, fmt.Errorf("manifest %s names %q outside its directory", path, e.Name)
		}
		bundle := filepath.Join(dir, e.Name)
		if err := os.RemoveAll(bundle); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", bundle, err)
		}
		removed = append(removed, bundle)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return removed, fmt.Errorf("failed to remove manifest: %w", err)
	}
	return append(removed, path), nil
}
