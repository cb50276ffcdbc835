// Package config turns command-line options and the optional clapforge.yaml
// project file into a validated, immutable build configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectFileName is the optional per-workspace configuration file.
const ProjectFileName = "clapforge.yaml"

// ProjectFile represents the clapforge.yaml configuration file.
type ProjectFile struct {
	// Bundle identifier applied when --bundle-id is not given.
	BundleID string `yaml:"bundle_id,omitempty"`

	// Plugin version, semver without a leading "v".
	Version string `yaml:"version,omitempty"`

	// Default format set.
	Formats []string `yaml:"formats,omitempty"`

	// Output and build roots, relative to the workspace root.
	OutputDir string `yaml:"output_dir,omitempty"`
	BuildRoot string `yaml:"build_root,omitempty"`

	ClapWrapper WrapperConfig `yaml:"clap_wrapper,omitempty"`
	AUv2        AUv2Config    `yaml:"auv2,omitempty"`
}

// WrapperConfig pins the clap-wrapper dependency.
type WrapperConfig struct {
	Repository string `yaml:"repository,omitempty"`
	Revision   string `yaml:"revision,omitempty"`
}

// AUv2Config holds Audio Unit registration settings.
type AUv2Config struct {
	ManufacturerName string `yaml:"manufacturer_name,omitempty"`
	ManufacturerCode string `yaml:"manufacturer_code,omitempty"`
}

// LoadProject reads, schema-checks and parses a project file.
func LoadProject(path string) (*ProjectFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := ValidateSchema(path, data); err != nil {
		return nil, err
	}

	var project ProjectFile
	if err := yaml.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &project, nil
}

// FindProjectFile walks up from start looking for clapforge.yaml. It
// returns "" when no file exists up to the filesystem root.
func FindProjectFile(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, ProjectFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
