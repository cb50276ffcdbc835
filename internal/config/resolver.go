package config

import (
	"path/filepath"

	"github.com/dosanma1/clapforge/internal/wrapper"
)

const (
	// DefaultBundleID is the placeholder identifier used when none is set.
	DefaultBundleID = "org.free-audio.rust-gain-example"
	// DefaultVersion is the plugin version used when none is set.
	DefaultVersion = "0.1.0"
	// DefaultManufacturerName is the AUv2 manufacturer name.
	DefaultManufacturerName = "free-audio"
	// DefaultManufacturerCode is the AUv2 four-character manufacturer code.
	DefaultManufacturerCode = "Frau"
)

// Resolver handles configuration precedence: CLI flag > clapforge.yaml >
// built-in default.
type Resolver struct {
	project *ProjectFile
}

// NewResolver creates a new configuration resolver. project may be nil.
func NewResolver(project *ProjectFile) *Resolver {
	if project == nil {
		project = &ProjectFile{}
	}
	return &Resolver{project: project}
}

// BundleID resolves the bundle identifier.
func (r *Resolver) BundleID(flag string) string {
	return firstNonEmpty(flag, r.project.BundleID, DefaultBundleID)
}

// Version resolves the plugin version.
func (r *Resolver) Version(flag string) string {
	return firstNonEmpty(flag, r.project.Version, DefaultVersion)
}

// Formats resolves the requested format names. A nil flag means "not
// given"; nil from both sources means the platform default.
func (r *Resolver) Formats(flag []string) []string {
	if flag != nil {
		return flag
	}
	if len(r.project.Formats) > 0 {
		return r.project.Formats
	}
	return nil
}

// OutputDir resolves the directory bundles are written to. Relative paths
// are anchored at the workspace root; the project file value is a parent
// directory shared by all targets.
func (r *Resolver) OutputDir(flag, workspace, target, profile string) string {
	if flag != "" {
		return anchor(workspace, flag)
	}
	if r.project.OutputDir != "" {
		return filepath.Join(anchor(workspace, r.project.OutputDir), profile, target)
	}
	return filepath.Join(workspace, "target", profile, "plugins", target)
}

// BuildRoot resolves the directory holding generated native build state
// for target.
func (r *Resolver) BuildRoot(flag, workspace, target string) string {
	if flag != "" {
		return anchor(workspace, flag)
	}
	if r.project.BuildRoot != "" {
		return filepath.Join(anchor(workspace, r.project.BuildRoot), target)
	}
	return filepath.Join(workspace, "target", "clapforge", target)
}

// Wrapper resolves the clap-wrapper repository and revision.
func (r *Resolver) Wrapper() (repo, rev string) {
	return firstNonEmpty(r.project.ClapWrapper.Repository, wrapper.DefaultRepository),
		firstNonEmpty(r.project.ClapWrapper.Revision, wrapper.DefaultRevision)
}

// Manufacturer resolves the AUv2 manufacturer name and code.
func (r *Resolver) Manufacturer() (name, code string) {
	return firstNonEmpty(r.project.AUv2.ManufacturerName, DefaultManufacturerName),
		firstNonEmpty(r.project.AUv2.ManufacturerCode, DefaultManufacturerCode)
}

func anchor(workspace, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(workspace, p)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
