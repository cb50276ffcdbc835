package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/dosanma1/clapforge/internal/plugin"
)

var (
	bundleIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)+$`)
	targetPattern   = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// RawArgs is the unvalidated invocation input.
type RawArgs struct {
	Target    string
	Release   bool
	BundleID  string
	Formats   []string // nil when not given
	Clean     bool
	Install   bool
	Version   string
	OutputDir string
	BuildRoot string
	Workspace string
	Verbose   bool
}

// ValidationError reports an invalid option. It is raised before any
// build step runs.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Configuration is a validated build plan. It cannot be modified after
// Generate returns it.
type Configuration struct {
	target           string
	profile          plugin.Profile
	formats          []plugin.Format
	bundleID         string
	version          string
	outputDir        string
	buildRoot        string
	workspace        string
	install          bool
	clean            bool
	verbose          bool
	platform         plugin.Platform
	wrapperRepo      string
	wrapperRev       string
	manufacturerName string
	manufacturerCode string
}

// Generate validates raw against platform, filling unset options from
// project (which may be nil) and then from built-in defaults. It has no
// side effects.
func Generate(raw RawArgs, platform plugin.Platform, project *ProjectFile) (*Configuration, error) {
	r := NewResolver(project)

	target := strings.TrimSpace(raw.Target)
	if target == "" {
		return nil, &ValidationError{Field: "target", Reason: "a target crate is required"}
	}
	if !targetPattern.MatchString(target) {
		return nil, &ValidationError{Field: "target", Reason: fmt.Sprintf("%q is not a valid crate name", target)}
	}

	if raw.Workspace == "" {
		return nil, &ValidationError{Field: "workspace", Reason: "workspace root is required"}
	}
	workspace, err := filepath.Abs(raw.Workspace)
	if err != nil {
		return nil, &ValidationError{Field: "workspace", Reason: err.Error()}
	}

	profile := plugin.ProfileDebug
	if raw.Release {
		profile = plugin.ProfileRelease
	}

	formats, err := resolveFormats(r.Formats(raw.Formats), platform)
	if err != nil {
		return nil, err
	}

	bundleID := strings.TrimSpace(r.BundleID(raw.BundleID))
	if err := ValidateBundleID(bundleID); err != nil {
		return nil, err
	}

	version := strings.TrimSpace(r.Version(raw.Version))
	if err := ValidateVersion(version); err != nil {
		return nil, err
	}

	mName, mCode := r.Manufacturer()
	if len(mCode) != 4 {
		return nil, &ValidationError{Field: "auv2.manufacturer_code", Reason: "must be exactly four characters"}
	}

	repo, rev := r.Wrapper()

	return &Configuration{
		target:           target,
		profile:          profile,
		formats:          formats,
		bundleID:         bundleID,
		version:          version,
		outputDir:        r.OutputDir(raw.OutputDir, workspace, target, string(profile)),
		buildRoot:        r.BuildRoot(raw.BuildRoot, workspace, target),
		workspace:        workspace,
		install:          raw.Install,
		clean:            raw.Clean,
		verbose:          raw.Verbose,
		platform:         platform,
		wrapperRepo:      repo,
		wrapperRev:       rev,
		manufacturerName: mName,
		manufacturerCode: mCode,
	}, nil
}

func resolveFormats(names []string, platform plugin.Platform) ([]plugin.Format, error) {
	if names == nil {
		return platform.DefaultFormats(), nil
	}

	var formats []plugin.Format
	for _, name := range names {
		// Accept comma-separated values inside a single entry.
		for _, part := range strings.Split(name, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			f, err := plugin.ParseFormat(part)
			if err != nil {
				return nil, &ValidationError{Field: "formats", Reason: err.Error()}
			}
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, &ValidationError{Field: "formats", Reason: "at least one plugin format is required"}
	}

	formats = plugin.SortFormats(formats)
	for _, f := range formats {
		if !platform.Supports(f) {
			return nil, &ValidationError{
				Field:  "formats",
				Reason: fmt.Sprintf("%s bundles can only be built on macOS, not %s", f, platform),
			}
		}
	}
	return formats, nil
}

// ValidateBundleID checks that id is a non-empty reverse-DNS identifier.
func ValidateBundleID(id string) error {
	if id == "" {
		return &ValidationError{Field: "bundle-id", Reason: "must not be empty"}
	}
	if !bundleIDPattern.MatchString(id) {
		return &ValidationError{Field: "bundle-id", Reason: fmt.Sprintf("%q is not a reverse-DNS identifier (e.g. com.example.gain)", id)}
	}
	return nil
}

// ValidateVersion checks that v is a semantic version without a "v" prefix.
func ValidateVersion(v string) error {
	if v == "" || strings.HasPrefix(v, "v") || !semver.IsValid("v"+v) {
		return &ValidationError{Field: "version", Reason: fmt.Sprintf("%q is not a semantic version", v)}
	}
	return nil
}

func (c *Configuration) Target() string            { return c.target }
func (c *Configuration) Profile() plugin.Profile   { return c.profile }
func (c *Configuration) BundleID() string          { return c.bundleID }
func (c *Configuration) Version() string           { return c.version }
func (c *Configuration) OutputDir() string         { return c.outputDir }
func (c *Configuration) BuildRoot() string         { return c.buildRoot }
func (c *Configuration) Workspace() string         { return c.workspace }
func (c *Configuration) Install() bool             { return c.install }
func (c *Configuration) Clean() bool               { return c.clean }
func (c *Configuration) Verbose() bool             { return c.verbose }
func (c *Configuration) Platform() plugin.Platform { return c.platform }

// Formats returns a copy of the requested formats in canonical order.
func (c *Configuration) Formats() []plugin.Format {
	return append([]plugin.Format(nil), c.formats...)
}

// HasFormat reports whether f was requested.
func (c *Configuration) HasFormat(f plugin.Format) bool {
	for _, have := range c.formats {
		if have == f {
			return true
		}
	}
	return false
}

// Wrapper returns the clap-wrapper repository and pinned revision.
func (c *Configuration) Wrapper() (repo, rev string) {
	return c.wrapperRepo, c.wrapperRev
}

// Manufacturer returns the AUv2 manufacturer name and code.
func (c *Configuration) Manufacturer() (name, code string) {
	return c.manufacturerName, c.manufacturerCode
}

// CMakeVersion returns the version reduced to the numeric
// MAJOR.MINOR.PATCH form CMake accepts.
func (c *Configuration) CMakeVersion() string {
	canonical := semver.Canonical("v" + c.version)
	canonical = strings.TrimSuffix(canonical, semver.Prerelease(canonical))
	return strings.TrimPrefix(canonical, "v")
}
