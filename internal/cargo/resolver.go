// Package cargo builds the plugin core crate as a static library and
// locates the resulting archive.
package cargo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dosanma1/clapforge/internal/plugin"
)

// Apple targets merged into one universal archive.
var AppleTriples = []string{"x86_64-apple-darwin", "aarch64-apple-darwin"}

// Layout describes a cargo workspace on disk.
type Layout struct {
	// Root is the workspace root holding Cargo.toml.
	Root string
	// TargetDir overrides <Root>/target when set.
	TargetDir string
}

// Target returns the cargo target directory.
func (l Layout) Target() string {
	if l.TargetDir != "" {
		return l.TargetDir
	}
	return filepath.Join(l.Root, "target")
}

// CrateIdent normalizes a crate name the way rustc names its outputs.
func CrateIdent(target string) string {
	return strings.ReplaceAll(target, "-", "_")
}

// LibraryName returns the file name of the static library for target.
func LibraryName(target string, platform plugin.Platform) string {
	if platform.IsWindows() {
		return CrateIdent(target) + ".lib"
	}
	return "lib" + CrateIdent(target) + ".a"
}

// ArtifactPath computes where cargo writes the static library. An empty
// triple means the host target.
func (l Layout) ArtifactPath(target string, profile plugin.Profile, platform plugin.Platform, triple string) string {
	dir := filepath.Join(l.Target(), string(profile))
	if triple != "" {
		dir = filepath.Join(l.Target(), triple, string(profile))
	}
	return filepath.Join(dir, LibraryName(target, platform))
}

// UniversalPath is the merged multi-architecture archive on Apple.
func (l Layout) UniversalPath(target string, profile plugin.Profile) string {
	return filepath.Join(l.Target(), "universal", string(profile), LibraryName(target, plugin.PlatformApple))
}

// ExpectedPath is the archive the native build consumes on platform.
func (l Layout) ExpectedPath(target string, profile plugin.Profile, platform plugin.Platform) string {
	if platform.IsApple() {
		return l.UniversalPath(target, profile)
	}
	return l.ArtifactPath(target, profile, platform, "")
}

// ArtifactNotFoundError reports a static library missing after a build
// that claimed success.
type ArtifactNotFoundError struct {
	Target string
	Path   string
	Err    error
}

func (e *ArtifactNotFoundError) Error() string {
	msg := fmt.Sprintf("static library for %q not found at %s", e.Target, e.Path)
	if e.Err != nil && !errors.Is(e.Err, fs.ErrNotExist) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ArtifactNotFoundError) Unwrap() error { return e.Err }

// Resolve returns the absolute path of the built static library, failing
// with *ArtifactNotFoundError when it is absent.
func Resolve(layout Layout, target string, profile plugin.Profile, platform plugin.Platform) (string, error) {
	p, err := filepath.Abs(layout.ExpectedPath(target, profile, platform))
	if err != nil {
		return "", err
	}
	if err := requireFile(target, p); err != nil {
		return "", err
	}
	return p, nil
}

// Resolve is Resolve bound to this layout.
func (l Layout) Resolve(target string, profile plugin.Profile, platform plugin.Platform) (string, error) {
	return Resolve(l, target, profile, platform)
}

func requireFile(target, p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return &ArtifactNotFoundError{Target: target, Path: p, Err: err}
	}
	if !info.Mode().IsRegular() {
		return &ArtifactNotFoundError{Target: target, Path: p, Err: fmt.Errorf("not a regular file")}
	}
	return nil
}

// Artifact is a resolved static library ready for the native build.
type Artifact struct {
	Target   string
	Path     string
	Platform plugin.Platform
	Profile  plugin.Profile
	// NativeLibraries are extra link inputs reported by build scripts.
	NativeLibraries []string
}
