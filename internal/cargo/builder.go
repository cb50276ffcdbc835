package cargo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dosanma1/clapforge/internal/plugin"
	"github.com/dosanma1/clapforge/internal/toolexec"
)

// BuildResult is what a successful compile reports besides the archive.
type BuildResult struct {
	// NativeLibraries are link inputs discovered in build script search
	// paths, deduplicated across architectures.
	NativeLibraries []string
}

// Builder invokes cargo to produce the core static library.
type Builder struct {
	layout Layout
	runner toolexec.Runner
	logger *slog.Logger
}

// NewBuilder creates a new cargo builder.
func NewBuilder(layout Layout, runner toolexec.Runner, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{layout: layout, runner: runner, logger: logger}
}

// Build compiles target and blocks until cargo exits. On Apple both
// architectures are compiled and merged into one universal archive.
// Compiler failures surface as *toolexec.CompileError and are not retried.
func (b *Builder) Build(ctx context.Context, target string, profile plugin.Profile, platform plugin.Platform) (*BuildResult, error) {
	if platform.IsApple() {
		return b.buildUniversal(ctx, target, profile)
	}

	libs, err := b.cargoBuild(ctx, target, profile, platform, "")
	if err != nil {
		return nil, err
	}
	return &BuildResult{NativeLibraries: libs}, nil
}

func (b *Builder) cargoBuild(ctx context.Context, target string, profile plugin.Profile, platform plugin.Platform, triple string) ([]string, error) {
	args := []string{"build", "--verbose", "--lib", "-p", target}
	if profile == plugin.ProfileRelease {
		args = append(args, "--release")
	}
	if triple != "" {
		args = append(args, "--target", triple)
	}

	b.logger.Info("compiling core", "target", target, "profile", profile, "triple", triple)
	res, err := b.runner.Run(ctx, toolexec.Command{Name: "cargo", Args: args, Dir: b.layout.Root})
	if err != nil {
		return nil, err
	}

	output := append(append([]byte{}, res.Stdout...), res.Stderr...)
	dirs := NativeSearchDirs(output, target)
	libs := NativeLibraries(dirs, platform)
	b.logger.Debug("native link inputs", "target", target, "dirs", len(dirs), "libraries", len(libs))
	return libs, nil
}

func (b *Builder) buildUniversal(ctx context.Context, target string, profile plugin.Profile) (*BuildResult, error) {
	args := append([]string{"target", "add"}, AppleTriples...)
	if _, err := b.runner.Run(ctx, toolexec.Command{Name: "rustup", Args: args, Dir: b.layout.Root}); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var libs []string
	var slices []string
	for _, triple := range AppleTriples {
		found, err := b.cargoBuild(ctx, target, profile, plugin.PlatformApple, triple)
		if err != nil {
			return nil, err
		}
		for _, l := range found {
			if !seen[l] {
				seen[l] = true
				libs = append(libs, l)
			}
		}

		slice := b.layout.ArtifactPath(target, profile, plugin.PlatformApple, triple)
		if err := requireFile(target, slice); err != nil {
			return nil, err
		}
		slices = append(slices, slice)
	}

	universal := b.layout.UniversalPath(target, profile)
	if err := os.MkdirAll(filepath.Dir(universal), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create universal directory: %w", err)
	}

	lipo := append([]string{"-create"}, slices...)
	lipo = append(lipo, "-output", universal)
	b.logger.Info("merging architectures", "output", universal)
	if _, err := b.runner.Run(ctx, toolexec.Command{Name: "lipo", Args: lipo, Dir: b.layout.Root}); err != nil {
		return nil, err
	}

	return &BuildResult{NativeLibraries: libs}, nil
}
