package cmake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dosanma1/clapforge/internal/abi"
	"github.com/dosanma1/clapforge/internal/cargo"
	"github.com/dosanma1/clapforge/internal/config"
	"github.com/dosanma1/clapforge/internal/plugin"
	"github.com/dosanma1/clapforge/internal/template"
	"github.com/dosanma1/clapforge/internal/toolexec"
	"github.com/dosanma1/clapforge/pkg/xos"
)

// DependencyResolver provides the clap-wrapper source tree at a pinned
// revision.
type DependencyResolver interface {
	Resolve(ctx context.Context, repo, rev string) (string, error)
}

// PackagingError reports bundles the native build did not produce.
type PackagingError struct {
	Missing   []plugin.Format
	Ambiguous map[plugin.Format][]string
	Dir       string
}

func (e *PackagingError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		names := make([]string, len(e.Missing))
		for i, f := range e.Missing {
			names[i] = f.String()
		}
		parts = append(parts, "no bundle produced for "+strings.Join(names, ", "))
	}
	for _, f := range plugin.AllFormats() {
		if found, ok := e.Ambiguous[f]; ok {
			parts = append(parts, fmt.Sprintf("%d %s bundles found (%s)", len(found), f, strings.Join(found, ", ")))
		}
	}
	return fmt.Sprintf("packaging failed in %s: %s", e.Dir, strings.Join(parts, "; "))
}

// Invoker generates, configures and builds the native project and
// collects one bundle per requested format.
type Invoker struct {
	runner toolexec.Runner
	deps   DependencyResolver
	engine *template.Engine
	logger *slog.Logger
}

// NewInvoker creates a new native build invoker.
func NewInvoker(runner toolexec.Runner, deps DependencyResolver, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		runner: runner,
		deps:   deps,
		engine: template.NewEngine(),
		logger: logger,
	}
}

// Paths of the generated native build under a build root.
func SourceDir(buildRoot string) string { return filepath.Join(buildRoot, "cmake") }

func BinaryDir(buildRoot string, profile plugin.Profile) string {
	return filepath.Join(buildRoot, "build-"+string(profile))
}

func AssetDir(buildRoot string, profile plugin.Profile) string {
	return filepath.Join(buildRoot, "assets-"+string(profile))
}

// Invoke packages artifact into bundles for every format in cfg and copies
// them into cfg.OutputDir(). Returned bundles point into the output
// directory, in canonical format order.
func (inv *Invoker) Invoke(ctx context.Context, cfg *config.Configuration, artifact *cargo.Artifact) ([]plugin.Bundle, error) {
	if err := inv.checkArtifact(artifact); err != nil {
		return nil, err
	}

	root := cfg.BuildRoot()
	srcDir := SourceDir(root)
	assetDir := AssetDir(root, cfg.Profile())

	mName, mCode := cfg.Manufacturer()
	project := NewProject(cfg.Target(), cfg.CMakeVersion(), mName, mCode)
	if err := Materialize(inv.engine, srcDir, project); err != nil {
		return nil, err
	}

	repo, rev := cfg.Wrapper()
	wrapperDir, err := inv.deps.Resolve(ctx, repo, rev)
	if err != nil {
		return nil, err
	}

	// Bundles left from a previous format set would be collected again.
	if err := os.RemoveAll(assetDir); err != nil {
		return nil, fmt.Errorf("failed to reset asset directory: %w", err)
	}
	if err := os.MkdirAll(assetDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}

	formats := cfg.Formats()
	names := make([]string, len(formats))
	for i, f := range formats {
		names[i] = f.CMakeName()
	}

	c := New(inv.runner, srcDir, BinaryDir(root, cfg.Profile())).
		BuildType(cfg.Profile().CMakeConfig()).
		DefinePath("STATIC_LIB_FILE", artifact.Path).
		Define("BUNDLE_ID", cfg.BundleID()).
		DefineList("PLUGIN_FORMATS", names).
		DefinePath("PLUGIN_OUTPUT_DIR", assetDir).
		DefinePath("CLAP_WRAPPER_SOURCE_DIR", wrapperDir).
		DefineList("NATIVE_LIBRARIES", artifact.NativeLibraries)
	if cfg.Platform().IsApple() {
		c.Env("MACOSX_DEPLOYMENT_TARGET", "10.13")
	}

	inv.logger.Info("configuring native build", "target", cfg.Target(), "formats", strings.Join(names, ","))
	if err := c.Configure(ctx); err != nil {
		return nil, err
	}
	inv.logger.Info("building bundles", "target", cfg.Target(), "config", cfg.Profile().CMakeConfig())
	if err := c.Build(ctx); err != nil {
		return nil, err
	}

	produced, err := CollectBundles(assetDir, formats)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.OutputDir(), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	bundles := make([]plugin.Bundle, 0, len(produced))
	for _, b := range produced {
		dst := filepath.Join(cfg.OutputDir(), b.Name())
		if err := xos.ReplaceTree(b.Path, dst); err != nil {
			return nil, fmt.Errorf("failed to copy %s bundle: %w", b.Format, err)
		}
		inv.logger.Debug("bundle ready", "format", b.Format, "path", dst)
		bundles = append(bundles, plugin.Bundle{Format: b.Format, Path: dst})
	}
	return bundles, nil
}

func (inv *Invoker) checkArtifact(artifact *cargo.Artifact) error {
	if artifact == nil || artifact.Path == "" {
		return &cargo.ArtifactNotFoundError{Err: errors.New("no artifact")}
	}
	kind, err := abi.Sniff(artifact.Path)
	if err != nil {
		return &cargo.ArtifactNotFoundError{Target: artifact.Target, Path: artifact.Path, Err: err}
	}
	if kind == abi.NotArchive {
		return &cargo.ArtifactNotFoundError{Target: artifact.Target, Path: artifact.Path, Err: errors.New("not a static library")}
	}

	err = abi.VerifyCoreArchive(artifact.Path)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, abi.ErrNoSymbolTable):
		inv.logger.Warn("static library has no symbol index, skipping entry symbol check", "path", artifact.Path)
		return nil
	default:
		return &cargo.ArtifactNotFoundError{Target: artifact.Target, Path: artifact.Path, Err: err}
	}
}

// CollectBundles finds exactly one bundle per format below dir. Bundles
// may sit at the top level or nested per format and configuration, as
// multi-config generators on Windows lay them out.
func CollectBundles(dir string, formats []plugin.Format) ([]plugin.Bundle, error) {
	wanted := make(map[string]plugin.Format, len(formats))
	for _, f := range formats {
		wanted[f.BundleExt()] = f
	}

	found := map[plugin.Format][]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == dir {
			return nil
		}
		f, ok := wanted[filepath.Ext(d.Name())]
		if !ok {
			return nil
		}
		found[f] = append(found[f], path)
		if d.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}

	perr := &PackagingError{Dir: dir, Ambiguous: map[plugin.Format][]string{}}
	bundles := make([]plugin.Bundle, 0, len(formats))
	for _, f := range plugin.SortFormats(formats) {
		switch paths := found[f]; len(paths) {
		case 0:
			perr.Missing = append(perr.Missing, f)
		case 1:
			bundles = append(bundles, plugin.Bundle{Format: f, Path: paths[0]})
		default:
			perr.Ambiguous[f] = paths
		}
	}
	if len(perr.Missing) > 0 || len(perr.Ambiguous) > 0 {
		return nil, perr
	}
	return bundles, nil
}
