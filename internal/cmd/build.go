package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dosanma1/clapforge/internal/config"
	"github.com/dosanma1/clapforge/internal/pipeline"
	"github.com/dosanma1/clapforge/internal/plugin"
	"github.com/dosanma1/clapforge/internal/ui"
)

// buildFlags are shared by build and watch.
type buildFlags struct {
	release   bool
	bundleID  string
	formats   []string
	clean     bool
	install   bool
	version   string
	output    string
	buildRoot string
	jobs      int
}

func (f *buildFlags) register(fs *pflag.FlagSet) {
	fs.BoolVar(&f.release, "release", false, "Build with the release profile")
	fs.StringVar(&f.bundleID, "bundle-id", "", "Reverse-DNS bundle identifier (default from clapforge.yaml or "+config.DefaultBundleID+")")
	fs.StringSliceVar(&f.formats, "formats", nil, "Plugin formats to package (clap,vst3,auv2)")
	fs.BoolVar(&f.clean, "clean", false, "Remove previous build state and bundles first")
	fs.BoolVar(&f.install, "install", false, "Copy bundles into the user plugin directories")
	fs.StringVar(&f.version, "plugin-version", "", "Plugin version (semver)")
	fs.StringVarP(&f.output, "output", "o", "", "Output directory for bundles")
	fs.StringVar(&f.buildRoot, "build-root", "", "Directory for generated native build state")
	fs.IntVarP(&f.jobs, "jobs", "j", runtime.NumCPU(), "Maximum number of targets built at once")
}

// rawArgs converts the flags for one target. Formats stay nil unless the
// flag was given so the project file can supply them.
func (f *buildFlags) rawArgs(cmd *cobra.Command, target, workspaceRoot string) config.RawArgs {
	raw := config.RawArgs{
		Target:    target,
		Release:   f.release,
		BundleID:  f.bundleID,
		Clean:     f.clean,
		Install:   f.install,
		Version:   f.version,
		OutputDir: f.output,
		BuildRoot: f.buildRoot,
		Workspace: workspaceRoot,
		Verbose:   verbose,
	}
	if cmd.Flags().Changed("formats") {
		raw.Formats = append([]string{}, f.formats...)
	}
	return raw
}

var buildOpts buildFlags

var buildCmd = &cobra.Command{
	Use:   "build <target>...",
	Short: "Compile a plugin crate and package its bundles",
	Long: `Compile one or more plugin crates with cargo and package each as CLAP, VST3
and (on macOS) AUv2 bundles.

Each target runs through the same stages: compile the crate as a static
library, locate the archive, generate and build the native bridge project,
and optionally install the bundles. Several targets are built concurrently.

Examples:
  clapforge build gain                         # Debug build, all formats
  clapforge build gain --release --install     # Release build, install bundles
  clapforge build gain --formats clap,vst3     # Only CLAP and VST3
  clapforge build gain reverb -j 2             # Two targets in parallel`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildOpts.register(buildCmd.Flags())
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	workspaceRoot, err := findWorkspaceRoot()
	if err != nil {
		return fmt.Errorf("not in a cargo workspace: %w", err)
	}
	project, _, err := loadProject(workspaceRoot)
	if err != nil {
		return err
	}

	// Every target is validated before anything is compiled.
	cfgs, err := configureAll(cmd, &buildOpts, args, workspaceRoot, project)
	if err != nil {
		return err
	}
	return buildAll(cmd.Context(), cmd.ErrOrStderr(), workspaceRoot, cfgs, buildOpts.jobs)
}

// configureAll validates one configuration per distinct target. With more
// than one target, --output and --build-root name parent directories and
// each target gets its own subdirectory.
func configureAll(cmd *cobra.Command, flags *buildFlags, targets []string, workspaceRoot string, project *config.ProjectFile) ([]*config.Configuration, error) {
	var unique []string
	seen := make(map[string]bool, len(targets))
	for _, target := range targets {
		if !seen[target] {
			seen[target] = true
			unique = append(unique, target)
		}
	}

	platform := plugin.CurrentPlatform()
	cfgs := make([]*config.Configuration, 0, len(unique))
	for _, target := range unique {
		raw := flags.rawArgs(cmd, target, workspaceRoot)
		if len(unique) > 1 {
			if raw.OutputDir != "" {
				raw.OutputDir = filepath.Join(raw.OutputDir, target)
			}
			if raw.BuildRoot != "" {
				raw.BuildRoot = filepath.Join(raw.BuildRoot, target)
			}
		}
		cfg, err := pipeline.Configure(raw, platform, project)
		if err != nil {
			return nil, err
		}
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

// buildAll runs one pipeline per configuration. Pipelines are independent:
// a failing target does not stop the others.
func buildAll(ctx context.Context, out io.Writer, workspaceRoot string, cfgs []*config.Configuration, jobs int) error {
	logger := loggerFrom(ctx)
	status := ui.NewStatus(out)

	var stream io.Writer
	if verbose {
		stream = out
	}
	stages, err := newStages(workspaceRoot, stream, logger)
	if err != nil {
		return err
	}

	progress := &stageProgress{
		status: status,
		out:    out,
		spin:   len(cfgs) == 1 && !verbose && ui.IsTerminal(out),
	}
	p := pipeline.New(stages, logger, pipeline.WithObserver(progress))

	errs := make([]error, len(cfgs))
	var g errgroup.Group
	if jobs > 0 {
		g.SetLimit(jobs)
	}
	for i, cfg := range cfgs {
		i, cfg := i, cfg
		g.Go(func() error {
			res, err := p.Run(ctx, cfg)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", cfg.Target(), err)
				status.Error("%s failed", cfg.Target())
				return nil
			}
			reportResult(status, cfg, res)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func reportResult(status *ui.Status, cfg *config.Configuration, res *pipeline.Result) {
	status.Success("%s packaged (%s, %s)", cfg.Target(), cfg.Profile(), cfg.Platform())
	for _, b := range res.Bundles {
		status.Item(ui.IconPlug, "%s %s", b.Format, b.Path)
	}
	for _, path := range res.Installed {
		status.Item(ui.IconPackage, "installed %s", path)
	}
}

var stageLabels = map[pipeline.Stage]string{
	pipeline.StageClean:   "cleaning",
	pipeline.StageBuild:   "compiling core",
	pipeline.StageResolve: "locating static library",
	pipeline.StagePackage: "packaging bundles",
	pipeline.StageInstall: "installing bundles",
}

// stageProgress shows a spinner for a single interactive build and plain
// step lines otherwise.
type stageProgress struct {
	status *ui.Status
	out    io.Writer
	spin   bool

	mu      sync.Mutex
	spinner *ui.Spinner
}

func (p *stageProgress) StageStarted(target string, stage pipeline.Stage) {
	label := fmt.Sprintf("%s: %s", target, stageLabels[stage])
	if !p.spin {
		p.status.Step("%s", label)
		return
	}
	p.mu.Lock()
	p.spinner = ui.StartSpinner(p.out, label)
	p.mu.Unlock()
}

func (p *stageProgress) StageFinished(target string, stage pipeline.Stage, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.spinner != nil {
		p.spinner.Stop()
		p.spinner = nil
	}
}

var _ pipeline.Observer = (*stageProgress)(nil)
