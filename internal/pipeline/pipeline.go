// Package pipeline sequences the packaging stages of one build target:
// compile the core, resolve its static library, package bundles and
// optionally install them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dosanma1/clapforge/internal/cargo"
	"github.com/dosanma1/clapforge/internal/config"
	"github.com/dosanma1/clapforge/internal/plugin"
)

// Compiler produces the core static library.
type Compiler interface {
	Build(ctx context.Context, target string, profile plugin.Profile, platform plugin.Platform) (*cargo.BuildResult, error)
}

// ArtifactResolver locates the static library a successful compile left
// on disk.
type ArtifactResolver interface {
	Resolve(target string, profile plugin.Profile, platform plugin.Platform) (string, error)
}

// Packager turns the static library into one bundle per format.
type Packager interface {
	Invoke(ctx context.Context, cfg *config.Configuration, artifact *cargo.Artifact) ([]plugin.Bundle, error)
}

// Installer copies bundles into the user's plugin directories.
type Installer interface {
	Install(bundles []plugin.Bundle, platform plugin.Platform) ([]string, error)
}

// Cleaner removes build state beneath a root.
type Cleaner interface {
	Clean(root string) error
}

// Observer is told when a stage starts and finishes.
type Observer interface {
	StageStarted(target string, stage Stage)
	StageFinished(target string, stage Stage, err error)
}

// Stages holds the collaborators of a pipeline.
type Stages struct {
	Compiler  Compiler
	Resolver  ArtifactResolver
	Packager  Packager
	Installer Installer
	Cleaner   Cleaner
}

// Result is the outcome of a run.
type Result struct {
	State     State
	Artifact  *cargo.Artifact
	Bundles   []plugin.Bundle
	Installed []string
	Manifest  string
}

// Pipeline runs the stages for a configuration.
type Pipeline struct {
	stages   Stages
	logger   *slog.Logger
	observer Observer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithObserver reports stage progress to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// New creates a new pipeline.
func New(stages Stages, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{stages: stages, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Configure validates raw into a configuration. A validation failure is
// returned as a *StageError halted in ValidationFailed.
func Configure(raw config.RawArgs, platform plugin.Platform, project *config.ProjectFile) (*config.Configuration, error) {
	cfg, err := config.Generate(raw, platform, project)
	if err != nil {
		return nil, &StageError{Stage: StageConfigure, State: ValidationFailed, Err: err}
	}
	return cfg, nil
}

// Run executes every stage in order for cfg. It stops at the first
// failure and returns a *StageError alongside the partial result. Install
// only runs when packaging fully succeeded and cfg asks for it.
func (p *Pipeline) Run(ctx context.Context, cfg *config.Configuration) (*Result, error) {
	r := &run{p: p, cfg: cfg, res: &Result{State: Configured}}

	if cfg.Clean() {
		if err := r.stage(ctx, StageClean, r.clean); err != nil {
			return r.res, err
		}
	}

	steps := []struct {
		stage Stage
		next  State
		fn    func(context.Context) error
	}{
		{StageBuild, Built, r.build},
		{StageResolve, Resolved, r.resolve},
		{StagePackage, Packaged, r.pack},
	}
	for _, s := range steps {
		if err := r.stage(ctx, s.stage, s.fn); err != nil {
			return r.res, err
		}
		r.advance(s.next)
	}

	if cfg.Install() {
		if err := r.stage(ctx, StageInstall, r.install); err != nil {
			return r.res, err
		}
		r.advance(Installed)
	}
	r.advance(Done)
	return r.res, nil
}

type run struct {
	p     *Pipeline
	cfg   *config.Configuration
	res   *Result
	built *cargo.BuildResult
}

func (r *run) stage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	if o := r.p.observer; o != nil {
		o.StageStarted(r.cfg.Target(), stage)
	}

	err := ctx.Err()
	if err == nil {
		err = fn(ctx)
	}

	if o := r.p.observer; o != nil {
		o.StageFinished(r.cfg.Target(), stage, err)
	}
	if err == nil {
		return nil
	}

	failed := failureState(stage, err)
	r.advance(failed)
	r.p.logger.Debug("stage failed", "target", r.cfg.Target(), "stage", stage, "state", failed)
	return &StageError{Stage: stage, State: failed, Err: err}
}

func (r *run) advance(to State) {
	if !CanTransition(r.res.State, to) {
		panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", r.res.State, to))
	}
	r.res.State = to
}

// clean empties the build root. The output directory may be shared with
// unrelated files, so only the bundles its last manifest recorded go.
func (r *run) clean(context.Context) error {
	r.p.logger.Info("cleaning", "path", r.cfg.BuildRoot())
	if err := r.p.stages.Cleaner.Clean(r.cfg.BuildRoot()); err != nil {
		return err
	}
	removed, err := RemoveRecorded(r.cfg.OutputDir())
	for _, path := range removed {
		r.p.logger.Debug("removed previous output", "path", path)
	}
	return err
}

func (r *run) build(ctx context.Context) error {
	built, err := r.p.stages.Compiler.Build(ctx, r.cfg.Target(), r.cfg.Profile(), r.cfg.Platform())
	if err != nil {
		return err
	}
	r.built = built
	return nil
}

func (r *run) resolve(context.Context) error {
	path, err := r.p.stages.Resolver.Resolve(r.cfg.Target(), r.cfg.Profile(), r.cfg.Platform())
	if err != nil {
		return err
	}
	r.res.Artifact = &cargo.Artifact{
		Target:   r.cfg.Target(),
		Path:     path,
		Platform: r.cfg.Platform(),
		Profile:  r.cfg.Profile(),
	}
	if r.built != nil {
		r.res.Artifact.NativeLibraries = r.built.NativeLibraries
	}
	r.p.logger.Debug("artifact resolved", "path", path)
	return nil
}

func (r *run) pack(ctx context.Context) error {
	bundles, err := r.p.stages.Packager.Invoke(ctx, r.cfg, r.res.Artifact)
	if err != nil {
		return err
	}
	r.res.Bundles = bundles

	path, err := WriteManifest(r.cfg.OutputDir(), NewManifest(r.cfg, bundles))
	if err != nil {
		return err
	}
	r.res.Manifest = path
	return nil
}

func (r *run) install(context.Context) error {
	installed, err := r.p.stages.Installer.Install(r.res.Bundles, r.cfg.Platform())
	r.res.Installed = installed
	return err
}
