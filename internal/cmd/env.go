package cmd

import (
	"io"
	"log/slog"

	"github.com/dosanma1/clapforge/internal/cargo"
	"github.com/dosanma1/clapforge/internal/clean"
	"github.com/dosanma1/clapforge/internal/cmake"
	"github.com/dosanma1/clapforge/internal/install"
	"github.com/dosanma1/clapforge/internal/pipeline"
	"github.com/dosanma1/clapforge/internal/toolexec"
	"github.com/dosanma1/clapforge/internal/wrapper"
)

// newWrapperManager opens the shared clap-wrapper cache.
func newWrapperManager(runner toolexec.Runner, logger *slog.Logger) (*wrapper.Manager, error) {
	cacheDir, err := wrapper.DefaultCacheDir()
	if err != nil {
		return nil, err
	}
	return wrapper.NewManager(cacheDir, wrapper.NewGitFetcher(runner), logger), nil
}

// newStages wires the production collaborators of the pipeline. Tool
// output is copied to stream when it is non-nil.
func newStages(workspaceRoot string, stream io.Writer, logger *slog.Logger) (pipeline.Stages, error) {
	var opts []toolexec.Option
	if stream != nil {
		opts = append(opts, toolexec.WithStream(stream))
	}
	runner := toolexec.NewExecutor(logger, opts...)

	deps, err := newWrapperManager(runner, logger)
	if err != nil {
		return pipeline.Stages{}, err
	}
	installer, err := install.NewInstaller(logger)
	if err != nil {
		return pipeline.Stages{}, err
	}

	layout := cargo.Layout{Root: workspaceRoot}
	return pipeline.Stages{
		Compiler:  cargo.NewBuilder(layout, runner, logger),
		Resolver:  layout,
		Packager:  cmake.NewInvoker(runner, deps, logger),
		Installer: installer,
		Cleaner:   clean.NewManager("", logger),
	}, nil
}
