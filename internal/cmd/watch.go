package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dosanma1/clapforge/internal/config"
	"github.com/dosanma1/clapforge/internal/ui"
	"github.com/dosanma1/clapforge/internal/watch"
)

var watchOpts buildFlags

var watchCmd = &cobra.Command{
	Use:   "watch <target>...",
	Short: "Rebuild bundles whenever the plugin sources change",
	Long: `Build the given targets, then watch the workspace and rebuild them each time
a Rust source, Cargo manifest or clapforge.yaml changes. Accepts the same
flags as build. A failed rebuild is reported and watching continues.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchOpts.register(watchCmd.Flags())
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := loggerFrom(ctx)
	out := cmd.ErrOrStderr()
	status := ui.NewStatus(out)

	workspaceRoot, err := findWorkspaceRoot()
	if err != nil {
		return fmt.Errorf("not in a cargo workspace: %w", err)
	}

	build := func(ctx context.Context) error {
		// Reload so edits to clapforge.yaml take effect.
		project, _, err := loadProject(workspaceRoot)
		if err != nil {
			return err
		}
		cfgs, err := configureAll(cmd, &watchOpts, args, workspaceRoot, project)
		if err != nil {
			return err
		}
		return buildAll(ctx, out, workspaceRoot, cfgs, watchOpts.jobs)
	}

	if err := build(ctx); err != nil {
		if ctx.Err() != nil {
			return err
		}
		status.Error("%v", err)
	}

	w, err := watch.New(watch.DefaultConfig(workspaceRoot))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("failed to watch %s: %w", workspaceRoot, err)
	}
	defer w.Stop()

	// Only the first build honours --clean.
	watchOpts.clean = false

	status.Item(ui.IconEye, "watching %s (%s changes trigger a rebuild)", workspaceRoot, config.ProjectFileName+", *.rs, Cargo.toml")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-w.Errors():
			logger.Warn("watch error", "error", err)
		case batch := <-w.Batches():
			logger.Debug("sources changed", "paths", batch.Paths)
			status.Step("%d file(s) changed, rebuilding", len(batch.Paths))
			if err := build(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				status.Error("%v", err)
			}
		}
	}
}
