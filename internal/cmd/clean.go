package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dosanma1/clapforge/internal/clean"
	"github.com/dosanma1/clapforge/internal/config"
	"github.com/dosanma1/clapforge/internal/pipeline"
	"github.com/dosanma1/clapforge/internal/plugin"
	"github.com/dosanma1/clapforge/internal/toolexec"
	"github.com/dosanma1/clapforge/internal/ui"
)

var (
	cleanCache bool
	cleanYes   bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean [target...]",
	Short: "Remove generated build state and packaged bundles",
	Long: `Remove the generated native build projects and packaged bundles of the
workspace, or only those of the given targets. Only bundles listed in an
output directory's bundles.yaml are removed; other files there are kept.
Cargo's own build output is left alone.

Use --cache to also remove the shared clap-wrapper checkout cache.`,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanCache, "cache", false, "Also remove the shared clap-wrapper cache")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	logger := loggerFrom(cmd.Context())
	status := ui.NewStatus(cmd.OutOrStdout())

	workspaceRoot, err := findWorkspaceRoot()
	if err != nil {
		return fmt.Errorf("not in a cargo workspace: %w", err)
	}
	project, _, err := loadProject(workspaceRoot)
	if err != nil {
		return err
	}

	roots, outputs := cleanTargets(config.NewResolver(project), workspaceRoot, args)
	dirs := append(append([]string{}, roots...), outputs...)

	if !cleanYes {
		prompt := fmt.Sprintf("Remove build state under %d director(ies)?", len(dirs))
		if cleanCache {
			prompt = fmt.Sprintf("Remove build state under %d director(ies) and the clap-wrapper cache?", len(dirs))
		}
		ok, err := ui.AskConfirm(prompt, false, ui.WithDetails(dirs...))
		if errors.Is(err, ui.ErrCancelled) || (err == nil && !ok) {
			status.Warn("clean aborted")
			return nil
		}
		if err != nil {
			return err
		}
	}

	manager := clean.NewManager("", logger)
	for _, dir := range roots {
		if err := manager.Clean(dir); err != nil {
			return err
		}
		status.Item(ui.IconBroom, "cleaned %s", dir)
	}
	for _, dir := range outputs {
		removed, err := removeOutputs(dir)
		if err != nil {
			return err
		}
		for _, path := range removed {
			status.Item(ui.IconBroom, "removed %s", path)
		}
	}

	if cleanCache {
		if err := clearWrapperCache(logger); err != nil {
			return err
		}
		status.Item(ui.IconBroom, "removed clap-wrapper cache")
	}

	status.Success("clean completed")
	return nil
}

// cleanTargets lists the build roots and output directories to purge. With
// no targets it returns their shared parents.
func cleanTargets(r *config.Resolver, workspaceRoot string, targets []string) (roots, outputs []string) {
	if len(targets) == 0 {
		targets = []string{""}
	}
	for _, target := range targets {
		roots = append(roots, r.BuildRoot("", workspaceRoot, target))
		for _, profile := range []plugin.Profile{plugin.ProfileDebug, plugin.ProfileRelease} {
			outputs = append(outputs, r.OutputDir("", workspaceRoot, target, string(profile)))
		}
	}
	return roots, outputs
}

// removeOutputs deletes the bundles recorded by manifests in dir and in its
// immediate subdirectories. Files no manifest names are kept.
func removeOutputs(dir string) ([]string, error) {
	removed, err := pipeline.RemoveRecorded(dir)
	if err != nil {
		return removed, err
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return removed, nil
	}
	if err != nil {
		return removed, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sub, err := pipeline.RemoveRecorded(filepath.Join(dir, e.Name()))
		removed = append(removed, sub...)
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func clearWrapperCache(logger *slog.Logger) error {
	m, err := newWrapperManager(toolexec.NewExecutor(logger), logger)
	if err != nil {
		return err
	}
	return m.Clear()
}
