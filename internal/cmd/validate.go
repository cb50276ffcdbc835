package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dosanma1/clapforge/internal/config"
	"github.com/dosanma1/clapforge/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate clapforge.yaml",
	Long: `Validates the clapforge.yaml project file against the JSON Schema.
Without an argument the file is searched from the current directory upwards.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	status := ui.NewStatus(out)

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		if path, err = config.FindProjectFile(cwd); err != nil {
			return err
		}
		if path == "" {
			return fmt.Errorf("%s not found in current directory or any parent directory", config.ProjectFileName)
		}
	}

	status.Step("validating %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := config.ValidateSchema(path, data); err != nil {
		var serr *config.SchemaError
		if errors.As(err, &serr) {
			for _, v := range serr.Violations {
				fmt.Fprintf(out, "  - %s: %s\n", v.Field, v.Description)
			}
		}
		return err
	}

	// The schema does not cover value rules such as semver versions.
	project, err := config.LoadProject(path)
	if err != nil {
		return err
	}
	if project.BundleID != "" {
		if err := config.ValidateBundleID(project.BundleID); err != nil {
			return err
		}
	}
	if project.Version != "" {
		if err := config.ValidateVersion(project.Version); err != nil {
			return err
		}
	}

	status.Success("%s is valid", path)
	return nil
}
