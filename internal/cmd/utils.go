package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dosanma1/clapforge/internal/config"
)

// findWorkspaceRoot finds the workspace root by looking for clapforge.yaml
// or, failing that, a Cargo.toml.
func findWorkspaceRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	projectFile, err := config.FindProjectFile(cwd)
	if err != nil {
		return "", err
	}
	if projectFile != "" {
		return filepath.Dir(projectFile), nil
	}

	// The outermost Cargo.toml is the workspace manifest.
	root := ""
	for dir := cwd; ; {
		if _, err := os.Stat(filepath.Join(dir, "Cargo.toml")); err == nil {
			root = dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	if root == "" {
		return "", fmt.Errorf("neither %s nor Cargo.toml found in current directory or any parent directory", config.ProjectFileName)
	}
	return root, nil
}

// loadProject loads clapforge.yaml from the workspace root. It returns
// nil when the workspace has none.
func loadProject(workspaceRoot string) (*config.ProjectFile, string, error) {
	path := filepath.Join(workspaceRoot, config.ProjectFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, "", nil
	}
	project, err := config.LoadProject(path)
	if err != nil {
		return nil, path, err
	}
	return project, path, nil
}
