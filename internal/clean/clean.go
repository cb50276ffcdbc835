// Package clean purges stale build state beneath a build root without ever
// touching anything outside it.
package clean

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ContainmentError is returned when a deletion target is not strictly
// beneath the build root, or the root itself is unsafe to clean.
type ContainmentError struct {
	Root   string
	Path   string
	Reason string
}

func (e *ContainmentError) Error() string {
	if e.Path == "" || e.Path == e.Root {
		return fmt.Sprintf("refusing to clean %s: %s", e.Root, e.Reason)
	}
	return fmt.Sprintf("refusing to remove %s: %s (build root %s)", e.Path, e.Reason, e.Root)
}

// Manager removes build state.
type Manager struct {
	home   string
	logger *slog.Logger
}

// NewManager creates a new cleanup manager. home is never cleaned, nor
// any of its ancestors; pass "" to use the current user's home.
func NewManager(home string, logger *slog.Logger) *Manager {
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{home: home, logger: logger}
}

// Clean removes everything strictly beneath buildRoot. The root directory
// itself is kept. A root that does not exist is already clean.
func (m *Manager) Clean(buildRoot string) error {
	root, err := m.safeRoot(buildRoot)
	if err != nil {
		return err
	}
	if root == "" {
		return nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", root, err)
	}

	for _, e := range entries {
		target := filepath.Join(root, e.Name())
		if !Within(root, target) {
			return &ContainmentError{Root: root, Path: target, Reason: "outside the build root"}
		}
		m.logger.Debug("removing", "path", target)
		// RemoveAll does not follow a symlink entry, only unlinks it.
		if err := os.RemoveAll(target); err != nil {
			return fmt.Errorf("failed to remove %s: %w", target, err)
		}
	}
	return nil
}

// safeRoot resolves buildRoot to an absolute, symlink-free path and checks
// that it is safe to clean. It returns "" when the root does not exist.
func (m *Manager) safeRoot(buildRoot string) (string, error) {
	if strings.TrimSpace(buildRoot) == "" {
		return "", &ContainmentError{Root: buildRoot, Reason: "empty build root"}
	}

	abs, err := filepath.Abs(buildRoot)
	if err != nil {
		return "", err
	}
	root, err := filepath.EvalSymlinks(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", abs, err)
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", &ContainmentError{Root: root, Reason: "not a directory"}
	}

	if isFilesystemRoot(root) {
		return "", &ContainmentError{Root: root, Reason: "filesystem root"}
	}
	if m.home != "" {
		home := m.home
		if resolved, err := filepath.EvalSymlinks(home); err == nil {
			home = resolved
		}
		if root == filepath.Clean(home) || Within(root, home) {
			return "", &ContainmentError{Root: root, Reason: "home directory or one of its parents"}
		}
	}
	return root, nil
}

// Within reports whether path is strictly beneath root. Both are cleaned
// lexically; callers resolve symlinks first.
func Within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func isFilesystemRoot(p string) bool {
	return filepath.Dir(p) == p
}
