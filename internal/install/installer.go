// Package install copies finished bundles into the per-user plugin
// directories hosts scan.
package install

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dosanma1/clapforge/internal/plugin"
	"github.com/dosanma1/clapforge/pkg/xos"
)

// UnsupportedPlatformError is returned when plugins cannot be installed
// on the platform. Nothing is written in that case.
type UnsupportedPlatformError struct {
	Platform plugin.Platform
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("installing plugins is not supported on %s; copy the bundles from the output directory manually", e.Platform)
}

// InstallError reports a bundle that could not be copied.
type InstallError struct {
	Bundle plugin.Bundle
	Dest   string
	Err    error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to install %s bundle %s to %s: %v", e.Bundle.Format, e.Bundle.Name(), e.Dest, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }

// Installer handles plugin bundle installation.
type Installer struct {
	home   string
	logger *slog.Logger
}

// NewInstaller creates an installer for the current user.
func NewInstaller(logger *slog.Logger) (*Installer, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return NewInstallerAt(home, logger), nil
}

// NewInstallerAt creates an installer that treats home as the user's home
// directory.
func NewInstallerAt(home string, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{home: home, logger: logger}
}

// Destination returns the directory bundles of format f are installed to
// on platform.
func (i *Installer) Destination(f plugin.Format, platform plugin.Platform) (string, error) {
	switch platform {
	case plugin.PlatformApple:
		base := filepath.Join(i.home, "Library", "Audio", "Plug-Ins")
		switch f {
		case plugin.FormatCLAP:
			return filepath.Join(base, "CLAP"), nil
		case plugin.FormatVST3:
			return filepath.Join(base, "VST3"), nil
		case plugin.FormatAUv2:
			return filepath.Join(base, "Components"), nil
		}
	case plugin.PlatformLinux:
		switch f {
		case plugin.FormatCLAP:
			return filepath.Join(i.home, ".clap"), nil
		case plugin.FormatVST3:
			return filepath.Join(i.home, ".vst3"), nil
		}
	default:
		return "", &UnsupportedPlatformError{Platform: platform}
	}
	return "", fmt.Errorf("%s bundles cannot be installed on %s", f, platform)
}

// Install copies every bundle into its destination, replacing a previous
// bundle of the same name. All destinations are resolved before the first
// write. It returns the installed paths.
func (i *Installer) Install(bundles []plugin.Bundle, platform plugin.Platform) ([]string, error) {
	if platform.IsWindows() {
		return nil, &UnsupportedPlatformError{Platform: platform}
	}

	dests := make([]string, len(bundles))
	for n, b := range bundles {
		dir, err := i.Destination(b.Format, platform)
		if err != nil {
			return nil, err
		}
		dests[n] = filepath.Join(dir, b.Name())
	}

	installed := make([]string, 0, len(bundles))
	for n, b := range bundles {
		if err := os.MkdirAll(filepath.Dir(dests[n]), 0o755); err != nil {
			return installed, &InstallError{Bundle: b, Dest: dests[n], Err: err}
		}
		if err := xos.ReplaceTree(b.Path, dests[n]); err != nil {
			return installed, &InstallError{Bundle: b, Dest: dests[n], Err: err}
		}
		i.logger.Info("installed bundle", "format", b.Format, "path", dests[n])
		installed = append(installed, dests[n])
	}
	return installed, nil
}
