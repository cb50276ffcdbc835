// Package plugin defines the plugin formats, platforms, build profiles and
// bundles the packaging pipeline works with.
package plugin

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Format is a host plugin format a bundle can be produced for.
type Format string

const (
	FormatCLAP Format = "clap"
	FormatVST3 Format = "vst3"
	FormatAUv2 Format = "auv2"
)

// AllFormats returns every supported format in canonical order.
func AllFormats() []Format {
	return []Format{FormatCLAP, FormatVST3, FormatAUv2}
}

// ParseFormat converts a user supplied format name to a Format.
// Matching is case-insensitive and "au" is accepted for AUv2.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clap":
		return FormatCLAP, nil
	case "vst3":
		return FormatVST3, nil
	case "auv2", "au":
		return FormatAUv2, nil
	default:
		return "", fmt.Errorf("unknown plugin format %q (must be clap, vst3 or auv2)", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatCLAP:
		return "CLAP"
	case FormatVST3:
		return "VST3"
	case FormatAUv2:
		return "AUv2"
	default:
		return string(f)
	}
}

// CMakeName is the spelling the clap-wrapper packaging routine expects.
func (f Format) CMakeName() string {
	return strings.ToUpper(string(f))
}

// BundleExt returns the file extension of a bundle of this format.
func (f Format) BundleExt() string {
	switch f {
	case FormatCLAP:
		return ".clap"
	case FormatVST3:
		return ".vst3"
	case FormatAUv2:
		return ".component"
	default:
		return ""
	}
}

func (f Format) rank() int {
	for i, known := range AllFormats() {
		if f == known {
			return i
		}
	}
	return len(AllFormats())
}

// SortFormats sorts formats in canonical order and drops duplicates.
func SortFormats(formats []Format) []Format {
	seen := make(map[Format]bool, len(formats))
	out := make([]Format, 0, len(formats))
	for _, f := range formats {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].rank() < out[j].rank() })
	return out
}

// Platform is the operating system family the pipeline builds for.
type Platform string

const (
	PlatformApple   Platform = "darwin"
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
)

// CurrentPlatform returns the platform of the running process.
// Unix systems other than macOS are treated as Linux.
func CurrentPlatform() Platform {
	switch runtime.GOOS {
	case "darwin":
		return PlatformApple
	case "windows":
		return PlatformWindows
	default:
		return PlatformLinux
	}
}

// ParsePlatform converts a GOOS-style name to a Platform.
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(s) {
	case "darwin", "macos", "apple":
		return PlatformApple, nil
	case "windows":
		return PlatformWindows, nil
	case "linux":
		return PlatformLinux, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}

func (p Platform) IsApple() bool   { return p == PlatformApple }
func (p Platform) IsWindows() bool { return p == PlatformWindows }

// Supports reports whether bundles of format f can be produced on p.
func (p Platform) Supports(f Format) bool {
	if f == FormatAUv2 {
		return p.IsApple()
	}
	return f == FormatCLAP || f == FormatVST3
}

// DefaultFormats returns every format producible on p.
func (p Platform) DefaultFormats() []Format {
	var out []Format
	for _, f := range AllFormats() {
		if p.Supports(f) {
			out = append(out, f)
		}
	}
	return out
}

// Profile is the compiler optimization profile.
type Profile string

const (
	ProfileDebug   Profile = "debug"
	ProfileRelease Profile = "release"
)

// CMakeConfig returns the multi-config generator configuration name.
func (p Profile) CMakeConfig() string {
	if p == ProfileRelease {
		return "Release"
	}
	return "Debug"
}

// Bundle is a packaged plugin for one format. Path points at a file or a
// directory depending on the format and platform.
type Bundle struct {
	Format Format
	Path   string
}

// Name returns the bundle's file or directory name.
func (b Bundle) Name() string {
	return filepath.Base(b.Path)
}
