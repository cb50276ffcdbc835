package toolexec

import (
	"fmt"
	"regexp"
	"strings"
)

// ErrorTranslator derives a one-line hint from toolchain output. The
// diagnostic itself is never rewritten.
type ErrorTranslator struct{}

// NewErrorTranslator creates a new error translator.
func NewErrorTranslator() *ErrorTranslator {
	return &ErrorTranslator{}
}

var (
	packageSpecRe   = regexp.MustCompile("package ID specification `([^`]+)` did not match any packages")
	missingTargetRe = regexp.MustCompile("the `([\\w-]+)` target may not be installed")
)

// Hint returns a suggestion for the given tool output, or "" when the
// output matches no known pattern.
func (t *ErrorTranslator) Hint(tool, diagnostic string) string {
	switch {
	case strings.Contains(diagnostic, "executable file not found"):
		return t.translateMissingTool(tool)
	case strings.Contains(diagnostic, "could not find `Cargo.toml`"):
		return "Run clapforge from inside the cargo workspace that contains the plugin crate."
	case packageSpecRe.MatchString(diagnostic):
		m := packageSpecRe.FindStringSubmatch(diagnostic)
		return fmt.Sprintf("Crate '%s' is not a member of this workspace. Check the target name.", m[1])
	case missingTargetRe.MatchString(diagnostic):
		m := missingTargetRe.FindStringSubmatch(diagnostic)
		return fmt.Sprintf("Install the missing target with 'rustup target add %s'.", m[1])
	case strings.Contains(diagnostic, "CMAKE_CXX_COMPILER") || strings.Contains(diagnostic, "No CMAKE_CXX_COMPILER could be found"):
		return "No C++ compiler found. Install a C++17 toolchain and re-run."
	case strings.Contains(diagnostic, "make_clapfirst_plugins"):
		return "The clap-wrapper revision may be too old. Pin a newer revision in clapforge.yaml."
	}
	return ""
}

func (t *ErrorTranslator) translateMissingTool(tool string) string {
	switch tool {
	case "cargo", "rustup":
		return "Rust toolchain not found. Install it from https://rustup.rs."
	case "cmake":
		return "CMake not found. Install CMake 3.21 or newer."
	case "lipo":
		return "lipo not found. Install the Xcode command line tools."
	case "git":
		return "git not found. It is required to fetch clap-wrapper."
	}
	return fmt.Sprintf("'%s' not found in PATH.", tool)
}
