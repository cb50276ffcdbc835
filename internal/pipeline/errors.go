package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dosanma1/clapforge/internal/cargo"
	"github.com/dosanma1/clapforge/internal/cmake"
	"github.com/dosanma1/clapforge/internal/config"
	"github.com/dosanma1/clapforge/internal/install"
	"github.com/dosanma1/clapforge/internal/toolexec"
)

// Stage names a pipeline step in errors and progress output.
type Stage string

const (
	StageConfigure Stage = "configure"
	StageClean     Stage = "clean"
	StageBuild     Stage = "build"
	StageResolve   Stage = "resolve"
	StagePackage   Stage = "package"
	StageInstall   Stage = "install"
)

// StageError labels a failure with the stage it happened in and the
// state the pipeline halted at. The wrapped error keeps the tool's raw
// diagnostic.
type StageError struct {
	Stage Stage
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Exit codes reported by the clapforge binary.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitValidation = 2
	ExitCompile    = 3
	ExitArtifact   = 4
	ExitPackaging  = 5
	ExitInstall    = 6
	ExitCancelled  = 130
)

// ExitCode maps an error returned by the pipeline or the CLI to the
// process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		validation  *config.ValidationError
		schema      *config.SchemaError
		compile     *toolexec.CompileError
		missing     *cargo.ArtifactNotFoundError
		packaging   *cmake.PackagingError
		installErr  *install.InstallError
		unsupported *install.UnsupportedPlatformError
		stage       *StageError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.As(err, &validation), errors.As(err, &schema):
		return ExitValidation
	case errors.As(err, &compile):
		return ExitCompile
	case errors.As(err, &missing):
		return ExitArtifact
	case errors.As(err, &packaging):
		return ExitPackaging
	case errors.As(err, &installErr), errors.As(err, &unsupported):
		return ExitInstall
	case errors.As(err, &stage):
		return exitForState(stage.State)
	default:
		return ExitFailure
	}
}

func exitForState(s State) int {
	switch s {
	case ValidationFailed:
		return ExitValidation
	case CompileFailed:
		return ExitCompile
	case ArtifactMissing:
		return ExitArtifact
	case PackagingFailed:
		return ExitPackaging
	case InstallFailed:
		return ExitInstall
	default:
		return ExitFailure
	}
}

// failureState picks the failure state for err raised while running stage.
// The packaging stage can also report a bad artifact or a native compile
// failure.
func failureState(stage Stage, err error) State {
	var (
		compile *toolexec.CompileError
		missing *cargo.ArtifactNotFoundError
	)
	switch stage {
	case StageConfigure:
		return ValidationFailed
	case StageClean:
		return CleanFailed
	case StageBuild:
		return CompileFailed
	case StageResolve:
		return ArtifactMissing
	case StageInstall:
		return InstallFailed
	}
	switch {
	case errors.As(err, &missing):
		return ArtifactMissing
	case errors.As(err, &compile):
		return CompileFailed
	default:
		return PackagingFailed
	}
}
