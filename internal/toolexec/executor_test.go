package toolexec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not available on windows")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found")
	}
}

func TestExecutor_Run_CapturesOutput(t *testing.T) {
	requireShell(t)

	e := NewExecutor(nil)
	res, err := e.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err 1>&2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "out\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestExecutor_Run_StreamTee(t *testing.T) {
	requireShell(t)

	var buf bytes.Buffer
	e := NewExecutor(nil, WithStream(&buf))
	_, err := e.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hello\n", buf.String())
}

func TestExecutor_Run_NonZeroExitKeepsStderrVerbatim(t *testing.T) {
	requireShell(t)

	const diag = "error[E0308]: mismatched types\n  --> src/lib.rs:3:5\n"
	e := NewExecutor(nil)
	_, err := e.Run(context.Background(), Command{
		Name: "sh",
		Args: []string{"-c", "printf '" + `error[E0308]: mismatched types\n  --> src/lib.rs:3:5\n` + "' 1>&2; exit 101"},
	})

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "sh", ce.Tool)
	assert.Equal(t, 101, ce.ExitCode)
	assert.Equal(t, diag, ce.Diagnostic)
	assert.Contains(t, ce.Error(), "mismatched types")
}

func TestExecutor_Run_FallsBackToStdout(t *testing.T) {
	requireShell(t)

	e := NewExecutor(nil)
	_, err := e.Run(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo only-stdout; exit 2"}})

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "only-stdout\n", ce.Diagnostic)
}

func TestExecutor_Run_MissingExecutable(t *testing.T) {
	e := NewExecutor(nil)
	e.lookPath = func(string) (string, error) {
		return "", exec.ErrNotFound
	}

	_, err := e.Run(context.Background(), Command{Name: "cmake"})

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, -1, ce.ExitCode)
	assert.Contains(t, ce.Hint, "CMake not found")
}

func TestExecutor_Run_Cancelled(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	e := NewExecutor(nil)
	start := time.Now()
	_, err := e.Run(ctx, Command{Name: "sh", Args: []string{"-c", "sleep 10"}})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 8*time.Second)
}

func TestExecutor_Run_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewExecutor(nil)
	e.lookPath = func(string) (string, error) {
		t.Fatal("process must not be looked up after cancellation")
		return "", nil
	}
	_, err := e.Run(ctx, Command{Name: "cargo"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorTranslator_Hint(t *testing.T) {
	tr := NewErrorTranslator()

	tests := []struct {
		name       string
		tool       string
		diagnostic string
		want       string
	}{
		{
			name:       "unknown package",
			tool:       "cargo",
			diagnostic: "error: package ID specification `gain` did not match any packages",
			want:       "Crate 'gain' is not a member of this workspace. Check the target name.",
		},
		{
			name:       "missing rustup target",
			tool:       "cargo",
			diagnostic: "= note: the `aarch64-apple-darwin` target may not be installed",
			want:       "Install the missing target with 'rustup target add aarch64-apple-darwin'.",
		},
		{
			name:       "no manifest",
			tool:       "cargo",
			diagnostic: "error: could not find `Cargo.toml` in `/tmp` or any parent directory",
			want:       "Run clapforge from inside the cargo workspace that contains the plugin crate.",
		},
		{
			name:       "unrecognized",
			tool:       "cmake",
			diagnostic: "something else went wrong",
			want:       "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.Hint(tt.tool, tt.diagnostic))
		})
	}
}
