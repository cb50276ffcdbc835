// Package toolexec runs external toolchain processes (cargo, rustup, lipo,
// cmake, git) scoped to a context, capturing their diagnostics verbatim.
package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// waitDelay bounds how long Run waits for a cancelled process to exit.
const waitDelay = 5 * time.Second

// Command describes one child process invocation.
type Command struct {
	Name string
	Args []string
	Dir  string
	// Env entries are appended to the parent environment.
	Env []string
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result holds the captured output of a successful run.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes commands. Stages depend on this interface so tests can
// substitute a fake toolchain.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// Executor is the process-backed Runner.
type Executor struct {
	logger     *slog.Logger
	stream     io.Writer
	translator *ErrorTranslator
	lookPath   func(string) (string, error)
}

// Option configures an Executor.
type Option func(*Executor)

// WithStream tees child stdout and stderr to w while still capturing them.
func WithStream(w io.Writer) Option {
	return func(e *Executor) {
		e.stream = w
	}
}

// NewExecutor creates a new process executor.
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		logger:     logger,
		translator: NewErrorTranslator(),
		lookPath:   exec.LookPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes cmd and blocks until it exits. A nonzero exit yields a
// *CompileError carrying the tool's stderr untouched. Cancelling ctx kills
// the process and returns an error wrapping ctx.Err().
func (e *Executor) Run(ctx context.Context, cmd Command) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s not started: %w", cmd.Name, err)
	}

	path, err := e.lookPath(cmd.Name)
	if err != nil {
		return nil, &CompileError{
			Tool:       cmd.Name,
			Args:       cmd.Args,
			ExitCode:   -1,
			Diagnostic: err.Error(),
			Hint:       e.translator.Hint(cmd.Name, "executable file not found"),
		}
	}

	c := exec.CommandContext(ctx, path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	if e.stream != nil {
		c.Stdout = io.MultiWriter(&stdout, e.stream)
		c.Stderr = io.MultiWriter(&stderr, e.stream)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	e.logger.Debug("exec", "cmd", cmd.String(), "dir", cmd.Dir)
	start := time.Now()
	runErr := c.Run()
	e.logger.Debug("exec finished", "cmd", cmd.Name, "duration", time.Since(start).Round(time.Millisecond))

	if runErr == nil {
		return &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s interrupted: %w", cmd.Name, ctxErr)
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	diagnostic := stderr.String()
	if strings.TrimSpace(diagnostic) == "" {
		diagnostic = stdout.String()
	}
	if strings.TrimSpace(diagnostic) == "" {
		diagnostic = runErr.Error()
	}

	return nil, &CompileError{
		Tool:       cmd.Name,
		Args:       cmd.Args,
		ExitCode:   exitCode,
		Diagnostic: diagnostic,
		Hint:       e.translator.Hint(cmd.Name, diagnostic),
	}
}

// CompileError reports a toolchain process that failed. Diagnostic is the
// process output exactly as emitted.
type CompileError struct {
	Tool       string
	Args       []string
	ExitCode   int
	Diagnostic string
	Hint       string
}

func (e *CompileError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed", e.Tool)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " (exit %d)", e.ExitCode)
	}
	if e.Diagnostic != "" {
		b.WriteString(":\n")
		b.WriteString(strings.TrimRight(e.Diagnostic, "\n"))
	}
	return b.String()
}
