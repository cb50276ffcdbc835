// Package toolexectest provides a scripted toolexec.Runner for tests.
package toolexectest

import (
	"context"
	"sync"

	"github.com/dosanma1/clapforge/internal/toolexec"
)

// HandlerFunc answers one command. Returning a nil Result with a nil error
// is treated as an empty successful run.
type HandlerFunc func(ctx context.Context, cmd toolexec.Command) (*toolexec.Result, error)

// Runner records every command it is asked to run and delegates to Handler.
type Runner struct {
	Handler HandlerFunc

	mu       sync.Mutex
	commands []toolexec.Command
}

// Run implements toolexec.Runner.
func (r *Runner) Run(ctx context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Handler == nil {
		return &toolexec.Result{}, nil
	}
	res, err := r.Handler(ctx, cmd)
	if res == nil && err == nil {
		res = &toolexec.Result{}
	}
	return res, err
}

// Commands returns a copy of the recorded commands.
func (r *Runner) Commands() []toolexec.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]toolexec.Command(nil), r.commands...)
}

// Names returns the tool name of each recorded command in order.
func (r *Runner) Names() []string {
	cmds := r.Commands()
	names := make([]string, len(cmds))
	for i, c := range cmds {
		names[i] = c.Name
	}
	return names
}
