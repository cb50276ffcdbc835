package ui

import (
	"errors"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the user dismisses a prompt.
var ErrCancelled = errors.New("cancelled")

type promptConfig struct {
	programOpts []tea.ProgramOption
	details     []string
}

// PromptOption configures a prompt.
type PromptOption func(*promptConfig)

// WithIO runs the prompt on the given streams instead of the terminal.
func WithIO(in io.Reader, out io.Writer) PromptOption {
	return func(c *promptConfig) {
		c.programOpts = append(c.programOpts, tea.WithInput(in), tea.WithOutput(out))
	}
}

// WithDetails lists what the confirmed action will affect.
func WithDetails(lines ...string) PromptOption {
	return func(c *promptConfig) {
		c.details = append(c.details, lines...)
	}
}

// AskConfirm prompts for yes/no confirmation.
func AskConfirm(prompt string, defaultYes bool, opts ...PromptOption) (bool, error) {
	var cfg promptConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	final, err := tea.NewProgram(NewConfirm(prompt, defaultYes, cfg.details...), cfg.programOpts...).Run()
	if err != nil {
		return false, err
	}
	m, ok := final.(ConfirmModel)
	if !ok {
		return false, fmt.Errorf("unexpected prompt model %T", final)
	}
	return m.Answer()
}
