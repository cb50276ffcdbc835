package ui

import (
	"fmt"
	"io"
	"sync"
)

// Status prints styled one-line messages. It is safe for concurrent use
// by builds of several targets.
type Status struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStatus creates a status printer writing to w.
func NewStatus(w io.Writer) *Status {
	return &Status{w: w}
}

func (s *Status) line(icon, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "%s %s\n", icon, text)
}

// Step announces work in progress.
func (s *Status) Step(format string, args ...any) {
	s.line(IconTool, fmt.Sprintf(format, args...))
}

// Success reports a completed step.
func (s *Status) Success(format string, args ...any) {
	s.line(IconSuccess, SuccessStyle.Render(fmt.Sprintf(format, args...)))
}

// Warn reports a non-fatal problem.
func (s *Status) Warn(format string, args ...any) {
	s.line(IconWarning, WarningStyle.Render(fmt.Sprintf(format, args...)))
}

// Error reports a failure.
func (s *Status) Error(format string, args ...any) {
	s.line(IconError, ErrorStyle.Render(fmt.Sprintf(format, args...)))
}

// Item prints an indented detail line.
func (s *Status) Item(icon, format string, args ...any) {
	s.line("  "+icon, fmt.Sprintf(format, args...))
}
