// Package template renders the native build sources clapforge generates.
package template

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/dosanma1/clapforge/pkg/xos"
)

//go:embed all:templates
var templatesFS embed.FS

// Engine provides template rendering capabilities.
type Engine struct {
	funcMap template.FuncMap
}

// NewEngine creates a new template engine.
func NewEngine() *Engine {
	return &Engine{
		funcMap: template.FuncMap{
			"underscore": Underscore,
			"cmakeList":  CMakeList,
			"upper":      strings.ToUpper,
			"lower":      strings.ToLower,
			"join":       strings.Join,
		},
	}
}

// Render renders a template string with the given data.
func (e *Engine) Render(templateStr string, data any) (string, error) {
	tmpl, err := template.New("template").Funcs(e.funcMap).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// RenderTemplate renders an embedded template file with the given data.
func (e *Engine) RenderTemplate(templatePath string, data any) (string, error) {
	content, err := templatesFS.ReadFile("templates/" + templatePath)
	if err != nil {
		return "", fmt.Errorf("failed to read embedded template %s: %w", templatePath, err)
	}

	return e.Render(string(content), data)
}

// ReadEmbeddedFile reads an embedded file without template rendering.
func (e *Engine) ReadEmbeddedFile(templatePath string) ([]byte, error) {
	content, err := templatesFS.ReadFile("templates/" + templatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded file %s: %w", templatePath, err)
	}

	return content, nil
}

// WriteIfChanged atomically writes content to path unless the file
// already holds exactly that content. Leaving unchanged sources alone keeps
// their timestamps stable so the native build does not redo work. It
// reports whether a write happened.
func WriteIfChanged(path string, content []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := xos.WriteFile(path, content, 0o644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// RenderToFile renders an embedded template into outputPath.
func (e *Engine) RenderToFile(templatePath string, data any, outputPath string) error {
	result, err := e.RenderTemplate(templatePath, data)
	if err != nil {
		return err
	}
	_, err = WriteIfChanged(outputPath, []byte(result))
	return err
}

// CopyEmbeddedFile copies an embedded file verbatim into outputPath.
func (e *Engine) CopyEmbeddedFile(templatePath, outputPath string) error {
	content, err := e.ReadEmbeddedFile(templatePath)
	if err != nil {
		return err
	}
	_, err = WriteIfChanged(outputPath, content)
	return err
}

// Underscore converts a name to a C/CMake-safe identifier.
func Underscore(s string) string {
	s = identRe.ReplaceAllString(s, "_")
	if s != "" && s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}

var identRe = regexp.MustCompile(`[^A-Za-z0-9_]`)

// CMakeList joins items into a CMake list argument, escaping the list
// separator inside items.
func CMakeList(items []string) string {
	escaped := make([]string, len(items))
	for i, item := range items {
		escaped[i] = strings.ReplaceAll(item, ";", `\;`)
	}
	return strings.Join(escaped, ";")
}
