// Package cmake drives the native build that turns the core static library
// into plugin bundles through clap-wrapper.
package cmake

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/dosanma1/clapforge/internal/toolexec"
)

type defineValue struct {
	value    string
	typeName string
}

// CMake wraps the configure and build steps with chainable configuration.
type CMake struct {
	runner    toolexec.Runner
	SourceDir string
	buildDir  string
	buildType string
	Defines   map[string]defineValue
	env       map[string]string
}

// New creates a CMake driver for the project in sourceDir building into
// buildDir.
func New(runner toolexec.Runner, sourceDir, buildDir string) *CMake {
	return &CMake{
		runner:    runner,
		SourceDir: sourceDir,
		buildDir:  buildDir,
		Defines:   map[string]defineValue{},
		env:       map[string]string{},
	}
}

// BuildType sets CMAKE_BUILD_TYPE for single-config generators and the
// --config of the build step for multi-config ones.
func (c *CMake) BuildType(name string) *CMake {
	c.buildType = name
	return c
}

func (c *CMake) Define(key, value string) *CMake {
	c.Defines[key] = defineValue{value: value, typeName: "STRING"}
	return c
}

func (c *CMake) DefinePath(key, value string) *CMake {
	c.Defines[key] = defineValue{value: toCMakePath(value), typeName: "PATH"}
	return c
}

// DefineList sets a ;-separated list. Paths are normalized to forward
// slashes so Windows separators are not read as escapes.
func (c *CMake) DefineList(key string, values []string) *CMake {
	items := make([]string, len(values))
	for i, v := range values {
		items[i] = strings.ReplaceAll(toCMakePath(v), ";", `\;`)
	}
	c.Defines[key] = defineValue{value: strings.Join(items, ";"), typeName: "STRING"}
	return c
}

func (c *CMake) Env(key, value string) *CMake {
	c.env[key] = value
	return c
}

// Configure runs cmake -S <source> -B <build> with the accumulated defines.
func (c *CMake) Configure(ctx context.Context, args ...string) error {
	if err := os.MkdirAll(c.buildDir, 0o755); err != nil {
		return err
	}
	cmakeArgs := []string{"-S", c.SourceDir, "-B", c.buildDir}
	if c.buildType != "" {
		c.Define("CMAKE_BUILD_TYPE", c.buildType)
	}
	cmakeArgs = append(cmakeArgs, c.definesArgs()...)
	cmakeArgs = append(cmakeArgs, args...)

	return c.run(ctx, cmakeArgs)
}

// Build runs cmake --build for the configured build type.
func (c *CMake) Build(ctx context.Context, args ...string) error {
	cmdArgs := []string{"--build", c.buildDir}
	if c.buildType != "" {
		cmdArgs = append(cmdArgs, "--config", c.buildType)
	}
	cmdArgs = append(cmdArgs, args...)
	return c.run(ctx, cmdArgs)
}

func (c *CMake) definesArgs() []string {
	if len(c.Defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Defines))
	for k := range c.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		def := c.Defines[k]
		if def.typeName != "" {
			args = append(args, "-D"+k+":"+def.typeName+"="+def.value)
			continue
		}
		args = append(args, "-D"+k+"="+def.value)
	}
	return args
}

func (c *CMake) run(ctx context.Context, args []string) error {
	_, err := c.runner.Run(ctx, toolexec.Command{
		Name: "cmake",
		Args: args,
		Env:  envList(c.env),
	})
	return err
}

func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

func toCMakePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
