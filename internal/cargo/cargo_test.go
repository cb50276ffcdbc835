package cargo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/clapforge/internal/plugin"
	"github.com/dosanma1/clapforge/internal/testutil"
	"github.com/dosanma1/clapforge/internal/toolexec"
	"github.com/dosanma1/clapforge/internal/toolexec/toolexectest"
)

func TestLibraryName(t *testing.T) {
	tests := []struct {
		target   string
		platform plugin.Platform
		want     string
	}{
		{"gain-example", plugin.PlatformLinux, "libgain_example.a"},
		{"gain-example", plugin.PlatformApple, "libgain_example.a"},
		{"gain-example", plugin.PlatformWindows, "gain_example.lib"},
		{"gain", plugin.PlatformWindows, "gain.lib"},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform)+"/"+tt.target, func(t *testing.T) {
			assert.Equal(t, tt.want, LibraryName(tt.target, tt.platform))
		})
	}
}

func TestLayout_Paths(t *testing.T) {
	l := Layout{Root: "/ws"}

	assert.Equal(t, filepath.FromSlash("/ws/target/release/libgain.a"),
		l.ArtifactPath("gain", plugin.ProfileRelease, plugin.PlatformLinux, ""))
	assert.Equal(t, filepath.FromSlash("/ws/target/aarch64-apple-darwin/debug/libgain.a"),
		l.ArtifactPath("gain", plugin.ProfileDebug, plugin.PlatformApple, "aarch64-apple-darwin"))
	assert.Equal(t, filepath.FromSlash("/ws/target/universal/release/libgain.a"),
		l.ExpectedPath("gain", plugin.ProfileRelease, plugin.PlatformApple))

	l.TargetDir = "/cache/target"
	assert.Equal(t, filepath.FromSlash("/cache/target/debug/gain.lib"),
		l.ExpectedPath("gain", plugin.ProfileDebug, plugin.PlatformWindows))
}

func TestResolve(t *testing.T) {
	root := t.TempDir()
	l := Layout{Root: root}

	_, err := Resolve(l, "gain-example", plugin.ProfileDebug, plugin.PlatformLinux)
	var notFound *ArtifactNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "gain-example", notFound.Target)
	assert.True(t, filepath.IsAbs(notFound.Path))

	want := l.ArtifactPath("gain-example", plugin.ProfileDebug, plugin.PlatformLinux, "")
	require.NoError(t, os.MkdirAll(filepath.Dir(want), 0o755))
	require.NoError(t, os.WriteFile(want, []byte("!<arch>\n"), 0o644))

	got, err := Resolve(l, "gain-example", plugin.ProfileDebug, plugin.PlatformLinux)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestResolve_DirectoryIsNotArtifact(t *testing.T) {
	root := t.TempDir()
	l := Layout{Root: root}
	require.NoError(t, os.MkdirAll(l.ArtifactPath("gain", plugin.ProfileDebug, plugin.PlatformLinux, ""), 0o755))

	_, err := Resolve(l, "gain", plugin.ProfileDebug, plugin.PlatformLinux)
	var notFound *ArtifactNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestNativeSearchDirs(t *testing.T) {
	output := strings.Join([]string{
		"   Compiling libc v0.2.150",
		"     Running `rustc --crate-name libc -L native=/ignored/libc`",
		"   Compiling gain-example v0.1.0",
		"     Running `rustc --crate-name gain_example --edition=2021 src/lib.rs -L native=/out/a -L native=\"/out/b\"`",
		"     Running `rustc --crate-name gain_example -L native=/out/a`",
	}, "\n")

	dirs := NativeSearchDirs([]byte(output), "gain-example")
	assert.Equal(t, []string{"/out/a", "/out/b"}, dirs)
}

func TestNativeSearchDirs_OtherCratePrefix(t *testing.T) {
	output := "Running `rustc --crate-name gain_example_utils -L native=/x`"
	assert.Empty(t, NativeSearchDirs([]byte(output), "gain-example"))
}

func TestNativeLibraries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"libfoo.a", "libbar.so", "libbaz.1.dylib", "foo.lib", "foo.dll", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	missing := filepath.Join(dir, "missing")

	unix := NativeLibraries([]string{dir, missing}, plugin.PlatformLinux)
	assert.Equal(t, []string{
		filepath.Join(dir, "libbar.so"),
		filepath.Join(dir, "libbaz.1.dylib"),
		filepath.Join(dir, "libfoo.a"),
	}, unix)

	win := NativeLibraries([]string{dir}, plugin.PlatformWindows)
	assert.Equal(t, []string{filepath.Join(dir, "foo.dll"), filepath.Join(dir, "foo.lib")}, win)
}

func TestBuilder_Build_Host(t *testing.T) {
	root := t.TempDir()
	nativeDir := filepath.Join(root, "native")
	require.NoError(t, os.MkdirAll(nativeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nativeDir, "libwebview.a"), nil, 0o644))

	runner := &toolexectest.Runner{Handler: func(ctx context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
		return &toolexec.Result{Stderr: []byte("Running `rustc --crate-name gain -L native=" + nativeDir + "`\n")}, nil
	}}

	b := NewBuilder(Layout{Root: root}, runner, testutil.NewTestLogger(t))
	res, err := b.Build(context.Background(), "gain", plugin.ProfileRelease, plugin.PlatformLinux)
	require.NoError(t, err)

	cmds := runner.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "cargo", cmds[0].Name)
	assert.Equal(t, []string{"build", "--verbose", "--lib", "-p", "gain", "--release"}, cmds[0].Args)
	assert.Equal(t, root, cmds[0].Dir)
	assert.Equal(t, []string{filepath.Join(nativeDir, "libwebview.a")}, res.NativeLibraries)
}

func TestBuilder_Build_CompileErrorNotRetried(t *testing.T) {
	compileErr := &toolexec.CompileError{Tool: "cargo", ExitCode: 101, Diagnostic: "error[E0425]: cannot find value `x`\n"}
	runner := &toolexectest.Runner{Handler: func(ctx context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
		return nil, compileErr
	}}

	b := NewBuilder(Layout{Root: t.TempDir()}, runner, testutil.NewTestLogger(t))
	_, err := b.Build(context.Background(), "gain", plugin.ProfileDebug, plugin.PlatformLinux)
	require.ErrorIs(t, err, compileErr)
	assert.Len(t, runner.Commands(), 1)
}

func TestBuilder_Build_AppleUniversal(t *testing.T) {
	root := t.TempDir()
	l := Layout{Root: root}

	runner := &toolexectest.Runner{Handler: func(ctx context.Context, cmd toolexec.Command) (*toolexec.Result, error) {
		if cmd.Name == "cargo" {
			triple := cmd.Args[len(cmd.Args)-1]
			p := l.ArtifactPath("gain", plugin.ProfileDebug, plugin.PlatformApple, triple)
			require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
			require.NoError(t, os.WriteFile(p, []byte("!<arch>\n"), 0o644))
		}
		return nil, nil
	}}

	b := NewBuilder(l, runner, testutil.NewTestLogger(t))
	_, err := b.Build(context.Background(), "gain", plugin.ProfileDebug, plugin.PlatformApple)
	require.NoError(t, err)

	assert.Equal(t, []string{"rustup", "cargo", "cargo", "lipo"}, runner.Names())
	lipo := runner.Commands()[3]
	assert.Equal(t, "-create", lipo.Args[0])
	assert.Equal(t, l.UniversalPath("gain", plugin.ProfileDebug), lipo.Args[len(lipo.Args)-1])
	assert.DirExists(t, filepath.Dir(l.UniversalPath("gain", plugin.ProfileDebug)))
}

func TestBuilder_Build_AppleSliceMissing(t *testing.T) {
	runner := &toolexectest.Runner{}
	b := NewBuilder(Layout{Root: t.TempDir()}, runner, testutil.NewTestLogger(t))

	_, err := b.Build(context.Background(), "gain", plugin.ProfileDebug, plugin.PlatformApple)
	var notFound *ArtifactNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.NotContains(t, runner.Names(), "lipo")
}
