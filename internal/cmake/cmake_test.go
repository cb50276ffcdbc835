package cmake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/clapforge/internal/toolexec/toolexectest"
)

func TestCMake_ConfigureArgs(t *testing.T) {
	runner := &toolexectest.Runner{}
	build := t.TempDir()

	c := New(runner, "/src", build).
		BuildType("Release").
		Define("BUNDLE_ID", "com.example.gain").
		DefinePath("STATIC_LIB_FILE", `C:\ws\target\release\gain.lib`).
		DefineList("PLUGIN_FORMATS", []string{"CLAP", "VST3"}).
		Env("MACOSX_DEPLOYMENT_TARGET", "10.13")

	require.NoError(t, c.Configure(context.Background()))

	cmds := runner.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "cmake", cmds[0].Name)
	assert.Equal(t, []string{
		"-S", "/src", "-B", build,
		"-DBUNDLE_ID:STRING=com.example.gain",
		"-DCMAKE_BUILD_TYPE:STRING=Release",
		"-DPLUGIN_FORMATS:STRING=CLAP;VST3",
		"-DSTATIC_LIB_FILE:PATH=C:/ws/target/release/gain.lib",
	}, cmds[0].Args)
	assert.Equal(t, []string{"MACOSX_DEPLOYMENT_TARGET=10.13"}, cmds[0].Env)
}

func TestCMake_BuildArgs(t *testing.T) {
	runner := &toolexectest.Runner{}
	c := New(runner, "/src", "/build").BuildType("Debug")

	require.NoError(t, c.Build(context.Background(), "--parallel"))

	cmds := runner.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, []string{"--build", "/build", "--config", "Debug", "--parallel"}, cmds[0].Args)
	assert.Empty(t, cmds[0].Env)
}

func TestCMake_DefineListEscapesSeparators(t *testing.T) {
	c := New(&toolexectest.Runner{}, "", "").DefineList("NATIVE_LIBRARIES", []string{"/a;b/libx.a", "/c/liby.a"})
	assert.Equal(t, `/a\;b/libx.a;/c/liby.a`, c.Defines["NATIVE_LIBRARIES"].value)
}
