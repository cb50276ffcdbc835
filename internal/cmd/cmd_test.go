package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/clapforge/internal/config"
	"github.com/dosanma1/clapforge/internal/pipeline"
	"github.com/dosanma1/clapforge/internal/plugin"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestFindWorkspaceRoot_ProjectFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, config.ProjectFileName), []byte("bundle_id: com.example.gain\n"), 0o644))
	sub := filepath.Join(root, "plugins", "gain", "src")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "plugins", "gain", "Cargo.toml"), nil, 0o644))
	chdir(t, sub)

	got, err := findWorkspaceRoot()
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, want, gotResolved)
}

func TestFindWorkspaceRoot_OutermostCargoToml(t *testing.T) {
	root := t.TempDir()
	member := filepath.Join(root, "gain")
	require.NoError(t, os.MkdirAll(member, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Cargo.toml"), []byte("[workspace]\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(member, "Cargo.toml"), []byte("[package]\n"), 0o644))
	chdir(t, member)

	got, err := findWorkspaceRoot()
	require.NoError(t, err)
	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, want, gotResolved)
}

func TestCleanTargets(t *testing.T) {
	ws := filepath.FromSlash("/ws")
	r := config.NewResolver(nil)

	roots, outputs := cleanTargets(r, ws, nil)
	assert.Equal(t, []string{filepath.Join(ws, "target", "clapforge")}, roots)
	assert.Equal(t, []string{
		filepath.Join(ws, "target", "debug", "plugins"),
		filepath.Join(ws, "target", "release", "plugins"),
	}, outputs)

	roots, outputs = cleanTargets(r, ws, []string{"gain"})
	assert.Equal(t, []string{filepath.Join(ws, "target", "clapforge", "gain")}, roots)
	assert.Equal(t, []string{
		filepath.Join(ws, "target", "debug", "plugins", "gain"),
		filepath.Join(ws, "target", "release", "plugins", "gain"),
	}, outputs)
}

func TestRemoveOutputs_OnlyRecordedBundles(t *testing.T) {
	parent := t.TempDir()
	out := filepath.Join(parent, "gain")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "gain.vst3"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(out, "gain.clap"), []byte("so"), 0o644))
	_, err := pipeline.WriteManifest(out, &pipeline.Manifest{
		Target: "gain",
		Bundles: []pipeline.ManifestEntry{
			{Format: plugin.FormatCLAP, Name: "gain.clap"},
			{Format: plugin.FormatVST3, Name: "gain.vst3"},
		},
	})
	require.NoError(t, err)
	mine := filepath.Join(parent, "mixdown.wav")
	require.NoError(t, os.WriteFile(mine, []byte("audio"), 0o644))
	unrelated := filepath.Join(parent, "Other.vst3")
	require.NoError(t, os.MkdirAll(unrelated, 0o755))

	removed, err := removeOutputs(parent)
	require.NoError(t, err)

	assert.Len(t, removed, 3)
	assert.NoFileExists(t, filepath.Join(out, "gain.clap"))
	assert.NoDirExists(t, filepath.Join(out, "gain.vst3"))
	assert.FileExists(t, mine)
	assert.DirExists(t, unrelated)

	removed, err = removeOutputs(filepath.Join(parent, "missing"))
	require.NoError(t, err)
	assert.Empty(t, removed)
}

func TestBuildFlags_FormatsUnsetStayNil(t *testing.T) {
	var f buildFlags
	cmd := &cobra.Command{Use: "build"}
	f.register(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--release"}))

	raw := f.rawArgs(cmd, "gain", "/ws")
	assert.Nil(t, raw.Formats)
	assert.Equal(t, "gain", raw.Target)
	assert.True(t, raw.Release)

	require.NoError(t, cmd.Flags().Parse([]string{"--formats", "clap,vst3"}))
	raw = f.rawArgs(cmd, "gain", "/ws")
	assert.Equal(t, []string{"clap", "vst3"}, raw.Formats)
}

func TestConfigureAll_FlagDirsPerTarget(t *testing.T) {
	ws := t.TempDir()
	var f buildFlags
	cmd := &cobra.Command{Use: "build"}
	f.register(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--output", "dist", "--build-root", "br"}))

	cfgs, err := configureAll(cmd, &f, []string{"gain", "reverb", "gain"}, ws, nil)
	require.NoError(t, err)
	require.Len(t, cfgs, 2)

	assert.Equal(t, filepath.Join(ws, "dist", "gain"), cfgs[0].OutputDir())
	assert.Equal(t, filepath.Join(ws, "br", "gain"), cfgs[0].BuildRoot())
	assert.Equal(t, filepath.Join(ws, "dist", "reverb"), cfgs[1].OutputDir())
	assert.Equal(t, filepath.Join(ws, "br", "reverb"), cfgs[1].BuildRoot())

	cfgs, err = configureAll(cmd, &f, []string{"gain", "gain"}, ws, nil)
	require.NoError(t, err)
	require.Len(t, cfgs, 1)
	assert.Equal(t, filepath.Join(ws, "dist"), cfgs[0].OutputDir())
	assert.Equal(t, filepath.Join(ws, "br"), cfgs[0].BuildRoot())
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("bundle_id: com.example.gain\nversion: 1.2.0\nformats: [clap, vst3]\n"), 0o644))
	badVersion := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badVersion, []byte("version: not-semver\n"), 0o644))

	assert.NoError(t, runValidate(validateCmd, []string{good}))

	err := runValidate(validateCmd, []string{badVersion})
	require.Error(t, err)
}
