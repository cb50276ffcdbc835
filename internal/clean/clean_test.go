package clean

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosanma1/clapforge/internal/testutil"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestManager_Clean_RemovesContentKeepsRoot(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "build")
	touch(t, filepath.Join(root, "cmake", "CMakeLists.txt"))
	touch(t, filepath.Join(root, "build-debug", "CMakeCache.txt"))
	sibling := filepath.Join(base, "sibling.txt")
	touch(t, sibling)

	m := NewManager(filepath.Join(base, "home"), testutil.NewTestLogger(t))
	require.NoError(t, m.Clean(root))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.FileExists(t, sibling)
}

func TestManager_Clean_MissingRoot(t *testing.T) {
	m := NewManager(t.TempDir(), testutil.NewTestLogger(t))
	assert.NoError(t, m.Clean(filepath.Join(t.TempDir(), "never-built")))
}

func TestManager_Clean_DotDotResolvesBeforeCheck(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "build")
	touch(t, filepath.Join(root, "a"))
	keep := filepath.Join(base, "keep")
	touch(t, keep)

	m := NewManager(filepath.Join(base, "home"), testutil.NewTestLogger(t))
	// Resolves to base/build, so only its content goes.
	require.NoError(t, m.Clean(filepath.Join(base, "build", "x", "..")))
	assert.FileExists(t, keep)
	assert.NoFileExists(t, filepath.Join(root, "a"))
}

func TestManager_Clean_SymlinkEntryNotFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	base := t.TempDir()
	root := filepath.Join(base, "build")
	outside := filepath.Join(base, "outside")
	touch(t, filepath.Join(outside, "precious"))
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "link")))

	m := NewManager(filepath.Join(base, "home"), testutil.NewTestLogger(t))
	require.NoError(t, m.Clean(root))

	assert.FileExists(t, filepath.Join(outside, "precious"))
	_, err := os.Lstat(filepath.Join(root, "link"))
	assert.True(t, os.IsNotExist(err))
}

func TestManager_Clean_SymlinkedRootToHomeRefused(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	base := t.TempDir()
	home := filepath.Join(base, "home")
	touch(t, filepath.Join(home, ".bashrc"))
	link := filepath.Join(base, "build")
	require.NoError(t, os.Symlink(home, link))

	m := NewManager(home, testutil.NewTestLogger(t))
	var cerr *ContainmentError
	require.ErrorAs(t, m.Clean(link), &cerr)
	assert.FileExists(t, filepath.Join(home, ".bashrc"))
}

func TestManager_Clean_RefusesUnsafeRoots(t *testing.T) {
	base := t.TempDir()
	home := filepath.Join(base, "users", "me")
	require.NoError(t, os.MkdirAll(home, 0o755))
	file := filepath.Join(base, "file")
	touch(t, file)

	m := NewManager(home, testutil.NewTestLogger(t))

	for name, root := range map[string]string{
		"filesystem root": string(filepath.Separator),
		"home":            home,
		"home ancestor":   filepath.Join(base, "users"),
		"empty":           "",
		"regular file":    file,
	} {
		t.Run(name, func(t *testing.T) {
			var cerr *ContainmentError
			assert.ErrorAs(t, m.Clean(root), &cerr)
		})
	}
	assert.DirExists(t, home)
}

func TestWithin(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + filepath.Join("ws", "target")

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "cmake"), true},
		{filepath.Join(root, "a", "b"), true},
		{root, false},
		{filepath.Join(root, ".."), false},
		{filepath.Join(root, "..", "src"), false},
		{sep + filepath.Join("ws", "target-other"), false},
		{root + sep + ".." + sep + "..", false},
		{filepath.Join(root, "..hidden"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Within(root, tt.path), tt.path)
	}
}
