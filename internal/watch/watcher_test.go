package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	cfg := DefaultConfig(root)
	cfg.Debounce = 50 * time.Millisecond

	w, err := New(cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	require.NoError(t, w.Start(ctx))
	return w
}

func waitBatch(t *testing.T, w *Watcher) Batch {
	t.Helper()
	select {
	case b := <-w.Batches():
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("no change batch received")
		return Batch{}
	}
}

func TestWatcher_ReportsSourceChanges(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src")
	require.NoError(t, os.MkdirAll(src, 0o755))

	w := startWatcher(t, root)
	lib := filepath.Join(src, "lib.rs")
	require.NoError(t, os.WriteFile(lib, []byte("pub fn gain() {}"), 0o644))

	b := waitBatch(t, w)
	assert.Contains(t, b.Paths, lib)
}

func TestWatcher_DebouncesBurst(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	a := filepath.Join(root, "a.rs")
	b := filepath.Join(root, "Cargo.toml")
	require.NoError(t, os.WriteFile(a, []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("[package]"), 0o644))

	batch := waitBatch(t, w)
	assert.ElementsMatch(t, []string{a, b}, batch.Paths)
}

func TestWatcher_IgnoresBuildOutputAndOtherFiles(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "target", "debug")
	require.NoError(t, os.MkdirAll(target, 0o755))

	w := startWatcher(t, root)
	require.NoError(t, os.WriteFile(filepath.Join(target, "build.rs"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644))

	select {
	case b := <-w.Batches():
		t.Fatalf("unexpected batch %v", b.Paths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	dir := filepath.Join(root, "dsp")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	file := filepath.Join(dir, "filter.rs")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	b := waitBatch(t, w)
	assert.Contains(t, b.Paths, file)
}

func TestMerge(t *testing.T) {
	got := merge(Batch{Paths: []string{"b", "a"}}, Batch{Paths: []string{"c", "a"}})
	assert.Equal(t, []string{"a", "b", "c"}, got.Paths)
}
