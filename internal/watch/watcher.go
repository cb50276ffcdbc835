// Package watch reports source changes in a cargo workspace so the
// plugin can be rebuilt when the core changes.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config controls what the watcher reports.
type Config struct {
	// Root is the workspace directory watched recursively.
	Root string

	// Patterns are base-name globs that trigger a rebuild (e.g. "*.rs").
	Patterns []string

	// IgnorePatterns skip matching path components (e.g. "target").
	IgnorePatterns []string

	// Debounce is how long the tree must stay quiet before a batch is sent.
	Debounce time.Duration
}

// DefaultConfig watches Rust sources, cargo manifests and the project file.
func DefaultConfig(root string) *Config {
	return &Config{
		Root:     root,
		Patterns: []string{"*.rs", "Cargo.toml", "Cargo.lock", "clapforge.yaml", "*.h", "*.cpp"},
		IgnorePatterns: []string{
			".git",
			"target",
			"node_modules",
			".idea",
			".vscode",
			"*~",
			".#*",
		},
		Debounce: 300 * time.Millisecond,
	}
}

// Batch is a set of changed paths collected during one quiet period.
type Batch struct {
	Paths []string
}

// Watcher watches a workspace for source changes.
type Watcher struct {
	config  *Config
	watcher *fsnotify.Watcher
	batches chan Batch
	errors  chan error
	done    chan struct{}
	mu      sync.Mutex
	running bool

	pendingMu sync.Mutex
	pending   map[string]struct{}
	timer     *time.Timer
}

// New creates a new workspace watcher.
func New(config *Config) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		config:  config,
		watcher: fsWatcher,
		batches: make(chan Batch, 1),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
		pending: make(map[string]struct{}),
	}, nil
}

// Start begins watching. Events are processed until ctx is done or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addRecursive(w.config.Root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false
	close(w.done)

	w.pendingMu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pendingMu.Unlock()

	return w.watcher.Close()
}

// Batches delivers debounced change sets. While a batch is waiting to be
// received, newer changes are merged into the next one.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Errors returns the channel of watch errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(d.Name()) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	// New directories are not watched by fsnotify until added.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				select {
				case w.errors <- err:
				default:
				}
			}
			return
		}
	}

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !w.matchesPattern(event.Name) {
		return
	}
	w.debounce(event.Name)
}

func (w *Watcher) debounce(path string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.Debounce, w.flush)
}

func (w *Watcher) flush() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.pendingMu.Unlock()

	sort.Strings(paths)
	batch := Batch{Paths: paths}

	for {
		select {
		case w.batches <- batch:
			return
		case <-w.done:
			return
		case older := <-w.batches:
			batch = merge(older, batch)
		}
	}
}

func merge(a, b Batch) Batch {
	seen := make(map[string]struct{}, len(a.Paths)+len(b.Paths))
	var out []string
	for _, p := range append(append([]string{}, a.Paths...), b.Paths...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return Batch{Paths: out}
}

func (w *Watcher) matchesPattern(path string) bool {
	if len(w.config.Patterns) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range w.config.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(name string) bool {
	for _, pattern := range w.config.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// shouldIgnore checks each path component below the root.
func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.config.Root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if w.ignored(part) {
			return true
		}
	}
	return false
}

// IsRunning returns whether the watcher is running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
