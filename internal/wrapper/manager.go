// Package wrapper fetches and caches the clap-wrapper sources the native
// build links against.
package wrapper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dosanma1/clapforge/internal/lockedfile"
	"github.com/dosanma1/clapforge/pkg/xos"
)

const (
	// DefaultRepository is the upstream clap-wrapper repository.
	DefaultRepository = "https://github.com/free-audio/clap-wrapper.git"
	// DefaultRevision is the pinned clap-wrapper release.
	DefaultRevision = "v0.12.1"

	// CacheEnv overrides the cache root.
	CacheEnv = "CLAPFORGE_CACHE_DIR"

	stampFile = ".clapforge-stamp"
	lockName  = ".lock"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Manager resolves pinned clap-wrapper revisions into a shared on-disk
// cache. A revision is fetched at most once; concurrent callers in this
// process share one fetch and other processes wait on a file lock.
type Manager struct {
	cacheDir string
	fetcher  Fetcher
	logger   *slog.Logger
	group    singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of a shared fetch. It is cancelled once every
// caller waiting on it has given up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewManager creates a new dependency cache rooted at cacheDir.
func NewManager(cacheDir string, fetcher Fetcher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{cacheDir: cacheDir, fetcher: fetcher, logger: logger, flights: map[string]*flight{}}
}

// DefaultCacheDir returns $CLAPFORGE_CACHE_DIR or <user cache dir>/clapforge.
func DefaultCacheDir() (string, error) {
	if dir := os.Getenv(CacheEnv); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return filepath.Join(base, "clapforge"), nil
}

// CacheDir returns the cache root.
func (m *Manager) CacheDir() string {
	return m.cacheDir
}

// SourceDir returns where repo at rev is, or will be, published.
func (m *Manager) SourceDir(repo, rev string) string {
	sum := sha256.Sum256([]byte(repo))
	return filepath.Join(m.cacheDir, "clap-wrapper", hex.EncodeToString(sum[:4]), unsafeChars.ReplaceAllString(rev, "_"))
}

// Resolve returns the source directory of repo at rev, fetching it when
// the cache holds no complete copy.
func (m *Manager) Resolve(ctx context.Context, repo, rev string) (string, error) {
	if repo == "" || rev == "" {
		return "", errors.New("clap-wrapper repository and revision are required")
	}

	dir := m.SourceDir(repo, rev)
	if m.isFresh(dir, repo, rev) {
		m.logger.Debug("clap-wrapper cache hit", "revision", rev, "dir", dir)
		return dir, nil
	}

	for {
		err := m.await(ctx, dir, repo, rev)
		// A fetch abandoned by earlier callers can still be finishing
		// when this caller joins it.
		if errors.Is(err, context.Canceled) && ctx.Err() == nil {
			continue
		}
		if err != nil {
			return "", err
		}
		return dir, nil
	}
}

// await joins the shared fetch of dir and waits for it or for ctx.
func (m *Manager) await(ctx context.Context, dir, repo, rev string) error {
	f := m.join(ctx, dir)
	defer m.leave(dir, f)

	ch := m.group.DoChan(dir, func() (any, error) {
		return nil, m.fetch(f.ctx, dir, repo, rev)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (m *Manager) join(ctx context.Context, dir string) *flight {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.flights[dir]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		m.flights[dir] = f
	}
	f.waiters++
	return f
}

func (m *Manager) leave(dir string, f *flight) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if m.flights[dir] == f {
		delete(m.flights, dir)
	}
}

func (m *Manager) fetch(ctx context.Context, dir, repo, rev string) error {
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	unlock, err := lockedfile.MutexAt(filepath.Join(parent, filepath.Base(dir)+lockName)).Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	// Double-check after acquiring the lock; another process may have
	// published it meanwhile.
	if m.isFresh(dir, repo, rev) {
		return nil
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	m.logger.Info("fetching clap-wrapper", "repository", repo, "revision", rev)
	if err := m.fetcher.Fetch(ctx, repo, rev, tmp); err != nil {
		return fmt.Errorf("failed to fetch clap-wrapper %s: %w", rev, err)
	}
	if err := xos.WriteFile(filepath.Join(tmp, stampFile), []byte(stamp(repo, rev)), 0o644); err != nil {
		return fmt.Errorf("failed to write cache stamp: %w", err)
	}

	// Stale or partial copy from an interrupted run.
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove stale cache entry: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fmt.Errorf("failed to publish cache entry: %w", err)
	}
	return nil
}

func (m *Manager) isFresh(dir, repo, rev string) bool {
	data, err := os.ReadFile(filepath.Join(dir, stampFile))
	if err != nil {
		return false
	}
	return string(data) == stamp(repo, rev)
}

// Clear removes every cached revision.
func (m *Manager) Clear() error {
	return os.RemoveAll(filepath.Join(m.cacheDir, "clap-wrapper"))
}

func stamp(repo, rev string) string {
	return strings.TrimSpace(repo) + "@" + rev + "\n"
}
