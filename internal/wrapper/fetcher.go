package wrapper

import (
	"context"
	"fmt"

	"github.com/dosanma1/clapforge/internal/toolexec"
)

// Fetcher materializes repo at rev into an empty directory.
type Fetcher interface {
	Fetch(ctx context.Context, repo, rev, dir string) error
}

// GitFetcher fetches a single revision with a shallow git fetch.
type GitFetcher struct {
	runner toolexec.Runner
}

// NewGitFetcher creates a fetcher that shells out to git.
func NewGitFetcher(runner toolexec.Runner) *GitFetcher {
	return &GitFetcher{runner: runner}
}

// Fetch initializes dir as a repository and checks out rev, which may be a
// tag, branch or commit.
func (g *GitFetcher) Fetch(ctx context.Context, repo, rev, dir string) error {
	if err := g.run(ctx, dir, "init", "--quiet"); err != nil {
		return err
	}
	if err := g.run(ctx, dir, "fetch", "--quiet", "--depth", "1", repo, rev); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := g.run(ctx, dir, "checkout", "--quiet", "FETCH_HEAD"); err != nil {
		return fmt.Errorf("checkout %s: %w", rev, err)
	}
	return nil
}

func (g *GitFetcher) run(ctx context.Context, dir string, args ...string) error {
	_, err := g.runner.Run(ctx, toolexec.Command{Name: "git", Args: args, Dir: dir})
	return err
}
