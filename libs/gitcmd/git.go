package gitcmd

import (
	"context"
	"io"
	"strings"
)

// Git binds a Runner to one repository directory.
type Git struct {
	runner Runner
	dir    string
}

// NewGit returns a Git helper executing in dir (the worktree root for
// working-tree repositories, the git directory itself for bare ones).
func NewGit(runner Runner, dir string) *Git {
	return &Git{runner: runner, dir: dir}
}

// Dir returns the directory commands execute in.
func (g *Git) Dir() string { return g.dir }

// Run executes git with args and returns the full stdout.
func (g *Git) Run(ctx context.Context, args ...string) ([]byte, error) {
	return g.runner.Run(ctx, Command{Args: args, Dir: g.dir})
}

// RunText executes git and returns trimmed stdout as a string.
func (g *Git) RunText(ctx context.Context, args ...string) (string, error) {
	out, err := g.Run(ctx, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// RunWith executes git with extra environment and stdin.
func (g *Git) RunWith(ctx context.Context, env []string, stdin io.Reader, args ...string) ([]byte, error) {
	return g.runner.Run(ctx, Command{Args: args, Dir: g.dir, Env: env, Stdin: stdin})
}

// Start executes git and returns stdout as a stream; closing it kills
// the child.
func (g *Git) Start(ctx context.Context, args ...string) (io.ReadCloser, error) {
	return g.runner.Start(ctx, Command{Args: args, Dir: g.dir})
}

// StartWith is Start with extra environment and stdin.
func (g *Git) StartWith(ctx context.Context, env []string, stdin io.Reader, args ...string) (io.ReadCloser, error) {
	return g.runner.Start(ctx, Command{Args: args, Dir: g.dir, Env: env, Stdin: stdin})
}

// AuthorEnv builds the identity environment for a commit. Empty fields
// fall back to the configured defaults supplied by the caller.
func AuthorEnv(name, email string) []string {
	return []string{
		"GIT_AUTHOR_NAME=" + name,
		"GIT_AUTHOR_EMAIL=" + email,
		"GIT_COMMITTER_NAME=" + name,
		"GIT_COMMITTER_EMAIL=" + email,
	}
}
