// Package repos owns the registry of initialized repository handles.
// One handle exists per (path, mode); initialization happens once, and
// concurrent first callers await the same in-flight initialization.
package repos

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-git/go-git/v5"
	"github.com/gomantics/gitstore/libs/gitcmd"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

// Options configures a Manager.
type Options struct {
	Runner        gitcmd.Runner
	LfsEnabled    bool
	LfsPatterns   []string
	DefaultAuthor Author
}

// Manager caches repository handles keyed by (path, mode).
type Manager struct {
	l    *zap.Logger
	opts Options

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	once   sync.Once
	handle *Handle
	err    error
}

// NewManager creates a Manager. Pass an isolated instance per test
// fixture; there is no package-level singleton.
func NewManager(l *zap.Logger, opts Options) *Manager {
	if opts.Runner == nil {
		opts.Runner = gitcmd.NewExecRunner()
	}
	return &Manager{
		l:       l,
		opts:    opts,
		entries: make(map[string]*entry),
	}
}

// Get returns the handle for (path, mode), initializing the repository
// on first use. A failed initialization is sticky: every later Get for
// the same key reports the same error until the process restarts.
func (m *Manager) Get(ctx context.Context, path string, mode Mode) (*Handle, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Validation, "invalid repository path", err)
	}
	key := string(mode) + ":" + abs

	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	m.mu.Unlock()

	e.once.Do(func() {
		e.handle, e.err = m.initialize(ctx, abs, mode)
	})
	return e.handle, e.err
}

func (m *Manager) initialize(ctx context.Context, path string, mode Mode) (*Handle, error) {
	// The result is cached for the process lifetime, so initialization
	// must not ride on one request's deadline: a caller disconnecting
	// mid-init would poison the key for everyone after it.
	ctx = context.WithoutCancel(ctx)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "failed to create repository root", err)
	}

	created := false
	if _, err := git.PlainOpen(path); err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, apperr.Wrap(apperr.Internal, "failed to open repository", err)
		}
		if _, err := git.PlainInit(path, mode == ModeBare); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "failed to initialize repository", err)
		}
		created = true
	}

	h := &Handle{
		Path: path,
		Mode: mode,
		git:  gitcmd.NewGit(m.opts.Runner, path),
	}

	// An existing repository can still carry an unborn HEAD, e.g. when a
	// previous process died between init and the bootstrap commit.
	// Bootstrap keys off that, not off who created the directory, so a
	// half-initialized repository is repaired on the next open.
	if created || !m.headResolves(ctx, h) {
		if err := m.bootstrap(ctx, h); err != nil {
			return nil, err
		}
		m.l.Info("repository initialized",
			zap.String("path", path),
			zap.String("mode", mode.String()),
		)
	}

	return h, nil
}

func (m *Manager) headResolves(ctx context.Context, h *Handle) bool {
	_, err := h.git.Run(ctx, "rev-parse", "--verify", "-q", "HEAD")
	return err == nil
}

// bootstrap seeds a fresh repository: an empty root commit so HEAD
// always resolves, plus large-binary tracking when configured.
func (m *Manager) bootstrap(ctx context.Context, h *Handle) error {
	env := gitcmd.AuthorEnv(m.opts.DefaultAuthor.Name, m.opts.DefaultAuthor.Email)

	if h.IsBare() {
		tree, err := h.git.RunText(ctx, "write-tree")
		if err != nil {
			return apperr.Wrap(apperr.Internal, "failed to write initial tree", err)
		}
		out, err := h.git.RunWith(ctx, env, strings.NewReader("Initialize repository"),
			"commit-tree", tree, "-F", "-")
		if err != nil {
			return apperr.Wrap(apperr.Internal, "failed to create initial commit", err)
		}
		commit := strings.TrimSpace(string(out))
		if _, err := h.git.Run(ctx, "update-ref", "HEAD", commit); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to point HEAD at initial commit", err)
		}
	} else {
		if _, err := h.git.RunWith(ctx, env, nil,
			"commit", "--allow-empty", "-m", "Initialize repository"); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to create initial commit", err)
		}
	}

	if m.opts.LfsEnabled && !h.IsBare() {
		if err := m.setupLfs(ctx, h, env); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) setupLfs(ctx context.Context, h *Handle, env []string) error {
	if _, err := h.git.Run(ctx, "lfs", "install", "--local"); err != nil {
		return apperr.Wrap(apperr.Internal, "failed to install lfs hooks", err)
	}
	for _, pattern := range m.opts.LfsPatterns {
		if _, err := h.git.Run(ctx, "lfs", "track", pattern); err != nil {
			return apperr.Wrap(apperr.Internal, fmt.Sprintf("failed to track lfs pattern %q", pattern), err)
		}
	}
	if len(m.opts.LfsPatterns) > 0 {
		if _, err := h.git.Run(ctx, "add", "--", ".gitattributes"); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to stage .gitattributes", err)
		}
		if _, err := h.git.RunWith(ctx, env, nil, "commit", "-m", "Track large files with LFS"); err != nil {
			return apperr.Wrap(apperr.Internal, "failed to commit .gitattributes", err)
		}
	}
	m.l.Info("lfs tracking configured", zap.Strings("patterns", m.opts.LfsPatterns))
	return nil
}
