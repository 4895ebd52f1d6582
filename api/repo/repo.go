// Package repo resolves the :repo route parameter to an initialized
// object store. Repositories live as named directories under the
// configured storage root.
package repo

import (
	"path/filepath"
	"regexp"

	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/domains/storage"
	"github.com/gomantics/gitstore/pkg/apperr"
	"go.uber.org/zap"
)

var (
	nameRe   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	commitRe = regexp.MustCompile(`^[0-9a-f]{40}$`)
)

// Resolver turns route parameters into repository stores.
type Resolver struct {
	l             *zap.Logger
	manager       *repos.Manager
	rootDir       string
	defaultMode   repos.Mode
	defaultAuthor repos.Author
}

// NewResolver creates a Resolver rooted at rootDir.
func NewResolver(l *zap.Logger, manager *repos.Manager, rootDir string, defaultMode repos.Mode, defaultAuthor repos.Author) *Resolver {
	return &Resolver{
		l:             l,
		manager:       manager,
		rootDir:       rootDir,
		defaultMode:   defaultMode,
		defaultAuthor: defaultAuthor,
	}
}

// Store resolves the request's repository and returns its object store.
func (r *Resolver) Store(c web.Context) (storage.Store, error) {
	h, err := r.handle(c)
	if err != nil {
		return nil, err
	}
	return storage.New(h, r.defaultAuthor, r.l), nil
}

// Handle resolves the request's repository handle.
func (r *Resolver) Handle(c web.Context) (*repos.Handle, error) {
	return r.handle(c)
}

// Key returns the registry key identifying the request's repository,
// used to scope upload sessions.
func (r *Resolver) Key(h *repos.Handle) string {
	return h.Mode.String() + ":" + h.Path
}

func (r *Resolver) handle(c web.Context) (*repos.Handle, error) {
	name := c.Param("repo")
	if !nameRe.MatchString(name) {
		return nil, apperr.Newf(apperr.Validation, "invalid repository name %q", name)
	}

	mode := r.defaultMode
	if raw := c.QueryParam("mode"); raw != "" {
		parsed, ok := repos.ParseMode(raw)
		if !ok {
			return nil, apperr.Newf(apperr.Validation, "invalid mode %q", raw)
		}
		mode = parsed
	}

	return r.manager.Get(c.Request().Context(), filepath.Join(r.rootDir, name), mode)
}

// Commit validates the optional commit query parameter: empty or a full
// 40-hex hash.
func Commit(c web.Context) (string, error) {
	commit := c.QueryParam("commit")
	if commit != "" && !commitRe.MatchString(commit) {
		return "", apperr.Newf(apperr.Validation, "invalid commit %q", commit)
	}
	return commit, nil
}

// CommitParam validates a required commit path/query value.
func CommitParam(value string) (string, error) {
	if !commitRe.MatchString(value) {
		return "", apperr.Newf(apperr.Validation, "invalid commit %q", value)
	}
	return value, nil
}

// Author reads the optional author identity from query parameters.
func Author(c web.Context) repos.Author {
	return repos.Author{
		Name:  c.QueryParam("authorName"),
		Email: c.QueryParam("authorEmail"),
	}
}
