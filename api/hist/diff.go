package hist

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/history"
)

// DiffResponse carries a unified diff as text.
type DiffResponse struct {
	Path   string `json:"path"`
	Commit string `json:"commit"`
	Parent string `json:"parent,omitempty"`
	Diff   string `json:"diff"`
}

// Diff handles GET /v1/repos/:repo/diff
func Diff(rv *repo.Resolver, reader *history.Reader) web.HandlerFunc {
	return func(c web.Context) error {
		h, err := rv.Handle(c)
		if err != nil {
			return c.Fail(err)
		}
		path := c.QueryParam("path")
		if path == "" {
			return c.BadRequest("path is required")
		}
		commit, err := repo.CommitParam(c.QueryParam("commit"))
		if err != nil {
			return c.Fail(err)
		}
		parent := c.QueryParam("parent")
		if parent != "" {
			if parent, err = repo.CommitParam(parent); err != nil {
				return c.Fail(err)
			}
		}

		diff, err := reader.FileDiff(c.Request().Context(), h, path, commit, parent)
		if err != nil {
			return c.Fail(err)
		}
		return c.OK(DiffResponse{Path: path, Commit: commit, Parent: parent, Diff: diff})
	}
}
