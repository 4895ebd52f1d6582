package files

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/storage"
)

// ListResponse is the response for listing a directory
type ListResponse struct {
	Path    string              `json:"path"`
	Commit  string              `json:"commit,omitempty"`
	Entries []storage.FileEntry `json:"entries"`
}

// List handles GET /v1/repos/:repo/files
func List(rv *repo.Resolver) web.HandlerFunc {
	return func(c web.Context) error {
		st, err := rv.Store(c)
		if err != nil {
			return c.Fail(err)
		}
		commit, err := repo.Commit(c)
		if err != nil {
			return c.Fail(err)
		}

		path := c.QueryParam("path")
		entries, err := st.ListFiles(c.Request().Context(), path, commit)
		if err != nil {
			return c.Fail(err)
		}

		return c.OK(ListResponse{Path: path, Commit: commit, Entries: entries})
	}
}
