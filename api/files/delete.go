package files

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"go.uber.org/zap"
)

// DeleteResponse is the response for deleting a path
type DeleteResponse struct {
	Path   string `json:"path"`
	Commit string `json:"commit"`
}

// Delete handles DELETE /v1/repos/:repo/file
// A directory path removes the whole subtree in one commit.
func Delete(rv *repo.Resolver) web.HandlerFunc {
	return func(c web.Context) error {
		st, err := rv.Store(c)
		if err != nil {
			return c.Fail(err)
		}

		path := c.QueryParam("path")
		if path == "" {
			return c.BadRequest("path is required")
		}
		message := c.QueryParam("message")
		if message == "" {
			message = "Delete " + path
		}

		commit, err := st.DeleteFile(c.Request().Context(), path, message, repo.Author(c))
		if err != nil {
			return c.Fail(err)
		}

		c.L.Info("path deleted",
			zap.String("path", path),
			zap.String("commit", commit),
		)
		return c.OK(DeleteResponse{Path: path, Commit: commit})
	}
}
