package files

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"go.uber.org/zap"
)

// SaveResponse is the response for writing a file
type SaveResponse struct {
	Path   string `json:"path"`
	Commit string `json:"commit"`
}

// Save handles PUT /v1/repos/:repo/file
// The request body is the file content, streamed into the store.
func Save(rv *repo.Resolver) web.HandlerFunc {
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
			message = "Update " + path
		}

		body := c.Request().Body
		defer body.Close()

		commit, err := st.SaveFile(c.Request().Context(), path, body, message, repo.Author(c))
		if err != nil {
			return c.Fail(err)
		}

		c.L.Info("file saved",
			zap.String("path", path),
			zap.String("commit", commit),
		)
		return c.OK(SaveResponse{Path: path, Commit: commit})
	}
}
