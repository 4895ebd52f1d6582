package files

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/repos"
	"go.uber.org/zap"
)

// CreateDirRequest is the request body for creating a directory
type CreateDirRequest struct {
	Path        string `json:"path"`
	Message     string `json:"message,omitempty"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty"`
}

// CreateDirResponse is the response for creating a directory
type CreateDirResponse struct {
	Path   string `json:"path"`
	Commit string `json:"commit"`
}

// CreateDir handles POST /v1/repos/:repo/dirs
func CreateDir(rv *repo.Resolver) web.HandlerFunc {
	return func(c web.Context) error {
		var req CreateDirRequest
		if err := c.Bind(&req); err != nil {
			return c.BadRequest("invalid request body")
		}
		if req.Path == "" {
			return c.BadRequest("path is required")
		}

		st, err := rv.Store(c)
		if err != nil {
			return c.Fail(err)
		}

		message := req.Message
		if message == "" {
			message = "Create directory " + req.Path
		}
		author := repos.Author{Name: req.AuthorName, Email: req.AuthorEmail}

		commit, err := st.CreateDirectory(c.Request().Context(), req.Path, message, author)
		if err != nil {
			return c.Fail(err)
		}

		c.L.Info("directory created",
			zap.String("path", req.Path),
			zap.String("commit", commit),
		)
		return c.Created(CreateDirResponse{Path: req.Path, Commit: commit})
	}
}
