package upload

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/repos"
	"github.com/gomantics/gitstore/domains/uploads"
	"go.uber.org/zap"
)

// CompleteRequest finalizes an upload session.
type CompleteRequest struct {
	Message     string `json:"message,omitempty"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty"`
}

// CompleteResponse reports the commit the assembled file landed in.
type CompleteResponse struct {
	UploadID string `json:"upload_id"`
	Commit   string `json:"commit"`
}

// Complete handles POST /v1/repos/:repo/uploads/:id/complete
func Complete(rv *repo.Resolver, manager *uploads.Manager) web.HandlerFunc {
	return func(c web.Context) error {
		var req CompleteRequest
		if err := c.Bind(&req); err != nil {
			return c.BadRequest("invalid request body")
		}

		st, err := rv.Store(c)
		if err != nil {
			return c.Fail(err)
		}
		id := c.Param("id")
		author := repos.Author{Name: req.AuthorName, Email: req.AuthorEmail}

		commit, err := manager.Complete(c.Request().Context(), st, rv.Key(st.Handle()), id, req.Message, author)
		if err != nil {
			return c.Fail(err)
		}

		c.L.Info("upload committed",
			zap.String("upload_id", id),
			zap.String("commit", commit),
		)
		return c.OK(CompleteResponse{UploadID: id, Commit: commit})
	}
}
