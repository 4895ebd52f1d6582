package files

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/repos"
	"go.uber.org/zap"
)

// MoveRequest is the request body for moving or renaming a path
type MoveRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Message     string `json:"message,omitempty"`
	AuthorName  string `json:"author_name,omitempty"`
	AuthorEmail string `json:"author_email,omitempty"`
}

// MoveResponse is the response for moving a path
type MoveResponse struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Commit string `json:"commit"`
}

// Move handles POST /v1/repos/:repo/move
func Move(rv *repo.Resolver) web.HandlerFunc {
	return func(c web.Context) error {
		var req MoveRequest
		if err := c.Bind(&req); err != nil {
			return c.BadRequest("invalid request body")
		}
		if req.From == "" || req.To == "" {
			return c.BadRequest("from and to are required")
		}

		st, err := rv.Store(c)
		if err != nil {
			return c.Fail(err)
		}

		message := req.Message
		if message == "" {
			message = "Move " + req.From + " to " + req.To
		}
		author := repos.Author{Name: req.AuthorName, Email: req.AuthorEmail}

		commit, err := st.MovePath(c.Request().Context(), req.From, req.To, message, author)
		if err != nil {
			return c.Fail(err)
		}

		c.L.Info("path moved",
			zap.String("from", req.From),
			zap.String("to", req.To),
			zap.String("commit", commit),
		)
		return c.OK(MoveResponse{From: req.From, To: req.To, Commit: commit})
	}
}
