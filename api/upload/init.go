// Package upload is the HTTP surface of the resumable upload protocol.
package upload

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/uploads"
)

// InitRequest declares the facts of the file to be uploaded.
type InitRequest struct {
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	ModifiedAt int64  `json:"modified_at"`
	Mime       string `json:"mime,omitempty"`
}

// Init handles POST /v1/repos/:repo/uploads
func Init(rv *repo.Resolver, manager *uploads.Manager) web.HandlerFunc {
	return func(c web.Context) error {
		var req InitRequest
		if err := c.Bind(&req); err != nil {
			return c.BadRequest("invalid request body")
		}
		if req.Path == "" {
			return c.BadRequest("path is required")
		}

		h, err := rv.Handle(c)
		if err != nil {
			return c.Fail(err)
		}

		result, err := manager.Init(c.Request().Context(), uploads.InitParams{
			RepoKey:        rv.Key(h),
			TargetPath:     req.Path,
			Size:           req.Size,
			SourceModified: req.ModifiedAt,
			Mime:           req.Mime,
		})
		if err != nil {
			return c.Fail(err)
		}
		return c.OK(result)
	}
}
