// Package hist exposes commit history, single-commit lookup and diffs.
package hist

import (
	"strconv"

	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/history"
)

// Log handles GET /v1/repos/:repo/history
func Log(rv *repo.Resolver, reader *history.Reader) web.HandlerFunc {
	return func(c web.Context) error {
		h, err := rv.Handle(c)
		if err != nil {
			return c.Fail(err)
		}
		path := c.QueryParam("path")
		if path == "" {
			return c.BadRequest("path is required")
		}

		limit := 50
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return c.BadRequest("limit must be a positive integer")
			}
			limit = n
		}

		hist, err := reader.FileHistory(c.Request().Context(), h, path, limit)
		if err != nil {
			return c.Fail(err)
		}
		return c.OK(hist)
	}
}
