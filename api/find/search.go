// Package find exposes repository search over names and file contents.
package find

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/search"
	"github.com/gomantics/gitstore/domains/storage"
)

// SearchResponse carries the matched entries.
type SearchResponse struct {
	Query   string              `json:"query"`
	Results []storage.FileEntry `json:"results"`
}

// Search handles GET /v1/repos/:repo/search
// by=name matches entry names case-insensitively; by=content matches
// literal text inside files. type=file|dir narrows name searches.
func Search(rv *repo.Resolver, engine *search.Engine) web.HandlerFunc {
	return func(c web.Context) error {
		st, err := rv.Store(c)
		if err != nil {
			return c.Fail(err)
		}
		query := c.QueryParam("q")
		if query == "" {
			return c.BadRequest("q is required")
		}
		base := c.QueryParam("path")

		var kind storage.EntryKind
		switch c.QueryParam("type") {
		case "":
		case "file":
			kind = storage.KindFile
		case "dir":
			kind = storage.KindDirectory
		default:
			return c.BadRequest("type must be file or dir")
		}

		var results []storage.FileEntry
		switch c.QueryParam("by") {
		case "", "name":
			results, err = engine.ByName(c.Request().Context(), st, query, base, kind)
		case "content":
			if kind == storage.KindDirectory {
				return c.BadRequest("content search only matches files")
			}
			results, err = engine.ByContent(c.Request().Context(), st, query, base)
		default:
			return c.BadRequest("by must be name or content")
		}
		if err != nil {
			return c.Fail(err)
		}
		return c.OK(SearchResponse{Query: query, Results: results})
	}
}
