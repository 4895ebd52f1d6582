package dl

import (
	"fmt"
	"path"

	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/downloads"
	"go.uber.org/zap"
)

// Archive handles GET /v1/repos/:repo/archive
// The directory is packaged entry by entry; nothing is buffered whole.
func Archive(rv *repo.Resolver, streamer *downloads.Streamer) web.HandlerFunc {
	return func(c web.Context) error {
		st, err := rv.Store(c)
		if err != nil {
			return c.Fail(err)
		}
		commit, err := repo.Commit(c)
		if err != nil {
			return c.Fail(err)
		}
		dir := c.QueryParam("path")

		name := path.Base(dir)
		if name == "." || name == "/" || name == "" {
			name = c.Param("repo")
		}

		res := c.Response()
		res.Header().Set("Content-Type", "application/zip")
		res.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".zip"))

		err = streamer.WriteArchive(c.Request().Context(), st, dir, commit, res)
		if err != nil {
			if !res.Committed {
				return c.Fail(err)
			}
			// Too late for a status change; cut the stream short.
			c.L.Error("archive stream failed", zap.Error(err))
			return err
		}
		return nil
	}
}
