package hist

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/history"
)

// Commit handles GET /v1/repos/:repo/commits/:hash
func Commit(rv *repo.Resolver, reader *history.Reader) web.HandlerFunc {
	return func(c web.Context) error {
		h, err := rv.Handle(c)
		if err != nil {
			return c.Fail(err)
		}
		hash, err := repo.CommitParam(c.Param("hash"))
		if err != nil {
			return c.Fail(err)
		}

		record, err := reader.CommitDetails(c.Request().Context(), h, hash)
		if err != nil {
			return c.Fail(err)
		}
		return c.OK(record)
	}
}
