package hist

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/history"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func Configure(e *echo.Echo, l *zap.Logger, rv *repo.Resolver, reader *history.Reader) {
	e.GET("/v1/repos/:repo/history", web.Wrap(Log(rv, reader), l))
	e.GET("/v1/repos/:repo/commits/:hash", web.Wrap(Commit(rv, reader), l))
	e.GET("/v1/repos/:repo/diff", web.Wrap(Diff(rv, reader), l))
}
