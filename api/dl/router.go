package dl

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/downloads"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func Configure(e *echo.Echo, l *zap.Logger, rv *repo.Resolver, streamer *downloads.Streamer) {
	e.GET("/v1/repos/:repo/file", web.Wrap(Content(rv, streamer), l))
	e.GET("/v1/repos/:repo/archive", web.Wrap(Archive(rv, streamer), l))
}
