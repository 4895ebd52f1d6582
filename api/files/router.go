package files

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func Configure(e *echo.Echo, l *zap.Logger, rv *repo.Resolver) {
	e.GET("/v1/repos/:repo/files", web.Wrap(List(rv), l))
	e.PUT("/v1/repos/:repo/file", web.Wrap(Save(rv), l))
	e.DELETE("/v1/repos/:repo/file", web.Wrap(Delete(rv), l))
	e.POST("/v1/repos/:repo/move", web.Wrap(Move(rv), l))
	e.POST("/v1/repos/:repo/dirs", web.Wrap(CreateDir(rv), l))
}
