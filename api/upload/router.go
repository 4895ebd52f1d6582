package upload

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/uploads"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func Configure(e *echo.Echo, l *zap.Logger, rv *repo.Resolver, manager *uploads.Manager) {
	e.POST("/v1/repos/:repo/uploads", web.Wrap(Init(rv, manager), l))
	e.PUT("/v1/repos/:repo/uploads/:id/chunks/:index", web.Wrap(Chunk(rv, manager), l))
	e.POST("/v1/repos/:repo/uploads/:id/complete", web.Wrap(Complete(rv, manager), l))
}
