package find

import (
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/web"
	"github.com/gomantics/gitstore/domains/search"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func Configure(e *echo.Echo, l *zap.Logger, rv *repo.Resolver, engine *search.Engine) {
	e.GET("/v1/repos/:repo/search", web.Wrap(Search(rv, engine), l))
}
