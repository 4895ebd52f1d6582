package health

import (
	"github.com/gomantics/gitstore/api/web"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func Configure(e *echo.Echo, l *zap.Logger) {
	e.GET("/v1/health", web.Wrap(Get(), l))
}

// Get handles GET /v1/health
func Get() web.HandlerFunc {
	return func(c web.Context) error {
		return c.OK(map[string]string{"status": "ok"})
	}
}
