package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gomantics/gitstore/api/dl"
	"github.com/gomantics/gitstore/api/files"
	"github.com/gomantics/gitstore/api/find"
	"github.com/gomantics/gitstore/api/health"
	"github.com/gomantics/gitstore/api/hist"
	"github.com/gomantics/gitstore/api/repo"
	"github.com/gomantics/gitstore/api/upload"
	"github.com/gomantics/gitstore/config"
	"github.com/gomantics/gitstore/domains/downloads"
	"github.com/gomantics/gitstore/domains/history"
	"github.com/gomantics/gitstore/domains/search"
	"github.com/gomantics/gitstore/domains/uploads"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Deps bundles the services the route handlers need.
type Deps struct {
	fx.In

	Resolver *repo.Resolver
	Uploads  *uploads.Manager
	Streamer *downloads.Streamer
	History  *history.Reader
	Search   *search.Engine
}

func Run(lc fx.Lifecycle, l *zap.Logger, deps Deps) error {
	e := echo.New()

	if !config.IsDev() {
		e.HideBanner = true
		e.HidePort = true
	}

	configureMiddleware(e, l)
	configureRoutes(e, l, deps)

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", config.Server.Port()),
		Handler:           e,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				l.Info("starting API server", zap.String("addr", server.Addr))
				if err := e.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
					l.Error("error starting echo server", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			l.Info("shutdown signal received")
			return e.Shutdown(ctx)
		},
	})

	return nil
}

func configureMiddleware(e *echo.Echo, l *zap.Logger) {
	// Request ID must come first
	e.Use(middleware.RequestID())

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1 << 12, // 4 KB
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			l.Error("recovered from panic",
				zap.Error(err),
				zap.ByteString("stack", stack),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		},
	}))

	// Request logging
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			l.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
				zap.String("remote_ip", v.RemoteIP),
				zap.String("request_id", v.RequestID),
			)
			return nil
		},
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogURI:       true,
		LogRequestID: true,
		LogStatus:    true,
	}))

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.Server.CorsAllowedOrigins(),
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Origin", "X-Request-ID", "Range"},
		AllowCredentials: true,
		ExposeHeaders:    []string{"Content-Length", "Content-Range", "Accept-Ranges", "Content-Disposition"},
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	if config.IsDev() {
		e.IPExtractor = echo.ExtractIPDirect()
	} else {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	}
}

func configureRoutes(e *echo.Echo, l *zap.Logger, deps Deps) {
	health.Configure(e, l)
	files.Configure(e, l, deps.Resolver)
	dl.Configure(e, l, deps.Resolver, deps.Streamer)
	upload.Configure(e, l, deps.Resolver, deps.Uploads)
	hist.Configure(e, l, deps.Resolver, deps.History)
	find.Configure(e, l, deps.Resolver, deps.Search)
}
