// Package http provides the HTTP server construction for estatehub.
package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/estatehub/internal/hub"
	"github.com/xiaot623/estatehub/internal/service"
	"github.com/xiaot623/estatehub/internal/telemetry"
	"github.com/xiaot623/estatehub/internal/transport/http/internalapi"
	v1 "github.com/xiaot623/estatehub/internal/transport/http/v1"
	"github.com/xiaot623/estatehub/internal/transport/ws"
)

// ExternalOptions configures the public server.
type ExternalOptions struct {
	ClientURL string
	WebSocket *ws.Server
	MCP       http.Handler
}

// NewExternalServer creates the public HTTP server: assistant, chat rooms,
// the live relay and the MCP endpoint.
func NewExternalServer(svc *service.Service, opts ExternalOptions, logger *slog.Logger) *echo.Echo {
	e := newEcho(logger)

	origin := opts.ClientURL
	if origin == "" {
		origin = "*"
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{origin},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, v1.UserIDHeader},
	}))

	v1.NewHandler(svc, logger).RegisterRoutes(e)
	if opts.WebSocket != nil {
		e.GET("/ws", opts.WebSocket.HandleWebSocket)
	}
	if opts.MCP != nil {
		e.Any("/mcp", echo.WrapHandler(opts.MCP))
	}

	return e
}

// NewInternalServer creates the internal HTTP server: health, metrics and publish.
func NewInternalServer(svc *service.Service, h *hub.Hub, metrics *telemetry.Metrics, logger *slog.Logger) *echo.Echo {
	e := newEcho(logger)
	internalapi.NewHandler(svc, h, metrics, logger).RegisterRoutes(e)
	return e
}

func newEcho(logger *slog.Logger) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				logger.LogAttrs(context.Background(), slog.LevelError, "request", attrs...)
				return nil
			}
			logger.LogAttrs(context.Background(), slog.LevelInfo, "request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	return e
}
