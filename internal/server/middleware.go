package server

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"recipegate/internal/core"
)

// RequestIDHeader carries the request ID in and out.
const RequestIDHeader = echo.HeaderXRequestID

// requestIDMiddleware reuses an incoming X-Request-ID or assigns a new UUID,
// echoes it on the response and attaches it to the request context.
func requestIDMiddleware() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c *echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(core.WithRequestID(req.Context(), id)))
		},
	})
}

// requestLoggerMiddleware logs one line per request through slog, at debug
// level or at warn when the handler returned an error.
func requestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("path", v.URIPath),
				slog.Int("status", v.Status),
				slog.String("request_id", v.RequestID),
				slog.Duration("duration", v.Latency),
			}
			if v.Error != nil {
				slog.LogAttrs(context.Background(), slog.LevelWarn, "request failed", append(attrs, slog.Any("error", v.Error))...)
				return nil
			}
			slog.LogAttrs(context.Background(), slog.LevelDebug, "request", attrs...)
			return nil
		},
	})
}
