package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-seat-engine/internal/logger"
)

// RequestLogger logs one line per request with method, route, status and
// latency.  Server errors are logged at error level.
func RequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			kv := []any{
				"method", c.Request().Method,
				"route", c.Path(),
				"path", c.Request().URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", c.RealIP(),
			}
			if uid, ok := UserID(c); ok {
				kv = append(kv, "user_id", uid)
			}
			switch {
			case status >= 500:
				log.Error("http request", append(kv, "error", err)...)
			case status >= 400:
				log.Warn("http request", kv...)
			default:
				log.Info("http request", kv...)
			}
			return nil
		}
	}
}
