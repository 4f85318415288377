package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"ForecastDrill/pkg/logger"
)

// RequestLogging logs one line per request. 5xx log at error, 4xx at warn,
// everything else at debug.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			status := c.Response().Status
			fields := []logger.Field{
				logger.String("method", req.Method),
				logger.String("route", c.Path()),
				logger.String("uri", req.RequestURI),
				logger.Int("status", status),
				logger.Duration("latency_ms", time.Since(start)),
				logger.String("remote_ip", c.RealIP()),
			}
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, logger.String("request_id", id))
			}

			switch {
			case status >= 500:
				log.Error("http request", fields...)
			case status >= 400:
				log.Warn("http request", fields...)
			default:
				log.Debug("http request", fields...)
			}
			return nil
		}
	}
}
