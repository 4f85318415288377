package middleware

import (
	"github.com/labstack/echo/v4"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(key string) bool
}

// KeyFunc extracts the rate-limit key from a request.
type KeyFunc func(c echo.Context) string

// RealIPKey keys requests by client address.
func RealIPKey(c echo.Context) string { return c.RealIP() }

// RateLimit rejects requests over the limit via onLimit. Requests with an
// empty key are not limited.
func RateLimit(l Limiter, key KeyFunc, onLimit echo.HandlerFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			k := key(c)
			if k != "" && !l.Allow(k) {
				return onLimit(c)
			}
			return next(c)
		}
	}
}
