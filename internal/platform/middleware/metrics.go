package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/quantumcare/clinical/internal/platform/metrics"
)

// Metrics counts every request by method, route pattern and final status.
// Unrouted requests share one label so arbitrary paths cannot grow the
// series count.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			route := c.Path()
			if route == "" || route == "/*" {
				route = "unmatched"
			}
			m.ObserveHTTPRequest(c.Request().Method, route, statusOf(c, err))
			return err
		}
	}
}
