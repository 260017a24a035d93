package middleware

import (
	"net/http"
	"time"

	applogger "FolioPulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs each request once it completes. Server errors go to
// warn, everything else to debug.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}
			fields := []applogger.Field{
				applogger.String("method", c.Request().Method),
				applogger.String("route", c.Path()),
				applogger.String("uri", c.Request().RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", status),
				applogger.Duration("latency_ms", time.Since(start)),
			}
			if status >= http.StatusInternalServerError {
				l.Warn("http request failed", append(fields, applogger.Error(err))...)
				return err
			}
			l.Debug("http request", fields...)
			return err
		}
	}
}
