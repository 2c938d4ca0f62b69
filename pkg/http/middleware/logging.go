package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one line per request: method, path, status, response
// size and latency.
func RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			res := c.Response()
			log.Printf("%s %s -> %d %dB in %s",
				c.Request().Method,
				c.Request().RequestURI,
				res.Status,
				res.Size,
				time.Since(start),
			)
			return err
		}
	}
}
