// Package middleware holds router.Middleware implementations, the way the
// teacher's router/inbuilt/middleware package does.
package middleware

import (
	"log"

	"github.com/duskhttp/dusk/channel"
	"github.com/duskhttp/dusk/router"
)

// Logger is the narrow interface LogRequests needs, satisfied by
// *log.Logger (and by log.Default()).
type Logger interface {
	Printf(format string, v ...any)
}

// LogRequests logs one line per completed dispatch pass, tagged with the
// "request.id" attribute a connector stamps onto every Request before its
// first dispatch — the token that lets two log lines straddling a
// suspend/redispatch pair (spec's async handling) be told apart from an
// entirely different request reusing the same connection. Grounded on the
// teacher's router/inbuilt/middleware.LogRequests, generalised from a
// single request/response exchange to one that may log more than once
// per request (once per dispatch pass, not once per response, since a
// suspended request's final response may commit long after this pass
// returns).
func LogRequests(loggers ...Logger) router.Middleware {
	if len(loggers) == 0 {
		loggers = append(loggers, log.Default())
	}

	return func(next router.Handler) router.Handler {
		return func(req *channel.Request) error {
			err := next(req)

			id, _ := req.Attribute("request.id")
			code, _ := req.Respond().Status()

			for _, logger := range loggers {
				if err != nil {
					logger.Printf("[%v] %s %s -> error: %v", id, req.Method, req.Path, err)
					continue
				}
				logger.Printf("[%v] %s %s -> %d", id, req.Method, req.Path, code)
			}

			return err
		}
	}
}
