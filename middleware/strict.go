package middleware

import (
	"net/http"

	goSession "github.com/MrEthical07/goSession"
)

// RequireSession is [Gate] without any public prefixes, for handlers that are
// mounted only on protected routes.
func RequireSession(engine *goSession.Engine) func(http.Handler) http.Handler {
	return guard(engine, nil)
}
