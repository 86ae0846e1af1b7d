package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

// IdentityFromContext returns the identity attached by a guard.
func IdentityFromContext(ctx context.Context) (*goSession.Identity, bool) {
	return goSession.IdentityFromContext(ctx)
}

// Gate returns middleware that requires a live session for every request
// whose path does not start with one of publicPrefixes. Without explicit
// prefixes the engine's configured public prefixes are used.
//
// A missing bearer token or any validation failure is answered with 401,
// except a session store outage which is answered with 503.
func Gate(engine *goSession.Engine, publicPrefixes ...string) func(http.Handler) http.Handler {
	if len(publicPrefixes) == 0 && engine != nil {
		publicPrefixes = engine.PublicPathPrefixes()
	}
	return guard(engine, publicPrefixes)
}

func guard(engine *goSession.Engine, publicPrefixes []string) func(http.Handler) http.Handler {
	prefixes := make([]string, 0, len(publicPrefixes))
	for _, p := range publicPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			prefixes = append(prefixes, p)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path, prefixes) {
				next.ServeHTTP(w, r)
				return
			}

			if engine == nil {
				unauthorized(w)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			identity, err := engine.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, goSession.ErrStoreUnavailable) {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}
				unauthorized(w)
				return
			}

			ctx := goSession.WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func isPublic(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
