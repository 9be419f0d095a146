package chi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Anonymous is the identity of every request when authentication is disabled.
const Anonymous = "anonymous"

type userKey struct{}

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// ContextWithUser stores the caller identity in the context.
func ContextWithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the caller identity, or Anonymous.
func UserFromContext(ctx context.Context) string {
	if u, ok := ctx.Value(userKey{}).(string); ok && u != "" {
		return u
	}
	return Anonymous
}

// BearerAuthMiddleware validates Bearer tokens against tokens (token -> user)
// and stores the matching user in the request context. If tokens is empty,
// authentication is disabled and every request runs as Anonymous.
func BearerAuthMiddleware(tokens map[string]string, logger *zap.Logger) func(http.Handler) http.Handler {
	users := make(map[string]string, len(tokens))
	for tok, user := range tokens {
		if tok != "" {
			users[tok] = user
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		if len(users) == 0 {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), Anonymous)))
			})
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				reject(w, r, logger, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				reject(w, r, logger, "authorization header must use Bearer scheme")
				return
			}

			user, ok := users[strings.TrimSpace(auth[len(bearerPrefix):])]
			if !ok {
				reject(w, r, logger, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

func reject(w http.ResponseWriter, r *http.Request, logger *zap.Logger, msg string) {
	logger.Warn("Unauthorized request",
		zap.String("path", r.URL.Path),
		zap.String("ip", r.RemoteAddr),
		zap.String("reason", msg),
	)
	writeError(w, http.StatusUnauthorized, CodeUnauthorized, msg)
}
