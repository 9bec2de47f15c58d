package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/nshost/internal/authz"
	httperrors "github.com/dropDatabas3/nshost/internal/http/errors"
	"github.com/dropDatabas3/nshost/internal/jwt"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// TokenParser valida un bearer token.
type TokenParser interface {
	Parse(token string) (*jwt.AccessClaims, error)
}

// RequireAuth valida Authorization: Bearer <JWT> y deja el authz.Actor en el
// contexto. Sin token o con token inválido responde 401.
func RequireAuth(parser TokenParser) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="nshost"`)
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			claims, err := parser.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="nshost", error="invalid_token"`)
				httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithCause(err))
				return
			}
			actor := claims.Actor()

			ctx := authz.ToContext(r.Context(), actor)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(actor.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin corta con 403 si el actor no es admin. Va después de RequireAuth.
func RequireAdmin() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a := authz.FromContext(r.Context())
			if !a.Authenticated() {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !a.Admin {
				httperrors.WriteError(w, httperrors.ErrForbidden.WithDetail("admin required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
