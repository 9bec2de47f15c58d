// Package router arma el árbol de rutas chi del API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	domainsctrl "github.com/dropDatabas3/nshost/internal/http/controllers/domains"
	registerctrl "github.com/dropDatabas3/nshost/internal/http/controllers/register"
	systemctrl "github.com/dropDatabas3/nshost/internal/http/controllers/system"
	httperrors "github.com/dropDatabas3/nshost/internal/http/errors"
	mw "github.com/dropDatabas3/nshost/internal/http/middlewares"
)

type Deps struct {
	Domains  *domainsctrl.Controller
	Register *registerctrl.Controller
	System   *systemctrl.Controller

	Auth        mw.TokenParser
	RateLimiter mw.RateLimitConfig
	CORSOrigins []string
	// Metrics es el handler de /metrics; nil lo deshabilita.
	Metrics http.Handler
	// Dev monta /api/test-email.
	Dev bool
}

// New devuelve el handler raíz con la cadena base aplicada.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithLogging(),
		mw.WithMetrics(),
		mw.WithCORS(d.CORSOrigins),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", d.System.Healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// público, con rate limit
		r.Group(func(r chi.Router) {
			r.Use(mw.WithRateLimit(d.RateLimiter))
			r.Post("/register", d.Register.Submit)
			r.Post("/register/validate-email", d.Register.ValidateEmail)
			r.Post("/register/validate-verification-code", d.Register.ValidateCode)
			r.Post("/register/validate-subdomain", d.Register.ValidateSubdomain)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAuth(d.Auth))

			r.Get("/versions", d.System.Versions)

			r.Route("/domains", func(r chi.Router) {
				r.Get("/", d.Domains.List)
				r.With(mw.RequireAdmin()).Post("/", d.Domains.Create)
				r.With(mw.RequireAdmin()).Post("/startall", d.Domains.StartAll)
				r.Get("/by-subdomain/{subdomain}", d.Domains.BySubdomain)
				r.Get("/{id}", d.Domains.Get)
				r.Put("/{id}", d.Domains.Update)
				r.Post("/{id}/{action}", d.Domains.Action)
			})

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireAdmin())
				r.Get("/register/requests", d.Register.List)
				r.Get("/register/{id}", d.Register.Get)
				r.Post("/register/{id}", d.Register.Approve)
				r.Delete("/register/{id}", d.Register.Reject)
				if d.Dev {
					r.Post("/test-email", d.System.TestEmail)
				}
			})
		})
	})
	return r
}
