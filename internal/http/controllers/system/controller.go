// Package system agrupa health, versions y el email de prueba.
package system

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dropDatabas3/nshost/internal/email"
	"github.com/dropDatabas3/nshost/internal/hosting/versions"
	"github.com/dropDatabas3/nshost/internal/http/dto"
	httperrors "github.com/dropDatabas3/nshost/internal/http/errors"
	"github.com/dropDatabas3/nshost/internal/http/helpers"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// Pinger es cualquier dependencia que puede reportar salud (store, redis).
type Pinger interface {
	Ping(ctx context.Context) error
}

type VersionLister interface {
	List(ctx context.Context) ([]versions.Version, error)
}

type TestMailer interface {
	SendTest(ctx context.Context, kind, to string, opts email.SendOptions) error
}

type Deps struct {
	// Checks se consultan en /healthz; la clave es el nombre del componente.
	Checks   map[string]Pinger
	Versions VersionLister
	Mailer   TestMailer
	Version  string
}

type Controller struct {
	deps Deps
}

func NewController(deps Deps) *Controller {
	return &Controller{deps: deps}
}

type healthResponse struct {
	Status     string            `json:"status"`
	Version    string            `json:"version,omitempty"`
	Components map[string]string `json:"components,omitempty"`
}

// Healthz maneja GET /healthz. Cualquier componente caído da 503.
func (c *Controller) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: c.deps.Version}
	if len(c.deps.Checks) > 0 {
		resp.Components = make(map[string]string, len(c.deps.Checks))
	}
	var down []string
	for name, p := range c.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			down = append(down, name)
			logger.From(ctx).Warn("health check failed", logger.Component(name), logger.Err(err))
			continue
		}
		resp.Components[name] = "up"
	}
	if len(down) > 0 {
		sort.Strings(down)
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithDetail("down: "+strings.Join(down, ", ")))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// Versions maneja GET /api/versions
func (c *Controller) Versions(w http.ResponseWriter, r *http.Request) {
	vs, err := c.deps.Versions.List(r.Context())
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if vs == nil {
		vs = []versions.Version{}
	}
	helpers.WriteJSON(w, http.StatusOK, vs)
}

// TestEmail maneja POST /api/test-email (sólo se monta en dev).
func (c *Controller) TestEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.TestEmailRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	switch req.Type {
	case "", email.TestPlain, email.TestWelcome, email.TestValidation, email.TestRegistration:
	default:
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("unknown email type "+req.Type))
		return
	}
	err := c.deps.Mailer.SendTest(r.Context(), req.Type, req.To, email.SendOptions{ForceSend: req.Force})
	if errors.Is(err, email.ErrNoRecipient) {
		httperrors.WriteError(w, httperrors.ErrValidation.WithDetail("a valid 'to' address is required"))
		return
	}
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternalServerError.WithCause(err))
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"sent": true, "type": req.Type, "to": req.To})
}
