// Package domains expone el CRUD y las acciones de lifecycle sobre Domains.
package domains

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/nshost/internal/authz"
	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/email"
	"github.com/dropDatabas3/nshost/internal/http/dto"
	httperrors "github.com/dropDatabas3/nshost/internal/http/errors"
	"github.com/dropDatabas3/nshost/internal/http/helpers"
	"github.com/dropDatabas3/nshost/internal/lifecycle"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// Service es lo que el controller necesita del orquestador.
type Service interface {
	List(ctx context.Context, actor authz.Actor) ([]lifecycle.DomainView, error)
	Get(ctx context.Context, id int64, actor authz.Actor) (*lifecycle.DomainDetail, error)
	GetBySubdomain(ctx context.Context, sub string, actor authz.Actor) (int64, error)
	Create(ctx context.Context, actor authz.Actor, in lifecycle.CreateInput) (*repository.Domain, error)
	Update(ctx context.Context, id int64, actor authz.Actor, in repository.UpdateDomainInput) (*repository.Domain, error)
	Do(ctx context.Context, id int64, action lifecycle.Action, actor authz.Actor) error
	Welcome(ctx context.Context, id int64, actor authz.Actor, opts email.SendOptions) error
	StartAll(ctx context.Context, actor authz.Actor) ([]lifecycle.StartResult, error)
}

type Controller struct {
	svc Service
}

func NewController(svc Service) *Controller {
	return &Controller{svc: svc}
}

// List maneja GET /api/domains
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	views, err := c.svc.List(r.Context(), authz.FromContext(r.Context()))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	out := make([]dto.Domain, 0, len(views))
	for _, v := range views {
		out = append(out, dto.FromView(v))
	}
	helpers.WriteJSON(w, http.StatusOK, out)
}

// Create maneja POST /api/domains
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateDomainRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	d, err := c.svc.Create(r.Context(), authz.FromContext(r.Context()), req.ToInput())
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	logger.From(r.Context()).Info("domain created",
		logger.Layer("controller"), logger.Op("DomainsController.Create"),
		logger.DomainID(d.ID), logger.Subdomain(d.Domain))
	w.Header().Set("Location", fmt.Sprintf("/api/domains/%d", d.ID))
	helpers.WriteJSON(w, http.StatusCreated, dto.FromDomain(d))
}

// Get maneja GET /api/domains/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathID(w, r, "id")
	if !ok {
		return
	}
	d, err := c.svc.Get(r.Context(), id, authz.FromContext(r.Context()))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromDetail(d))
}

// BySubdomain maneja GET /api/domains/by-subdomain/{subdomain} y redirige al detalle.
func (c *Controller) BySubdomain(w http.ResponseWriter, r *http.Request) {
	sub := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "subdomain")))
	id, err := c.svc.GetBySubdomain(r.Context(), sub, authz.FromContext(r.Context()))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/domains/%d", id))
	helpers.WriteJSON(w, http.StatusFound, map[string]int64{"id": id})
}

// Update maneja PUT /api/domains/{id}
func (c *Controller) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.UpdateDomainRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	d, err := c.svc.Update(r.Context(), id, authz.FromContext(r.Context()), req.ToInput())
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromDomain(d))
}

// Action maneja POST /api/domains/{id}/{action}. welcome acepta ?force=1 para
// enviar aunque el servicio esté en dev.
func (c *Controller) Action(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathID(w, r, "id")
	if !ok {
		return
	}
	action, err := lifecycle.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound.WithCause(err))
		return
	}
	actor := authz.FromContext(r.Context())

	if action == lifecycle.ActionWelcome {
		force := r.URL.Query().Get("force")
		err = c.svc.Welcome(r.Context(), id, actor, email.SendOptions{ForceSend: force == "1" || force == "true"})
	} else {
		err = c.svc.Do(r.Context(), id, action, actor)
	}
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ActionResponse{ID: id, Action: string(action), OK: true})
}

// StartAll maneja POST /api/domains/startall. Devuelve 200 aunque algún start
// falle; el detalle va por Domain.
func (c *Controller) StartAll(w http.ResponseWriter, r *http.Request) {
	results, err := c.svc.StartAll(r.Context(), authz.FromContext(r.Context()))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromStartResults(results))
}
