// Package register expone el alta pública y la revisión de pedidos por admins.
package register

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/nshost/internal/authz"
	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/http/dto"
	httperrors "github.com/dropDatabas3/nshost/internal/http/errors"
	"github.com/dropDatabas3/nshost/internal/http/helpers"
	"github.com/dropDatabas3/nshost/internal/registration"
)

type Service interface {
	InitiateEmailValidation(ctx context.Context, addr, captchaToken, remoteIP string) error
	ValidateEmailCode(ctx context.Context, addr, code, captchaToken, remoteIP string) error
	ValidateSubdomain(ctx context.Context, sub, captchaToken, remoteIP string) error
	SubmitRequest(ctx context.Context, in registration.SubmitInput) (*repository.RegistrationRequest, error)
	ListRequests(ctx context.Context, actor authz.Actor, status repository.RequestStatus) ([]repository.RegistrationRequest, error)
	GetRequest(ctx context.Context, actor authz.Actor, id int64) (*repository.RegistrationRequest, error)
	Approve(ctx context.Context, actor authz.Actor, id int64) (*repository.Domain, error)
	Reject(ctx context.Context, actor authz.Actor, id int64) error
}

type Controller struct {
	svc Service
}

func NewController(svc Service) *Controller {
	return &Controller{svc: svc}
}

// ValidateEmail maneja POST /api/register/validate-email: envía el código.
func (c *Controller) ValidateEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidateEmailRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.svc.InitiateEmailValidation(r.Context(), req.Email, req.CaptchaToken, helpers.ClientIP(r)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

// ValidateCode maneja POST /api/register/validate-verification-code
func (c *Controller) ValidateCode(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidateCodeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.svc.ValidateEmailCode(r.Context(), req.Email, req.Code, req.CaptchaToken, helpers.ClientIP(r)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ValidResponse{Valid: true})
}

// ValidateSubdomain maneja POST /api/register/validate-subdomain
func (c *Controller) ValidateSubdomain(w http.ResponseWriter, r *http.Request) {
	var req dto.ValidateSubdomainRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if err := c.svc.ValidateSubdomain(r.Context(), req.Subdomain, req.CaptchaToken, helpers.ClientIP(r)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.ValidResponse{Valid: true})
}

// Submit maneja POST /api/register
func (c *Controller) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	q, err := c.svc.SubmitRequest(r.Context(), req.ToInput(helpers.ClientIP(r)))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, dto.FromRequest(q))
}

// List maneja GET /api/register/requests?status=pending
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	status := repository.RequestStatus(r.URL.Query().Get("status"))
	qs, err := c.svc.ListRequests(r.Context(), authz.FromContext(r.Context()), status)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromRequests(qs))
}

// Get maneja GET /api/register/{id}
func (c *Controller) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathID(w, r, "id")
	if !ok {
		return
	}
	q, err := c.svc.GetRequest(r.Context(), authz.FromContext(r.Context()), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromRequest(q))
}

// Approve maneja POST /api/register/{id}; responde el Domain creado.
func (c *Controller) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathID(w, r, "id")
	if !ok {
		return
	}
	d, err := c.svc.Approve(r.Context(), authz.FromContext(r.Context()), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, dto.FromDomain(d))
}

// Reject maneja DELETE /api/register/{id}
func (c *Controller) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := helpers.PathID(w, r, "id")
	if !ok {
		return
	}
	if err := c.svc.Reject(r.Context(), authz.FromContext(r.Context()), id); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]string{"status": string(repository.RequestRejected)})
}
