// Package registration implementa el alta pública de tenants: validación de
// email por código, disponibilidad de subdominio, pedido pendiente y la
// decisión (aprobar/rechazar) del admin.
package registration

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/dropDatabas3/nshost/internal/authz"
	"github.com/dropDatabas3/nshost/internal/captcha"
	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/email"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/lifecycle"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// CodeTTL es la ventana de validez de un código de email.
const CodeTTL = 10 * time.Minute

var (
	ErrCaptchaFailed = errors.New("captcha verification failed")
	ErrInvalidCode   = errors.New("email validation code is invalid or expired")
)

// Domains es la parte del orquestador que usa el registro.
type Domains interface {
	SubdomainAvailable(ctx context.Context, sub string) (bool, error)
	CreateForRequest(ctx context.Context, actor authz.Actor, in lifecycle.CreateInput) (*repository.Domain, error)
}

type Notifier interface {
	SendValidationCode(ctx context.Context, to, code string, opts email.SendOptions) error
	SendRegistrationNotification(ctx context.Context, d email.RegistrationData, opts email.SendOptions) error
}

type Deps struct {
	Requests    repository.RegistrationRepository
	Validations repository.EmailValidationRepository
	// DomainRecords y Users se usan sólo para deshacer el alta si la decisión
	// pierde una carrera.
	DomainRecords repository.DomainRepository
	Users         repository.UserRepository
	Domains       Domains
	Captcha       captcha.Verifier
	Notifier      Notifier
	Now           func() time.Time
}

type Service struct {
	deps Deps
}

func New(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

func (s *Service) verifyCaptcha(ctx context.Context, op, token, ip string) error {
	if err := s.deps.Captcha.Verify(ctx, token, ip); err != nil {
		return &errs.Error{Kind: errs.KindUnauthorized, Op: op, Msg: "captcha verification failed", Err: ErrCaptchaFailed}
	}
	return nil
}

// newCode genera un código de 6 dígitos con crypto/rand.
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// InitiateEmailValidation guarda un código nuevo para addr y lo envía por email.
func (s *Service) InitiateEmailValidation(ctx context.Context, addr, captchaToken, remoteIP string) error {
	const op = "register.validate_email"
	addr = strings.TrimSpace(addr)
	if err := lifecycle.ValidateEmail(op, addr); err != nil {
		return err
	}
	if err := s.verifyCaptcha(ctx, op, captchaToken, remoteIP); err != nil {
		return err
	}
	code, err := newCode()
	if err != nil {
		return errs.IO(op, "", "code", err)
	}
	if err := s.deps.Validations.Put(ctx, repository.EmailValidation{Email: addr, Code: code, SentAt: s.deps.Now()}); err != nil {
		return errs.IO(op, "", "validation.store", err)
	}
	if err := s.deps.Notifier.SendValidationCode(ctx, addr, code, email.SendOptions{}); err != nil {
		return errs.Provisioning(op, "", "notify.validation", err)
	}
	logger.From(ctx).Info("email validation code sent", logger.Op(op))
	return nil
}

func (s *Service) codeValid(ctx context.Context, op, addr, code string) error {
	ok, err := s.deps.Validations.Match(ctx, addr, strings.TrimSpace(code), s.deps.Now().Add(-CodeTTL))
	if err != nil {
		return errs.IO(op, "", "validation.load", err)
	}
	if !ok {
		return &errs.Error{Kind: errs.KindUnauthorized, Op: op, Msg: "validation code is invalid or expired", Err: ErrInvalidCode}
	}
	return nil
}

// ValidateEmailCode confirma que code fue enviado a addr dentro de CodeTTL.
func (s *Service) ValidateEmailCode(ctx context.Context, addr, code, captchaToken, remoteIP string) error {
	const op = "register.validate_code"
	addr = strings.TrimSpace(addr)
	if err := lifecycle.ValidateEmail(op, addr); err != nil {
		return err
	}
	if !codeRe.MatchString(strings.TrimSpace(code)) {
		return errs.Validation(op, "", "validation code must be exactly 6 digits")
	}
	if err := s.verifyCaptcha(ctx, op, captchaToken, remoteIP); err != nil {
		return err
	}
	return s.codeValid(ctx, op, addr, code)
}

// ValidateSubdomain chequea sintaxis y que nadie lo tenga ni lo haya pedido.
func (s *Service) ValidateSubdomain(ctx context.Context, sub, captchaToken, remoteIP string) error {
	const op = "register.validate_subdomain"
	sub = strings.ToLower(strings.TrimSpace(sub))
	if err := lifecycle.ValidateSubdomain(op, sub); err != nil {
		return err
	}
	if err := s.verifyCaptcha(ctx, op, captchaToken, remoteIP); err != nil {
		return err
	}
	return s.available(ctx, op, sub)
}

func (s *Service) available(ctx context.Context, op, sub string) error {
	ok, err := s.deps.Domains.SubdomainAvailable(ctx, sub)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Conflict(op, sub, "subdomain is not available")
	}
	return nil
}

// SubmitRequest guarda un pedido pending y avisa a los admins. El código de
// email queda consumido.
func (s *Service) SubmitRequest(ctx context.Context, in SubmitInput) (*repository.RegistrationRequest, error) {
	const op = "register.submit"
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.verifyCaptcha(ctx, op, in.CaptchaToken, in.RemoteIP); err != nil {
		return nil, err
	}
	if err := s.codeValid(ctx, op, in.OwnerEmail, in.Code); err != nil {
		return nil, err
	}
	if err := s.available(ctx, op, in.Subdomain); err != nil {
		return nil, err
	}

	q, err := s.deps.Requests.Create(ctx, repository.CreateRequestInput{
		Subdomain:      in.Subdomain,
		OwnerName:      in.OwnerName,
		OwnerEmail:     in.OwnerEmail,
		DataSource:     in.DataSource,
		Title:          in.Title,
		APISecret:      in.APISecret,
		DexcomUsername: in.DexcomUsername,
		DexcomPassword: in.DexcomPassword,
		DexcomServer:   in.DexcomServer,
	})
	if repository.IsConflict(err) {
		return nil, errs.Conflict(op, in.Subdomain, "subdomain is not available")
	}
	if err != nil {
		return nil, errs.IO(op, in.Subdomain, "request.create", err)
	}

	log := logger.From(ctx).With(logger.Op(op), logger.Subdomain(q.Subdomain), logger.Int("request_id", int(q.ID)))
	if err := s.deps.Validations.DeleteByEmail(ctx, in.OwnerEmail); err != nil {
		log.Warn("validation cleanup failed", logger.Err(err))
	}
	err = s.deps.Notifier.SendRegistrationNotification(ctx, email.RegistrationData{
		RequestID:  q.ID,
		Subdomain:  q.Subdomain,
		OwnerName:  q.OwnerName,
		OwnerEmail: q.OwnerEmail,
		DataSource: q.DataSource,
	}, email.SendOptions{})
	if err != nil {
		// el pedido ya está guardado; el admin lo ve en el listado igual
		log.Warn("admin notification failed", logger.Err(err))
	}
	log.Info("registration request submitted")
	return q, nil
}

func requireAdmin(op string, actor authz.Actor) error {
	if !actor.Admin {
		return errs.Unauthorized(op, "admin role required")
	}
	return nil
}

// ListRequests filtra por status ("" = todos).
func (s *Service) ListRequests(ctx context.Context, actor authz.Actor, status repository.RequestStatus) ([]repository.RegistrationRequest, error) {
	const op = "register.list"
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}
	switch status {
	case "", repository.RequestPending, repository.RequestApproved, repository.RequestRejected:
	default:
		return nil, errs.Validation(op, "", "unknown status %q", status)
	}
	out, err := s.deps.Requests.List(ctx, status)
	if err != nil {
		return nil, errs.IO(op, "", "request.list", err)
	}
	return out, nil
}

func (s *Service) GetRequest(ctx context.Context, actor authz.Actor, id int64) (*repository.RegistrationRequest, error) {
	const op = "register.get"
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}
	return s.load(ctx, op, id)
}

func (s *Service) load(ctx context.Context, op string, id int64) (*repository.RegistrationRequest, error) {
	q, err := s.deps.Requests.Get(ctx, id)
	if repository.IsNotFound(err) {
		return nil, errs.NotFound(op, "request %d not found", id)
	}
	if err != nil {
		return nil, errs.IO(op, "", "request.load", err)
	}
	return q, nil
}

func actorName(a authz.Actor) string {
	if a.Email != "" {
		return a.Email
	}
	return a.UserID
}

// Approve crea el Domain del pedido y lo marca approved.
func (s *Service) Approve(ctx context.Context, actor authz.Actor, id int64) (*repository.Domain, error) {
	const op = "register.approve"
	if err := requireAdmin(op, actor); err != nil {
		return nil, err
	}
	q, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if q.Status != repository.RequestPending {
		return nil, errs.Conflict(op, q.Subdomain, "request already %s", q.Status)
	}

	_, lerr := s.deps.Users.GetByEmail(ctx, q.OwnerEmail)
	newOwner := repository.IsNotFound(lerr)

	d, err := s.deps.Domains.CreateForRequest(ctx, actor, DomainFor(q))
	if err != nil {
		return nil, err
	}

	err = s.deps.Requests.Decide(ctx, id, repository.RequestApproved, actorName(actor), s.deps.Now())
	if err != nil {
		// otro admin decidió primero: el Domain recién creado sobra
		if derr := s.deps.DomainRecords.Delete(ctx, d.ID); derr != nil {
			logger.From(ctx).Error("approve rollback failed", logger.DomainID(d.ID), logger.Err(derr))
		} else if newOwner {
			s.dropOrphanOwner(ctx, d.OwnerID)
		}
		if repository.IsConflict(err) {
			return nil, errs.Conflict(op, q.Subdomain, "request already decided")
		}
		return nil, errs.IO(op, q.Subdomain, "request.decide", err)
	}
	logger.From(ctx).Info("registration approved",
		logger.Op(op), logger.Subdomain(q.Subdomain), logger.DomainID(d.ID), logger.UserID(actor.UserID))
	return d, nil
}

// dropOrphanOwner borra el User creado por un Approve que se deshizo, si no
// quedó dueño de ningún Domain. Los errores sólo se loguean.
func (s *Service) dropOrphanOwner(ctx context.Context, ownerID string) {
	log := logger.From(ctx)
	n, err := s.deps.DomainRecords.CountByOwner(ctx, ownerID)
	if err != nil {
		log.Error("approve rollback: count owner domains failed", logger.UserID(ownerID), logger.Err(err))
		return
	}
	if n > 0 {
		return
	}
	u, err := s.deps.Users.GetByID(ctx, ownerID)
	if err != nil {
		if !repository.IsNotFound(err) {
			log.Error("approve rollback: load owner failed", logger.UserID(ownerID), logger.Err(err))
		}
		return
	}
	if u.IsAdmin() {
		return
	}
	if err := s.deps.Users.Delete(ctx, u.ID); err != nil && !repository.IsNotFound(err) {
		log.Error("approve rollback: delete owner failed", logger.UserID(ownerID), logger.Err(err))
		return
	}
	log.Info("approve rollback: owner removed", logger.UserID(ownerID))
}

// Reject marca el pedido rejected; es terminal.
func (s *Service) Reject(ctx context.Context, actor authz.Actor, id int64) error {
	const op = "register.reject"
	if err := requireAdmin(op, actor); err != nil {
		return err
	}
	err := s.deps.Requests.Decide(ctx, id, repository.RequestRejected, actorName(actor), s.deps.Now())
	switch {
	case repository.IsNotFound(err):
		return errs.NotFound(op, "request %d not found", id)
	case repository.IsConflict(err):
		return errs.Conflict(op, "", "request already decided")
	case err != nil:
		return errs.IO(op, "", "request.decide", err)
	}
	logger.From(ctx).Info("registration rejected", logger.Op(op), logger.Int("request_id", int(id)), logger.UserID(actor.UserID))
	return nil
}
