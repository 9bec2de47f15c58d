package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/nshost/internal/authz"
	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/supervisor"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

const (
	StatusNotRunning = "not running"
	// StatusUnknown se usa cuando pm2 no respondió al listar.
	StatusUnknown = "unknown"
)

// DomainView es un Domain con su estado derivado del supervisor.
type DomainView struct {
	repository.Domain
	Status  string
	Process *supervisor.Process
}

// DomainDetail agrega dueño y estado de la base al DomainView.
type DomainDetail struct {
	DomainView
	Owner         *repository.User
	DBInitialized bool
	DBSize        int64
	LastEntry     *time.Time
}

func deriveStatus(procs []supervisor.Process, sub string) (string, *supervisor.Process) {
	p, ok := supervisor.StatusOf(procs, sub)
	if !ok {
		return StatusNotRunning, nil
	}
	return p.Status, &p
}

// snapshot lista procesos una vez; si pm2 falla el status queda en unknown.
func (o *Orchestrator) snapshot(ctx context.Context) ([]supervisor.Process, bool) {
	procs, err := o.sup.List(ctx)
	if err != nil {
		logger.From(ctx).Warn("process list failed, status unknown", logger.Err(err))
		return nil, false
	}
	return procs, true
}

func (o *Orchestrator) view(d repository.Domain, procs []supervisor.Process, ok bool) DomainView {
	v := DomainView{Domain: d, Status: StatusUnknown}
	if ok {
		v.Status, v.Process = deriveStatus(procs, d.Domain)
	}
	return v
}

// List: admins ven todos los Domains, el resto sólo los propios.
func (o *Orchestrator) List(ctx context.Context, actor authz.Actor) ([]DomainView, error) {
	const op = "list"
	if !actor.Authenticated() {
		return nil, errs.Unauthorized(op, "authentication required")
	}
	var (
		ds  []repository.Domain
		err error
	)
	if actor.Admin {
		ds, err = o.domains.List(ctx)
	} else {
		ds, err = o.domains.ListByOwner(ctx, actor.UserID)
	}
	if err != nil {
		return nil, errs.IO(op, "", "domain.list", err)
	}
	procs, ok := o.snapshot(ctx)
	out := make([]DomainView, 0, len(ds))
	for _, d := range ds {
		out = append(out, o.view(d, procs, ok))
	}
	return out, nil
}

// Get devuelve el detalle del Domain. Los datos de la base se consultan en vivo.
func (o *Orchestrator) Get(ctx context.Context, id int64, actor authz.Actor) (*DomainDetail, error) {
	const op = "get"
	if !actor.Authenticated() {
		return nil, errs.Unauthorized(op, "authentication required")
	}
	d, err := o.load(ctx, op, id, actor)
	if err != nil {
		return nil, err
	}
	procs, ok := o.snapshot(ctx)
	det := &DomainDetail{DomainView: o.view(*d, procs, ok)}

	if d.OwnerID != "" {
		u, err := o.users.GetByID(ctx, d.OwnerID)
		switch {
		case err == nil:
			det.Owner = u
		case !repository.IsNotFound(err):
			return nil, errs.IO(op, d.Domain, "owner.load", err)
		}
	}

	det.DBInitialized = o.db.Exists(ctx, d.Domain)
	if det.DBInitialized {
		st, err := o.db.Stats(ctx, d.Domain)
		if err != nil {
			logger.From(ctx).Warn("db stats failed", logger.Subdomain(d.Domain), logger.Err(err))
		} else {
			det.DBSize = st.SizeBytes
			det.LastEntry = st.LastEntry
		}
	}
	return det, nil
}

// GetBySubdomain resuelve el id del Domain con las mismas reglas de visibilidad.
func (o *Orchestrator) GetBySubdomain(ctx context.Context, sub string, actor authz.Actor) (int64, error) {
	const op = "get_by_subdomain"
	if !actor.Authenticated() {
		return 0, errs.Unauthorized(op, "authentication required")
	}
	d, err := o.domains.GetBySubdomain(ctx, strings.ToLower(strings.TrimSpace(sub)))
	if repository.IsNotFound(err) {
		return 0, errs.NotFound(op, "domain %q not found", sub)
	}
	if err != nil {
		return 0, errs.IO(op, sub, "domain.load", err)
	}
	if !actor.CanManage(d) {
		return 0, errs.NotFound(op, "domain %q not found", sub)
	}
	return d.ID, nil
}

// CreateInput es el alta directa de un Domain por un admin.
type CreateInput struct {
	Domain         string
	Title          string
	APISecret      string
	Enable         string
	ShowPlugins    string
	NSVersion      string
	BridgeServer   string
	BridgeUsername string
	BridgePassword string
	Active         bool
	OwnerEmail     string
	OwnerName      string
	Environments   []repository.Environment

	// allowPending deja crear aunque exista un request pending con el mismo
	// subdominio; lo usa la aprobación de ese mismo request.
	allowPending bool
}

// Create valida, resuelve el dueño por email (lo crea si no existe) y guarda el Domain.
func (o *Orchestrator) Create(ctx context.Context, actor authz.Actor, in CreateInput) (*repository.Domain, error) {
	const op = "create"
	if !actor.Admin {
		return nil, errs.Unauthorized(op, "admin role required")
	}
	in.Domain = strings.ToLower(strings.TrimSpace(in.Domain))
	in.OwnerEmail = strings.TrimSpace(in.OwnerEmail)
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = DefaultTitle
	}

	if err := ValidateSubdomain(op, in.Domain); err != nil {
		return nil, err
	}
	if err := ValidateEmail(op, in.OwnerEmail); err != nil {
		return nil, err
	}
	if err := ValidateOwnerName(op, in.OwnerName); err != nil {
		return nil, err
	}
	if err := ValidateTitle(op, in.Domain, in.Title); err != nil {
		return nil, err
	}
	if err := ValidateAPISecret(op, in.Domain, in.APISecret); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Enable) == "" || strings.TrimSpace(in.ShowPlugins) == "" {
		return nil, errs.Validation(op, in.Domain, "enable and showPlugins are required")
	}
	if err := o.checkVersion(ctx, op, in.Domain, in.NSVersion); err != nil {
		return nil, err
	}
	envs, err := NormalizeEnvironments(op, in.Domain, in.Environments)
	if err != nil {
		return nil, err
	}

	if err := o.ensureAvailable(ctx, op, in.Domain, in.allowPending); err != nil {
		return nil, err
	}
	owner, err := o.ownerFor(ctx, op, in.OwnerEmail, in.OwnerName)
	if err != nil {
		return nil, err
	}

	d, err := o.domains.Create(ctx, repository.CreateDomainInput{
		Domain:         in.Domain,
		Title:          in.Title,
		APISecret:      in.APISecret,
		Enable:         strings.Join(strings.Fields(in.Enable), " "),
		ShowPlugins:    strings.Join(strings.Fields(in.ShowPlugins), " "),
		NSVersion:      in.NSVersion,
		BridgeServer:   in.BridgeServer,
		BridgeUsername: in.BridgeUsername,
		BridgePassword: in.BridgePassword,
		Active:         in.Active,
		OwnerID:        owner.ID,
		Environments:   envs,
	})
	if repository.IsConflict(err) {
		return nil, errs.Conflict(op, in.Domain, "subdomain already taken")
	}
	if err != nil {
		return nil, errs.IO(op, in.Domain, "record.create", err)
	}
	logger.From(ctx).Info("domain created", logger.DomainID(d.ID), logger.Subdomain(d.Domain), logger.UserID(owner.ID))
	return d, nil
}

// CreateForRequest es Create para la aprobación de un request: ignora el
// request pending que reserva el mismo subdominio.
func (o *Orchestrator) CreateForRequest(ctx context.Context, actor authz.Actor, in CreateInput) (*repository.Domain, error) {
	in.allowPending = true
	return o.Create(ctx, actor, in)
}

// SubdomainAvailable reporta si sub no está tomado por un Domain ni por un request pending.
func (o *Orchestrator) SubdomainAvailable(ctx context.Context, sub string) (bool, error) {
	err := o.ensureAvailable(ctx, "subdomain_available", sub, false)
	if errs.Is(err, errs.KindConflict) {
		return false, nil
	}
	return err == nil, err
}

func (o *Orchestrator) ensureAvailable(ctx context.Context, op, sub string, allowPending bool) error {
	_, err := o.domains.GetBySubdomain(ctx, sub)
	if err == nil {
		return errs.Conflict(op, sub, "subdomain already taken")
	}
	if !repository.IsNotFound(err) {
		return errs.IO(op, sub, "domain.load", err)
	}
	if allowPending {
		return nil
	}
	pending, err := o.requests.PendingSubdomainExists(ctx, sub)
	if err != nil {
		return errs.IO(op, sub, "request.load", err)
	}
	if pending {
		return errs.Conflict(op, sub, "subdomain already requested")
	}
	return nil
}

// ownerFor devuelve el User con ese email o lo crea como RoleUser.
func (o *Orchestrator) ownerFor(ctx context.Context, op, addr, name string) (*repository.User, error) {
	u, err := o.users.GetByEmail(ctx, addr)
	if err == nil {
		return u, nil
	}
	if !repository.IsNotFound(err) {
		return nil, errs.IO(op, "", "owner.load", err)
	}
	u, err = o.users.Create(ctx, repository.CreateUserInput{Name: name, Email: addr, Role: repository.RoleUser})
	if repository.IsConflict(err) {
		// otro request lo creó en paralelo
		return o.users.GetByEmail(ctx, addr)
	}
	if err != nil {
		return nil, errs.IO(op, "", "owner.create", err)
	}
	return u, nil
}

func (o *Orchestrator) checkVersion(ctx context.Context, op, sub, dir string) error {
	if dir == "" || o.versions == nil {
		return nil
	}
	_, ok, err := o.versions.ByDirectory(ctx, dir)
	if err != nil {
		return errs.IO(op, sub, "versions.list", err)
	}
	if !ok {
		return errs.Validation(op, sub, "unknown nightscout version %q", dir)
	}
	return nil
}

// Update aplica un patch parcial. active y owner sólo los cambia un admin.
// Desactivar un Domain con proceso vivo lo detiene para no dejar active y
// proceso divergiendo.
func (o *Orchestrator) Update(ctx context.Context, id int64, actor authz.Actor, in repository.UpdateDomainInput) (*repository.Domain, error) {
	const op = "update"
	if !actor.Authenticated() {
		return nil, errs.Unauthorized(op, "authentication required")
	}
	if !actor.Admin && (in.Active != nil || in.OwnerID != nil) {
		return nil, errs.Unauthorized(op, "admin role required to change active or owner")
	}

	unlock := o.locks.Lock(id)
	defer unlock()

	d, err := o.load(ctx, op, id, actor)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			t = DefaultTitle
		}
		if err := ValidateTitle(op, d.Domain, t); err != nil {
			return nil, err
		}
		in.Title = &t
	}
	if in.APISecret != nil {
		if err := ValidateAPISecret(op, d.Domain, *in.APISecret); err != nil {
			return nil, err
		}
	}
	if in.NSVersion != nil {
		if err := o.checkVersion(ctx, op, d.Domain, *in.NSVersion); err != nil {
			return nil, err
		}
	}
	if in.Environments != nil {
		envs, err := NormalizeEnvironments(op, d.Domain, *in.Environments)
		if err != nil {
			return nil, err
		}
		in.Environments = &envs
	}
	if in.OwnerID != nil && *in.OwnerID != "" {
		if _, err := o.users.GetByID(ctx, *in.OwnerID); repository.IsNotFound(err) {
			return nil, errs.Validation(op, d.Domain, "owner %q does not exist", *in.OwnerID)
		} else if err != nil {
			return nil, errs.IO(op, d.Domain, "owner.load", err)
		}
	}

	deactivating := in.Active != nil && !*in.Active && d.Active
	if deactivating {
		procs, err := o.sup.List(ctx)
		if err != nil {
			return nil, errs.Provisioning(op, d.Domain, "process.list", err)
		}
		if _, running := supervisor.StatusOf(procs, d.Domain); running {
			if err := o.sup.Stop(ctx, d); err != nil {
				return nil, errs.Provisioning(op, d.Domain, "process.stop", err)
			}
			logger.From(ctx).Info("process stopped on deactivation", logger.DomainID(d.ID), logger.Subdomain(d.Domain))
		}
	}

	out, err := o.domains.Update(ctx, id, in)
	if repository.IsNotFound(err) {
		return nil, errs.NotFound(op, "domain %d not found", id)
	}
	if err != nil {
		return nil, errs.IO(op, d.Domain, "record.update", err)
	}
	return out, nil
}
