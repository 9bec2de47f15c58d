package lifecycle

import (
	"context"
	"errors"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/email"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/supervisor"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

var errDBStillPresent = errors.New("database still present after drop")

// initialize: base (si falta) → zona → vhost. Cada recurso se crea sólo si
// no existe. No arranca el proceso.
func (o *Orchestrator) initialize(ctx context.Context, d *repository.Domain) error {
	const op = "initialize"
	if !d.Active {
		return errs.Conflict(op, d.Domain, "domain is not active")
	}
	if err := ValidateSubdomain(op, d.Domain); err != nil {
		return err
	}
	log := logger.From(ctx)

	if !d.DBExists {
		if o.db.Exists(ctx, d.Domain) {
			log.Info("tenant database already present, adopting it")
		} else if err := o.db.Create(ctx, d.Domain, d.Domain); err != nil {
			return errs.Provisioning(op, d.Domain, "db.create", err)
		}
		if err := o.domains.SetDBExists(ctx, d.ID, true); err != nil {
			return errs.Provisioning(op, d.Domain, "db.persist", err)
		}
		d.DBExists = true
	}

	ok, err := o.zone.Exists(ctx, d.Domain)
	if err != nil {
		return errs.Provisioning(op, d.Domain, "zone.list", err)
	}
	if !ok {
		if err := o.zone.Create(ctx, d.Domain); err != nil {
			return errs.Provisioning(op, d.Domain, "zone.create", err)
		}
	}

	ok, err = o.vhost.Exists(ctx, d.Domain)
	if err != nil {
		return errs.Provisioning(op, d.Domain, "vhost.list", err)
	}
	if !ok {
		if err := o.vhost.Create(ctx, d.Domain, supervisor.Port(d.ID)); err != nil {
			return errs.Provisioning(op, d.Domain, "vhost.create", err)
		}
	}
	return nil
}

func (o *Orchestrator) start(ctx context.Context, d *repository.Domain) error {
	const op = "start"
	if !d.Active {
		return errs.Conflict(op, d.Domain, "domain is not active")
	}
	if _, running, err := o.processOf(ctx, op, d); err != nil {
		return err
	} else if running {
		return errs.Conflict(op, d.Domain, "domain is already running")
	}
	if err := o.sup.Start(ctx, d); err != nil {
		return errs.Provisioning(op, d.Domain, "process.start", err)
	}
	return nil
}

func (o *Orchestrator) stop(ctx context.Context, d *repository.Domain) error {
	const op = "stop"
	if _, running, err := o.processOf(ctx, op, d); err != nil {
		return err
	} else if !running {
		return errs.Conflict(op, d.Domain, "domain is not running")
	}
	if err := o.sup.Stop(ctx, d); err != nil {
		return errs.Provisioning(op, d.Domain, "process.stop", err)
	}
	return nil
}

// destroy: proceso → vhost → zona → base, cada paso condicionado a que el
// recurso exista. Dos destroy seguidos terminan en el mismo estado.
func (o *Orchestrator) destroy(ctx context.Context, d *repository.Domain) error {
	const op = "destroy"
	if d.Active {
		return errs.Conflict(op, d.Domain, "domain is active, deactivate it before destroy")
	}

	if _, running, err := o.processOf(ctx, op, d); err != nil {
		return err
	} else if running {
		if err := o.sup.Stop(ctx, d); err != nil {
			return errs.Provisioning(op, d.Domain, "process.stop", err)
		}
	}

	ok, err := o.vhost.Present(ctx, d.Domain)
	if err != nil {
		return errs.Provisioning(op, d.Domain, "vhost.list", err)
	}
	if ok {
		if err := o.vhost.Delete(ctx, d.Domain); err != nil {
			return errs.Provisioning(op, d.Domain, "vhost.delete", err)
		}
	}

	ok, err = o.zone.Exists(ctx, d.Domain)
	if err != nil {
		return errs.Provisioning(op, d.Domain, "zone.list", err)
	}
	if ok {
		if err := o.zone.Delete(ctx, d.Domain); err != nil {
			return errs.Provisioning(op, d.Domain, "zone.delete", err)
		}
	}

	if o.db.Exists(ctx, d.Domain) {
		if err := o.db.Delete(ctx, d.Domain); err != nil {
			return errs.Provisioning(op, d.Domain, "db.delete", err)
		}
		// Delete descarta errores; el estado real se re-chequea
		if o.db.Exists(ctx, d.Domain) {
			return errs.Provisioning(op, d.Domain, "db.delete", errDBStillPresent)
		}
	}
	if d.DBExists {
		if err := o.domains.SetDBExists(ctx, d.ID, false); err != nil {
			return errs.Provisioning(op, d.Domain, "db.persist", err)
		}
		d.DBExists = false
	}
	return nil
}

// deleteRecord borra el registro y lo que cuelga de él: environments, el
// usuario dueño si era su único Domain y los requests del subdominio.
func (o *Orchestrator) deleteRecord(ctx context.Context, d *repository.Domain) error {
	const op = "delete"
	if d.Active {
		return errs.Conflict(op, d.Domain, "domain is active")
	}
	if d.DBExists {
		return errs.Conflict(op, d.Domain, "database is still provisioned, destroy the domain first")
	}
	if err := o.domains.Delete(ctx, d.ID); err != nil {
		if repository.IsNotFound(err) {
			return errs.NotFound(op, "domain %d not found", d.ID)
		}
		return errs.IO(op, d.Domain, "record.delete", err)
	}

	if d.OwnerID != "" {
		n, err := o.domains.CountByOwner(ctx, d.OwnerID)
		if err != nil {
			return errs.IO(op, d.Domain, "cleanup.user", err)
		}
		if n == 0 {
			u, err := o.users.GetByID(ctx, d.OwnerID)
			switch {
			case repository.IsNotFound(err):
			case err != nil:
				return errs.IO(op, d.Domain, "cleanup.user", err)
			case !u.IsAdmin():
				if err := o.users.Delete(ctx, u.ID); err != nil && !repository.IsNotFound(err) {
					return errs.IO(op, d.Domain, "cleanup.user", err)
				}
				logger.From(ctx).Info("owner removed with last domain", logger.UserID(u.ID))
			}
		}
	}

	if err := o.requests.DeleteBySubdomain(ctx, d.Domain); err != nil {
		return errs.IO(op, d.Domain, "cleanup.requests", err)
	}
	return nil
}

func (o *Orchestrator) welcome(ctx context.Context, d *repository.Domain, opts email.SendOptions) error {
	const op = "welcome"
	noEmail := errs.Conflict(op, d.Domain, "domain owner has no email on file")
	if d.OwnerID == "" {
		return noEmail
	}
	u, err := o.users.GetByID(ctx, d.OwnerID)
	if repository.IsNotFound(err) {
		return noEmail
	}
	if err != nil {
		return errs.IO(op, d.Domain, "owner.load", err)
	}
	if u.Email == "" {
		return noEmail
	}

	err = o.notifier.SendWelcome(ctx, email.WelcomeData{
		To:        u.Email,
		Name:      u.Name,
		Subdomain: d.Domain,
		APISecret: d.APISecret,
	}, opts)
	if errors.Is(err, email.ErrNoRecipient) {
		return noEmail
	}
	if err != nil {
		return errs.Provisioning(op, d.Domain, "notify.welcome", err)
	}
	return nil
}
