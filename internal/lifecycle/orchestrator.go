// Package lifecycle orquesta los cuatro componentes de hosting (zona DNS,
// vhost nginx, base Mongo del tenant y proceso pm2) para cada Domain.
//
// No hay transacción entre componentes: initialize y destroy chequean el
// estado real de cada recurso antes de actuar, así que re-ejecutarlos
// (o llamar a repair) retoma una operación que falló a la mitad.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/nshost/internal/authz"
	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/email"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/supervisor"
	"github.com/dropDatabas3/nshost/internal/hosting/tenantdb"
	"github.com/dropDatabas3/nshost/internal/hosting/versions"
	"github.com/dropDatabas3/nshost/internal/metrics"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

type ZoneRegistry interface {
	Create(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
}

type VhostRegistry interface {
	Create(ctx context.Context, name string, port int) error
	Delete(ctx context.Context, name string) error
	// Exists: vhost completo (archivo y symlink).
	Exists(ctx context.Context, name string) (bool, error)
	// Present: queda alguna de las partes.
	Present(ctx context.Context, name string) (bool, error)
}

type TenantDB interface {
	Exists(ctx context.Context, name string) bool
	Create(ctx context.Context, name, password string) error
	Delete(ctx context.Context, name string) error
	Stats(ctx context.Context, name string) (tenantdb.Stats, error)
}

type Supervisor interface {
	List(ctx context.Context) ([]supervisor.Process, error)
	Start(ctx context.Context, d *repository.Domain) error
	Stop(ctx context.Context, d *repository.Domain) error
}

type WelcomeSender interface {
	SendWelcome(ctx context.Context, d email.WelcomeData, opts email.SendOptions) error
}

type VersionCatalog interface {
	ByDirectory(ctx context.Context, dir string) (versions.Version, bool, error)
}

type Deps struct {
	Domains  repository.DomainRepository
	Users    repository.UserRepository
	Requests repository.RegistrationRepository

	Zone       ZoneRegistry
	Vhost      VhostRegistry
	DB         TenantDB
	Supervisor Supervisor
	Notifier   WelcomeSender
	// Versions es opcional; si está, Update/Create validan nsversion.
	Versions VersionCatalog

	// StartAllConcurrency limita el fan-out de startall (0 = sin límite).
	StartAllConcurrency int
}

type Orchestrator struct {
	domains  repository.DomainRepository
	users    repository.UserRepository
	requests repository.RegistrationRepository

	zone     ZoneRegistry
	vhost    VhostRegistry
	db       TenantDB
	sup      Supervisor
	notifier WelcomeSender
	versions VersionCatalog

	concurrency int
	locks       *keyedMutex
}

func New(d Deps) *Orchestrator {
	return &Orchestrator{
		domains:     d.Domains,
		users:       d.Users,
		requests:    d.Requests,
		zone:        d.Zone,
		vhost:       d.Vhost,
		db:          d.DB,
		sup:         d.Supervisor,
		notifier:    d.Notifier,
		versions:    d.Versions,
		concurrency: d.StartAllConcurrency,
		locks:       newKeyedMutex(),
	}
}

type Action string

const (
	ActionInitialize Action = "initialize"
	ActionStart      Action = "start"
	ActionStop       Action = "stop"
	ActionDestroy    Action = "destroy"
	ActionDelete     Action = "delete"
	ActionWelcome    Action = "welcome"
	ActionRepair     Action = "repair"
)

// ParseAction valida el nombre de acción recibido del transporte.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionInitialize, ActionStart, ActionStop, ActionDestroy, ActionDelete, ActionWelcome, ActionRepair:
		return a, nil
	}
	return "", errs.Validation("action", "", "unknown action %q", s)
}

// Do ejecuta action sobre el Domain id en nombre de actor.
func (o *Orchestrator) Do(ctx context.Context, id int64, action Action, actor authz.Actor) error {
	switch action {
	case ActionInitialize:
		return o.Initialize(ctx, id, actor)
	case ActionStart:
		return o.Start(ctx, id, actor)
	case ActionStop:
		return o.Stop(ctx, id, actor)
	case ActionDestroy:
		return o.Destroy(ctx, id, actor)
	case ActionDelete:
		return o.Delete(ctx, id, actor)
	case ActionWelcome:
		return o.Welcome(ctx, id, actor, email.SendOptions{})
	case ActionRepair:
		return o.Repair(ctx, id, actor)
	}
	return errs.Validation("action", "", "unknown action %q", action)
}

func (o *Orchestrator) Initialize(ctx context.Context, id int64, actor authz.Actor) error {
	return o.run(ctx, ActionInitialize, id, actor, o.initialize)
}

func (o *Orchestrator) Start(ctx context.Context, id int64, actor authz.Actor) error {
	return o.run(ctx, ActionStart, id, actor, o.start)
}

func (o *Orchestrator) Stop(ctx context.Context, id int64, actor authz.Actor) error {
	return o.run(ctx, ActionStop, id, actor, o.stop)
}

func (o *Orchestrator) Destroy(ctx context.Context, id int64, actor authz.Actor) error {
	return o.run(ctx, ActionDestroy, id, actor, o.destroy)
}

func (o *Orchestrator) Delete(ctx context.Context, id int64, actor authz.Actor) error {
	return o.run(ctx, ActionDelete, id, actor, o.deleteRecord)
}

// Welcome envía las credenciales al dueño. opts.ForceSend fuerza el envío en dev.
func (o *Orchestrator) Welcome(ctx context.Context, id int64, actor authz.Actor, opts email.SendOptions) error {
	return o.run(ctx, ActionWelcome, id, actor, func(ctx context.Context, d *repository.Domain) error {
		return o.welcome(ctx, d, opts)
	})
}

// Repair re-ejecuta la secuencia que corresponde al flag active:
// initialize si está activo, destroy si no.
func (o *Orchestrator) Repair(ctx context.Context, id int64, actor authz.Actor) error {
	return o.run(ctx, ActionRepair, id, actor, func(ctx context.Context, d *repository.Domain) error {
		if d.Active {
			return o.initialize(ctx, d)
		}
		return o.destroy(ctx, d)
	})
}

// run autentica, toma el lock del Domain, lo carga fresco y aplica fn.
func (o *Orchestrator) run(ctx context.Context, action Action, id int64, actor authz.Actor, fn func(context.Context, *repository.Domain) error) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveLifecycle(string(action), resultLabel(err), time.Since(start)) }()

	if !actor.Authenticated() {
		return errs.Unauthorized(string(action), "authentication required")
	}

	unlock := o.locks.Lock(id)
	defer unlock()

	d, err := o.load(ctx, string(action), id, actor)
	if err != nil {
		return err
	}

	log := logger.From(ctx).With(logger.DomainID(d.ID), logger.Subdomain(d.Domain), logger.Action(string(action)))
	ctx = logger.ToContext(ctx, log)

	if err := fn(ctx, d); err != nil {
		log.Warn("lifecycle operation failed", logger.Err(err))
		return err
	}
	log.Info("lifecycle operation completed", logger.DurationMs(time.Since(start)))
	return nil
}

// load devuelve NotFound tanto si no existe como si actor no lo puede ver.
func (o *Orchestrator) load(ctx context.Context, op string, id int64, actor authz.Actor) (*repository.Domain, error) {
	d, err := o.domains.Get(ctx, id)
	if repository.IsNotFound(err) {
		return nil, errs.NotFound(op, "domain %d not found", id)
	}
	if err != nil {
		return nil, errs.IO(op, "", "domain.load", err)
	}
	if !actor.CanManage(d) {
		return nil, errs.NotFound(op, "domain %d not found", id)
	}
	return d, nil
}

// processOf consulta el supervisor y busca el proceso del Domain.
func (o *Orchestrator) processOf(ctx context.Context, op string, d *repository.Domain) (supervisor.Process, bool, error) {
	procs, err := o.sup.List(ctx)
	if err != nil {
		return supervisor.Process{}, false, errs.Provisioning(op, d.Domain, "process.list", err)
	}
	metrics.ManagedProcesses.Set(float64(len(procs)))
	p, ok := supervisor.StatusOf(procs, d.Domain)
	return p, ok, nil
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if k := errs.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// StartResult es el resultado de un start dentro de startall.
type StartResult struct {
	ID     int64
	Domain string
	Err    error
}

func (r StartResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Domain, r.Err)
	}
	return r.Domain + ": ok"
}
