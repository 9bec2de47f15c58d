package lifecycle

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/email"
	"github.com/dropDatabas3/nshost/internal/hosting/supervisor"
	"github.com/dropDatabas3/nshost/internal/hosting/tenantdb"
	"github.com/dropDatabas3/nshost/internal/hosting/versions"
	"github.com/dropDatabas3/nshost/internal/store/memory"
)

// calls registra la secuencia de side effects de todos los fakes.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(s string) {
	c.mu.Lock()
	c.log = append(c.log, s)
	c.mu.Unlock()
}

func (c *calls) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

func (c *calls) reset() {
	c.mu.Lock()
	c.log = nil
	c.mu.Unlock()
}

type fakeZone struct {
	c       *calls
	mu      sync.Mutex
	names   map[string]bool
	failOn  string
	failErr error
}

func (z *fakeZone) Create(_ context.Context, name string) error {
	z.c.add("zone.create " + name)
	if z.failOn == "create" {
		return z.failErr
	}
	z.mu.Lock()
	z.names[name] = true
	z.mu.Unlock()
	return nil
}

func (z *fakeZone) Delete(_ context.Context, name string) error {
	z.c.add("zone.delete " + name)
	z.mu.Lock()
	defer z.mu.Unlock()
	if !z.names[name] {
		return errors.New("line not found")
	}
	delete(z.names, name)
	return nil
}

func (z *fakeZone) Exists(_ context.Context, name string) (bool, error) {
	z.mu.Lock()
	defer z.mu.Unlock()
	return z.names[name], nil
}

type fakeVhost struct {
	c     *calls
	mu    sync.Mutex
	ports map[string]int
}

func (v *fakeVhost) Create(_ context.Context, name string, port int) error {
	v.c.add("vhost.create " + name)
	v.mu.Lock()
	v.ports[name] = port
	v.mu.Unlock()
	return nil
}

func (v *fakeVhost) Delete(_ context.Context, name string) error {
	v.c.add("vhost.delete " + name)
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.ports[name]; !ok {
		return errors.New("no such vhost")
	}
	delete(v.ports, name)
	return nil
}

func (v *fakeVhost) Exists(_ context.Context, name string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.ports[name]
	return ok, nil
}

func (v *fakeVhost) Present(ctx context.Context, name string) (bool, error) {
	return v.Exists(ctx, name)
}

type fakeDB struct {
	c  *calls
	mu sync.Mutex
	// dbs: nombre → password
	dbs map[string]string
	// stuck simula un drop que falla en silencio.
	stuck bool
}

func (f *fakeDB) Exists(_ context.Context, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.dbs[name]
	return ok
}

func (f *fakeDB) Create(_ context.Context, name, password string) error {
	f.c.add("db.create " + name)
	f.mu.Lock()
	f.dbs[name] = password
	f.mu.Unlock()
	return nil
}

func (f *fakeDB) Delete(_ context.Context, name string) error {
	f.c.add("db.delete " + name)
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stuck {
		delete(f.dbs, name)
	}
	return nil
}

func (f *fakeDB) Stats(_ context.Context, name string) (tenantdb.Stats, error) {
	return tenantdb.Stats{SizeBytes: 2048}, nil
}

type fakeSupervisor struct {
	c       *calls
	mu      sync.Mutex
	procs   []supervisor.Process
	envs    map[string]map[string]string
	listErr error
}

func (s *fakeSupervisor) List(_ context.Context) ([]supervisor.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]supervisor.Process(nil), s.procs...), nil
}

func (s *fakeSupervisor) Start(_ context.Context, d *repository.Domain) error {
	name := supervisor.ProcessName(d.ID, d.Domain)
	s.c.add("process.start " + name)
	env := supervisor.BuildEnv(d, supervisor.EnvContext{Port: supervisor.Port(d.ID), DBHost: "localhost"}, supervisor.DefaultEnvSteps())
	s.mu.Lock()
	defer s.mu.Unlock()
	s.procs = append(s.procs, supervisor.Process{Name: name, Status: supervisor.StatusOnline})
	s.envs[name] = env.Map()
	sort.Slice(s.procs, func(i, j int) bool { return s.procs[i].Name < s.procs[j].Name })
	return nil
}

func (s *fakeSupervisor) Stop(_ context.Context, d *repository.Domain) error {
	name := supervisor.ProcessName(d.ID, d.Domain)
	s.c.add("process.stop " + name)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.procs {
		if p.Name == name {
			s.procs = append(s.procs[:i], s.procs[i+1:]...)
			return nil
		}
	}
	return errors.New("process or namespace not found")
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []email.WelcomeData
	opts []email.SendOptions
}

func (n *fakeNotifier) SendWelcome(_ context.Context, d email.WelcomeData, opts email.SendOptions) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, d)
	n.opts = append(n.opts, opts)
	return nil
}

type fakeVersions map[string]bool

func (f fakeVersions) ByDirectory(_ context.Context, dir string) (versions.Version, bool, error) {
	if f[dir] {
		return versions.Version{Directory: dir, Version: "15.0.2"}, true, nil
	}
	return versions.Version{}, false, nil
}

type harness struct {
	o     *Orchestrator
	store *memory.Store
	calls *calls
	zone  *fakeZone
	vhost *fakeVhost
	db    *fakeDB
	sup   *fakeSupervisor
	mail  *fakeNotifier
}

func newHarness() *harness {
	c := &calls{}
	h := &harness{
		store: memory.New(),
		calls: c,
		zone:  &fakeZone{c: c, names: map[string]bool{}},
		vhost: &fakeVhost{c: c, ports: map[string]int{}},
		db:    &fakeDB{c: c, dbs: map[string]string{}},
		sup:   &fakeSupervisor{c: c, envs: map[string]map[string]string{}},
		mail:  &fakeNotifier{},
	}
	h.o = New(Deps{
		Domains:    h.store.Domains(),
		Users:      h.store.Users(),
		Requests:   h.store.Requests(),
		Zone:       h.zone,
		Vhost:      h.vhost,
		DB:         h.db,
		Supervisor: h.sup,
		Notifier:   h.mail,
		Versions:   fakeVersions{"cgm-remote-monitor-15": true},
	})
	return h
}

// seed crea un Domain directo en el repositorio, sin pasar por Create.
func (h *harness) seed(sub string, active bool, owner string) *repository.Domain {
	d, err := h.store.Domains().Create(context.Background(), repository.CreateDomainInput{
		Domain:      sub,
		Title:       DefaultTitle,
		APISecret:   "secret-" + sub + "-0001",
		Enable:      "careportal basal",
		ShowPlugins: "careportal",
		Active:      active,
		OwnerID:     owner,
	})
	if err != nil {
		panic(err)
	}
	return d
}
