// Package vhost materializa la config de nginx de cada tenant a partir de un
// template y la activa con un symlink en sites-enabled.
package vhost

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/shell"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
	"github.com/dropDatabas3/nshost/internal/util/atomicwrite"
)

var (
	domainRe = regexp.MustCompile(`^[a-z0-9.-]{2,253}$`)

	// Acepta "[% subdomain %]" y "[%subdomain%]".
	subdomainPH = regexp.MustCompile(`\[%\s*subdomain\s*%\]`)
	portPH      = regexp.MustCompile(`\[%\s*port\s*%\]`)
)

type Config struct {
	SitesAvailable string
	SitesEnabled   string
	// Template es el nombre del archivo dentro de SitesAvailable.
	Template      string
	Excluded      []string
	TestCommand   []string
	ReloadCommand []string
	PortMin       int
	PortMax       int
}

type Registry struct {
	cfg      Config
	run      shell.Runner
	excluded map[string]struct{}
	// nginx -t valida el árbol completo; serializamos para que dos
	// creates no se validen con la mitad del otro escrito.
	mu  sync.Mutex
	log *zap.Logger
}

func New(cfg Config, run shell.Runner) *Registry {
	ex := make(map[string]struct{}, len(cfg.Excluded)+1)
	for _, n := range cfg.Excluded {
		ex[n] = struct{}{}
	}
	if cfg.Template != "" {
		ex[cfg.Template] = struct{}{}
	}
	return &Registry{cfg: cfg, run: run, excluded: ex, log: logger.Named("hosting.vhost")}
}

func (r *Registry) validate(op, name string) error {
	if !domainRe.MatchString(name) {
		return errs.Validation(op, name, "invalid domain %q", name)
	}
	if _, reserved := r.excluded[name]; reserved {
		return errs.Validation(op, name, "%q is a reserved nginx entry", name)
	}
	return nil
}

// Render sustituye los placeholders del template.
func Render(tpl, name string, port int) string {
	out := subdomainPH.ReplaceAllLiteralString(tpl, name)
	return portPH.ReplaceAllLiteralString(out, strconv.Itoa(port))
}

func (r *Registry) availablePath(name string) string {
	return filepath.Join(r.cfg.SitesAvailable, name)
}

func (r *Registry) enabledPath(name string) string {
	return filepath.Join(r.cfg.SitesEnabled, name)
}

// Create escribe la config, crea el symlink, valida con nginx -t y recarga.
// Si el test falla no se recarga y el error incluye la salida de nginx.
func (r *Registry) Create(ctx context.Context, name string, port int) error {
	const op = "vhost.create"
	if err := r.validate(op, name); err != nil {
		return err
	}
	if port < r.cfg.PortMin || port > r.cfg.PortMax {
		return errs.Validation(op, name, "port %d outside [%d, %d]", port, r.cfg.PortMin, r.cfg.PortMax)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tpl, err := os.ReadFile(r.availablePath(r.cfg.Template))
	if err != nil {
		return errs.IO(op, name, "template", err)
	}
	conf := Render(string(tpl), name, port)
	if err := atomicwrite.WriteFile(r.availablePath(name), []byte(conf), 0o644); err != nil {
		return errs.IO(op, name, "write", err)
	}

	link := r.enabledPath(name)
	if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errs.IO(op, name, "symlink", err)
	}
	if err := os.Symlink(r.availablePath(name), link); err != nil {
		return errs.IO(op, name, "symlink", err)
	}
	r.log.Info("vhost written", logger.Subdomain(name), logger.Port(port))

	if err := r.testAndReload(ctx, op, name); err != nil {
		// sin rollback la config rota queda habilitada y hace fallar el
		// nginx -t de cualquier otro tenant; además Exists la daría por creada
		r.rollback(name)
		return err
	}
	return nil
}

// rollback quita symlink y archivo de un Create que no llegó a recargar.
func (r *Registry) rollback(name string) {
	if err := os.Remove(r.enabledPath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Error("rollback: unlink failed", logger.Subdomain(name), logger.Err(err))
	}
	if err := os.Remove(r.availablePath(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.Error("rollback: remove failed", logger.Subdomain(name), logger.Err(err))
	}
	r.log.Warn("vhost rolled back", logger.Subdomain(name))
}

// Delete quita el symlink y luego el archivo, valida y recarga. Un symlink
// ya ausente no es error para que un destroy interrumpido pueda reanudarse.
func (r *Registry) Delete(ctx context.Context, name string) error {
	const op = "vhost.delete"
	if err := r.validate(op, name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	unlinked := true
	if err := os.Remove(r.enabledPath(name)); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return errs.IO(op, name, "unlink", err)
		}
		unlinked = false
	}
	if err := os.Remove(r.availablePath(name)); err != nil {
		// symlink colgado sin archivo: con quitar el symlink alcanza
		if !unlinked || !errors.Is(err, os.ErrNotExist) {
			return errs.IO(op, name, "remove", err)
		}
	}
	r.log.Info("vhost removed", logger.Subdomain(name))

	return r.testAndReload(ctx, op, name)
}

// List devuelve las entradas de sites-available que corresponden a dominios.
func (r *Registry) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.cfg.SitesAvailable)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errs.IO("vhost.list", "", "readdir", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || strings.HasPrefix(n, ".") {
			continue
		}
		if _, skip := r.excluded[n]; skip {
			continue
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Exists es true sólo si están el archivo y el symlink. Un vhost a medias
// cuenta como ausente para que initialize lo vuelva a crear.
func (r *Registry) Exists(_ context.Context, name string) (bool, error) {
	file, link, err := r.parts(name)
	if err != nil {
		return false, err
	}
	return file && link, nil
}

// Present es true si queda cualquiera de las dos partes, incluido un symlink
// colgado. destroy lo usa para no dejar restos.
func (r *Registry) Present(_ context.Context, name string) (bool, error) {
	file, link, err := r.parts(name)
	if err != nil {
		return false, err
	}
	return file || link, nil
}

func (r *Registry) parts(name string) (file, link bool, err error) {
	if _, reserved := r.excluded[name]; reserved {
		return false, false, nil
	}
	file, err = lstatExists(r.availablePath(name))
	if err != nil {
		return false, false, errs.IO("vhost.exists", name, "stat", err)
	}
	link, err = lstatExists(r.enabledPath(name))
	if err != nil {
		return false, false, errs.IO("vhost.exists", name, "stat", err)
	}
	return file, link, nil
}

func lstatExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (r *Registry) testAndReload(ctx context.Context, op, name string) error {
	if cmd, args := shell.Argv(r.cfg.TestCommand); cmd != "" {
		if out, err := r.run.Run(ctx, cmd, args...); err != nil {
			r.log.Error("nginx config test failed", logger.Subdomain(name), logger.String("output", string(out)))
			return errs.IO(op, name, "test", fmt.Errorf("configuration test failed: %w", err))
		}
	}
	if cmd, args := shell.Argv(r.cfg.ReloadCommand); cmd != "" {
		if _, err := r.run.Run(ctx, cmd, args...); err != nil {
			return errs.IO(op, name, "reload", err)
		}
	}
	return nil
}
