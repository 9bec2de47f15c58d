// Package zone mantiene los registros CNAME de los tenants en el archivo de
// zona de bind y recarga el resolver después de cada cambio.
package zone

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/shell"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
	"github.com/dropDatabas3/nshost/internal/util/atomicwrite"
)

const recordType = "CNAME"

// mínimo 2 caracteres a propósito: mismo límite que el registro público de subdominios
var nameRe = regexp.MustCompile(`^[a-z0-9-]{2,32}$`)

type Config struct {
	ZoneFile      string
	Target        string
	ReloadCommand []string
}

// Registry edita un único archivo de zona. Las escrituras se serializan con
// un mutex porque varios Domains comparten el archivo.
type Registry struct {
	cfg Config
	run shell.Runner
	mu  sync.Mutex
	log *zap.Logger
}

func New(cfg Config, run shell.Runner) *Registry {
	return &Registry{cfg: cfg, run: run, log: logger.Named("hosting.zone")}
}

// ValidateName aplica la sintaxis de subdominio aceptada por la zona.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return errs.Validation("zone", name, "invalid subdomain %q: expected 2-32 chars of [a-z0-9-]", name)
	}
	return nil
}

// RecordLine es la línea exacta que Create agrega y Delete busca.
// Ambas operaciones deben usar esta función: Delete compara byte a byte.
func RecordLine(name, target string) string {
	return name + "\tIN\t" + recordType + "\t" + target + "\n"
}

// Create agrega el registro de name y recarga el resolver.
func (r *Registry) Create(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(r.cfg.ZoneFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.IO("zone.create", name, "append", err)
	}
	_, werr := f.WriteString(RecordLine(name, r.cfg.Target))
	cerr := f.Close()
	if werr != nil {
		return errs.IO("zone.create", name, "append", werr)
	}
	if cerr != nil {
		return errs.IO("zone.create", name, "append", cerr)
	}
	r.log.Info("zone record appended", logger.Subdomain(name), logger.File(r.cfg.ZoneFile))

	return r.reload(ctx, "zone.create", name)
}

// Delete quita la línea exacta de name y recarga. Si el archivo queda igual
// (línea no encontrada) devuelve un error IO y no recarga.
func (r *Registry) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := os.ReadFile(r.cfg.ZoneFile)
	if err != nil {
		return errs.IO("zone.delete", name, "read", err)
	}
	before := string(b)
	after := strings.ReplaceAll(before, RecordLine(name, r.cfg.Target), "")
	if after == before {
		return errs.IO("zone.delete", name, "remove", fmt.Errorf("record for %q not found in %s", name, r.cfg.ZoneFile))
	}
	perm := atomicwrite.PermOf(r.cfg.ZoneFile, 0o644)
	if err := atomicwrite.WriteFile(r.cfg.ZoneFile, []byte(after), perm); err != nil {
		return errs.IO("zone.delete", name, "write", err)
	}
	r.log.Info("zone record removed", logger.Subdomain(name), logger.File(r.cfg.ZoneFile))

	return r.reload(ctx, "zone.delete", name)
}

// List devuelve los nombres con registro CNAME. Archivo inexistente = lista vacía.
func (r *Registry) List(_ context.Context) ([]string, error) {
	f, err := os.Open(r.cfg.ZoneFile)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, errs.IO("zone.list", "", "read", err)
	}
	defer f.Close()

	out := []string{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name, ok := parseRecord(sc.Text()); ok {
			out = append(out, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.IO("zone.list", "", "read", err)
	}
	return out, nil
}

// Exists reporta si name tiene registro.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	names, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) reload(ctx context.Context, op, name string) error {
	cmd, args := shell.Argv(r.cfg.ReloadCommand)
	if cmd == "" {
		return nil
	}
	if _, err := r.run.Run(ctx, cmd, args...); err != nil {
		// el archivo ya cambió; no hay rollback
		r.log.Error("resolver reload failed", logger.Subdomain(name), logger.Op(op), logger.Err(err))
		return errs.IO(op, name, "reload", err)
	}
	return nil
}

// parseRecord acepta "name [ttl] [class] CNAME target" e ignora comentarios,
// directivas ($TTL, $ORIGIN) y líneas de continuación.
func parseRecord(line string) (string, bool) {
	if i := strings.IndexByte(line, ';'); i >= 0 {
		line = line[:i]
	}
	if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '$' {
		return "", false
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return "", false
	}
	for _, f := range fields[1 : len(fields)-1] {
		if strings.EqualFold(f, recordType) {
			return fields[0], true
		}
	}
	return "", false
}
