// Package supervisor adapta pm2: lista procesos y arranca o borra el proceso
// Nightscout de cada Domain.
package supervisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/shell"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
	"github.com/dropDatabas3/nshost/internal/util/atomicwrite"
)

// PortBase es el puerto del Domain 0; el Domain id escucha en PortBase+id.
const PortBase = 11000

// StatusOnline es el estado que pm2 reporta para un proceso vivo.
const StatusOnline = "online"

type Config struct {
	Binary      string
	NSHome      string
	Interpreter string
	EntryScript string
	DefaultDir  string
	// StateDir guarda los ecosystem files generados.
	StateDir string
	DevMode  bool
	DBHost   string
	BaseEnv  map[string]string
}

// Process es una entrada de pm2 jlist.
type Process struct {
	Name   string        `json:"name"`
	PID    int           `json:"pid"`
	Status string        `json:"status"`
	CPU    float64       `json:"cpu"`
	Memory int64         `json:"memory"`
	Uptime time.Duration `json:"uptime"`
}

type Supervisor struct {
	cfg   Config
	run   shell.Runner
	steps []EnvStep
	now   func() time.Time
	log   *zap.Logger
}

func New(cfg Config, run shell.Runner) *Supervisor {
	if cfg.Binary == "" {
		cfg.Binary = "pm2"
	}
	return &Supervisor{
		cfg:   cfg,
		run:   run,
		steps: DefaultEnvSteps(),
		now:   time.Now,
		log:   logger.Named("hosting.runtime"),
	}
}

// ProcessName: "11" + id con 3 dígitos + "_" + subdominio.
func ProcessName(id int64, sub string) string {
	return fmt.Sprintf("11%03d_%s", id, sub)
}

func Port(id int64) int { return PortBase + int(id) }

// jlistEntry es el subconjunto de pm2 jlist que usamos.
type jlistEntry struct {
	Name  string `json:"name"`
	PID   int    `json:"pid"`
	Monit struct {
		CPU    float64 `json:"cpu"`
		Memory int64   `json:"memory"`
	} `json:"monit"`
	Env struct {
		Status   string `json:"status"`
		PMUptime int64  `json:"pm_uptime"`
	} `json:"pm2_env"`
}

// List corre pm2 jlist y devuelve cada proceso con nombre.
func (s *Supervisor) List(ctx context.Context) ([]Process, error) {
	out, err := s.run.Run(ctx, s.cfg.Binary, "jlist")
	if err != nil {
		return nil, errs.IO("runtime.list", "", "jlist", err)
	}
	return parseJList(out, s.now())
}

func parseJList(out []byte, now time.Time) ([]Process, error) {
	// pm2 puede imprimir avisos antes del JSON
	out = bytes.TrimSpace(out)
	if !bytes.HasPrefix(out, []byte("[")) {
		if i := bytes.Index(out, []byte("\n[")); i >= 0 {
			out = out[i+1:]
		}
	}
	if len(out) == 0 {
		return []Process{}, nil
	}
	var entries []jlistEntry
	if err := json.Unmarshal(out, &entries); err != nil {
		return nil, errs.IO("runtime.list", "", "parse", err)
	}
	procs := make([]Process, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		p := Process{
			Name:   e.Name,
			PID:    e.PID,
			Status: e.Env.Status,
			CPU:    e.Monit.CPU,
			Memory: e.Monit.Memory,
		}
		if e.Env.Status == StatusOnline && e.Env.PMUptime > 0 {
			p.Uptime = now.Sub(time.UnixMilli(e.Env.PMUptime)).Truncate(time.Second)
		}
		procs = append(procs, p)
	}
	return procs, nil
}

// InstallDir resuelve el directorio de Nightscout. La versión fijada sólo se
// respeta fuera de dev.
func (s *Supervisor) InstallDir(d *repository.Domain) (string, error) {
	dir := s.cfg.DefaultDir
	if !s.cfg.DevMode && d.NSVersion != "" {
		v := d.NSVersion
		if v != filepath.Base(v) || v == "." || v == ".." {
			return "", errs.Validation("runtime.start", d.Domain, "invalid nsversion %q", v)
		}
		dir = v
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	return filepath.Join(s.cfg.NSHome, dir), nil
}

// Env construye las variables del proceso de d.
func (s *Supervisor) Env(d *repository.Domain) *Env {
	return BuildEnv(d, EnvContext{Port: Port(d.ID), DBHost: s.cfg.DBHost, Baseline: s.cfg.BaseEnv}, s.steps)
}

type ecosystem struct {
	Apps []ecosystemApp `json:"apps"`
}

type ecosystemApp struct {
	Name        string            `json:"name"`
	Script      string            `json:"script"`
	Cwd         string            `json:"cwd"`
	Interpreter string            `json:"interpreter"`
	Env         map[string]string `json:"env"`
	Autorestart bool              `json:"autorestart"`
}

func (s *Supervisor) ecosystemPath(name string) string {
	return filepath.Join(s.cfg.StateDir, name+".json")
}

// Start escribe el ecosystem file del Domain y lo lanza con pm2. Devuelve
// cuando pm2 acepta el proceso; no espera a que quede online.
func (s *Supervisor) Start(ctx context.Context, d *repository.Domain) error {
	const op = "runtime.start"
	name := ProcessName(d.ID, d.Domain)
	dir, err := s.InstallDir(d)
	if err != nil {
		return err
	}

	eco := ecosystem{Apps: []ecosystemApp{{
		Name:        name,
		Script:      filepath.Join(dir, s.cfg.EntryScript),
		Cwd:         dir,
		Interpreter: s.cfg.Interpreter,
		Env:         s.Env(d).Map(),
		Autorestart: true,
	}}}
	b, err := json.MarshalIndent(eco, "", "  ")
	if err != nil {
		return errs.IO(op, d.Domain, "ecosystem", err)
	}
	path := s.ecosystemPath(name)
	// contiene API_SECRET y credenciales del bridge
	if err := atomicwrite.WriteFile(path, b, 0o600); err != nil {
		return errs.IO(op, d.Domain, "ecosystem", err)
	}

	if _, err := s.run.Run(ctx, s.cfg.Binary, "start", path); err != nil {
		return errs.IO(op, d.Domain, "pm2.start", err)
	}
	s.log.Info("process started",
		logger.DomainID(d.ID), logger.Subdomain(d.Domain), logger.ProcessName(name),
		logger.Port(Port(d.ID)), logger.String("dir", dir))
	return nil
}

// Stop borra el proceso por nombre. Un proceso inexistente es error de pm2.
func (s *Supervisor) Stop(ctx context.Context, d *repository.Domain) error {
	name := ProcessName(d.ID, d.Domain)
	if _, err := s.run.Run(ctx, s.cfg.Binary, "delete", name); err != nil {
		return errs.IO("runtime.stop", d.Domain, "pm2.delete", err)
	}
	if err := os.Remove(s.ecosystemPath(name)); err != nil && !os.IsNotExist(err) {
		s.log.Warn("ecosystem cleanup failed", logger.ProcessName(name), logger.Err(err))
	}
	s.log.Info("process deleted", logger.DomainID(d.ID), logger.Subdomain(d.Domain), logger.ProcessName(name))
	return nil
}

// StatusOf busca el proceso cuyo nombre termina en "_<sub>".
func StatusOf(procs []Process, sub string) (Process, bool) {
	suffix := "_" + sub
	for _, p := range procs {
		if strings.HasSuffix(p.Name, suffix) {
			return p, true
		}
	}
	return Process{}, false
}
