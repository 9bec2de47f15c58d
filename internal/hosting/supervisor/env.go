package supervisor

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
)

// Env es un set ordenado de variables: Set sobre una clave existente la
// reemplaza en su posición original.
type Env struct {
	keys []string
	vals map[string]string
}

func NewEnv() *Env { return &Env{vals: map[string]string{}} }

func (e *Env) Set(k, v string) {
	if _, ok := e.vals[k]; !ok {
		e.keys = append(e.keys, k)
	}
	e.vals[k] = v
}

func (e *Env) Get(k string) (string, bool) {
	v, ok := e.vals[k]
	return v, ok
}

func (e *Env) Keys() []string { return append([]string(nil), e.keys...) }

func (e *Env) Map() map[string]string {
	m := make(map[string]string, len(e.vals))
	for k, v := range e.vals {
		m[k] = v
	}
	return m
}

// EnvContext son los datos de plataforma que no viven en el Domain.
type EnvContext struct {
	Port int
	// DBHost es host:port del cluster Mongo visto desde el tenant.
	DBHost string
	// Baseline pisa los defaults de plataforma (config runtime.base_env).
	Baseline map[string]string
}

// EnvStep es un paso del builder. Los pasos se aplican en orden; el último
// que escribe una clave gana.
type EnvStep struct {
	Name  string
	Apply func(env *Env, d *repository.Domain, c EnvContext)
}

var platformDefaults = [][2]string{
	{"LANGUAGE", "ro"},
	{"THEME", "colors"},
	{"TIME_FORMAT", "24"},
	{"INSECURE_USE_HTTP", "true"},
}

// DefaultEnvSteps: features → bridge (si está habilitado) → credenciales →
// defaults de plataforma → puerto y base → overrides del Domain.
func DefaultEnvSteps() []EnvStep {
	return []EnvStep{
		{Name: "features", Apply: func(env *Env, d *repository.Domain, _ EnvContext) {
			env.Set("ENABLE", d.Enable)
			env.Set("SHOW_PLUGINS", d.ShowPlugins)
		}},
		{Name: "bridge", Apply: func(env *Env, d *repository.Domain, _ EnvContext) {
			if !d.HasFeature("bridge") {
				return
			}
			env.Set("BRIDGE_SERVER", d.BridgeServer)
			env.Set("BRIDGE_USER_NAME", d.BridgeUsername)
			env.Set("BRIDGE_PASSWORD", d.BridgePassword)
		}},
		{Name: "identity", Apply: func(env *Env, d *repository.Domain, _ EnvContext) {
			env.Set("API_SECRET", d.APISecret)
			env.Set("CUSTOM_TITLE", d.Title)
		}},
		{Name: "platform", Apply: func(env *Env, _ *repository.Domain, c EnvContext) {
			for _, kv := range platformDefaults {
				env.Set(kv[0], kv[1])
			}
			keys := make([]string, 0, len(c.Baseline))
			for k := range c.Baseline {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				env.Set(k, c.Baseline[k])
			}
		}},
		{Name: "network", Apply: func(env *Env, d *repository.Domain, c EnvContext) {
			env.Set("PORT", strconv.Itoa(c.Port))
			env.Set("MONGODB_URI", MongoURI(d.Domain, c.DBHost))
		}},
		{Name: "overrides", Apply: func(env *Env, d *repository.Domain, _ EnvContext) {
			for _, o := range d.Environments {
				if o.Variable == "" {
					continue
				}
				env.Set(o.Variable, o.Value)
			}
		}},
	}
}

// BuildEnv aplica steps en orden.
func BuildEnv(d *repository.Domain, c EnvContext, steps []EnvStep) *Env {
	env := NewEnv()
	for _, s := range steps {
		s.Apply(env, d, c)
	}
	return env
}

// MongoURI usa el subdominio como usuario, password y base.
func MongoURI(sub, host string) string {
	return fmt.Sprintf("mongodb://%s:%s@%s/%s", sub, sub, host, sub)
}
