// Package versions lista las instalaciones de Nightscout disponibles bajo
// NS_HOME, una por directorio con package.json name == "nightscout".
package versions

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

const cacheKey = "versions"

type Version struct {
	Directory string `json:"directory"`
	Version   string `json:"version"`
}

type packageJSON struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Catalog cachea el resultado del scan; scans concurrentes se deduplican.
type Catalog struct {
	home  string
	cache *gocache.Cache
	group singleflight.Group
	log   *zap.Logger
}

func New(home string, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{
		home:  home,
		cache: gocache.New(ttl, 2*ttl),
		log:   logger.Named("hosting.versions"),
	}
}

// List devuelve las versiones ordenadas de mayor a menor.
func (c *Catalog) List(_ context.Context) ([]Version, error) {
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.([]Version), nil
	}
	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		if c.home == "" {
			c.log.Warn("NS_HOME not set, no versions available")
			return []Version{}, nil
		}
		vs, err := Scan(c.home)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(cacheKey, vs)
		return vs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Version), nil
}

// ByDirectory busca una instalación por nombre de directorio.
func (c *Catalog) ByDirectory(ctx context.Context, dir string) (Version, bool, error) {
	vs, err := c.List(ctx)
	if err != nil {
		return Version{}, false, err
	}
	for _, v := range vs {
		if v.Directory == dir {
			return v, true, nil
		}
	}
	return Version{}, false, nil
}

func (c *Catalog) Invalidate() { c.cache.Delete(cacheKey) }

// Scan lee home/*/package.json. Directorios sin package.json o con otro
// name se ignoran.
func Scan(home string) ([]Version, error) {
	entries, err := os.ReadDir(home)
	if errors.Is(err, os.ErrNotExist) {
		return []Version{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Version, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(home, e.Name(), "package.json"))
		if err != nil {
			continue
		}
		var pkg packageJSON
		if json.Unmarshal(b, &pkg) != nil || pkg.Name != "nightscout" {
			continue
		}
		out = append(out, Version{Directory: e.Name(), Version: pkg.Version})
	}
	Sort(out)
	return out, nil
}

// Sort ordena por componentes numéricos descendente; empate por directorio.
func Sort(vs []Version) {
	sort.SliceStable(vs, func(i, j int) bool {
		if c := Compare(vs[i].Version, vs[j].Version); c != 0 {
			return c > 0
		}
		return vs[i].Directory < vs[j].Directory
	})
}

// Compare compara a y b por componentes numéricos ("15.0.2-dev" → 15,0,2).
func Compare(a, b string) int {
	pa, pb := components(a), components(b)
	for len(pa) < len(pb) {
		pa = append(pa, 0)
	}
	for len(pb) < len(pa) {
		pb = append(pb, 0)
	}
	for i := range pa {
		switch {
		case pa[i] > pb[i]:
			return 1
		case pa[i] < pb[i]:
			return -1
		}
	}
	return 0
}

func components(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	parts := strings.Split(v, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		end := 0
		for end < len(p) && p[end] >= '0' && p[end] <= '9' {
			end++
		}
		n, _ := strconv.Atoi(p[:end])
		out = append(out, n)
		if end < len(p) {
			// sufijo no numérico: el resto no cuenta
			break
		}
	}
	return out
}
