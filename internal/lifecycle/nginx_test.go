package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/shell/shelltest"
	"github.com/dropDatabas3/nshost/internal/hosting/vhost"
)

// withNginx reemplaza el fake de vhost por el registro real sobre un tempdir.
func withNginx(t *testing.T, h *harness) (*shelltest.Fake, vhost.Config) {
	t.Helper()
	root := t.TempDir()
	cfg := vhost.Config{
		SitesAvailable: filepath.Join(root, "sites-available"),
		SitesEnabled:   filepath.Join(root, "sites-enabled"),
		Template:       "_template",
		Excluded:       []string{"_template", "00-default"},
		TestCommand:    []string{"nginx", "-t"},
		ReloadCommand:  []string{"systemctl", "reload", "nginx"},
		PortMin:        11000,
		PortMax:        12000,
	}
	require.NoError(t, os.MkdirAll(cfg.SitesAvailable, 0o755))
	require.NoError(t, os.MkdirAll(cfg.SitesEnabled, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SitesAvailable, "_template"),
		[]byte("server { server_name [% subdomain %].nsromania.info; proxy_pass http://127.0.0.1:[%port%]; }\n"), 0o644))

	nginx := &shelltest.Fake{}
	h.o = New(Deps{
		Domains:    h.store.Domains(),
		Users:      h.store.Users(),
		Requests:   h.store.Requests(),
		Zone:       h.zone,
		Vhost:      vhost.New(cfg, nginx),
		DB:         h.db,
		Supervisor: h.sup,
		Notifier:   h.mail,
		Versions:   fakeVersions{"cgm-remote-monitor-15": true},
	})
	return nginx, cfg
}

func TestInitialize_RetryAfterNginxTestFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	nginx, cfg := withNginx(t, h)
	d := h.seed("alpha", true, "")

	nginx.Set("nginx -t", shelltest.Response{Output: "nginx: [emerg] invalid port", Err: errors.New("exit status 1")})
	err := h.o.Initialize(ctx, d.ID, admin)
	require.True(t, errs.Is(err, errs.KindProvisioning))
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, "vhost.create", e.Step)

	// nada de la config rota queda habilitado
	_, err = os.Lstat(filepath.Join(cfg.SitesEnabled, "alpha"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.SitesAvailable, "alpha"))
	require.True(t, os.IsNotExist(err))

	nginx.Set("nginx -t", shelltest.Response{})
	nginx.Reset()
	h.calls.reset()
	require.NoError(t, h.o.Initialize(ctx, d.ID, admin))
	require.Equal(t, []string{"nginx -t", "systemctl reload nginx"}, nginx.Commands())
	// base y zona ya estaban
	assert.Empty(t, h.calls.list())

	target, err := os.Readlink(filepath.Join(cfg.SitesEnabled, "alpha"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cfg.SitesAvailable, "alpha"), target)

	// completo: un repair no toca nginx
	nginx.Reset()
	require.NoError(t, h.o.Repair(ctx, d.ID, admin))
	require.Empty(t, nginx.Commands())
}

func TestInitialize_RecreatesHalfWrittenVhost(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	nginx, cfg := withNginx(t, h)
	d := h.seed("alpha", true, "")

	// archivo sin symlink
	require.NoError(t, os.WriteFile(filepath.Join(cfg.SitesAvailable, "alpha"), []byte("#"), 0o644))

	require.NoError(t, h.o.Initialize(ctx, d.ID, admin))
	require.Equal(t, []string{"nginx -t", "systemctl reload nginx"}, nginx.Commands())
	_, err := os.Readlink(filepath.Join(cfg.SitesEnabled, "alpha"))
	require.NoError(t, err)
}

func TestDestroy_RemovesDanglingSymlink(t *testing.T) {
	ctx := context.Background()
	h := newHarness()
	nginx, cfg := withNginx(t, h)
	d := h.seed("alpha", false, "")

	link := filepath.Join(cfg.SitesEnabled, "alpha")
	require.NoError(t, os.Symlink(filepath.Join(cfg.SitesAvailable, "alpha"), link))

	require.NoError(t, h.o.Destroy(ctx, d.ID, admin))
	_, err := os.Lstat(link)
	require.True(t, os.IsNotExist(err))
	require.Equal(t, []string{"nginx -t", "systemctl reload nginx"}, nginx.Commands())
}
