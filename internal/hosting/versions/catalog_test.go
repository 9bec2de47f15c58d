package versions

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func install(t *testing.T, home, dir, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(home, dir), 0o755))
	if body != "" {
		require.NoError(t, os.WriteFile(filepath.Join(home, dir, "package.json"), []byte(body), 0o644))
	}
}

func TestScan_FiltersAndSorts(t *testing.T) {
	home := t.TempDir()
	install(t, home, "ns-14", `{"name":"nightscout","version":"14.2.6"}`)
	install(t, home, "ns-15b", `{"name":"nightscout","version":"15.0.2"}`)
	install(t, home, "ns-15a", `{"name":"nightscout","version":"15.0.2"}`)
	install(t, home, "ns-15dev", `{"name":"nightscout","version":"15.1.0-dev.2"}`)
	install(t, home, "other", `{"name":"express","version":"99.0.0"}`)
	install(t, home, "broken", `{not json`)
	install(t, home, "empty", "")

	vs, err := Scan(home)
	require.NoError(t, err)
	require.Equal(t, []Version{
		{Directory: "ns-15dev", Version: "15.1.0-dev.2"},
		{Directory: "ns-15a", Version: "15.0.2"},
		{Directory: "ns-15b", Version: "15.0.2"},
		{Directory: "ns-14", Version: "14.2.6"},
	}, vs)
}

func TestCompare(t *testing.T) {
	require.Equal(t, 1, Compare("15.0.10", "15.0.9"))
	require.Equal(t, -1, Compare("9.9", "10.0"))
	require.Equal(t, 0, Compare("15.0", "15.0.0"))
	require.Equal(t, 0, Compare("v15.0.2", "15.0.2-rc1"))
}

func TestCatalog_EmptyHome(t *testing.T) {
	vs, err := New("", time.Minute).List(context.Background())
	require.NoError(t, err)
	require.Empty(t, vs)
}

func TestCatalog_CachesUntilInvalidated(t *testing.T) {
	home := t.TempDir()
	install(t, home, "ns-14", `{"name":"nightscout","version":"14.2.6"}`)
	c := New(home, time.Hour)
	ctx := context.Background()

	vs, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, vs, 1)

	install(t, home, "ns-15", `{"name":"nightscout","version":"15.0.2"}`)
	vs, _ = c.List(ctx)
	require.Len(t, vs, 1, "cached")

	c.Invalidate()
	vs, _ = c.List(ctx)
	require.Len(t, vs, 2)

	v, ok, err := c.ByDirectory(ctx, "ns-15")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "15.0.2", v.Version)
}

func TestCatalog_WatchInvalidates(t *testing.T) {
	home := t.TempDir()
	c := New(home, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	vs, _ := c.List(ctx)
	require.Empty(t, vs)

	done := make(chan struct{})
	go func() {
		_ = c.Watch(ctx)
		close(done)
	}()
	time.Sleep(100 * time.Millisecond)

	// se arma afuera y se mueve para que el scan nunca vea un directorio a medias
	staging := t.TempDir()
	install(t, staging, "ns-15", `{"name":"nightscout","version":"15.0.2"}`)
	require.NoError(t, os.Rename(filepath.Join(staging, "ns-15"), filepath.Join(home, "ns-15")))
	require.Eventually(t, func() bool {
		vs, _ := c.List(ctx)
		return len(vs) == 1
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	<-done
}
