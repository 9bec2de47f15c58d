package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/shell/shelltest"
)

func newSupervisor(t *testing.T, dev bool) (*Supervisor, *shelltest.Fake, string) {
	t.Helper()
	state := t.TempDir()
	fake := &shelltest.Fake{}
	s := New(Config{
		Binary:      "pm2",
		NSHome:      "/opt/ns",
		Interpreter: "/usr/bin/node",
		EntryScript: "lib/server/server.js",
		DefaultDir:  "cgm-remote-monitor",
		StateDir:    state,
		DevMode:     dev,
		DBHost:      "127.0.0.1:27017",
	}, fake)
	return s, fake, state
}

func TestProcessNameAndPort(t *testing.T) {
	require.Equal(t, "11007_testsub", ProcessName(7, "testsub"))
	require.Equal(t, "11123_abc", ProcessName(123, "abc"))
	require.Equal(t, 11007, Port(7))
}

func TestStart_WritesEcosystemAndLaunches(t *testing.T) {
	s, fake, state := newSupervisor(t, false)
	d := testDomain()
	d.NSVersion = "nightscout-15.0.2"

	require.NoError(t, s.Start(context.Background(), d))

	path := filepath.Join(state, "11007_testsub.json")
	require.Equal(t, []string{"pm2 start " + path}, fake.Commands())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	var eco ecosystem
	require.NoError(t, json.Unmarshal(b, &eco))
	require.Len(t, eco.Apps, 1)

	app := eco.Apps[0]
	require.Equal(t, "11007_testsub", app.Name)
	require.Equal(t, "/opt/ns/nightscout-15.0.2", app.Cwd)
	require.Equal(t, "/opt/ns/nightscout-15.0.2/lib/server/server.js", app.Script)
	require.Equal(t, "/usr/bin/node", app.Interpreter)
	require.Equal(t, "11007", app.Env["PORT"])

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), st.Mode().Perm())
}

func TestInstallDir_DevIgnoresPin(t *testing.T) {
	s, _, _ := newSupervisor(t, true)
	d := testDomain()
	d.NSVersion = "nightscout-15.0.2"
	dir, err := s.InstallDir(d)
	require.NoError(t, err)
	require.Equal(t, "/opt/ns/cgm-remote-monitor", dir)
}

func TestInstallDir_RejectsTraversal(t *testing.T) {
	s, _, _ := newSupervisor(t, false)
	d := testDomain()
	d.NSVersion = "../etc"
	_, err := s.InstallDir(d)
	require.True(t, errs.Is(err, errs.KindValidation))
}

func TestStart_SupervisorErrorSurfaces(t *testing.T) {
	s, fake, state := newSupervisor(t, false)
	path := filepath.Join(state, "11007_testsub.json")
	fake.Set("pm2 start "+path, shelltest.Response{Output: "[PM2][ERROR] Script not found", Err: errors.New("exit status 1")})

	err := s.Start(context.Background(), testDomain())
	require.True(t, errs.Is(err, errs.KindIO))
	require.Contains(t, err.Error(), "Script not found")
}

func TestStop(t *testing.T) {
	s, fake, state := newSupervisor(t, false)
	d := testDomain()
	require.NoError(t, s.Start(context.Background(), d))
	fake.Reset()

	require.NoError(t, s.Stop(context.Background(), d))
	require.Equal(t, []string{"pm2 delete 11007_testsub"}, fake.Commands())
	_, err := os.Stat(filepath.Join(state, "11007_testsub.json"))
	require.True(t, os.IsNotExist(err))
}

func TestStop_AbsentProcessErrors(t *testing.T) {
	s, fake, _ := newSupervisor(t, false)
	fake.Set("pm2 delete 11007_testsub", shelltest.Response{Output: "[PM2][ERROR] Process or Namespace 11007_testsub not found", Err: errors.New("exit status 1")})
	require.Error(t, s.Stop(context.Background(), testDomain()))
}

func TestList_ParsesJList(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	out := []byte(`>>>> In-memory PM2 is out-of-date
[{"name":"11007_testsub","pid":321,"monit":{"cpu":1.5,"memory":104857600},"pm2_env":{"status":"online","pm_uptime":` +
		itoa(now.Add(-90*time.Second).UnixMilli()) + `}},
 {"name":"11008_other","pid":0,"monit":{"cpu":0,"memory":0},"pm2_env":{"status":"stopped","pm_uptime":0}},
 {"pid":1,"pm2_env":{"status":"online"}}]`)

	procs, err := parseJList(out, now)
	require.NoError(t, err)
	require.Len(t, procs, 2)
	require.Equal(t, Process{Name: "11007_testsub", PID: 321, Status: "online", CPU: 1.5, Memory: 104857600, Uptime: 90 * time.Second}, procs[0])
	require.Equal(t, "stopped", procs[1].Status)
	require.Zero(t, procs[1].Uptime)

	p, ok := StatusOf(procs, "testsub")
	require.True(t, ok)
	require.Equal(t, "online", p.Status)
	_, ok = StatusOf(procs, "sub")
	require.False(t, ok)
}

func TestList_Empty(t *testing.T) {
	s, fake, _ := newSupervisor(t, false)
	fake.Set("pm2 jlist", shelltest.Response{Output: "[]"})
	procs, err := s.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, procs)
}

func itoa(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
