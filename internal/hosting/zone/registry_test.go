package zone

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/shell/shelltest"
)

const header = `$TTL 3600
@	IN	SOA	ns1.nsromania.info. admin.nsromania.info. ( 1 7200 3600 1209600 3600 )
	IN	NS	ns1.nsromania.info.
www	IN	A	10.0.0.1
`

func newRegistry(t *testing.T) (*Registry, *shelltest.Fake, string) {
	t.Helper()
	p := filepath.Join(t.TempDir(), "nsromania.info")
	require.NoError(t, os.WriteFile(p, []byte(header), 0o644))
	fake := &shelltest.Fake{}
	r := New(Config{ZoneFile: p, Target: "nsromania.info.", ReloadCommand: []string{"rndc", "reload"}}, fake)
	return r, fake, p
}

func TestCreateListDelete(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"ab", "testsub", "my-site-01", "a1b2c3d4e5f6g7h8i9j0"} {
		t.Run(name, func(t *testing.T) {
			r, fake, p := newRegistry(t)

			require.NoError(t, r.Create(ctx, name))
			names, err := r.List(ctx)
			require.NoError(t, err)
			require.Contains(t, names, name)

			b, _ := os.ReadFile(p)
			require.Contains(t, string(b), name+"\tIN\tCNAME\tnsromania.info.\n")

			require.NoError(t, r.Delete(ctx, name))
			names, err = r.List(ctx)
			require.NoError(t, err)
			require.NotContains(t, names, name)

			b, _ = os.ReadFile(p)
			require.Equal(t, header, string(b))
			require.Equal(t, []string{"rndc reload", "rndc reload"}, fake.Commands())
		})
	}
}

func TestCreate_InvalidName(t *testing.T) {
	r, fake, _ := newRegistry(t)
	for _, name := range []string{"", "a", "UPPER", "has_underscore", "dot.ted", "this-name-is-way-too-long-for-the-zone"} {
		err := r.Create(context.Background(), name)
		require.True(t, errs.Is(err, errs.KindValidation), name)
	}
	require.Empty(t, fake.Commands(), "no side effects on validation failure")
}

func TestValidateName_Bounds(t *testing.T) {
	require.NoError(t, ValidateName("ab"))
	require.NoError(t, ValidateName(strings.Repeat("a", 32)))
	require.True(t, errs.Is(ValidateName("a"), errs.KindValidation))
	require.True(t, errs.Is(ValidateName(strings.Repeat("a", 33)), errs.KindValidation))
}

func TestCreate_ReloadFailureIsDistinct(t *testing.T) {
	r, fake, p := newRegistry(t)
	fake.Set("rndc reload", shelltest.Response{Output: "rndc: connect failed", Err: errors.New("exit status 1")})

	err := r.Create(context.Background(), "testsub")
	require.True(t, errs.Is(err, errs.KindIO))

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	require.Equal(t, "reload", e.Step)
	require.Contains(t, err.Error(), "rndc: connect failed")

	// el archivo ya quedó modificado
	b, _ := os.ReadFile(p)
	require.Contains(t, string(b), "testsub\tIN\tCNAME")
}

func TestDelete_NotFoundDoesNotReload(t *testing.T) {
	r, fake, _ := newRegistry(t)
	err := r.Delete(context.Background(), "ghost")
	require.True(t, errs.Is(err, errs.KindIO))
	require.Empty(t, fake.Commands())
}

func TestList_MissingFile(t *testing.T) {
	r := New(Config{ZoneFile: filepath.Join(t.TempDir(), "missing"), Target: "x."}, &shelltest.Fake{})
	names, err := r.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestParseRecord(t *testing.T) {
	cases := map[string]string{
		"foo\tIN\tCNAME\tnsromania.info.":      "foo",
		"bar 300 IN CNAME nsromania.info. ; x": "bar",
		"baz CNAME nsromania.info.":            "baz",
	}
	for line, want := range cases {
		got, ok := parseRecord(line)
		require.True(t, ok, line)
		require.Equal(t, want, got)
	}
	for _, line := range []string{"www\tIN\tA\t10.0.0.1", "\tIN\tNS\tns1.", "$TTL 3600", "; cname comment", ""} {
		_, ok := parseRecord(line)
		require.False(t, ok, line)
	}
}

func TestExists(t *testing.T) {
	r, _, _ := newRegistry(t)
	ctx := context.Background()
	ok, err := r.Exists(ctx, "testsub")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, r.Create(ctx, "testsub"))
	ok, err = r.Exists(ctx, "testsub")
	require.NoError(t, err)
	require.True(t, ok)
}
