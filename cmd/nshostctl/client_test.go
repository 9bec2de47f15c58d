package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_CallAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/domains/by-subdomain/alpha":
			w.Header().Set("Location", "/api/domains/7")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusFound)
			_, _ = w.Write([]byte(`{"id":7}`))
		case "/api/domains/9/start":
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"code":"CONFLICT","message":"domain is already running","step":"process.start"}`))
		case "/api/domains":
			_, _ = w.Write([]byte(`[{"id":1,"domain":"alpha","title":"A","active":true,"db_exists":true,"status":"online"}]`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down"))
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	cl := newClient(srv.URL+"/", "tok", 5*time.Second)

	id, err := resolveID(ctx, cl, "alpha")
	require.NoError(t, err)
	require.Equal(t, int64(7), id)

	id, err = resolveID(ctx, cl, "12")
	require.NoError(t, err)
	require.Equal(t, int64(12), id)

	_, err = cl.call(ctx, http.MethodPost, "/api/domains/9/start", nil)
	var apiErr *apiError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Equal(t, "CONFLICT", apiErr.Code)
	require.Contains(t, err.Error(), "[step process.start]")

	_, err = cl.call(ctx, http.MethodGet, "/nope", nil)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "HTTP_ERROR", apiErr.Code)
	require.Equal(t, "upstream down", apiErr.Message)

	body, err := cl.call(ctx, http.MethodGet, "/api/domains", nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, printer{w: &buf, format: "text"}.domains(body))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "ID"))
	require.Contains(t, lines[1], "alpha")
	require.Contains(t, lines[1], "online")
}

func TestParseID(t *testing.T) {
	_, err := parseID("0")
	require.Error(t, err)
	_, err = parseID("abc")
	require.Error(t, err)
	id, err := parseID("42")
	require.NoError(t, err)
	require.Equal(t, int64(42), id)
}

func TestPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := printer{w: &buf, format: "json"}
	require.NoError(t, p.json([]byte(`{"a":1}`)))
	require.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, p.json(nil))
	require.Equal(t, "ok\n", buf.String())
}
