package helpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	read := func(ct, body string) (*httptest.ResponseRecorder, payload, bool) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		rec := httptest.NewRecorder()
		var p payload
		ok := ReadJSON(rec, req, &p)
		return rec, p, ok
	}
	code := func(t *testing.T, rec *httptest.ResponseRecorder) string {
		t.Helper()
		var body struct {
			Code string `json:"code"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		return body.Code
	}

	_, p, ok := read("application/json; charset=utf-8", `{"name":"alpha","extra":1}`)
	require.True(t, ok)
	assert.Equal(t, "alpha", p.Name)

	_, _, ok = read("application/json", "")
	require.True(t, ok, "empty body is accepted")

	rec, _, ok := read("text/plain", `{"name":"alpha"}`)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", code(t, rec))

	rec, _, ok = read("application/json", `{"name":`)
	require.False(t, ok)
	assert.Equal(t, "INVALID_JSON", code(t, rec))

	rec, _, ok = read("application/json", `{"name":"`+strings.Repeat("a", 1<<20)+`"}`)
	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BAD_REQUEST", code(t, rec))
}
