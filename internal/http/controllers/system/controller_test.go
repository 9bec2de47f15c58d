package system

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthz(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("dial tcp: connection refused") })

	t.Run("all up", func(t *testing.T) {
		c := NewController(Deps{Version: "1.2.0", Checks: map[string]Pinger{"store": up, "cache": up}})
		rec := httptest.NewRecorder()
		c.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body healthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "1.2.0", body.Version)
		assert.Equal(t, map[string]string{"store": "up", "cache": "up"}, body.Components)
	})

	t.Run("component down", func(t *testing.T) {
		c := NewController(Deps{Checks: map[string]Pinger{"store": down, "cache": up, "mongo": down}})
		rec := httptest.NewRecorder()
		c.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var body struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Code)
		assert.Equal(t, "down: mongo, store", body.Detail)
	})
}
