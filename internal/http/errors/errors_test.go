package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/registration"
)

func TestFromError_StatusByKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"validation", errs.Validation("create", "x", "bad"), http.StatusBadRequest},
		{"conflict", errs.Conflict("start", "x", "already running"), http.StatusConflict},
		{"provisioning", errs.Provisioning("initialize", "x", "zone.create", fmt.Errorf("rndc")), http.StatusBadGateway},
		{"not found", errs.NotFound("get", "domain 1 not found"), http.StatusNotFound},
		{"unauthorized", errs.Unauthorized("startall", "admin role required"), http.StatusUnauthorized},
		{"io", errs.IO("delete", "x", "record.delete", fmt.Errorf("disk")), http.StatusInternalServerError},
		{"captcha", &errs.Error{Kind: errs.KindUnauthorized, Err: registration.ErrCaptchaFailed}, http.StatusForbidden},
		{"code", fmt.Errorf("submit: %w", &errs.Error{Kind: errs.KindUnauthorized, Err: registration.ErrInvalidCode}), http.StatusForbidden},
		{"repo not found", repository.ErrNotFound, http.StatusNotFound},
		{"repo conflict", fmt.Errorf("%w: users_email", repository.ErrConflict), http.StatusConflict},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
		{"app error", ErrRateLimitExceeded, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromError(tc.err).HTTPStatus)
		})
	}
}

func TestWriteError_IncludesStepAndRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("X-Request-ID", "rid-1")
	WriteError(rec, errs.Provisioning("initialize", "testsub", "vhost.create", fmt.Errorf("nginx -t failed")))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PROVISIONING_FAILED", body["code"])
	assert.Equal(t, "vhost.create", body["step"])
	assert.Equal(t, "nginx -t failed", body["detail"])
	assert.Equal(t, "rid-1", body["request_id"])
}

func TestWithDetail_DoesNotMutateBase(t *testing.T) {
	_ = ErrConflict.WithDetail("x")
	assert.Empty(t, ErrConflict.Detail)
}
