// Package errors traduce los errores del dominio a respuestas HTTP.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/registration"
)

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Step      string `json:"step,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError escribe err como JSON. Cualquier error se normaliza con FromError.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	resp := errorResponse{
		Code:      appErr.Code,
		Message:   appErr.Message,
		Detail:    appErr.Detail,
		RequestID: w.Header().Get("X-Request-ID"),
	}
	var he *errs.Error
	if stderrors.As(appErr.Err, &he) {
		resp.Step = he.Step
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// FromError convierte errores de otras capas en AppError. Lo desconocido es 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if a := FromHosting(err); a != nil {
		return a
	}
	switch {
	case repository.IsNotFound(err):
		return ErrNotFound.WithCause(err)
	case repository.IsConflict(err):
		return ErrConflict.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// FromHosting mapea la taxonomía de errs a status HTTP. Devuelve nil si err
// no es un *errs.Error.
func FromHosting(err error) *AppError {
	var he *errs.Error
	if !stderrors.As(err, &he) {
		return nil
	}
	switch he.Kind {
	case errs.KindValidation:
		return ErrValidation.WithDetail(he.Reason()).WithCause(err)
	case errs.KindConflict:
		return ErrConflict.WithDetail(he.Reason()).WithCause(err)
	case errs.KindProvisioning:
		return ErrProvisioning.WithDetail(he.Reason()).WithCause(err)
	case errs.KindNotFound:
		return ErrNotFound.WithDetail(he.Reason()).WithCause(err)
	case errs.KindUnauthorized:
		switch {
		case stderrors.Is(err, registration.ErrCaptchaFailed):
			return ErrCaptchaFailed.WithCause(err)
		case stderrors.Is(err, registration.ErrInvalidCode):
			return ErrInvalidCode.WithCause(err)
		}
		return ErrUnauthorized.WithDetail(he.Reason()).WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}
