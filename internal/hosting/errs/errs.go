// Package errs define la taxonomía de errores de hosting compartida por los
// componentes hoja (zone, vhost, tenantdb, runtime) y el orquestador.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	// KindValidation: identificador mal formado; nunca hubo side effects.
	KindValidation Kind = "validation"
	// KindConflict: precondición de la operación no se cumple; sin side effects.
	KindConflict Kind = "conflict"
	// KindProvisioning: falló una acción externa; puede haber side effects parciales.
	KindProvisioning Kind = "provisioning"
	// KindNotFound: no existe o el actor no tiene visibilidad.
	KindNotFound Kind = "not_found"
	// KindUnauthorized: actor no autenticado o sin permiso para la acción.
	KindUnauthorized Kind = "unauthorized"
	// KindIO: fallo de archivo o comando dentro de un componente hoja.
	KindIO Kind = "io"
)

// Error lleva el contexto de la falla: qué operación, sobre qué subdominio y
// en qué paso. Err es la causa original.
type Error struct {
	Kind      Kind
	Op        string
	Subdomain string
	Step      string
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Subdomain != "" {
		b.WriteString(" ")
		b.WriteString(e.Subdomain)
	}
	if e.Step != "" {
		b.WriteString(" [")
		b.WriteString(e.Step)
		b.WriteString("]")
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Reason es el texto corto para mostrar al usuario.
func (e *Error) Reason() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func newf(k Kind, op, sub, format string, args ...any) *Error {
	return &Error{Kind: k, Op: op, Subdomain: sub, Msg: fmt.Sprintf(format, args...)}
}

func Validation(op, sub, format string, args ...any) *Error {
	return newf(KindValidation, op, sub, format, args...)
}

func Conflict(op, sub, format string, args ...any) *Error {
	return newf(KindConflict, op, sub, format, args...)
}

func NotFound(op, format string, args ...any) *Error {
	return newf(KindNotFound, op, "", format, args...)
}

func Unauthorized(op, format string, args ...any) *Error {
	return newf(KindUnauthorized, op, "", format, args...)
}

// IO envuelve una falla de archivo o comando.
func IO(op, sub, step string, err error) *Error {
	return &Error{Kind: KindIO, Op: op, Subdomain: sub, Step: step, Err: err}
}

// Provisioning envuelve la falla de un paso hoja desde el orquestador.
// Si err ya es Validation se preserva ese kind.
func Provisioning(op, sub, step string, err error) *Error {
	k := KindProvisioning
	if KindOf(err) == KindValidation {
		k = KindValidation
	}
	return &Error{Kind: k, Op: op, Subdomain: sub, Step: step, Err: err}
}

// KindOf devuelve el kind del primer *Error en la cadena, o "" si no hay.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reporta si err (o algo en su cadena) es un *Error del kind dado.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
