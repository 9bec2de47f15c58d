// Package authz define quién está llamando (Actor) y las reglas de
// visibilidad sobre Domains.
package authz

import (
	"context"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
)

// Actor es la identidad autenticada que invoca una operación.
type Actor struct {
	UserID string
	Email  string
	Admin  bool
}

// Authenticated reporta si el actor tiene identidad.
func (a Actor) Authenticated() bool { return a.UserID != "" || a.Admin }

// CanManage: admins ven todo; usuarios sólo sus Domains.
func (a Actor) CanManage(d *repository.Domain) bool {
	if a.Admin {
		return true
	}
	return d != nil && a.UserID != "" && d.OwnerID == a.UserID
}

type ctxKey struct{}

func ToContext(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

// FromContext devuelve el actor del request; el zero value si no hay.
func FromContext(ctx context.Context) Actor {
	a, _ := ctx.Value(ctxKey{}).(Actor)
	return a
}
