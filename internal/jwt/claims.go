// Package jwt emite y valida los bearer tokens (HS256) que identifican al
// actor de la API.
package jwt

import (
	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/nshost/internal/authz"
	"github.com/dropDatabas3/nshost/internal/domain/repository"
)

// AccessClaims: sub es el id del User; role es admin|user.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwtv5.RegisteredClaims
}

// Actor traduce los claims a la identidad usada por el orquestador.
func (c *AccessClaims) Actor() authz.Actor {
	return authz.Actor{
		UserID: c.Subject,
		Email:  c.Email,
		Admin:  c.Role == repository.RoleAdmin,
	}
}
