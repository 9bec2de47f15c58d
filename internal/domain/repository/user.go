package repository

import (
	"context"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User es el dueño de uno o más Domains.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         string
	LoginAllowed bool
	CreatedAt    time.Time
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

type CreateUserInput struct {
	Name  string
	Email string
	Role  string
}

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// Create devuelve ErrConflict si el email ya existe.
	Create(ctx context.Context, in CreateUserInput) (*User, error)
	Delete(ctx context.Context, id string) error
}
