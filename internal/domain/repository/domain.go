package repository

import (
	"context"
	"strings"
	"time"
)

// Domain es una instancia Nightscout hospedada.
type Domain struct {
	ID     int64
	Domain string // subdominio
	Title  string

	APISecret   string
	Enable      string // features separadas por espacio
	ShowPlugins string
	// NSVersion es el directorio de instalación fijado (vacío = default).
	NSVersion string

	BridgeServer   string
	BridgeUsername string
	BridgePassword string

	Active   bool
	DBExists bool

	// OwnerID es el id del User dueño; vacío si se desconoce.
	OwnerID string

	Environments []Environment

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Environment es un override de variable aplicado al arrancar el proceso.
type Environment struct {
	Variable string
	Value    string
}

// HasFeature reporta si token está en la lista Enable.
func (d *Domain) HasFeature(token string) bool {
	if token == "" {
		return false
	}
	for _, f := range strings.Fields(d.Enable) {
		if f == token {
			return true
		}
	}
	return false
}

// CreateDomainInput son los campos requeridos al crear un Domain.
type CreateDomainInput struct {
	Domain         string
	Title          string
	APISecret      string
	Enable         string
	ShowPlugins    string
	NSVersion      string
	BridgeServer   string
	BridgeUsername string
	BridgePassword string
	Active         bool
	OwnerID        string
	Environments   []Environment
}

// UpdateDomainInput: nil = no tocar. Environments != nil reemplaza el set completo.
type UpdateDomainInput struct {
	Title          *string
	APISecret      *string
	Enable         *string
	ShowPlugins    *string
	NSVersion      *string
	BridgeServer   *string
	BridgeUsername *string
	BridgePassword *string
	Active         *bool
	OwnerID        *string
	Environments   *[]Environment
}

type DomainRepository interface {
	List(ctx context.Context) ([]Domain, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Domain, error)
	Get(ctx context.Context, id int64) (*Domain, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*Domain, error)
	// Create devuelve ErrConflict si el subdominio ya existe.
	Create(ctx context.Context, in CreateDomainInput) (*Domain, error)
	Update(ctx context.Context, id int64, in UpdateDomainInput) (*Domain, error)
	// SetDBExists actualiza sólo la columna db_exists.
	SetDBExists(ctx context.Context, id int64, exists bool) error
	// Delete borra el Domain y sus environments.
	Delete(ctx context.Context, id int64) error
	CountByOwner(ctx context.Context, ownerID string) (int, error)
}
