package repository

import (
	"context"
	"time"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

const (
	DataSourceDexcom = "Dexcom"
	DataSourceAPI    = "API"
)

// RegistrationRequest es el pedido de un aspirante a recibir un Domain.
type RegistrationRequest struct {
	ID             int64
	Subdomain      string
	OwnerName      string
	OwnerEmail     string
	DataSource     string
	Title          string
	APISecret      string
	DexcomUsername string
	DexcomPassword string
	DexcomServer   string
	Status         RequestStatus
	RequestedAt    time.Time
	ChangedAt      *time.Time
	ChangedBy      string
}

type CreateRequestInput struct {
	Subdomain      string
	OwnerName      string
	OwnerEmail     string
	DataSource     string
	Title          string
	APISecret      string
	DexcomUsername string
	DexcomPassword string
	DexcomServer   string
}

type RegistrationRepository interface {
	Create(ctx context.Context, in CreateRequestInput) (*RegistrationRequest, error)
	Get(ctx context.Context, id int64) (*RegistrationRequest, error)
	// List filtra por status; "" devuelve todos.
	List(ctx context.Context, status RequestStatus) ([]RegistrationRequest, error)
	PendingSubdomainExists(ctx context.Context, subdomain string) (bool, error)
	// Decide pasa un request pending a status. Si ya no está pending devuelve ErrConflict.
	Decide(ctx context.Context, id int64, status RequestStatus, actor string, at time.Time) error
	DeleteBySubdomain(ctx context.Context, subdomain string) error
}

// EmailValidation es un código enviado a un email, válido por una ventana fija.
type EmailValidation struct {
	Email  string
	Code   string
	SentAt time.Time
}

type EmailValidationRepository interface {
	Put(ctx context.Context, v EmailValidation) error
	// Match reporta si hay un código igual a code para email enviado después de since.
	Match(ctx context.Context, email, code string, since time.Time) (bool, error)
	DeleteByEmail(ctx context.Context, email string) error
}
