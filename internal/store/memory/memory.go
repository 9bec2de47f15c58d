// Package memory implementa los repositorios en memoria. Se usa con
// storage.driver=memory (dev) y en tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
)

// Store agrupa los repositorios sobre un mismo mutex.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	domains      map[int64]*repository.Domain
	nextDomainID int64

	users map[string]*repository.User

	requests      map[int64]*repository.RegistrationRequest
	nextRequestID int64

	validations map[string][]repository.EmailValidation
}

func New() *Store {
	return &Store{
		now:         time.Now,
		domains:     map[int64]*repository.Domain{},
		users:       map[string]*repository.User{},
		requests:    map[int64]*repository.RegistrationRequest{},
		validations: map[string][]repository.EmailValidation{},
	}
}

func (s *Store) Domains() repository.DomainRepository { return &domainRepo{s} }

func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

func (s *Store) Requests() repository.RegistrationRepository { return &requestRepo{s} }

func (s *Store) EmailValidations() repository.EmailValidationRepository { return &validationRepo{s} }

// ─── Domains ───

type domainRepo struct{ s *Store }

func cloneDomain(d *repository.Domain) *repository.Domain {
	c := *d
	c.Environments = append([]repository.Environment(nil), d.Environments...)
	return &c
}

func (r *domainRepo) sorted(keep func(*repository.Domain) bool) []repository.Domain {
	out := make([]repository.Domain, 0, len(r.s.domains))
	for _, d := range r.s.domains {
		if keep(d) {
			out = append(out, *cloneDomain(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *domainRepo) List(_ context.Context) ([]repository.Domain, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.sorted(func(*repository.Domain) bool { return true }), nil
}

func (r *domainRepo) ListByOwner(_ context.Context, ownerID string) ([]repository.Domain, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.sorted(func(d *repository.Domain) bool { return ownerID != "" && d.OwnerID == ownerID }), nil
}

func (r *domainRepo) Get(_ context.Context, id int64) (*repository.Domain, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.domains[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneDomain(d), nil
}

func (r *domainRepo) GetBySubdomain(_ context.Context, sub string) (*repository.Domain, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, d := range r.s.domains {
		if d.Domain == sub {
			return cloneDomain(d), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *domainRepo) Create(_ context.Context, in repository.CreateDomainInput) (*repository.Domain, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.domains {
		if d.Domain == in.Domain {
			return nil, repository.ErrConflict
		}
	}
	r.s.nextDomainID++
	now := r.s.now()
	d := &repository.Domain{
		ID:             r.s.nextDomainID,
		Domain:         in.Domain,
		Title:          in.Title,
		APISecret:      in.APISecret,
		Enable:         in.Enable,
		ShowPlugins:    in.ShowPlugins,
		NSVersion:      in.NSVersion,
		BridgeServer:   in.BridgeServer,
		BridgeUsername: in.BridgeUsername,
		BridgePassword: in.BridgePassword,
		Active:         in.Active,
		OwnerID:        in.OwnerID,
		Environments:   append([]repository.Environment(nil), in.Environments...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.domains[d.ID] = d
	return cloneDomain(d), nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (r *domainRepo) Update(_ context.Context, id int64, in repository.UpdateDomainInput) (*repository.Domain, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.domains[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	setIf(&d.Title, in.Title)
	setIf(&d.APISecret, in.APISecret)
	setIf(&d.Enable, in.Enable)
	setIf(&d.ShowPlugins, in.ShowPlugins)
	setIf(&d.NSVersion, in.NSVersion)
	setIf(&d.BridgeServer, in.BridgeServer)
	setIf(&d.BridgeUsername, in.BridgeUsername)
	setIf(&d.BridgePassword, in.BridgePassword)
	setIf(&d.Active, in.Active)
	setIf(&d.OwnerID, in.OwnerID)
	if in.Environments != nil {
		d.Environments = append([]repository.Environment(nil), (*in.Environments)...)
	}
	d.UpdatedAt = r.s.now()
	return cloneDomain(d), nil
}

func (r *domainRepo) SetDBExists(_ context.Context, id int64, exists bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.domains[id]
	if !ok {
		return repository.ErrNotFound
	}
	d.DBExists = exists
	d.UpdatedAt = r.s.now()
	return nil
}

func (r *domainRepo) Delete(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.domains[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.domains, id)
	return nil
}

func (r *domainRepo) CountByOwner(_ context.Context, ownerID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, d := range r.s.domains {
		if d.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

// ─── Users ───

type userRepo struct{ s *Store }

func (r *userRepo) GetByID(_ context.Context, id string) (*repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, in.Email) {
			return nil, repository.ErrConflict
		}
	}
	role := in.Role
	if role == "" {
		role = repository.RoleUser
	}
	u := &repository.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		Role:         role,
		LoginAllowed: true,
		CreatedAt:    r.s.now(),
	}
	r.s.users[u.ID] = u
	c := *u
	return &c, nil
}

func (r *userRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

// ─── Registration requests ───

type requestRepo struct{ s *Store }

func (r *requestRepo) Create(_ context.Context, in repository.CreateRequestInput) (*repository.RegistrationRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, q := range r.s.requests {
		if q.Status == repository.RequestPending && q.Subdomain == in.Subdomain {
			return nil, repository.ErrConflict
		}
	}
	r.s.nextRequestID++
	q := &repository.RegistrationRequest{
		ID:             r.s.nextRequestID,
		Subdomain:      in.Subdomain,
		OwnerName:      in.OwnerName,
		OwnerEmail:     in.OwnerEmail,
		DataSource:     in.DataSource,
		Title:          in.Title,
		APISecret:      in.APISecret,
		DexcomUsername: in.DexcomUsername,
		DexcomPassword: in.DexcomPassword,
		DexcomServer:   in.DexcomServer,
		Status:         repository.RequestPending,
		RequestedAt:    r.s.now(),
	}
	r.s.requests[q.ID] = q
	c := *q
	return &c, nil
}

func (r *requestRepo) Get(_ context.Context, id int64) (*repository.RegistrationRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q, ok := r.s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *q
	return &c, nil
}

func (r *requestRepo) List(_ context.Context, status repository.RequestStatus) ([]repository.RegistrationRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []repository.RegistrationRequest{}
	for _, q := range r.s.requests {
		if status == "" || q.Status == status {
			out = append(out, *q)
		}
	}
	// más recientes primero
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *requestRepo) PendingSubdomainExists(_ context.Context, sub string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, q := range r.s.requests {
		if q.Status == repository.RequestPending && q.Subdomain == sub {
			return true, nil
		}
	}
	return false, nil
}

func (r *requestRepo) Decide(_ context.Context, id int64, status repository.RequestStatus, actor string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q, ok := r.s.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	if q.Status != repository.RequestPending {
		return repository.ErrConflict
	}
	q.Status = status
	q.ChangedBy = actor
	q.ChangedAt = &at
	return nil
}

func (r *requestRepo) DeleteBySubdomain(_ context.Context, sub string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, q := range r.s.requests {
		if q.Subdomain == sub {
			delete(r.s.requests, id)
		}
	}
	return nil
}

// ─── Email validations ───

type validationRepo struct{ s *Store }

func (r *validationRepo) Put(_ context.Context, v repository.EmailValidation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := strings.ToLower(v.Email)
	r.s.validations[key] = append(r.s.validations[key], v)
	return nil
}

func (r *validationRepo) Match(_ context.Context, email, code string, since time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, v := range r.s.validations[strings.ToLower(email)] {
		if v.Code == code && v.SentAt.After(since) {
			return true, nil
		}
	}
	return false, nil
}

func (r *validationRepo) DeleteByEmail(_ context.Context, email string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.validations, strings.ToLower(email))
	return nil
}
