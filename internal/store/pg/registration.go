package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
)

type requestRepo struct{ pool *pgxpool.Pool }

const requestColumns = `id, subdomain, owner_name, owner_email, data_source, title, api_secret,
	dexcom_username, dexcom_password, dexcom_server, status, requested_at, changed_at, changed_by`

func scanRequest(row pgx.Row) (*repository.RegistrationRequest, error) {
	var q repository.RegistrationRequest
	var status string
	err := row.Scan(&q.ID, &q.Subdomain, &q.OwnerName, &q.OwnerEmail, &q.DataSource, &q.Title, &q.APISecret,
		&q.DexcomUsername, &q.DexcomPassword, &q.DexcomServer, &status, &q.RequestedAt, &q.ChangedAt, &q.ChangedBy)
	if err != nil {
		return nil, mapErr(err)
	}
	q.Status = repository.RequestStatus(status)
	return &q, nil
}

func (r *requestRepo) Create(ctx context.Context, in repository.CreateRequestInput) (*repository.RegistrationRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `
		INSERT INTO register_request (subdomain, owner_name, owner_email, data_source, title, api_secret,
			dexcom_username, dexcom_password, dexcom_server)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+requestColumns,
		in.Subdomain, in.OwnerName, in.OwnerEmail, in.DataSource, in.Title, in.APISecret,
		in.DexcomUsername, in.DexcomPassword, in.DexcomServer))
}

func (r *requestRepo) Get(ctx context.Context, id int64) (*repository.RegistrationRequest, error) {
	return scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM register_request WHERE id = $1`, id))
}

func (r *requestRepo) List(ctx context.Context, status repository.RequestStatus) ([]repository.RegistrationRequest, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM register_request
		WHERE $1 = '' OR status = $1 ORDER BY id DESC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []repository.RegistrationRequest{}
	for rows.Next() {
		q, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

func (r *requestRepo) PendingSubdomainExists(ctx context.Context, sub string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM register_request WHERE subdomain = $1 AND status = 'pending')`, sub).Scan(&ok)
	return ok, mapErr(err)
}

// Decide sólo transiciona desde pending; el WHERE hace de compare-and-swap.
func (r *requestRepo) Decide(ctx context.Context, id int64, status repository.RequestStatus, actor string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE register_request SET status = $2, changed_by = $3, changed_at = $4
		WHERE id = $1 AND status = 'pending'`, id, string(status), actor, at)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM register_request WHERE id = $1)`, id).Scan(&exists); err != nil {
		return mapErr(err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

func (r *requestRepo) DeleteBySubdomain(ctx context.Context, sub string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM register_request WHERE subdomain = $1`, sub)
	return mapErr(err)
}

type validationRepo struct{ pool *pgxpool.Pool }

func (r *validationRepo) Put(ctx context.Context, v repository.EmailValidation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO register_email_validation (email_address, validation_code, sent_at) VALUES ($1, $2, $3)`,
		v.Email, v.Code, v.SentAt)
	return mapErr(err)
}

func (r *validationRepo) Match(ctx context.Context, email, code string, since time.Time) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM register_email_validation
			WHERE LOWER(email_address) = LOWER($1) AND validation_code = $2 AND sent_at > $3)`,
		email, code, since).Scan(&ok)
	return ok, mapErr(err)
}

func (r *validationRepo) DeleteByEmail(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM register_email_validation WHERE LOWER(email_address) = LOWER($1)`, email)
	return mapErr(err)
}
