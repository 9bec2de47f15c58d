package pg

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
)

type domainRepo struct{ pool *pgxpool.Pool }

const domainColumns = `id, domain, title, api_secret, enable, show_plugins, ns_version,
	bridge_server, bridge_username, bridge_password, active, db_exists,
	COALESCE(owner_id::text, ''), created_at, updated_at`

func scanDomain(row pgx.Row) (*repository.Domain, error) {
	var d repository.Domain
	err := row.Scan(&d.ID, &d.Domain, &d.Title, &d.APISecret, &d.Enable, &d.ShowPlugins, &d.NSVersion,
		&d.BridgeServer, &d.BridgeUsername, &d.BridgePassword, &d.Active, &d.DBExists,
		&d.OwnerID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *domainRepo) list(ctx context.Context, where string, args ...any) ([]repository.Domain, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+domainColumns+` FROM domains `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []repository.Domain{}
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachEnvironments(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachEnvironments carga los overrides de todos los Domains en una query.
func (r *domainRepo) attachEnvironments(ctx context.Context, ds []repository.Domain) error {
	if len(ds) == 0 {
		return nil
	}
	ids := make([]int64, len(ds))
	idx := make(map[int64]int, len(ds))
	for i, d := range ds {
		ids[i] = d.ID
		idx[d.ID] = i
	}
	rows, err := r.pool.Query(ctx,
		`SELECT domain_id, variable, value FROM domain_environments
		 WHERE domain_id = ANY($1) ORDER BY domain_id, position`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id int64
			e  repository.Environment
		)
		if err := rows.Scan(&id, &e.Variable, &e.Value); err != nil {
			return err
		}
		i := idx[id]
		ds[i].Environments = append(ds[i].Environments, e)
	}
	return rows.Err()
}

func (r *domainRepo) List(ctx context.Context) ([]repository.Domain, error) {
	return r.list(ctx, "")
}

func (r *domainRepo) ListByOwner(ctx context.Context, ownerID string) ([]repository.Domain, error) {
	return r.list(ctx, "WHERE owner_id::text = $1", ownerID)
}

func (r *domainRepo) getOne(ctx context.Context, where string, arg any) (*repository.Domain, error) {
	d, err := scanDomain(r.pool.QueryRow(ctx, `SELECT `+domainColumns+` FROM domains WHERE `+where, arg))
	if err != nil {
		return nil, err
	}
	ds := []repository.Domain{*d}
	if err := r.attachEnvironments(ctx, ds); err != nil {
		return nil, err
	}
	return &ds[0], nil
}

func (r *domainRepo) Get(ctx context.Context, id int64) (*repository.Domain, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *domainRepo) GetBySubdomain(ctx context.Context, sub string) (*repository.Domain, error) {
	return r.getOne(ctx, "domain = $1", sub)
}

func replaceEnvironments(ctx context.Context, q querier, id int64, envs []repository.Environment) error {
	if _, err := q.Exec(ctx, `DELETE FROM domain_environments WHERE domain_id = $1`, id); err != nil {
		return err
	}
	for i, e := range envs {
		_, err := q.Exec(ctx,
			`INSERT INTO domain_environments (domain_id, position, variable, value) VALUES ($1, $2, $3, $4)`,
			id, i, e.Variable, e.Value)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *domainRepo) Create(ctx context.Context, in repository.CreateDomainInput) (*repository.Domain, error) {
	var id int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO domains (domain, title, api_secret, enable, show_plugins, ns_version,
				bridge_server, bridge_username, bridge_password, active, owner_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, '')::uuid)
			RETURNING id`,
			in.Domain, in.Title, in.APISecret, in.Enable, in.ShowPlugins, in.NSVersion,
			in.BridgeServer, in.BridgeUsername, in.BridgePassword, in.Active, in.OwnerID,
		).Scan(&id)
		if err != nil {
			return err
		}
		return replaceEnvironments(ctx, tx, id, in.Environments)
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return r.Get(ctx, id)
}

// updateSet arma el SET dinámico con los campos no-nil del patch.
type updateSet struct {
	cols []string
	args []any
}

func (u *updateSet) add(col string, v any) {
	u.args = append(u.args, v)
	u.cols = append(u.cols, fmt.Sprintf("%s = $%d", col, len(u.args)))
}

func addIf[T any](u *updateSet, col string, v *T) {
	if v != nil {
		u.add(col, *v)
	}
}

func (r *domainRepo) Update(ctx context.Context, id int64, in repository.UpdateDomainInput) (*repository.Domain, error) {
	var u updateSet
	addIf(&u, "title", in.Title)
	addIf(&u, "api_secret", in.APISecret)
	addIf(&u, "enable", in.Enable)
	addIf(&u, "show_plugins", in.ShowPlugins)
	addIf(&u, "ns_version", in.NSVersion)
	addIf(&u, "bridge_server", in.BridgeServer)
	addIf(&u, "bridge_username", in.BridgeUsername)
	addIf(&u, "bridge_password", in.BridgePassword)
	addIf(&u, "active", in.Active)
	if in.OwnerID != nil {
		u.args = append(u.args, *in.OwnerID)
		u.cols = append(u.cols, fmt.Sprintf("owner_id = NULLIF($%d, '')::uuid", len(u.args)))
	}
	u.cols = append(u.cols, "updated_at = NOW()")
	u.args = append(u.args, id)
	q := fmt.Sprintf(`UPDATE domains SET %s WHERE id = $%d`, strings.Join(u.cols, ", "), len(u.args))

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, q, u.args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return pgx.ErrNoRows
		}
		if in.Environments != nil {
			return replaceEnvironments(ctx, tx, id, *in.Environments)
		}
		return nil
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return r.Get(ctx, id)
}

// SetDBExists toca sólo db_exists para no pisar ediciones concurrentes.
func (r *domainRepo) SetDBExists(ctx context.Context, id int64, exists bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE domains SET db_exists = $2, updated_at = NOW() WHERE id = $1`, id, exists)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *domainRepo) Delete(ctx context.Context, id int64) error {
	// domain_environments cae por ON DELETE CASCADE
	tag, err := r.pool.Exec(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *domainRepo) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM domains WHERE owner_id::text = $1`, ownerID).Scan(&n)
	return n, mapErr(err)
}
