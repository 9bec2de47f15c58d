package pg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.ErrorIs(t, mapErr(pgx.ErrNoRows), repository.ErrNotFound)
	assert.ErrorIs(t, mapErr(fmt.Errorf("scan: %w", pgx.ErrNoRows)), repository.ErrNotFound)

	dup := &pgconn.PgError{Code: "23505", ConstraintName: "domains_domain_key"}
	err := mapErr(dup)
	require.ErrorIs(t, err, repository.ErrConflict)
	assert.Contains(t, err.Error(), "domains_domain_key")

	other := errors.New("boom")
	assert.Same(t, other, mapErr(other))
}

func TestUpdateSet(t *testing.T) {
	var u updateSet
	title := "Mi NS"
	active := false
	addIf(&u, "title", &title)
	addIf[string](&u, "api_secret", nil)
	addIf(&u, "active", &active)

	assert.Equal(t, []string{"title = $1", "active = $2"}, u.cols)
	assert.Equal(t, []any{"Mi NS", false}, u.args)
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "00001_init.sql", entries[0].Name())
}
