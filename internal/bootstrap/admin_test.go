package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/store/memory"
)

func TestEnsureAdmins(t *testing.T) {
	ctx := context.Background()
	users := memory.New().Users()

	_, err := users.Create(ctx, repository.CreateUserInput{Name: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	n, err := EnsureAdmins(ctx, users, []string{" Ops@Example.com ", "ops@example.com", "", "bob@example.com"})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	ops, err := users.GetByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	require.True(t, ops.IsAdmin())
	require.Equal(t, "ops", ops.Name)

	// bob existía como user y no se promueve
	bob, err := users.GetByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.False(t, bob.IsAdmin())

	n, err = EnsureAdmins(ctx, users, []string{"ops@example.com"})
	require.NoError(t, err)
	require.Zero(t, n)
}
