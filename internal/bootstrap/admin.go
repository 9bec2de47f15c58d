// Package bootstrap prepara el estado mínimo que el servicio necesita al
// arrancar.
package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// EnsureAdmins crea un usuario admin por cada email configurado que todavía
// no exista. Un usuario existente no se modifica aunque tenga rol user.
// Devuelve cuántos usuarios se crearon.
func EnsureAdmins(ctx context.Context, users repository.UserRepository, emails []string) (int, error) {
	log := logger.From(ctx).With(logger.Component("bootstrap"))
	created := 0
	seen := make(map[string]struct{}, len(emails))
	for _, raw := range emails {
		addr := strings.ToLower(strings.TrimSpace(raw))
		if addr == "" {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		u, err := users.GetByEmail(ctx, addr)
		switch {
		case err == nil:
			if !u.IsAdmin() {
				log.Warn("configured admin email belongs to a non-admin user", logger.Email(addr))
			}
			continue
		case !repository.IsNotFound(err):
			return created, fmt.Errorf("bootstrap: lookup %s: %w", addr, err)
		}

		name, _, _ := strings.Cut(addr, "@")
		if _, err := users.Create(ctx, repository.CreateUserInput{Name: name, Email: addr, Role: repository.RoleAdmin}); err != nil {
			if repository.IsConflict(err) {
				continue
			}
			return created, fmt.Errorf("bootstrap: create %s: %w", addr, err)
		}
		created++
		log.Info("admin user created", logger.Email(addr))
	}
	return created, nil
}
