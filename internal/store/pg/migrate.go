package pg

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver "pgx" para goose
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationsDir = "migrations"

func openForMigrations(dsn string) (*sql.DB, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set dialect: %w", err)
	}
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db for migrations: %w", err)
	}
	return db, nil
}

// Migrate aplica todas las migraciones pendientes.
func Migrate(ctx context.Context, dsn string) error {
	db, err := openForMigrations(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Rollback deshace las últimas steps migraciones.
func Rollback(ctx context.Context, dsn string, steps int) error {
	db, err := openForMigrations(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	for range steps {
		if err := goose.DownContext(ctx, db, migrationsDir); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	}
	return nil
}

// Status imprime el estado de cada migración vía el logger de goose.
func Status(ctx context.Context, dsn string) error {
	db, err := openForMigrations(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return goose.StatusContext(ctx, db, migrationsDir)
}

// Version devuelve la versión aplicada.
func Version(ctx context.Context, dsn string) (int64, error) {
	db, err := openForMigrations(dsn)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	return goose.GetDBVersionContext(ctx, db)
}
