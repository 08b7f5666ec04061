package postgres

import (
	"context"

	"github.com/pressly/goose/v3"

	"github.com/aussiebroadwan/authflow/internal/auth/store/drivers/postgres/migrations"
)

// ApplyMigrations runs the embedded goose migrations.
func (s *Store) ApplyMigrations() error {
	provider, err := goose.NewProvider(goose.DialectPostgres, s.DB(), migrations.Migrations)
	if err != nil {
		return err
	}
	_, err = provider.Up(context.Background())
	return err
}
