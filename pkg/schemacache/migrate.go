package schemacache

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed migrations/*.sql
var migrations embed.FS

// migrator returns a goose provider over the store's embedded migrations.
// Providers carry their own state, so stores opened concurrently do not
// share goose's package-level settings.
func (s *SQLiteStore) migrator() (*goose.Provider, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	dir, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot migrations: %w", err)
	}
	p, err := goose.NewProvider(database.DialectSQLite3, s.db, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare snapshot migrations: %w", err)
	}
	return p, nil
}

// Migrate brings the snapshot schema up to date.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	p, err := s.migrator()
	if err != nil {
		return err
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate snapshot database: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied snapshot schema version.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int64, error) {
	p, err := s.migrator()
	if err != nil {
		return 0, err
	}
	return p.GetDBVersion(ctx)
}
