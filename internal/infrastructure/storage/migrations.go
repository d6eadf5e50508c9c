package storage

import (
	"context"
	"fmt"

	"github.com/pressly/goose/v3"

	// Register Go migrations
	_ "github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage/migrations"
)

// runMigrations applies every pending migration registered by the
// migrations package.
func (s *Storage) runMigrations(ctx context.Context) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, nil)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	// No provider.Close: it closes s.db.
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	for _, r := range results {
		s.logger.Info("applied migration",
			"version", r.Source.Version,
			"duration", r.Duration.String())
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Storage) SchemaVersion(ctx context.Context) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, nil)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}
