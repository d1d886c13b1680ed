package postgres

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
)

// Migrator applies the schema migrations under a directory.
type Migrator struct {
	databaseURL    string
	migrationsPath string
	logger         zerolog.Logger
}

// NewMigrator creates a new Migrator.
func NewMigrator(databaseURL, migrationsPath string, logger zerolog.Logger) *Migrator {
	return &Migrator{
		databaseURL:    databaseURL,
		migrationsPath: migrationsPath,
		logger:         logger,
	}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	mg, err := migrate.New("file://"+m.migrationsPath, m.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mg, nil
}

func closeMigrate(mg *migrate.Migrate) error {
	srcErr, dbErr := mg.Close()
	return errors.Join(srcErr, dbErr)
}

// Up applies all pending migrations.
func (m *Migrator) Up() (err error) {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeMigrate(mg)) }()

	if err := mg.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info().Msg("database migrations: no change")
			return nil
		}
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	m.logger.Info().Msg("database migrations: applied successfully")
	return nil
}

// Down rolls back the last migration.
func (m *Migrator) Down() (err error) {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeMigrate(mg)) }()

	if err := mg.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	m.logger.Info().Msg("database migrations: rolled back successfully")
	return nil
}

// Version reports the applied schema version and whether it is dirty.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	mg, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer func() { err = errors.Join(err, closeMigrate(mg)) }()

	version, dirty, err = mg.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read migration version: %w", err)
	}
	return version, dirty, nil
}
