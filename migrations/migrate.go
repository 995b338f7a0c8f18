package migrations

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/quocanhngo/delivertalk/pkg/logger"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// open builds a migrator over the embedded schema. Callers must Close it.
func open(dbURL string) (*migrate.Migrate, error) {
	source, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, dbURL)
	if err != nil {
		return nil, fmt.Errorf("open migrator: %w", err)
	}
	return m, nil
}

// Run applies every pending up migration. A dirty schema is reported, not forced.
func Run(dbURL string) error {
	m, err := open(dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if _, dirty, verr := m.Version(); verr == nil && dirty {
		return errors.New("schema is dirty, fix it by hand before migrating")
	}

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info().Msg("schema up to date")
	case err != nil:
		return fmt.Errorf("apply migrations: %w", err)
	}

	logCurrent(m)
	return nil
}

// Rollback reverts the given number of migrations, at least one
func Rollback(dbURL string, steps int) error {
	if steps < 1 {
		steps = 1
	}
	m, err := open(dbURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("roll back %d step(s): %w", steps, err)
	}
	logCurrent(m)
	return nil
}

func logCurrent(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info().Msg("schema is empty")
		return
	}
	logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("schema version")
}
