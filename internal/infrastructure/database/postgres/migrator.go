package postgres

import (
	"embed"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/turtacn/molscore/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molscore/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations. Each call opens its own
// connection, so it never closes a pool owned by a Connection.
type Migrator struct {
	dsn    string
	logger logging.Logger
}

// NewMigrator creates a Migrator for cfg.
func NewMigrator(cfg PostgresConfig, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Migrator{dsn: buildDSN(cfg), logger: log}
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to read embedded migrations")
	}
	mg, err := migrate.NewWithSourceInstance("iofs", src, m.dsn)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return mg, nil
}

func (m *Migrator) close(mg *migrate.Migrate) {
	if srcErr, dbErr := mg.Close(); srcErr != nil || dbErr != nil {
		m.logger.Warn("failed to close migrator", logging.Any("source_error", srcErr), logging.Any("db_error", dbErr))
	}
}

// Up applies every pending migration.
func (m *Migrator) Up() error {
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer m.close(mg)

	if err := mg.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mg.Version()
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations").
			WithDetail(fmt.Sprintf("current version %d", version))
	}
	version, dirty, err := mg.Version()
	if err != nil && !stderrors.Is(err, migrate.ErrNilVersion) {
		m.logger.Warn("failed to read migration version", logging.Err(err))
	}
	m.logger.Info("database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back steps migrations.
func (m *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.InvalidParam("steps must be greater than 0")
	}
	mg, err := m.open()
	if err != nil {
		return err
	}
	defer m.close(mg)

	if err := mg.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return errors.InvalidParam("no migrations to roll back")
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations")
	}
	return nil
}

// Status returns the applied version and whether a failed migration left
// the schema dirty. Version 0 means nothing has been applied.
func (m *Migrator) Status() (version uint, dirty bool, err error) {
	mg, err := m.open()
	if err != nil {
		return 0, false, err
	}
	defer m.close(mg)

	version, dirty, err = mg.Version()
	if err != nil {
		if stderrors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read migration version")
	}
	return version, dirty, nil
}
