package migrations

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/m-mizutani/goerr/v2"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// Status reports the applied schema version
type Status struct {
	Version uint
	Dirty   bool
	Latest  uint
}

// Up applies every pending migration. The caller owns db.
func Up(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return goerr.Wrap(err, "migration failed")
	}
	return nil
}

// Check returns the current and latest schema versions without changing
// anything.
func Check(db *sql.DB) (*Status, error) {
	m, err := newMigrate(db)
	if err != nil {
		return nil, err
	}

	latest, err := latestVersion()
	if err != nil {
		return nil, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return &Status{Latest: latest}, nil
		}
		return nil, goerr.Wrap(err, "failed to get database version")
	}
	return &Status{Version: version, Dirty: dirty, Latest: latest}, nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create source driver")
	}

	driver, err := pgx.WithInstance(db, &pgx.Config{})
	if err != nil {
		_ = src.Close()
		return nil, goerr.Wrap(err, "failed to create database driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		_ = src.Close()
		return nil, goerr.Wrap(err, "failed to create migrate instance")
	}
	return m, nil
}

func latestVersion() (uint, error) {
	src, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return 0, goerr.Wrap(err, "failed to read migration files")
	}
	defer src.Close()

	version, err := src.First()
	if err != nil {
		return 0, goerr.Wrap(err, "no migration files")
	}
	for {
		next, err := src.Next(version)
		if err != nil {
			break
		}
		version = next
	}
	return version, nil
}
