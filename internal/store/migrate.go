package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/privileges-api/privileges/internal/store/migrations"
)

// Migrate applies any pending embedded migrations for the store's dialect.
//
// SQLite migrates on the store's own handle: an in-memory database exists
// only on that connection, and closing the migrate driver would close the
// handle, so it is left open. Other drivers hold a
// connection for the migration lock, so they migrate on a dedicated pool
// that is closed afterwards.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrations.FS, s.driver)
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	if s.driver == DriverSQLite {
		driver, err := migratesqlite.WithInstance(s.db.DB, &migratesqlite.Config{})
		if err != nil {
			return fmt.Errorf("create migration driver: %w", err)
		}
		return up(src, driver)
	}

	dsn, sqlDriver := s.dsn, "pgx"
	if s.driver == DriverMySQL {
		sqlDriver = "mysql"
		if dsn, err = mysqlDSN(s.dsn, true); err != nil {
			return err
		}
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}

	var driver database.Driver
	switch s.driver {
	case DriverPostgres:
		driver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	case DriverMySQL:
		driver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("create migration driver: %w", err)
	}
	defer driver.Close()

	return up(src, driver)
}

func up(src source.Driver, driver database.Driver) error {
	instance, err := migrate.NewWithInstance("iofs", src, "", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
