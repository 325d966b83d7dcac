package repository

import (
	"database/sql"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
)

// ConnectForTest wires a Repository directly against an already-open sqlx.DB,
// bypassing the process-wide Connect singleton. Exported so other packages'
// tests can stand up an isolated Cache Store instance.
func ConnectForTest(driver string, db *sqlx.DB) *Repository {
	return connectForTest(driver, db)
}

// MigrateTestDB applies all embedded migrations to db. Exported for test
// helpers in other packages that open their own sqlite3/mysql handle rather
// than going through Connect.
func MigrateTestDB(backend string, db *sql.DB) error {
	m, err := migrateInstance(backend, db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
