// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"database/sql"
	"embed"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/corridorcache/baseline-engine/pkg/log"
)

const supportedVersion uint = 1

//go:embed migrations/*
var migrationFiles embed.FS

func migrateInstance(backend string, db *sql.DB) (*migrate.Migrate, error) {
	switch backend {
	case "sqlite3":
		driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			return nil, err
		}
		d, err := iofs.New(migrationFiles, "migrations/sqlite3")
		if err != nil {
			return nil, err
		}
		return migrate.NewWithInstance("iofs", d, "sqlite3", driver)
	case "mysql":
		driver, err := mysql.WithInstance(db, &mysql.Config{})
		if err != nil {
			return nil, err
		}
		d, err := iofs.New(migrationFiles, "migrations/mysql")
		if err != nil {
			return nil, err
		}
		return migrate.NewWithInstance("iofs", d, "mysql", driver)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", backend)
	}
}

// checkDBVersion applies pending migrations up to supportedVersion on
// startup, matching the teacher's convention of migrating automatically
// rather than requiring a separate operator step.
func checkDBVersion(backend string, db *sql.DB) {
	m, err := migrateInstance(backend, db)
	if err != nil {
		log.Fatal(err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal(err)
	}

	v, _, err := m.Version()
	if err != nil {
		if err == migrate.ErrNilVersion {
			log.Warn("cache store has no migration version recorded yet")
			return
		}
		log.Fatal(err)
	}

	if v < uint64(supportedVersion) {
		log.Warnf("unsupported cache store version %d, need %d", v, supportedVersion)
		os.Exit(1)
	}
}

// MigrateDB runs migrations against a database identified only by its DSN,
// without establishing the process-wide connection. Used by the
// --migrate-db CLI path.
func MigrateDB(backend string, dsn string) error {
	var m *migrate.Migrate
	var err error

	switch backend {
	case "sqlite3":
		d, derr := iofs.New(migrationFiles, "migrations/sqlite3")
		if derr != nil {
			return derr
		}
		m, err = migrate.NewWithSourceInstance("iofs", d, fmt.Sprintf("sqlite3://%s?_foreign_keys=on", dsn))
	case "mysql":
		d, derr := iofs.New(migrationFiles, "migrations/mysql")
		if derr != nil {
			return derr
		}
		m, err = migrate.NewWithSourceInstance("iofs", d, fmt.Sprintf("mysql://%s?multiStatements=true", dsn))
	default:
		return fmt.Errorf("unsupported database driver: %s", backend)
	}
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
