// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	_ "github.com/go-sql-driver/mysql"

	"github.com/corridorcache/baseline-engine/pkg/log"
	"github.com/corridorcache/baseline-engine/pkg/schema"
)

var (
	dbConnOnce     sync.Once
	dbConnInstance *Repository
)

// Repository is the Cache Store: the two-tier persistent store behind
// dft_cache, metrics_cache_permanent, autoscale_l1, the Grafana registry and
// build_leases. It serializes writes through a single connection or
// write-mutex as configured by the driver; reads may run concurrently.
type Repository struct {
	DB     *sqlx.DB
	driver string
	mu     sync.Mutex // serializes writes for the sqlite3 single-connection case
}

// Connect opens the backing database exactly once per process, wraps the
// driver with query-timing hooks, and checks the applied migration version.
func Connect(driver string, dsn string) {
	dbConnOnce.Do(func() {
		var dbHandle *sqlx.DB
		var err error

		switch driver {
		case "sqlite3":
			sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, &Hooks{}))
			dbHandle, err = sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", dsn))
			if err != nil {
				log.Fatal(err)
			}
			// sqlite does not multithread; more than one connection would
			// just mean waiting for locks.
			dbHandle.SetMaxOpenConns(1)
		case "mysql":
			dbHandle, err = sqlx.Open("mysql", fmt.Sprintf("%s?multiStatements=true&parseTime=true", dsn))
			if err != nil {
				log.Fatalf("sqlx.Open() error: %v", err)
			}
			dbHandle.SetConnMaxLifetime(3 * time.Minute)
			dbHandle.SetMaxOpenConns(10)
			dbHandle.SetMaxIdleConns(10)
		default:
			log.Fatalf("unsupported database driver: %s", driver)
		}

		dbConnInstance = &Repository{DB: dbHandle, driver: driver}
		checkDBVersion(driver, dbHandle.DB)

		if _, err := dbConnInstance.SweepExpired(); err != nil {
			log.Warnf("initial dft_cache TTL sweep failed: %v", err)
		}
	})
}

// GetRepository returns the process-wide Cache Store instance. Connect must
// have been called first.
func GetRepository() *Repository {
	if dbConnInstance == nil {
		log.Fatalf("cache store not initialized: call repository.Connect first")
	}
	return dbConnInstance
}

// connectForTest wires a Repository directly against an already-open sqlx.DB,
// bypassing the process-wide singleton. Used by tests that need an isolated
// in-memory database per test case.
func connectForTest(driver string, db *sqlx.DB) *Repository {
	return &Repository{DB: db, driver: driver}
}

var errRowNotFound = sql.ErrNoRows

// asCoreError wraps an arbitrary driver/sql error as a schema.CoreError with
// the given Kind unless it already is one.
func asCoreError(op string, kind schema.Kind, err error) error {
	if err == nil {
		return nil
	}
	if ce, ok := err.(*schema.CoreError); ok {
		return ce
	}
	return schema.NewError(op, kind, err)
}
