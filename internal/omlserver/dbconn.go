// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"
)

var registerHooksOnce sync.Once

// registerHookedDrivers registers the hook-wrapped sqlite3 driver exactly
// once per process; database/sql panics on a duplicate registration and
// openDomainDB is called once per domain, not once per process.
func registerHookedDrivers() {
	registerHooksOnce.Do(func() {
		sql.Register("sqlite3WithHooks", sqlhooks.Wrap(&sqlite3.SQLiteDriver{}, queryHooks{}))
	})
}

// openDomainDB opens the backend connection for one experiment domain. Each
// domain gets its own *sqlx.DB: a private sqlite file under dataDir, or a
// private schema on the shared mysql server addressed by dsn. This differs
// from a single process-wide connection because §5 of the storage contract
// requires independent Database objects, one per domain, each with its own
// transaction lifecycle.
func openDomainDB(driver, dataDir, dsn, domain string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite3":
		registerHookedDrivers()
		path := filepath.Join(dataDir, domain+".sqlite")
		db, err := sqlx.Open("sqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", path))
		if err != nil {
			return nil, fmt.Errorf("omlserver: open sqlite domain %q: %w", domain, err)
		}
		// sqlite does not multithread; a second connection just waits on the
		// same file lock, so one writer per domain is all a pool buys us.
		db.SetMaxOpenConns(1)
		return db, nil
	case "mysql":
		db, err := sqlx.Open("mysql", fmt.Sprintf("%s%s?multiStatements=true", dsn, domain))
		if err != nil {
			return nil, fmt.Errorf("omlserver: open mysql domain %q: %w", domain, err)
		}
		db.SetConnMaxLifetime(3 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		return db, nil
	default:
		return nil, fmt.Errorf("omlserver: unsupported database driver %q", driver)
	}
}
