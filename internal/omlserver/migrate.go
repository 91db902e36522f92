// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*
var migrationFiles embed.FS

// bootstrapSchema brings a freshly opened domain database up to the single
// bootstrap revision (_experiment_metadata, _senders). Unlike the teacher's
// version-gated migration, schema evolution here is a non-goal (see
// SPEC_FULL.md §D) so there is exactly one migration step; bootstrapSchema
// is idempotent and safe to call on every domain open.
func bootstrapSchema(driver string, db *sqlx.DB) error {
	var (
		m   *migrate.Migrate
		err error
	)

	switch driver {
	case "sqlite3":
		inst, ierr := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
		if ierr != nil {
			return fmt.Errorf("omlserver: sqlite3 migrate instance: %w", ierr)
		}
		src, serr := iofs.New(migrationFiles, "migrations/sqlite3")
		if serr != nil {
			return fmt.Errorf("omlserver: migration source: %w", serr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "sqlite3", inst)
	case "mysql":
		inst, ierr := mysql.WithInstance(db.DB, &mysql.Config{})
		if ierr != nil {
			return fmt.Errorf("omlserver: mysql migrate instance: %w", ierr)
		}
		src, serr := iofs.New(migrationFiles, "migrations/mysql")
		if serr != nil {
			return fmt.Errorf("omlserver: migration source: %w", serr)
		}
		m, err = migrate.NewWithInstance("iofs", src, "mysql", inst)
	default:
		return fmt.Errorf("omlserver: unsupported database driver %q", driver)
	}
	if err != nil {
		return fmt.Errorf("omlserver: migrate setup: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("omlserver: migrate up: %w", err)
	}
	return nil
}
