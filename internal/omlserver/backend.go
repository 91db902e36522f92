// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"fmt"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

// backend is the storage contract a Database drives. One backend instance
// owns exactly one domain's connection and one open transaction at a time;
// the 1-second batching tick in Database commits and reopens it.
type backend interface {
	create() error
	release() error
	tableCreate(s *Schema, shallow bool) error
	tableFree(name string) error
	insert(table string, senderID int, seq int64, tsClient, tsServer float64, values []Value) error
	getMetadata(subject, key string) (string, bool, error)
	setMetadata(subject, key, value string) error
	getTableList() (map[string]*Schema, error)
	addSenderID(name string) (int, error)
	endTransaction() error
	beginTransaction() error
}

// sqlBackend is the one Backend implementation shared by sqlite3 and mysql:
// every dialect difference is already isolated in schema.go's sqlType and
// quoteIdent, so the query-building and transaction logic itself does not
// need to be duplicated per driver (the original C server does duplicate
// it, once per adapter file, because C has no shared query builder).
type sqlBackend struct {
	driver string
	db     *sqlx.DB

	mu    sync.Mutex
	tx    *sqlx.Tx
	stmts map[string]*sqlx.Stmt
}

func newSQLBackend(driver string, db *sqlx.DB) *sqlBackend {
	return &sqlBackend{driver: driver, db: db, stmts: make(map[string]*sqlx.Stmt)}
}

func (b *sqlBackend) create() error {
	return b.beginTransaction()
}

func (b *sqlBackend) release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, stmt := range b.stmts {
		stmt.Close()
		delete(b.stmts, name)
	}
	if b.tx != nil {
		if err := b.tx.Commit(); err != nil {
			return fmt.Errorf("omlserver: final commit: %w", err)
		}
		b.tx = nil
	}
	return b.db.Close()
}

func (b *sqlBackend) beginTransaction() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx != nil {
		return nil
	}
	tx, err := b.db.Beginx()
	if err != nil {
		return fmt.Errorf("omlserver: begin transaction: %w", err)
	}
	b.tx = tx
	return nil
}

func (b *sqlBackend) endTransaction() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return nil
	}
	for name, stmt := range b.stmts {
		stmt.Close()
		delete(b.stmts, name)
	}
	err := b.tx.Commit()
	b.tx = nil
	if err != nil {
		return fmt.Errorf("omlserver: commit batch: %w", err)
	}
	return nil
}

func (b *sqlBackend) tableCreate(s *Schema, shallow bool) error {
	if !shallow {
		ddl, err := createTableDDL(b.driver, s)
		if err != nil {
			return err
		}
		b.mu.Lock()
		_, err = b.tx.Exec(ddl)
		b.mu.Unlock()
		if err != nil {
			return fmt.Errorf("omlserver: create table %s: %w", s.Name, err)
		}
	}
	return b.prepareInsert(s)
}

func (b *sqlBackend) tableFree(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if stmt, ok := b.stmts[name]; ok {
		delete(b.stmts, name)
		return stmt.Close()
	}
	return nil
}

// prepareInsert builds the fixed INSERT template for one table and
// prepares it against the current transaction. squirrel has no notion of a
// reusable placeholder template (it binds literal values per call), so the
// statement text is assembled directly; every other query in this file
// goes through squirrel because it does vary per call.
func (b *sqlBackend) prepareInsert(s *Schema) error {
	cols := []string{"oml_sender_id", "oml_seq", "oml_ts_client", "oml_ts_server"}
	for _, f := range s.Fields {
		cols = append(cols, quoteIdent(b.driver, f.Name))
	}
	placeholders := strings.Repeat("?, ", len(cols))
	placeholders = strings.TrimSuffix(placeholders, ", ")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(b.driver, s.Name), strings.Join(cols, ", "), placeholders)
	query = b.db.Rebind(query)

	b.mu.Lock()
	defer b.mu.Unlock()
	stmt, err := b.tx.Preparex(query)
	if err != nil {
		return fmt.Errorf("omlserver: prepare insert for %s: %w", s.Name, err)
	}
	b.stmts[s.Name] = stmt
	return nil
}

func (b *sqlBackend) insert(table string, senderID int, seq int64, tsClient, tsServer float64, values []Value) error {
	b.mu.Lock()
	stmt, ok := b.stmts[table]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("omlserver: insert into unprepared table %q", table)
	}

	args := make([]interface{}, 0, 4+len(values))
	args = append(args, senderID, seq, tsClient, tsServer)
	for _, v := range values {
		a, err := v.SQLArg()
		if err != nil {
			return err
		}
		args = append(args, a)
	}

	if _, err := stmt.Exec(args...); err != nil {
		return fmt.Errorf("omlserver: insert into %s: %w", table, err)
	}
	return nil
}

func (b *sqlBackend) getMetadata(subject, key string) (string, bool, error) {
	query, args, err := sq.Select("value").From("_experiment_metadata").
		Where(sq.Eq{"subject": subject, "key": key}).ToSql()
	if err != nil {
		return "", false, err
	}
	query = b.db.Rebind(query)

	b.mu.Lock()
	tx := b.tx
	b.mu.Unlock()

	var value string
	err = tx.Get(&value, query, args...)
	if err != nil {
		if err.Error() == "sql: no rows in result set" {
			return "", false, nil
		}
		return "", false, fmt.Errorf("omlserver: get metadata %s/%s: %w", subject, key, err)
	}
	return value, true, nil
}

func (b *sqlBackend) setMetadata(subject, key, value string) error {
	var query string
	var args []interface{}
	var err error

	if b.driver == "mysql" {
		query, args, err = sq.Insert("_experiment_metadata").
			Columns("subject", "key", "value").
			Values(subject, key, value).
			Suffix("ON DUPLICATE KEY UPDATE value = VALUES(value)").
			ToSql()
	} else {
		query, args, err = sq.Insert("_experiment_metadata").
			Columns("subject", "key", "value").
			Values(subject, key, value).
			Suffix("ON CONFLICT(subject, key) DO UPDATE SET value = excluded.value").
			ToSql()
	}
	if err != nil {
		return err
	}
	query = b.db.Rebind(query)

	b.mu.Lock()
	tx := b.tx
	b.mu.Unlock()

	_, err = tx.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("omlserver: set metadata %s/%s: %w", subject, key, err)
	}
	return nil
}

// getTableList reconstructs schemas from the table_<name> metadata rows
// written by findOrCreateTable, letting a restarted server rediscover the
// tables a domain already has without inspecting the database catalog.
func (b *sqlBackend) getTableList() (map[string]*Schema, error) {
	query, args, err := sq.Select("key", "value").From("_experiment_metadata").
		Where(sq.Eq{"subject": "."}).
		Where(sq.Expr("key LIKE ?", "table_%")).
		ToSql()
	if err != nil {
		return nil, err
	}
	query = b.db.Rebind(query)

	b.mu.Lock()
	tx := b.tx
	b.mu.Unlock()

	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("omlserver: list tables: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Schema)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		name := strings.TrimPrefix(key, "table_")
		schema, err := ParseSchemaLine(value)
		if err != nil {
			return nil, fmt.Errorf("omlserver: reconstruct schema for %s: %w", name, err)
		}
		out[schema.Name] = schema
	}
	return out, rows.Err()
}

func (b *sqlBackend) addSenderID(name string) (int, error) {
	query, args, err := sq.Select("id").From("_senders").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return 0, err
	}
	query = b.db.Rebind(query)

	b.mu.Lock()
	defer b.mu.Unlock()

	var id int
	err = b.tx.Get(&id, query, args...)
	if err == nil {
		return id, nil
	}
	if err.Error() != "sql: no rows in result set" {
		return 0, fmt.Errorf("omlserver: lookup sender %s: %w", name, err)
	}

	var maxID int
	if err := b.tx.Get(&maxID, "SELECT COALESCE(MAX(id), 0) FROM _senders"); err != nil {
		return 0, fmt.Errorf("omlserver: max sender id: %w", err)
	}
	newID := maxID + 1

	insQ, insArgs, err := sq.Insert("_senders").Columns("name", "id").Values(name, newID).ToSql()
	if err != nil {
		return 0, err
	}
	insQ = b.db.Rebind(insQ)
	if _, err := b.tx.Exec(insQ, insArgs...); err != nil {
		return 0, fmt.Errorf("omlserver: insert sender %s: %w", name, err)
	}
	return newID, nil
}
