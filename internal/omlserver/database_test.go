// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend is an in-memory stand-in for sqlBackend, letting
// findOrCreateTable's rename logic be exercised without a real sqlite3 or
// mysql connection.
type fakeBackend struct {
	tables    map[string]*Schema
	metadata  map[string]string
	createErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{tables: make(map[string]*Schema), metadata: make(map[string]string)}
}

func (f *fakeBackend) create() error { return nil }
func (f *fakeBackend) release() error { return nil }

func (f *fakeBackend) tableCreate(s *Schema, shallow bool) error {
	if f.createErr != nil {
		return f.createErr
	}
	if !shallow {
		f.tables[s.Name] = s
	}
	return nil
}

func (f *fakeBackend) tableFree(name string) error { delete(f.tables, name); return nil }

func (f *fakeBackend) insert(table string, senderID int, seq int64, tsClient, tsServer float64, values []Value) error {
	return nil
}

func (f *fakeBackend) getMetadata(subject, key string) (string, bool, error) {
	v, ok := f.metadata[subject+"/"+key]
	return v, ok, nil
}

func (f *fakeBackend) setMetadata(subject, key, value string) error {
	f.metadata[subject+"/"+key] = value
	return nil
}

func (f *fakeBackend) getTableList() (map[string]*Schema, error) { return f.tables, nil }

func (f *fakeBackend) addSenderID(name string) (int, error) { return 1, nil }

func (f *fakeBackend) endTransaction() error   { return nil }
func (f *fakeBackend) beginTransaction() error { return nil }

func newTestDatabase() *Database {
	return &Database{
		domain:  "test",
		backend: newFakeBackend(),
		tables:  make(map[string]*Schema),
	}
}

func TestFindOrCreateTableCreatesOnMiss(t *testing.T) {
	d := newTestDatabase()
	s := &Schema{Name: "cpu", Fields: []Field{{Name: "util", Kind: KindDouble}}}

	got, err := d.findOrCreateTable(s)
	require.NoError(t, err)
	assert.Equal(t, "cpu", got.Name)
	assert.Contains(t, d.tables, "cpu")
}

func TestFindOrCreateTableReturnsExistingOnMatch(t *testing.T) {
	d := newTestDatabase()
	s := &Schema{Name: "cpu", Fields: []Field{{Name: "util", Kind: KindDouble}}}

	first, err := d.findOrCreateTable(s)
	require.NoError(t, err)

	second, err := d.findOrCreateTable(&Schema{Name: "cpu", Fields: []Field{{Name: "util", Kind: KindDouble}}})
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestFindOrCreateTableRenamesOnConflict(t *testing.T) {
	d := newTestDatabase()
	original := &Schema{Name: "cpu", Fields: []Field{{Name: "util", Kind: KindDouble}}}
	_, err := d.findOrCreateTable(original)
	require.NoError(t, err)

	conflicting := &Schema{Name: "cpu", Fields: []Field{{Name: "util", Kind: KindString}}}
	renamed, err := d.findOrCreateTable(conflicting)
	require.NoError(t, err)
	assert.Equal(t, "cpu_2", renamed.Name)
	assert.Contains(t, d.tables, "cpu_2")
}

func TestFindOrCreateTableReusesExistingRenamedMatch(t *testing.T) {
	d := newTestDatabase()
	original := &Schema{Name: "cpu", Fields: []Field{{Name: "util", Kind: KindDouble}}}
	_, err := d.findOrCreateTable(original)
	require.NoError(t, err)

	conflicting := &Schema{Name: "cpu", Fields: []Field{{Name: "util", Kind: KindString}}}
	first, err := d.findOrCreateTable(conflicting)
	require.NoError(t, err)
	assert.Equal(t, "cpu_2", first.Name)

	again, err := d.findOrCreateTable(&Schema{Name: "cpu", Fields: []Field{{Name: "util", Kind: KindString}}})
	require.NoError(t, err)
	assert.Equal(t, "cpu_2", again.Name)
}

func TestFindOrCreateTableExhaustsRenameBudget(t *testing.T) {
	d := newTestDatabase()
	for i := 0; i < maxTableRename+1; i++ {
		name := "cpu"
		if i > 0 {
			name = fmt.Sprintf("cpu_%d", i+1)
		}
		d.tables[name] = &Schema{Name: name, Fields: []Field{{Name: "x", Kind: KindInt32}}}
	}

	_, err := d.findOrCreateTable(&Schema{Name: "cpu", Fields: []Field{{Name: "y", Kind: KindString}}})
	require.Error(t, err)
}
