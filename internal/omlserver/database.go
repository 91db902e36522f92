// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"fmt"
	"sync"
	"time"

	"github.com/oml-collect/oml/internal/omllog"
)

const maxTableRename = 10

// Database is one open experiment domain: its backend connection, the
// tables it has seen this run, and the domain-wide start time every
// connected sender's samples are rebased against. It is ref-counted across
// concurrently connected handlers and only closed when the last one
// disconnects, mirroring the process-global Database list of §5.
type Database struct {
	domain    string
	backend   backend
	startTime float64

	mu      sync.Mutex
	tables  map[string]*Schema
	refs    int
	closing bool

	batchTicker *time.Ticker
	stopBatch   chan struct{}
}

// registry is the process-wide table of open Database objects, one per
// domain, exactly as §5 describes: "the list of open Database objects is
// process-global ... only the event loop thread mutates the list." Go has
// no single event-loop thread here, so registry.mu stands in for that
// single-threaded discipline.
type registry struct {
	mu        sync.Mutex
	driver    string
	dataDir   string
	dsn       string
	databases map[string]*Database
	bridge    *natsBridge // nil unless a nats-url was configured
}

func newRegistry(driver, dataDir, dsn string) *registry {
	return &registry{driver: driver, dataDir: dataDir, dsn: dsn, databases: make(map[string]*Database)}
}

// openDomain finds or creates the Database for domain, incrementing its
// ref count. Every successful call must be matched by exactly one
// releaseDomain.
func (r *registry) openDomain(domain string, clientStart float64) (*Database, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.databases[domain]; ok && !d.closing {
		d.mu.Lock()
		d.refs++
		d.mu.Unlock()
		return d, nil
	}

	sqldb, err := openDomainDB(r.driver, r.dataDir, r.dsn, domain)
	if err != nil {
		return nil, err
	}
	if err := bootstrapSchema(r.driver, sqldb); err != nil {
		sqldb.Close()
		return nil, err
	}

	be := newSQLBackend(r.driver, sqldb)
	if err := be.create(); err != nil {
		sqldb.Close()
		return nil, err
	}

	d := &Database{
		domain:    domain,
		backend:   be,
		tables:    make(map[string]*Schema),
		refs:      1,
		stopBatch: make(chan struct{}),
	}

	start, found, err := be.getMetadata(".", "start_time")
	if err != nil {
		be.release()
		return nil, err
	}
	if found {
		fmt.Sscanf(start, "%f", &d.startTime)
	} else {
		d.startTime = clientStart
		if err := be.setMetadata(".", "start_time", fmt.Sprintf("%.6f", clientStart)); err != nil {
			be.release()
			return nil, err
		}
	}

	if existing, err := be.getTableList(); err == nil {
		for name, schema := range existing {
			d.tables[name] = schema
			if terr := be.tableCreate(schema, true); terr != nil {
				omllog.Warnf("omlserver: domain %s: re-prepare table %s: %v", domain, name, terr)
			}
		}
	}

	d.batchTicker = time.NewTicker(time.Second)
	go d.runBatchTicker()

	r.databases[domain] = d
	domainsOpen.Inc()
	return d, nil
}

func (d *Database) runBatchTicker() {
	for {
		select {
		case <-d.batchTicker.C:
			d.mu.Lock()
			closing := d.closing
			d.mu.Unlock()
			if closing {
				return
			}
			if err := d.backend.endTransaction(); err != nil {
				omllog.Warnf("omlserver: domain %s: batch commit: %v", d.domain, err)
				continue
			}
			if err := d.backend.beginTransaction(); err != nil {
				omllog.Warnf("omlserver: domain %s: reopen transaction: %v", d.domain, err)
			}
		case <-d.stopBatch:
			return
		}
	}
}

// releaseDomain decrements the ref count and, when it reaches zero, commits
// and closes the backend connection.
func (r *registry) releaseDomain(d *Database) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d.mu.Lock()
	d.refs--
	empty := d.refs <= 0
	d.mu.Unlock()
	if !empty {
		return
	}

	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()
	d.batchTicker.Stop()
	close(d.stopBatch)
	if err := d.backend.release(); err != nil {
		omllog.Warnf("omlserver: domain %s: release: %v", d.domain, err)
	}
	delete(r.databases, d.domain)
	domainsOpen.Dec()
}

// findOrCreateTable implements §4.7: look up by name, create on miss,
// compare on hit, rename up to maxTableRename times on mismatch. The schema
// passed in is never modified: when a rename occurs the returned schema is
// a copy carrying the new name, and the caller binds its inserts to that.
func (d *Database) findOrCreateTable(s *Schema) (*Schema, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.tables[s.Name]; ok {
		if existing.Equal(s) {
			return existing, nil
		}
		return d.renameAndCreate(s)
	}
	return d.createTable(s)
}

func (d *Database) createTable(s *Schema) (*Schema, error) {
	if err := d.backend.tableCreate(s, false); err != nil {
		return nil, err
	}
	if err := d.backend.setMetadata(".", "table_"+s.Name, s.String()); err != nil {
		omllog.Warnf("omlserver: domain %s: persist schema for %s: %v", d.domain, s.Name, err)
	}
	d.tables[s.Name] = s
	return s, nil
}

func (d *Database) renameAndCreate(s *Schema) (*Schema, error) {
	base := s.Name
	for i := 2; i <= maxTableRename+1; i++ {
		candidate := fmt.Sprintf("%s_%d", base, i)
		renamed := *s
		renamed.Name = candidate
		if existing, ok := d.tables[candidate]; ok {
			if existing.Equal(&renamed) {
				return &renamed, nil
			}
			continue
		}
		return d.createTable(&renamed)
	}
	return nil, fmt.Errorf("omlserver: domain %s: schema conflict on %q exhausted %d renames", d.domain, base, maxTableRename)
}

// insert rebases ts_server against the domain start time and dispatches to
// the backend.
func (d *Database) insert(table string, senderID int, seq int64, tsClient float64, values []Value) error {
	tsServer := time.Since(time.Unix(int64(d.startTime), 0)).Seconds()
	return d.backend.insert(table, senderID, seq, tsClient, tsServer, values)
}

// setMetadata persists one subject/key/value triple in the domain's
// _experiment_metadata table, used for sender-reported metadata as well as
// the table_<name> schema bookkeeping.
func (d *Database) setMetadata(subject, key, value string) error {
	return d.backend.setMetadata(subject, key, value)
}

// addSenderID upserts the (name -> id) mapping for a newly seen sender.
func (d *Database) addSenderID(name string) (int, error) {
	return d.backend.addSenderID(name)
}
