// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package omlserver implements the server side of the OMSP instrumentation
// pipeline: the per-connection protocol engine, schema registry and
// dispatch, and the pluggable SQL storage backend.
package omlserver

import (
	"net"
	"net/http"
)

// Server is the top-level handle cmd/oml-server drives: it owns the
// database registry and, if configured, the NATS fan-out bridge.
type Server struct {
	reg *registry
}

// NewServer builds a Server. driver is "sqlite3" or "mysql"; dataDir holds
// one sqlite file per domain; dsn is the mysql connection prefix (domain
// name is appended as the database). natsURL/natsSubject are optional; an
// empty natsURL disables the bridge entirely.
func NewServer(driver, dataDir, dsn, natsURL, natsSubject string) (*Server, error) {
	reg := newRegistry(driver, dataDir, dsn)
	if natsURL != "" {
		bridge, err := newNatsBridge(natsURL, natsSubject)
		if err != nil {
			return nil, err
		}
		reg.bridge = bridge
	}
	return &Server{reg: reg}, nil
}

// Serve runs one accepted connection to completion. Safe to call from any
// number of goroutines concurrently, one per connection.
func (s *Server) Serve(conn net.Conn) {
	serveConn(conn, s.reg)
}

// AdminHandler returns the HTTP health/metrics surface bound to this
// server's registry.
func (s *Server) AdminHandler() http.Handler {
	return AdminHandler(s.reg)
}

// Close shuts down the optional NATS bridge. Open domain databases close
// themselves as their last connection's handler releases them.
func (s *Server) Close() {
	if s.reg.bridge != nil {
		s.reg.bridge.close()
	}
}
