// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestServeConnTextEndToEnd drives one real connection (via net.Pipe)
// through the full HEADER -> TEXT state machine against a real sqlite3
// database, the way the teacher's integration-style tests exercise real
// collaborators instead of mocks.
func TestServeConnTextEndToEnd(t *testing.T) {
	dataDir := t.TempDir()
	srv, err := NewServer("sqlite3", dataDir, "", "", "")
	require.NoError(t, err)
	defer srv.Close()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		srv.Serve(server)
		close(done)
	}()

	fmt.Fprintf(client, "protocol: 4\n")
	fmt.Fprintf(client, "domain: exp1\n")
	fmt.Fprintf(client, "start-time: %d\n", time.Now().Unix())
	fmt.Fprintf(client, "sender-id: node01\n")
	fmt.Fprintf(client, "app-name: demo\n")
	fmt.Fprintf(client, "content: text\n")
	fmt.Fprintf(client, "schema: 1 demo_cpu util:double label:string\n")
	fmt.Fprint(client, "\n")
	fmt.Fprintf(client, "0.100000\t1\t1\t99.5\thello\n")
	client.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not finish after client closed")
	}

	// The handler's domain database is released (and so fully committed
	// and closed) by the time Serve returns, per releaseDomain's ref
	// counting -- safe to open a fresh connection onto the same file here.
	db, err := sqlx.Open("sqlite3", dataDir+"/exp1.sqlite")
	require.NoError(t, err)
	defer db.Close()

	var util float64
	var label string
	err = db.QueryRow(`SELECT util, label FROM demo_cpu WHERE oml_seq = 1`).Scan(&util, &label)
	require.NoError(t, err)
	assert.Equal(t, 99.5, util)
	assert.Equal(t, "hello", label)
}

// TestServeConnRejectsBadProtocolVersion exercises the PROTOCOL_ERROR path:
// the connection is closed without ever opening a domain database.
func TestServeConnRejectsBadProtocolVersion(t *testing.T) {
	srv, err := NewServer("sqlite3", t.TempDir(), "", "", "")
	require.NoError(t, err)
	defer srv.Close()

	client, server := net.Pipe()
	done := make(chan struct{})
	go func() {
		srv.Serve(server)
		close(done)
	}()

	fmt.Fprintf(client, "protocol: 99\n")
	fmt.Fprintf(client, "domain: exp1\n")
	fmt.Fprintf(client, "start-time: 1\n")
	fmt.Fprintf(client, "sender-id: node01\n")
	fmt.Fprintf(client, "app-name: demo\n")
	fmt.Fprintf(client, "content: text\n")
	fmt.Fprint(client, "\n")
	client.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("handler did not finish after protocol error")
	}
}

func TestAdminHandlerServesHealthz(t *testing.T) {
	srv, err := NewServer("sqlite3", t.TempDir(), "", "", "")
	require.NoError(t, err)
	defer srv.Close()

	handler := srv.AdminHandler()
	assert.NotNil(t, handler)
}
