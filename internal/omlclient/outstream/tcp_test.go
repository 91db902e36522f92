// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package outstream

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPWritesHeaderOnceThenData(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf, _ := io.ReadAll(conn)
		received <- buf
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)

	tc := NewTCP(host, port, nil)
	defer tc.Close()

	n, err := tc.Write([]byte("row1\n"), []byte("header\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	n, err = tc.Write([]byte("row2\n"), []byte("header\n"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	require.NoError(t, tc.Close())

	select {
	case buf := <-received:
		assert.Equal(t, "header\nrow1\nrow2\n", string(buf))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive data")
	}
}

func TestTCPWriteSoftFailsWhenUnreachable(t *testing.T) {
	tc := NewTCP("127.0.0.1", "1", nil) // port 1 is reserved, expect refusal
	tc.dialTimeout = 200 * time.Millisecond
	defer tc.Close()

	n, err := tc.Write([]byte("x"), nil)
	assert.Equal(t, 0, n)
	assert.NoError(t, err)
}

func TestTCPDestReportsSchemeHostPort(t *testing.T) {
	tc := NewTCP("example.invalid", "1234", nil)
	assert.Equal(t, "tcp://example.invalid:1234", tc.Dest())
}
