// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package nats provides a thin publish-only NATS client used to fan out
// inserted samples as Influx line protocol, for consumers such as a
// metric store to pick up without talking to the domain databases
// directly.
package nats

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/oml-collect/oml/internal/omllog"
)

// Client wraps a single NATS connection. Unlike a pub/sub client serving
// many subjects, the server only ever publishes to one subject per
// configured bridge, so there is no subscription bookkeeping to do.
type Client struct {
	conn *nats.Conn
}

// Connect dials address and returns a ready-to-publish Client. A caller
// that does not configure a NATS URL never calls this -- the bridge is
// entirely optional, per SPEC_FULL.md's domain-stack wiring.
func Connect(address, username, password, credsFile string) (*Client, error) {
	var opts []nats.Option
	if username != "" && password != "" {
		opts = append(opts, nats.UserInfo(username, password))
	}
	if credsFile != "" {
		opts = append(opts, nats.UserCredentials(credsFile))
	}
	opts = append(opts, nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
		if err != nil {
			omllog.Warnf("nats: disconnected: %v", err)
		}
	}))
	opts = append(opts, nats.ReconnectHandler(func(nc *nats.Conn) {
		omllog.Infof("nats: reconnected to %s", nc.ConnectedUrl())
	}))

	nc, err := nats.Connect(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats: connect to %s: %w", address, err)
	}
	omllog.Infof("nats: connected to %s", address)
	return &Client{conn: nc}, nil
}

// Publish sends data on subject. Errors are returned rather than logged so
// the bridge can decide whether a publish failure is worth surfacing.
func (c *Client) Publish(subject string, data []byte) error {
	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats: publish to %s: %w", subject, err)
	}
	return nil
}

// IsConnected reports whether the underlying connection is currently up.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Close closes the underlying connection.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
		omllog.Info("nats: connection closed")
	}
}
