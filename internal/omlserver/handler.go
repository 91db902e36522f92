// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/oml-collect/oml/internal/omllog"
)

// connState is the state machine of §4.6: HEADER -> UNSPEC -> TEXT|BINARY,
// or PROTOCOL_ERROR on any ill-formed meta. The original server drives this
// from a single-threaded poll loop; here each connection gets its own
// goroutine, so the state lives entirely on the stack of serveConn instead
// of a callback-driven struct -- the natural translation once the
// single-threaded constraint is gone (see DESIGN.md).
type connState int

const (
	stateHeader connState = iota
	stateData
)

// idleTimeout frees a handler that receives nothing for this long, per
// §4.6's "Idle beyond server idle timeout" rule.
const idleTimeout = 5 * time.Minute

type clientHandler struct {
	conn   net.Conn
	connID string // per-connection correlation id, distinct from sender-id
	reg    *registry
	sender string

	hdr      header
	database *Database
	senderID int
	appName  string

	tables map[int]*Schema // schema index -> table (schema.Name may have been renamed)
}

// ident identifies this connection in log lines: the remote address is
// often uninformative alone (many senders behind the same NAT, or a
// reconnecting client reusing a local port), so every handler also gets a
// short-lived correlation id to disambiguate interleaved connections in
// the log stream.
func (h *clientHandler) ident() string {
	return fmt.Sprintf("%s/%s", h.conn.RemoteAddr(), h.connID)
}

// serveConn runs one connection to completion; it never returns an error to
// the caller because every failure is handled by logging and closing.
func serveConn(conn net.Conn, reg *registry) {
	h := &clientHandler{conn: conn, connID: uuid.NewString()[:8], reg: reg, tables: make(map[int]*Schema)}
	connectionsTotal.Inc()
	connectionsOpen.Inc()
	defer connectionsOpen.Dec()
	defer h.close()

	r := bufio.NewReader(conn)
	state := stateHeader

	for {
		conn.SetReadDeadline(time.Now().Add(idleTimeout))

		if state == stateHeader {
			line, err := r.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					omllog.Debugf("omlserver: %s: header read: %v", h.ident(), err)
				}
				return
			}
			done, perr := h.hdr.feed(trimCRLF(line))
			if perr != nil {
				omllog.Warnf("omlserver: %s: protocol error: %v", h.ident(), perr)
				return
			}
			if !done {
				continue
			}
			if err := h.hdr.validate(); err != nil {
				omllog.Warnf("omlserver: %s: protocol error: %v", h.ident(), err)
				return
			}
			if err := h.open(); err != nil {
				omllog.Warnf("omlserver: %s: %v", h.ident(), err)
				return
			}
			for _, line := range h.hdr.schemas {
				h.installSchema(line)
			}
			state = stateData
			continue
		}

		switch h.hdr.content {
		case contentText:
			if err := h.serveText(r); err != nil {
				if err != io.EOF {
					omllog.Debugf("omlserver: %s: %v", h.ident(), err)
				}
				return
			}
		case contentBinary:
			if err := h.serveBinary(r); err != nil {
				if err != io.EOF {
					omllog.Debugf("omlserver: %s: %v", h.ident(), err)
				}
				return
			}
		}
		return
	}
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// open validates the header fields against storage: opens/finds the
// domain database and allocates or looks up the sender row, per §4.6's
// entry conditions for TEXT/BINARY.
func (h *clientHandler) open() error {
	db, err := h.reg.openDomain(h.hdr.domain, h.hdr.startTime)
	if err != nil {
		return fmt.Errorf("open domain %s: %w", h.hdr.domain, err)
	}
	h.database = db

	id, err := db.addSenderID(h.hdr.senderID)
	if err != nil {
		h.reg.releaseDomain(db)
		h.database = nil
		return fmt.Errorf("allocate sender %s: %w", h.hdr.senderID, err)
	}
	h.senderID = id
	h.appName = h.hdr.appName
	h.sender = h.hdr.senderID
	return nil
}

func (h *clientHandler) close() {
	h.conn.Close()
	if h.database != nil {
		h.reg.releaseDomain(h.database)
	}
}

// installSchema parses and registers one schema line, whether it arrived
// in the header block or as a stream-0 metadata record, per §4.6's
// "Schema installation" rule.
func (h *clientHandler) installSchema(line string) {
	s, err := ParseSchemaLine(line)
	if err != nil {
		omllog.Warnf("omlserver: %s: bad schema line %q: %v", h.ident(), line, err)
		return
	}
	if _, exists := h.tables[s.Index]; exists {
		omllog.Warnf("omlserver: %s: replacing schema at index %d", h.ident(), s.Index)
	}
	installed, err := h.database.findOrCreateTable(s)
	if err != nil {
		omllog.Warnf("omlserver: %s: find_or_create_table %s: %v", h.ident(), s.Name, err)
		return
	}
	h.tables[s.Index] = installed
}

func (h *clientHandler) serveText(r *bufio.Reader) error {
	sc := newTextLineReader(r)
	for sc.Scan() {
		h.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		line := sc.Text()
		if line == "" {
			continue
		}
		row, err := decodeTextLine(line)
		if err != nil {
			omllog.Warnf("omlserver: %s: %v", h.ident(), err)
			continue
		}
		if row.index == 0 {
			h.handleMetaRow(row.fields)
			continue
		}
		table, ok := h.tables[row.index]
		if !ok {
			omllog.Warnf("omlserver: %s: data for unknown schema index %d", h.ident(), row.index)
			continue
		}
		values := convertTextValues(table, row.fields, nil)
		if err := h.database.insert(table.Name, h.senderID, row.seq, row.tsClient, values); err != nil {
			omllog.Warnf("omlserver: %s: insert: %v", h.ident(), err)
			rowsDropped.WithLabelValues(h.hdr.domain).Inc()
			continue
		}
		rowsInserted.WithLabelValues(h.hdr.domain, table.Name).Inc()
		h.publishBridge(table, values)
	}
	return sc.Err()
}

// handleMetaRow reprocesses a stream-0 text row as a header meta. The row
// carries schema 0's three columns, subject, key and value; any non-empty
// subject is accepted.
func (h *clientHandler) handleMetaRow(fields []string) {
	if len(fields) != 3 || fields[0] == "" {
		omllog.Warnf("omlserver: %s: malformed metadata row", h.ident())
		return
	}
	h.handleMeta(fields[0], fields[1], fields[2])
}

func (h *clientHandler) serveBinary(r *bufio.Reader) error {
	var carry []byte
	buf := make([]byte, 64*1024)

	for {
		h.conn.SetReadDeadline(time.Now().Add(idleTimeout))
		n, err := r.Read(buf)
		if n > 0 {
			carry = append(carry, buf[:n]...)
			rows, skipped, remainder := decodeBinaryFrames(carry)
			if skipped > 0 {
				omllog.Warnf("omlserver: %s: skipped %d bytes resynchronizing", h.ident(), skipped)
			}
			for _, row := range rows {
				h.handleBinaryRow(row)
			}
			carry = append([]byte(nil), remainder...)
		}
		if err != nil {
			return err
		}
	}
}

func (h *clientHandler) handleBinaryRow(row *binRow) {
	if row.index == 0 {
		h.handleBinaryMetaRow(row)
		return
	}
	table, ok := h.tables[int(row.index)]
	if !ok {
		omllog.Warnf("omlserver: %s: data for unknown schema index %d", h.ident(), row.index)
		return
	}
	values, err := convertBinaryValues(table, row)
	if err != nil {
		omllog.Warnf("omlserver: %s: %v", h.ident(), err)
		rowsDropped.WithLabelValues(h.hdr.domain).Inc()
		return
	}
	if err := h.database.insert(table.Name, h.senderID, int64(row.seq), row.tsClie, values); err != nil {
		omllog.Warnf("omlserver: %s: insert: %v", h.ident(), err)
		rowsDropped.WithLabelValues(h.hdr.domain).Inc()
		return
	}
	rowsInserted.WithLabelValues(h.hdr.domain, table.Name).Inc()
	h.publishBridge(table, values)
}

// publishBridge forwards one inserted row to the optional NATS fan-out.
func (h *clientHandler) publishBridge(table *Schema, values []Value) {
	if h.reg.bridge == nil {
		return
	}
	h.reg.bridge.publish(h.hdr.domain, table.Name, h.senderID, table.Fields, values, time.Now())
}

func (h *clientHandler) handleBinaryMetaRow(row *binRow) {
	if len(row.values) != 3 || row.values[0].Kind != KindString || row.values[1].Kind != KindString ||
		row.values[2].Kind != KindString || row.values[0].Str == "" {
		omllog.Warnf("omlserver: %s: malformed binary metadata row", h.ident())
		return
	}
	h.handleMeta(row.values[0].Str, row.values[1].Str, row.values[2].Str)
}

// handleMeta reprocesses a stream-0 subject/key/value row as a header
// meta. A `schema` key installs a table the same way a header-block schema
// line does; every other key is persisted under its subject to the
// domain's metadata table so it survives a restart.
func (h *clientHandler) handleMeta(subject, key, value string) {
	if key == "schema" {
		h.installSchema(value)
		return
	}
	if err := h.database.setMetadata(subject, key, value); err != nil {
		omllog.Warnf("omlserver: %s: metadata %s: %v", h.ident(), key, err)
	}
}
