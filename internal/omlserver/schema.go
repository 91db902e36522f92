// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind tags one field's declared wire type. This mirrors omlclient.Kind in
// meaning but is its own type: the server only ever learns kinds by parsing
// a schema line off the wire, it never shares a compiled-in definition with
// the client library that produced them.
type Kind int

const (
	KindUnknown Kind = iota
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindDouble
	KindBool
	KindString
	KindBlob
	KindGuid
)

func parseFieldKind(token string) (Kind, error) {
	switch token {
	case "int32", "integer", "int", "long":
		return KindInt32, nil
	case "uint32":
		return KindUint32, nil
	case "int64":
		return KindInt64, nil
	case "uint64":
		return KindUint64, nil
	case "double", "float":
		return KindDouble, nil
	case "bool":
		return KindBool, nil
	case "string":
		return KindString, nil
	case "blob":
		return KindBlob, nil
	case "guid":
		return KindGuid, nil
	default:
		return KindUnknown, fmt.Errorf("omlserver: unknown field type %q", token)
	}
}

func (k Kind) sqlType(driver string) string {
	switch k {
	case KindInt32, KindUint32, KindBool:
		return "INTEGER"
	case KindInt64, KindUint64:
		if driver == "mysql" {
			return "BIGINT"
		}
		return "INTEGER"
	case KindDouble:
		if driver == "mysql" {
			return "DOUBLE"
		}
		return "REAL"
	case KindGuid:
		if driver == "mysql" {
			return "BIGINT UNSIGNED"
		}
		return "INTEGER"
	case KindBlob:
		if driver == "mysql" {
			return "BLOB"
		}
		return "BLOB"
	default: // KindString
		if driver == "mysql" {
			return "TEXT"
		}
		return "TEXT"
	}
}

// Field is one column of a measurement stream's schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema is the parsed form of a `schema:` header line or stream-0 schema
// record: `<index> <name> <field>:<type> <field>:<type> ...`.
type Schema struct {
	Index  int
	Name   string
	Fields []Field
}

// ParseSchemaLine parses one schema declaration. It does not validate the
// table name against SQL-identifier rules beyond rejecting characters that
// would make the generated DDL ambiguous; sanitizeIdent does that.
func ParseSchemaLine(line string) (*Schema, error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) < 2 {
		return nil, fmt.Errorf("omlserver: malformed schema line %q", line)
	}

	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("omlserver: schema index %q: %w", parts[0], err)
	}

	name, err := sanitizeIdent(parts[1])
	if err != nil {
		return nil, fmt.Errorf("omlserver: schema name: %w", err)
	}

	fields := make([]Field, 0, len(parts)-2)
	for _, tok := range parts[2:] {
		nameType := strings.SplitN(tok, ":", 2)
		if len(nameType) != 2 {
			return nil, fmt.Errorf("omlserver: malformed field token %q", tok)
		}
		fname, err := sanitizeIdent(nameType[0])
		if err != nil {
			return nil, fmt.Errorf("omlserver: field name: %w", err)
		}
		kind, err := parseFieldKind(nameType[1])
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: fname, Kind: kind})
	}

	return &Schema{Index: index, Name: name, Fields: fields}, nil
}

// sanitizeIdent rejects identifiers that could break the generated DDL;
// OMSP names are expected to already be valid C identifiers, but a hostile
// or buggy client can put anything in a schema meta line.
func sanitizeIdent(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty identifier")
	}
	for i, r := range s {
		ok := r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(i > 0 && r >= '0' && r <= '9')
		if !ok {
			return "", fmt.Errorf("invalid identifier %q", s)
		}
	}
	return s, nil
}

// Equal compares two schemas the way find_or_create_table does: name, field
// count and per-position name/kind must match. Index is intentionally
// ignored -- it is connection-local, not part of the table's identity.
func (s *Schema) Equal(o *Schema) bool {
	if s.Name != o.Name || len(s.Fields) != len(o.Fields) {
		return false
	}
	for i := range s.Fields {
		if s.Fields[i].Name != o.Fields[i].Name || s.Fields[i].Kind != o.Fields[i].Kind {
			return false
		}
	}
	return true
}

// String reconstructs the schema line in canonical form, the same text
// that is persisted under the `table_<name>` metadata key for restart
// discovery.
func (s *Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", s.Index, s.Name)
	for _, f := range s.Fields {
		fmt.Fprintf(&b, " %s:%s", f.Name, f.kindToken())
	}
	return b.String()
}

func (f Field) kindToken() string {
	switch f.Kind {
	case KindInt32:
		return "int32"
	case KindUint32:
		return "uint32"
	case KindInt64:
		return "int64"
	case KindUint64:
		return "uint64"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindBlob:
		return "blob"
	case KindGuid:
		return "guid"
	default:
		return "unknown"
	}
}

// createTableDDL builds the CREATE TABLE statement for a new schema. Every
// sample row also carries the bookkeeping columns oml_sender_id, oml_seq
// and oml_ts_client / oml_ts_server alongside the declared fields, matching
// the original server's fixed sample header.
func createTableDDL(driver string, s *Schema) (string, error) {
	cols := []string{
		"oml_sender_id INTEGER NOT NULL",
		"oml_seq INTEGER NOT NULL",
		"oml_ts_client DOUBLE PRECISION NOT NULL",
		"oml_ts_server DOUBLE PRECISION NOT NULL",
	}
	if driver == "mysql" {
		cols[2] = "oml_ts_client DOUBLE NOT NULL"
		cols[3] = "oml_ts_server DOUBLE NOT NULL"
	}
	for _, f := range s.Fields {
		cols = append(cols, fmt.Sprintf("%s %s", quoteIdent(driver, f.Name), f.Kind.sqlType(driver)))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", quoteIdent(driver, s.Name), strings.Join(cols, ",\n\t")), nil
}

func quoteIdent(driver, name string) string {
	if driver == "mysql" {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}
