// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"bufio"
	"encoding/base64"
	"strconv"
	"strings"

	"github.com/oml-collect/oml/internal/omllog"
)

// textRow is one parsed line of the tab-separated encoding, before it is
// either reprocessed as a header meta (index == 0) or dispatched to a
// table (index >= 1).
type textRow struct {
	tsClient float64
	index    int
	seq      int64
	fields   []string
}

// decodeTextLine splits one line the way §4.6's text processing describes:
// `ts_client \t index \t seq \t field...`. It does not convert the trailing
// fields yet -- that needs the schema, which the caller looks up by index.
func decodeTextLine(line string) (*textRow, error) {
	parts := strings.Split(line, "\t")
	if len(parts) < 3 {
		return nil, errMalformedLine
	}

	ts, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return nil, errMalformedLine
	}
	idx, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errMalformedLine
	}
	seq, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return nil, errMalformedLine
	}

	return &textRow{tsClient: ts, index: idx, seq: seq, fields: parts[3:]}, nil
}

var errMalformedLine = textDecodeError("omlserver: malformed text data line")

type textDecodeError string

func (e textDecodeError) Error() string { return string(e) }

// convertTextValues converts the raw text fields of one row against s's
// declared kinds. A field that fails to convert is logged and replaced
// with its kind's zero value so the row is still inserted, per §4.6's
// "Unknown text field conversion" rule.
func convertTextValues(s *Schema, raw []string, onWarn func(format string, args ...any)) []Value {
	if onWarn == nil {
		onWarn = omllog.Warnf
	}
	n := len(s.Fields)
	if len(raw) != n {
		onWarn("omlserver: table %s: field count mismatch, got %d want %d", s.Name, len(raw), n)
	}

	values := make([]Value, n)
	for i := 0; i < n; i++ {
		f := s.Fields[i]
		values[i] = Value{Kind: f.Kind}
		if i >= len(raw) {
			continue
		}
		if err := assignTextField(&values[i], f.Kind, raw[i]); err != nil {
			onWarn("omlserver: table %s field %s: %v", s.Name, f.Name, err)
		}
	}
	return values
}

func assignTextField(v *Value, k Kind, raw string) error {
	switch k {
	case KindInt32, KindInt64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		v.I64 = n
	case KindUint32, KindUint64:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		v.U64 = n
	case KindDouble:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return err
		}
		v.F64 = n
	case KindBool:
		v.B = raw == "1" || raw == "true"
	case KindString:
		v.Str = unescapeText(raw)
	case KindBlob:
		blob, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return err
		}
		v.Blob = blob
	case KindGuid:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return err
		}
		v.U64 = n
	}
	return nil
}

func unescapeText(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 't':
				b.WriteByte('\t')
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// newTextLineReader wraps bufio.Scanner the way the handler consumes a text
// connection: one line at a time, with the scanner's line-length cap raised
// to 16 MiB for long blob-as-base64 rows.
func newTextLineReader(r *bufio.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 16*1024*1024)
	return sc
}
