// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/oml-collect/oml/internal/omllog"
)

// Binary wire constants mirroring internal/omlclient/writer_binary.go.
// Duplicated rather than imported: see that file's comment for why.
const (
	binSync0 = 0xAA
	binSync1 = 0xAA

	binTagDataP  = 0x1
	binTagLDataP = 0x2

	binKindInt32  = 0x1
	binKindUint32 = 0x2
	binKindInt64  = 0x3
	binKindUint64 = 0x4
	binKindDouble = 0x5
	binKindBool   = 0x6
	binKindString = 0x7
	binKindBlob   = 0x8
	binKindGuid   = 0x9
)

// binRow is one decoded binary frame's fixed header plus its raw value
// stream, not yet converted against a schema.
type binRow struct {
	index  uint32
	seq    uint64
	tsClie float64
	values []Value
	kinds  []Kind // wire kind per value, for mismatch detection against schema
}

// decodeBinaryFrames scans buf for sync-prefixed frames, consuming as many
// complete frames as are present. It returns the decoded rows, the number
// of leading bytes that were skipped looking for sync (logged by the
// caller), and the number of trailing bytes left unconsumed (to be
// prepended to the next read), per §4.6's "if length exceeds remaining
// buffered bytes, return to wait for more".
func decodeBinaryFrames(buf []byte) (rows []*binRow, skipped int, remainder []byte) {
	i := 0
	for i < len(buf) {
		start := i
		for i+1 < len(buf) && !(buf[i] == binSync0 && buf[i+1] == binSync1) {
			i++
		}
		if i+1 >= len(buf) {
			return rows, skipped + (i - start), buf[start:]
		}
		skipped += i - start
		start = i // the frame's sync position
		i += 2    // past sync bytes

		if i >= len(buf) {
			return rows, skipped, buf[i-2:]
		}
		tag := buf[i]
		i++

		var payloadLen int
		switch tag {
		case binTagDataP:
			if i >= len(buf) {
				return rows, skipped, buf[start:]
			}
			payloadLen = int(buf[i])
			i++
		case binTagLDataP:
			if i+4 > len(buf) {
				return rows, skipped, buf[start:]
			}
			payloadLen = int(binary.BigEndian.Uint32(buf[i : i+4]))
			i += 4
		default:
			omllog.Warnf("omlserver: unknown binary type tag 0x%x, skipping sync", tag)
			continue
		}

		if i+payloadLen > len(buf) {
			return rows, skipped, buf[start:] // not enough buffered yet; rewind to sync
		}

		payload := buf[i : i+payloadLen]
		i += payloadLen

		row, err := decodeBinaryPayload(payload)
		if err != nil {
			omllog.Warnf("omlserver: binary frame decode: %v", err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, skipped, nil
}

// decodeBinaryPayload unpacks the fixed stream_index/seq/ts_client triple
// followed by the variable tagged value stream, mirroring
// internal/omlclient/writer_binary.go's appendBinValue encoding.
func decodeBinaryPayload(payload []byte) (*binRow, error) {
	v, rest, err := readBinValue(payload)
	if err != nil || v.Kind != KindUint32 {
		return nil, fmt.Errorf("bad stream index field")
	}
	index := uint32(v.U64)

	v, rest, err = readBinValue(rest)
	if err != nil || v.Kind != KindUint64 {
		return nil, fmt.Errorf("bad seq field")
	}
	seq := v.U64

	v, rest, err = readBinValue(rest)
	if err != nil || v.Kind != KindDouble {
		return nil, fmt.Errorf("bad ts_client field")
	}
	ts := v.F64

	var values []Value
	var kinds []Kind
	for len(rest) > 0 {
		var val Value
		val, rest, err = readBinValue(rest)
		if err != nil {
			return nil, err
		}
		values = append(values, val)
		kinds = append(kinds, val.Kind)
	}

	return &binRow{index: index, seq: seq, tsClie: ts, values: values, kinds: kinds}, nil
}

func readBinValue(b []byte) (Value, []byte, error) {
	if len(b) < 1 {
		return Value{}, nil, fmt.Errorf("truncated value tag")
	}
	tag, b := b[0], b[1:]

	switch tag {
	case binKindInt32:
		if len(b) < 4 {
			return Value{}, nil, fmt.Errorf("truncated int32")
		}
		return Value{Kind: KindInt32, I64: int64(int32(binary.BigEndian.Uint32(b)))}, b[4:], nil
	case binKindUint32:
		if len(b) < 4 {
			return Value{}, nil, fmt.Errorf("truncated uint32")
		}
		return Value{Kind: KindUint32, U64: uint64(binary.BigEndian.Uint32(b))}, b[4:], nil
	case binKindInt64:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("truncated int64")
		}
		return Value{Kind: KindInt64, I64: int64(binary.BigEndian.Uint64(b))}, b[8:], nil
	case binKindUint64:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("truncated uint64")
		}
		return Value{Kind: KindUint64, U64: binary.BigEndian.Uint64(b)}, b[8:], nil
	case binKindDouble:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("truncated double")
		}
		return Value{Kind: KindDouble, F64: math.Float64frombits(binary.BigEndian.Uint64(b))}, b[8:], nil
	case binKindBool:
		if len(b) < 1 {
			return Value{}, nil, fmt.Errorf("truncated bool")
		}
		return Value{Kind: KindBool, B: b[0] != 0}, b[1:], nil
	case binKindString:
		if len(b) < 1 || len(b) < 1+int(b[0]) {
			return Value{}, nil, fmt.Errorf("truncated string")
		}
		n := int(b[0])
		return Value{Kind: KindString, Str: string(b[1 : 1+n])}, b[1+n:], nil
	case binKindBlob:
		if len(b) < 4 {
			return Value{}, nil, fmt.Errorf("truncated blob length")
		}
		n := int(binary.BigEndian.Uint32(b))
		if len(b) < 4+n {
			return Value{}, nil, fmt.Errorf("truncated blob")
		}
		blob := make([]byte, n)
		copy(blob, b[4:4+n])
		return Value{Kind: KindBlob, Blob: blob}, b[4+n:], nil
	case binKindGuid:
		if len(b) < 8 {
			return Value{}, nil, fmt.Errorf("truncated guid")
		}
		return Value{Kind: KindGuid, U64: binary.BigEndian.Uint64(b)}, b[8:], nil
	default:
		return Value{}, nil, fmt.Errorf("unknown value tag 0x%x", tag)
	}
}

// convertBinaryValues validates a decoded row's wire kinds against the
// schema's declared kinds, per §4.6: "Values must match declared kinds;
// type mismatch aborts the row with a log message but not the connection."
func convertBinaryValues(s *Schema, row *binRow) ([]Value, error) {
	if len(row.values) != len(s.Fields) {
		return nil, fmt.Errorf("omlserver: table %s: field count mismatch, got %d want %d", s.Name, len(row.values), len(s.Fields))
	}
	for i, f := range s.Fields {
		if !kindsCompatible(f.Kind, row.values[i].Kind) {
			return nil, fmt.Errorf("omlserver: table %s field %s: kind mismatch, got %v want %v", s.Name, f.Name, row.values[i].Kind, f.Kind)
		}
	}
	return row.values, nil
}

func kindsCompatible(declared, wire Kind) bool {
	if declared == wire {
		return true
	}
	// int32/uint32 (and their 64-bit counterparts) are accepted
	// interchangeably: the original C library does not distinguish
	// signedness for the legacy `long` alias.
	switch declared {
	case KindInt32, KindUint32:
		return wire == KindInt32 || wire == KindUint32
	case KindInt64, KindUint64:
		return wire == KindInt64 || wire == KindUint64
	default:
		return false
	}
}
