// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package omlclient implements the client side of the OMSP instrumentation
// pipeline: measurement points, measurement streams, the filter chain, the
// buffered writer and the output stream.
package omlclient

import (
	"fmt"
	"math"
)

// Kind tags the type of a value carried in a sample slot.
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

func (k Kind) String() string {
	switch k {
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

// ParseKind maps a wire type token to a Kind, including the legacy aliases
// `int`, `integer`, `long` and `float` that the original protocol still
// accepts on ingest. `long` clamps to int32 and the caller is expected to
// warn; ParseKind itself only reports whether the token was legacy.
func ParseKind(token string) (k Kind, legacy bool, err error) {
	switch token {
	case "int32", "integer", "int":
		return KindInt32, token != "int32", nil
	case "long":
		return KindInt32, true, nil
	case "uint32":
		return KindUint32, false, nil
	case "int64":
		return KindInt64, false, nil
	case "uint64":
		return KindUint64, false, nil
	case "double", "float":
		return KindDouble, token == "float", nil
	case "bool":
		return KindBool, false, nil
	case "string":
		return KindString, false, nil
	case "blob":
		return KindBlob, false, nil
	case "guid":
		return KindGuid, false, nil
	default:
		return KindUnknown, false, fmt.Errorf("unknown type token %q", token)
	}
}

// Value is a tagged union of one sample slot. Only the field matching Kind
// is meaningful.
type Value struct {
	Kind   Kind
	I32    int32
	U32    uint32
	I64    int64
	U64    uint64
	F64    float64
	B      bool
	Str    string
	Blob   []byte
	Guid   uint64
}

func Int32(v int32) Value    { return Value{Kind: KindInt32, I32: v} }
func Uint32(v uint32) Value  { return Value{Kind: KindUint32, U32: v} }
func Int64(v int64) Value    { return Value{Kind: KindInt64, I64: v} }
func Uint64(v uint64) Value  { return Value{Kind: KindUint64, U64: v} }
func Double(v float64) Value { return Value{Kind: KindDouble, F64: v} }
func Bool(v bool) Value      { return Value{Kind: KindBool, B: v} }
func String(v string) Value  { return Value{Kind: KindString, Str: v} }
func Blob(v []byte) Value {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Value{Kind: KindBlob, Blob: cp}
}
func Guid(v uint64) Value { return Value{Kind: KindGuid, Guid: v} }

// Long mirrors the deprecated `long` kind: it is stored as int32, clamping
// on overflow. The bool return reports whether clamping occurred so the
// caller can log a warning exactly once per call site.
func Long(v int64) (Value, bool) {
	if v > math.MaxInt32 || v < math.MinInt32 {
		clamped := int32(math.MaxInt32)
		if v < math.MinInt32 {
			clamped = math.MinInt32
		}
		return Value{Kind: KindInt32, I32: clamped}, true
	}
	return Value{Kind: KindInt32, I32: int32(v)}, false
}

// DeepCopy returns a value safe to retain independently of the caller's
// buffers: a blob payload is copied; strings are immutable and everything
// else is by value already.
func (v Value) DeepCopy() Value {
	if v.Kind == KindBlob {
		return Blob(v.Blob)
	}
	// strings are immutable in Go; no copy needed even though the C
	// original deep-copies them.
	return v
}

// IsNumeric reports whether the kind participates in averaging/summing.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt32, KindUint32, KindInt64, KindUint64, KindDouble:
		return true
	default:
		return false
	}
}

// AsFloat64 converts a numeric value to float64 for use inside filters.
// Non-numeric kinds return (0, false).
func (v Value) AsFloat64() (float64, bool) {
	switch v.Kind {
	case KindInt32:
		return float64(v.I32), true
	case KindUint32:
		return float64(v.U32), true
	case KindInt64:
		return float64(v.I64), true
	case KindUint64:
		return float64(v.U64), true
	case KindDouble:
		return v.F64, true
	default:
		return 0, false
	}
}
