// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import "fmt"

// Value is one decoded sample slot, produced by the text or binary decoder
// and consumed by Database.Insert. Unlike omlclient.Value this type never
// crosses back out to the wire -- it only flows decoder -> database -> sql
// driver argument.
type Value struct {
	Kind Kind
	I64  int64
	U64  uint64
	F64  float64
	B    bool
	Str  string
	Blob []byte
}

// SQLArg converts a decoded value into something database/sql accepts as a
// bind argument.
func (v Value) SQLArg() (interface{}, error) {
	switch v.Kind {
	case KindInt32, KindInt64:
		return v.I64, nil
	case KindUint32, KindUint64:
		return v.U64, nil
	case KindDouble:
		return v.F64, nil
	case KindBool:
		if v.B {
			return 1, nil
		}
		return 0, nil
	case KindString:
		return v.Str, nil
	case KindBlob:
		return v.Blob, nil
	case KindGuid:
		return v.U64, nil
	default:
		return nil, fmt.Errorf("omlserver: value has no sql binding for kind %v", v.Kind)
	}
}
