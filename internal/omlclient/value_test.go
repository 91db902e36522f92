// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlclient

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		token   string
		want    Kind
		legacy  bool
		wantErr bool
	}{
		{"int32", KindInt32, false, false},
		{"integer", KindInt32, true, false},
		{"int", KindInt32, true, false},
		{"long", KindInt32, true, false},
		{"uint32", KindUint32, false, false},
		{"int64", KindInt64, false, false},
		{"uint64", KindUint64, false, false},
		{"double", KindDouble, false, false},
		{"float", KindDouble, true, false},
		{"bool", KindBool, false, false},
		{"string", KindString, false, false},
		{"blob", KindBlob, false, false},
		{"guid", KindGuid, false, false},
		{"nonsense", KindUnknown, false, true},
	}
	for _, c := range cases {
		t.Run(c.token, func(t *testing.T) {
			k, legacy, err := ParseKind(c.token)
			if c.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, k)
			assert.Equal(t, c.legacy, legacy)
		})
	}
}

func TestLongClampsOnOverflow(t *testing.T) {
	v, clamped := Long(100)
	assert.False(t, clamped)
	assert.Equal(t, int32(100), v.I32)

	v, clamped = Long(math.MaxInt32 + 1000)
	assert.True(t, clamped)
	assert.Equal(t, int32(math.MaxInt32), v.I32)

	v, clamped = Long(math.MinInt32 - 1000)
	assert.True(t, clamped)
	assert.Equal(t, int32(math.MinInt32), v.I32)
}

func TestValueDeepCopyIsolatesBlobs(t *testing.T) {
	orig := []byte{1, 2, 3}
	v := Blob(orig)
	cp := v.DeepCopy()

	orig[0] = 0xff
	assert.Equal(t, byte(1), cp.Blob[0], "DeepCopy must not alias the source slice's backing array")
}

func TestAsFloat64(t *testing.T) {
	f, ok := Int32(7).AsFloat64()
	assert.True(t, ok)
	assert.Equal(t, 7.0, f)

	_, ok = String("x").AsFloat64()
	assert.False(t, ok)
}

func TestKindIsNumeric(t *testing.T) {
	for _, k := range []Kind{KindInt32, KindUint32, KindInt64, KindUint64, KindDouble} {
		assert.True(t, k.IsNumeric(), k.String())
	}
	for _, k := range []Kind{KindBool, KindString, KindBlob, KindGuid} {
		assert.False(t, k.IsNumeric(), k.String())
	}
}
