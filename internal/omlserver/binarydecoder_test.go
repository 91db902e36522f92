// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appendTestBinValue mirrors internal/omlclient/writer_binary.go's
// appendBinValue encoder, kept deliberately separate (see the comment on
// binarydecoder.go's wire constants for why client and server never share
// them).
func appendTestBinValue(buf []byte, v Value) []byte {
	switch v.Kind {
	case KindInt32:
		buf = append(buf, binKindInt32)
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(int32(v.I64)))
		return append(buf, tmp[:]...)
	case KindUint32:
		buf = append(buf, binKindUint32)
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(v.U64))
		return append(buf, tmp[:]...)
	case KindInt64:
		buf = append(buf, binKindInt64)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(v.I64))
		return append(buf, tmp[:]...)
	case KindUint64:
		buf = append(buf, binKindUint64)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], v.U64)
		return append(buf, tmp[:]...)
	case KindDouble:
		buf = append(buf, binKindDouble)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], math.Float64bits(v.F64))
		return append(buf, tmp[:]...)
	case KindBool:
		buf = append(buf, binKindBool)
		if v.B {
			return append(buf, 1)
		}
		return append(buf, 0)
	case KindString:
		buf = append(buf, binKindString, byte(len(v.Str)))
		return append(buf, v.Str...)
	case KindBlob:
		buf = append(buf, binKindBlob)
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], uint32(len(v.Blob)))
		buf = append(buf, tmp[:]...)
		return append(buf, v.Blob...)
	case KindGuid:
		buf = append(buf, binKindGuid)
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], v.U64)
		return append(buf, tmp[:]...)
	default:
		panic("unsupported kind in test helper")
	}
}

// buildTestFrame assembles one DATA_P frame: sync, tag, length byte, then
// the fixed index/seq/ts_client triple followed by the field values.
func buildTestFrame(index uint32, seq uint64, tsClient float64, fields []Value) []byte {
	var payload []byte
	payload = appendTestBinValue(payload, Value{Kind: KindUint32, U64: uint64(index)})
	payload = appendTestBinValue(payload, Value{Kind: KindUint64, U64: seq})
	payload = appendTestBinValue(payload, Value{Kind: KindDouble, F64: tsClient})
	for _, f := range fields {
		payload = appendTestBinValue(payload, f)
	}

	frame := []byte{binSync0, binSync1, binTagDataP, byte(len(payload))}
	return append(frame, payload...)
}

func TestDecodeBinaryFramesSingleFrame(t *testing.T) {
	frame := buildTestFrame(1, 42, 1.5, []Value{
		{Kind: KindInt32, I64: -7},
		{Kind: KindString, Str: "hello"},
	})

	rows, skipped, remainder := decodeBinaryFrames(frame)
	require.Len(t, rows, 1)
	assert.Equal(t, 0, skipped)
	assert.Empty(t, remainder)

	row := rows[0]
	assert.EqualValues(t, 1, row.index)
	assert.EqualValues(t, 42, row.seq)
	assert.Equal(t, 1.5, row.tsClie)
	require.Len(t, row.values, 2)
	assert.Equal(t, int64(-7), row.values[0].I64)
	assert.Equal(t, "hello", row.values[1].Str)
}

func TestDecodeBinaryFramesSkipsGarbageBeforeSync(t *testing.T) {
	frame := buildTestFrame(2, 1, 0.0, []Value{{Kind: KindBool, B: true}})
	buf := append([]byte{0x00, 0x01, 0x02}, frame...)

	rows, skipped, remainder := decodeBinaryFrames(buf)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, skipped)
	assert.Empty(t, remainder)
}

func TestDecodeBinaryFramesReturnsRemainderOnTruncatedFrame(t *testing.T) {
	frame := buildTestFrame(1, 1, 0.0, []Value{{Kind: KindInt32, I64: 5}})
	truncated := frame[:len(frame)-2]

	rows, _, remainder := decodeBinaryFrames(truncated)
	assert.Empty(t, rows)
	assert.NotEmpty(t, remainder)
}

func TestDecodeBinaryFramesMultipleFrames(t *testing.T) {
	f1 := buildTestFrame(1, 1, 1.0, []Value{{Kind: KindInt32, I64: 1}})
	f2 := buildTestFrame(1, 2, 2.0, []Value{{Kind: KindInt32, I64: 2}})

	rows, _, remainder := decodeBinaryFrames(append(f1, f2...))
	require.Len(t, rows, 2)
	assert.Empty(t, remainder)
	assert.EqualValues(t, 1, rows[0].seq)
	assert.EqualValues(t, 2, rows[1].seq)
}

func TestReadBinValueGuidRoundTrips(t *testing.T) {
	var buf []byte
	buf = appendTestBinValue(buf, Value{Kind: KindGuid, U64: 18446744073709551615})

	v, rest, err := readBinValue(buf)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, KindGuid, v.Kind)
	assert.Equal(t, uint64(18446744073709551615), v.U64)

	arg, err := v.SQLArg()
	require.NoError(t, err)
	assert.Equal(t, uint64(18446744073709551615), arg)
}

func TestReadBinValueTruncated(t *testing.T) {
	buf := []byte{binKindInt64, 0x00, 0x01}
	_, _, err := readBinValue(buf)
	require.Error(t, err)
}

func TestReadBinValueUnknownTag(t *testing.T) {
	_, _, err := readBinValue([]byte{0xFF})
	require.Error(t, err)
}

func TestConvertBinaryValuesRejectsKindMismatch(t *testing.T) {
	s := &Schema{Name: "t", Fields: []Field{{Name: "a", Kind: KindString}}}
	row := &binRow{values: []Value{{Kind: KindInt32, I64: 1}}}

	_, err := convertBinaryValues(s, row)
	require.Error(t, err)
}

func TestConvertBinaryValuesRejectsFieldCountMismatch(t *testing.T) {
	s := &Schema{Name: "t", Fields: []Field{{Name: "a", Kind: KindInt32}, {Name: "b", Kind: KindInt32}}}
	row := &binRow{values: []Value{{Kind: KindInt32, I64: 1}}}

	_, err := convertBinaryValues(s, row)
	require.Error(t, err)
}

func TestConvertBinaryValuesAcceptsMatchingKinds(t *testing.T) {
	s := &Schema{Name: "t", Fields: []Field{{Name: "a", Kind: KindInt32}, {Name: "b", Kind: KindGuid}}}
	row := &binRow{values: []Value{{Kind: KindInt32, I64: 1}, {Kind: KindGuid, U64: 9}}}

	values, err := convertBinaryValues(s, row)
	require.NoError(t, err)
	assert.Len(t, values, 2)
}

func TestKindsCompatibleAllowsLegacyLongAliasing(t *testing.T) {
	assert.True(t, kindsCompatible(KindInt32, KindUint32))
	assert.True(t, kindsCompatible(KindUint32, KindInt32))
	assert.True(t, kindsCompatible(KindInt64, KindUint64))
	assert.False(t, kindsCompatible(KindInt32, KindInt64))
	assert.False(t, kindsCompatible(KindString, KindInt32))
}
