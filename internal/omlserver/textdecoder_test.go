// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextLine(t *testing.T) {
	row, err := decodeTextLine("1.5\t1\t3\tfoo\tbar")
	require.NoError(t, err)
	assert.Equal(t, 1.5, row.tsClient)
	assert.Equal(t, 1, row.index)
	assert.EqualValues(t, 3, row.seq)
	assert.Equal(t, []string{"foo", "bar"}, row.fields)
}

func TestDecodeTextLineRejectsMalformed(t *testing.T) {
	_, err := decodeTextLine("not-enough\tfields")
	require.Error(t, err)

	_, err = decodeTextLine("notafloat\t1\t1\tx")
	require.Error(t, err)
}

func TestUnescapeText(t *testing.T) {
	assert.Equal(t, "plain", unescapeText("plain"))
	assert.Equal(t, "a\tb", unescapeText(`a\tb`))
	assert.Equal(t, "a\nb", unescapeText(`a\nb`))
	assert.Equal(t, `a\b`, unescapeText(`a\\b`))
}

func TestConvertTextValues(t *testing.T) {
	s := &Schema{Fields: []Field{
		{Name: "a", Kind: KindInt32},
		{Name: "b", Kind: KindDouble},
		{Name: "c", Kind: KindString},
		{Name: "d", Kind: KindBool},
	}}

	var warnings []string
	onWarn := func(format string, args ...any) { warnings = append(warnings, format) }

	values := convertTextValues(s, []string{"42", "3.5", `a\tb`, "1"}, onWarn)
	require.Len(t, values, 4)
	assert.Equal(t, int64(42), values[0].I64)
	assert.Equal(t, 3.5, values[1].F64)
	assert.Equal(t, "a\tb", values[2].Str)
	assert.True(t, values[3].B)
	assert.Empty(t, warnings)
}

func TestConvertTextValuesWarnsOnFieldCountMismatch(t *testing.T) {
	s := &Schema{Fields: []Field{{Name: "a", Kind: KindInt32}, {Name: "b", Kind: KindInt32}}}

	var warnings []string
	onWarn := func(format string, args ...any) { warnings = append(warnings, format) }

	values := convertTextValues(s, []string{"1"}, onWarn)
	require.Len(t, values, 2)
	assert.NotEmpty(t, warnings)
}

func TestConvertTextValuesBlobIsBase64Decoded(t *testing.T) {
	s := &Schema{Fields: []Field{{Name: "payload", Kind: KindBlob}}}
	raw := base64.StdEncoding.EncodeToString([]byte("hello"))

	values := convertTextValues(s, []string{raw}, func(string, ...any) {})
	require.Len(t, values, 1)
	assert.Equal(t, []byte("hello"), values[0].Blob)
}

func TestConvertTextValuesGuidIsDecimal(t *testing.T) {
	s := &Schema{Fields: []Field{{Name: "id", Kind: KindGuid}}}

	values := convertTextValues(s, []string{"18446744073709551615"}, func(string, ...any) {})
	require.Len(t, values, 1)
	assert.Equal(t, uint64(18446744073709551615), values[0].U64)
}
