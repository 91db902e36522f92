// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlserver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchemaLine(t *testing.T) {
	s, err := ParseSchemaLine("1 app_mp temp:double humidity:double day:int32")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Index)
	assert.Equal(t, "app_mp", s.Name)
	require.Len(t, s.Fields, 3)
	assert.Equal(t, Field{Name: "temp", Kind: KindDouble}, s.Fields[0])
	assert.Equal(t, Field{Name: "day", Kind: KindInt32}, s.Fields[2])
}

func TestParseSchemaLineAcceptsLegacyLongAsInt32(t *testing.T) {
	s, err := ParseSchemaLine("2 app_mp counter:long")
	require.NoError(t, err)
	assert.Equal(t, KindInt32, s.Fields[0].Kind)
}

func TestParseSchemaLineRejectsMalformedInput(t *testing.T) {
	_, err := ParseSchemaLine("not-an-index app_mp x:int32")
	require.Error(t, err)

	_, err = ParseSchemaLine("1 app_mp badfield")
	require.Error(t, err)

	_, err = ParseSchemaLine("1 app_mp x:nonsense")
	require.Error(t, err)

	_, err = ParseSchemaLine("1")
	require.Error(t, err)
}

func TestSanitizeIdentRejectsHostileNames(t *testing.T) {
	_, err := ParseSchemaLine(`1 "); DROP TABLE x;-- x:int32`)
	require.Error(t, err)
}

func TestSchemaEqualIgnoresIndex(t *testing.T) {
	a, err := ParseSchemaLine("1 app_mp x:int32 y:string")
	require.NoError(t, err)
	b, err := ParseSchemaLine("5 app_mp x:int32 y:string")
	require.NoError(t, err)
	assert.True(t, a.Equal(b))

	c, err := ParseSchemaLine("1 app_mp x:int32 y:double")
	require.NoError(t, err)
	assert.False(t, a.Equal(c))
}

func TestSchemaStringRoundTripsThroughParseSchemaLine(t *testing.T) {
	orig, err := ParseSchemaLine("3 app_mp a:int32 b:double c:string")
	require.NoError(t, err)

	reparsed, err := ParseSchemaLine(orig.String())
	require.NoError(t, err)
	assert.True(t, orig.Equal(reparsed))
	assert.Equal(t, orig.Index, reparsed.Index)
}

func TestCreateTableDDLQuotesPerDriver(t *testing.T) {
	s, err := ParseSchemaLine("1 app_mp x:int32")
	require.NoError(t, err)

	sqliteDDL, err := createTableDDL("sqlite3", s)
	require.NoError(t, err)
	assert.True(t, strings.Contains(sqliteDDL, `"app_mp"`))
	assert.True(t, strings.Contains(sqliteDDL, `"x" INTEGER`))

	mysqlDDL, err := createTableDDL("mysql", s)
	require.NoError(t, err)
	assert.True(t, strings.Contains(mysqlDDL, "`app_mp`"))
}
