// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidIdentifier(t *testing.T) {
	for _, ok := range []string{"a", "_foo", "foo_bar1", "A1"} {
		assert.True(t, ValidIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1foo", "foo-bar", "foo.bar", "foo bar"} {
		assert.False(t, ValidIdentifier(bad), bad)
	}
}

func TestNewMeasurementPointRejectsInvalidNames(t *testing.T) {
	c := &Client{}
	_, err := newMeasurementPoint(c, "1bad", nil)
	require.Error(t, err)
}

func TestNewMeasurementPointRejectsDuplicateFields(t *testing.T) {
	c := &Client{}
	_, err := newMeasurementPoint(c, "mp1", []Field{
		{Name: "x", Kind: KindInt32},
		{Name: "x", Kind: KindDouble},
	})
	require.Error(t, err)
}

func TestNewMeasurementPointRejectsInvalidFieldNames(t *testing.T) {
	c := &Client{}
	_, err := newMeasurementPoint(c, "mp1", []Field{{Name: "9bad", Kind: KindInt32}})
	require.Error(t, err)
}

func TestMeasurementPointFieldByName(t *testing.T) {
	c := &Client{}
	mp, err := newMeasurementPoint(c, "mp1", []Field{
		{Name: "x", Kind: KindInt32},
		{Name: "y", Kind: KindDouble},
	})
	require.NoError(t, err)

	f, ok := mp.FieldByName("y")
	require.True(t, ok)
	assert.Equal(t, KindDouble, f.Kind)

	_, ok = mp.FieldByName("z")
	assert.False(t, ok)
}

func TestMeasurementPointFieldsAreCopiedNotAliased(t *testing.T) {
	c := &Client{}
	fields := []Field{{Name: "x", Kind: KindInt32}}
	mp, err := newMeasurementPoint(c, "mp1", fields)
	require.NoError(t, err)

	fields[0].Name = "mutated"
	assert.Equal(t, "x", mp.Fields[0].Name, "newMeasurementPoint must copy the field slice")
}
