// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(t *testing.T, f Filter, values ...float64) {
	t.Helper()
	for _, v := range values {
		require.NoError(t, f.Input(Value{Kind: KindDouble, F64: v}))
	}
}

func TestRegisteredIncludesBuiltins(t *testing.T) {
	names := Registered()
	for _, want := range []string{"avg", "first", "last", "sum", "delta", "stddev"} {
		assert.Contains(t, names, want)
	}
}

func TestNewUnknownFilter(t *testing.T) {
	_, err := New("does-not-exist", "x", KindDouble)
	require.Error(t, err)
	assert.Equal(t, "filter: unknown filter does-not-exist", err.Error())
}

func TestAverageFilter(t *testing.T) {
	f, err := New("avg", "temp", KindDouble)
	require.NoError(t, err)

	feed(t, f, 1, 2, 3, 4)

	dst := make([]Value, 3)
	n, err := f.Output(dst)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, 2.5, dst[0].F64)
	assert.Equal(t, 1.0, dst[1].F64)
	assert.Equal(t, 4.0, dst[2].F64)

	f.NewWindow()
	dst = make([]Value, 3)
	n, err = f.Output(dst)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	assert.Equal(t, 0.0, dst[0].F64, "empty window averages to zero, not NaN")

	schema := f.Schema()
	require.Len(t, schema, 3)
	assert.Equal(t, "temp_avg", schema[0].Name)
	assert.Equal(t, "temp_min", schema[1].Name)
	assert.Equal(t, "temp_max", schema[2].Name)
}

func TestFirstFilterKeepsEarliestValuePerWindow(t *testing.T) {
	f, err := New("first", "x", KindInt32)
	require.NoError(t, err)

	feed(t, f, 10, 20, 30)
	dst := make([]Value, 1)
	n, err := f.Output(dst)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, 10.0, dst[0].F64)

	assert.Equal(t, []OutputField{{Name: "x", Kind: KindInt32}}, f.Schema())
}

func TestLastFilterKeepsMostRecentValue(t *testing.T) {
	f, err := New("last", "x", KindInt32)
	require.NoError(t, err)

	feed(t, f, 10, 20, 30)
	dst := make([]Value, 1)
	n, err := f.Output(dst)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, 30.0, dst[0].F64)
}

func TestSumFilter(t *testing.T) {
	f, err := New("sum", "x", KindDouble)
	require.NoError(t, err)
	feed(t, f, 1, 2, 3)
	dst := make([]Value, 1)
	_, err = f.Output(dst)
	require.NoError(t, err)
	assert.Equal(t, 6.0, dst[0].F64)
}

func TestDeltaFilterComparesAcrossWindows(t *testing.T) {
	f, err := New("delta", "x", KindDouble)
	require.NoError(t, err)

	dst := make([]Value, 1)
	_, err = f.Output(dst)
	require.NoError(t, err)
	assert.Equal(t, 0.0, dst[0].F64, "no previous window yet")

	feed(t, f, 5)
	f.NewWindow()
	feed(t, f, 12)
	_, err = f.Output(dst)
	require.NoError(t, err)
	assert.Equal(t, 7.0, dst[0].F64)
}

func TestStddevFilterMatchesPopulationFormula(t *testing.T) {
	f, err := New("stddev", "x", KindDouble)
	require.NoError(t, err)
	feed(t, f, 2, 4, 4, 4, 5, 5, 7, 9)

	dst := make([]Value, 1)
	_, err = f.Output(dst)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, dst[0].F64, 1e-9)
}

func TestStddevSingleSampleIsZero(t *testing.T) {
	f, err := New("stddev", "x", KindDouble)
	require.NoError(t, err)
	feed(t, f, 42)
	dst := make([]Value, 1)
	_, err = f.Output(dst)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(dst[0].F64))
	assert.Equal(t, 0.0, dst[0].F64)
}
