// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of cc-backend.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package omlclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFilterNamePolicy(t *testing.T) {
	assert.Equal(t, "avg", defaultFilterName(KindDouble, true))
	assert.Equal(t, "first", defaultFilterName(KindDouble, false))
	assert.Equal(t, "first", defaultFilterName(KindString, true))
	assert.Equal(t, "first", defaultFilterName(KindString, false))
}

// recordingWriter captures every row emitted to it, for assertions
// without a real transport.
type recordingWriter struct {
	rows [][]Value
}

func (w *recordingWriter) RowStart(ms *MeasurementStream, t time.Time) error { return nil }
func (w *recordingWriter) EmitCols(vals []Value)                            { w.rows = append(w.rows, vals) }
func (w *recordingWriter) RowEnd(ms *MeasurementStream) error                { return nil }
func (w *recordingWriter) Meta(line []byte)                                 {}
func (w *recordingWriter) HeaderDone()                                      {}
func (w *recordingWriter) Close() (Writer, error)                           { return nil, nil }

func TestMeasurementStreamEmitRunsFilterChainInOrder(t *testing.T) {
	mp, err := newMeasurementPoint(&Client{}, "mp1", []Field{
		{Name: "a", Kind: KindDouble},
		{Name: "b", Kind: KindString},
	})
	require.NoError(t, err)

	ms := &MeasurementStream{Index: 1, Name: "app_mp1", mp: mp, Threshold: 1}
	require.NoError(t, ms.attachFilter("avg", 0))
	require.NoError(t, ms.attachFilter("first", 1))

	w := &recordingWriter{}
	ms.setWriter(w)

	schema := ms.OutputSchema()
	require.Len(t, schema, 4) // a_avg, a_min, a_max, b
	assert.Equal(t, "a_avg", schema[0].Name)
	assert.Equal(t, "b", schema[3].Name)

	for _, ff := range ms.filters {
		if ff.fieldIndex == 0 {
			require.NoError(t, ff.f.Input(toFilterValue(Double(3))))
			require.NoError(t, ff.f.Input(toFilterValue(Double(5))))
		} else {
			require.NoError(t, ff.f.Input(toFilterValue(String("hello"))))
		}
	}

	require.NoError(t, ms.emit(time.Now()))
	require.Len(t, w.rows, 1)
	row := w.rows[0]
	require.Len(t, row, 4)
	assert.Equal(t, 4.0, row[0].F64)
	assert.Equal(t, "hello", row[3].Str)
	assert.EqualValues(t, 1, ms.Seq())
}
