package omlclient

import (
	"fmt"
	"time"

	"github.com/oml-collect/oml/internal/omlclient/filter"
)

// fieldFilter pairs one attached filter with the MP field index it
// consumes, matching spec.md §4.2: "each [filter] receives exactly the MP
// field it is attached to".
type fieldFilter struct {
	fieldIndex int
	f          filter.Filter
}

// MeasurementStream derives one output row per trigger from one
// measurement point via an ordered filter chain (spec.md §3).
type MeasurementStream struct {
	Index     int
	Name      string // "<app>_<mp>" by convention
	TableName string

	mp      *MeasurementPoint
	filters []fieldFilter
	writer  Writer

	// Exactly one of Threshold/Period is set (spec invariant).
	Threshold int
	Period    time.Duration

	seq     uint64 // sequence counter, starts at 0, first emitted seq is 1
	counter int    // samples seen since last emit, threshold mode only

	stopTimer chan struct{}
}

// OutputSchema is the concatenation, in filter-chain order, of every
// attached filter's declared output columns.
func (ms *MeasurementStream) OutputSchema() []Field {
	out := make([]Field, 0, len(ms.filters))
	for _, ff := range ms.filters {
		for _, of := range ff.f.Schema() {
			out = append(out, Field{Name: of.Name, Kind: Kind(of.Kind)})
		}
	}
	return out
}

func toFilterKind(k Kind) filter.Kind { return filter.Kind(k) }

// setWriter binds the writer this stream emits through. Called once by
// Client when the stream is declared (or, for MSs added after Start, at
// attach time).
func (ms *MeasurementStream) setWriter(w Writer) { ms.writer = w }

// attachFilter appends name as the filter handling mp.Fields[fieldIndex].
func (ms *MeasurementStream) attachFilter(name string, fieldIndex int) error {
	field := ms.mp.Fields[fieldIndex]
	f, err := filter.New(name, field.Name, toFilterKind(field.Kind))
	if err != nil {
		return fmt.Errorf("omlclient: MS %q: %w", ms.Name, err)
	}
	ms.filters = append(ms.filters, fieldFilter{fieldIndex: fieldIndex, f: f})
	return nil
}

// defaultFilterName implements spec.md §4.1's default filter policy: avg
// for numeric fields on a multi-sample-per-output stream, first otherwise.
func defaultFilterName(k Kind, multiSample bool) string {
	if multiSample && k.IsNumeric() {
		return "avg"
	}
	return "first"
}

// emit runs the filter-emit path: gathers each filter's output, starts a
// row on the writer, writes every column and ends the row, then resets
// every filter's window. Called with the MP lock held.
func (ms *MeasurementStream) emit(now time.Time) error {
	if ms.writer == nil {
		return nil
	}
	schema := ms.OutputSchema()
	values := make([]Value, 0, len(schema))
	for _, ff := range ms.filters {
		width := len(ff.f.Schema())
		dst := make([]filter.Value, width)
		n, err := ff.f.Output(dst)
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			values = append(values, fromFilterValue(dst[i]))
		}
	}

	ms.seq++
	if err := ms.writer.RowStart(ms, now); err != nil {
		return err
	}
	ms.writer.EmitCols(values)
	if err := ms.writer.RowEnd(ms); err != nil {
		return err
	}

	for _, ff := range ms.filters {
		ff.f.NewWindow()
	}
	return nil
}

func fromFilterValue(v filter.Value) Value {
	switch v.Kind {
	case filter.KindInt32:
		return Value{Kind: KindInt32, I32: int32(v.F64)}
	case filter.KindUint32:
		return Value{Kind: KindUint32, U32: uint32(v.F64)}
	case filter.KindInt64:
		return Value{Kind: KindInt64, I64: int64(v.F64)}
	case filter.KindUint64:
		return Value{Kind: KindUint64, U64: uint64(v.F64)}
	case filter.KindDouble:
		return Value{Kind: KindDouble, F64: v.F64}
	case filter.KindBool:
		return Value{Kind: KindBool, B: v.F64 != 0}
	case filter.KindString:
		return Value{Kind: KindString, Str: v.Str}
	case filter.KindBlob:
		return Value{Kind: KindBlob, Blob: v.Blob}
	default:
		return Value{Kind: KindUnknown}
	}
}

func toFilterValue(v Value) filter.Value {
	switch v.Kind {
	case KindString:
		return filter.Value{Kind: filter.KindString, Str: v.Str}
	case KindBlob:
		return filter.Value{Kind: filter.KindBlob, Blob: v.Blob}
	case KindBool:
		f := 0.0
		if v.B {
			f = 1
		}
		return filter.Value{Kind: filter.KindBool, F64: f}
	default:
		f, _ := v.AsFloat64()
		return filter.Value{Kind: filter.Kind(v.Kind), F64: f}
	}
}

// Seq returns the current sequence counter. Only safe to call with the
// owning MP's lock held (e.g. from within Client.Inject's callback path).
func (ms *MeasurementStream) Seq() uint64 { return ms.seq }
