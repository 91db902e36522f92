package filter

// averageFilter accumulates numeric samples over a window and emits
// (avg, min, max) on Output -- the default for numeric fields on any
// measurement stream that emits more than one sample per output
// (spec.md §4.1, testable property #5).
type averageFilter struct {
	field        string
	n            int
	sum, min, max float64
}

func newAverage(field string, kind Kind) (Filter, error) {
	return &averageFilter{field: field}, nil
}

func init() { Register("avg", newAverage) }

func (f *averageFilter) Input(v Value) error {
	if !v.Kind.IsNumeric() {
		return nil
	}
	x := v.F64
	if f.n == 0 {
		f.min, f.max = x, x
	} else {
		if x < f.min {
			f.min = x
		}
		if x > f.max {
			f.max = x
		}
	}
	f.sum += x
	f.n++
	return nil
}

func (f *averageFilter) Output(dst []Value) (int, error) {
	if len(dst) < 3 {
		return 0, nil
	}
	avg := 0.0
	if f.n > 0 {
		avg = f.sum / float64(f.n)
	}
	dst[0] = Value{Kind: KindDouble, F64: avg}
	dst[1] = Value{Kind: KindDouble, F64: f.min}
	dst[2] = Value{Kind: KindDouble, F64: f.max}
	return 3, nil
}

func (f *averageFilter) NewWindow() {
	f.n = 0
	f.sum, f.min, f.max = 0, 0, 0
}

func (f *averageFilter) Schema() []OutputField {
	return []OutputField{
		{Name: f.field + "_avg", Kind: KindDouble},
		{Name: f.field + "_min", Kind: KindDouble},
		{Name: f.field + "_max", Kind: KindDouble},
	}
}
