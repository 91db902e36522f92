package filter

import "math"

// stddevFilter computes the population standard deviation of a window
// using Welford's online algorithm, avoiding a second pass over the data.
type stddevFilter struct {
	field string
	n     int
	mean  float64
	m2    float64
}

func newStddev(field string, kind Kind) (Filter, error) { return &stddevFilter{field: field}, nil }

func init() { Register("stddev", newStddev) }

func (f *stddevFilter) Input(v Value) error {
	if !v.Kind.IsNumeric() {
		return nil
	}
	f.n++
	delta := v.F64 - f.mean
	f.mean += delta / float64(f.n)
	f.m2 += delta * (v.F64 - f.mean)
	return nil
}

func (f *stddevFilter) Output(dst []Value) (int, error) {
	if len(dst) < 1 {
		return 0, nil
	}
	sd := 0.0
	if f.n > 1 {
		sd = math.Sqrt(f.m2 / float64(f.n))
	}
	dst[0] = Value{Kind: KindDouble, F64: sd}
	return 1, nil
}

func (f *stddevFilter) NewWindow() { f.n, f.mean, f.m2 = 0, 0, 0 }

func (f *stddevFilter) Schema() []OutputField {
	return []OutputField{{Name: f.field + "_stddev", Kind: KindDouble}}
}
