package filter

// lastFilter keeps only the most recent value seen in the window.
type lastFilter struct {
	field string
	kind  Kind
	v     Value
	have  bool
}

func newLast(field string, kind Kind) (Filter, error) {
	return &lastFilter{field: field, kind: kind}, nil
}

func init() { Register("last", newLast) }

func (f *lastFilter) Input(v Value) error {
	f.v, f.have = v, true
	return nil
}

func (f *lastFilter) Output(dst []Value) (int, error) {
	if len(dst) < 1 {
		return 0, nil
	}
	dst[0] = f.v
	return 1, nil
}

func (f *lastFilter) NewWindow() { f.have = false; f.v = Value{} }

func (f *lastFilter) Schema() []OutputField {
	return []OutputField{{Name: f.field + "_last", Kind: f.kind}}
}
