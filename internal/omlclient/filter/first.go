package filter

// firstFilter passes through the first value seen in each window,
// untouched -- the default for string/blob fields and for any field on a
// threshold-1 stream (spec.md §4.1 "default filter policy").
type firstFilter struct {
	field string
	kind  Kind
	have  bool
	v     Value
}

func newFirst(field string, kind Kind) (Filter, error) {
	return &firstFilter{field: field, kind: kind}, nil
}

func init() { Register("first", newFirst) }

func (f *firstFilter) Input(v Value) error {
	if !f.have {
		f.v = v
		f.have = true
	}
	return nil
}

func (f *firstFilter) Output(dst []Value) (int, error) {
	if len(dst) < 1 {
		return 0, nil
	}
	dst[0] = f.v
	return 1, nil
}

func (f *firstFilter) NewWindow() {
	f.have = false
	f.v = Value{}
}

func (f *firstFilter) Schema() []OutputField {
	return []OutputField{{Name: f.field, Kind: f.kind}}
}
