// Package filter implements the OMSP filter contract (spec.md §4.2): each
// filter owns private state, consumes one input kind and produces a fixed
// output schema. The core only depends on this interface; the individual
// algorithms below (average, first, last, sum, delta, stddev) are the
// out-of-scope "external collaborators" named in spec.md §1, implemented
// here to the same contract so the default filter policy and the filter
// registry are fully exercised end to end.
package filter

import "sort"

// Kind mirrors omlclient.Kind without importing the client package, to
// avoid a dependency cycle (the client package constructs filters from
// this registry).
type Kind int

const (
	KindUnknown Kind = iota
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindDouble
	KindBool
	KindString
	KindBlob
	KindGuid
)

func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt32, KindUint32, KindInt64, KindUint64, KindDouble:
		return true
	default:
		return false
	}
}

// Value is the minimal value representation filters operate on: a kind tag
// plus a float64 for numeric kinds and a string/blob payload otherwise.
type Value struct {
	Kind Kind
	F64  float64
	Str  string
	Blob []byte
}

// OutputField names one column of a filter's output schema.
type OutputField struct {
	Name string
	Kind Kind
}

// Filter is the per-instance stateful processor attached to one field of
// one measurement stream.
type Filter interface {
	// Input feeds one value into the filter's window.
	Input(v Value) error
	// Output writes the filter's result for the current window into dst
	// (sized to len(Schema())) and returns how many slots it filled.
	Output(dst []Value) (int, error)
	// NewWindow resets window accumulators; called by the core after
	// every Output.
	NewWindow()
	// Schema describes the output columns this filter instance produces.
	Schema() []OutputField
}

// ParamSetter is implemented by filters that accept `set_param` calls.
type ParamSetter interface {
	SetParam(name string, value Value) error
}

// Factory constructs a new Filter instance for one input kind and field
// name (used to derive default output column names, e.g. "x_avg").
type Factory func(fieldName string, inputKind Kind) (Filter, error)

var registry = map[string]Factory{}

// Register adds a filter under name to the process-wide registry. Called
// from each filter's init() -- this mirrors the original C library's
// factory.c but needs no dynamic loading since every filter is linked in
// (spec.md §9, "Runtime reflection").
func Register(name string, f Factory) {
	registry[name] = f
}

// New constructs a filter by registered name.
func New(name, fieldName string, inputKind Kind) (Filter, error) {
	f, ok := registry[name]
	if !ok {
		return nil, ErrUnknownFilter(name)
	}
	return f(fieldName, inputKind)
}

// Registered returns the sorted list of built-in filter names, backing
// `--oml-list-filters`.
func Registered() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type ErrUnknownFilter string

func (e ErrUnknownFilter) Error() string { return "filter: unknown filter " + string(e) }
