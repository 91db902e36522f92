package omlclient

import (
	"fmt"
	"regexp"
	"sync"
)

var identifierRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name matches the wire grammar's
// `[A-Za-z_][A-Za-z0-9_]*` rule shared by app names, MP/MS names and field
// names.
func ValidIdentifier(name string) bool {
	return name != "" && identifierRE.MatchString(name)
}

// Field describes one column of a measurement point or stream schema.
type Field struct {
	Name string
	Kind Kind
}

// MeasurementPoint is an immutable-schema, named emission site declared
// once per client session. Fields never change after creation; `active`
// and the attached-stream list are the only mutable parts.
type MeasurementPoint struct {
	Name   string
	Fields []Field

	client *Client
	// mu serializes access to the MS list and filter state of this MP,
	// matching the spec's "per-MP lock" discipline (§4.1). It is present
	// on every MP, threshold-only or periodic: a zero sync.Mutex costs
	// nothing and inject() is called from arbitrary goroutines.
	mu       sync.Mutex
	active   bool
	streams  []*MeasurementStream
}

func (mp *MeasurementPoint) fieldIndex(name string) int {
	for i, f := range mp.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// FieldByName returns the field descriptor and true if name is declared on
// this MP.
func (mp *MeasurementPoint) FieldByName(name string) (Field, bool) {
	i := mp.fieldIndex(name)
	if i < 0 {
		return Field{}, false
	}
	return mp.Fields[i], true
}

// newMeasurementPoint validates identifiers and builds a new measurement
// point; Client.AddMP registers it. If the
// client has already started, a schema-0 metadata record announcing the new
// stream(s) is emitted by the caller once MSs are attached -- this method
// only creates the MP itself (see Client.AddMP in client.go, which also
// installs the default filter chain once the client has started).
func newMeasurementPoint(c *Client, name string, fields []Field) (*MeasurementPoint, error) {
	if !ValidIdentifier(name) {
		return nil, fmt.Errorf("omlclient: invalid MP name %q", name)
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if !ValidIdentifier(f.Name) {
			return nil, fmt.Errorf("omlclient: invalid field name %q on MP %q", f.Name, name)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("omlclient: duplicate field name %q on MP %q", f.Name, name)
		}
		seen[f.Name] = true
	}
	return &MeasurementPoint{
		Name:   name,
		Fields: append([]Field(nil), fields...),
		client: c,
		active: true,
	}, nil
}
