// Package schema holds the per-record-type column tables for the JV-Data feed
// and the name based type inference used for fields no table lists.
package schema

import (
	"fmt"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
)

// RecordSpec is the two character code that leads every feed line, such as
// "RA" for race details or "SE" for per-horse race results.
type RecordSpec string

// ParseRecordSpec validates s as a record spec code.
func ParseRecordSpec(s string) (RecordSpec, error) {
	spec := RecordSpec(s)
	if !spec.Valid() {
		return "", errors.Newf(errors.ErrorTypeValidation, "invalid record spec %q", s).
			WithDetail("record_spec", s)
	}
	return spec, nil
}

// Valid reports whether the code is exactly two uppercase ASCII letters or digits.
func (s RecordSpec) Valid() bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func (s RecordSpec) String() string {
	return string(s)
}

// ColumnType is the semantic type of a column. The zero value is invalid so
// that an unset type is never mistaken for a real one.
type ColumnType int

const (
	// Integer columns hold numbers carried as digits in the feed: amounts,
	// counts, odds, and date components.
	Integer ColumnType = iota + 1
	// Text columns pass the raw value through unchanged, including
	// zero-padded codes and full-width padding.
	Text
)

// String returns the lowercase type name
func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler
func (t ColumnType) MarshalText() ([]byte, error) {
	switch t {
	case Integer, Text:
		return []byte(t.String()), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeValidation, "unknown column type %d", int(t))
	}
}

// FieldDef is one named column of a schema entry
type FieldDef struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// SchemaEntry is the ordered column table and index columns of one record
// spec. It is immutable after construction.
type SchemaEntry struct {
	title    string
	fields   []FieldDef
	index    []string
	position map[string]int
}

// NewSchemaEntry builds an entry from fields in declaration order. A name
// listed twice keeps its first position and its last type.
func NewSchemaEntry(fields []FieldDef, indexColumns ...string) *SchemaEntry {
	e := &SchemaEntry{
		fields:   make([]FieldDef, 0, len(fields)),
		index:    append([]string(nil), indexColumns...),
		position: make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if pos, ok := e.position[f.Name]; ok {
			e.fields[pos].Type = f.Type
			continue
		}
		e.position[f.Name] = len(e.fields)
		e.fields = append(e.fields, f)
	}
	return e
}

// WithTitle returns a copy of e carrying a human readable title
func (e *SchemaEntry) WithTitle(title string) *SchemaEntry {
	c := *e
	c.title = title
	return &c
}

// Title returns the human readable name of the record type
func (e *SchemaEntry) Title() string {
	return e.title
}

// Type returns the registered type of name
func (e *SchemaEntry) Type(name string) (ColumnType, bool) {
	pos, ok := e.position[name]
	if !ok {
		return 0, false
	}
	return e.fields[pos].Type, true
}

// Position returns the declaration index of name
func (e *SchemaEntry) Position(name string) (int, bool) {
	pos, ok := e.position[name]
	return pos, ok
}

// Fields returns a copy of the column table
func (e *SchemaEntry) Fields() []FieldDef {
	return append([]FieldDef(nil), e.fields...)
}

// IndexColumns returns a copy of the index column names
func (e *SchemaEntry) IndexColumns() []string {
	return append([]string(nil), e.index...)
}

// Len returns the number of registered columns
func (e *SchemaEntry) Len() int {
	return len(e.fields)
}
