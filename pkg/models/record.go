// Package models defines the records that flow from the feed decoder through
// the buffer to the columnar writer, and the typed values the writer
// produces from them.
package models

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

// RawValue is one field as decoded from a feed line: either text, or absent
// when the line did not carry the field.
type RawValue struct {
	text    string
	present bool
}

// Raw returns a present raw value
func Raw(text string) RawValue {
	return RawValue{text: text, present: true}
}

// Missing returns an absent raw value
func Missing() RawValue {
	return RawValue{}
}

// Text returns the raw text and whether the field was present
func (v RawValue) Text() (string, bool) {
	return v.text, v.present
}

// IsAbsent reports whether the field was missing from the line
func (v RawValue) IsAbsent() bool {
	return !v.present
}

// FieldMap maps field names to raw values for one feed line
type FieldMap map[string]RawValue

// FieldsFromStrings builds a FieldMap where every entry is present
func FieldsFromStrings(m map[string]string) FieldMap {
	fields := make(FieldMap, len(m))
	for name, text := range m {
		fields[name] = Raw(text)
	}
	return fields
}

// Get returns the raw value of name; a field not in the map is absent
func (f FieldMap) Get(name string) RawValue {
	return f[name]
}

// ParsedRecord is one decoded feed line
type ParsedRecord struct {
	Spec   schema.RecordSpec
	Fields FieldMap
}

// NewParsedRecord creates a record for spec
func NewParsedRecord(spec schema.RecordSpec, fields FieldMap) ParsedRecord {
	if fields == nil {
		fields = FieldMap{}
	}
	return ParsedRecord{Spec: spec, Fields: fields}
}

// Kind tags the variant held by a Value
type Kind uint8

const (
	// KindAbsent is a null
	KindAbsent Kind = iota
	// KindInteger holds an int64
	KindInteger
	// KindText holds a string
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	default:
		return "absent"
	}
}

// Value is a typed column value. The zero Value is absent.
type Value struct {
	kind Kind
	i    int64
	s    string
}

// IntegerValue wraps n
func IntegerValue(n int64) Value {
	return Value{kind: KindInteger, i: n}
}

// TextValue wraps s
func TextValue(s string) Value {
	return Value{kind: KindText, s: s}
}

// Absent returns the null value
func Absent() Value {
	return Value{}
}

// Kind returns the variant tag
func (v Value) Kind() Kind {
	return v.kind
}

// Int returns the integer and true when v is an IntegerValue
func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KindInteger
}

// Text returns the string and true when v is a TextValue
func (v Value) Text() (string, bool) {
	return v.s, v.kind == KindText
}

// IsAbsent reports whether v is null
func (v Value) IsAbsent() bool {
	return v.kind == KindAbsent
}

// String renders v for display; absent values render as "NULL"
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindText:
		return v.s
	default:
		return "NULL"
	}
}

// MarshalJSON renders integers as numbers, text as strings and absent
// values as null
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInteger:
		return strconv.AppendInt(nil, v.i, 10), nil
	case KindText:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// Convert coerces raw to typ. Text passes through unchanged, padding
// included; Integer goes through ParseInteger.
func Convert(raw RawValue, typ schema.ColumnType) (Value, error) {
	text, ok := raw.Text()
	if !ok {
		return Absent(), nil
	}

	switch typ {
	case schema.Text:
		return TextValue(text), nil
	case schema.Integer:
		n, present, err := ParseInteger(text)
		if err != nil {
			return Absent(), err
		}
		if !present {
			return Absent(), nil
		}
		return IntegerValue(n), nil
	default:
		return Absent(), errors.Newf(errors.ErrorTypeInternal, "unsupported column type %s", typ)
	}
}

// ParseInteger parses a fixed-width numeric field. ASCII and full-width
// spaces around the digits are ignored, a blank field is reported as not
// present, and a leading sign and leading zeros are accepted.
func ParseInteger(text string) (int64, bool, error) {
	trimmed := strings.TrimFunc(text, isPadding)
	if trimmed == "" {
		return 0, false, nil
	}

	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrorTypeConversion, "value is not an integer").
			WithDetail("value", text)
	}
	return n, true, nil
}

func isPadding(r rune) bool {
	return r == ' ' || r == '\t' || r == '　'
}
