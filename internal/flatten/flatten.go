// Package flatten turns pages of nested JSON records into flat rows aligned to
// a column schema.
package flatten

import (
	"iter"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/mentionexport/mentionexport/internal/mentions"
)

// Kind classifies a flattened value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindJSON
)

// Value is one scalar cell. The zero Value is null.
type Value struct {
	Kind Kind

	// Raw holds the unquoted text for strings, the literal for numbers and
	// bools, and compact JSON for arrays and empty objects.
	Raw string
}

// Text renders the value for delimited output. Null is the empty string.
func (v Value) Text() string {
	if v.Kind == KindNull {
		return ""
	}
	return v.Raw
}

// Field is a named value from a single record.
type Field struct {
	Column string
	Value  Value
}

// Row is one flattened record. Values line up with the schema columns; Extra
// holds fields the schema does not know, in record order.
type Row struct {
	Values []Value
	Extra  []Field
}

// Schema is an ordered, fixed list of column names.
type Schema struct {
	columns []string
	index   map[string]int
}

// NewSchema creates a schema from columns. Duplicates keep their first position.
func NewSchema(columns ...string) *Schema {
	s := &Schema{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		s.add(c)
	}
	return s
}

func (s *Schema) add(column string) {
	if _, ok := s.index[column]; ok {
		return
	}
	s.index[column] = len(s.columns)
	s.columns = append(s.columns, column)
}

// Columns returns a copy of the column names in order.
func (s *Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

// Len returns the number of columns.
func (s *Schema) Len() int {
	return len(s.columns)
}

// Flatten converts one page into rows.
//
// When schema is nil it is derived from page: the union of every record's
// dotted key paths in first-observed order. Otherwise the given schema is
// returned unchanged and each record is projected onto it. The returned
// sequence is lazy and single-use.
func Flatten(page mentions.Page, schema *Schema) (iter.Seq[Row], *Schema) {
	if schema == nil {
		return derive(page)
	}

	return func(yield func(Row) bool) {
		for _, rec := range page {
			if !yield(project(Record(rec), schema)) {
				return
			}
		}
	}, schema
}

// derive flattens the whole page up front, since the schema must be known
// before the first row is produced.
func derive(page mentions.Page) (iter.Seq[Row], *Schema) {
	schema := NewSchema()
	flat := make([][]Field, len(page))
	for i, rec := range page {
		flat[i] = Record(rec)
		for _, f := range flat[i] {
			schema.add(f.Column)
		}
	}

	return func(yield func(Row) bool) {
		for _, fields := range flat {
			if !yield(project(fields, schema)) {
				return
			}
		}
	}, schema
}

func project(fields []Field, schema *Schema) Row {
	row := Row{Values: make([]Value, len(schema.columns))}
	var seen map[string]struct{}
	for _, f := range fields {
		if i, ok := schema.index[f.Column]; ok {
			row.Values[i] = f.Value
			continue
		}
		if seen == nil {
			seen = make(map[string]struct{})
		}
		if _, dup := seen[f.Column]; dup {
			continue
		}
		seen[f.Column] = struct{}{}
		row.Extra = append(row.Extra, f)
	}
	return row
}

// Record flattens one JSON object into dotted-path fields in document order.
// Nested objects are expanded; arrays and empty objects stay as compact JSON.
// Anything that is not a valid JSON object yields no fields.
func Record(raw []byte) []Field {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return nil
	}

	var fields []Field
	walk("", res, &fields)
	return fields
}

func walk(prefix string, obj gjson.Result, out *[]Field) {
	obj.ForEach(func(key, val gjson.Result) bool {
		name := key.String()
		if prefix != "" {
			name = prefix + "." + name
		}
		if val.IsObject() && hasMembers(val) {
			walk(name, val, out)
			return true
		}
		*out = append(*out, Field{Column: name, Value: valueOf(val)})
		return true
	})
}

func hasMembers(obj gjson.Result) bool {
	found := false
	obj.ForEach(func(_, _ gjson.Result) bool {
		found = true
		return false
	})
	return found
}

func valueOf(v gjson.Result) Value {
	switch v.Type {
	case gjson.Null:
		return Value{}
	case gjson.True, gjson.False:
		return Value{Kind: KindBool, Raw: v.Raw}
	case gjson.Number:
		return Value{Kind: KindNumber, Raw: v.Raw}
	case gjson.String:
		return Value{Kind: KindString, Raw: v.Str}
	default:
		return Value{Kind: KindJSON, Raw: string(pretty.Ugly([]byte(v.Raw)))}
	}
}
