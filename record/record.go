// Package record turns raw rows of a star archive data file into
// semantically addressable records: an identifier plus lookup of named
// fields, with optional replacement of literal null tokens.
package record

import "strings"

// A Field maps a named term to a column of a data file. Index is the
// zero-based column position, or -1 when the field has no column and
// always takes its Default.
type Field struct {
	Name    string
	Index   int
	Default string
}

// A Record is one decoded data row. Records are allocated per row; it
// is safe to retain one across iteration steps.
type Record struct {
	rowType string
	id      string
	values  map[string]string
}

// Decode builds a Record from one raw row. A row shorter than the
// highest column index is treated as present-but-empty in the missing
// columns. When replaceNulls is set, literal null tokens in field
// values become empty values.
func Decode(row []string, rowType string, idIndex int, fields []Field, replaceNulls bool) *Record {
	r := &Record{
		rowType: rowType,
		values:  make(map[string]string, len(fields)),
	}
	if idIndex >= 0 && idIndex < len(row) {
		r.id = row[idIndex]
	}
	for _, f := range fields {
		v := ""
		if f.Index >= 0 && f.Index < len(row) {
			v = row[f.Index]
		}
		if v == "" {
			v = f.Default
		}
		if replaceNulls && isNullLiteral(v) {
			v = ""
		}
		r.values[f.Name] = v
	}
	return r
}

// Placeholder builds the empty record returned for a row that failed to
// decode. It has no identifier and no field values.
func Placeholder(rowType string) *Record {
	return &Record{rowType: rowType, values: map[string]string{}}
}

// ID is the record identifier, or "" when the identifier column was
// missing or empty. The star join treats such records as unmatchable.
func (r *Record) ID() string {
	return r.id
}

// RowType is the label of the data file this record came from.
func (r *Record) RowType() string {
	return r.rowType
}

// Value looks up a named field. Unknown fields and null values both
// yield "".
func (r *Record) Value(name string) string {
	return r.values[name]
}

// Has reports whether name is a field of this record's schema.
func (r *Record) Has(name string) bool {
	_, ok := r.values[name]
	return ok
}

// Values exposes all decoded fields. The map is owned by the record;
// callers must not modify it.
func (r *Record) Values() map[string]string {
	return r.values
}

// isNullLiteral matches the null spellings that occur in the wild:
// any capitalization of "null", and the MySQL dump escape \N.
func isNullLiteral(v string) bool {
	return strings.EqualFold(v, "null") || v == `\N`
}
