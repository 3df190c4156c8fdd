package stararc

import (
	"fmt"
	"strings"

	"stararc/internal/rowio"
	"stararc/record"
)

// Field is re-exported so archives can be described without importing
// package record.
type Field = record.Field

// An ArchiveFile describes one data file of an archive: where it lives
// and how its rows are shaped and decoded. Build one per core file and
// one per extension file; it is read-only once handed to an Archive.
type ArchiveFile struct {
	// Location is the data file path, relative to the archive root
	// unless absolute.
	Location string
	// RowType labels the schema of this file, e.g. "Taxon". Extension
	// records are grouped under it in a StarRecord.
	RowType string
	// FieldsTerminatedBy separates columns. Empty means tab.
	FieldsTerminatedBy string
	// FieldsEnclosedBy is an optional quote character.
	FieldsEnclosedBy string
	// LinesTerminatedBy is the line terminator the file was written
	// with. Empty means \n.
	LinesTerminatedBy string
	// IgnoreHeaderLines is the number of leading lines to skip.
	IgnoreHeaderLines int
	// Encoding is an IANA charset name. Empty means UTF-8.
	Encoding string
	// IDIndex is the column holding the record identifier, the join
	// key between core and extension files.
	IDIndex int
	// Fields maps term names to columns and defaults.
	Fields []Field
}

// SortedLocation is the deterministic path of this file's sorted
// companion, derived from Location.
func (af *ArchiveFile) SortedLocation() string {
	return af.Location + "-sorted"
}

// HasField reports whether name is mapped in this file.
func (af *ArchiveFile) HasField(name string) bool {
	for _, f := range af.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (af *ArchiveFile) rowConfig() rowio.Config {
	return rowio.Config{
		FieldsTerminatedBy: af.FieldsTerminatedBy,
		FieldsEnclosedBy:   af.FieldsEnclosedBy,
		LinesTerminatedBy:  af.LinesTerminatedBy,
		IgnoreHeaderLines:  af.IgnoreHeaderLines,
		Encoding:           af.Encoding,
	}
}

// open builds a record iterator over the file at loc, which is either
// the descriptor's own location or its sorted companion. Taking the
// location as a parameter, instead of temporarily rewriting the
// descriptor, is what keeps the descriptor immutable during iterator
// construction.
func (af *ArchiveFile) open(loc string, replaceNulls bool) (*record.Iterator, error) {
	src, err := rowio.Open(loc, af.rowConfig())
	if err != nil {
		return nil, fmt.Errorf("stararc: open %s: %w", loc, err)
	}
	return record.NewIterator(src, af.RowType, af.IDIndex, af.Fields, replaceNulls), nil
}

// CompareKeys is the one identifier ordering in the system: plain
// bytewise comparison. The sort step and the merge join both take their
// ordering from here; giving them separate comparators is how extension
// rows get silently mis-skipped.
func CompareKeys(a, b string) int {
	return strings.Compare(a, b)
}
