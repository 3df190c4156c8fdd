package record

import (
	"io"
	"log"
	"unicode/utf8"
)

// A Source is the stream of raw rows an Iterator decodes, typically a
// rowio.Reader. Read returns io.EOF at exhaustion and a zero-length row
// for a blank line. Line is an approximate position for diagnostics.
type Source interface {
	Read() ([]string, error)
	Line() int
	Close() error
}

// An Iterator decodes a Source into Records. It is finite, forward-only
// and not restartable. Archives are read-only by contract, so there is
// no way to remove or modify rows through an Iterator.
type Iterator struct {
	src          Source
	rowType      string
	idIndex      int
	fields       []Field
	replaceNulls bool
	closed       bool
}

// NewIterator wraps src with the schema needed to decode its rows. The
// Iterator takes ownership of src and closes it on Close.
func NewIterator(src Source, rowType string, idIndex int, fields []Field, replaceNulls bool) *Iterator {
	return &Iterator{
		src:          src,
		rowType:      rowType,
		idIndex:      idIndex,
		fields:       fields,
		replaceNulls: replaceNulls,
	}
}

// Next returns the next decoded record, skipping blank lines, or io.EOF
// when the source is exhausted. A row that cannot be decoded is logged
// with its approximate line number and returned as a placeholder
// record; a single bad row never aborts iteration. Any other error is
// an I/O failure on the source.
func (it *Iterator) Next() (*Record, error) {
	if it.closed {
		panic("record: iterate after close")
	}
	for {
		row, err := it.src.Read()
		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err
		}
		if len(row) == 0 {
			// Blank line, carries no data.
			continue
		}
		if !rowValid(row) {
			log.Printf("record: bad %s row near line %d, emitting placeholder", it.rowType, it.src.Line())
			return Placeholder(it.rowType), nil
		}
		return Decode(row, it.rowType, it.idIndex, it.fields, it.replaceNulls), nil
	}
}

// RowType is the label of the data file this iterator reads.
func (it *Iterator) RowType() string {
	return it.rowType
}

// Close releases the source. It is safe to call repeatedly and at any
// point during iteration.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.src.Close()
}

// rowValid rejects rows whose cells are not valid UTF-8, the one decode
// failure that survives charset conversion.
func rowValid(row []string) bool {
	for _, cell := range row {
		if !utf8.ValidString(cell) {
			return false
		}
	}
	return true
}
