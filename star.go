package stararc

import (
	"io"
	"log"

	"stararc/record"
)

// A StarRecord is one core record together with all extension records
// sharing its identifier, grouped by extension row type. Star records
// are allocated per step; retaining one across Next calls is safe.
type StarRecord struct {
	Core *record.Record

	extensions map[string][]*record.Record
}

// Extension returns the attached records of one extension row type, in
// file order. The result is nil when nothing matched.
func (sr *StarRecord) Extension(rowType string) []*record.Record {
	return sr.extensions[rowType]
}

// Extensions returns all attached records grouped by row type. The map
// is owned by the star record; callers must not modify it.
func (sr *StarRecord) Extensions() map[string][]*record.Record {
	return sr.extensions
}

// extStream is one extension decoder plus its single-record lookahead.
// head is nil once the stream is exhausted.
type extStream struct {
	it   *record.Iterator
	head *record.Record
}

// advance replaces the lookahead with the next record. Exhaustion and
// read failure both end the stream; a failure is logged because the
// join has no other way to report it without aborting the core pass.
func (es *extStream) advance() {
	rec, err := es.it.Next()
	if err != nil {
		if err != io.EOF {
			log.Printf("stararc: reading %s extension: %v", es.it.RowType(), err)
		}
		es.head = nil
		return
	}
	es.head = rec
}

// A StarIterator merges the core record stream with one sorted stream
// per extension file, emitting a StarRecord per core record. It makes a
// single forward pass over every stream and never backtracks: an
// extension record, once consumed or discarded, is gone.
type StarIterator struct {
	core    *record.Iterator
	exts    []*extStream
	orphans map[string]int
	closed  bool
}

func newStarIterator(core *record.Iterator, exts []*extStream) *StarIterator {
	it := &StarIterator{
		core:    core,
		exts:    exts,
		orphans: make(map[string]int, len(exts)),
	}
	for _, es := range exts {
		it.orphans[es.it.RowType()] = 0
		es.advance()
	}
	return it
}

// Next returns the star record for the next core record, or io.EOF when
// the core stream is exhausted. Extension records still buffered at
// that point are dropped without being counted as orphans, mirroring
// how mid-stream accounting only ever sees rows the scan walked past.
//
// A core record with a missing identifier is emitted core-only; no
// extension stream is advanced for it.
func (it *StarIterator) Next() (*StarRecord, error) {
	if it.closed {
		panic("stararc: iterate after close")
	}
	core, err := it.core.Next()
	if err != nil {
		return nil, err
	}

	sr := &StarRecord{
		Core:       core,
		extensions: make(map[string][]*record.Record, len(it.exts)),
	}
	id := core.ID()
	if id == "" {
		return sr, nil
	}

	for _, es := range it.exts {
	scan:
		for es.head != nil {
			extID := es.head.ID()
			if extID == "" {
				// Unmatchable, skip it.
				es.advance()
				continue
			}
			switch c := CompareKeys(extID, id); {
			case c == 0:
				// Belongs to this core record; there may be more.
				rowType := es.it.RowType()
				sr.extensions[rowType] = append(sr.extensions[rowType], es.head)
				es.advance()
			case c < 0:
				// Sorts before the current core id, so no core record
				// will ever claim it: an orphan.
				it.orphans[es.it.RowType()]++
				es.advance()
			default:
				// Belongs to a future core record; leave it buffered.
				break scan
			}
		}
	}
	return sr, nil
}

// Orphans returns, per extension row type, how many records were
// discarded so far because no core record matched them. Rows left
// unread when the core stream ends are not included.
func (it *StarIterator) Orphans() map[string]int {
	out := make(map[string]int, len(it.orphans))
	for k, v := range it.orphans {
		out[k] = v
	}
	return out
}

// Close releases the core and every extension decoder and logs a
// summary of orphaned extension records. It is safe to call repeatedly
// and at any point during iteration.
func (it *StarIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true

	err := it.core.Close()
	for _, es := range it.exts {
		if cerr := es.it.Close(); err == nil {
			err = cerr
		}
	}
	for rowType, n := range it.orphans {
		if n > 0 {
			log.Printf("stararc: %d %s extension records without matching core", n, rowType)
		}
	}
	return err
}
