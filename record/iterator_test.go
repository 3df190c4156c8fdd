package record

import (
	"io"
	"testing"
)

// fakeSource feeds canned rows to an Iterator.
type fakeSource struct {
	rows   [][]string
	pos    int
	closed int
}

func (s *fakeSource) Read() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *fakeSource) Line() int { return s.pos }

func (s *fakeSource) Close() error {
	s.closed++
	return nil
}

func drain(t *testing.T, it *Iterator) []*Record {
	t.Helper()
	var recs []*Record
	for {
		r, err := it.Next()
		if err == io.EOF {
			return recs
		}
		if err != nil {
			t.Fatal(err)
		}
		recs = append(recs, r)
	}
}

func TestIteratorSkipsBlankRows(t *testing.T) {
	src := &fakeSource{rows: [][]string{
		{"1", "a"},
		{},
		{"2", "b"},
		{},
	}}
	it := NewIterator(src, "Taxon", 0, []Field{{Name: "v", Index: 1}}, false)
	defer it.Close()

	recs := drain(t, it)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].ID() != "1" || recs[1].ID() != "2" {
		t.Fatalf("ids = %q, %q", recs[0].ID(), recs[1].ID())
	}
}

func TestIteratorBadRowYieldsPlaceholder(t *testing.T) {
	src := &fakeSource{rows: [][]string{
		{"1", "fine"},
		{"2", "bad \xff\xfe bytes"},
		{"3", "fine"},
	}}
	it := NewIterator(src, "Taxon", 0, []Field{{Name: "v", Index: 1}}, false)
	defer it.Close()

	recs := drain(t, it)
	if len(recs) != 3 {
		t.Fatalf("a bad row must not shrink the stream: got %d records", len(recs))
	}
	if recs[1].ID() != "" || len(recs[1].Values()) != 0 {
		t.Fatalf("middle record should be a placeholder, got %v", recs[1])
	}
	if recs[0].ID() != "1" || recs[2].ID() != "3" {
		t.Fatalf("neighbors damaged: %q, %q", recs[0].ID(), recs[2].ID())
	}
}

func TestIteratorCloseIdempotent(t *testing.T) {
	src := &fakeSource{rows: [][]string{{"1"}}}
	it := NewIterator(src, "Taxon", 0, nil, false)
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
	if err := it.Close(); err != nil {
		t.Fatal(err)
	}
	if src.closed != 1 {
		t.Fatalf("source closed %d times, want 1", src.closed)
	}
}
