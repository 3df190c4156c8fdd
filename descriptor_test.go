package stararc

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

const testDescriptor = `{
	"core": {
		"location": "taxa.txt",
		"rowType": "Taxon",
		"fieldsTerminatedBy": "\t",
		"ignoreHeaderLines": 1,
		"id": {"index": 0},
		"fields": [
			{"name": "name", "index": 1},
			{"name": "kingdom", "default": "Animalia"}
		]
	},
	"extensions": [
		{
			"location": "vern.txt",
			"rowType": "VernacularName",
			"fieldsTerminatedBy": "\t",
			"id": {"index": 0},
			"fields": [{"name": "vernacular", "index": 1}]
		}
	]
}`

func TestOpenDescriptor(t *testing.T) {
	dir := t.TempDir()
	writeData(t, dir, DescriptorName, testDescriptor)
	writeData(t, dir, "taxa.txt", "id\tname\n10\tPuma concolor\n")
	writeData(t, dir, "vern.txt", "10\tpuma\n")

	a, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if a.Core().RowType != "Taxon" || a.Core().IgnoreHeaderLines != 1 {
		t.Fatalf("core misread: %+v", a.Core())
	}
	if a.Extension("VernacularName") == nil {
		t.Fatal("extension missing")
	}

	it, err := a.Iterator(true)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()
	sr, err := it.Next()
	if err != nil {
		t.Fatal(err)
	}
	if sr.Core.Value("kingdom") != "Animalia" {
		t.Fatalf("indexless default not applied: %q", sr.Core.Value("kingdom"))
	}
	if len(sr.Extension("VernacularName")) != 1 {
		t.Fatal("extension record not attached")
	}
	if _, err := it.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestDescriptorValidation(t *testing.T) {
	bad := []struct {
		name, json string
	}{
		{"missing id", `{"core": {"location": "x", "rowType": "T"}}`},
		{"missing core", `{"extensions": []}`},
		{"negative header count", `{"core": {"location": "x", "rowType": "T", "id": {"index": 0}, "ignoreHeaderLines": -1}}`},
		{"unknown key", `{"core": {"location": "x", "rowType": "T", "id": {"index": 0}, "bogus": 1}}`},
		{"field without name", `{"core": {"location": "x", "rowType": "T", "id": {"index": 0}, "fields": [{"index": 2}]}}`},
	}
	for _, tt := range bad {
		if _, err := FromDescriptor("", []byte(tt.json)); err == nil {
			t.Errorf("%s: descriptor accepted, want rejection", tt.name)
		}
	}
}

func TestDescriptorDuplicateExtension(t *testing.T) {
	desc := `{
		"core": {"location": "c", "rowType": "T", "id": {"index": 0}},
		"extensions": [
			{"location": "a", "rowType": "Ext", "id": {"index": 0}},
			{"location": "b", "rowType": "ext", "id": {"index": 0}}
		]
	}`
	_, err := FromDescriptor("", []byte(desc))
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("want duplicate row type error, got %v", err)
	}
}

func TestOpenMissingDescriptor(t *testing.T) {
	_, err := Open(t.TempDir())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want not-exist error, got %v", err)
	}
}
