package extsort

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stararc/internal/rowio"
)

func cmp(a, b string) int { return strings.Compare(a, b) }

func sortFile(t *testing.T, content string, cfg rowio.Config, keyIndex int) []string {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "data.txt")
	dst := filepath.Join(dir, "data.txt-sorted")
	if err := os.WriteFile(src, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := Sort(src, dst, cfg, keyIndex, cmp); err != nil {
		t.Fatal(err)
	}
	out, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimSuffix(string(out), "\n"), "\n")
}

func TestSortOrdersByKeyColumn(t *testing.T) {
	lines := sortFile(t,
		"30\tthirty\n10\tten\n20\ttwenty\n",
		rowio.Config{FieldsTerminatedBy: "\t"}, 0)
	want := []string{"10\tten", "20\ttwenty", "30\tthirty"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %q", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSortKeepsHeaderFirst(t *testing.T) {
	lines := sortFile(t,
		"id\tname\n2\tb\n1\ta\n",
		rowio.Config{FieldsTerminatedBy: "\t", IgnoreHeaderLines: 1}, 0)
	if lines[0] != "id\tname" {
		t.Fatalf("header not first: %q", lines[0])
	}
	if lines[1] != "1\ta" || lines[2] != "2\tb" {
		t.Fatalf("rows not sorted: %q", lines[1:])
	}
}

func TestSortIsStableAndKeepsRowBytes(t *testing.T) {
	// Equal keys stay in input order; quoted row bytes are untouched.
	lines := sortFile(t,
		"5,\"x,first\"\n5,second\n1,third\n",
		rowio.Config{FieldsTerminatedBy: ",", FieldsEnclosedBy: `"`}, 0)
	want := []string{"1,third", `5,"x,first"`, "5,second"}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSortMissingKeySortsAsEmpty(t *testing.T) {
	lines := sortFile(t,
		"b\tx\n\nshortrow\na\ty\n",
		rowio.Config{FieldsTerminatedBy: "\t"}, 1)
	// The blank line and the row without a second column both key as ""
	// and sort to the front, in input order.
	want := []string{"", "shortrow", "b\tx", "a\ty"}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSortLeavesNoDestinationOnFailure(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out")
	err := Sort(filepath.Join(dir, "missing"), dst, rowio.Config{}, 0, cmp)
	if err == nil {
		t.Fatal("expected an error for a missing source")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist after failure: %v", err)
	}
}

func TestSortManyRowsAcrossRuns(t *testing.T) {
	// More rows than one run holds still merge into one ordered file.
	var b strings.Builder
	for i := runSize + runSize/2; i > 0; i-- {
		b.WriteString(strings.Repeat("0", 8-len(itoa(i))) + itoa(i) + "\tv\n")
	}
	lines := sortFile(t, b.String(), rowio.Config{FieldsTerminatedBy: "\t"}, 0)
	if len(lines) != runSize+runSize/2 {
		t.Fatalf("got %d lines", len(lines))
	}
	prev := ""
	for _, l := range lines {
		key := strings.SplitN(l, "\t", 2)[0]
		if cmp(key, prev) < 0 {
			t.Fatalf("key %q out of order after %q", key, prev)
		}
		prev = key
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	return string(b)
}
