// Package extsort orders a delimited text file by one of its columns.
//
// Files are sorted in bounded memory: rows are collected into fixed-size
// runs, the runs are sorted concurrently and spilled to temporary files,
// and a final k-way merge writes the destination. Header lines pass
// through untouched at the top of the output. The row bytes themselves
// are never rewritten, only reordered.
package extsort

import (
	"bufio"
	"container/heap"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"stararc/internal/rowio"
)

// runSize is the number of rows sorted in memory at a time.
const runSize = 1 << 17

// Sort writes to dst the rows of src reordered so that the key column
// is non-decreasing under cmp. Rows missing the key column sort as the
// empty string. cfg describes how to split rows and decode keys; cmp
// must be the same comparator the consumer of the sorted file uses to
// merge. dst appears atomically: on error no destination file is left
// behind.
func Sort(src, dst string, cfg rowio.Config, keyIndex int, cmp func(a, b string) int) error {
	if cfg.FieldsTerminatedBy == "" {
		cfg.FieldsTerminatedBy = "\t"
	}
	terminator := cfg.LinesTerminatedBy
	if terminator == "" {
		terminator = "\n"
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("extsort: open %s: %w", src, err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("extsort: create %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	defer tmp.Close()

	out := bufio.NewWriterSize(tmp, 64*1024)
	sc := newLineScanner(in)

	for i := 0; i < cfg.IgnoreHeaderLines; i++ {
		line, err := sc.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("extsort: read %s: %w", src, err)
		}
		out.WriteString(line)
		out.WriteString(terminator)
	}

	runs, err := spillRuns(sc, cfg, keyIndex, cmp, filepath.Dir(dst))
	if err != nil {
		return fmt.Errorf("extsort: sort %s: %w", src, err)
	}
	defer func() {
		for _, r := range runs {
			r.close()
		}
	}()

	if err := mergeRuns(out, runs, terminator, cmp); err != nil {
		return fmt.Errorf("extsort: merge %s: %w", src, err)
	}
	if err := out.Flush(); err != nil {
		return fmt.Errorf("extsort: write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("extsort: write %s: %w", dst, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("extsort: finish %s: %w", dst, err)
	}
	return nil
}

// keyOf extracts and decodes the sort key of one raw line.
func keyOf(line string, cfg rowio.Config, keyIndex int, dec *rowio.Encoding) string {
	fields := rowio.SplitLine(line, cfg.FieldsTerminatedBy, cfg.FieldsEnclosedBy)
	if keyIndex < 0 || keyIndex >= len(fields) {
		return ""
	}
	key := fields[keyIndex]
	if dec != nil {
		if decoded, err := dec.DecodeString(key); err == nil {
			key = decoded
		}
	}
	return key
}

type keyedLine struct {
	key  string
	line string
}

// spillRuns reads all data lines, sorts them in runs of runSize and
// spills each run to a temporary file in dir. Runs sort concurrently;
// reading stays sequential so input order is preserved within ties.
func spillRuns(sc *lineScanner, cfg rowio.Config, keyIndex int, cmp func(a, b string) int, dir string) ([]*run, error) {
	dec, err := rowio.DecoderFor(cfg.Encoding)
	if err != nil {
		return nil, err
	}

	var (
		runs []*run
		g    errgroup.Group
	)
	g.SetLimit(4)
	for {
		chunk := make([]keyedLine, 0, runSize)
		for len(chunk) < runSize {
			line, err := sc.next()
			if err == io.EOF {
				break
			}
			if err != nil {
				g.Wait()
				return runs, err
			}
			chunk = append(chunk, keyedLine{keyOf(line, cfg, keyIndex, dec), line})
		}
		if len(chunk) == 0 {
			break
		}
		r := &run{}
		runs = append(runs, r)
		g.Go(func() error {
			slices.SortStableFunc(chunk, func(a, b keyedLine) int {
				return cmp(a.key, b.key)
			})
			return r.spill(chunk, dir)
		})
		if len(chunk) < runSize {
			break
		}
	}
	if err := g.Wait(); err != nil {
		return runs, err
	}
	return runs, nil
}

// A run is one sorted slice of the input spilled to disk. Keys are
// written on their own line before each row so the merge does not split
// rows again.
type run struct {
	f    *os.File
	br   *bufio.Reader
	head keyedLine
	done bool
}

func (r *run) spill(chunk []keyedLine, dir string) error {
	f, err := os.CreateTemp(dir, ".stararc-run-*")
	if err != nil {
		return err
	}
	// Unlinked immediately; the open handle keeps it alive.
	os.Remove(f.Name())
	w := bufio.NewWriterSize(f, 64*1024)
	for _, kl := range chunk {
		fmt.Fprintf(w, "%d %d\n", len(kl.key), len(kl.line))
		w.WriteString(kl.key)
		w.WriteString(kl.line)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return err
	}
	r.f = f
	r.br = bufio.NewReaderSize(f, 64*1024)
	return nil
}

// advance loads the next keyed line of the run, setting done at the end.
func (r *run) advance() error {
	var keyLen, lineLen int
	if _, err := fmt.Fscanf(r.br, "%d %d\n", &keyLen, &lineLen); err != nil {
		if err == io.EOF {
			r.done = true
			return nil
		}
		return err
	}
	buf := make([]byte, keyLen+lineLen)
	if _, err := io.ReadFull(r.br, buf); err != nil {
		return err
	}
	r.head = keyedLine{string(buf[:keyLen]), string(buf[keyLen:])}
	return nil
}

func (r *run) close() {
	if r.f != nil {
		r.f.Close()
		r.f = nil
	}
}

// runHeap orders runs by their head key under cmp, breaking ties by run
// index so that the merge is stable.
type runHeap struct {
	runs []*run
	idx  []int
	cmp  func(a, b string) int
}

func (h *runHeap) Len() int { return len(h.runs) }
func (h *runHeap) Less(i, j int) bool {
	if c := h.cmp(h.runs[i].head.key, h.runs[j].head.key); c != 0 {
		return c < 0
	}
	return h.idx[i] < h.idx[j]
}
func (h *runHeap) Swap(i, j int) {
	h.runs[i], h.runs[j] = h.runs[j], h.runs[i]
	h.idx[i], h.idx[j] = h.idx[j], h.idx[i]
}
func (h *runHeap) Push(x any) { panic("extsort: runHeap.Push unused") }
func (h *runHeap) Pop() any {
	n := len(h.runs) - 1
	r := h.runs[n]
	h.runs = h.runs[:n]
	h.idx = h.idx[:n]
	return r
}

// mergeRuns drains all runs into w in key order.
func mergeRuns(w *bufio.Writer, runs []*run, terminator string, cmp func(a, b string) int) error {
	h := &runHeap{cmp: cmp}
	for i, r := range runs {
		if err := r.advance(); err != nil {
			return err
		}
		if r.done {
			continue
		}
		h.runs = append(h.runs, r)
		h.idx = append(h.idx, i)
	}
	heap.Init(h)
	for h.Len() > 0 {
		r := h.runs[0]
		if _, err := w.WriteString(r.head.line); err != nil {
			return err
		}
		if _, err := w.WriteString(terminator); err != nil {
			return err
		}
		if err := r.advance(); err != nil {
			return err
		}
		if r.done {
			heap.Pop(h)
		} else {
			heap.Fix(h, 0)
		}
	}
	return nil
}

// lineScanner reads physical lines, accepting \n, \r\n and \r
// terminators and an unterminated final line.
type lineScanner struct {
	br *bufio.Reader
}

func newLineScanner(r io.Reader) *lineScanner {
	return &lineScanner{br: bufio.NewReaderSize(r, 64*1024)}
}

func (sc *lineScanner) next() (string, error) {
	var b []byte
	for {
		c, err := sc.br.ReadByte()
		if err != nil {
			if err == io.EOF && len(b) > 0 {
				return string(b), nil
			}
			return "", err
		}
		switch c {
		case '\n':
			return string(b), nil
		case '\r':
			if next, err := sc.br.ReadByte(); err == nil && next != '\n' {
				sc.br.UnreadByte()
			}
			return string(b), nil
		default:
			b = append(b, c)
		}
	}
}
