// Package rowio reads delimited text files one row at a time.
//
// A Reader splits each physical line into string columns according to a
// Config. It makes no attempt to interpret the columns; that is the job
// of package record. Blank lines are returned as zero-length rows so
// that consumers can count them or skip them as they see fit.
package rowio

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Config describes the physical shape of a delimited text file.
type Config struct {
	// FieldsTerminatedBy separates columns, e.g. "\t" or ",".
	FieldsTerminatedBy string
	// FieldsEnclosedBy is an optional quote character. Empty disables
	// quote handling entirely. Only the first byte is significant.
	FieldsEnclosedBy string
	// LinesTerminatedBy records the terminator the file was written
	// with. Reading accepts \n, \r\n and \r regardless.
	LinesTerminatedBy string
	// IgnoreHeaderLines is the number of leading lines to skip.
	IgnoreHeaderLines int
	// Encoding is an IANA charset name. Empty means UTF-8.
	Encoding string
}

// A Reader produces one row of columns per line of a delimited file.
// Readers are not restartable; reopen the file for a second pass.
type Reader struct {
	f      *os.File
	br     *bufio.Reader
	cfg    Config
	line   int
	closed bool
}

// Open opens path for row-at-a-time reading, decoding from cfg.Encoding
// and skipping cfg.IgnoreHeaderLines lines.
func Open(path string, cfg Config) (*Reader, error) {
	if cfg.FieldsTerminatedBy == "" {
		cfg.FieldsTerminatedBy = "\t"
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	var src io.Reader = f
	if enc, err := DecoderFor(cfg.Encoding); err != nil {
		f.Close()
		return nil, err
	} else if enc != nil {
		src = enc.Reader(f)
	}
	r := &Reader{f: f, br: bufio.NewReaderSize(src, 64*1024), cfg: cfg}
	for i := 0; i < cfg.IgnoreHeaderLines; i++ {
		if _, err := r.readLine(); err != nil {
			if err == io.EOF {
				break
			}
			f.Close()
			return nil, err
		}
	}
	return r, nil
}

// Read returns the columns of the next line, or io.EOF when the file is
// exhausted. A blank line yields a zero-length row.
func (r *Reader) Read() ([]string, error) {
	if r.closed {
		panic("rowio: read after close")
	}
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	return SplitLine(line, r.cfg.FieldsTerminatedBy, r.cfg.FieldsEnclosedBy), nil
}

// Line is the 1-based number of the last physical line read, header
// lines included.
func (r *Reader) Line() int {
	return r.line
}

// Close releases the underlying file. It is safe to call repeatedly.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}

// readLine reads up to the next \n, \r\n or \r, not returning the
// terminator. The final line may be unterminated. io.EOF is only
// returned with no data.
func (r *Reader) readLine() (string, error) {
	var b strings.Builder
	for {
		c, err := r.br.ReadByte()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				r.line++
				return b.String(), nil
			}
			return "", err
		}
		switch c {
		case '\n':
			r.line++
			return b.String(), nil
		case '\r':
			if next, err := r.br.ReadByte(); err == nil && next != '\n' {
				r.br.UnreadByte()
			}
			r.line++
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
}

// SplitLine splits one line into columns. quote may be empty. A quoted
// column must start with the quote character; a doubled quote inside a
// quoted column denotes a literal quote. An empty line yields a
// zero-length slice, the blank-line marker consumers rely on.
func SplitLine(line, delim, quote string) []string {
	if line == "" {
		return []string{}
	}
	if quote == "" {
		return strings.Split(line, delim)
	}
	q := quote[0]
	var fields []string
	var b strings.Builder
	inQuote := false
	atStart := true
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case inQuote:
			if c == q {
				if i+1 < len(line) && line[i+1] == q {
					b.WriteByte(q)
					i += 2
					continue
				}
				inQuote = false
				i++
				continue
			}
			b.WriteByte(c)
			i++
		case c == q && atStart:
			inQuote = true
			atStart = false
			i++
		case strings.HasPrefix(line[i:], delim):
			fields = append(fields, b.String())
			b.Reset()
			atStart = true
			i += len(delim)
		default:
			b.WriteByte(c)
			atStart = false
			i++
		}
	}
	fields = append(fields, b.String())
	return fields
}

// DecoderFor resolves an IANA charset name. It returns nil for UTF-8,
// where no transformation is needed.
func DecoderFor(name string) (*Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("rowio: unknown encoding %q: %w", name, err)
	}
	return &Encoding{enc: enc}, nil
}

// Encoding converts text in some charset to UTF-8.
type Encoding struct {
	enc encoding.Encoding
}

// Reader wraps r so that reads yield UTF-8.
func (e *Encoding) Reader(r io.Reader) io.Reader {
	return e.enc.NewDecoder().Reader(r)
}

// DecodeString converts a single string to UTF-8.
func (e *Encoding) DecodeString(s string) (string, error) {
	return e.enc.NewDecoder().String(s)
}
