package rf2

// streaming.go provides forward-only readers for release files.
//
// Archive members are decompressed on the fly and read one line at a time,
// so memory use is bounded by the longest line rather than the member size:
//
//   - CountingReader: tracks bytes read for progress and metrics
//   - LineReader: splits a stream into lines, remembering each terminator
//
// A UTF-8 BOM is only stripped when the caller asks for it; passthrough
// copies keep the header byte-for-byte.

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// utf8BOM is the byte-order mark some editors prepend to text files.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DefaultTerminator is used for lines synthesised by the merge when a file
// gives no better hint.
const DefaultTerminator = "\r\n"

// CountingReader wraps an io.Reader to track bytes read.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
	Total     int64 // If known (0 if unknown)
}

// NewCountingReader creates a counting reader with optional total size.
func NewCountingReader(r io.Reader, total int64) *CountingReader {
	return &CountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *CountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead * 100 / r.Total)
}

// Line is one line of a release file.
type Line struct {
	// Text excludes the terminator.
	Text string
	// Terminator is "\r\n", "\n", or "" for a final unterminated line.
	Terminator string
	// Number is 1-based; the header is line 1.
	Number int
}

// LineReader reads a release file line by line.
type LineReader struct {
	br      *bufio.Reader
	skipBOM bool
	started bool
	number  int
}

// NewLineReader wraps r. When skipBOM is set a leading UTF-8 BOM is dropped.
func NewLineReader(r io.Reader, skipBOM bool) *LineReader {
	return &LineReader{
		br:      bufio.NewReaderSize(r, 64*1024),
		skipBOM: skipBOM,
	}
}

// Next returns the next line, or io.EOF once the stream is exhausted.
func (lr *LineReader) Next() (Line, error) {
	if !lr.started {
		lr.started = true
		if lr.skipBOM {
			if head, err := lr.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
				_, _ = lr.br.Discard(len(utf8BOM))
			}
		}
	}

	raw, err := lr.br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Line{}, err
	}
	if raw == "" {
		return Line{}, io.EOF
	}

	lr.number++
	line := Line{Text: raw, Number: lr.number}
	switch {
	case len(raw) >= 2 && raw[len(raw)-2:] == "\r\n":
		line.Text, line.Terminator = raw[:len(raw)-2], "\r\n"
	case raw[len(raw)-1] == '\n':
		line.Text, line.Terminator = raw[:len(raw)-1], "\n"
	}
	return line, nil
}

// Number returns the number of lines read so far.
func (lr *LineReader) Number() int { return lr.number }

// LineWriter writes lines, inserting a separator when a previous line was
// copied without its terminator.
type LineWriter struct {
	w            io.Writer
	terminator   string
	unterminated bool
	lines        int
}

// NewLineWriter writes to w using terminator for synthesised lines.
func NewLineWriter(w io.Writer, terminator string) *LineWriter {
	if terminator == "" {
		terminator = DefaultTerminator
	}
	return &LineWriter{w: w, terminator: terminator}
}

// SetTerminator changes the terminator used for synthesised lines.
func (lw *LineWriter) SetTerminator(t string) {
	if t != "" {
		lw.terminator = t
	}
}

// Copy writes a line exactly as it was read.
func (lw *LineWriter) Copy(l Line) error {
	return lw.write(l.Text, l.Terminator)
}

// WriteRow writes a row with the writer's terminator.
func (lw *LineWriter) WriteRow(r Row) error {
	return lw.write(r.Line(), lw.terminator)
}

// WriteText writes text with the writer's terminator.
func (lw *LineWriter) WriteText(text string) error {
	return lw.write(text, lw.terminator)
}

// Lines returns the number of lines written.
func (lw *LineWriter) Lines() int { return lw.lines }

func (lw *LineWriter) write(text, terminator string) error {
	if lw.unterminated {
		if _, err := io.WriteString(lw.w, lw.terminator); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(lw.w, text); err != nil {
		return err
	}
	if _, err := io.WriteString(lw.w, terminator); err != nil {
		return err
	}
	lw.unterminated = terminator == ""
	lw.lines++
	return nil
}
